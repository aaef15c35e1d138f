package cmd

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trackvia-tools/tv-cli/internal/apitest"
	"github.com/trackvia-tools/tv-cli/internal/config"
)

func TestClientFactoryUsesFlags(t *testing.T) {
	flags = defaultFlags()
	t.Cleanup(func() { flags = defaultFlags() })
	flags.Profile = "sandbox"
	flags.BaseURL = "http://localhost:9999"
	flags.Timeout = 5 * time.Second

	f := newClientFactory()
	assert.Equal(t, "sandbox", f.profile)
	assert.Equal(t, "http://localhost:9999", f.baseURL)
	assert.Equal(t, 5*time.Second, f.timeout)
	assert.Equal(t, "tv-cli/"+version, f.userAgent)
}

func TestClientFactoryEnvSessionIsNotPersisted(t *testing.T) {
	isolateEnv(t)
	srv := apitest.New(t)
	_, refresh := srv.IssueSession()
	srv.AddView(1, "Payments", "Accounting")

	require.NoError(t, config.SaveProfile("default", config.Credentials{UserKey: apitest.UserKey, Token: "stale", RefreshToken: "stale"}))

	f := newClientFactory()
	client, err := f.newClient(config.ClientConfig{
		BaseURL:      srv.URL,
		UserKey:      apitest.UserKey,
		Token:        "old-token",
		RefreshToken: refresh,
		Profile:      "default",
		FromEnv:      true,
	})
	require.NoError(t, err)

	_, err = client.Views().List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, srv.TokenCalls(), "expired token should be refreshed once")

	creds, err := config.LoadProfile("default")
	require.NoError(t, err)
	assert.Equal(t, "stale", creds.Token, "environment sessions must not be written to the keyring")
}
