package cmd

import (
	"encoding/json"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersionCommand(t *testing.T) {
	isolateEnv(t)

	out, _, err := runCmd(t, "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "tv version "+version), out)
	assert.Contains(t, out, runtime.GOOS+"/"+runtime.GOARCH)
}

func TestVersionCommandJSON(t *testing.T) {
	isolateEnv(t)

	out, _, err := runCmd(t, "version", "--json")
	require.NoError(t, err)

	var payload map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &payload))
	assert.Equal(t, version, payload["version"])
	assert.Equal(t, runtime.Version(), payload["go"])
}
