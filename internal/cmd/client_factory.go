package cmd

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/trackvia-tools/tv-cli/internal/api"
	"github.com/trackvia-tools/tv-cli/internal/config"
)

type clientFactory struct {
	profile   string
	baseURL   string
	timeout   time.Duration
	userAgent string
	logger    *zap.Logger
}

func newClientFactory() *clientFactory {
	return &clientFactory{
		profile:   flags.Profile,
		baseURL:   flags.BaseURL,
		timeout:   flags.Timeout,
		userAgent: fmt.Sprintf("tv-cli/%s", version),
	}
}

func (f *clientFactory) withLogger(log *zap.Logger) *clientFactory {
	f.logger = log
	return f
}

func (f *clientFactory) client() (*api.Client, error) {
	cfg, err := config.ResolveClientConfig(f.profile, f.baseURL)
	if err != nil {
		return nil, err
	}
	return f.newClient(cfg)
}

// newClient builds a client for cfg. Tokens obtained by refresh are written
// back to the keyring profile unless the credentials came from the environment.
func (f *clientFactory) newClient(cfg config.ClientConfig) (*api.Client, error) {
	opts := []api.Option{
		api.WithUserAgent(f.userAgent),
		api.WithSession(api.Session{Token: cfg.Token, RefreshToken: cfg.RefreshToken}),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, api.WithBaseURL(cfg.BaseURL))
	}
	if f.timeout > 0 {
		opts = append(opts, api.WithTimeout(f.timeout))
	}
	if f.logger != nil {
		opts = append(opts, api.WithLogger(f.logger))
	}
	if !cfg.FromEnv {
		profile := cfg.Profile
		log := f.logger
		opts = append(opts, api.WithSessionHook(func(s api.Session) {
			if err := config.UpdateSession(profile, s.Token, s.RefreshToken); err != nil && log != nil {
				log.Warn("failed to persist session", zap.String("profile", profile), zap.Error(err))
			}
		}))
	}
	return api.New(cfg.UserKey, opts...)
}
