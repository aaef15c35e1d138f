package config

import (
	"os"
	"strings"
)

const (
	EnvUserKey      = "TRACKVIA_USER_KEY"
	EnvToken        = "TRACKVIA_TOKEN"
	EnvRefreshToken = "TRACKVIA_REFRESH_TOKEN"
	EnvBaseURL      = "TRACKVIA_BASE_URL"
	EnvProfile      = "TRACKVIA_PROFILE"
)

// ClientConfig contains resolved API client settings.
type ClientConfig struct {
	BaseURL      string
	UserKey      string
	Token        string
	RefreshToken string

	// Profile is the keyring profile the settings came from, or would be
	// saved to. FromEnv is set when TRACKVIA_USER_KEY supplied the key, in
	// which case refreshed tokens are not written back.
	Profile string
	FromEnv bool
}

// ResolveProfileName picks the profile: explicit override, then
// TRACKVIA_PROFILE, then the keyring's current profile.
func ResolveProfileName(override string) (string, error) {
	if p := strings.TrimSpace(override); p != "" {
		return p, nil
	}
	if p := strings.TrimSpace(os.Getenv(EnvProfile)); p != "" {
		return p, nil
	}
	return CurrentProfile()
}

// ResolveClientConfig resolves the client settings. Environment credentials
// take precedence over the keyring; baseURLOverride (from --base-url) beats both.
func ResolveClientConfig(profileOverride, baseURLOverride string) (ClientConfig, error) {
	var cfg ClientConfig

	if key := strings.TrimSpace(os.Getenv(EnvUserKey)); key != "" {
		cfg = ClientConfig{
			UserKey:      key,
			Token:        strings.TrimSpace(os.Getenv(EnvToken)),
			RefreshToken: strings.TrimSpace(os.Getenv(EnvRefreshToken)),
			Profile:      strings.TrimSpace(profileOverride),
			FromEnv:      true,
		}
	} else {
		profile, err := ResolveProfileName(profileOverride)
		if err != nil {
			return ClientConfig{}, err
		}
		creds, err := LoadProfile(profile)
		if err != nil {
			return ClientConfig{}, err
		}
		cfg = ClientConfig{
			BaseURL:      creds.BaseURL,
			UserKey:      creds.UserKey,
			Token:        creds.Token,
			RefreshToken: creds.RefreshToken,
			Profile:      profile,
		}
	}

	if envURL := strings.TrimSpace(os.Getenv(EnvBaseURL)); envURL != "" {
		cfg.BaseURL = envURL
	}
	if baseURLOverride = strings.TrimSpace(baseURLOverride); baseURLOverride != "" {
		cfg.BaseURL = baseURLOverride
	}
	cfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")

	if cfg.UserKey == "" {
		return ClientConfig{}, ErrNotConfigured
	}
	return cfg, nil
}
