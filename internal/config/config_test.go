package config

import (
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/99designs/keyring"
)

// withMockKeyring sets up a mock keyring for the duration of a test
func withMockKeyring(t *testing.T, ring keyring.Keyring) {
	t.Helper()
	t.Cleanup(SetOpenKeyring(func(cfg keyring.Config) (keyring.Keyring, error) {
		return ring, nil
	}))
}

// withFailingKeyring sets up a keyring that always fails to open
func withFailingKeyring(t *testing.T, err error) {
	t.Helper()
	t.Cleanup(SetOpenKeyring(func(cfg keyring.Config) (keyring.Keyring, error) {
		return nil, err
	}))
}

func TestProfileKey(t *testing.T) {
	tests := []struct {
		profile  string
		expected string
	}{
		{"", accountKey},
		{"default", accountKey},
		{"sandbox", profilePrefix + "sandbox"},
	}

	for _, tt := range tests {
		if got := profileKey(tt.profile); got != tt.expected {
			t.Errorf("profileKey(%q) = %q, want %q", tt.profile, got, tt.expected)
		}
	}
}

func TestNormalizeProfiles(t *testing.T) {
	got := normalizeProfiles([]string{"a", " b ", "", "a", "c", "b"})
	want := []string{"a", "b", "c"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("normalizeProfiles = %v, want %v", got, want)
	}
}

func TestKeyringConfig(t *testing.T) {
	t.Setenv(envKeyringBackend, "")
	t.Setenv(envCredentialsDir, "")

	cfg := keyringConfig()
	if cfg.ServiceName != serviceName {
		t.Errorf("ServiceName = %q, want %q", cfg.ServiceName, serviceName)
	}
	if cfg.FileDir == "" {
		t.Error("FileDir should be configured in auto backend mode")
	}
	if cfg.FilePasswordFunc == nil {
		t.Error("FilePasswordFunc should be configured in auto backend mode")
	}
}

func TestKeyringConfig_FileBackendOverride(t *testing.T) {
	t.Setenv(envKeyringBackend, "file")
	base := t.TempDir()
	t.Setenv(envCredentialsDir, base)

	cfg := keyringConfig()
	if len(cfg.AllowedBackends) != 1 || cfg.AllowedBackends[0] != keyring.FileBackend {
		t.Fatalf("AllowedBackends = %v, want [%s]", cfg.AllowedBackends, keyring.FileBackend)
	}
	if want := filepath.Join(base, "keyring"); cfg.FileDir != want {
		t.Fatalf("FileDir = %q, want %q", cfg.FileDir, want)
	}
}

func TestKeyringConfig_SystemBackendOverride(t *testing.T) {
	t.Setenv(envKeyringBackend, "system")

	cfg := keyringConfig()
	if cfg.FileDir != "" || cfg.FilePasswordFunc != nil || len(cfg.AllowedBackends) != 0 {
		t.Fatalf("system backend should leave file settings empty, got %+v", cfg)
	}
}

func TestShouldForceFileBackend(t *testing.T) {
	tests := []struct {
		name     string
		goos     string
		backend  string
		dbusAddr string
		want     bool
	}{
		{"explicit file backend", "darwin", keyringBackendFile, "ignored", true},
		{"headless linux", "linux", keyringBackendAuto, "", true},
		{"linux desktop", "linux", keyringBackendAuto, "unix:path=/run/user/1000/bus", false},
		{"system backend", "linux", keyringBackendSystem, "", false},
		{"non-linux auto", "windows", keyringBackendAuto, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := shouldForceFileBackend(tt.goos, tt.backend, tt.dbusAddr); got != tt.want {
				t.Fatalf("shouldForceFileBackend(%q, %q, %q) = %v, want %v", tt.goos, tt.backend, tt.dbusAddr, got, tt.want)
			}
		})
	}
}

func TestKeyringBackendMode(t *testing.T) {
	tests := []struct {
		value string
		want  string
	}{
		{"", keyringBackendAuto},
		{"file", keyringBackendFile},
		{"SYSTEM", keyringBackendSystem},
		{"native", keyringBackendSystem},
		{"weird", keyringBackendAuto},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			t.Setenv(envKeyringBackend, tt.value)
			if got := keyringBackendMode(); got != tt.want {
				t.Fatalf("keyringBackendMode() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestKeyringFileDir_DefaultsToUserConfigDir(t *testing.T) {
	t.Setenv(envCredentialsDir, "")

	fakeConfigDir := t.TempDir()
	original := userConfigDir
	userConfigDir = func() (string, error) { return fakeConfigDir, nil }
	t.Cleanup(func() { userConfigDir = original })

	want := filepath.Join(fakeConfigDir, serviceName, "keyring")
	if got := keyringFileDir(); got != want {
		t.Fatalf("keyringFileDir() = %q, want %q", got, want)
	}
}

func TestKeyringFilePassword(t *testing.T) {
	t.Setenv(envKeyringPassword, "env-pass")
	password, err := keyringFilePassword("prompt")
	if err != nil || password != "env-pass" {
		t.Fatalf("keyringFilePassword() = %q, %v", password, err)
	}

	t.Setenv(envKeyringPassword, "")
	original := stdinHasTTY
	stdinHasTTY = func() bool { return false }
	t.Cleanup(func() { stdinHasTTY = original })

	_, err = keyringFilePassword("prompt")
	if err == nil || !strings.Contains(err.Error(), envKeyringPassword) {
		t.Fatalf("error = %v, want mention of %s", err, envKeyringPassword)
	}
}

func TestSaveAndLoadProfile(t *testing.T) {
	ring := keyring.NewArrayKeyring(nil)
	withMockKeyring(t, ring)

	creds := Credentials{
		BaseURL:      "https://go.trackvia.com:443",
		UserKey:      "uk-1",
		Username:     "ops@example.com",
		Token:        "tok",
		RefreshToken: "ref",
	}
	if err := SaveProfile("sandbox", creds); err != nil {
		t.Fatalf("SaveProfile: %v", err)
	}

	got, err := LoadProfile("sandbox")
	if err != nil {
		t.Fatalf("LoadProfile: %v", err)
	}
	if got != creds {
		t.Errorf("LoadProfile = %+v, want %+v", got, creds)
	}

	current, err := CurrentProfile()
	if err != nil || current != "sandbox" {
		t.Errorf("CurrentProfile = %q, %v", current, err)
	}

	item, err := ring.Get(profilePrefix + "sandbox")
	if err != nil {
		t.Fatalf("raw item: %v", err)
	}
	var raw map[string]any
	if err := json.Unmarshal(item.Data, &raw); err != nil {
		t.Fatalf("stored data is not JSON: %v", err)
	}
	if raw["user_key"] != "uk-1" {
		t.Errorf("stored user_key = %v", raw["user_key"])
	}
}

func TestSaveProfileRequiresUserKey(t *testing.T) {
	withMockKeyring(t, keyring.NewArrayKeyring(nil))
	if err := SaveProfile("x", Credentials{Token: "t"}); err == nil {
		t.Fatal("expected error for missing user key")
	}
}

func TestLoadProfileNotConfigured(t *testing.T) {
	withMockKeyring(t, keyring.NewArrayKeyring(nil))
	if _, err := LoadProfile("missing"); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("error = %v, want ErrNotConfigured", err)
	}
}

func TestLoadProfileInvalidJSON(t *testing.T) {
	withMockKeyring(t, keyring.NewArrayKeyring([]keyring.Item{{Key: accountKey, Data: []byte("{")}}))
	if _, err := LoadProfile(""); err == nil {
		t.Fatal("expected unmarshal error")
	}
}

func TestKeyringOpenErrors(t *testing.T) {
	withFailingKeyring(t, errors.New("locked"))

	checks := map[string]error{}
	checks["SaveProfile"] = SaveProfile("a", Credentials{UserKey: "k"})
	_, checks["LoadProfile"] = LoadProfile("a")
	checks["DeleteProfile"] = DeleteProfile("a")
	_, checks["ListProfiles"] = ListProfiles()
	_, checks["CurrentProfile"] = CurrentProfile()
	checks["SetCurrentProfile"] = SetCurrentProfile("a")

	for name, err := range checks {
		if err == nil || !strings.Contains(err.Error(), "failed to open keyring") {
			t.Errorf("%s error = %v", name, err)
		}
	}
}

func TestUpdateSessionKeepsCurrentProfile(t *testing.T) {
	withMockKeyring(t, keyring.NewArrayKeyring(nil))

	if err := SaveProfile("other", Credentials{UserKey: "k2"}); err != nil {
		t.Fatal(err)
	}
	if err := SaveProfile("main", Credentials{UserKey: "k1", Token: "old", RefreshToken: "old-ref"}); err != nil {
		t.Fatal(err)
	}

	if err := UpdateSession("other", "new", "new-ref"); err != nil {
		t.Fatalf("UpdateSession: %v", err)
	}
	got, _ := LoadProfile("other")
	if got.UserKey != "k2" || got.Token != "new" || got.RefreshToken != "new-ref" {
		t.Errorf("profile = %+v", got)
	}
	if current, _ := CurrentProfile(); current != "main" {
		t.Errorf("current profile changed to %q", current)
	}

	if err := ClearSession("main"); err != nil {
		t.Fatalf("ClearSession: %v", err)
	}
	got, _ = LoadProfile("main")
	if got.HasSession() || got.RefreshToken != "" || got.UserKey != "k1" {
		t.Errorf("cleared profile = %+v", got)
	}
}

func TestDeleteProfileSwitchesCurrentProfile(t *testing.T) {
	withMockKeyring(t, keyring.NewArrayKeyring(nil))

	_ = SaveProfile("a", Credentials{UserKey: "ka"})
	_ = SaveProfile("b", Credentials{UserKey: "kb"})

	if err := DeleteProfile("b"); err != nil {
		t.Fatalf("DeleteProfile: %v", err)
	}
	current, _ := CurrentProfile()
	if current != "a" {
		t.Errorf("current = %q, want a", current)
	}
	profiles, _ := ListProfiles()
	if len(profiles) != 1 || profiles[0] != "a" {
		t.Errorf("profiles = %v", profiles)
	}
	if err := DeleteProfile("never-existed"); err != nil {
		t.Errorf("deleting an unknown profile should succeed, got %v", err)
	}
}

func TestListProfilesLegacyDefault(t *testing.T) {
	data, _ := json.Marshal(Credentials{UserKey: "k"})
	withMockKeyring(t, keyring.NewArrayKeyring([]keyring.Item{{Key: accountKey, Data: data}}))

	profiles, err := ListProfiles()
	if err != nil {
		t.Fatalf("ListProfiles: %v", err)
	}
	if len(profiles) != 1 || profiles[0] != defaultProfile {
		t.Errorf("profiles = %v", profiles)
	}
}

func TestCurrentProfileDefault(t *testing.T) {
	withMockKeyring(t, keyring.NewArrayKeyring(nil))
	current, err := CurrentProfile()
	if err != nil || current != defaultProfile {
		t.Errorf("CurrentProfile = %q, %v", current, err)
	}
}
