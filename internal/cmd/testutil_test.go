package cmd

import (
	"bytes"
	"context"
	"io"
	"os"
	"testing"

	"github.com/99designs/keyring"

	"github.com/trackvia-tools/tv-cli/internal/apitest"
	"github.com/trackvia-tools/tv-cli/internal/config"
)

// captureStdout executes a function and captures its stdout output.
func captureStdout(t *testing.T, fn func()) string {
	t.Helper()
	old := os.Stdout
	r, w, _ := os.Pipe()
	os.Stdout = w

	done := make(chan string)
	go func() {
		var buf bytes.Buffer
		_, _ = io.Copy(&buf, r)
		done <- buf.String()
	}()

	fn()

	_ = w.Close()
	os.Stdout = old
	return <-done
}

// captureStderr executes a function and captures its stderr output.
func captureStderr(t *testing.T, fn func()) string {
	t.Helper()
	old := os.Stderr
	r, w, _ := os.Pipe()
	os.Stderr = w

	done := make(chan string)
	go func() {
		var buf bytes.Buffer
		_, _ = io.Copy(&buf, r)
		done <- buf.String()
	}()

	fn()

	_ = w.Close()
	os.Stderr = old
	return <-done
}

// withStdin replaces os.Stdin with content for the duration of the test.
func withStdin(t *testing.T, content string) {
	t.Helper()
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	_, _ = w.WriteString(content)
	_ = w.Close()

	old := os.Stdin
	os.Stdin = r
	t.Cleanup(func() {
		os.Stdin = old
		_ = r.Close()
	})
}

// runCmd executes the CLI and returns stdout, stderr and the error.
func runCmd(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var (
		stdout string
		err    error
	)
	stderr := captureStderr(t, func() {
		stdout = captureStdout(t, func() {
			err = Execute(context.Background(), args)
		})
	})
	return stdout, stderr, err
}

// isolateEnv clears TrackVia settings from the environment and gives the test
// its own keyring and config directory.
func isolateEnv(t *testing.T) keyring.Keyring {
	t.Helper()
	for _, key := range []string{
		config.EnvUserKey, config.EnvToken, config.EnvRefreshToken, config.EnvBaseURL, config.EnvProfile,
		envUsername, envPassword,
	} {
		t.Setenv(key, "")
	}
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	t.Setenv("HOME", dir)
	t.Setenv(envOutput, "text")

	ring := keyring.NewArrayKeyring(nil)
	t.Cleanup(config.SetOpenKeyring(func(keyring.Config) (keyring.Keyring, error) {
		return ring, nil
	}))
	return ring
}

// setupTestServer starts a fake TrackVia service and points the environment
// credentials at it.
func setupTestServer(t *testing.T) *apitest.Server {
	t.Helper()
	isolateEnv(t)
	srv := apitest.New(t)
	t.Setenv(config.EnvUserKey, apitest.UserKey)
	t.Setenv(config.EnvBaseURL, srv.URL)
	return srv
}

// addPaymentViews serves the payments view and the views the default link
// rules point at.
func addPaymentViews(srv *apitest.Server, payments ...map[string]any) {
	srv.AddView(1719, "Payments", "Accounting", payments...)
	srv.AddView(1361, "Counter Tickets", "Front Desk",
		map[string]any{"id": 501, "Ticket Number": "C10001"},
	)
	srv.AddView(1837, "ToQBO Reoccurring Charges", "Accounting",
		map[string]any{"id": 601, "Charge Ref": "M30003"},
	)
	srv.AddView(1358, "Site Visits", "Field",
		map[string]any{"id": 701, "Visit Number": "400004"},
	)
}

func payment(id int64, reference string) map[string]any {
	return map[string]any{"id": id, "Payment Reference": reference}
}
