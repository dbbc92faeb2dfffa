package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmcdole/stork/internal/legacy/legacytest"
)

func writeConfig(t *testing.T, legacyURL string) string {
	t.Helper()
	dir := t.TempDir()
	content := fmt.Sprintf(`data_dir: %s
legacy:
  url: %s
  timeout: 2s
cloud:
  available: true
convergence:
  fresh_install_timeout: 300ms
  returning_user_timeout: 200ms
  sub_timeout: 50ms
  sync_screen_timeout: 300ms
  poll_schedule: [10ms, 20ms]
logging:
  file: %s
telemetry:
  enabled: false
`, dir, legacyURL, filepath.Join(dir, "stork.log"))

	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestStartFallsBackToSplash(t *testing.T) {
	cfg := writeConfig(t, "")

	out, err := execute(t, "", "start", "--no-tui", "--config", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "stage: splash")
}

func TestReplicateThenStart(t *testing.T) {
	cfg := writeConfig(t, "")
	records := `[{"kind":"delivery","legacy_id":"d1","owner_id":"u1"},{"kind":"delivery","legacy_id":"d2","owner_id":"u1"}]`

	out, err := execute(t, records, "replicate", "--config", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "replicated 2 records")

	out, err = execute(t, "", "start", "--no-tui", "--config", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "stage: main")

	out, err = execute(t, "", "sync", "--no-tui", "--config", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "found 2 deliveries")

	out, err = execute(t, "", "reset", "--config", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "stage: splash")
}

func TestReplicateRejectsIncompleteRecords(t *testing.T) {
	cfg := writeConfig(t, "")
	_, err := execute(t, `[{"kind":"delivery"}]`, "replicate", "--config", cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "legacy_id")
}

func TestLoginMigrates(t *testing.T) {
	srv := legacytest.NewServer(t)
	srv.AddUser("ana@example.com", "hunter2", "u1",
		legacytest.Profile("p1"),
		legacytest.Delivery("d1", "b1"),
	)
	cfg := writeConfig(t, srv.URL)

	out, err := execute(t, "hunter2\n", "login", "--no-tui", "--email", "ana@example.com", "--config", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "Signed in")
	assert.Contains(t, out, "done")
	assert.Contains(t, out, "stage: main")
	assert.Equal(t, 1, srv.Logouts())

	// Local data is now present
	out, err = execute(t, "", "start", "--no-tui", "--config", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "stage: main")
}

func TestLoginWrongPassword(t *testing.T) {
	srv := legacytest.NewServer(t)
	srv.AddUser("ana@example.com", "hunter2", "u1")
	cfg := writeConfig(t, srv.URL)

	_, err := execute(t, "ana@example.com\nwrong\n", "login", "--no-tui", "--config", cfg)
	require.Error(t, err)
	assert.Equal(t, "Incorrect email or password.", err.Error())
}

func TestResetPassword(t *testing.T) {
	srv := legacytest.NewServer(t)
	cfg := writeConfig(t, srv.URL)

	out, err := execute(t, "ana@example.com\n", "reset-password", "--config", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "Reset link sent to ana@example.com")
	assert.Equal(t, []string{"ana@example.com"}, srv.Resets())
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "", "version")
	require.NoError(t, err)
	assert.Equal(t, "stork dev\n", out)
}
