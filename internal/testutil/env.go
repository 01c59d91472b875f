// Package testutil isolates tests from the user's addonkit environment.
package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// SetupTestEnv points HOME and XDG_CONFIG_HOME at a fresh temp directory
// and clears the proxy variables, so tests never read the user's config
// file, dev directory or proxy. It returns the temp directory.
func SetupTestEnv(t *testing.T) string {
	t.Helper()

	tmpDir := t.TempDir()
	home := filepath.Join(tmpDir, "home")
	configHome := filepath.Join(tmpDir, "config")

	t.Setenv("HOME", home)
	t.Setenv("USERPROFILE", home)
	t.Setenv("XDG_CONFIG_HOME", configHome)
	t.Setenv("http_proxy", "")
	t.Setenv("HTTP_PROXY", "")

	for _, dir := range []string{home, configHome} {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			t.Fatalf("failed to create test directory %s: %v", dir, err)
		}
	}
	return tmpDir
}
