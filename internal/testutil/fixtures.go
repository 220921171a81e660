// Package testutil provides test helper utilities for supportbot tests.
package testutil

import (
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/supportbot-dev/supportbot/internal/backend"
	"github.com/supportbot-dev/supportbot/internal/devserver"
)

// TempDir creates a temporary directory with the given files and returns its path.
// Files is a map of relative path -> content. Directories are created as needed.
// The directory is automatically cleaned up when the test finishes.
func TempDir(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()

	for relPath, content := range files {
		absPath := filepath.Join(dir, relPath)
		if err := os.MkdirAll(filepath.Dir(absPath), 0755); err != nil {
			t.Fatalf("creating directory for %s: %v", relPath, err)
		}
		if err := os.WriteFile(absPath, []byte(content), 0644); err != nil {
			t.Fatalf("writing %s: %v", relPath, err)
		}
	}

	return dir
}

// ConfigFiles returns a config.yaml pointing the client at baseURL.
func ConfigFiles(baseURL string) map[string]string {
	return map[string]string{
		"config.yaml": "version: 1\napi_base_url: " + baseURL + "\nrequest_timeout: 5\nlog_level: debug\nevents: true\n",
	}
}

// EnvFile returns a .env file setting the base URL through the legacy
// front-end variable.
func EnvFile(baseURL string) map[string]string {
	return map[string]string{
		".env": "REACT_APP_API_BASE_URL=" + baseURL + "\n",
	}
}

// Server starts the reference backend on an httptest server and returns
// its API base URL. The server is closed when the test finishes.
func Server(t *testing.T, opts ...devserver.Option) string {
	t.Helper()
	srv := httptest.NewServer(devserver.New(opts...).Handler())
	t.Cleanup(srv.Close)
	return srv.URL + "/api"
}

// Client returns a backend client for a fresh reference backend.
func Client(t *testing.T, opts ...devserver.Option) *backend.Client {
	t.Helper()
	return backend.NewClient(Server(t, opts...), backend.WithTimeout(5*time.Second))
}

// UnreachableURL is a base URL nothing listens on.
const UnreachableURL = "http://127.0.0.1:1/api"
