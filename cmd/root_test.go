package cmd

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "listingwatch.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRootTestPush(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(`{"code":200}`))
	}))
	t.Cleanup(srv.Close)

	path := writeConfig(t, `
targets: https://example.org/foster
window: {start_hour: 8, end_hour: 20, days: [0]}
history: {backend: memory}
logging: {level: error}
notify:
  pushplus:
    token: tok
    endpoint: `+srv.URL+`
`)

	_, err := execute(t, "--config", path, "--test-push")
	require.NoError(t, err)
	assert.Equal(t, int32(1), hits.Load())
}

// TestRootGatedRunExitsCleanly ensures a skipped run is not reported as an error.
func TestRootGatedRunExitsCleanly(t *testing.T) {
	t.Parallel()

	// start == end never opens.
	path := writeConfig(t, `
targets: https://example.org/foster
window: {start_hour: 0, end_hour: 0, days: [0, 1, 2, 3, 4, 5, 6], timezone: UTC}
extraction: {api_key: test-key}
history: {backend: memory}
logging: {level: error}
`)

	_, err := execute(t, "--config", path)
	require.NoError(t, err)
}

func TestRootMissingAPIKeyFails(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
targets: https://example.org/foster
window: {start_hour: 0, end_hour: 0, days: [0]}
history: {backend: memory}
logging: {level: error}
`)

	_, err := execute(t, "--config", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "api_key")
}

func TestRootInvalidConfigFails(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
targets: https://example.org/foster
window: {start_hour: 22, end_hour: 6, days: [0]}
`)

	_, err := execute(t, "--config", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load config")
}

func TestRootRejectsArgs(t *testing.T) {
	t.Parallel()

	_, err := execute(t, "extra")
	require.Error(t, err)
}
