package config

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const providerConfigV1 = `
pipelines:
  - id: only
    modules:
      - id: answer
        type: static
        config:
          value: "v1"
`

const providerConfigV2 = `
pipelines:
  - id: only
    modules:
      - id: answer
        type: static
        config:
          value: "v2"
`

type applyRecorder struct {
	mu      sync.Mutex
	configs []*Config
}

func (r *applyRecorder) apply(cfg *Config) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.configs = append(r.configs, cfg)
	return nil
}

func (r *applyRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.configs)
}

func (r *applyRecorder) last() *Config {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.configs) == 0 {
		return nil
	}
	return r.configs[len(r.configs)-1]
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(25 * time.Millisecond)
	}
	return cond()
}

func staticValue(cfg *Config) string {
	if cfg == nil || len(cfg.Pipelines) == 0 || len(cfg.Pipelines[0].Modules) == 0 {
		return ""
	}
	v, _ := cfg.Pipelines[0].Modules[0].Config["value"].(string)
	return v
}

func TestFileProvider_AppliesInitialConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "relay.yaml")
	require.NoError(t, os.WriteFile(path, []byte(providerConfigV1), 0o600))

	rec := &applyRecorder{}
	provider, err := NewFileProvider(path, discardLogger(), rec.apply)
	require.NoError(t, err)
	defer func() { _ = provider.Close() }()

	require.Equal(t, 1, rec.count(), "initial config must be applied synchronously")
	assert.Equal(t, "v1", staticValue(rec.last()))
}

func TestFileProvider_ReloadsOnChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "relay.yaml")
	require.NoError(t, os.WriteFile(path, []byte(providerConfigV1), 0o600))

	rec := &applyRecorder{}
	provider, err := NewFileProvider(path, discardLogger(), rec.apply)
	require.NoError(t, err)
	defer func() { _ = provider.Close() }()

	require.NoError(t, os.WriteFile(path, []byte(providerConfigV2), 0o600))

	require.True(t, waitFor(t, 5*time.Second, func() bool {
		return staticValue(rec.last()) == "v2"
	}), "updated config must be applied after the file changes")
}

func TestFileProvider_KeepsLastKnownGoodOnBadReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "relay.yaml")
	require.NoError(t, os.WriteFile(path, []byte(providerConfigV1), 0o600))

	rec := &applyRecorder{}
	provider, err := NewFileProvider(path, discardLogger(), rec.apply)
	require.NoError(t, err)
	defer func() { _ = provider.Close() }()

	// Invalid YAML must never reach the apply callback.
	require.NoError(t, os.WriteFile(path, []byte("pipelines: ["), 0o600))
	time.Sleep(750 * time.Millisecond)
	assert.Equal(t, 1, rec.count(), "broken config must not be applied")
	assert.Equal(t, "v1", staticValue(rec.last()))

	// A subsequent good write recovers.
	require.NoError(t, os.WriteFile(path, []byte(providerConfigV2), 0o600))
	require.True(t, waitFor(t, 5*time.Second, func() bool {
		return staticValue(rec.last()) == "v2"
	}))
}

func TestFileProvider_RejectsBrokenInitialConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "relay.yaml")
	require.NoError(t, os.WriteFile(path, []byte("not: [valid"), 0o600))

	_, err := NewFileProvider(path, discardLogger(), (&applyRecorder{}).apply)
	require.Error(t, err)
}
