package testsupport

import (
	"path/filepath"
	"testing"

	"modelkeep/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// One library root labeled "main" points at <base>/library; the state dir and
// log dir live under the same base.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Library.Roots = map[string]string{
		"main": filepath.Join(base, "library"),
	}
	cfgVal.Server.Bind = "127.0.0.1:0"

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithRoot adds or replaces a library root on the test config.
func WithRoot(label, path string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Library.Roots[label] = path
	}
}

// WithCivitaiKey sets the metadata provider API key on the test config.
func WithCivitaiKey(key string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Civitai.APIKey = key
	}
}

// WithPerPage overrides the default page size on the test config.
func WithPerPage(perPage int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Server.PerPage = perPage
	}
}

// Root returns the directory behind the given base label, failing the test
// when the label is not configured.
func Root(t testing.TB, cfg *config.Config, label string) string {
	t.Helper()

	root, ok := cfg.RootFor(label)
	if !ok {
		t.Fatalf("config has no root labeled %q", label)
	}
	return root
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StateDir)
}
