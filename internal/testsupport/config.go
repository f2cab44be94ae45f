package testsupport

import (
	"path/filepath"
	"testing"

	"forager/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.CaseDir = filepath.Join(base, "case")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")

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

// WithPostProcessors replaces the enabled post-processor chain.
func WithPostProcessors(names ...string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Extraction.PostProcessors = append([]string(nil), names...)
	}
}

// WithKFF enables alert tagging against a hash list written to the temp
// directory. Each line is "hash_type,hash,status".
func WithKFF(lines ...string) ConfigOption {
	return func(b *configBuilder) {
		path := filepath.Join(b.baseDir, "kff.csv")
		content := "hash_type,hash,status\n"
		for _, line := range lines {
			content += line + "\n"
		}
		WriteBytes(b.t, path, []byte(content))
		b.cfg.KFF.Enabled = true
		b.cfg.KFF.Path = path
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.CaseDir)
}
