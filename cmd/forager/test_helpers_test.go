package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"forager/internal/casedb"
	"forager/internal/config"
	"forager/internal/testsupport"
)

const cookieReport = `<?xml version="1.0" encoding="utf-8"?>
<project reportVersion="5.2.0.0">
  <decodedData>
    <modelType type="Cookie">
      <model type="Cookie" id="k1">
        <field name="Name" type="String"><value type="String">LBSRC</value></field>
        <field name="Value" type="String"><value type="String"><![CDATA["10.0.0.7 "]]></value></field>
        <field name="Domain" type="String"><value type="String">.example.com</value></field>
      </model>
    </modelType>
  </decodedData>
</project>`

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
	baseDir    string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	base := testsupport.BaseDir(cfg)
	t.Setenv("HOME", filepath.Join(base, "home"))

	configPath := filepath.Join(base, "config.toml")
	writeTestConfig(t, configPath, cfg)
	return &cliTestEnv{cfg: cfg, configPath: configPath, baseDir: base}
}

// openStore opens the environment's case database. Close it before running
// commands that write to it.
func (e *cliTestEnv) openStore(t *testing.T) *casedb.Store {
	t.Helper()
	return testsupport.MustOpenStore(t, e.cfg)
}

func (e *cliTestEnv) writeReport(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(e.baseDir, "reports", name)
	testsupport.WriteBytes(t, path, []byte(content))
	return path
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func mustRunCLI(t *testing.T, env *cliTestEnv, args ...string) string {
	t.Helper()
	out, _, err := runCLI(t, args, env.configPath)
	if err != nil {
		t.Fatalf("forager %s: %v", strings.Join(args, " "), err)
	}
	return out
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	content := fmt.Sprintf(
		"[paths]\ncase_dir = %q\nlog_dir = %q\n\n[logging]\nlevel = \"error\"\n",
		cfg.Paths.CaseDir,
		cfg.Paths.LogDir,
	)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}

func casedbFilter(evidenceType string) casedb.Filter {
	return casedb.Filter{Type: evidenceType}
}

func itoa(id int64) string {
	return fmt.Sprintf("%d", id)
}
