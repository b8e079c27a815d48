package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestResolvePrecedence(t *testing.T) {
	path := writeConfig(t, `
oracle: ollama/from-config
db_path: /tmp/from-config.db
pipeline:
  whole_budget_tokens: "4000"
`)

	t.Setenv("CALLSIFT_ORACLE", "ollama/from-env")

	cfg, err := ResolveConfig(ResolveOptions{
		ConfigPath: path,
		CLIOracle:  "ollama/from-cli",
	})
	if err != nil {
		t.Fatalf("ResolveConfig() error: %v", err)
	}

	if cfg.Oracle.Value != "ollama/from-cli" || cfg.Oracle.Source != SourceCLI {
		t.Fatalf("Oracle = %+v, want CLI to win", cfg.Oracle)
	}
	if cfg.DBPath.Value != "/tmp/from-config.db" || cfg.DBPath.Source != SourceConfig {
		t.Fatalf("DBPath = %+v", cfg.DBPath)
	}
	if cfg.WholeBudgetTokens.IntOr(8000) != 4000 {
		t.Fatalf("WholeBudgetTokens = %+v", cfg.WholeBudgetTokens)
	}
}

func TestResolveEnvOverridesConfig(t *testing.T) {
	path := writeConfig(t, "oracle: ollama/from-config\n")
	t.Setenv("CALLSIFT_ORACLE", "openai/from-env")

	cfg, err := ResolveConfig(ResolveOptions{ConfigPath: path})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Oracle.Value != "openai/from-env" || cfg.Oracle.Source != SourceEnv {
		t.Fatalf("Oracle = %+v, want env to win over config", cfg.Oracle)
	}
	if cfg.Oracle.From != "CALLSIFT_ORACLE" {
		t.Fatalf("From = %q", cfg.Oracle.From)
	}
}

func TestResolveMissingFileIsNotAnError(t *testing.T) {
	cfg, err := ResolveConfig(ResolveOptions{
		ConfigPath: filepath.Join(t.TempDir(), "nope.yaml"),
	})
	if err != nil {
		t.Fatalf("ResolveConfig() error: %v", err)
	}
	if cfg.Oracle.Value != "" {
		t.Fatalf("Oracle = %+v, want empty", cfg.Oracle)
	}
}

func TestResolveBadYAMLFails(t *testing.T) {
	path := writeConfig(t, "oracle: [not\n")
	if _, err := ResolveConfig(ResolveOptions{ConfigPath: path}); err == nil {
		t.Fatal("ResolveConfig() should fail on unparseable YAML")
	}
}

func TestResolvedValueParsers(t *testing.T) {
	if got := (ResolvedValue{Value: "42"}).IntOr(7); got != 42 {
		t.Fatalf("IntOr = %d", got)
	}
	if got := (ResolvedValue{}).IntOr(7); got != 7 {
		t.Fatalf("IntOr fallback = %d", got)
	}
	if got := (ResolvedValue{Value: "0.92"}).FloatOr(0); got != 0.92 {
		t.Fatalf("FloatOr = %v", got)
	}
	if got := (ResolvedValue{Value: "true"}).BoolOr(false); !got {
		t.Fatal("BoolOr = false")
	}
	if got := (ResolvedValue{Value: "x"}).Or("y"); got != "x" {
		t.Fatalf("Or = %q", got)
	}
	if got := (ResolvedValue{}).Or("y"); got != "y" {
		t.Fatalf("Or fallback = %q", got)
	}
}

func TestResolveQualitySection(t *testing.T) {
	path := writeConfig(t, `
quality:
  dedup_removed_max_pct: "0.5"
  misc_share_max_pct: "5.0"
  misc_theme: "прочее"
`)
	cfg, err := ResolveConfig(ResolveOptions{ConfigPath: path})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.DedupRemovedMaxPct.FloatOr(1.0) != 0.5 {
		t.Fatalf("DedupRemovedMaxPct = %+v", cfg.DedupRemovedMaxPct)
	}
	if cfg.MiscShareMaxPct.FloatOr(2.0) != 5.0 {
		t.Fatalf("MiscShareMaxPct = %+v", cfg.MiscShareMaxPct)
	}
	if cfg.MiscTheme.Or("other") != "прочее" {
		t.Fatalf("MiscTheme = %+v", cfg.MiscTheme)
	}
}
