// Package config resolves configuration from file, environment, and CLI
// flags, in that precedence order. Every resolved value remembers where it
// came from so `callsift config` can explain the effective setup.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type ValueSource string

const (
	SourceUnknown ValueSource = "unknown"
	SourceConfig  ValueSource = "config"
	SourceEnv     ValueSource = "env"
	SourceCLI     ValueSource = "cli"
	SourceDefault ValueSource = "default"
)

type ResolvedValue struct {
	Value  string      `json:"value"`
	Source ValueSource `json:"source"`
	From   string      `json:"from,omitempty"`
}

// IntOr parses the value as an integer, falling back when unset or invalid.
func (v ResolvedValue) IntOr(fallback int) int {
	if n, err := strconv.Atoi(strings.TrimSpace(v.Value)); err == nil {
		return n
	}
	return fallback
}

// FloatOr parses the value as a float, falling back when unset or invalid.
func (v ResolvedValue) FloatOr(fallback float64) float64 {
	if f, err := strconv.ParseFloat(strings.TrimSpace(v.Value), 64); err == nil {
		return f
	}
	return fallback
}

// BoolOr parses the value as a bool, falling back when unset or invalid.
func (v ResolvedValue) BoolOr(fallback bool) bool {
	if b, err := strconv.ParseBool(strings.TrimSpace(v.Value)); err == nil {
		return b
	}
	return fallback
}

// Or returns the value or a fallback when unset.
func (v ResolvedValue) Or(fallback string) string {
	if strings.TrimSpace(v.Value) != "" {
		return v.Value
	}
	return fallback
}

type ResolveOptions struct {
	ConfigPath  string
	CLIOracle   string
	CLIEmbed    string
	CLIDBPath   string
	CLITaxonomy string
}

type ResolvedConfig struct {
	ConfigPath string `json:"config_path"`

	DBPath   ResolvedValue `json:"db_path"`
	Taxonomy ResolvedValue `json:"taxonomy"`
	Oracle   ResolvedValue `json:"oracle"`
	Embed    ResolvedValue `json:"embed"`

	WholeBudgetTokens  ResolvedValue `json:"whole_budget_tokens"`
	ChunkBudgetTokens  ResolvedValue `json:"chunk_budget_tokens"`
	Workers            ResolvedValue `json:"workers"`
	NearDedupThreshold ResolvedValue `json:"near_dedup_threshold"`
	DedupRemovedMaxPct ResolvedValue `json:"dedup_removed_max_pct"`
	MiscShareMaxPct    ResolvedValue `json:"misc_share_max_pct"`
	MiscTheme          ResolvedValue `json:"misc_theme"`
	APIPort            ResolvedValue `json:"api_port"`
	AllowFailedGate    ResolvedValue `json:"allow_failed_gate"`
}

type fileConfig struct {
	DBPath   string `yaml:"db_path"`
	Taxonomy string `yaml:"taxonomy"`
	Oracle   string `yaml:"oracle"`
	Embed    string `yaml:"embed"`
	Pipeline struct {
		WholeBudgetTokens  string `yaml:"whole_budget_tokens"`
		ChunkBudgetTokens  string `yaml:"chunk_budget_tokens"`
		Workers            string `yaml:"workers"`
		NearDedupThreshold string `yaml:"near_dedup_threshold"`
	} `yaml:"pipeline"`
	Quality struct {
		DedupRemovedMaxPct string `yaml:"dedup_removed_max_pct"`
		MiscShareMaxPct    string `yaml:"misc_share_max_pct"`
		MiscTheme          string `yaml:"misc_theme"`
	} `yaml:"quality"`
	API struct {
		Port            string `yaml:"port"`
		AllowFailedGate string `yaml:"allow_failed_gate"`
	} `yaml:"api"`
}

func DefaultConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".callsift", "config.yaml")
}

func ResolveConfig(opts ResolveOptions) (ResolvedConfig, error) {
	path := strings.TrimSpace(opts.ConfigPath)
	if path == "" {
		path = DefaultConfigPath()
	}

	out := ResolvedConfig{ConfigPath: path}

	cfg, err := loadConfig(path)
	if err != nil {
		return out, err
	}

	if cfg != nil {
		apply(&out.DBPath, cfg.DBPath, SourceConfig, path)
		apply(&out.Taxonomy, cfg.Taxonomy, SourceConfig, path)
		apply(&out.Oracle, cfg.Oracle, SourceConfig, path)
		apply(&out.Embed, cfg.Embed, SourceConfig, path)
		apply(&out.WholeBudgetTokens, cfg.Pipeline.WholeBudgetTokens, SourceConfig, path)
		apply(&out.ChunkBudgetTokens, cfg.Pipeline.ChunkBudgetTokens, SourceConfig, path)
		apply(&out.Workers, cfg.Pipeline.Workers, SourceConfig, path)
		apply(&out.NearDedupThreshold, cfg.Pipeline.NearDedupThreshold, SourceConfig, path)
		apply(&out.DedupRemovedMaxPct, cfg.Quality.DedupRemovedMaxPct, SourceConfig, path)
		apply(&out.MiscShareMaxPct, cfg.Quality.MiscShareMaxPct, SourceConfig, path)
		apply(&out.MiscTheme, cfg.Quality.MiscTheme, SourceConfig, path)
		apply(&out.APIPort, cfg.API.Port, SourceConfig, path)
		apply(&out.AllowFailedGate, cfg.API.AllowFailedGate, SourceConfig, path)
	}

	applyEnv(&out.DBPath, "CALLSIFT_DB")
	applyEnv(&out.Taxonomy, "CALLSIFT_TAXONOMY")
	applyEnv(&out.Oracle, "CALLSIFT_ORACLE")
	applyEnv(&out.Embed, "CALLSIFT_EMBED")
	applyEnv(&out.WholeBudgetTokens, "CALLSIFT_WHOLE_BUDGET")
	applyEnv(&out.ChunkBudgetTokens, "CALLSIFT_CHUNK_BUDGET")
	applyEnv(&out.Workers, "CALLSIFT_WORKERS")
	applyEnv(&out.NearDedupThreshold, "CALLSIFT_NEAR_THRESHOLD")
	applyEnv(&out.DedupRemovedMaxPct, "CALLSIFT_DEDUP_MAX_PCT")
	applyEnv(&out.MiscShareMaxPct, "CALLSIFT_MISC_MAX_PCT")
	applyEnv(&out.MiscTheme, "CALLSIFT_MISC_THEME")
	applyEnv(&out.APIPort, "CALLSIFT_API_PORT")
	applyEnv(&out.AllowFailedGate, "CALLSIFT_ALLOW_FAILED_GATE")

	apply(&out.Oracle, opts.CLIOracle, SourceCLI, "--oracle")
	apply(&out.Embed, opts.CLIEmbed, SourceCLI, "--embed")
	apply(&out.DBPath, opts.CLIDBPath, SourceCLI, "--db")
	apply(&out.Taxonomy, opts.CLITaxonomy, SourceCLI, "--taxonomy")

	if out.DBPath.Value != "" {
		out.DBPath.Value = expandUserPath(out.DBPath.Value)
	}
	if out.Taxonomy.Value != "" {
		out.Taxonomy.Value = expandUserPath(out.Taxonomy.Value)
	}

	return out, nil
}

func apply(dst *ResolvedValue, raw string, source ValueSource, from string) {
	v := strings.TrimSpace(raw)
	if v == "" {
		return
	}
	*dst = ResolvedValue{Value: v, Source: source, From: from}
}

func applyEnv(dst *ResolvedValue, envKey string) {
	if v := strings.TrimSpace(os.Getenv(envKey)); v != "" {
		*dst = ResolvedValue{Value: v, Source: SourceEnv, From: envKey}
	}
}

func loadConfig(path string) (*fileConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	var cfg fileConfig
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return &cfg, nil
}

func expandUserPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
