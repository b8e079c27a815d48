package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/mark3labs/mcp-go/server"

	"github.com/callsift/callsift/internal/api"
	"github.com/callsift/callsift/internal/config"
	"github.com/callsift/callsift/internal/embed"
	"github.com/callsift/callsift/internal/extract"
	"github.com/callsift/callsift/internal/ingest"
	"github.com/callsift/callsift/internal/mcp"
	"github.com/callsift/callsift/internal/pipeline"
	"github.com/callsift/callsift/internal/quality"
	"github.com/callsift/callsift/internal/report"
	"github.com/callsift/callsift/internal/store"
	"github.com/callsift/callsift/internal/taxonomy"
)

const version = "0.1.0"

func main() {
	// Best effort; a missing .env is fine.
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(0)
	}

	switch os.Args[1] {
	case "run":
		if err := runRun(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "serve":
		if err := runServe(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "mcp":
		if err := runMCP(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "quality":
		if err := runQuality(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "stats":
		if err := runStats(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "config":
		if err := runConfig(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "version", "--version", "-v":
		fmt.Printf("callsift %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

// cliFlags is the shared flag set; each subcommand reads the subset it cares
// about.
type cliFlags struct {
	input       string
	configPath  string
	oracle      string
	embed       string
	dbPath      string
	taxonomy    string
	workers     int
	port        int
	abortOnFail bool
	allowFailed bool
	noSave      bool
}

func parseFlags(args []string) (cliFlags, error) {
	var f cliFlags

	needValue := func(i int, name string) (string, error) {
		if i+1 >= len(args) {
			return "", fmt.Errorf("flag %s requires a value", name)
		}
		return args[i+1], nil
	}

	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "--input" || arg == "-i":
			v, err := needValue(i, arg)
			if err != nil {
				return f, err
			}
			f.input = v
			i++
		case arg == "--config":
			v, err := needValue(i, arg)
			if err != nil {
				return f, err
			}
			f.configPath = v
			i++
		case arg == "--oracle":
			v, err := needValue(i, arg)
			if err != nil {
				return f, err
			}
			f.oracle = v
			i++
		case arg == "--embed":
			v, err := needValue(i, arg)
			if err != nil {
				return f, err
			}
			f.embed = v
			i++
		case arg == "--db":
			v, err := needValue(i, arg)
			if err != nil {
				return f, err
			}
			f.dbPath = v
			i++
		case arg == "--taxonomy" || arg == "-t":
			v, err := needValue(i, arg)
			if err != nil {
				return f, err
			}
			f.taxonomy = v
			i++
		case arg == "--workers":
			v, err := needValue(i, arg)
			if err != nil {
				return f, err
			}
			n, convErr := strconv.Atoi(v)
			if convErr != nil || n <= 0 {
				return f, fmt.Errorf("invalid --workers value: %q", v)
			}
			f.workers = n
			i++
		case arg == "--port" || arg == "-p":
			v, err := needValue(i, arg)
			if err != nil {
				return f, err
			}
			n, convErr := strconv.Atoi(v)
			if convErr != nil || n <= 0 {
				return f, fmt.Errorf("invalid --port value: %q", v)
			}
			f.port = n
			i++
		case arg == "--abort-on-failure":
			f.abortOnFail = true
		case arg == "--allow-failed":
			f.allowFailed = true
		case arg == "--no-save" || arg == "-n":
			f.noSave = true
		case strings.HasPrefix(arg, "-"):
			return f, fmt.Errorf("unknown flag: %s", arg)
		default:
			if f.input != "" {
				return f, fmt.Errorf("unexpected argument: %s", arg)
			}
			f.input = arg
		}
	}

	return f, nil
}

func resolve(f cliFlags) (config.ResolvedConfig, error) {
	return config.ResolveConfig(config.ResolveOptions{
		ConfigPath:  f.configPath,
		CLIOracle:   f.oracle,
		CLIEmbed:    f.embed,
		CLIDBPath:   f.dbPath,
		CLITaxonomy: f.taxonomy,
	})
}

func qualityConfig(rc config.ResolvedConfig) quality.Config {
	cfg := quality.DefaultConfig()
	cfg.DedupRemovedMaxPct = rc.DedupRemovedMaxPct.FloatOr(cfg.DedupRemovedMaxPct)
	cfg.MiscShareMaxPct = rc.MiscShareMaxPct.FloatOr(cfg.MiscShareMaxPct)
	cfg.MiscTheme = rc.MiscTheme.Or(cfg.MiscTheme)
	return cfg
}

// openStore opens the publish store; an unset path falls back to the
// store's default location.
func openStore(rc config.ResolvedConfig) (*store.SQLiteStore, error) {
	return store.Open(store.Config{DBPath: rc.DBPath.Or("")})
}

func runRun(args []string) error {
	f, err := parseFlags(args)
	if err != nil {
		return err
	}
	if f.input == "" {
		return fmt.Errorf("usage: callsift run <path> [--oracle provider/model] [--embed provider/model] [--taxonomy file] [--workers N] [--abort-on-failure] [--no-save]")
	}

	rc, err := resolve(f)
	if err != nil {
		return err
	}

	taxPath := rc.Taxonomy.Or("")
	if taxPath == "" {
		return fmt.Errorf("taxonomy is required (--taxonomy, CALLSIFT_TAXONOMY, or config file)")
	}
	tax, err := taxonomy.Load(taxPath)
	if err != nil {
		return err
	}

	oracleFlag := rc.Oracle.Or("")
	if oracleFlag == "" {
		return fmt.Errorf("oracle is required (--oracle, CALLSIFT_ORACLE, or config file)")
	}
	oracleCfg, err := extract.ParseOracleFlag(oracleFlag)
	if err != nil {
		return err
	}
	oracle, err := extract.NewClient(oracleCfg)
	if err != nil {
		return err
	}

	// The near-duplicate pass only runs when an embedder is configured.
	var embedder embed.Embedder
	if embedFlag := rc.Embed.Or(""); embedFlag != "" {
		embedCfg, err := embed.ParseEmbedFlag(embedFlag)
		if err != nil {
			return err
		}
		client, err := embed.NewClient(embedCfg)
		if err != nil {
			return err
		}
		embedder = client
	}

	pcfg := pipeline.DefaultConfig()
	pcfg.WholeBudgetTokens = rc.WholeBudgetTokens.IntOr(pcfg.WholeBudgetTokens)
	pcfg.ChunkBudgetTokens = rc.ChunkBudgetTokens.IntOr(pcfg.ChunkBudgetTokens)
	pcfg.Workers = rc.Workers.IntOr(pcfg.Workers)
	pcfg.NearDedupThreshold = rc.NearDedupThreshold.FloatOr(0)
	pcfg.AbortOnWindowFailure = f.abortOnFail
	pcfg.Quality = qualityConfig(rc)
	if f.workers > 0 {
		pcfg.Workers = f.workers
	}

	runner, err := pipeline.NewRunner(oracle, embedder, tax, pcfg)
	if err != nil {
		return err
	}

	dialogues, err := ingest.Load(f.input)
	if err != nil {
		return err
	}
	fmt.Printf("Processing %d dialogue(s) with %s...\n", len(dialogues), oracleFlag)

	result, err := runner.Run(context.Background(), dialogues)
	if err != nil {
		return err
	}

	batch := &store.Batch{
		ID:          result.BatchID,
		CreatedAt:   result.StartedAt,
		DialogCount: result.DialogCount,
		OracleModel: oracleCfg.Model,
		Mentions:    result.Mentions,
		Report:      result.Report,
	}

	if !f.noSave {
		s, err := openStore(rc)
		if err != nil {
			return err
		}
		defer s.Close()
		if err := s.SaveBatch(context.Background(), batch); err != nil {
			return fmt.Errorf("saving batch: %w", err)
		}
		fmt.Printf("Saved batch %s\n", result.BatchID)
	}

	printRunSummary(result, pcfg.Quality)
	return nil
}

func printRunSummary(result *pipeline.Result, qcfg quality.Config) {
	fmt.Println()
	fmt.Printf("Batch:     %s\n", result.BatchID)
	fmt.Printf("Dialogues: %d\n", result.DialogCount)
	fmt.Printf("Windows:   %d (%d skipped)\n", result.WindowCount, result.SkippedWindows)
	fmt.Printf("Mentions:  %d (from %d pre-dedup)\n", result.Report.TotalMentions, result.Report.PreDedupCount)
	fmt.Printf("Duration:  %s\n", result.Duration.Round(time.Millisecond))

	fmt.Println()
	if result.Report.Passed {
		fmt.Println("Quality gate: PASSED")
	} else {
		fmt.Println("Quality gate: FAILED")
		for _, failure := range result.Report.Failures(qcfg) {
			fmt.Printf("  - %s\n", failure)
		}
	}

	data, _ := json.MarshalIndent(result.Report, "", "  ")
	fmt.Println()
	fmt.Println(string(data))
}

func runServe(args []string) error {
	f, err := parseFlags(args)
	if err != nil {
		return err
	}
	rc, err := resolve(f)
	if err != nil {
		return err
	}

	s, err := openStore(rc)
	if err != nil {
		return err
	}
	defer s.Close()

	port := rc.APIPort.IntOr(8080)
	if f.port > 0 {
		port = f.port
	}
	allowFailed := rc.AllowFailedGate.BoolOr(false) || f.allowFailed

	srv := api.NewServer(s, api.Config{
		Port:        port,
		Quality:     qualityConfig(rc),
		AllowFailed: allowFailed,
	})
	return srv.Start()
}

func runMCP(args []string) error {
	f, err := parseFlags(args)
	if err != nil {
		return err
	}
	rc, err := resolve(f)
	if err != nil {
		return err
	}

	s, err := openStore(rc)
	if err != nil {
		return err
	}
	defer s.Close()

	srv := mcp.NewServer(mcp.ServerConfig{
		Store:   s,
		Quality: qualityConfig(rc),
		Version: version,
	})
	return server.ServeStdio(srv)
}

func runQuality(args []string) error {
	f, err := parseFlags(args)
	if err != nil {
		return err
	}
	rc, err := resolve(f)
	if err != nil {
		return err
	}

	s, err := openStore(rc)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx := context.Background()
	br, err := s.LatestReport(ctx)
	if err != nil {
		return err
	}
	if br == nil {
		fmt.Println("No published batch yet.")
		return nil
	}

	batch, err := s.LatestBatch(ctx)
	if err != nil {
		return err
	}
	themes, err := s.ThemeSummary(ctx, br.BatchID)
	if err != nil {
		return err
	}
	subthemes, err := s.SubthemeSummary(ctx, br.BatchID)
	if err != nil {
		return err
	}

	qcfg := qualityConfig(rc)
	md, err := report.Markdown(batch, themes, subthemes, br.Report.Failures(qcfg))
	if err != nil {
		return err
	}
	fmt.Print(md)
	return nil
}

func runStats(args []string) error {
	f, err := parseFlags(args)
	if err != nil {
		return err
	}
	rc, err := resolve(f)
	if err != nil {
		return err
	}

	s, err := openStore(rc)
	if err != nil {
		return err
	}
	defer s.Close()

	stats, err := s.Stats(context.Background())
	if err != nil {
		return err
	}
	data, _ := json.MarshalIndent(stats, "", "  ")
	fmt.Println(string(data))
	return nil
}

func runConfig(args []string) error {
	f, err := parseFlags(args)
	if err != nil {
		return err
	}
	rc, err := resolve(f)
	if err != nil {
		return err
	}
	data, _ := json.MarshalIndent(rc, "", "  ")
	fmt.Println(string(data))
	return nil
}

func printUsage() {
	fmt.Printf(`callsift %s — Mention extraction pipeline for call-center transcripts

Usage:
  callsift <command> [arguments]

Commands:
  run <path>          Run the extraction pipeline over a transcript file,
                      directory of .txt files, or .xlsx export
  serve               Serve the read-only query API over the latest batch
  mcp                 Serve the MCP tool surface on stdio
  quality             Print the latest batch report
  stats               Show publish-store statistics
  config              Print the resolved configuration and value sources
  version             Print version

Run Flags:
  -i, --input <path>      Transcript file, directory, or .xlsx export
  -t, --taxonomy <file>   Theme/subtheme taxonomy YAML
      --oracle <p/m>      Extraction oracle, e.g. openai/gpt-4o-mini
      --embed <p/m>       Embedding model for near-duplicate removal
      --workers <n>       Concurrent dialogues (default: 4)
      --abort-on-failure  Abort the run when a window exhausts retries
  -n, --no-save           Run without persisting the batch

Serve Flags:
  -p, --port <n>          HTTP port (default: 8080)
      --allow-failed      Serve aggregates even when the gate failed

Common Flags:
      --config <file>     Config file (default: ~/.callsift/config.yaml)
      --db <path>         Publish store path (default: ~/.callsift/callsift.db)
  -h, --help              Show this help message
  -v, --version           Print version
`, version)
}
