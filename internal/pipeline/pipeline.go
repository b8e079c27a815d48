// Package pipeline runs the batch extraction flow: segment each dialogue,
// build windows, call the extraction oracle per window, then deduplicate
// and gate the complete mention set. Dialogues are independent and run on
// a bounded worker pool; windows within one dialogue always run in order.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/callsift/callsift/internal/dedup"
	"github.com/callsift/callsift/internal/embed"
	"github.com/callsift/callsift/internal/extract"
	"github.com/callsift/callsift/internal/logger"
	"github.com/callsift/callsift/internal/quality"
	"github.com/callsift/callsift/internal/taxonomy"
	"github.com/callsift/callsift/internal/transcript"
	"github.com/callsift/callsift/internal/window"
)

// Oracle is the extraction backend. The production implementation is
// extract.Client; tests inject fakes.
type Oracle interface {
	Extract(ctx context.Context, dialogID string, w window.Window, tax *taxonomy.Taxonomy) ([]extract.Mention, error)
}

// Dialogue is one transcript to process.
type Dialogue struct {
	ID   string
	Text string
}

// Config holds pipeline tuning knobs.
type Config struct {
	// WholeBudgetTokens is the estimated-token ceiling under which a
	// dialogue's client turns go to the oracle as one whole window.
	WholeBudgetTokens int `yaml:"whole_budget_tokens"`
	// ChunkBudgetTokens sizes each chunked window when the whole budget is
	// exceeded.
	ChunkBudgetTokens int `yaml:"chunk_budget_tokens"`
	// Workers bounds concurrent dialogue processing.
	Workers int `yaml:"workers"`
	// WindowRetries bounds oracle retries per window beyond the first try.
	WindowRetries uint `yaml:"window_retries"`
	// AbortOnWindowFailure aborts the whole run when a window exhausts its
	// retries. When false (default) the window is skipped and the batch
	// simply yields fewer mentions.
	AbortOnWindowFailure bool `yaml:"abort_on_window_failure"`
	// NearDedupThreshold enables the embedding near-duplicate pass when an
	// embedder is configured. Zero means use the default threshold.
	NearDedupThreshold float64 `yaml:"near_dedup_threshold"`

	Quality quality.Config `yaml:"quality"`
}

// DefaultConfig returns the reference budgets and policies.
func DefaultConfig() Config {
	return Config{
		WholeBudgetTokens: 8000,
		ChunkBudgetTokens: 1800,
		Workers:           4,
		WindowRetries:     3,
		Quality:           quality.DefaultConfig(),
	}
}

// Result is one completed batch run. Only completed runs carry a
// trustworthy quality report; aborted runs return an error instead of a
// Result.
type Result struct {
	BatchID        string
	StartedAt      time.Time
	Duration       time.Duration
	DialogCount    int
	WindowCount    int
	SkippedWindows int
	Mentions       []extract.Mention
	Report         quality.Report
	ClientTurns    quality.ClientTurnIndex
}

// Runner executes batch runs.
type Runner struct {
	oracle   Oracle
	embedder embed.Embedder // nil disables the near-duplicate pass
	tax      *taxonomy.Taxonomy
	cfg      Config
}

// NewRunner creates a Runner. The embedder may be nil.
func NewRunner(oracle Oracle, embedder embed.Embedder, tax *taxonomy.Taxonomy, cfg Config) (*Runner, error) {
	if oracle == nil {
		return nil, fmt.Errorf("oracle is required")
	}
	if tax == nil {
		return nil, fmt.Errorf("taxonomy is required")
	}
	if cfg.WholeBudgetTokens <= 0 || cfg.ChunkBudgetTokens <= 0 {
		return nil, fmt.Errorf("token budgets must be positive")
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	return &Runner{oracle: oracle, embedder: embedder, tax: tax, cfg: cfg}, nil
}

type dialogResult struct {
	dialogID    string
	mentions    []extract.Mention
	clientTurns map[int]bool
	windows     int
	skipped     int
	err         error
}

// Run processes all dialogues and returns the gated batch. The dedup and
// gate stages only ever see the complete mention set: if any dialogue
// fails hard (or the context is cancelled), Run returns an error and no
// Result, so a partial batch can never masquerade as a complete one.
func (r *Runner) Run(ctx context.Context, dialogues []Dialogue) (*Result, error) {
	if len(dialogues) == 0 {
		return nil, fmt.Errorf("no dialogues to process")
	}
	// Results are collected per dialogue id; a duplicate would silently
	// shadow another dialogue's mentions.
	seen := make(map[string]bool, len(dialogues))
	for _, d := range dialogues {
		if seen[d.ID] {
			return nil, fmt.Errorf("duplicate dialogue id %q", d.ID)
		}
		seen[d.ID] = true
	}

	started := time.Now()
	batchID := uuid.New().String()
	log := logger.Log.WithBatch(batchID)
	log.WithField("dialogues", len(dialogues)).Info("starting batch run")

	jobs := make(chan Dialogue)
	results := make(chan dialogResult, len(dialogues))

	var wg sync.WaitGroup
	for i := 0; i < r.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for d := range jobs {
				results <- r.processDialogue(ctx, log, d)
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, d := range dialogues {
			select {
			case jobs <- d:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	byDialog := make(map[string]dialogResult, len(dialogues))
	var runErr error
	for res := range results {
		if res.err != nil && runErr == nil {
			runErr = fmt.Errorf("dialogue %s: %w", res.dialogID, res.err)
		}
		byDialog[res.dialogID] = res
	}
	if runErr != nil {
		return nil, runErr
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("run cancelled: %w", err)
	}
	if len(byDialog) != len(dialogues) {
		return nil, fmt.Errorf("incomplete run: %d of %d dialogues processed", len(byDialog), len(dialogues))
	}

	// Deterministic cross-dialogue order before dedup.
	ids := make([]string, 0, len(byDialog))
	for id := range byDialog {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	result := &Result{
		BatchID:     batchID,
		StartedAt:   started,
		DialogCount: len(dialogues),
		ClientTurns: make(quality.ClientTurnIndex, len(dialogues)),
	}
	var all []extract.Mention
	for _, id := range ids {
		res := byDialog[id]
		all = append(all, res.mentions...)
		result.ClientTurns[id] = res.clientTurns
		result.WindowCount += res.windows
		result.SkippedWindows += res.skipped
	}

	preDedup := len(all)
	deduped := dedup.Exact(all)
	if r.embedder != nil {
		deduped = dedup.Near(ctx, r.embedder, deduped, r.cfg.NearDedupThreshold)
	}

	result.Mentions = deduped
	result.Report = quality.Evaluate(deduped, preDedup, result.ClientTurns, r.cfg.Quality)
	result.Duration = time.Since(started)

	log.WithFields(logrus.Fields{
		"mentions":        len(deduped),
		"pre_dedup":       preDedup,
		"skipped_windows": result.SkippedWindows,
		"passed":          result.Report.Passed,
		"duration":        result.Duration.Round(time.Millisecond).String(),
	}).Info("batch run complete")

	return result, nil
}

// processDialogue segments one dialogue, builds its windows, and extracts
// them strictly in window order.
func (r *Runner) processDialogue(ctx context.Context, log *logrus.Entry, d Dialogue) dialogResult {
	res := dialogResult{dialogID: d.ID}

	turns := transcript.Segment(d.Text)
	res.clientTurns = transcript.ClientTurnIDs(turns)

	windows := window.Build(turns, r.cfg.WholeBudgetTokens, r.cfg.ChunkBudgetTokens)
	for _, w := range windows {
		if len(w.Turns) == 0 {
			continue
		}
		res.windows++

		mentions, err := r.extractWindow(ctx, d.ID, w)
		if err != nil {
			if r.cfg.AbortOnWindowFailure || errors.Is(err, context.Canceled) {
				res.err = fmt.Errorf("window %d: %w", w.WindowID, err)
				return res
			}
			res.skipped++
			log.WithError(err).WithFields(logrus.Fields{
				"dialog_id": d.ID,
				"window_id": w.WindowID,
			}).Warn("window skipped after retries")
			continue
		}
		res.mentions = append(res.mentions, mentions...)
	}
	return res
}

// extractWindow calls the oracle with bounded exponential backoff. Client
// errors other than rate limiting are permanent; everything else retries.
func (r *Runner) extractWindow(ctx context.Context, dialogID string, w window.Window) ([]extract.Mention, error) {
	operation := func() ([]extract.Mention, error) {
		mentions, err := r.oracle.Extract(ctx, dialogID, w, r.tax)
		if err != nil {
			var httpErr *extract.HTTPError
			if errors.As(err, &httpErr) {
				if httpErr.StatusCode >= 400 && httpErr.StatusCode < 500 && httpErr.StatusCode != 429 {
					return nil, backoff.Permanent(err)
				}
				// Honor the server's Retry-After before the policy's next try.
				if httpErr.StatusCode == 429 && httpErr.RetryAfter > 0 {
					select {
					case <-time.After(httpErr.RetryAfter):
					case <-ctx.Done():
						return nil, backoff.Permanent(ctx.Err())
					}
				}
			}
			return nil, err
		}
		return mentions, nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(r.cfg.WindowRetries)), ctx)
	return backoff.RetryWithData(operation, policy)
}
