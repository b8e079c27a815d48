// Package report renders a published batch as a Markdown summary for
// operators. The HTTP layer converts it to HTML; the CLI prints it as-is.
package report

import (
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/callsift/callsift/internal/store"
)

const markdownTemplate = `# Mention Extraction Report

**Batch:** {{.BatchID}}
**Published:** {{.CreatedAt}}
**Dialogues:** {{.DialogCount}}
**Gate:** {{if .Passed}}PASSED{{else}}FAILED{{end}}

## Quality

| Metric | Value |
|--------|-------|
| Mentions (after dedup) | {{.TotalMentions}} |
| Mentions (before dedup) | {{.PreDedupCount}} |
| Dedup removed | {{printf "%.1f" .DedupRemovedPct}}% |
| Ambiguous (confidence < 0.6) | {{printf "%.1f" .AmbiguousPct}}% |
| Empty quotes | {{.EmptyQuoteCount}} |
| Non-client mentions | {{.NonClientMentionCount}} |
| Catch-all theme share | {{printf "%.1f" .MiscCategorySharePct}}% |
{{if .Failures}}
## Gate Failures
{{range .Failures}}
- {{.}}{{end}}
{{end}}
## Themes

| Theme | Mentions | Avg. confidence |
|-------|----------|-----------------|
{{- range .Themes}}
| {{.Theme}} | {{.Count}} | {{printf "%.2f" .AvgConf}} |
{{- end}}

## Subthemes

| Theme | Subtheme | Mentions | Avg. confidence |
|-------|----------|----------|-----------------|
{{- range .Subthemes}}
| {{.Theme}} | {{.Subtheme}} | {{.Count}} | {{printf "%.2f" .AvgConf}} |
{{- end}}
`

var tmpl = template.Must(template.New("report").Parse(markdownTemplate))

type reportData struct {
	BatchID               string
	CreatedAt             string
	DialogCount           int
	Passed                bool
	TotalMentions         int
	PreDedupCount         int
	DedupRemovedPct       float64
	AmbiguousPct          float64
	EmptyQuoteCount       int
	NonClientMentionCount int
	MiscCategorySharePct  float64
	Failures              []string
	Themes                []store.ThemeCount
	Subthemes             []store.ThemeCount
}

// Markdown renders a batch and its aggregates as a Markdown document.
func Markdown(b *store.Batch, themes, subthemes []store.ThemeCount, failures []string) (string, error) {
	if b == nil {
		return "", fmt.Errorf("batch is required")
	}
	data := reportData{
		BatchID:               b.ID,
		CreatedAt:             b.CreatedAt.UTC().Format(time.RFC3339),
		DialogCount:           b.DialogCount,
		Passed:                b.Report.Passed,
		TotalMentions:         b.Report.TotalMentions,
		PreDedupCount:         b.Report.PreDedupCount,
		DedupRemovedPct:       b.Report.DedupRemovedPct,
		AmbiguousPct:          b.Report.AmbiguousPct,
		EmptyQuoteCount:       b.Report.EmptyQuoteCount,
		NonClientMentionCount: b.Report.NonClientMentionCount,
		MiscCategorySharePct:  b.Report.MiscCategorySharePct,
		Failures:              failures,
		Themes:                themes,
		Subthemes:             subthemes,
	}

	var sb strings.Builder
	if err := tmpl.Execute(&sb, data); err != nil {
		return "", fmt.Errorf("rendering report: %w", err)
	}
	return sb.String(), nil
}
