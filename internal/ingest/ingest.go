// Package ingest loads raw dialogues from disk. Two sources are supported:
// directories of plain-text transcripts (one dialogue per .txt file, file
// stem as dialog id) and Excel workbooks with one dialogue per row.
package ingest

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/callsift/callsift/internal/pipeline"
)

// FromFile loads a single transcript file as one dialogue. The dialog id is
// the file name without extension.
func FromFile(path string) (pipeline.Dialogue, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return pipeline.Dialogue{}, fmt.Errorf("reading transcript: %w", err)
	}
	return pipeline.Dialogue{
		ID:   dialogID(path),
		Text: string(data),
	}, nil
}

// FromDir loads every .txt file in a directory (non-recursive), sorted by
// dialog id so runs over the same directory are deterministic.
func FromDir(dir string) ([]pipeline.Dialogue, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading transcript directory: %w", err)
	}

	var dialogues []pipeline.Dialogue
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".txt") {
			continue
		}
		d, err := FromFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		if strings.TrimSpace(d.Text) == "" {
			continue
		}
		dialogues = append(dialogues, d)
	}
	if len(dialogues) == 0 {
		return nil, fmt.Errorf("no transcript files found in %s", dir)
	}
	sort.Slice(dialogues, func(i, j int) bool { return dialogues[i].ID < dialogues[j].ID })
	return dialogues, nil
}

// Load dispatches on the path: a directory loads .txt transcripts, an .xlsx
// file loads spreadsheet rows, anything else is treated as one transcript.
func Load(path string) ([]pipeline.Dialogue, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat input: %w", err)
	}
	if info.IsDir() {
		return FromDir(path)
	}
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		return FromExcel(path)
	}
	d, err := FromFile(path)
	if err != nil {
		return nil, err
	}
	return []pipeline.Dialogue{d}, nil
}

func dialogID(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
