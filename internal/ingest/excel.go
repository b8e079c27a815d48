package ingest

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/callsift/callsift/internal/pipeline"
)

// FromExcel loads dialogues from the first sheet of a workbook, one row per
// dialogue. Columns are located by header heuristics so exports from
// different tools load without per-file configuration.
func FromExcel(path string) ([]pipeline.Dialogue, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("opening workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("no sheets in workbook")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("reading rows: %w", err)
	}
	if len(rows) <= 1 {
		return nil, fmt.Errorf("no data rows in workbook")
	}

	idIdx, textIdx := locateColumns(rows[0])
	if textIdx == -1 {
		return nil, fmt.Errorf("no transcript column found in header %v", rows[0])
	}

	var dialogues []pipeline.Dialogue
	for i, r := range rows {
		if i == 0 {
			continue
		}
		var id, text string
		if idIdx >= 0 && idIdx < len(r) {
			id = strings.TrimSpace(r[idIdx])
		}
		if textIdx < len(r) {
			text = r[textIdx]
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		if id == "" {
			id = fmt.Sprintf("row-%d", i)
		}
		dialogues = append(dialogues, pipeline.Dialogue{ID: id, Text: text})
	}
	if len(dialogues) == 0 {
		return nil, fmt.Errorf("no dialogues with transcript text in %s", path)
	}
	return dialogues, nil
}

// locateColumns finds the dialog-id and transcript columns by header name.
// Covers English and Russian export headers. Headers containing "id" never
// bind as the transcript column: "dialog_id" is an id, not a dialogue.
func locateColumns(header []string) (idIdx, textIdx int) {
	idIdx, textIdx = -1, -1
	for i, h := range header {
		l := strings.ToLower(strings.TrimSpace(h))
		isText := strings.Contains(l, "transcript") || strings.Contains(l, "dialog") ||
			strings.Contains(l, "text") || strings.Contains(l, "транскриб") ||
			strings.Contains(l, "диалог")
		isID := strings.Contains(l, "id") || strings.Contains(l, "звонк") || strings.Contains(l, "call")
		switch {
		case isText && !strings.Contains(l, "id"):
			if textIdx == -1 {
				textIdx = i
			}
		case isID:
			if idIdx == -1 {
				idIdx = i
			}
		}
	}
	return idIdx, textIdx
}
