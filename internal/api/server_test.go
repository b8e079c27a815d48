package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/callsift/callsift/internal/extract"
	"github.com/callsift/callsift/internal/quality"
	"github.com/callsift/callsift/internal/store"
)

func testServer(t *testing.T, batch *store.Batch) *Server {
	t.Helper()
	s, err := store.Open(store.Config{DBPath: ":memory:"})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })

	if batch != nil {
		if err := s.SaveBatch(context.Background(), batch); err != nil {
			t.Fatal(err)
		}
	}
	return NewServer(s, Config{Quality: quality.DefaultConfig()})
}

func passedBatch() *store.Batch {
	return &store.Batch{
		ID:          "b1",
		DialogCount: 1,
		Mentions: []extract.Mention{
			{DialogID: "d1", TurnID: 1, Label: extract.LabelProblem, Theme: "delivery", Subtheme: "courier", TextQuote: "late again", Confidence: 0.9},
			{DialogID: "d1", TurnID: 2, Label: extract.LabelIdea, Theme: "app", Subtheme: "search", TextQuote: "add filters", Confidence: 0.7},
		},
		Report: quality.Report{TotalMentions: 2, PreDedupCount: 2, Passed: true},
	}
}

func failedBatch() *store.Batch {
	b := passedBatch()
	b.Report.Passed = false
	b.Report.DedupRemovedPct = 3.0
	return b
}

func get(t *testing.T, srv *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("GET", path, nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestGatedEndpointsEmptyStore(t *testing.T) {
	srv := testServer(t, nil)
	for _, path := range []string{"/api/summary/themes", "/api/summary/subthemes", "/api/quotes", "/report", "/api/quality"} {
		rec := get(t, srv, path)
		if rec.Code != http.StatusNotFound {
			t.Errorf("GET %s = %d, want 404", path, rec.Code)
		}
	}
}

func TestGatedEndpointsFailedGate(t *testing.T) {
	srv := testServer(t, failedBatch())
	for _, path := range []string{"/api/summary/themes", "/api/summary/subthemes", "/api/quotes", "/report"} {
		rec := get(t, srv, path)
		if rec.Code != http.StatusConflict {
			t.Errorf("GET %s = %d, want 409", path, rec.Code)
		}
	}

	// The quality report itself is always served.
	rec := get(t, srv, "/api/quality")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /api/quality = %d, want 200", rec.Code)
	}
	var br store.BatchReport
	if err := json.Unmarshal(rec.Body.Bytes(), &br); err != nil {
		t.Fatal(err)
	}
	if br.Report.Passed {
		t.Fatal("report should show passed=false")
	}
}

func TestConflictBodyNamesFailures(t *testing.T) {
	srv := testServer(t, failedBatch())
	rec := get(t, srv, "/api/summary/themes")
	if !strings.Contains(rec.Body.String(), "quality gate not passed") {
		t.Fatalf("conflict body = %s", rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "dedup-rate") {
		t.Fatalf("conflict body should name failed predicate: %s", rec.Body.String())
	}
}

func TestThemesPassedGate(t *testing.T) {
	srv := testServer(t, passedBatch())
	rec := get(t, srv, "/api/summary/themes")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /api/summary/themes = %d, want 200", rec.Code)
	}
	var body struct {
		BatchID string             `json:"batch_id"`
		Themes  []store.ThemeCount `json:"themes"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.BatchID != "b1" || len(body.Themes) != 2 {
		t.Fatalf("body = %+v", body)
	}
}

func TestQuotesFilters(t *testing.T) {
	srv := testServer(t, passedBatch())
	rec := get(t, srv, "/api/quotes?theme=delivery")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /api/quotes = %d", rec.Code)
	}
	var body struct {
		Mentions []extract.Mention `json:"mentions"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if len(body.Mentions) != 1 || body.Mentions[0].TextQuote != "late again" {
		t.Fatalf("mentions = %+v", body.Mentions)
	}
}

func TestReportHTML(t *testing.T) {
	srv := testServer(t, passedBatch())
	rec := get(t, srv, "/report")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /report = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Fatalf("Content-Type = %q", ct)
	}
	if !strings.Contains(rec.Body.String(), "<h1") {
		t.Fatalf("report not rendered as HTML: %s", rec.Body.String()[:100])
	}
}

func TestAllowFailedOverride(t *testing.T) {
	s, err := store.Open(store.Config{DBPath: ":memory:"})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	if err := s.SaveBatch(context.Background(), failedBatch()); err != nil {
		t.Fatal(err)
	}

	srv := NewServer(s, Config{Quality: quality.DefaultConfig(), AllowFailed: true})
	rec := get(t, srv, "/api/summary/themes")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET with override = %d, want 200", rec.Code)
	}
}

func TestHealth(t *testing.T) {
	srv := testServer(t, nil)
	rec := get(t, srv, "/api/health")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /api/health = %d", rec.Code)
	}
}
