package main

import (
	"testing"
)

func TestParseFlags(t *testing.T) {
	f, err := parseFlags([]string{"calls.xlsx", "--oracle", "openai/gpt-4o-mini", "--workers", "8", "--abort-on-failure"})
	if err != nil {
		t.Fatalf("parseFlags() error: %v", err)
	}
	if f.input != "calls.xlsx" {
		t.Errorf("input = %q", f.input)
	}
	if f.oracle != "openai/gpt-4o-mini" {
		t.Errorf("oracle = %q", f.oracle)
	}
	if f.workers != 8 {
		t.Errorf("workers = %d", f.workers)
	}
	if !f.abortOnFail {
		t.Error("abortOnFail not set")
	}
}

func TestParseFlagsInputFlag(t *testing.T) {
	f, err := parseFlags([]string{"-i", "transcripts/", "-t", "taxonomy.yaml", "-n"})
	if err != nil {
		t.Fatal(err)
	}
	if f.input != "transcripts/" || f.taxonomy != "taxonomy.yaml" || !f.noSave {
		t.Fatalf("flags = %+v", f)
	}
}

func TestParseFlagsErrors(t *testing.T) {
	cases := [][]string{
		{"--oracle"},          // missing value
		{"--workers", "zero"}, // non-numeric
		{"--workers", "0"},    // non-positive
		{"--port", "-1"},      // non-positive
		{"--bogus"},           // unknown flag
		{"a.txt", "b.txt"},    // two positional args
	}
	for _, args := range cases {
		if _, err := parseFlags(args); err == nil {
			t.Errorf("parseFlags(%v) should fail", args)
		}
	}
}
