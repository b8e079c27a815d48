package taxonomy

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "taxonomy.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeTemp(t, `
themes:
  delivery:
    - pickup point
    - courier
  payment:
    - online payment
  other: []
misc_theme: other
`)
	tax, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if len(tax.Themes) != 3 {
		t.Fatalf("got %d themes, want 3", len(tax.Themes))
	}
	if got := tax.Themes["delivery"]; len(got) != 2 || got[0] != "pickup point" {
		t.Fatalf("delivery subthemes = %v", got)
	}
	if tax.MiscTheme != "other" {
		t.Fatalf("MiscTheme = %q, want other", tax.MiscTheme)
	}
	if !tax.HasTheme("Delivery") || tax.HasTheme("unknown") {
		t.Fatal("HasTheme lookup broken")
	}
}

func TestLoadDefaultsMiscTheme(t *testing.T) {
	path := writeTemp(t, "themes:\n  delivery: [courier]\n")
	tax, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if tax.MiscTheme != DefaultMiscTheme {
		t.Fatalf("MiscTheme = %q, want %q", tax.MiscTheme, DefaultMiscTheme)
	}
}

func TestLoadMissingFileFatal(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("Load() on missing file should fail")
	}
}

func TestLoadRejectsEmptyTaxonomy(t *testing.T) {
	path := writeTemp(t, "themes: {}\n")
	if _, err := Load(path); err == nil {
		t.Fatal("Load() should reject a taxonomy with no themes")
	}
}

func TestJSONContainsThemes(t *testing.T) {
	tax := &Taxonomy{Themes: map[string][]string{"delivery": {"courier"}}}
	js := tax.JSON()
	if !strings.Contains(js, `"delivery"`) || !strings.Contains(js, `"courier"`) {
		t.Fatalf("JSON() = %s", js)
	}
}
