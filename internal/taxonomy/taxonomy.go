// Package taxonomy loads the theme→subtheme vocabulary that mentions are
// labeled against. The taxonomy is configuration: it is serialized verbatim
// into the oracle prompt and consulted by the quality gate for the catch-all
// theme.
package taxonomy

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultMiscTheme is the catch-all theme used when the taxonomy file does
// not name one. Mentions landing here count against the coverage ceiling.
const DefaultMiscTheme = "other"

// Taxonomy maps theme names to their subthemes.
type Taxonomy struct {
	Themes    map[string][]string `yaml:"themes" json:"themes"`
	MiscTheme string              `yaml:"misc_theme" json:"-"`
}

// Load reads and validates a taxonomy document. A missing or unparseable
// file is a configuration error: the pipeline must refuse to start rather
// than extract against an empty vocabulary.
func Load(path string) (*Taxonomy, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading taxonomy %s: %w", path, err)
	}
	var t Taxonomy
	if err := yaml.Unmarshal(b, &t); err != nil {
		return nil, fmt.Errorf("parsing taxonomy %s: %w", path, err)
	}
	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("taxonomy %s: %w", path, err)
	}
	if t.MiscTheme == "" {
		t.MiscTheme = DefaultMiscTheme
	}
	return &t, nil
}

// Validate checks that the vocabulary is usable.
func (t *Taxonomy) Validate() error {
	if len(t.Themes) == 0 {
		return fmt.Errorf("no themes defined")
	}
	for name := range t.Themes {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("empty theme name")
		}
	}
	return nil
}

// JSON renders the themes map for inclusion in the oracle prompt.
func (t *Taxonomy) JSON() string {
	b, _ := json.Marshal(t.Themes)
	return string(b)
}

// HasTheme reports whether name is a known theme (case-insensitive).
func (t *Taxonomy) HasTheme(name string) bool {
	name = strings.ToLower(strings.TrimSpace(name))
	for theme := range t.Themes {
		if strings.ToLower(theme) == name {
			return true
		}
	}
	return false
}
