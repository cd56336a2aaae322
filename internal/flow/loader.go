package flow

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/BurntSushi/toml"
	"github.com/bmatcuk/doublestar/v4"
)

// LoadFile parses the TOML flow definition at path. Unknown keys are
// rejected so typos in hand-written definitions fail at load time instead of
// silently producing empty variant fields.
func LoadFile(path string) (*Definition, error) {
	var def Definition
	md, err := toml.DecodeFile(path, &def)
	if err != nil {
		return nil, fmt.Errorf("loading flow %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("loading flow %s: unknown keys: %v", path, keys)
	}
	if def.Name == "" {
		def.Name = filepath.Base(path)
	}
	return &def, nil
}

// Discover returns the flow definition files under root matching any of the
// doublestar glob patterns (e.g. "flows/**/*.toml"). Results are
// deduplicated and sorted so discovery order is stable across runs.
func Discover(root string, patterns []string) ([]string, error) {
	seen := make(map[string]bool)
	var files []string
	for _, pattern := range patterns {
		matches, err := doublestar.FilepathGlob(filepath.Join(root, pattern))
		if err != nil {
			return nil, fmt.Errorf("flow pattern %q: %w", pattern, err)
		}
		for _, m := range matches {
			if !seen[m] {
				seen[m] = true
				files = append(files, m)
			}
		}
	}
	sort.Strings(files)
	return files, nil
}

// LoadAll discovers and parses every flow definition under root matching
// patterns. Definitions are returned in discovery order. A single malformed
// file fails the whole load; partially loaded flow sets are worse than none.
func LoadAll(root string, patterns []string) ([]*Definition, error) {
	files, err := Discover(root, patterns)
	if err != nil {
		return nil, err
	}
	defs := make([]*Definition, 0, len(files))
	for _, f := range files {
		def, err := LoadFile(f)
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	return defs, nil
}
