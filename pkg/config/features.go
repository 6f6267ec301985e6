package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
)

// ResolveFeatures expands glob patterns (with ** support) relative to root
// into a sorted, de-duplicated list of feature file paths. A pattern naming
// an existing file or directory is used as is.
func ResolveFeatures(root string, patterns []string) ([]string, error) {
	seen := make(map[string]bool)
	var out []string
	add := func(p string) {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}

	for _, pattern := range patterns {
		if !doublestar.ValidatePattern(filepath.ToSlash(pattern)) {
			return nil, fmt.Errorf("invalid feature pattern %q", pattern)
		}

		full := pattern
		if !filepath.IsAbs(full) {
			full = filepath.Join(root, pattern)
		}
		if info, err := os.Stat(full); err == nil {
			if info.IsDir() {
				matches, err := doublestar.Glob(os.DirFS(full), "**/*.feature")
				if err != nil {
					return nil, err
				}
				for _, m := range matches {
					add(filepath.Join(full, filepath.FromSlash(m)))
				}
				continue
			}
			add(full)
			continue
		}

		base, rel := doublestar.SplitPattern(filepath.ToSlash(full))
		matches, err := doublestar.Glob(os.DirFS(filepath.FromSlash(base)), rel)
		if err != nil {
			return nil, fmt.Errorf("glob %q: %w", pattern, err)
		}
		for _, m := range matches {
			add(filepath.Join(filepath.FromSlash(base), filepath.FromSlash(m)))
		}
	}

	sort.Strings(out)
	return out, nil
}
