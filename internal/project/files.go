package project

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar"
)

// Match reports whether rel (slash-separated, relative to the root) is
// selected by the include and exclude globs.
func (c *Config) Match(rel string) (bool, error) {
	included := false
	for _, pat := range c.Include {
		ok, err := doublestar.Match(pat, rel)
		if err != nil {
			return false, fmt.Errorf("include pattern %q: %w", pat, err)
		}
		if ok {
			included = true
			break
		}
	}
	if !included {
		return false, nil
	}
	for _, pat := range c.Exclude {
		ok, err := doublestar.Match(pat, rel)
		if err != nil {
			return false, fmt.Errorf("exclude pattern %q: %w", pat, err)
		}
		if ok {
			return false, nil
		}
	}
	return true, nil
}

// Files lists the source units of the project as absolute paths, sorted.
func (c *Config) Files() ([]string, error) {
	var out []string
	err := filepath.WalkDir(c.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(c.Root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if d.IsDir() {
			if rel != "." && (d.Name() == "node_modules" || d.Name() == ".git") {
				return filepath.SkipDir
			}
			return nil
		}
		ok, err := c.Match(rel)
		if err != nil {
			return err
		}
		if ok {
			out = append(out, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", c.Root, err)
	}
	sort.Strings(out)
	return out, nil
}
