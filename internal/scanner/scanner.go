// Package scanner walks directories and selects files with
// include/exclude glob patterns. Empty includes means "match all";
// excludes always win. Patterns follow fnmatch semantics where *
// crosses directory separators.
package scanner

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/gobwas/glob"
	"github.com/sirupsen/logrus"
)

// Scanner selects files from a set of roots.
type Scanner struct {
	Includes []string
	Excludes []string
	Logger   *logrus.Logger

	includes []glob.Glob
	excludes []glob.Glob
}

func (s *Scanner) logger() *logrus.Logger {
	if s.Logger == nil {
		return logrus.New()
	}

	return s.Logger
}

func (s *Scanner) compile() error {
	var err error

	if s.includes, err = compilePatterns(s.Includes); err != nil {
		return fmt.Errorf("compiling include patterns: %w", err)
	}

	if s.excludes, err = compilePatterns(s.Excludes); err != nil {
		return fmt.Errorf("compiling exclude patterns: %w", err)
	}

	return nil
}

func compilePatterns(patterns []string) ([]glob.Glob, error) {
	compiled := make([]glob.Glob, 0, len(patterns))

	for _, pattern := range patterns {
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("pattern %q: %w", pattern, err)
		}

		compiled = append(compiled, g)
	}

	return compiled, nil
}

// match returns true if the slash-separated relative path should be kept.
func (s *Scanner) match(path string) bool {
	included := len(s.includes) == 0

	for _, g := range s.includes {
		if g.Match(path) {
			included = true

			break
		}
	}

	if !included {
		return false
	}

	for _, g := range s.excludes {
		if g.Match(path) {
			return false
		}
	}

	return true
}

// Scan resolves roots (files or directories) into a deduplicated file
// list. Explicit files bypass filtering; directories are walked
// recursively and filtered. Returns the matched files and the total
// number of candidates scanned.
func (s *Scanner) Scan(roots []string) (files []string, scanned int, err error) {
	if err := s.compile(); err != nil {
		return nil, 0, err
	}

	seen := make(map[string]struct{})

	for _, root := range roots {
		root = filepath.Clean(root)

		info, err := os.Stat(root)
		if err != nil {
			return nil, 0, fmt.Errorf("stat %q: %w", root, err)
		}

		if !info.IsDir() {
			scanned++

			if _, ok := seen[root]; !ok {
				seen[root] = struct{}{}
				files = append(files, root)
			}

			continue
		}

		walked, total, err := s.walk(root)
		if err != nil {
			return nil, 0, err
		}

		scanned += total

		for _, path := range walked {
			if _, ok := seen[path]; ok {
				continue
			}

			seen[path] = struct{}{}
			files = append(files, path)
		}
	}

	s.logger().WithFields(logrus.Fields{
		"scanned": scanned,
		"matched": len(files),
	}).Debug("scan complete")

	return files, scanned, nil
}

func (s *Scanner) walk(root string) (files []string, total int, err error) {
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			return nil
		}

		total++

		if !s.match(filepath.ToSlash(filepath.Clean(path))) {
			return nil
		}

		files = append(files, path)

		return nil
	})
	if err != nil {
		return nil, 0, fmt.Errorf("walking %q: %w", root, err)
	}

	return files, total, nil
}
