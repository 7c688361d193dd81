package ubuntu

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/gobwas/glob"
	"github.com/sirupsen/logrus"
)

type stripper struct {
	globs []glob.Glob
}

func newStripper(patterns []string) (*stripper, error) {
	s := &stripper{}
	for _, p := range patterns {
		g, err := glob.Compile(p, '/')
		if err != nil {
			return nil, fmt.Errorf("invalid strip pattern %q: %w", p, err)
		}
		s.globs = append(s.globs, g)
	}
	return s, nil
}

func (s *stripper) match(rel string) bool {
	for _, g := range s.globs {
		if g.Match(rel) {
			return true
		}
	}
	return false
}

// strip removes every non-directory entry below root whose root-relative
// path matches one of the patterns, and returns how many were removed.
func (s *stripper) strip(root string, logger logrus.FieldLogger) (int, error) {
	removed := 0
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if !s.match(rel) {
			return nil
		}
		if err := os.Remove(path); err != nil {
			return err
		}
		logger.Debugf("Stripped %s", rel)
		removed++
		return nil
	})
	return removed, err
}
