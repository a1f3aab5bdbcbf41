// Package dedup removes peptides shared between species from a benchmark.
//
// A benchmark root holds one subdirectory per species, each containing
// annotated MGF files. Deduplication runs in three phases that never overlap:
// BuildIndex records which species claim each peptide key, Arbitrate assigns
// every key to exactly one species with a seeded random draw, and Rewrite copies
// the collection keeping only the spectra whose peptide went to their species.
package dedup

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
)

// DefaultPattern selects every file of a species directory
const DefaultPattern = "*"

// Species is one species directory and its spectrum files.
type Species struct {
	Name  string
	Dir   string
	Files []string // slash-separated, relative to Dir, sorted
}

// Collection is a benchmark root with its species in name order.
type Collection struct {
	Root    string
	Species []Species
}

// Options are shared by the index and rewrite phases.
type Options struct {
	CollapseIL bool   // treat isoleucine and leucine as the same residue
	Encoding   string // input text encoding label
	Logger     *slog.Logger
}

func (o *Options) logger() *slog.Logger {
	if o.Logger == nil {
		return slog.Default()
	}
	return o.Logger
}

// Discover lists the species directories under root and the files in each that
// match pattern (doublestar syntax, e.g. "*.mgf" or "**/*.mgf.gz"). A peptide
// manifest left by an earlier run is never treated as a spectrum file.
func Discover(root, pattern string) (*Collection, error) {
	if pattern == "" {
		pattern = DefaultPattern
	}
	if !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("invalid file pattern %q", pattern)
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", root, err)
	}

	c := &Collection{Root: root}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		dir := filepath.Join(root, entry.Name())
		files, err := listFiles(dir, pattern)
		if err != nil {
			return nil, err
		}
		c.Species = append(c.Species, Species{Name: entry.Name(), Dir: dir, Files: files})
	}
	sort.Slice(c.Species, func(i, j int) bool {
		return c.Species[i].Name < c.Species[j].Name
	})

	return c, nil
}

func listFiles(dir, pattern string) ([]string, error) {
	fsys := os.DirFS(dir)
	matches, err := doublestar.Glob(fsys, pattern)
	if err != nil {
		return nil, fmt.Errorf("glob error in %s: %w", dir, err)
	}

	var files []string
	for _, m := range matches {
		info, err := fs.Stat(fsys, m)
		if err != nil {
			continue // Skip paths that can't be stat'd
		}
		if info.Mode().IsRegular() && m != PeptideManifest {
			files = append(files, m)
		}
	}
	sort.Strings(files)
	return files, nil
}

// Path returns the on-disk path of one of the species' files
func (s *Species) Path(file string) string {
	return filepath.Join(s.Dir, filepath.FromSlash(file))
}
