// Package downsample selects whole MGF files from each species directory so
// that every species contributes roughly the same number of spectra.
package downsample

import (
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"path/filepath"
	"sort"

	"github.com/ChrisMcGann/msbench/pkg/fileio"
	"github.com/ChrisMcGann/msbench/pkg/reader/mgf"
	"github.com/bmatcuk/doublestar/v4"
)

// DefaultPattern selects the MGF files of a species directory
const DefaultPattern = "*.mgf"

// Options configures Select
type Options struct {
	Root       string // output directory
	NumSpectra int    // per-species target
	Seed       uint64
	Pattern    string
	Encoding   string
	Logger     *slog.Logger
}

// Result describes what was copied for one input directory
type Result struct {
	Dir     string
	Files   []string // copied file names, in selection order
	Spectra int
	Skipped bool
}

// Select shuffles the MGF files of each directory and copies them under
// <Root>/<basename(dir)> until the running spectrum count exceeds NumSpectra.
// A single PCG source seeded with (Seed, Seed) drives every shuffle, in the
// order the directories are given. A directory whose output path already
// exists as a regular file is skipped.
func Select(dirs []string, opts Options) ([]Result, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	pattern := opts.Pattern
	if pattern == "" {
		pattern = DefaultPattern
	}
	if !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("invalid file pattern %q", pattern)
	}
	if opts.Root == "" {
		return nil, fmt.Errorf("output root is required")
	}
	if err := os.MkdirAll(opts.Root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", opts.Root, err)
	}

	rng := rand.New(rand.NewPCG(opts.Seed, opts.Seed))
	var results []Result
	for _, dir := range dirs {
		res := Result{Dir: dir}
		outDir := filepath.Join(opts.Root, filepath.Base(filepath.Clean(dir)))
		if info, err := os.Stat(outDir); err == nil && info.Mode().IsRegular() {
			logger.Warn("Skipping directory", slog.String("dir", dir), slog.String("existing", outDir))
			res.Skipped = true
			results = append(results, res)
			continue
		}
		if err := os.MkdirAll(outDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", outDir, err)
		}

		files, err := doublestar.Glob(os.DirFS(dir), pattern)
		if err != nil {
			return nil, fmt.Errorf("glob error in %s: %w", dir, err)
		}
		sort.Strings(files)
		rng.Shuffle(len(files), func(i, j int) { files[i], files[j] = files[j], files[i] })

		for _, file := range files {
			src := filepath.Join(dir, filepath.FromSlash(file))
			dst := filepath.Join(outDir, filepath.Base(src))
			if err := fileio.CopyFile(src, dst); err != nil {
				return nil, err
			}
			n, err := CountSpectra(src, opts.Encoding)
			if err != nil {
				return nil, err
			}
			logger.Info("Read spectra", slog.Int("spectra", n), slog.String("file", src))
			res.Files = append(res.Files, filepath.Base(src))
			res.Spectra += n
			if res.Spectra > opts.NumSpectra {
				logger.Info("Limit reached", slog.String("dir", dir),
					slog.Int("spectra", res.Spectra), slog.Int("limit", opts.NumSpectra))
				break
			}
		}
		results = append(results, res)
	}

	return results, nil
}

// CountSpectra returns the number of BEGIN IONS records in an MGF file
func CountSpectra(path, encoding string) (int, error) {
	in, err := fileio.Open(path, encoding)
	if err != nil {
		return 0, err
	}
	defer in.Close()

	n := 0
	reader := mgf.NewReader(in, path)
	for reader.Next() {
		n++
	}
	if err := reader.Err(); err != nil {
		return 0, fmt.Errorf("error reading %s: %w", path, err)
	}
	return n, nil
}
