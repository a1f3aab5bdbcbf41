package dedup

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/ChrisMcGann/msbench/pkg/core"
	"github.com/ChrisMcGann/msbench/pkg/fileio"
	"github.com/ChrisMcGann/msbench/pkg/filter"
	"github.com/ChrisMcGann/msbench/pkg/reader/mgf"
)

// PeptideManifest is the per-species list of retained peptide keys
const PeptideManifest = "peptides.txt"

// Catalog receives every retained spectrum.
type Catalog interface {
	WriteSpectrum(species, file string, key core.PeptideKey, spec *core.Spectrum) error
}

// RewriteOptions configures the rewrite phase
type RewriteOptions struct {
	Options
	NewRoot    string
	Translator *core.ModTable // nil leaves SEQ values untouched
	Catalog    Catalog        // optional
}

// SpeciesStats summarizes the rewrite of one species
type SpeciesStats struct {
	Species  string
	Peptides int
	Printed  int
	Tally    filter.Tally
}

// Rewrite writes the deduplicated collection under opts.NewRoot: for each
// species a peptide manifest and a copy of every file holding only the spectra
// whose peptide key the species owns, with SEQ translated. A spectrum without
// SEQ, or with a key absent from the assignment, aborts the run with a
// *core.ConsistencyError.
func Rewrite(c *Collection, a *Assignment, opts RewriteOptions) ([]SpeciesStats, error) {
	logger := opts.logger()

	if err := checkDistinctRoots(c.Root, opts.NewRoot); err != nil {
		return nil, err
	}

	var all []SpeciesStats
	for _, sp := range c.Species {
		outDir := filepath.Join(opts.NewRoot, sp.Name)
		if err := os.MkdirAll(outDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", outDir, err)
		}

		stats := SpeciesStats{Species: sp.Name}
		n, err := writeManifest(filepath.Join(outDir, PeptideManifest), a.Keys(sp.Name))
		if err != nil {
			return nil, err
		}
		stats.Peptides = n
		logger.Info("Distinct peptides", slog.String("species", sp.Name), slog.Int("peptides", n))

		logger.Info("Creating cleaned MGFs", slog.String("species", sp.Name))
		for _, file := range sp.Files {
			dst := filepath.Join(outDir, filepath.FromSlash(file))
			kept, lost := stats.Tally.Count(filter.Keep), stats.Tally.Count(filter.LostArbitration)
			if err := rewriteFile(sp, file, dst, a, opts, &stats.Tally); err != nil {
				return nil, err
			}
			logger.Info("Created file", slog.String("file", file),
				slog.Int("printed", stats.Tally.Count(filter.Keep)-kept),
				slog.Int("skipped", stats.Tally.Count(filter.LostArbitration)-lost))
		}
		stats.Printed = stats.Tally.Count(filter.Keep)
		all = append(all, stats)
	}

	return all, nil
}

func rewriteFile(sp Species, file, dst string, a *Assignment, opts RewriteOptions, tally *filter.Tally) (err error) {
	src := sp.Path(file)
	in, err := fileio.Open(src, opts.Encoding)
	if err != nil {
		return err
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Dir(dst), err)
	}
	out, err := fileio.Create(dst)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := out.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", dst, closeErr)
		}
	}()

	reader := mgf.NewReader(in, src)
	for reader.Next() {
		spec := reader.Spectrum()
		keep, key, err := claim(spec, sp.Name, file, a, opts)
		if err != nil {
			return err
		}
		if !keep {
			tally.Add(filter.LostArbitration)
			continue
		}

		if opts.Translator != nil {
			seq, _ := spec.Seq()
			translated, err := opts.Translator.Translate(seq)
			if err != nil {
				return fmt.Errorf("spectrum %s: %w", spec.Name(), err)
			}
			spec.SetField(core.FieldSeq, translated)
		}

		if _, err := spec.WriteTo(out); err != nil {
			return fmt.Errorf("failed to write %s: %w", dst, err)
		}
		if opts.Catalog != nil {
			if err := opts.Catalog.WriteSpectrum(sp.Name, file, key, spec); err != nil {
				return fmt.Errorf("failed to catalog spectrum %s: %w", spec.Name(), err)
			}
		}
		tally.Add(filter.Keep)
	}
	if err := reader.Err(); err != nil {
		return fmt.Errorf("error reading %s: %w", src, err)
	}
	return nil
}

// claim reports whether species owns the peptide of spec.
func claim(spec *core.Spectrum, species, file string, a *Assignment, opts RewriteOptions) (bool, core.PeptideKey, error) {
	seq, ok := spec.Seq()
	if !ok {
		return false, "", &core.ConsistencyError{File: file}
	}
	key := core.NewPeptideKey(seq, opts.CollapseIL)
	owner, ok := a.Lookup(key)
	if !ok {
		return false, key, &core.ConsistencyError{Peptide: seq, Key: string(key), File: file}
	}
	return owner == species, key, nil
}

func writeManifest(path string, keys []core.PeptideKey) (n int, err error) {
	out, err := fileio.Create(path)
	if err != nil {
		return 0, err
	}
	defer func() {
		if closeErr := out.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", path, closeErr)
		}
	}()

	for _, k := range keys {
		if _, err := io.WriteString(out, string(k)+"\n"); err != nil {
			return n, fmt.Errorf("failed to write %s: %w", path, err)
		}
		n++
	}
	return n, nil
}

// checkDistinctRoots refuses to rewrite a collection onto itself, which would
// truncate the inputs while they are being read.
func checkDistinctRoots(oldRoot, newRoot string) error {
	if newRoot == "" {
		return fmt.Errorf("new root is required")
	}
	oldAbs, err := filepath.Abs(oldRoot)
	if err != nil {
		return err
	}
	newAbs, err := filepath.Abs(newRoot)
	if err != nil {
		return err
	}
	if oldAbs == newAbs {
		return fmt.Errorf("new root %s must differ from old root", newRoot)
	}
	return nil
}
