package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/ChrisMcGann/msbench/pkg/core"
	"github.com/ChrisMcGann/msbench/pkg/dedup"
	"github.com/ChrisMcGann/msbench/pkg/filter"
	"github.com/ChrisMcGann/msbench/pkg/writer/sqlite"
	"github.com/spf13/cobra"
)

var (
	// Flags for clean command
	oldRoot string
	newRoot string
)

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Assign every peptide to a single species",
	Long: `Read a benchmark root containing one directory of annotated MGF files per
species, randomly assign each peptide shared between species to one of them, and
write a cleaned copy of the benchmark with modifications in Casanovo notation.

Each species directory of the new root gets a peptides.txt listing the peptides
it kept. The assignment depends only on the input and the seed.

Examples:
  # Clean with the default seed
  msbench clean --old_root annotated --new_root benchmark

  # Treat I and L as the same residue and record a catalog
  msbench clean --old_root annotated --new_root benchmark --i2l --catalog benchmark.db`,
	RunE: runClean,
}

func init() {
	rootCmd.AddCommand(cleanCmd)

	cleanCmd.Flags().StringVar(&oldRoot, "old_root", "", "Root directory of annotated MGFs, one subdirectory per species (required)")
	cleanCmd.Flags().StringVar(&newRoot, "new_root", "", "Root directory of cleaned MGFs (required)")
	cleanCmd.Flags().Bool("i2l", false, "Convert all I to L when comparing peptides")
	cleanCmd.Flags().Uint64("seed", dedup.DefaultSeed, "Random number seed")
	cleanCmd.Flags().String("pattern", dedup.DefaultPattern, "Spectrum file pattern within each species directory")
	cleanCmd.Flags().String("catalog", "", "Write an SQLite catalog of the cleaned benchmark")
	cleanCmd.Flags().String("ptm_table", "", "CSV of modification tokens (kind,from,to) replacing the built-in table")

	cleanCmd.MarkFlagRequired("old_root")
	cleanCmd.MarkFlagRequired("new_root")
}

func runClean(cmd *cobra.Command, args []string) (err error) {
	c, err := dedup.Discover(oldRoot, cfg.MGFPattern)
	if err != nil {
		return err
	}
	logger.Info("Found species", slog.Int("species", len(c.Species)), slog.String("root", oldRoot))

	translator, err := loadModTable(cfg.PTMTable)
	if err != nil {
		return err
	}

	opts := dedup.Options{CollapseIL: cfg.CollapseIL, Encoding: cfg.Encoding, Logger: logger}

	// Phase 1: which species claim each peptide
	idx, err := dedup.BuildIndex(c, opts)
	if err != nil {
		return err
	}

	// Phase 2: one owner per peptide
	a := dedup.Arbitrate(idx, cfg.Seed)
	logger.Info("Assigned peptides", slog.Int("peptides", a.Len()),
		slog.Int("duplicates", a.Duplicates()), slog.Uint64("seed", cfg.Seed))

	// Phase 3: write the cleaned benchmark
	ro := dedup.RewriteOptions{Options: opts, NewRoot: newRoot, Translator: translator}
	var catalog *sqlite.Writer
	if cfg.Catalog != "" {
		catalog, err = sqlite.NewWriter(cfg.Catalog, sqlite.RunInfo{
			OldRoot:    oldRoot,
			NewRoot:    newRoot,
			Seed:       cfg.Seed,
			CollapseIL: cfg.CollapseIL,
		})
		if err != nil {
			return err
		}
		defer func() {
			if err != nil {
				catalog.Abort()
			}
		}()
		ro.Catalog = catalog
		logger.Info("Writing catalog", slog.String("path", cfg.Catalog), slog.String("run", catalog.RunID()))
	}

	stats, err := dedup.Rewrite(c, a, ro)
	if err != nil {
		return err
	}

	var total filter.Tally
	for _, s := range stats {
		logger.Info("Species summary", slog.String("species", s.Species), slog.Int("peptides", s.Peptides),
			slog.Int("printed", s.Printed), slog.Int("skipped", s.Tally.Skipped()))
		total.Merge(&s.Tally)
	}
	logger.Info("Cleaned benchmark", append([]any{slog.String("root", newRoot)}, total.Attrs()...)...)

	if catalog != nil {
		names := make([]string, len(c.Species))
		for i, sp := range c.Species {
			names[i] = sp.Name
		}
		if err := catalog.WriteAssignment(a, names); err != nil {
			return err
		}
		if err := catalog.Finalize(); err != nil {
			return err
		}
	}

	return nil
}

// loadModTable returns the built-in Tide to Casanovo table, or the table in path.
func loadModTable(path string) (*core.ModTable, error) {
	if path == "" {
		return core.DefaultModTable(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open modification table: %w", err)
	}
	defer f.Close()

	t := core.NewModTable()
	if err := t.LoadFromCSV(f); err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}
	return t, nil
}
