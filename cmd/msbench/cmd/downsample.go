package cmd

import (
	"log/slog"

	"github.com/ChrisMcGann/msbench/pkg/downsample"
	"github.com/spf13/cobra"
)

// Flags for downsample command
var downsampleRoot string

var downsampleCmd = &cobra.Command{
	Use:   "downsample <mgf-dir>...",
	Short: "Select MGF files so each species has about the same number of spectra",
	Long: `Select from a collection of sets of MGF files so that each set has
approximately the same number of spectra. The MGFs within each set are randomly
permuted and accepted in order until more than the target number of spectra is
reached. Each set is copied to <root>/<set name>; a set whose output path
already exists as a file is skipped.

Examples:
  msbench downsample benchmark/* --root downsampled --num_spectra 50000`,
	Args: cobra.MinimumNArgs(1),
	RunE: runDownsample,
}

func init() {
	rootCmd.AddCommand(downsampleCmd)

	downsampleCmd.Flags().StringVar(&downsampleRoot, "root", "", "Output directory (required)")
	downsampleCmd.Flags().Int("num_spectra", 100000, "Target number of spectra per set")
	downsampleCmd.Flags().Uint64("seed", 7718, "Random number seed")

	downsampleCmd.MarkFlagRequired("root")
}

func runDownsample(cmd *cobra.Command, args []string) error {
	results, err := downsample.Select(args, downsample.Options{
		Root:       downsampleRoot,
		NumSpectra: cfg.Downsample.NumSpectra,
		Seed:       cfg.Seed,
		Encoding:   cfg.Encoding,
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	for _, res := range results {
		if res.Skipped {
			continue
		}
		logger.Info("Selected files", slog.String("dir", res.Dir),
			slog.Int("files", len(res.Files)), slog.Int("spectra", res.Spectra))
	}
	return nil
}
