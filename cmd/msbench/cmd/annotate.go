package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/ChrisMcGann/msbench/pkg/annotate"
	"github.com/ChrisMcGann/msbench/pkg/core"
	"github.com/ChrisMcGann/msbench/pkg/fileio"
	"github.com/ChrisMcGann/msbench/pkg/filter"
	"github.com/ChrisMcGann/msbench/pkg/reader/cruxlog"
	"github.com/ChrisMcGann/msbench/pkg/reader/percolator"
	"github.com/spf13/cobra"
)

var annotateCmd = &cobra.Command{
	Use:   "annotate <fdr-threshold> <log-file> <percolator-file> <mgf-file>",
	Short: "Annotate MGF spectra with confident Percolator peptides",
	Long: `Add a SEQ line to every spectrum in an MGF file that was confidently identified
by Percolator, and print the annotated spectra to stdout.

The Crux log is searched for the index assigned to the MGF file in a line like

  INFO: Assigning index <integer> to <file>.

PSM IDs must have the form <foo>_<file-index>_<scan-number>. Only PSMs from that
file index with q-value <= fdr-threshold are used. Spectra without a charge
state or precursor mass are skipped, as are peptides containing pyrrolysine (O)
or selenocysteine (U).

Examples:
  msbench annotate 0.01 crux.log percolator.target.psms.txt run.mgf > run.annotated.mgf`,
	Args: cobra.ExactArgs(4),
	RunE: runAnnotate,
}

var indicesCmd = &cobra.Command{
	Use:   "indices <log-file>",
	Short: "List the file indices assigned in a Crux log",
	Args:  cobra.ExactArgs(1),
	RunE:  runIndices,
}

func init() {
	rootCmd.AddCommand(annotateCmd)
	rootCmd.AddCommand(indicesCmd)
}

func runAnnotate(cmd *cobra.Command, args []string) error {
	threshold, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		return &core.FormatError{Field: "fdr-threshold", Value: args[0], Err: err}
	}
	logFile, percolatorFile, mgfFile := args[1], args[2], args[3]

	// Get the file index from the log file
	fileIndex, err := resolveFileIndex(logFile, mgfFile)
	if err != nil {
		var re *core.ResolutionError
		if errors.As(err, &re) {
			logger.Error("Cannot find file in log", slog.String("file", re.File), slog.String("log", re.Log))
		}
		return err
	}
	logger.Info("File index", slog.Int("index", fileIndex))

	fc := &filter.Config{
		FDRThreshold:     threshold,
		FileIndex:        fileIndex,
		ExcludedResidues: cfg.ExcludedResidues,
	}
	if err := fc.Validate(); err != nil {
		return err
	}

	// Read the Percolator PSMs into a scan map
	scans, err := loadPSMs(percolatorFile, fc)
	if err != nil {
		return err
	}

	in, err := fileio.Open(mgfFile, cfg.Encoding)
	if err != nil {
		return err
	}
	defer in.Close()

	out := bufio.NewWriter(cmd.OutOrStdout())
	annotator := &annotate.Annotator{Scans: scans, Logger: logger}
	stats, err := annotator.Run(in, mgfFile, out)
	if err != nil {
		return err
	}
	if err := out.Flush(); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	attrs := []any{slog.Int("printed", stats.Printed), slog.Int("read", stats.Read)}
	logger.Info("Printed PSMs", append(attrs, stats.Tally.Attrs()...)...)
	return nil
}

func resolveFileIndex(logFile, mgfFile string) (int, error) {
	in, err := fileio.Open(logFile, cfg.Encoding)
	if err != nil {
		return 0, err
	}
	defer in.Close()
	return cruxlog.ResolveFileIndex(in, logFile, mgfFile)
}

func loadPSMs(path string, fc *filter.Config) (*percolator.ScanMap, error) {
	in, err := fileio.Open(path, cfg.Encoding)
	if err != nil {
		return nil, err
	}
	defer in.Close()

	scans, tally, err := percolator.Load(in, path, fc, logger)
	if err != nil {
		return nil, err
	}

	attrs := []any{slog.Int("psms", scans.Len())}
	logger.Info("Read PSMs", append(attrs, tally.Attrs()...)...)
	if n := scans.Overwrites(); n > 0 {
		logger.Warn("Scans with more than one confident PSM; kept the last", slog.Int("scans", n))
	}
	return scans, nil
}

func runIndices(cmd *cobra.Command, args []string) error {
	in, err := fileio.Open(args[0], cfg.Encoding)
	if err != nil {
		return err
	}
	defer in.Close()

	_, assignments, err := cruxlog.ReadFileIndexMap(in, args[0])
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	for _, a := range assignments {
		fmt.Fprintf(out, "%d\t%s\n", a.Index, a.File)
	}
	logger.Info("Read file indices", slog.Int("files", len(assignments)))
	return nil
}
