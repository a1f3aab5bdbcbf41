package cmd

import (
	"fmt"

	"github.com/ChrisMcGann/msbench/pkg/core"
	"github.com/spf13/cobra"
)

var stripFlanks bool

var translateCmd = &cobra.Command{
	Use:   "translate <peptide>...",
	Short: "Translate peptides from Tide to Casanovo modification notation",
	Long: `Print each peptide in Casanovo notation, one per line.

Examples:
  msbench translate 'I[43.0058]IQ[0.9840]N[0.9840]AYK'
  # +43.006IIQ+0.984N+0.984AYK

  msbench translate --strip-flanks 'K.M[15.9949]PEPTIDE.R'`,
	Args: cobra.MinimumNArgs(1),
	RunE: runTranslate,
}

func init() {
	rootCmd.AddCommand(translateCmd)

	translateCmd.Flags().BoolVar(&stripFlanks, "strip-flanks", false, "Remove flanking residues before translating")
	translateCmd.Flags().String("ptm_table", "", "CSV of modification tokens (kind,from,to) replacing the built-in table")
}

func runTranslate(cmd *cobra.Command, args []string) error {
	table, err := loadModTable(cfg.PTMTable)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, peptide := range args {
		if stripFlanks {
			peptide = core.StripFlanks(peptide)
		}
		translated, err := table.Translate(peptide)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, translated)
	}
	return nil
}
