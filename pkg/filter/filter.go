// Package filter provides the PSM and spectrum filtering decisions of the
// benchmark pipeline. Filtering never fails: every decision is a Reason that is
// tallied for the diagnostic summary.
package filter

import (
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/ChrisMcGann/msbench/pkg/core"
)

// DefaultExcludedResidues are pyrrolysine and selenocysteine.
const DefaultExcludedResidues = "OU"

// Reason is the outcome of a filtering decision
type Reason int

const (
	Keep            Reason = iota
	NonCanonical           // peptide contains an excluded residue
	WrongFile              // PSM belongs to another input file
	AboveFDR               // q-value exceeds the threshold
	Incomplete             // spectrum lacks CHARGE or PEPMASS
	Unmatched              // spectrum scan has no confident PSM
	LostArbitration        // peptide was assigned to another species
	numReasons
)

var reasonNames = [numReasons]string{
	Keep:            "kept",
	NonCanonical:    "non_canonical",
	WrongFile:       "wrong_file",
	AboveFDR:        "above_fdr",
	Incomplete:      "incomplete",
	Unmatched:       "unmatched",
	LostArbitration: "lost_arbitration",
}

func (r Reason) String() string {
	if r < 0 || r >= numReasons {
		return fmt.Sprintf("reason(%d)", int(r))
	}
	return reasonNames[r]
}

// Config holds PSM filtering configuration
type Config struct {
	FDRThreshold     float64 // Keep PSMs with q-value <= threshold
	FileIndex        int     // Keep PSMs from this input file only
	ExcludedResidues string  // Drop peptides containing any of these residues
}

// Validate checks the filter configuration.
func (c *Config) Validate() error {
	if math.IsNaN(c.FDRThreshold) || c.FDRThreshold < 0 || c.FDRThreshold > 1 {
		return fmt.Errorf("FDR threshold must be within [0,1], got %g", c.FDRThreshold)
	}
	if c.FileIndex < 0 {
		return fmt.Errorf("file index must be non-negative, got %d", c.FileIndex)
	}
	return nil
}

// Apply decides whether a PSM is kept. The residue check comes first so that
// non-canonical peptides are reported whichever file they belong to.
func (c *Config) Apply(id *core.Identification) Reason {
	if c.ExcludedResidues != "" && strings.ContainsAny(id.Peptide, c.ExcludedResidues) {
		return NonCanonical
	}
	if id.ID.FileIndex != c.FileIndex {
		return WrongFile
	}
	// NaN q-values never pass
	if !(id.QValue <= c.FDRThreshold) {
		return AboveFDR
	}
	return Keep
}

// Tally counts filtering outcomes
type Tally struct {
	counts [numReasons]int
}

// Add records one outcome
func (t *Tally) Add(r Reason) {
	if r >= 0 && r < numReasons {
		t.counts[r]++
	}
}

// Count returns the number of outcomes with the given reason
func (t *Tally) Count(r Reason) int {
	if r < 0 || r >= numReasons {
		return 0
	}
	return t.counts[r]
}

// Merge adds the counts of other
func (t *Tally) Merge(other *Tally) {
	for r := range other.counts {
		t.counts[r] += other.counts[r]
	}
}

// Skipped returns the number of non-Keep outcomes
func (t *Tally) Skipped() int {
	total := 0
	for r := Keep + 1; r < numReasons; r++ {
		total += t.counts[r]
	}
	return total
}

// Attrs returns the non-zero counts as log attributes
func (t *Tally) Attrs() []any {
	var attrs []any
	for r := Keep; r < numReasons; r++ {
		if t.counts[r] > 0 {
			attrs = append(attrs, slog.Int(r.String(), t.counts[r]))
		}
	}
	return attrs
}
