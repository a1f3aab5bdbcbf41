// Package annotate joins confident PSMs to MGF spectra by scan number and
// writes the annotated spectra.
package annotate

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/ChrisMcGann/msbench/pkg/core"
	"github.com/ChrisMcGann/msbench/pkg/filter"
	"github.com/ChrisMcGann/msbench/pkg/reader/mgf"
	"github.com/ChrisMcGann/msbench/pkg/reader/percolator"
)

// Stats summarizes one annotation pass
type Stats struct {
	Read    int
	Printed int
	Tally   filter.Tally
}

// Annotator adds a SEQ line to every complete spectrum whose scan has a PSM.
type Annotator struct {
	Scans  *percolator.ScanMap
	Logger *slog.Logger
}

// Run streams spectra from r to w. Incomplete and unmatched spectra are
// skipped; emitted spectra keep their input order.
func (a *Annotator) Run(r io.Reader, source string, w io.Writer) (Stats, error) {
	logger := a.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var stats Stats
	reader := mgf.NewReader(r, source)
	for reader.Next() {
		spec := reader.Spectrum()
		stats.Read++

		reason, err := a.annotate(spec)
		if err != nil {
			return stats, err
		}
		stats.Tally.Add(reason)
		if reason != filter.Keep {
			logger.Debug("Skipping spectrum", slog.String("spectrum", spec.Name()), slog.String("reason", reason.String()))
			continue
		}

		if _, err := spec.WriteTo(w); err != nil {
			return stats, fmt.Errorf("failed to write spectrum %s: %w", spec.Name(), err)
		}
		stats.Printed++
	}
	if err := reader.Err(); err != nil {
		return stats, fmt.Errorf("error reading %s: %w", source, err)
	}

	return stats, nil
}

// annotate inserts SEQ=<flank-stripped peptide> after the SCANS line.
func (a *Annotator) annotate(spec *core.Spectrum) (filter.Reason, error) {
	scan, ok, err := spec.Scan()
	if err != nil {
		return filter.Keep, err
	}
	if !ok {
		return filter.Unmatched, nil
	}
	peptide, ok := a.Scans.Lookup(scan)
	if !ok {
		return filter.Unmatched, nil
	}
	if !spec.Complete() {
		return filter.Incomplete, nil
	}

	_, i, _ := spec.Field(core.FieldScans)
	spec.InsertAfter(i, core.FieldSeq+"="+core.StripFlanks(peptide))
	return filter.Keep, nil
}
