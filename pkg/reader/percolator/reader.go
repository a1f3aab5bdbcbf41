// Package percolator provides a streaming reader for Percolator PSM-level tab-delimited output
package percolator

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/ChrisMcGann/msbench/pkg/core"
	"github.com/ChrisMcGann/msbench/pkg/filter"
)

// Required column names
const (
	ColumnPSMID   = "PSMId"
	ColumnQValue  = "q-value"
	ColumnPeptide = "peptide"
)

const maxLineSize = 16 * 1024 * 1024

// Reader provides streaming access to the rows of a PSM table
type Reader struct {
	scanner    *bufio.Scanner
	source     string
	lineNum    int
	psmIDCol   int
	qValueCol  int
	peptideCol int
	minFields  int
	current    *core.Identification
	err        error
}

// NewReader reads the header row and resolves the required columns by name.
func NewReader(r io.Reader, source string) (*Reader, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	reader := &Reader{scanner: scanner, source: source}

	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("failed to read header of %s: %w", source, err)
		}
		return nil, &core.FormatError{Source: source, Line: 1, Err: fmt.Errorf("empty table")}
	}
	reader.lineNum = 1
	header := strings.Split(strings.TrimRight(scanner.Text(), "\r\n"), "\t")

	cols := make([]int, 3)
	for i, name := range []string{ColumnPSMID, ColumnQValue, ColumnPeptide} {
		cols[i] = indexOf(header, name)
		if cols[i] < 0 {
			return nil, &core.FormatError{Source: source, Line: 1, Field: name, Err: core.ErrMissingColumn}
		}
		reader.minFields = max(reader.minFields, cols[i]+1)
	}
	reader.psmIDCol, reader.qValueCol, reader.peptideCol = cols[0], cols[1], cols[2]

	return reader, nil
}

// Next advances to the next row. Returns false when no more rows or error.
func (r *Reader) Next() bool {
	r.current = nil
	if r.err != nil {
		return false
	}

	for r.scanner.Scan() {
		r.lineNum++
		line := strings.TrimRight(r.scanner.Text(), "\r\n")
		if strings.TrimSpace(line) == "" {
			continue
		}

		id, err := r.parseRow(line)
		if err != nil {
			r.err = err
			return false
		}
		r.current = id
		return true
	}

	if err := r.scanner.Err(); err != nil {
		r.err = fmt.Errorf("%s line %d: %w", r.source, r.lineNum+1, err)
	}
	return false
}

// Identification returns the current row
func (r *Reader) Identification() *core.Identification {
	return r.current
}

// Err returns any error encountered during reading
func (r *Reader) Err() error {
	return r.err
}

func (r *Reader) parseRow(line string) (*core.Identification, error) {
	words := strings.Split(line, "\t")
	if len(words) < r.minFields {
		return nil, &core.FormatError{Source: r.source, Line: r.lineNum,
			Err: fmt.Errorf("expected at least %d fields, got %d", r.minFields, len(words))}
	}

	rawID := words[r.psmIDCol]
	psmID, err := core.ParsePSMID(rawID)
	if err != nil {
		return nil, r.locate(err)
	}

	qStr := words[r.qValueCol]
	q, err := strconv.ParseFloat(strings.TrimSpace(qStr), 64)
	if err != nil {
		return nil, &core.FormatError{Source: r.source, Line: r.lineNum, Field: ColumnQValue, Value: qStr, Err: err}
	}

	return &core.Identification{
		ID:      psmID,
		RawID:   rawID,
		QValue:  q,
		Peptide: words[r.peptideCol],
	}, nil
}

// locate adds file and line information to a FormatError
func (r *Reader) locate(err error) error {
	if fe, ok := err.(*core.FormatError); ok {
		fe.Source = r.source
		fe.Line = r.lineNum
		return fe
	}
	return fmt.Errorf("%s line %d: %w", r.source, r.lineNum, err)
}

func indexOf(header []string, name string) int {
	for i, h := range header {
		if h == name {
			return i
		}
	}
	return -1
}

// ScanMap maps scan numbers of one input file to confidently identified peptides.
// A later PSM for an already mapped scan replaces the earlier one (last wins);
// replacements are counted rather than reported as errors.
type ScanMap struct {
	peptides   map[int]string
	overwrites int
}

// NewScanMap creates an empty scan map
func NewScanMap() *ScanMap {
	return &ScanMap{peptides: make(map[int]string)}
}

// Put maps scan to peptide and reports whether an earlier mapping was replaced.
func (m *ScanMap) Put(scan int, peptide string) bool {
	_, exists := m.peptides[scan]
	m.peptides[scan] = peptide
	if exists {
		m.overwrites++
	}
	return exists
}

// Lookup returns the peptide mapped to scan
func (m *ScanMap) Lookup(scan int) (string, bool) {
	p, ok := m.peptides[scan]
	return p, ok
}

// Len returns the number of mapped scans
func (m *ScanMap) Len() int {
	return len(m.peptides)
}

// Overwrites returns how many mappings were replaced by a later PSM
func (m *ScanMap) Overwrites() int {
	return m.overwrites
}

// Load reads a PSM table and returns the scan map of the PSMs that pass cfg.
func Load(r io.Reader, source string, cfg *filter.Config, logger *slog.Logger) (*ScanMap, *filter.Tally, error) {
	if logger == nil {
		logger = slog.Default()
	}

	reader, err := NewReader(r, source)
	if err != nil {
		return nil, nil, err
	}

	scans := NewScanMap()
	tally := &filter.Tally{}
	for reader.Next() {
		id := reader.Identification()
		reason := cfg.Apply(id)
		tally.Add(reason)

		switch reason {
		case filter.NonCanonical:
			logger.Warn("Skipping peptide with non-canonical amino acid", slog.String("peptide", id.Peptide))
		case filter.Keep:
			if scans.Put(id.ID.Scan, id.Peptide) {
				logger.Debug("Replacing earlier PSM for scan", slog.Int("scan", id.ID.Scan), slog.String("peptide", id.Peptide))
			}
		}
	}
	if err := reader.Err(); err != nil {
		return nil, nil, err
	}

	return scans, tally, nil
}
