package core

import (
	"fmt"
	"strconv"
	"strings"
)

// PSMIDSeparator splits a Percolator PSMId into <prefix>_<file-index>_<scan>[_...]
const PSMIDSeparator = "_"

// PSMID is the decoded composite identifier of a PSM.
type PSMID struct {
	Prefix    string
	FileIndex int
	Scan      int
}

// ParsePSMID decodes a composite PSMId. Only the first three fields are
// interpreted; any trailing fields (charge, rank, ...) are ignored.
func ParsePSMID(id string) (PSMID, error) {
	parts := strings.Split(id, PSMIDSeparator)
	if len(parts) < 3 {
		return PSMID{}, &FormatError{Field: "PSMId", Value: id,
			Err: fmt.Errorf("expected at least 3 %q-separated fields, got %d", PSMIDSeparator, len(parts))}
	}

	fileIndex, err := strconv.Atoi(parts[1])
	if err != nil {
		return PSMID{}, &FormatError{Field: "PSMId", Value: id, Err: fmt.Errorf("invalid file index: %w", err)}
	}
	scan, err := strconv.Atoi(parts[2])
	if err != nil {
		return PSMID{}, &FormatError{Field: "PSMId", Value: id, Err: fmt.Errorf("invalid scan number: %w", err)}
	}

	return PSMID{Prefix: parts[0], FileIndex: fileIndex, Scan: scan}, nil
}

// Identification is one parsed row of a PSM table.
type Identification struct {
	ID      PSMID
	RawID   string
	QValue  float64
	Peptide string // as reported, flanking residues and mass tokens included
}
