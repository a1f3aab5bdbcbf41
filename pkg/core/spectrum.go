// Package core provides the intermediate representation (IR) models shared by the
// msbench readers, annotator and deduplicator.
package core

import (
	"fmt"
	"io"
	"strconv"
	"strings"
)

// MGF field names recognized by the pipeline
const (
	BeginIons   = "BEGIN IONS"
	EndIons     = "END IONS"
	FieldCharge = "CHARGE"
	FieldMass   = "PEPMASS"
	FieldScans  = "SCANS"
	FieldSeq    = "SEQ"
	FieldTitle  = "TITLE"
	FieldRT     = "RTINSECONDS"
)

// Spectrum is one MGF record: every line from a BEGIN IONS marker up to (not
// including) the next one. Lines are kept verbatim, terminators included, so a
// record can be re-emitted byte for byte.
type Spectrum struct {
	Lines []string

	// Set when a line starts with CHARGE / PEPMASS
	HasCharge  bool
	HasPepMass bool

	// Internal tracking
	SourceFile string
	Index      int // 0-based position of the record in its file
}

// Peak represents a single m/z, intensity pair.
type Peak struct {
	MZ        float64
	Intensity float64
}

// Complete reports whether the record carries both a charge and a precursor mass.
func (s *Spectrum) Complete() bool {
	return s.HasCharge && s.HasPepMass
}

// AddLine appends a raw line and updates the completeness flags.
func (s *Spectrum) AddLine(line string) {
	if strings.HasPrefix(line, FieldCharge) {
		s.HasCharge = true
	}
	if strings.HasPrefix(line, FieldMass) {
		s.HasPepMass = true
	}
	s.Lines = append(s.Lines, line)
}

// Field returns the value of the first "NAME=value" line and its line index.
func (s *Spectrum) Field(name string) (string, int, bool) {
	prefix := name + "="
	for i, line := range s.Lines {
		if strings.HasPrefix(line, prefix) {
			return trimEOL(line[len(prefix):]), i, true
		}
	}
	return "", -1, false
}

// Scan returns the SCANS value.
func (s *Spectrum) Scan() (int, bool, error) {
	v, _, ok := s.Field(FieldScans)
	if !ok {
		return 0, false, nil
	}
	scan, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, true, &FormatError{Source: s.SourceFile, Field: FieldScans, Value: v, Err: err}
	}
	return scan, true, nil
}

// Seq returns the SEQ annotation, if any.
func (s *Spectrum) Seq() (string, bool) {
	v, _, ok := s.Field(FieldSeq)
	return v, ok
}

// Title returns the TITLE field or an empty string.
func (s *Spectrum) Title() string {
	v, _, _ := s.Field(FieldTitle)
	return v
}

// Charge parses the first charge of a CHARGE field ("2+", "3-", "2+ and 3+").
func (s *Spectrum) Charge() (int, error) {
	v, _, ok := s.Field(FieldCharge)
	if !ok {
		return 0, fmt.Errorf("no %s field", FieldCharge)
	}
	fields := strings.Fields(v)
	if len(fields) == 0 {
		return 0, &FormatError{Source: s.SourceFile, Field: FieldCharge, Value: v}
	}
	c := fields[0]
	sign := 1
	switch {
	case strings.HasSuffix(c, "+"):
		c = strings.TrimSuffix(c, "+")
	case strings.HasSuffix(c, "-"):
		c = strings.TrimSuffix(c, "-")
		sign = -1
	}
	n, err := strconv.Atoi(c)
	if err != nil {
		return 0, &FormatError{Source: s.SourceFile, Field: FieldCharge, Value: v, Err: err}
	}
	return sign * n, nil
}

// PepMass parses the precursor m/z (first value of PEPMASS).
func (s *Spectrum) PepMass() (float64, error) {
	v, _, ok := s.Field(FieldMass)
	if !ok {
		return 0, fmt.Errorf("no %s field", FieldMass)
	}
	fields := strings.Fields(v)
	if len(fields) == 0 {
		return 0, &FormatError{Source: s.SourceFile, Field: FieldMass, Value: v}
	}
	mz, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return 0, &FormatError{Source: s.SourceFile, Field: FieldMass, Value: v, Err: err}
	}
	return mz, nil
}

// RetentionTime returns RTINSECONDS when present and numeric.
func (s *Spectrum) RetentionTime() *float64 {
	v, _, ok := s.Field(FieldRT)
	if !ok {
		return nil
	}
	rt, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return nil
	}
	return &rt
}

// Peaks parses the unprefixed "m/z intensity" lines.
func (s *Spectrum) Peaks() []Peak {
	var peaks []Peak
	for _, line := range s.Lines {
		if strings.Contains(line, "=") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		mz, err := strconv.ParseFloat(fields[0], 64)
		if err != nil {
			continue
		}
		intensity, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			continue
		}
		peaks = append(peaks, Peak{MZ: mz, Intensity: intensity})
	}
	return peaks
}

// InsertAfter inserts a synthesized line (newline appended) after line i.
func (s *Spectrum) InsertAfter(i int, line string) {
	line += "\n"
	if !strings.HasSuffix(s.Lines[i], "\n") {
		s.Lines[i] += "\n"
	}
	s.Lines = append(s.Lines, "")
	copy(s.Lines[i+2:], s.Lines[i+1:])
	s.Lines[i+1] = line
}

// SetField replaces the value of an existing "NAME=value" line, keeping its
// original line terminator. Returns false if the field is absent.
func (s *Spectrum) SetField(name, value string) bool {
	_, i, ok := s.Field(name)
	if !ok {
		return false
	}
	line := s.Lines[i]
	s.Lines[i] = name + "=" + value + line[len(trimEOL(line)):]
	return true
}

// WriteTo writes the record lines verbatim.
func (s *Spectrum) WriteTo(w io.Writer) (int64, error) {
	var total int64
	for _, line := range s.Lines {
		n, err := io.WriteString(w, line)
		total += int64(n)
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// Name returns a short label for diagnostics: "file#index".
func (s *Spectrum) Name() string {
	return fmt.Sprintf("%s#%d", s.SourceFile, s.Index)
}

func trimEOL(line string) string {
	return strings.TrimRight(line, "\r\n")
}
