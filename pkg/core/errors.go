package core

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingColumn is wrapped by a FormatError when a required table column is absent.
	ErrMissingColumn = errors.New("missing required column")
	// ErrMultipleTerminalMods is returned when a peptide carries more than one terminal modification token.
	ErrMultipleTerminalMods = errors.New("more than one terminal modification")
)

// FormatError reports malformed input: a bad numeric field, a short row or a missing column.
type FormatError struct {
	Source string // file name, if known
	Line   int    // 1-based line number, 0 if unknown
	Field  string
	Value  string
	Err    error
}

func (e *FormatError) Error() string {
	msg := "format error"
	if e.Source != "" {
		msg += " in " + e.Source
	}
	if e.Line > 0 {
		msg += fmt.Sprintf(" line %d", e.Line)
	}
	if e.Field != "" {
		msg += fmt.Sprintf(": field %s", e.Field)
	}
	if e.Value != "" {
		msg += fmt.Sprintf(" value %q", e.Value)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *FormatError) Unwrap() error {
	return e.Err
}

// ResolutionError means no file index could be resolved for a spectrum file.
type ResolutionError struct {
	File string
	Log  string
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("cannot find %s in %s", e.File, e.Log)
}

// ConsistencyError means a spectrum's peptide key is missing from the global
// species assignment, i.e. the index and rewrite passes did not see the same data.
type ConsistencyError struct {
	Peptide string
	Key     string
	File    string
}

func (e *ConsistencyError) Error() string {
	if e.Peptide == "" {
		return fmt.Sprintf("spectrum without %s annotation in %s", FieldSeq, e.File)
	}
	return fmt.Sprintf("cannot find %s (key %s) from %s", e.Peptide, e.Key, e.File)
}
