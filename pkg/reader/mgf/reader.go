// Package mgf provides a streaming reader for MGF (Mascot Generic Format) spectrum files
package mgf

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ChrisMcGann/msbench/pkg/core"
)

// Reader provides streaming access to MGF records. Lines are returned verbatim,
// including their terminators, so records can be written back unchanged.
type Reader struct {
	br          *bufio.Reader
	source      string
	lineNum     int
	index       int
	pending     string // BEGIN IONS line that opens the next record
	started     bool
	eof         bool
	preamble    []string
	currentSpec *core.Spectrum
	err         error
}

// NewReader creates a new MGF reader. source names the input in errors and diagnostics.
func NewReader(r io.Reader, source string) *Reader {
	return &Reader{
		br:     bufio.NewReaderSize(r, 1<<20),
		source: source,
	}
}

// Next advances to the next record. Returns false when no more records or error.
func (r *Reader) Next() bool {
	r.currentSpec = nil
	if r.err != nil {
		return false
	}

	if !r.started {
		r.started = true
		if !r.skipPreamble() {
			return false
		}
	}
	if r.pending == "" {
		return false
	}

	spec := &core.Spectrum{SourceFile: r.source, Index: r.index}
	spec.AddLine(r.pending)
	r.pending = ""

	for {
		line, ok := r.readLine()
		if !ok {
			break
		}
		if isBegin(line) {
			r.pending = line
			break
		}
		spec.AddLine(line)
	}
	if r.err != nil {
		return false
	}

	r.index++
	r.currentSpec = spec
	return true
}

// Spectrum returns the current record
func (r *Reader) Spectrum() *core.Spectrum {
	return r.currentSpec
}

// Err returns any error encountered during reading
func (r *Reader) Err() error {
	return r.err
}

// Preamble returns the lines that preceded the first BEGIN IONS marker. The
// pipeline never writes them; they let a caller rebuild the input exactly.
func (r *Reader) Preamble() []string {
	return r.preamble
}

// skipPreamble reads up to the first BEGIN IONS line.
func (r *Reader) skipPreamble() bool {
	for {
		line, ok := r.readLine()
		if !ok {
			return false
		}
		if isBegin(line) {
			r.pending = line
			return true
		}
		r.preamble = append(r.preamble, line)
	}
}

func (r *Reader) readLine() (string, bool) {
	if r.eof {
		return "", false
	}
	line, err := r.br.ReadString('\n')
	if err != nil {
		if !errors.Is(err, io.EOF) {
			r.err = fmt.Errorf("%s line %d: %w", r.source, r.lineNum+1, err)
			return "", false
		}
		r.eof = true
		if line == "" {
			return "", false
		}
	}
	r.lineNum++
	return line, true
}

func isBegin(line string) bool {
	return strings.TrimRight(line, "\r\n") == core.BeginIons
}
