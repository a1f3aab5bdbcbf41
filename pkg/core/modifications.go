// Package core provides modification notation tables and translation
package core

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strings"
)

// Modification kinds accepted by ModTable.LoadFromCSV
const (
	ModInternal = "internal"
	ModTerminal = "terminal"
)

// ModTable maps modification tokens of one notation (Tide) onto another
// (Casanovo). Internal tokens are substituted in place; a terminal token is
// removed and its replacement prepended to the peptide. Replacements are fixed
// strings, never computed from the mass value.
type ModTable struct {
	internal map[string]string
	terminal map[string]string
	replacer *strings.Replacer
}

// NewModTable creates an empty modification table
func NewModTable() *ModTable {
	return &ModTable{
		internal: make(map[string]string),
		terminal: make(map[string]string),
	}
}

// AddInternal registers an in-place substitution.
func (t *ModTable) AddInternal(from, to string) error {
	if err := t.checkKey(from); err != nil {
		return err
	}
	t.internal[from] = to
	t.replacer = nil
	return nil
}

// AddTerminal registers a terminal token and the prefix that replaces it.
func (t *ModTable) AddTerminal(from, to string) error {
	if err := t.checkKey(from); err != nil {
		return err
	}
	t.terminal[from] = to
	return nil
}

// checkKey rejects empty keys and keys overlapping any registered key, so that
// substitution results never depend on table order.
func (t *ModTable) checkKey(key string) error {
	if key == "" {
		return fmt.Errorf("empty modification token")
	}
	for _, m := range []map[string]string{t.internal, t.terminal} {
		for other := range m {
			if other == key {
				return fmt.Errorf("duplicate modification token %q", key)
			}
			if overlaps(key, other) {
				return fmt.Errorf("modification token %q overlaps %q", key, other)
			}
		}
	}
	return nil
}

// overlaps reports whether a and b can share characters in some string.
func overlaps(a, b string) bool {
	if strings.Contains(a, b) || strings.Contains(b, a) {
		return true
	}
	n := min(len(a), len(b))
	for k := 1; k < n; k++ {
		if a[len(a)-k:] == b[:k] || b[len(b)-k:] == a[:k] {
			return true
		}
	}
	return false
}

// LoadFromCSV loads tokens from a CSV file (format: kind,from,to)
func (t *ModTable) LoadFromCSV(r io.Reader) error {
	scanner := bufio.NewScanner(r)

	// Skip header line
	scanner.Scan()

	lineNum := 1
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		parts := strings.Split(line, ",")
		if len(parts) != 3 {
			return &FormatError{Line: lineNum, Value: line, Err: fmt.Errorf("expected 3 comma-separated fields (kind,from,to)")}
		}
		kind := strings.TrimSpace(parts[0])
		from := strings.TrimSpace(parts[1])
		to := strings.TrimSpace(parts[2])

		var err error
		switch kind {
		case ModInternal:
			err = t.AddInternal(from, to)
		case ModTerminal:
			err = t.AddTerminal(from, to)
		default:
			err = fmt.Errorf("unknown modification kind %q", kind)
		}
		if err != nil {
			return fmt.Errorf("line %d: %w", lineNum, err)
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading CSV: %w", err)
	}

	return nil
}

// Translate converts a flank-stripped peptide to the target notation. A peptide
// with more than one terminal token is rejected with ErrMultipleTerminalMods.
func (t *ModTable) Translate(peptide string) (string, error) {
	if t.replacer == nil {
		t.replacer = t.buildReplacer()
	}
	peptide = t.replacer.Replace(peptide)

	var token string
	found := 0
	for _, tok := range t.terminalTokens() {
		if c := strings.Count(peptide, tok); c > 0 {
			found += c
			token = tok
		}
	}
	switch {
	case found == 0:
		return peptide, nil
	case found > 1:
		return "", fmt.Errorf("%s: %w", peptide, ErrMultipleTerminalMods)
	}
	return t.terminal[token] + strings.Replace(peptide, token, "", 1), nil
}

func (t *ModTable) buildReplacer() *strings.Replacer {
	keys := make([]string, 0, len(t.internal))
	for k := range t.internal {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([]string, 0, 2*len(keys))
	for _, k := range keys {
		pairs = append(pairs, k, t.internal[k])
	}
	return strings.NewReplacer(pairs...)
}

func (t *ModTable) terminalTokens() []string {
	tokens := make([]string, 0, len(t.terminal))
	for k := range t.terminal {
		tokens = append(tokens, k)
	}
	sort.Strings(tokens)
	return tokens
}

// DefaultModTable returns the Tide to Casanovo translation table.
// It panics if the built-in entries conflict.
func DefaultModTable() *ModTable {
	t := NewModTable()

	// Static and variable residue modifications
	mustAdd(t.AddInternal("C", "C+57.021"))
	mustAdd(t.AddInternal("M[15.9949]", "M+15.995"))
	mustAdd(t.AddInternal("[0.9840]", "+0.984"))

	// N-terminal modifications; the combined carbamylation + ammonia loss entry is fixed text
	mustAdd(t.AddTerminal("[-17.0265]", "-17.027"))
	mustAdd(t.AddTerminal("[42.0106]", "+42.011"))
	mustAdd(t.AddTerminal("[43.0058]", "+43.006"))
	mustAdd(t.AddTerminal("[25.9803]", "+43.006-17.027"))

	return t
}

func mustAdd(err error) {
	if err != nil {
		panic("default modification table: " + err.Error())
	}
}
