// Package cruxlog extracts input-file indices from a Crux log. Crux numbers its
// input files and encodes the number in every PSMId; the only record of which
// file received which number is a log line of the form
//
//	INFO: Assigning index <integer> to <file>.
package cruxlog

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/ChrisMcGann/msbench/pkg/core"
)

// Assignment is one qualifying log line.
type Assignment struct {
	File  string
	Index int
	Line  int
}

// parseAssignment returns the file name and raw index token of a qualifying line.
func parseAssignment(line string) (name, index string, ok bool) {
	words := strings.Fields(line)
	if len(words) != 6 ||
		words[0] != "INFO:" ||
		words[1] != "Assigning" ||
		words[2] != "index" ||
		words[4] != "to" ||
		!strings.HasSuffix(words[5], ".") {
		return "", "", false
	}
	return strings.TrimSuffix(words[5], "."), words[3], true
}

// ResolveFileIndex scans a log for the index assigned to target. The first
// qualifying line naming target wins; scanning stops there. A log with no such
// line yields a *core.ResolutionError.
func ResolveFileIndex(r io.Reader, logName, target string) (int, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		name, indexStr, ok := parseAssignment(scanner.Text())
		if !ok || name != target {
			continue
		}
		index, err := strconv.Atoi(indexStr)
		if err != nil || index < 0 {
			return 0, &core.FormatError{Source: logName, Line: lineNum, Field: "index", Value: indexStr, Err: err}
		}
		return index, nil
	}
	if err := scanner.Err(); err != nil {
		return 0, fmt.Errorf("error reading %s: %w", logName, err)
	}

	return 0, &core.ResolutionError{File: target, Log: logName}
}

// FileIndexMap maps input file names to the index Crux assigned them.
type FileIndexMap map[string]int

// ReadFileIndexMap collects every assignment in a log. Only the first
// assignment of each file is kept, matching ResolveFileIndex.
func ReadFileIndexMap(r io.Reader, logName string) (FileIndexMap, []Assignment, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	m := make(FileIndexMap)
	var order []Assignment
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		name, indexStr, ok := parseAssignment(scanner.Text())
		if !ok {
			continue
		}
		if _, seen := m[name]; seen {
			continue
		}
		index, err := strconv.Atoi(indexStr)
		if err != nil || index < 0 {
			return nil, nil, &core.FormatError{Source: logName, Line: lineNum, Field: "index", Value: indexStr, Err: err}
		}
		m[name] = index
		order = append(order, Assignment{File: name, Index: index, Line: lineNum})
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, fmt.Errorf("error reading %s: %w", logName, err)
	}

	return m, order, nil
}
