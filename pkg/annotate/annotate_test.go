package annotate

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/ChrisMcGann/msbench/pkg/core"
	"github.com/ChrisMcGann/msbench/pkg/filter"
	"github.com/ChrisMcGann/msbench/pkg/reader/percolator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

const bittyMGF = `BEGIN IONS
TITLE=controllerType=0 controllerNumber=1 scan=2475
PEPMASS=561.798400878906
RTINSECONDS=832.4328
CHARGE=2+
SCANS=2475
100.0757 10
147.1124878 10
1033.7346191 10
END IONS
`

func scanMap(pairs map[int]string) *percolator.ScanMap {
	m := percolator.NewScanMap()
	for scan, peptide := range pairs {
		m.Put(scan, peptide)
	}
	return m
}

func run(t *testing.T, scans *percolator.ScanMap, input string) (string, Stats) {
	t.Helper()
	a := &Annotator{Scans: scans, Logger: quiet}
	var out strings.Builder
	stats, err := a.Run(strings.NewReader(input), "test.mgf", &out)
	require.NoError(t, err)
	return out.String(), stats
}

func TestAnnotateExample(t *testing.T) {
	out, stats := run(t, scanMap(map[int]string{2475: "VVQEQGTHPK"}), bittyMGF)

	want := strings.Replace(bittyMGF, "SCANS=2475\n", "SCANS=2475\nSEQ=VQEQGTHP\n", 1)
	assert.Equal(t, want, out)
	assert.Equal(t, 1, stats.Read)
	assert.Equal(t, 1, stats.Printed)
}

func TestAnnotateDottedFlanks(t *testing.T) {
	out, _ := run(t, scanMap(map[int]string{2475: "K.VVQEQGTHPK.A"}), bittyMGF)
	assert.Contains(t, out, "SCANS=2475\nSEQ=VVQEQGTHPK\n")
}

func TestAnnotateSkipsIncomplete(t *testing.T) {
	noCharge := strings.Replace(bittyMGF, "CHARGE=2+\n", "", 1)
	out, stats := run(t, scanMap(map[int]string{2475: "VVQEQGTHPK"}), noCharge)

	assert.Empty(t, out)
	assert.Equal(t, 0, stats.Printed)
	assert.Equal(t, 1, stats.Tally.Count(filter.Incomplete))

	noMass := strings.Replace(bittyMGF, "PEPMASS=561.798400878906\n", "", 1)
	out, _ = run(t, scanMap(map[int]string{2475: "VVQEQGTHPK"}), noMass)
	assert.Empty(t, out)
}

func TestAnnotateSkipsUnmatched(t *testing.T) {
	out, stats := run(t, scanMap(map[int]string{1: "AAAK"}), bittyMGF)
	assert.Empty(t, out)
	assert.Equal(t, 1, stats.Tally.Count(filter.Unmatched))
}

func TestAnnotateKeepsOrderAndLastRecord(t *testing.T) {
	input := "BEGIN IONS\nPEPMASS=1\nCHARGE=2+\nSCANS=3\nEND IONS\n" +
		"BEGIN IONS\nPEPMASS=1\nCHARGE=2+\nSCANS=1\nEND IONS\n" +
		"BEGIN IONS\nPEPMASS=1\nCHARGE=2+\nSCANS=2\n5 5"
	out, stats := run(t, scanMap(map[int]string{1: "KAAAK", 2: "KCCCK", 3: "KDDDK"}), input)

	want := "BEGIN IONS\nPEPMASS=1\nCHARGE=2+\nSCANS=3\nSEQ=DDD\nEND IONS\n" +
		"BEGIN IONS\nPEPMASS=1\nCHARGE=2+\nSCANS=1\nSEQ=AAA\nEND IONS\n" +
		"BEGIN IONS\nPEPMASS=1\nCHARGE=2+\nSCANS=2\nSEQ=CCC\n5 5"
	assert.Equal(t, want, out)
	assert.Equal(t, 3, stats.Printed)
}

func TestAnnotateBadScan(t *testing.T) {
	a := &Annotator{Scans: scanMap(nil), Logger: quiet}
	_, err := a.Run(strings.NewReader("BEGIN IONS\nSCANS=x\nEND IONS\n"), "test.mgf", io.Discard)
	var fe *core.FormatError
	assert.True(t, errors.As(err, &fe), "expected FormatError, got %v", err)
}

// Emitted spectra are exactly the complete records whose scan is mapped.
func TestAnnotateCountProperty(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	for trial := 0; trial < 20; trial++ {
		scans := percolator.NewScanMap()
		var sb strings.Builder
		want := 0
		n := rng.IntN(50)
		for i := 0; i < n; i++ {
			hasCharge, hasMass, mapped := rng.IntN(4) > 0, rng.IntN(4) > 0, rng.IntN(2) == 0
			sb.WriteString("BEGIN IONS\n")
			if hasMass {
				sb.WriteString("PEPMASS=500.1\n")
			}
			if hasCharge {
				sb.WriteString("CHARGE=2+\n")
			}
			fmt.Fprintf(&sb, "SCANS=%d\nEND IONS\n", i)
			if mapped {
				scans.Put(i, "KPEPTIDEK")
			}
			if hasCharge && hasMass && mapped {
				want++
			}
		}

		_, stats := run(t, scans, sb.String())
		assert.Equal(t, want, stats.Printed)
		assert.LessOrEqual(t, stats.Printed, scans.Len())
		assert.LessOrEqual(t, scans.Len(), n)
		assert.Equal(t, n, stats.Read)
	}
}
