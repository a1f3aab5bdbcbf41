package percolator

import (
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/ChrisMcGann/msbench/pkg/core"
	"github.com/ChrisMcGann/msbench/pkg/filter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func filterFor(index int, threshold float64) *filter.Config {
	return &filter.Config{FDRThreshold: threshold, FileIndex: index, ExcludedResidues: filter.DefaultExcludedResidues}
}

func TestLoadExample(t *testing.T) {
	table := "PSMId\tproteinIds\tq-value\tpeptide\n" +
		"xyz_2_2475\tProtein\t0.5\tVVQEQGTHPK\n"

	scans, tally, err := Load(strings.NewReader(table), "psms.txt", filterFor(2, 0.6), quiet)
	require.NoError(t, err)

	peptide, ok := scans.Lookup(2475)
	require.True(t, ok)
	assert.Equal(t, "VVQEQGTHPK", peptide)
	assert.Equal(t, 1, scans.Len())
	assert.Equal(t, 1, tally.Count(filter.Keep))
}

func TestLoadColumnOrderIndependent(t *testing.T) {
	table := "peptide\tscore\tq-value\tPSMId\n" +
		"K.PEPTIDEK.A\t3.2\t0.001\ttarget_0_10_2_1\n"

	scans, _, err := Load(strings.NewReader(table), "psms.txt", filterFor(0, 0.01), quiet)
	require.NoError(t, err)

	peptide, ok := scans.Lookup(10)
	require.True(t, ok)
	assert.Equal(t, "K.PEPTIDEK.A", peptide)
}

func TestLoadFiltering(t *testing.T) {
	table := strings.Join([]string{
		"PSMId\tq-value\tpeptide",
		"t_1_100\t0.001\tK.AAAK.A",
		"t_1_101\t0.02\tK.CCCK.A",  // above FDR
		"t_2_102\t0.001\tK.DDDK.A", // other file
		"t_1_103\t0.001\tK.UUUK.A", // selenocysteine
		"t_1_104\t0.001\tK.OOOK.A", // pyrrolysine
		"",
		"t_1_105\t0.01\tK.EEEK.A",
	}, "\n")

	scans, tally, err := Load(strings.NewReader(table), "psms.txt", filterFor(1, 0.01), quiet)
	require.NoError(t, err)

	assert.Equal(t, 2, scans.Len())
	assert.Equal(t, 2, tally.Count(filter.Keep))
	assert.Equal(t, 1, tally.Count(filter.AboveFDR))
	assert.Equal(t, 1, tally.Count(filter.WrongFile))
	assert.Equal(t, 2, tally.Count(filter.NonCanonical))
	for _, scan := range []int{101, 102, 103, 104} {
		_, ok := scans.Lookup(scan)
		assert.False(t, ok, "scan %d should be filtered", scan)
	}
}

func TestLoadLastWins(t *testing.T) {
	table := "PSMId\tq-value\tpeptide\n" +
		"a_0_7\t0.001\tK.FIRSTK.A\n" +
		"b_0_7\t0.002\tK.LATERK.A\n"

	scans, tally, err := Load(strings.NewReader(table), "psms.txt", filterFor(0, 0.01), quiet)
	require.NoError(t, err)
	assert.Equal(t, 2, tally.Count(filter.Keep))

	peptide, _ := scans.Lookup(7)
	assert.Equal(t, "K.LATERK.A", peptide)
	assert.Equal(t, 1, scans.Overwrites())
}

func TestLoadNaNQValue(t *testing.T) {
	table := "PSMId\tq-value\tpeptide\n" +
		"x_2_10\tnan\tK.PEPTIDEK.A\n" +
		"x_2_11\t0.001\tK.LATERK.A\n"

	scans, tally, err := Load(strings.NewReader(table), "psms.txt", filterFor(2, 0.01), quiet)
	require.NoError(t, err)

	_, ok := scans.Lookup(10)
	assert.False(t, ok)
	_, ok = scans.Lookup(11)
	assert.True(t, ok)
	assert.Equal(t, 1, tally.Count(filter.AboveFDR))
}

func TestLoadFormatErrors(t *testing.T) {
	tests := []struct {
		name      string
		table     string
		wantField string
	}{
		{"missing peptide column", "PSMId\tq-value\n", ColumnPeptide},
		{"missing q-value column", "PSMId\tpeptide\n", ColumnQValue},
		{"bad scan number", "PSMId\tq-value\tpeptide\nt_0_x\t0.1\tK.A.K\n", "PSMId"},
		{"bad file index", "PSMId\tq-value\tpeptide\nt_?_1\t0.1\tK.A.K\n", "PSMId"},
		{"short identifier", "PSMId\tq-value\tpeptide\nt_1\t0.1\tK.A.K\n", "PSMId"},
		{"bad q-value", "PSMId\tq-value\tpeptide\nt_0_1\tlow\tK.A.K\n", ColumnQValue},
		{"short row", "PSMId\tq-value\tpeptide\nt_0_1\t0.1\n", ""},
		{"empty input", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Load(strings.NewReader(tt.table), "psms.txt", filterFor(0, 0.5), quiet)
			var fe *core.FormatError
			require.True(t, errors.As(err, &fe), "expected FormatError, got %v", err)
			assert.Equal(t, tt.wantField, fe.Field)
			assert.Equal(t, "psms.txt", fe.Source)
		})
	}
}

func TestMissingColumnIsDistinguishable(t *testing.T) {
	_, err := NewReader(strings.NewReader("PSMId\tpeptide\n"), "psms.txt")
	assert.ErrorIs(t, err, core.ErrMissingColumn)
}

func TestReaderStreamsRows(t *testing.T) {
	table := "PSMId\tq-value\tpeptide\r\nt_3_1\t1e-4\tK.AK.A\r\nt_3_2\t0.5\tK.CK.A\r\n"
	r, err := NewReader(strings.NewReader(table), "psms.txt")
	require.NoError(t, err)

	var ids []*core.Identification
	for r.Next() {
		ids = append(ids, r.Identification())
	}
	require.NoError(t, r.Err())
	require.Len(t, ids, 2)
	assert.Equal(t, core.PSMID{Prefix: "t", FileIndex: 3, Scan: 1}, ids[0].ID)
	assert.InDelta(t, 1e-4, ids[0].QValue, 1e-12)
	assert.Equal(t, "K.CK.A", ids[1].Peptide)
	assert.Equal(t, "t_3_2", ids[1].RawID)
}
