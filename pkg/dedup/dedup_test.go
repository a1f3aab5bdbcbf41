package dedup

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ChrisMcGann/msbench/pkg/core"
	"github.com/ChrisMcGann/msbench/pkg/filter"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func spectrum(scan int, seq string) string {
	return fmt.Sprintf("BEGIN IONS\nTITLE=scan=%d\nPEPMASS=500.25\nCHARGE=2+\nSCANS=%d\nSEQ=%s\n100.1 5\nEND IONS\n", scan, scan, seq)
}

func writeFile(t *testing.T, path string, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

// makeBenchmark lays out three species; SHAREDK is claimed by human and mouse
// (with different modifications), and IIQK/LIQK only collide when I and L are collapsed.
func makeBenchmark(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "human", "b.mgf"),
		spectrum(1, "PEPTIDEK")+spectrum(2, "PEPTIDEK")+spectrum(3, "I[43.0058]IQK"))
	writeFile(t, filepath.Join(root, "human", "a.mgf"), spectrum(4, "SHAREDK"))
	writeFile(t, filepath.Join(root, "mouse", "m.mgf"),
		spectrum(5, "SHARED[0.9840]K")+spectrum(6, "CM[15.9949]K"))
	writeFile(t, filepath.Join(root, "yeast", "y.mgf"), spectrum(7, "LIQK"))
	writeFile(t, filepath.Join(root, "README"), "not a species\n")
	return root
}

func TestDiscover(t *testing.T) {
	root := makeBenchmark(t)
	writeFile(t, filepath.Join(root, "mouse", PeptideManifest), "SHAREDK\n")
	writeFile(t, filepath.Join(root, "mouse", "notes.txt"), "x\n")

	c, err := Discover(root, "*.mgf")
	require.NoError(t, err)

	var names []string
	for _, sp := range c.Species {
		names = append(names, sp.Name)
	}
	assert.Equal(t, []string{"human", "mouse", "yeast"}, names)
	assert.Equal(t, []string{"a.mgf", "b.mgf"}, c.Species[0].Files)
	assert.Equal(t, []string{"m.mgf"}, c.Species[1].Files)

	all, err := Discover(root, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"m.mgf", "notes.txt"}, all.Species[1].Files)

	_, err = Discover(root, "[")
	assert.Error(t, err)
	_, err = Discover(filepath.Join(root, "missing"), "*")
	assert.Error(t, err)
}

func TestBuildIndex(t *testing.T) {
	c, err := Discover(makeBenchmark(t), "*.mgf")
	require.NoError(t, err)

	idx, err := BuildIndex(c, Options{Logger: quiet})
	require.NoError(t, err)

	assert.Equal(t, 5, idx.Len())
	assert.Equal(t, []string{"human", "mouse"}, idx.Species("SHAREDK"))
	assert.Equal(t, []string{"human"}, idx.Species("PEPTIDEK"))
	assert.Equal(t, []string{"human"}, idx.Species("IIQK"))
	assert.Equal(t, []string{"yeast"}, idx.Species("LIQK"))

	collapsed, err := BuildIndex(c, Options{CollapseIL: true, Logger: quiet})
	require.NoError(t, err)
	assert.Equal(t, 4, collapsed.Len())
	assert.Equal(t, []string{"human", "yeast"}, collapsed.Species("LLQK"))
}

func TestIndexAddDeduplicatesAndSorts(t *testing.T) {
	idx := newIndex()
	for _, s := range []string{"zebrafish", "human", "mouse", "human", "zebrafish"} {
		idx.add("PEPTIDE", s)
	}
	assert.Equal(t, []string{"human", "mouse", "zebrafish"}, idx.Species("PEPTIDE"))
}

func owners(a *Assignment, species ...string) map[string][]core.PeptideKey {
	m := make(map[string][]core.PeptideKey)
	for _, s := range species {
		m[s] = a.Keys(s)
	}
	return m
}

func sharedIndex(n int, extraSingles bool) *Index {
	idx := newIndex()
	for i := 0; i < n; i++ {
		key := core.PeptideKey(fmt.Sprintf("K%03d", i))
		idx.add(key, "b")
		idx.add(key, "a")
		if i%3 == 0 {
			idx.add(key, "c")
		}
		if extraSingles {
			idx.add(core.PeptideKey(fmt.Sprintf("K%03dX", i)), "c")
		}
	}
	return idx
}

func TestArbitrateDeterministic(t *testing.T) {
	idx := sharedIndex(200, false)

	first := Arbitrate(idx, DefaultSeed)
	second := Arbitrate(idx, DefaultSeed)
	if diff := cmp.Diff(owners(first, "a", "b", "c"), owners(second, "a", "b", "c")); diff != "" {
		t.Errorf("same seed gave different assignments (-first +second):\n%s", diff)
	}
	assert.Equal(t, 200, first.Duplicates())
	assert.Equal(t, 200, first.Len())

	// Every species wins some keys
	for _, s := range []string{"a", "b", "c"} {
		assert.NotEmpty(t, first.Keys(s), "species %s won nothing", s)
	}

	other := Arbitrate(idx, DefaultSeed+1)
	assert.NotEqual(t, owners(first, "a", "b", "c"), owners(other, "a", "b", "c"))
}

func TestArbitrateSinglesConsumeNoRandomness(t *testing.T) {
	plain := Arbitrate(sharedIndex(50, false), 42)
	mixed := Arbitrate(sharedIndex(50, true), 42)

	for i := 0; i < 50; i++ {
		key := core.PeptideKey(fmt.Sprintf("K%03d", i))
		p, _ := plain.Lookup(key)
		m, _ := mixed.Lookup(key)
		assert.Equal(t, p, m, "key %s", key)

		single := core.PeptideKey(fmt.Sprintf("K%03dX", i))
		owner, ok := mixed.Lookup(single)
		assert.True(t, ok)
		assert.Equal(t, "c", owner)
		assert.Equal(t, 1, mixed.Claimants(single))
	}
	assert.Equal(t, plain.Duplicates(), mixed.Duplicates())
}

func TestArbitrateEveryKeyOwnedByAClaimant(t *testing.T) {
	idx := sharedIndex(100, true)
	a := Arbitrate(idx, 99)
	for _, key := range idx.Keys() {
		owner, ok := a.Lookup(key)
		require.True(t, ok)
		assert.Contains(t, idx.Species(key), owner)
		assert.Equal(t, len(idx.Species(key)), a.Claimants(key))
	}
}

func runClean(t *testing.T, oldRoot, newRoot string, seed uint64) []SpeciesStats {
	t.Helper()
	c, err := Discover(oldRoot, "*.mgf")
	require.NoError(t, err)
	opts := Options{Logger: quiet}
	idx, err := BuildIndex(c, opts)
	require.NoError(t, err)
	a := Arbitrate(idx, seed)
	stats, err := Rewrite(c, a, RewriteOptions{Options: opts, NewRoot: newRoot, Translator: core.DefaultModTable()})
	require.NoError(t, err)
	return stats
}

func readTree(t *testing.T, root string) map[string]string {
	t.Helper()
	files := make(map[string]string)
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		rel, _ := filepath.Rel(root, path)
		files[filepath.ToSlash(rel)] = string(data)
		return nil
	})
	require.NoError(t, err)
	return files
}

func TestRewrite(t *testing.T) {
	oldRoot := makeBenchmark(t)
	newRoot := filepath.Join(t.TempDir(), "clean")
	stats := runClean(t, oldRoot, newRoot, DefaultSeed)

	tree := readTree(t, newRoot)
	require.Contains(t, tree, "human/b.mgf")
	require.Contains(t, tree, "mouse/peptides.txt")
	assert.NotContains(t, tree, "README")

	// Translation to Casanovo notation
	assert.Contains(t, tree["human/b.mgf"], "SEQ=+43.006IIQK\n")
	assert.Contains(t, tree["mouse/m.mgf"], "SEQ=C+57.021M+15.995K\n")
	assert.Equal(t, 2, strings.Count(tree["human/b.mgf"], "SEQ=PEPTIDEK\n"))

	// SHAREDK survives in exactly one species
	inHuman := strings.Contains(tree["human/a.mgf"], "SEQ=SHAREDK")
	inMouse := strings.Contains(tree["mouse/m.mgf"], "SEQ=SHARED+0.984K")
	assert.True(t, inHuman != inMouse, "SHAREDK kept by human=%v mouse=%v", inHuman, inMouse)
	assert.Equal(t, inHuman, strings.Contains(tree["human/peptides.txt"], "SHAREDK\n"))
	assert.Equal(t, inMouse, strings.Contains(tree["mouse/peptides.txt"], "SHAREDK\n"))

	assert.Equal(t, "LIQK\n", tree["yeast/peptides.txt"])

	require.Len(t, stats, 3)
	lost := 0
	printed := 0
	for _, s := range stats {
		lost += s.Tally.Count(filter.LostArbitration)
		printed += s.Printed
	}
	assert.Equal(t, 1, lost)
	assert.Equal(t, 6, printed)
}

func TestRewriteByteIdentical(t *testing.T) {
	oldRoot := makeBenchmark(t)
	first := filepath.Join(t.TempDir(), "first")
	second := filepath.Join(t.TempDir(), "second")
	runClean(t, oldRoot, first, 1234)
	runClean(t, oldRoot, second, 1234)

	if diff := cmp.Diff(readTree(t, first), readTree(t, second)); diff != "" {
		t.Errorf("outputs differ (-first +second):\n%s", diff)
	}
}

func TestRewriteConsistencyErrors(t *testing.T) {
	oldRoot := makeBenchmark(t)
	c, err := Discover(oldRoot, "*.mgf")
	require.NoError(t, err)
	opts := Options{Logger: quiet}

	// Assignment built from other data
	a := Arbitrate(newIndex(), DefaultSeed)
	_, err = Rewrite(c, a, RewriteOptions{Options: opts, NewRoot: t.TempDir()})
	var ce *core.ConsistencyError
	require.True(t, errors.As(err, &ce), "expected ConsistencyError, got %v", err)
	assert.Equal(t, "SHAREDK", ce.Key)

	// Spectrum without SEQ
	writeFile(t, filepath.Join(oldRoot, "yeast", "y.mgf"), "BEGIN IONS\nSCANS=1\nEND IONS\n")
	idx, err := BuildIndex(c, opts)
	require.NoError(t, err)
	_, err = Rewrite(c, Arbitrate(idx, DefaultSeed), RewriteOptions{Options: opts, NewRoot: t.TempDir()})
	require.True(t, errors.As(err, &ce), "expected ConsistencyError, got %v", err)
	assert.Equal(t, "y.mgf", ce.File)
}

func TestRewriteRejectsSameRoot(t *testing.T) {
	oldRoot := makeBenchmark(t)
	c, err := Discover(oldRoot, "*.mgf")
	require.NoError(t, err)
	_, err = Rewrite(c, Arbitrate(newIndex(), 1), RewriteOptions{NewRoot: oldRoot})
	assert.Error(t, err)
}

type recordingCatalog struct {
	keys []core.PeptideKey
}

func (r *recordingCatalog) WriteSpectrum(species, file string, key core.PeptideKey, spec *core.Spectrum) error {
	r.keys = append(r.keys, key)
	return nil
}

func TestRewriteFeedsCatalog(t *testing.T) {
	oldRoot := makeBenchmark(t)
	c, err := Discover(oldRoot, "*.mgf")
	require.NoError(t, err)
	opts := Options{Logger: quiet}
	idx, err := BuildIndex(c, opts)
	require.NoError(t, err)

	cat := &recordingCatalog{}
	stats, err := Rewrite(c, Arbitrate(idx, DefaultSeed), RewriteOptions{Options: opts, NewRoot: t.TempDir(), Catalog: cat})
	require.NoError(t, err)

	total := 0
	for _, s := range stats {
		total += s.Printed
	}
	assert.Len(t, cat.keys, total)
}
