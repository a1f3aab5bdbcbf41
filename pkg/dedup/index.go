package dedup

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/ChrisMcGann/msbench/pkg/core"
	"github.com/ChrisMcGann/msbench/pkg/fileio"
	"github.com/ChrisMcGann/msbench/pkg/reader/mgf"
)

// Index maps every peptide key to the sorted set of species that claim it.
// It is read-only once BuildIndex returns.
type Index struct {
	claims map[core.PeptideKey][]string
}

func newIndex() *Index {
	return &Index{claims: make(map[core.PeptideKey][]string)}
}

// add records a claim; a species claiming a key twice is counted once.
func (idx *Index) add(key core.PeptideKey, species string) {
	list := idx.claims[key]
	i := sort.SearchStrings(list, species)
	if i < len(list) && list[i] == species {
		return
	}
	list = append(list, "")
	copy(list[i+1:], list[i:])
	list[i] = species
	idx.claims[key] = list
}

// Species returns the sorted species claiming key
func (idx *Index) Species(key core.PeptideKey) []string {
	return idx.claims[key]
}

// Len returns the number of distinct peptide keys
func (idx *Index) Len() int {
	return len(idx.claims)
}

// Keys returns all peptide keys in sorted order
func (idx *Index) Keys() []core.PeptideKey {
	keys := make([]core.PeptideKey, 0, len(idx.claims))
	for k := range idx.claims {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// BuildIndex reads the SEQ annotation of every spectrum in the collection.
// Spectra without SEQ are not indexed here; Rewrite rejects them.
func BuildIndex(c *Collection, opts Options) (*Index, error) {
	logger := opts.logger()
	idx := newIndex()

	for _, sp := range c.Species {
		logger.Info("Extracting peptides", slog.String("species", sp.Name), slog.Int("files", len(sp.Files)))
		for _, file := range sp.Files {
			if err := indexFile(idx, sp.Name, sp.Path(file), opts); err != nil {
				return nil, err
			}
		}
		logger.Info("Found peptides", slog.Int("peptides", idx.Len()))
	}

	return idx, nil
}

func indexFile(idx *Index, species, path string, opts Options) error {
	in, err := fileio.Open(path, opts.Encoding)
	if err != nil {
		return err
	}
	defer in.Close()

	reader := mgf.NewReader(in, path)
	for reader.Next() {
		if seq, ok := reader.Spectrum().Seq(); ok {
			idx.add(core.NewPeptideKey(seq, opts.CollapseIL), species)
		}
	}
	if err := reader.Err(); err != nil {
		return fmt.Errorf("error reading %s: %w", path, err)
	}
	return nil
}
