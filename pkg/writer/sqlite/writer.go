// Package sqlite provides an SQLite catalog of a deduplicated benchmark
package sqlite

import (
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/ChrisMcGann/msbench/pkg/core"
	"github.com/ChrisMcGann/msbench/pkg/dedup"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// Date format for RunTable (ISO 8601)
const runDateFormat = "2006-01-02T15:04:05Z07:00"

// RunInfo describes the clean run that produced the catalog
type RunInfo struct {
	OldRoot    string
	NewRoot    string
	Seed       uint64
	CollapseIL bool
}

// Writer handles writing a benchmark catalog to an SQLite database file.
// All inserts run in a single transaction committed by Finalize.
type Writer struct {
	db           *sql.DB
	tx           *sql.Tx
	outputPath   string
	runID        string
	speciesStmt  *sql.Stmt
	peptideStmt  *sql.Stmt
	spectrumStmt *sql.Stmt
	speciesID    map[string]int64
	spectrumID   int
}

// NewWriter creates a new catalog writer and records the run
func NewWriter(outputPath string, run RunInfo) (*Writer, error) {
	db, err := sql.Open("sqlite3", outputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	w := &Writer{
		db:         db,
		outputPath: outputPath,
		runID:      uuid.NewString(),
		speciesID:  make(map[string]int64),
		spectrumID: 1,
	}

	if err := w.createTables(); err != nil {
		db.Close()
		return nil, err
	}

	w.tx, err = db.Begin()
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := w.prepareStatements(); err != nil {
		w.tx.Rollback()
		db.Close()
		return nil, err
	}

	_, err = w.tx.Exec(`
		INSERT INTO RunTable (RunId, OldRoot, NewRoot, Seed, CollapseIL, CreationDate)
		VALUES (?, ?, ?, ?, ?, ?)
	`, w.runID, run.OldRoot, run.NewRoot, int64(run.Seed), run.CollapseIL, time.Now().UTC().Format(runDateFormat))
	if err != nil {
		w.tx.Rollback()
		db.Close()
		return nil, fmt.Errorf("failed to insert run: %w", err)
	}

	return w, nil
}

// RunID returns the identifier stored with every row of this catalog
func (w *Writer) RunID() string {
	return w.runID
}

// createTables creates the required database schema
func (w *Writer) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS RunTable (
		RunId TEXT PRIMARY KEY,
		OldRoot TEXT,
		NewRoot TEXT,
		Seed INTEGER,
		CollapseIL BOOL,
		CreationDate TEXT
	);

	CREATE TABLE IF NOT EXISTS SpeciesTable (
		SpeciesId INTEGER PRIMARY KEY AUTOINCREMENT,
		RunId TEXT REFERENCES RunTable(RunId),
		Name TEXT,
		NoofPeptides INTEGER
	);

	CREATE TABLE IF NOT EXISTS PeptideTable (
		RunId TEXT REFERENCES RunTable(RunId),
		PeptideKey TEXT,
		SpeciesId INTEGER REFERENCES SpeciesTable(SpeciesId),
		Claimants INTEGER,
		NeutralMass DOUBLE
	);

	CREATE TABLE IF NOT EXISTS SpectrumTable (
		SpectrumId INTEGER,
		RunId TEXT REFERENCES RunTable(RunId),
		SpeciesId INTEGER REFERENCES SpeciesTable(SpeciesId),
		FileName TEXT,
		ScanNumber INTEGER,
		Title TEXT,
		Sequence TEXT,
		PeptideKey TEXT,
		Charge INTEGER,
		PrecursorMass DOUBLE,
		NeutralMass DOUBLE,
		RetentionTime DOUBLE,
		blobMass BLOB,
		blobIntensity BLOB
	);
	`

	_, err := w.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}

	return nil
}

// prepareStatements prepares SQL statements for batch insertion
func (w *Writer) prepareStatements() error {
	var err error

	w.speciesStmt, err = w.tx.Prepare(`
		INSERT INTO SpeciesTable (RunId, Name, NoofPeptides) VALUES (?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare species statement: %w", err)
	}

	w.peptideStmt, err = w.tx.Prepare(`
		INSERT INTO PeptideTable (RunId, PeptideKey, SpeciesId, Claimants, NeutralMass)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare peptide statement: %w", err)
	}

	w.spectrumStmt, err = w.tx.Prepare(`
		INSERT INTO SpectrumTable (
			SpectrumId, RunId, SpeciesId, FileName, ScanNumber, Title, Sequence,
			PeptideKey, Charge, PrecursorMass, NeutralMass, RetentionTime,
			blobMass, blobIntensity
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare spectrum statement: %w", err)
	}

	return nil
}

// species returns the row id of a species, inserting it on first use
func (w *Writer) species(name string) (int64, error) {
	if id, ok := w.speciesID[name]; ok {
		return id, nil
	}
	res, err := w.speciesStmt.Exec(w.runID, name, 0)
	if err != nil {
		return 0, fmt.Errorf("failed to insert species: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	w.speciesID[name] = id
	return id, nil
}

// WriteAssignment records every peptide key owned by each species
func (w *Writer) WriteAssignment(a *dedup.Assignment, species []string) error {
	for _, name := range species {
		id, err := w.species(name)
		if err != nil {
			return err
		}
		keys := a.Keys(name)
		for _, key := range keys {
			mass := core.RoundFloat(core.UnmodifiedMass(key), 6)
			if _, err := w.peptideStmt.Exec(w.runID, string(key), id, a.Claimants(key), mass); err != nil {
				return fmt.Errorf("failed to insert peptide: %w", err)
			}
		}
		if _, err := w.tx.Exec(`UPDATE SpeciesTable SET NoofPeptides = ? WHERE SpeciesId = ?`, len(keys), id); err != nil {
			return fmt.Errorf("failed to update species: %w", err)
		}
	}
	return nil
}

// WriteSpectrum writes a single retained spectrum to the database
func (w *Writer) WriteSpectrum(species, file string, key core.PeptideKey, spec *core.Spectrum) error {
	id, err := w.species(species)
	if err != nil {
		return err
	}

	var scan interface{} = nil
	if n, ok, err := spec.Scan(); err != nil {
		return err
	} else if ok {
		scan = n
	}

	seq, _ := spec.Seq()

	// Precursor fields are optional; unparsable values are stored as NULL
	var charge, pepMass, neutralMass interface{} = nil, nil, nil
	z, zErr := spec.Charge()
	if zErr == nil {
		charge = z
	}
	if mz, err := spec.PepMass(); err == nil {
		pepMass = mz
		if zErr == nil {
			neutralMass = core.RoundFloat(core.PrecursorNeutralMass(mz, z), 6)
		}
	}

	var rt interface{} = nil
	if spec.RetentionTime() != nil {
		rt = *spec.RetentionTime()
	}

	peaks := spec.Peaks()

	_, err = w.spectrumStmt.Exec(
		w.spectrumID,                     // SpectrumId
		w.runID,                          // RunId
		id,                               // SpeciesId
		file,                             // FileName
		scan,                             // ScanNumber
		spec.Title(),                     // Title
		seq,                              // Sequence
		string(key),                      // PeptideKey
		charge,                           // Charge
		pepMass,                          // PrecursorMass
		neutralMass,                      // NeutralMass
		rt,                               // RetentionTime
		encodePeaksFloat64(peaks, true),  // blobMass
		encodePeaksFloat64(peaks, false), // blobIntensity
	)
	if err != nil {
		return fmt.Errorf("failed to insert spectrum: %w", err)
	}

	w.spectrumID++
	return nil
}

// encodePeaksFloat64 encodes peak data as little-endian float64 blob
func encodePeaksFloat64(peaks []core.Peak, useMZ bool) []byte {
	buf := make([]byte, len(peaks)*8)
	for i, peak := range peaks {
		var value float64
		if useMZ {
			value = peak.MZ
		} else {
			value = peak.Intensity
		}
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(value))
	}
	return buf
}

// Finalize commits the transaction and closes the database
func (w *Writer) Finalize() error {
	if w.db == nil {
		return nil
	}

	// Close prepared statements
	for _, stmt := range []*sql.Stmt{w.speciesStmt, w.peptideStmt, w.spectrumStmt} {
		if stmt != nil {
			stmt.Close()
		}
	}

	if err := w.tx.Commit(); err != nil {
		w.db.Close()
		w.db = nil
		return fmt.Errorf("failed to commit %s: %w", w.outputPath, err)
	}

	// Close database
	err := w.db.Close()
	w.db = nil
	if err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	return nil
}

// Close closes the database connection (alias for Finalize)
func (w *Writer) Close() error {
	return w.Finalize()
}

// Abort discards everything written since NewWriter
func (w *Writer) Abort() error {
	if w.db == nil {
		return nil
	}
	w.tx.Rollback()
	err := w.db.Close()
	w.db = nil
	return err
}
