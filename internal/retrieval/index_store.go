package retrieval

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/binary"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/kiranshivaraju/incidentradar/pkg/models"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// IndexStore persists a Snapshot in a single SQLite file. Row position i of
// each corpus table holds entry i and its vector, and a save replaces both
// tables and the metadata in one transaction.
type IndexStore struct {
	path string
}

func NewIndexStore(path string) *IndexStore {
	return &IndexStore{path: path}
}

func (s *IndexStore) Path() string { return s.path }

func (s *IndexStore) open(create bool) (*sql.DB, error) {
	if !create {
		if _, err := os.Stat(s.path); errors.Is(err, fs.ErrNotExist) {
			return nil, ErrIndexNotFound
		}
	} else if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return nil, fmt.Errorf("create index dir: %w", err)
	}

	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return nil, fmt.Errorf("open index: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(`PRAGMA busy_timeout = 5000`); err != nil {
		db.Close()
		return nil, fmt.Errorf("configure index: %w", err)
	}
	if create {
		if _, err := db.Exec(schemaSQL); err != nil {
			db.Close()
			return nil, fmt.Errorf("init index schema: %w", err)
		}
	}
	return db, nil
}

// Save replaces the stored index with snap.
func (s *IndexStore) Save(ctx context.Context, snap *Snapshot) error {
	db, err := s.open(true)
	if err != nil {
		return err
	}
	defer db.Close()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin index tx: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range []string{`DELETE FROM incidents`, `DELETE FROM playbooks`, `DELETE FROM index_meta`} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("clear index: %w", err)
		}
	}

	incStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO incidents (position, event_id, source, timestamp, thread_id, text, vector) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare incidents: %w", err)
	}
	defer incStmt.Close()
	for i, e := range snap.Incidents.Entries {
		if _, err := incStmt.ExecContext(ctx, i, e.EventID, e.Source, e.Timestamp, e.ThreadID, e.Text,
			encodeVector(snap.Incidents.Vectors[i])); err != nil {
			return fmt.Errorf("insert incident %d: %w", i, err)
		}
	}

	pbStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO playbooks (position, chunk_id, team, source, text, vector) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare playbooks: %w", err)
	}
	defer pbStmt.Close()
	for i, e := range snap.Playbooks.Entries {
		if _, err := pbStmt.ExecContext(ctx, i, e.ChunkID, string(e.Team), e.Source, e.Text,
			encodeVector(snap.Playbooks.Vectors[i])); err != nil {
			return fmt.Errorf("insert playbook chunk %d: %w", i, err)
		}
	}

	meta := map[string]string{
		"model":      snap.Model,
		"dimensions": strconv.Itoa(snap.Dimensions),
		"built_at":   snap.BuiltAt.UTC().Format(time.RFC3339Nano),
	}
	for k, v := range meta {
		if _, err := tx.ExecContext(ctx, `INSERT INTO index_meta (key, value) VALUES (?, ?)`, k, v); err != nil {
			return fmt.Errorf("insert index meta: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit index: %w", err)
	}
	return nil
}

// Load reads the stored index. Returns ErrIndexNotFound when nothing has
// been built at this path.
func (s *IndexStore) Load(ctx context.Context) (*Snapshot, error) {
	db, err := s.open(false)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	snap := &Snapshot{}
	rows, err := db.QueryContext(ctx, `SELECT key, value FROM index_meta`)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIndexNotFound, err)
	}
	found := false
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan index meta: %w", err)
		}
		found = true
		switch k {
		case "model":
			snap.Model = v
		case "dimensions":
			snap.Dimensions, _ = strconv.Atoi(v)
		case "built_at":
			snap.BuiltAt, _ = time.Parse(time.RFC3339Nano, v)
		}
	}
	rows.Close()
	if !found {
		return nil, ErrIndexNotFound
	}

	if snap.Incidents, err = loadCorpus(ctx, db,
		`SELECT position, event_id, source, timestamp, thread_id, text, vector FROM incidents ORDER BY position`,
		func(sc func(...any) error, e *models.Snippet, vec *[]byte) error {
			return sc(&e.EventID, &e.Source, &e.Timestamp, &e.ThreadID, &e.Text, vec)
		}); err != nil {
		return nil, err
	}
	if snap.Playbooks, err = loadCorpus(ctx, db,
		`SELECT position, chunk_id, team, source, text, vector FROM playbooks ORDER BY position`,
		func(sc func(...any) error, e *models.Snippet, vec *[]byte) error {
			var team string
			if err := sc(&e.ChunkID, &team, &e.Source, &e.Text, vec); err != nil {
				return err
			}
			e.Team = models.Team(team)
			return nil
		}); err != nil {
		return nil, err
	}
	return snap, nil
}

func loadCorpus(ctx context.Context, db *sql.DB, query string,
	scan func(sc func(...any) error, e *models.Snippet, vec *[]byte) error,
) (Corpus, error) {
	var c Corpus
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return c, fmt.Errorf("query corpus: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var pos int
		var e models.Snippet
		var raw []byte
		err := scan(func(dest ...any) error {
			return rows.Scan(append([]any{&pos}, dest...)...)
		}, &e, &raw)
		if err != nil {
			return c, fmt.Errorf("scan corpus row: %w", err)
		}
		if pos != len(c.Entries) {
			return c, fmt.Errorf("corpus position %d out of sequence (want %d)", pos, len(c.Entries))
		}
		vec, err := decodeVector(raw)
		if err != nil {
			return c, fmt.Errorf("corpus row %d: %w", pos, err)
		}
		c.Entries = append(c.Entries, e)
		c.Vectors = append(c.Vectors, vec)
	}
	return c, rows.Err()
}

// encodeVector packs v as little-endian float32s.
func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, x := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(x))
	}
	return buf
}

func decodeVector(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("vector blob length %d is not a multiple of 4", len(b))
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return v, nil
}
