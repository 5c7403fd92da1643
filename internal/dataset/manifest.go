package dataset

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS sequences (
	sequence_id   TEXT PRIMARY KEY,
	dir           TEXT NOT NULL UNIQUE,
	frame_count   INTEGER NOT NULL,
	frames_json   TEXT NOT NULL,
	created_at    TEXT NOT NULL
);
`

// #endregion schema

// #region types
// Entry is one indexed frame sequence: a directory of ordered still images.
type Entry struct {
	ID        string
	Dir       string
	Frames    []string // file names inside Dir, in playback order
	CreatedAt time.Time
}

// Path returns the full path of frame i.
func (e Entry) Path(i int) string {
	return filepath.Join(e.Dir, e.Frames[i])
}

// Manifest indexes frame sequences in SQLite. Evaluation only reads it.
type Manifest struct {
	db *sql.DB
}

// #endregion types

// #region constructor
// OpenManifest opens a SQLite manifest, creating the table if missing.
func OpenManifest(dbPath string) (*Manifest, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open manifest: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Manifest{db: db}, nil
}

// Close closes the underlying database connection.
func (m *Manifest) Close() error {
	return m.db.Close()
}

// #endregion constructor

// #region write
// Add indexes a sequence, replacing any earlier entry for the same dir.
func (m *Manifest) Add(dir string, frames []string) (Entry, error) {
	e := Entry{
		ID:        uuid.New().String(),
		Dir:       dir,
		Frames:    frames,
		CreatedAt: time.Now().UTC(),
	}
	framesJSON, err := json.Marshal(frames)
	if err != nil {
		return Entry{}, fmt.Errorf("marshal frames: %w", err)
	}
	_, err = m.db.Exec(
		`INSERT INTO sequences (sequence_id, dir, frame_count, frames_json, created_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(dir) DO UPDATE SET
		   sequence_id = excluded.sequence_id,
		   frame_count = excluded.frame_count,
		   frames_json = excluded.frames_json,
		   created_at = excluded.created_at`,
		e.ID, dir, len(frames), string(framesJSON), e.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return Entry{}, fmt.Errorf("insert sequence %s: %w", dir, err)
	}
	return e, nil
}

// #endregion write

// #region read
// Entries returns every sequence with at least minFrames frames, ordered by
// directory so the listing is stable across runs.
func (m *Manifest) Entries(minFrames int) ([]Entry, error) {
	rows, err := m.db.Query(
		`SELECT sequence_id, dir, frames_json, created_at
		 FROM sequences WHERE frame_count >= ? ORDER BY dir`, minFrames,
	)
	if err != nil {
		return nil, fmt.Errorf("list sequences: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var framesJSON, createdStr string
		if err := rows.Scan(&e.ID, &e.Dir, &framesJSON, &createdStr); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		if err := json.Unmarshal([]byte(framesJSON), &e.Frames); err != nil {
			return nil, fmt.Errorf("unmarshal frames of %s: %w", e.Dir, err)
		}
		e.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Count returns the number of indexed sequences.
func (m *Manifest) Count() (int, error) {
	var n int
	if err := m.db.QueryRow(`SELECT COUNT(*) FROM sequences`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count sequences: %w", err)
	}
	return n, nil
}

// #endregion read

// #region build
// Build walks root and indexes every directory holding at least minFrames
// PNG or JPEG images. Frames are ordered by file name. It returns the number
// of sequences added.
func Build(m *Manifest, root string, minFrames int) (int, error) {
	added := 0
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		frames, err := imageFiles(path)
		if err != nil {
			return err
		}
		if len(frames) < minFrames {
			return nil
		}
		if _, err := m.Add(path, frames); err != nil {
			return err
		}
		added++
		return nil
	})
	if err != nil {
		return added, fmt.Errorf("scan %s: %w", root, err)
	}
	return added, nil
}

func imageFiles(dir string) ([]string, error) {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".png", ".jpg", ".jpeg":
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// #endregion build
