// Package sqlitefile is a nexus.Backend that keeps a whole hierarchical file in
// a single SQLite database. The file is self-contained (rollback journal, no
// WAL side files), so copying it byte for byte copies the hierarchy.
package sqlitefile

import (
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/nexdatas/nxstools/internal/nexus"
)

//go:embed schema.sql
var schemaSQL string

// FormatName tags files written by this backend.
const FormatName = "nxstools-sqlite/1"

const rootID = 1

// Backend creates and opens SQLite-backed hierarchical files.
type Backend struct {
	compression Compression
}

// New returns a backend that compresses new slabs with compression.
func New(compression Compression) *Backend {
	return &Backend{compression: compression}
}

// Name implements nexus.Backend.
func (b *Backend) Name() string {
	return "sqlite"
}

// Create implements nexus.Backend.
func (b *Backend) Create(path string) (nexus.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create directory: %w", err)
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("replace %s: %w", path, err)
	}

	f, err := b.open(path, "rwc", false)
	if err != nil {
		return nil, err
	}
	if err := f.initSchema(); err != nil {
		f.db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return f, nil
}

// Open implements nexus.Backend.
func (b *Backend) Open(path string, readOnly bool) (nexus.File, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	mode := "rw"
	if readOnly {
		mode = "ro"
	}
	f, err := b.open(path, mode, readOnly)
	if err != nil {
		return nil, err
	}
	if err := f.checkFormat(); err != nil {
		f.db.Close()
		return nil, err
	}
	return f, nil
}

func (b *Backend) open(path, mode string, readOnly bool) (*file, error) {
	dsn := "file:" + path + "?mode=" + mode + "&_foreign_keys=on"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One connection keeps the single-writer model of the collect engine.
	db.SetMaxOpenConns(1)

	pragmas := []string{"PRAGMA busy_timeout=5000"}
	if !readOnly {
		pragmas = append(pragmas, "PRAGMA journal_mode=DELETE", "PRAGMA synchronous=FULL")
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: not a hierarchical file: %w", path, err)
		}
	}

	return &file{
		db:          db,
		path:        path,
		readOnly:    readOnly,
		compression: b.compression,
	}, nil
}

type file struct {
	db          *sql.DB
	path        string
	readOnly    bool
	compression Compression
	closed      bool
}

func (f *file) initSchema() error {
	if _, err := f.db.Exec(schemaSQL); err != nil {
		return err
	}
	_, err := f.db.Exec(
		`INSERT OR REPLACE INTO file_info (key, value) VALUES ('format', ?), ('created', ?)`,
		FormatName, time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

func (f *file) checkFormat() error {
	var format string
	err := f.db.QueryRow(`SELECT value FROM file_info WHERE key = 'format'`).Scan(&format)
	if err != nil {
		return fmt.Errorf("%s: not a hierarchical file: %w", f.path, err)
	}
	if !strings.HasPrefix(format, "nxstools-sqlite/") {
		return fmt.Errorf("%s: unsupported file format %q", f.path, format)
	}
	return nil
}

func (f *file) Path() string {
	return f.path
}

func (f *file) ReadOnly() bool {
	return f.readOnly
}

func (f *file) Root() (nexus.Group, error) {
	if f.closed {
		return nil, errClosed
	}
	var class string
	err := f.db.QueryRow(`SELECT nx_class FROM nodes WHERE id = ?`, rootID).Scan(&class)
	if err != nil {
		return nil, fmt.Errorf("read root group: %w", err)
	}
	return &group{node: node{f: f, id: rootID}, class: class}, nil
}

// Flush is a liveness check: every statement already commits on its own with
// synchronous=FULL, so completed writes are durable when they return.
func (f *file) Flush() error {
	if f.closed {
		return errClosed
	}
	return f.db.Ping()
}

func (f *file) Close() error {
	if f.closed {
		return nil
	}
	f.closed = true
	return f.db.Close()
}

func (f *file) writable() error {
	if f.closed {
		return errClosed
	}
	if f.readOnly {
		return nexus.ErrReadOnly
	}
	return nil
}

var errClosed = errors.New("file is closed")
