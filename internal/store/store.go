// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package store manages the .pm/ workspace: a SQLite cache of API
// responses and an append-only audit trail. The audit log is plain JSONL
// so it stays git-trackable; the cache lives in a single database file
// and is ignored by git.
//
// A nil *Workspace is valid everywhere: cache reads miss and writes are
// no-ops, so callers run uncached outside an initialized workspace.
package store

import (
	"database/sql"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const (
	// DirName is the workspace directory created by Init.
	DirName = ".pm"

	dbFile           = "cache.db"
	auditFile        = "audit.jsonl"
	gitignoreContent = "cache.db\ncache.db-wal\ncache.db-shm\n"
)

// Cache categories. Reads validate the payload per category and treat
// corruption as a miss.
var (
	jsonCategories = map[string]bool{"search": true, "cite": true, "download": true}
	xmlCategories  = map[string]bool{"fetch": true}
)

// Workspace is an open .pm/ directory.
type Workspace struct {
	Dir string
	db  *sql.DB
}

// Find opens the workspace in the current working directory, or returns
// nil when none exists. A nil workspace disables caching and auditing.
func Find() (*Workspace, error) {
	info, err := os.Stat(DirName)
	if err != nil || !info.IsDir() {
		return nil, nil
	}
	return Open(DirName)
}

// Init creates dir/.pm with the audit trail, a .gitignore covering the
// cache, and the cache database. It fails if the directory already exists.
func Init(parent string) (*Workspace, error) {
	dir := filepath.Join(parent, DirName)
	if err := os.Mkdir(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating %s: %w", dir, err)
	}
	if err := os.WriteFile(filepath.Join(dir, ".gitignore"), []byte(gitignoreContent), 0o644); err != nil {
		return nil, fmt.Errorf("writing .gitignore: %w", err)
	}

	w, err := Open(dir)
	if err != nil {
		return nil, err
	}
	if err := w.Audit(map[string]any{"op": "init"}); err != nil {
		w.Close()
		return nil, err
	}
	return w, nil
}

// Open opens an existing workspace directory and ensures the cache schema.
func Open(dir string) (*Workspace, error) {
	dbPath := filepath.Join(dir, dbFile)
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening cache database: %w", err)
	}

	w := &Workspace{Dir: dir, db: db}
	if err := w.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating cache schema: %w", err)
	}
	return w, nil
}

// Close releases the cache database.
func (w *Workspace) Close() error {
	if w == nil || w.db == nil {
		return nil
	}
	return w.db.Close()
}

func (w *Workspace) createSchema() error {
	_, err := w.db.Exec(`CREATE TABLE IF NOT EXISTS cache (
		category TEXT NOT NULL,
		key      TEXT NOT NULL,
		data     TEXT NOT NULL,
		ts       TEXT NOT NULL,
		PRIMARY KEY (category, key)
	)`)
	if err != nil {
		return fmt.Errorf("executing schema statement: %w", err)
	}
	return nil
}

// CacheRead returns the cached value for (category, key), or false on a
// miss. Payloads that fail category validation count as misses.
func (w *Workspace) CacheRead(category, key string) (string, bool) {
	if w == nil {
		return "", false
	}
	var data string
	err := w.db.QueryRow(
		`SELECT data FROM cache WHERE category = ? AND key = ?`, category, key,
	).Scan(&data)
	if err != nil {
		return "", false
	}
	if !validPayload(category, data) {
		return "", false
	}
	return data, true
}

// CacheWrite stores data under (category, key), replacing any prior value.
func (w *Workspace) CacheWrite(category, key, data string) error {
	if w == nil {
		return nil
	}
	_, err := w.db.Exec(
		`INSERT INTO cache (category, key, data, ts) VALUES (?, ?, ?, ?)
		 ON CONFLICT (category, key) DO UPDATE SET data = excluded.data, ts = excluded.ts`,
		category, key, data, Timestamp(),
	)
	if err != nil {
		return fmt.Errorf("writing cache entry %s/%s: %w", category, key, err)
	}
	return nil
}

// validPayload checks that JSON categories hold parseable JSON and XML
// categories hold well-formed XML.
func validPayload(category, data string) bool {
	switch {
	case jsonCategories[category]:
		var v any
		return json.Unmarshal([]byte(data), &v) == nil
	case xmlCategories[category]:
		d := xml.NewDecoder(strings.NewReader(data))
		for {
			_, err := d.Token()
			if err != nil {
				return errors.Is(err, io.EOF)
			}
		}
	}
	return true
}

// Audit appends one event to audit.jsonl. A ts field is added
// automatically. The line is written with a single O_APPEND write so
// concurrent invocations interleave whole lines.
func (w *Workspace) Audit(event map[string]any) error {
	if w == nil {
		return nil
	}
	event["ts"] = Timestamp()
	line, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encoding audit event: %w", err)
	}
	line = append(line, '\n')

	path := filepath.Join(w.Dir, auditFile)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0o644)
	if err != nil {
		return fmt.Errorf("opening audit trail: %w", err)
	}
	defer f.Close()
	if _, err := f.Write(line); err != nil {
		return fmt.Errorf("appending audit event: %w", err)
	}
	return nil
}

// Events reads all valid events from audit.jsonl, skipping corrupted
// lines. A missing audit trail yields an empty slice.
func (w *Workspace) Events() ([]map[string]any, error) {
	if w == nil {
		return nil, nil
	}
	data, err := os.ReadFile(filepath.Join(w.Dir, auditFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading audit trail: %w", err)
	}

	var events []map[string]any
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		var ev map[string]any
		if err := json.Unmarshal([]byte(line), &ev); err != nil {
			continue
		}
		events = append(events, ev)
	}
	return events, nil
}

// Timestamp returns the UTC time in the audit trail format.
func Timestamp() string {
	return time.Now().UTC().Format("2006-01-02T15:04:05Z")
}
