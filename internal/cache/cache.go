// Package cache implements the content-addressed compile cache of
// SPEC_FULL.md §6.2. It generalizes the lowered-function memoization the
// original Rust source performs per-process (a get_function("jit_bf")
// lookup guarding lower_bf) across process invocations, keyed by a
// BLAKE2b-256 digest of the filtered source bytes plus the options that
// affect codegen.
package cache

import (
	"bytes"
	"database/sql"
	"encoding/gob"
	"encoding/hex"
	"fmt"

	_ "modernc.org/sqlite" // pure-Go SQLite driver

	"bf/internal/errors"
	"bf/internal/ir"
)

// Key identifies one compile request. Two requests with equal Keys produce
// byte-identical optimized IR and, when applicable, the same built
// artifact — this is the transparency property of SPEC_FULL.md §8 item 8.
type Key struct {
	Source   []byte
	CellSize int
	Optimize bool
	JIT      bool
}

// Entry is what a cache hit returns: the optimized statement tree, and,
// for JIT/object requests that already built an artifact, its path on
// disk.
type Entry struct {
	Optimized    []ir.Statement
	ArtifactPath string
}

// Store is a local modernc.org/sqlite-backed cache, opened against a
// single file the way the teacher's DBManager opens a named sqlite
// connection in internal/database/db_manager.go.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the cache database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.IO(err, "opening compile cache")
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, errors.IO(err, "pinging compile cache")
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS entries (
		digest        TEXT PRIMARY KEY,
		optimized     BLOB NOT NULL,
		artifact_path TEXT NOT NULL DEFAULT ''
	)`); err != nil {
		db.Close()
		return nil, errors.IO(err, "creating compile cache schema")
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// Digest returns the BLAKE2b-256 hex digest identifying k, the cache's
// primary key.
func (k Key) Digest() (string, error) {
	h, err := newHasher()
	if err != nil {
		return "", err
	}
	h.Write(k.Source)
	fmt.Fprintf(h, "|cell=%d|optimize=%t|jit=%t", k.CellSize, k.Optimize, k.JIT)
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Get looks up k. ok is false on a miss; it is never an error, since a
// miss is the expected steady state for a never-before-seen source.
func (s *Store) Get(k Key) (entry Entry, ok bool, err error) {
	digest, err := k.Digest()
	if err != nil {
		return Entry{}, false, err
	}

	var blob []byte
	var artifact string
	row := s.db.QueryRow(`SELECT optimized, artifact_path FROM entries WHERE digest = ?`, digest)
	switch err := row.Scan(&blob, &artifact); err {
	case sql.ErrNoRows:
		return Entry{}, false, nil
	case nil:
		// fallthrough below
	default:
		return Entry{}, false, errors.IO(err, "reading compile cache")
	}

	var stmts []ir.Statement
	if err := gob.NewDecoder(bytes.NewReader(blob)).Decode(&stmts); err != nil {
		return Entry{}, false, errors.IO(err, "decoding cached IR")
	}
	return Entry{Optimized: stmts, ArtifactPath: artifact}, true, nil
}

// Put stores entry under k, overwriting any prior entry with the same
// digest rather than adding a second row for it.
func (s *Store) Put(k Key, entry Entry) error {
	digest, err := k.Digest()
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(entry.Optimized); err != nil {
		return errors.IO(err, "encoding IR for compile cache")
	}

	_, err = s.db.Exec(`INSERT INTO entries (digest, optimized, artifact_path) VALUES (?, ?, ?)
		ON CONFLICT(digest) DO UPDATE SET optimized = excluded.optimized, artifact_path = excluded.artifact_path`,
		digest, buf.Bytes(), entry.ArtifactPath)
	if err != nil {
		return errors.IO(err, "writing compile cache")
	}
	return nil
}
