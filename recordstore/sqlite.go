// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package recordstore

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/grailbio/base/errors"
	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

// sqliteSpill spills records into a single-table sqlite database.
type sqliteSpill struct {
	path string
	db   *sql.DB

	putStmt, getStmt, delStmt *sql.Stmt
}

func openSQLite(dir, id string) (*sqliteSpill, error) {
	path := filepath.Join(dir, id+".db")
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.E(err, "recordstore: open sqlite", path)
	}
	// The store serializes access; one connection keeps sqlite's locking
	// trivial.
	db.SetMaxOpenConns(1)
	s := &sqliteSpill{path: path, db: db}
	if err := s.ensureSchema(); err != nil {
		s.close() // nolint: errcheck
		return nil, errors.E(err, "recordstore: sqlite schema", path)
	}
	return s, nil
}

func (s *sqliteSpill) ensureSchema() (err error) {
	for _, stmt := range []string{
		`PRAGMA journal_mode = OFF`,
		`PRAGMA synchronous = OFF`,
		`CREATE TABLE IF NOT EXISTS spill (
			key TEXT PRIMARY KEY,
			payload BLOB NOT NULL
		)`,
	} {
		if _, err = s.db.Exec(stmt); err != nil {
			return err
		}
	}
	if s.putStmt, err = s.db.Prepare(`INSERT OR REPLACE INTO spill (key, payload) VALUES (?, ?)`); err != nil {
		return err
	}
	if s.getStmt, err = s.db.Prepare(`SELECT payload FROM spill WHERE key = ?`); err != nil {
		return err
	}
	s.delStmt, err = s.db.Prepare(`DELETE FROM spill WHERE key = ?`)
	return err
}

func (s *sqliteSpill) write(key Key, payload []byte) error {
	if s.db == nil {
		return errors.E(errors.Precondition, "recordstore: write to closed database", s.path)
	}
	if _, err := s.putStmt.Exec(string(key), payload); err != nil {
		return errors.E(err, "recordstore: sqlite insert", string(key))
	}
	return nil
}

func (s *sqliteSpill) read(key Key) ([]byte, error) {
	if s.db == nil {
		return nil, errors.E(errors.Precondition, "recordstore: read from closed database", s.path)
	}
	var payload []byte
	switch err := s.getStmt.QueryRow(string(key)).Scan(&payload); {
	case err == sql.ErrNoRows:
		return nil, errors.E(errors.NotExist, fmt.Sprintf("recordstore: %s not in %s", key, s.path))
	case err != nil:
		return nil, errors.E(err, "recordstore: sqlite select", string(key))
	}
	return payload, nil
}

func (s *sqliteSpill) remove(key Key) error {
	if s.db == nil {
		return nil
	}
	_, err := s.delStmt.Exec(string(key))
	return err
}

func (s *sqliteSpill) close() error {
	if s.db == nil {
		return nil
	}
	var once errors.Once
	for _, stmt := range []*sql.Stmt{s.putStmt, s.getStmt, s.delStmt} {
		if stmt != nil {
			once.Set(stmt.Close())
		}
	}
	once.Set(s.db.Close())
	s.db = nil
	for _, path := range []string{s.path, s.path + "-journal", s.path + "-wal", s.path + "-shm"} {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			once.Set(err)
		}
	}
	return once.Err()
}
