// Package badger provides the BadgerHold-backed holdings store.
package badger

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/timshannon/badgerhold/v4"

	"github.com/bobmcallan/folium/internal/common"
)

// SchemaVersion is the holdings record layout written by this build.
// Bump it when models.Holding changes incompatibly.
const SchemaVersion = 1

const metaKey = "folium"

// ErrSchemaTooNew is returned when the directory was written by a newer build.
var ErrSchemaTooNew = errors.New("holdings store schema is newer than this build")

// storeMeta is the single bookkeeping record kept next to the holdings.
type storeMeta struct {
	Schema    int
	CreatedAt time.Time
	OpenedAt  time.Time
}

// Store is an open holdings database directory.
type Store struct {
	db     *badgerhold.Store
	logger *common.Logger
	path   string
	meta   storeMeta
}

// NewStore opens (creating when missing) the holdings database at path and
// checks that its schema is one this build can read.
func NewStore(logger *common.Logger, path string) (*Store, error) {
	if err := os.MkdirAll(path, 0755); err != nil {
		return nil, fmt.Errorf("failed to create holdings directory %s: %w", path, err)
	}

	options := badgerhold.DefaultOptions
	options.Dir = path
	options.ValueDir = path
	options.Logger = nil // badger's own logger is noisy at info

	db, err := badgerhold.Open(options)
	if err != nil {
		return nil, fmt.Errorf("failed to open holdings store at %s: %w", path, err)
	}

	s := &Store{db: db, logger: logger, path: path}
	if err := s.checkSchema(time.Now().UTC()); err != nil {
		db.Close()
		return nil, err
	}

	logger.Debug().Str("path", path).Int("schema", s.meta.Schema).Msg("Holdings store opened")
	return s, nil
}

// checkSchema stamps a fresh directory with SchemaVersion and refuses one
// written by a newer build. The open time is recorded on every open.
func (s *Store) checkSchema(now time.Time) error {
	var meta storeMeta
	err := s.db.Get(metaKey, &meta)
	switch {
	case errors.Is(err, badgerhold.ErrNotFound):
		meta = storeMeta{Schema: SchemaVersion, CreatedAt: now}
	case err != nil:
		return fmt.Errorf("failed to read holdings store metadata: %w", err)
	case meta.Schema > SchemaVersion:
		return fmt.Errorf("%w: %s has schema %d, this build reads up to %d", ErrSchemaTooNew, s.path, meta.Schema, SchemaVersion)
	}

	meta.OpenedAt = now
	if err := s.db.Upsert(metaKey, &meta); err != nil {
		return fmt.Errorf("failed to write holdings store metadata: %w", err)
	}
	s.meta = meta
	return nil
}

// DB returns the underlying badgerhold store.
func (s *Store) DB() *badgerhold.Store {
	return s.db
}

// Path returns the database directory.
func (s *Store) Path() string {
	return s.path
}

// Schema returns the schema version recorded in the directory.
func (s *Store) Schema() int {
	return s.meta.Schema
}

// CreatedAt returns when the directory was first opened as a holdings store.
func (s *Store) CreatedAt() time.Time {
	return s.meta.CreatedAt
}

// Close closes the BadgerHold database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}
