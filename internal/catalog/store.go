// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package catalog persists the per-owner publication table in SQLite.
// It is the only shared mutable state in the system; the sync
// orchestrator's per-owner exclusivity rule plus the UNIQUE(owner, doi)
// index keep concurrent runs from corrupting it.
package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/pdiddy/pubsync/pkg/types"
)

const dbFile = "pubsync.db"

// ErrNotFound is returned when no publication matches the lookup.
var ErrNotFound = errors.New("publication not found")

// Store manages the publication SQLite database.
type Store struct {
	db *sql.DB
}

// Open opens or creates the catalog database at cfg.DataDir/pubsync.db
// and creates the schema if it does not exist.
func Open(cfg types.CatalogConfig) (*Store, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(cfg.DataDir, dbFile)
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS publications (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			owner INTEGER NOT NULL,
			doi TEXT,
			title TEXT NOT NULL DEFAULT '',
			year INTEGER NOT NULL DEFAULT 0,
			journal TEXT NOT NULL DEFAULT '',
			volume TEXT NOT NULL DEFAULT '',
			page_range TEXT NOT NULL DEFAULT '',
			authors TEXT NOT NULL DEFAULT '[]',
			identifiers TEXT NOT NULL DEFAULT '{}',
			metadata TEXT NOT NULL DEFAULT '{}',
			links TEXT NOT NULL DEFAULT '{}',
			manual_edits TEXT NOT NULL DEFAULT '{}',
			edit_history TEXT NOT NULL DEFAULT '[]',
			is_preprint INTEGER NOT NULL DEFAULT 0,
			preprint_server TEXT NOT NULL DEFAULT '',
			is_ignored INTEGER NOT NULL DEFAULT 0,
			ignore_reason TEXT NOT NULL DEFAULT '',
			source TEXT NOT NULL DEFAULT 'manual',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			last_api_sync TEXT NOT NULL DEFAULT '',
			enrichment_attempted_at TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_pub_owner_doi
			ON publications(owner, doi) WHERE doi != '' AND doi IS NOT NULL`,
		`CREATE INDEX IF NOT EXISTS idx_pub_owner_year ON publications(owner, year)`,
		`CREATE INDEX IF NOT EXISTS idx_pub_owner_preprint ON publications(owner, is_preprint)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// IsUniqueViolation reports whether err is the UNIQUE(owner, doi)
// constraint firing. The merge engine converts this into an update
// path instead of surfacing it.
func IsUniqueViolation(err error) bool {
	var serr sqlite3.Error
	return errors.As(err, &serr) && serr.ExtendedCode == sqlite3.ErrConstraintUnique
}

const pubColumns = `id, owner, doi, title, year, journal, volume, page_range,
	authors, identifiers, metadata, links, manual_edits, edit_history,
	is_preprint, preprint_server, is_ignored, ignore_reason, source,
	created_at, updated_at, last_api_sync, enrichment_attempted_at`

// Insert stores a new publication and sets its ID, CreatedAt, and
// UpdatedAt. A UNIQUE(owner, doi) violation is returned to the caller
// for conversion into an update.
func (s *Store) Insert(ctx context.Context, pub *types.Publication) error {
	now := time.Now().UTC()
	if pub.CreatedAt.IsZero() {
		pub.CreatedAt = now
	}
	pub.UpdatedAt = now

	cols, err := encodeJSONColumns(pub)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO publications (owner, doi, title, year, journal, volume, page_range,
			authors, identifiers, metadata, links, manual_edits, edit_history,
			is_preprint, preprint_server, is_ignored, ignore_reason, source,
			created_at, updated_at, last_api_sync, enrichment_attempted_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		pub.Owner, pub.DOI, pub.Title, pub.Year, pub.Journal, pub.Volume, pub.PageRange,
		cols.authors, cols.identifiers, cols.metadata, cols.links, cols.manualEdits, cols.editHistory,
		boolInt(pub.IsPreprint), pub.PreprintServer, boolInt(pub.IsIgnored), pub.IgnoreReason, string(pub.Source),
		formatTime(pub.CreatedAt), formatTime(pub.UpdatedAt),
		formatTime(pub.LastAPISync), formatTime(pub.EnrichmentAttemptedAt),
	)
	if err != nil {
		return err
	}
	pub.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading insert id: %w", err)
	}
	return nil
}

// Update rewrites an existing publication identified by its ID.
func (s *Store) Update(ctx context.Context, pub *types.Publication) error {
	if pub.ID == 0 {
		return fmt.Errorf("update requires a stored publication")
	}
	pub.UpdatedAt = time.Now().UTC()

	cols, err := encodeJSONColumns(pub)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx,
		`UPDATE publications SET owner=?, doi=?, title=?, year=?, journal=?, volume=?, page_range=?,
			authors=?, identifiers=?, metadata=?, links=?, manual_edits=?, edit_history=?,
			is_preprint=?, preprint_server=?, is_ignored=?, ignore_reason=?, source=?,
			updated_at=?, last_api_sync=?, enrichment_attempted_at=?
		 WHERE id=?`,
		pub.Owner, pub.DOI, pub.Title, pub.Year, pub.Journal, pub.Volume, pub.PageRange,
		cols.authors, cols.identifiers, cols.metadata, cols.links, cols.manualEdits, cols.editHistory,
		boolInt(pub.IsPreprint), pub.PreprintServer, boolInt(pub.IsIgnored), pub.IgnoreReason, string(pub.Source),
		formatTime(pub.UpdatedAt), formatTime(pub.LastAPISync), formatTime(pub.EnrichmentAttemptedAt),
		pub.ID,
	)
	if err != nil {
		return fmt.Errorf("updating publication %d: %w", pub.ID, err)
	}
	return nil
}

// Delete removes a publication row. Only the duplicate resolver's
// collision and version passes hard-delete; sync itself never does.
func (s *Store) Delete(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM publications WHERE id=?`, id)
	if err != nil {
		return fmt.Errorf("deleting publication %d: %w", id, err)
	}
	return nil
}

// GetByDOI looks up the publication for (owner, canonical doi).
func (s *Store) GetByDOI(ctx context.Context, owner int64, doi string) (*types.Publication, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+pubColumns+` FROM publications WHERE owner=? AND doi=?`, owner, doi)
	return scanPublication(row)
}

// GetByID looks up a publication by row ID.
func (s *Store) GetByID(ctx context.Context, id int64) (*types.Publication, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+pubColumns+` FROM publications WHERE id=?`, id)
	return scanPublication(row)
}

// FindByPMID looks up a publication by its PubMed identifier, used as
// a fallback when a record has no DOI.
func (s *Store) FindByPMID(ctx context.Context, owner int64, pmid string) (*types.Publication, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+pubColumns+` FROM publications WHERE owner=?`, owner)
	if err != nil {
		return nil, fmt.Errorf("querying publications: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		pub, err := scanPublicationRows(rows)
		if err != nil {
			return nil, err
		}
		if pub.Identifiers.PMID == pmid {
			return pub, nil
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return nil, ErrNotFound
}

// FindByTitle looks up an owner record by exact case-folded title,
// the only handle a candidate without a DOI or PMID has. Ties go to
// the earliest-created row.
func (s *Store) FindByTitle(ctx context.Context, owner int64, title string) (*types.Publication, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+pubColumns+` FROM publications
		 WHERE owner=? AND title<>'' AND LOWER(title)=LOWER(?)
		 ORDER BY created_at, id LIMIT 1`, owner, title)
	return scanPublication(row)
}

// ListByOwner returns all of an owner's publications ordered by
// creation time, ignored records included.
func (s *Store) ListByOwner(ctx context.Context, owner int64) ([]*types.Publication, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+pubColumns+` FROM publications WHERE owner=? ORDER BY created_at, id`, owner)
	if err != nil {
		return nil, fmt.Errorf("querying publications: %w", err)
	}
	defer rows.Close()

	var pubs []*types.Publication
	for rows.Next() {
		pub, err := scanPublicationRows(rows)
		if err != nil {
			return nil, err
		}
		pubs = append(pubs, pub)
	}
	return pubs, rows.Err()
}

// --- row mapping ---

type jsonColumns struct {
	authors, identifiers, metadata, links, manualEdits, editHistory string
}

func encodeJSONColumns(pub *types.Publication) (jsonColumns, error) {
	var cols jsonColumns
	var err error
	if cols.authors, err = marshalOr(pub.Authors, "[]"); err != nil {
		return cols, err
	}
	if cols.identifiers, err = marshalOr(pub.Identifiers, "{}"); err != nil {
		return cols, err
	}
	if cols.metadata, err = marshalOr(pub.Metadata, "{}"); err != nil {
		return cols, err
	}
	if cols.links, err = marshalOr(pub.Links, "{}"); err != nil {
		return cols, err
	}
	if cols.manualEdits, err = marshalOr(pub.ManualEdits, "{}"); err != nil {
		return cols, err
	}
	if cols.editHistory, err = marshalOr(pub.EditHistory, "[]"); err != nil {
		return cols, err
	}
	return cols, nil
}

func marshalOr(v any, empty string) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encoding column: %w", err)
	}
	s := string(data)
	if s == "null" {
		s = empty
	}
	return s, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPublication(row *sql.Row) (*types.Publication, error) {
	pub, err := scanFrom(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return pub, err
}

func scanPublicationRows(rows *sql.Rows) (*types.Publication, error) {
	return scanFrom(rows)
}

func scanFrom(r rowScanner) (*types.Publication, error) {
	var pub types.Publication
	var authors, identifiers, metadata, links, manualEdits, editHistory string
	var isPreprint, isIgnored int
	var source, createdAt, updatedAt, lastAPISync, enrichedAt string

	err := r.Scan(
		&pub.ID, &pub.Owner, &pub.DOI, &pub.Title, &pub.Year, &pub.Journal,
		&pub.Volume, &pub.PageRange,
		&authors, &identifiers, &metadata, &links, &manualEdits, &editHistory,
		&isPreprint, &pub.PreprintServer, &isIgnored, &pub.IgnoreReason, &source,
		&createdAt, &updatedAt, &lastAPISync, &enrichedAt,
	)
	if err != nil {
		return nil, err
	}

	pub.IsPreprint = isPreprint != 0
	pub.IsIgnored = isIgnored != 0
	pub.Source = types.SourceType(source)

	for _, col := range []struct {
		data string
		dst  any
	}{
		{authors, &pub.Authors},
		{identifiers, &pub.Identifiers},
		{metadata, &pub.Metadata},
		{links, &pub.Links},
		{manualEdits, &pub.ManualEdits},
		{editHistory, &pub.EditHistory},
	} {
		if err := json.Unmarshal([]byte(col.data), col.dst); err != nil {
			return nil, fmt.Errorf("decoding publication %d: %w", pub.ID, err)
		}
	}

	pub.CreatedAt = parseTime(createdAt)
	pub.UpdatedAt = parseTime(updatedAt)
	pub.LastAPISync = parseTime(lastAPISync)
	pub.EnrichmentAttemptedAt = parseTime(enrichedAt)
	return &pub, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
