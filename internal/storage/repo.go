// Package storage persists property versions in SQLite. Each version is
// one row holding the full aggregate document as JSON next to the
// columns the API filters and the concurrency check need. The revision
// column is the optimistic concurrency token: writes only land when the
// caller's expected revision still matches.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/matthewbaird/proforma/internal/types"
)

var (
	// ErrNotFound reports a missing property version.
	ErrNotFound = errors.New("property version not found")
	// ErrRevisionMismatch reports a stale expected revision: another
	// write landed first.
	ErrRevisionMismatch = errors.New("expected revision does not match stored revision")
)

const schema = `
CREATE TABLE IF NOT EXISTS property_versions (
	property_id   TEXT    NOT NULL,
	version       TEXT    NOT NULL,
	revision      INTEGER NOT NULL,
	is_latest     INTEGER NOT NULL,
	is_historical INTEGER NOT NULL,
	data          TEXT    NOT NULL,
	PRIMARY KEY (property_id, version)
);
`

// Repo is a SQLite-backed property version repository.
type Repo struct {
	db *sql.DB
}

// NewRepo wraps an open database handle.
func NewRepo(db *sql.DB) *Repo {
	return &Repo{db: db}
}

// Migrate creates the schema.
func (r *Repo) Migrate(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, schema)
	return err
}

// GetVersion loads one aggregate.
func (r *Repo) GetVersion(ctx context.Context, propertyID, version string) (*types.PropertyVersion, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT data FROM property_versions WHERE property_id = ? AND version = ?`,
		propertyID, version)

	var data []byte
	if err := row.Scan(&data); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	var pv types.PropertyVersion
	if err := json.Unmarshal(data, &pv); err != nil {
		return nil, fmt.Errorf("decoding stored aggregate: %w", err)
	}
	return &pv, nil
}

// ListVersions returns version summaries ordered by version string.
func (r *Repo) ListVersions(ctx context.Context, propertyID string) ([]types.VersionOption, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT version, revision, is_historical FROM property_versions
		 WHERE property_id = ? ORDER BY version`,
		propertyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	versions := []types.VersionOption{}
	for rows.Next() {
		var v types.VersionOption
		if err := rows.Scan(&v.Version, &v.Revision, &v.IsHistorical); err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

// InsertVersion stores a brand-new version row.
func (r *Repo) InsertVersion(ctx context.Context, pv *types.PropertyVersion) error {
	return insertVersion(ctx, r.db, pv)
}

// UpdateVersion replaces an existing version's aggregate. The write only
// lands when the stored revision still equals expectedRevision; pv must
// already carry the advanced revision.
func (r *Repo) UpdateVersion(ctx context.Context, pv *types.PropertyVersion, expectedRevision int64) error {
	data, err := json.Marshal(pv)
	if err != nil {
		return fmt.Errorf("encoding aggregate: %w", err)
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE property_versions
		 SET revision = ?, is_latest = ?, is_historical = ?, data = ?
		 WHERE property_id = ? AND version = ? AND revision = ?`,
		pv.Revision, boolInt(pv.IsLatest), boolInt(pv.IsHistorical), data,
		pv.PropertyID, pv.Version, expectedRevision)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		// Distinguish a stale revision from a missing row.
		if _, getErr := r.GetVersion(ctx, pv.PropertyID, pv.Version); getErr != nil {
			return getErr
		}
		return ErrRevisionMismatch
	}
	return nil
}

// CreateNextVersion atomically retires prev (historical, not latest) and
// inserts next as the new latest version. The prev row must still carry
// expectedRevision.
func (r *Repo) CreateNextVersion(ctx context.Context, prev *types.PropertyVersion, expectedRevision int64, next *types.PropertyVersion) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	retired := prev.Clone()
	retired.IsLatest = false
	retired.IsHistorical = true
	data, err := json.Marshal(retired)
	if err != nil {
		return fmt.Errorf("encoding aggregate: %w", err)
	}
	res, err := tx.ExecContext(ctx,
		`UPDATE property_versions
		 SET is_latest = 0, is_historical = 1, data = ?
		 WHERE property_id = ? AND version = ? AND revision = ?`,
		data, retired.PropertyID, retired.Version, expectedRevision)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrRevisionMismatch
	}

	if err := insertVersion(ctx, tx, next); err != nil {
		return err
	}
	return tx.Commit()
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertVersion(ctx context.Context, db execer, pv *types.PropertyVersion) error {
	data, err := json.Marshal(pv)
	if err != nil {
		return fmt.Errorf("encoding aggregate: %w", err)
	}
	_, err = db.ExecContext(ctx,
		`INSERT INTO property_versions (property_id, version, revision, is_latest, is_historical, data)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		pv.PropertyID, pv.Version, pv.Revision, boolInt(pv.IsLatest), boolInt(pv.IsHistorical), data)
	return err
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
