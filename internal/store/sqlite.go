package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/parut/agri-advisor/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS advisories (
	id              TEXT PRIMARY KEY,
	region          TEXT NOT NULL,
	crop            TEXT NOT NULL,
	stage           TEXT NOT NULL,
	issued_at       DATETIME NOT NULL,
	detailed_report TEXT NOT NULL,
	brief           TEXT NOT NULL,
	provenance      TEXT NOT NULL,
	created_at      DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_advisories_region ON advisories(region);
CREATE INDEX IF NOT EXISTS idx_advisories_crop ON advisories(crop);
CREATE INDEX IF NOT EXISTS idx_advisories_created_at ON advisories(created_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveAdvisory inserts an advisory, assigning an ID and created-at when
// absent. The advisory is mutated in place with the assigned values.
func (s *SQLiteStore) SaveAdvisory(ctx context.Context, adv *model.Advisory) error {
	if adv.ID == "" {
		adv.ID = uuid.New().String()
	}
	if adv.CreatedAt.IsZero() {
		adv.CreatedAt = time.Now().UTC()
	}

	provenanceJSON, err := json.Marshal(adv.Provenance)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal provenance")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO advisories (id, region, crop, stage, issued_at, detailed_report, brief, provenance, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		adv.ID, adv.Profile.Region, string(adv.Profile.Crop), adv.Profile.Stage,
		adv.IssuedAt.UTC(), adv.DetailedReport, adv.Brief, string(provenanceJSON), adv.CreatedAt,
	)
	return eris.Wrap(err, "sqlite: insert advisory")
}

func (s *SQLiteStore) GetAdvisory(ctx context.Context, id string) (*model.Advisory, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, region, crop, stage, issued_at, detailed_report, brief, provenance, created_at
		 FROM advisories WHERE id = ?`,
		id,
	)
	return scanAdvisory(row)
}

func (s *SQLiteStore) ListAdvisories(ctx context.Context, filter ListFilter) ([]model.Advisory, error) {
	query := `SELECT id, region, crop, stage, issued_at, detailed_report, brief, provenance, created_at
	          FROM advisories WHERE 1=1`
	var args []any

	if filter.Region != "" {
		query += ` AND region = ?`
		args = append(args, filter.Region)
	}
	if filter.Crop != "" {
		query += ` AND crop = ?`
		args = append(args, filter.Crop)
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list advisories")
	}
	defer rows.Close()

	var advisories []model.Advisory
	for rows.Next() {
		adv, err := scanAdvisory(rows)
		if err != nil {
			return nil, err
		}
		advisories = append(advisories, *adv)
	}
	return advisories, eris.Wrap(rows.Err(), "sqlite: list advisories iterate")
}

// helpers

type scannable interface {
	Scan(dest ...any) error
}

func scanAdvisory(row scannable) (*model.Advisory, error) {
	var adv model.Advisory
	var crop, provenanceJSON string

	err := row.Scan(&adv.ID, &adv.Profile.Region, &crop, &adv.Profile.Stage,
		&adv.IssuedAt, &adv.DetailedReport, &adv.Brief, &provenanceJSON, &adv.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrAdvisoryNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan advisory")
	}

	adv.Profile.Crop = model.Crop(crop)
	if err := json.Unmarshal([]byte(provenanceJSON), &adv.Provenance); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal provenance")
	}
	return &adv, nil
}
