package store

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/parut/agri-advisor/internal/db"
	"github.com/parut/agri-advisor/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection.
var preparedStatements = map[string]string{
	"insert_advisory": `INSERT INTO advisories (id, region, crop, stage, issued_at, detailed_report, brief, provenance, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
	"get_advisory":    `SELECT id, region, crop, stage, issued_at, detailed_report, brief, provenance, created_at FROM advisories WHERE id = $1`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS advisories (
	id              TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	region          TEXT NOT NULL,
	crop            TEXT NOT NULL,
	stage           TEXT NOT NULL,
	issued_at       TIMESTAMPTZ NOT NULL,
	detailed_report TEXT NOT NULL,
	brief           TEXT NOT NULL,
	provenance      JSONB NOT NULL,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_advisories_region ON advisories(region);
CREATE INDEX IF NOT EXISTS idx_advisories_crop ON advisories(crop);
CREATE INDEX IF NOT EXISTS idx_advisories_created_at ON advisories(created_at);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// SaveAdvisory inserts an advisory, assigning an ID and created-at when
// absent. The advisory is mutated in place with the assigned values.
func (s *PostgresStore) SaveAdvisory(ctx context.Context, adv *model.Advisory) error {
	if adv.ID == "" {
		adv.ID = uuid.New().String()
	}
	if adv.CreatedAt.IsZero() {
		adv.CreatedAt = time.Now().UTC()
	}

	provenanceJSON, err := json.Marshal(adv.Provenance)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal provenance")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO advisories (id, region, crop, stage, issued_at, detailed_report, brief, provenance, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		adv.ID, adv.Profile.Region, string(adv.Profile.Crop), adv.Profile.Stage,
		adv.IssuedAt, adv.DetailedReport, adv.Brief, provenanceJSON, adv.CreatedAt,
	)
	return eris.Wrap(err, "postgres: insert advisory")
}

func (s *PostgresStore) GetAdvisory(ctx context.Context, id string) (*model.Advisory, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, region, crop, stage, issued_at, detailed_report, brief, provenance, created_at
		 FROM advisories WHERE id = $1`,
		id,
	)

	adv, err := scanPgAdvisory(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrAdvisoryNotFound, "id %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get advisory %s", id)
	}
	return adv, nil
}

func (s *PostgresStore) ListAdvisories(ctx context.Context, filter ListFilter) ([]model.Advisory, error) {
	query := `SELECT id, region, crop, stage, issued_at, detailed_report, brief, provenance, created_at
	          FROM advisories WHERE 1=1`
	var args []any

	if filter.Region != "" {
		args = append(args, filter.Region)
		query += ` AND region = $1`
	}
	if filter.Crop != "" {
		args = append(args, filter.Crop)
		query += placeholder(` AND crop = `, len(args))
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)
	query += placeholder(` LIMIT `, len(args))

	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += placeholder(` OFFSET `, len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list advisories")
	}
	defer rows.Close()

	var advisories []model.Advisory
	for rows.Next() {
		adv, err := scanPgAdvisory(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan advisory")
		}
		advisories = append(advisories, *adv)
	}
	return advisories, eris.Wrap(rows.Err(), "postgres: list advisories iterate")
}

func placeholder(prefix string, n int) string {
	return prefix + "$" + strconv.Itoa(n)
}

func scanPgAdvisory(row pgx.Row) (*model.Advisory, error) {
	var adv model.Advisory
	var crop string
	var provenanceJSON []byte

	err := row.Scan(&adv.ID, &adv.Profile.Region, &crop, &adv.Profile.Stage,
		&adv.IssuedAt, &adv.DetailedReport, &adv.Brief, &provenanceJSON, &adv.CreatedAt)
	if err != nil {
		return nil, err
	}

	adv.Profile.Crop = model.Crop(crop)
	if err := json.Unmarshal(provenanceJSON, &adv.Provenance); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal provenance")
	}
	return &adv, nil
}
