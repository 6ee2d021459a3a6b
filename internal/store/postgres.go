package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clearclaim/billaudit/internal/common"
	"github.com/clearclaim/billaudit/internal/entity"
)

const createBillRecords = `
CREATE TABLE IF NOT EXISTS bill_records (
	fingerprint   TEXT PRIMARY KEY,
	bill_id       TEXT NOT NULL,
	digest        TEXT NOT NULL,
	secondary_key TEXT NOT NULL,
	total_minor   BIGINT NOT NULL,
	amounts_minor BIGINT[] NOT NULL,
	committed_at  TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS bill_records_secondary_key_idx ON bill_records (secondary_key);`

// Postgres is the relational backend. The primary-key constraint on the
// fingerprint makes INSERT .. ON CONFLICT DO NOTHING the check-and-insert.
type Postgres struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewPostgres(ctx context.Context, cfg common.StoreConfig, logger *slog.Logger) (*Postgres, error) {
	if logger == nil {
		logger = slog.Default()
	}
	pc, err := pgxpool.ParseConfig(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("parsing postgres dsn: %w", err)
	}
	pc.MaxConns = cfg.MaxConns
	pc.MaxConnLifetime = 30 * time.Minute
	pc.MaxConnIdleTime = 5 * time.Minute
	pc.ConnConfig.RuntimeParams["application_name"] = "billaudit"

	dialCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	pool, err := pgxpool.NewWithConfig(dialCtx, pc)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, createBillRecords); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensuring bill_records table: %w", err)
	}
	logger.Info("store.postgres.ready", "max_conns", cfg.MaxConns)
	return &Postgres{pool: pool, logger: logger}, nil
}

func (p *Postgres) Lookup(ctx context.Context, fp entity.Fingerprint) (*entity.BillRecord, error) {
	row := p.pool.QueryRow(ctx,
		`SELECT fingerprint, bill_id, digest, secondary_key, total_minor, amounts_minor, committed_at
		 FROM bill_records WHERE fingerprint = $1`, fp.String())
	rec, err := scanRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres lookup: %w", err)
	}
	return rec, nil
}

func (p *Postgres) Candidates(ctx context.Context, keys []string) ([]*entity.BillRecord, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT fingerprint, bill_id, digest, secondary_key, total_minor, amounts_minor, committed_at
		 FROM bill_records WHERE secondary_key = ANY($1)`, keys)
	if err != nil {
		return nil, fmt.Errorf("postgres candidates: %w", err)
	}
	defer rows.Close()

	var out []*entity.BillRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres candidates: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (p *Postgres) Commit(ctx context.Context, rec *entity.BillRecord) error {
	tag, err := p.pool.Exec(ctx,
		`INSERT INTO bill_records (fingerprint, bill_id, digest, secondary_key, total_minor, amounts_minor, committed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (fingerprint) DO NOTHING`,
		rec.Fingerprint.String(), rec.BillID, rec.Digest, rec.SecondaryKey,
		rec.TotalMinor, rec.AmountsMinor, rec.CommittedAt)
	if err != nil {
		return fmt.Errorf("postgres commit: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return common.ErrAlreadyExists
	}
	return nil
}

func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}

func scanRecord(row pgx.Row) (*entity.BillRecord, error) {
	var (
		rec   entity.BillRecord
		hexFP string
	)
	if err := row.Scan(&hexFP, &rec.BillID, &rec.Digest, &rec.SecondaryKey,
		&rec.TotalMinor, &rec.AmountsMinor, &rec.CommittedAt); err != nil {
		return nil, err
	}
	fp, err := entity.ParseFingerprint(hexFP)
	if err != nil {
		return nil, err
	}
	rec.Fingerprint = fp
	return &rec, nil
}
