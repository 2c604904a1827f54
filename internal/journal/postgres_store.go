package journal

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists journal rows in a PostgreSQL table.
type PostgresStore struct {
	pool *pgxpool.Pool
}

const createTableSQL = `
CREATE TABLE IF NOT EXISTS issuance_journal (
    id TEXT PRIMARY KEY,
    state TEXT NOT NULL,
    submitted INT NOT NULL,
    total INT NOT NULL,
    tx_hashes TEXT[] NOT NULL DEFAULT '{}',
    link TEXT NOT NULL DEFAULT '',
    failure TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMPTZ NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL
);
`

// NewPostgresStore connects to Postgres using the DSN and ensures the table exists.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	if dsn == "" {
		return nil, errors.New("postgres dsn is empty")
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	if _, err := pool.Exec(ctx, createTableSQL); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

func (p *PostgresStore) Close() {
	if p.pool != nil {
		p.pool.Close()
	}
}

// pgTxHashes guards the NOT NULL tx_hashes column: pre-broadcast states
// carry no hashes yet, and a nil slice would encode as SQL NULL.
func pgTxHashes(hashes []string) []string {
	if hashes == nil {
		return []string{}
	}
	return hashes
}

func (p *PostgresStore) Save(ctx context.Context, record Record) error {
	_, err := p.pool.Exec(ctx, `
INSERT INTO issuance_journal (id, state, submitted, total, tx_hashes, link, failure, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (id) DO UPDATE
SET state = EXCLUDED.state,
    submitted = EXCLUDED.submitted,
    total = EXCLUDED.total,
    tx_hashes = EXCLUDED.tx_hashes,
    link = EXCLUDED.link,
    failure = EXCLUDED.failure,
    updated_at = EXCLUDED.updated_at
`, record.ID, string(record.State), record.Submitted, record.Total, pgTxHashes(record.TxHashes),
		record.Link, record.Failure, record.CreatedAt, record.UpdatedAt)
	return err
}

func (p *PostgresStore) Get(ctx context.Context, id string) (*Record, error) {
	row := p.pool.QueryRow(ctx, `
SELECT id, state, submitted, total, tx_hashes, link, failure, created_at, updated_at
FROM issuance_journal
WHERE id = $1
`, id)

	var rec Record
	var state string
	if err := row.Scan(&rec.ID, &state, &rec.Submitted, &rec.Total, &rec.TxHashes,
		&rec.Link, &rec.Failure, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	rec.State = State(state)
	return &rec, nil
}
