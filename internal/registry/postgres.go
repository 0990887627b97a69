package registry

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"gridLadder/internal/model"
)

// PostgresStore provides Postgres persistence for instance records.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// InsertInstance records a deployed engine, idempotent on the id.
func (s *PostgresStore) InsertInstance(ctx context.Context, instance model.Instance) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO instances (
			id, owner_address, base_token, quote_token, created_at
		) VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO NOTHING
	`,
		instance.ID,
		instance.Owner,
		instance.BaseToken,
		instance.QuoteToken,
		instance.CreatedAt,
	)
	return err
}

// ListInstances returns all recorded instances, newest first.
func (s *PostgresStore) ListInstances(ctx context.Context) ([]model.Instance, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, owner_address, base_token, quote_token, created_at
		FROM instances
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var instances []model.Instance
	for rows.Next() {
		var inst model.Instance
		if err := rows.Scan(&inst.ID, &inst.Owner, &inst.BaseToken, &inst.QuoteToken, &inst.CreatedAt); err != nil {
			return nil, err
		}
		instances = append(instances, inst)
	}
	return instances, rows.Err()
}
