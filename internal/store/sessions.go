package store

import (
	"context"
	"fmt"
)

// OpenSession records the start of a simulation run and returns its id.
func (s *Store) OpenSession(ctx context.Context, seed uint64) (string, error) {
	var id string
	err := s.db.QueryRow(ctx, `
		INSERT INTO sim_sessions (id, seed)
		VALUES (gen_random_uuid()::text, $1)
		RETURNING id`,
		// BIGINT is signed; keep the bit pattern.
		int64(seed),
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("open session: %w", err)
	}
	return id, nil
}

// CloseSession stamps the end of a run.
func (s *Store) CloseSession(ctx context.Context, id string) error {
	_, err := s.db.Exec(ctx, `UPDATE sim_sessions SET stopped_at = now() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("close session %s: %w", id, err)
	}
	return nil
}

// SessionSeed returns the seed a run was started with, so it can be replayed.
func (s *Store) SessionSeed(ctx context.Context, id string) (uint64, error) {
	var seed int64
	if err := s.db.QueryRow(ctx, `SELECT seed FROM sim_sessions WHERE id = $1`, id).Scan(&seed); err != nil {
		return 0, fmt.Errorf("session %s: %w", id, err)
	}
	return uint64(seed), nil
}
