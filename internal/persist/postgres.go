// internal/persist/postgres.go
package persist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/zhongsurehow/zhouyi/internal/game"
)

// Postgres stores room snapshots as jsonb rows keyed by room id.
type Postgres struct {
	pool *pgxpool.Pool
}

// ConnectPostgres opens a pgx pool and verifies connectivity.
func ConnectPostgres(ctx context.Context, connString string) (*Postgres, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parse pgx config: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

// LoadState fetches the snapshot saved for a room, if any.
func (p *Postgres) LoadState(ctx context.Context, roomID uuid.UUID) (game.Snapshot, bool, error) {
	var raw []byte
	q := `SELECT snapshot FROM room_states WHERE room_id = $1`
	err := p.pool.QueryRow(ctx, q, roomID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return game.Snapshot{}, false, nil
	}
	if err != nil {
		return game.Snapshot{}, false, fmt.Errorf("load state for room %s: %w", roomID, err)
	}

	var snap game.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return game.Snapshot{}, false, fmt.Errorf("decode state for room %s: %w", roomID, err)
	}
	return snap, true, nil
}

// SaveState upserts the room's snapshot.
func (p *Postgres) SaveState(ctx context.Context, roomID uuid.UUID, snap game.Snapshot) error {
	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode state for room %s: %w", roomID, err)
	}
	q := `
		INSERT INTO room_states (room_id, snapshot, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (room_id) DO UPDATE SET snapshot = EXCLUDED.snapshot, updated_at = now()
	`
	if _, err := p.pool.Exec(ctx, q, roomID, raw); err != nil {
		return fmt.Errorf("save state for room %s: %w", roomID, err)
	}
	return nil
}

// DeleteState removes a closed room's snapshot.
func (p *Postgres) DeleteState(ctx context.Context, roomID uuid.UUID) error {
	if _, err := p.pool.Exec(ctx, `DELETE FROM room_states WHERE room_id = $1`, roomID); err != nil {
		return fmt.Errorf("delete state for room %s: %w", roomID, err)
	}
	return nil
}

// Close releases the pool.
func (p *Postgres) Close() { p.pool.Close() }
