package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type BlockRepo struct {
	pool *pgxpool.Pool
}

func NewBlockRepo(pool *pgxpool.Pool) *BlockRepo {
	return &BlockRepo{pool: pool}
}

func (r *BlockRepo) Upsert(ctx context.Context, tx pgx.Tx, blockerID, blockedID uuid.UUID, reason string, now time.Time) error {
	if blockerID == uuid.Nil || blockedID == uuid.Nil || blockerID == blockedID {
		return fmt.Errorf("invalid block payload")
	}
	if tx == nil {
		return fmt.Errorf("transaction is required")
	}

	if _, err := tx.Exec(ctx, `
INSERT INTO blocks (
	blocker_id,
	blocked_id,
	reason,
	created_at
) VALUES ($1, $2, $3, $4)
ON CONFLICT (blocker_id, blocked_id) DO UPDATE SET
	reason = EXCLUDED.reason
`, blockerID, blockedID, strings.TrimSpace(reason), now); err != nil {
		return fmt.Errorf("upsert block: %w", err)
	}

	return nil
}

// ExistsBetween reports a block in either direction.
func (r *BlockRepo) ExistsBetween(ctx context.Context, tx pgx.Tx, a, b uuid.UUID) (bool, error) {
	q, err := conn(r.pool, tx)
	if err != nil {
		return false, err
	}

	var exists bool
	if err := q.QueryRow(ctx, `
SELECT EXISTS (
	SELECT 1 FROM blocks
	WHERE (blocker_id = $1 AND blocked_id = $2) OR (blocker_id = $2 AND blocked_id = $1)
)`, a, b).Scan(&exists); err != nil {
		return false, fmt.Errorf("check block: %w", err)
	}
	return exists, nil
}
