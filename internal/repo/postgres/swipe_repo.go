package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/listergram/backend/internal/domain/enums"
	"github.com/listergram/backend/internal/domain/model"
)

var ErrSwipeNotFound = errors.New("swipe not found")

type SwipeRepo struct {
	pool *pgxpool.Pool
}

func NewSwipeRepo(pool *pgxpool.Pool) *SwipeRepo {
	return &SwipeRepo{pool: pool}
}

// Record appends the decision to swipe_events and makes it the current
// decision for (actor, target, mode), replacing any earlier one.
func (r *SwipeRepo) Record(ctx context.Context, tx pgx.Tx, d model.SwipeDecision) error {
	if d.ActorID == uuid.Nil || d.TargetID == uuid.Nil || d.ActorID == d.TargetID {
		return fmt.Errorf("invalid swipe payload")
	}
	if !d.Mode.Valid() || !d.Decision.Valid() {
		return fmt.Errorf("invalid swipe payload")
	}
	if tx == nil {
		return fmt.Errorf("transaction is required")
	}

	if _, err := tx.Exec(ctx, `
INSERT INTO swipe_events (
	actor_id,
	target_id,
	mode,
	decision,
	created_at
) VALUES ($1, $2, $3, $4, $5)
`, d.ActorID, d.TargetID, string(d.Mode), string(d.Decision), d.DecidedAt); err != nil {
		return fmt.Errorf("append swipe event: %w", err)
	}

	if _, err := tx.Exec(ctx, `
INSERT INTO swipe_decisions (
	actor_id,
	target_id,
	mode,
	decision,
	decided_at
) VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (actor_id, target_id, mode) DO UPDATE SET
	decision = EXCLUDED.decision,
	decided_at = EXCLUDED.decided_at
`, d.ActorID, d.TargetID, string(d.Mode), string(d.Decision), d.DecidedAt); err != nil {
		return fmt.Errorf("upsert swipe decision: %w", err)
	}

	return nil
}

func (r *SwipeRepo) Get(ctx context.Context, tx pgx.Tx, actorID, targetID uuid.UUID, mode enums.Mode) (model.SwipeDecision, error) {
	q, err := conn(r.pool, tx)
	if err != nil {
		return model.SwipeDecision{}, err
	}

	d := model.SwipeDecision{ActorID: actorID, TargetID: targetID, Mode: mode}
	var decision string
	err = q.QueryRow(ctx, `
SELECT decision, decided_at
FROM swipe_decisions
WHERE actor_id = $1 AND target_id = $2 AND mode = $3
`, actorID, targetID, string(mode)).Scan(&decision, &d.DecidedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.SwipeDecision{}, ErrSwipeNotFound
		}
		return model.SwipeDecision{}, fmt.Errorf("get swipe decision: %w", err)
	}
	d.Decision = enums.SwipeDecision(decision)

	return d, nil
}
