package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/listergram/backend/internal/domain/enums"
)

var ErrSuperlikeLimitReached = errors.New("superlike limit reached")

type QuotaRepo struct {
	pool *pgxpool.Pool
}

func NewQuotaRepo(pool *pgxpool.Pool) *QuotaRepo {
	return &QuotaRepo{pool: pool}
}

func (r *QuotaRepo) GetSuperlikesUsed(ctx context.Context, tx pgx.Tx, userID uuid.UUID, mode enums.Mode, dayKey string) (int, error) {
	if userID == uuid.Nil || strings.TrimSpace(dayKey) == "" {
		return 0, fmt.Errorf("invalid quota lookup payload")
	}
	q, err := conn(r.pool, tx)
	if err != nil {
		return 0, err
	}

	var used int
	err = q.QueryRow(ctx, `
SELECT used
FROM superlike_quotas
WHERE user_id = $1 AND mode = $2 AND day_key = $3::date
`, userID, string(mode), dayKey).Scan(&used)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("get superlike usage: %w", err)
	}

	return used, nil
}

// ConsumeSuperlike spends one superlike for the day when usage is below limit.
func (r *QuotaRepo) ConsumeSuperlike(ctx context.Context, tx pgx.Tx, userID uuid.UUID, mode enums.Mode, dayKey string, limit int) (int, error) {
	if userID == uuid.Nil || strings.TrimSpace(dayKey) == "" || limit <= 0 {
		return 0, fmt.Errorf("invalid quota update payload")
	}
	if tx == nil {
		return 0, fmt.Errorf("transaction is required")
	}

	var used int
	err := tx.QueryRow(ctx, `
INSERT INTO superlike_quotas (
	user_id,
	mode,
	day_key,
	used,
	updated_at
) VALUES ($1, $2, $3::date, 1, NOW())
ON CONFLICT (user_id, mode, day_key) DO UPDATE SET
	used = superlike_quotas.used + 1,
	updated_at = NOW()
WHERE superlike_quotas.used < $4
RETURNING used
`, userID, string(mode), dayKey, limit).Scan(&used)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrSuperlikeLimitReached
		}
		return 0, fmt.Errorf("consume superlike quota: %w", err)
	}

	return used, nil
}
