package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/listergram/backend/internal/domain/enums"
	"github.com/listergram/backend/internal/domain/model"
)

var ErrMatchNotFound = errors.New("match not found")

const matchColumns = `
	id,
	user1_id,
	user2_id,
	match_type,
	status,
	created_at,
	expires_at,
	conversation_started,
	ended_at,
	ended_by`

type MatchRepo struct {
	pool *pgxpool.Pool
}

func NewMatchRepo(pool *pgxpool.Pool) *MatchRepo {
	return &MatchRepo{pool: pool}
}

// LockPair serialises swipe handling for an unordered pair within one mode
// until the surrounding transaction ends.
func (r *MatchRepo) LockPair(ctx context.Context, tx pgx.Tx, a, b uuid.UUID, mode enums.Mode) error {
	if tx == nil {
		return fmt.Errorf("transaction is required")
	}
	user1, user2 := model.OrderedPair(a, b)
	key := user1.String() + ":" + user2.String() + ":" + string(mode)
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, key); err != nil {
		return fmt.Errorf("lock match pair: %w", err)
	}
	return nil
}

func (r *MatchRepo) Get(ctx context.Context, tx pgx.Tx, id uuid.UUID) (model.Match, error) {
	return r.get(ctx, tx, id, false)
}

// GetForUpdate row-locks the match; tx is required.
func (r *MatchRepo) GetForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (model.Match, error) {
	if tx == nil {
		return model.Match{}, fmt.Errorf("transaction is required")
	}
	return r.get(ctx, tx, id, true)
}

func (r *MatchRepo) get(ctx context.Context, tx pgx.Tx, id uuid.UUID, forUpdate bool) (model.Match, error) {
	q, err := conn(r.pool, tx)
	if err != nil {
		return model.Match{}, err
	}

	query := `SELECT` + matchColumns + ` FROM matches WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	m, err := scanMatch(q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Match{}, ErrMatchNotFound
		}
		return model.Match{}, fmt.Errorf("get match: %w", err)
	}
	return m, nil
}

func (r *MatchRepo) GetActiveForPair(ctx context.Context, tx pgx.Tx, a, b uuid.UUID, mode enums.Mode) (model.Match, error) {
	q, err := conn(r.pool, tx)
	if err != nil {
		return model.Match{}, err
	}
	user1, user2 := model.OrderedPair(a, b)

	m, err := scanMatch(q.QueryRow(ctx, `
SELECT`+matchColumns+`
FROM matches
WHERE user1_id = $1 AND user2_id = $2 AND match_type = $3 AND status = 'active'
`, user1, user2, string(mode)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Match{}, ErrMatchNotFound
		}
		return model.Match{}, fmt.Errorf("get active match: %w", err)
	}
	return m, nil
}

// CreateActive inserts an active match for the pair. When an active row
// already exists the existing match is returned with created=false.
func (r *MatchRepo) CreateActive(ctx context.Context, tx pgx.Tx, m model.Match) (model.Match, bool, error) {
	if m.ID == uuid.Nil || m.User1ID == uuid.Nil || m.User2ID == uuid.Nil || m.User1ID == m.User2ID {
		return model.Match{}, false, fmt.Errorf("invalid match payload")
	}
	if tx == nil {
		return model.Match{}, false, fmt.Errorf("transaction is required")
	}
	user1, user2 := model.OrderedPair(m.User1ID, m.User2ID)

	created, err := scanMatch(tx.QueryRow(ctx, `
INSERT INTO matches (
	id,
	user1_id,
	user2_id,
	match_type,
	status,
	created_at,
	expires_at,
	conversation_started
) VALUES ($1, $2, $3, $4, 'active', $5, $6, FALSE)
ON CONFLICT (user1_id, user2_id, match_type) WHERE status = 'active' DO NOTHING
RETURNING`+matchColumns,
		m.ID, user1, user2, string(m.Mode), m.CreatedAt, m.ExpiresAt,
	))
	if err == nil {
		return created, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return model.Match{}, false, fmt.Errorf("create match: %w", err)
	}

	existing, err := r.GetActiveForPair(ctx, tx, user1, user2, m.Mode)
	if err != nil {
		return model.Match{}, false, fmt.Errorf("load existing match: %w", err)
	}
	return existing, false, nil
}

// ExpirePair retires an active but lapsed match for the pair so a new one
// can take its place.
func (r *MatchRepo) ExpirePair(ctx context.Context, tx pgx.Tx, a, b uuid.UUID, mode enums.Mode, now time.Time) (int64, error) {
	if tx == nil {
		return 0, fmt.Errorf("transaction is required")
	}
	user1, user2 := model.OrderedPair(a, b)

	tag, err := tx.Exec(ctx, `
UPDATE matches
SET status = 'expired', ended_at = expires_at
WHERE user1_id = $1 AND user2_id = $2 AND match_type = $3
	AND status = 'active'
	AND conversation_started = FALSE
	AND expires_at IS NOT NULL
	AND expires_at <= $4
`, user1, user2, string(mode), now)
	if err != nil {
		return 0, fmt.Errorf("expire pair match: %w", err)
	}
	return tag.RowsAffected(), nil
}

// EndActiveForPair moves every active match between a and b to status.
// A nil mode ends matches in all modes.
func (r *MatchRepo) EndActiveForPair(
	ctx context.Context,
	tx pgx.Tx,
	a, b uuid.UUID,
	mode *enums.Mode,
	status enums.MatchStatus,
	endedBy uuid.UUID,
	now time.Time,
) ([]model.Match, error) {
	if tx == nil {
		return nil, fmt.Errorf("transaction is required")
	}
	user1, user2 := model.OrderedPair(a, b)

	var modeArg *string
	if mode != nil {
		v := string(*mode)
		modeArg = &v
	}

	rows, err := tx.Query(ctx, `
UPDATE matches
SET status = $4, ended_at = $6, ended_by = $5
WHERE user1_id = $1 AND user2_id = $2
	AND ($3::text IS NULL OR match_type = $3::text)
	AND status = 'active'
RETURNING`+matchColumns, user1, user2, modeArg, string(status), endedBy, now)
	if err != nil {
		return nil, fmt.Errorf("end pair matches: %w", err)
	}
	defer rows.Close()

	return collectMatches(rows)
}

// End deactivates one match. Returns ErrMatchNotFound when the match is
// missing or no longer active.
func (r *MatchRepo) End(ctx context.Context, tx pgx.Tx, id uuid.UUID, status enums.MatchStatus, endedBy uuid.UUID, now time.Time) (model.Match, error) {
	if tx == nil {
		return model.Match{}, fmt.Errorf("transaction is required")
	}

	m, err := scanMatch(tx.QueryRow(ctx, `
UPDATE matches
SET status = $2, ended_at = $4, ended_by = $3
WHERE id = $1 AND status = 'active'
RETURNING`+matchColumns, id, string(status), endedBy, now))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Match{}, ErrMatchNotFound
		}
		return model.Match{}, fmt.Errorf("end match: %w", err)
	}
	return m, nil
}

// MarkConversationStarted flags the match and clears its expiry deadline.
func (r *MatchRepo) MarkConversationStarted(ctx context.Context, tx pgx.Tx, id uuid.UUID) error {
	if tx == nil {
		return fmt.Errorf("transaction is required")
	}

	if _, err := tx.Exec(ctx, `
UPDATE matches
SET conversation_started = TRUE, expires_at = NULL
WHERE id = $1 AND conversation_started = FALSE
`, id); err != nil {
		return fmt.Errorf("mark conversation started: %w", err)
	}
	return nil
}

// ListActiveForUser lists matches that are active at now, newest first.
func (r *MatchRepo) ListActiveForUser(ctx context.Context, tx pgx.Tx, userID uuid.UUID, mode *enums.Mode, now time.Time) ([]model.Match, error) {
	q, err := conn(r.pool, tx)
	if err != nil {
		return nil, err
	}

	var modeArg *string
	if mode != nil {
		v := string(*mode)
		modeArg = &v
	}

	rows, err := q.Query(ctx, `
SELECT`+matchColumns+`
FROM matches
WHERE (user1_id = $1 OR user2_id = $1)
	AND ($2::text IS NULL OR match_type = $2::text)
	AND status = 'active'
	AND (conversation_started OR expires_at IS NULL OR expires_at > $3)
ORDER BY created_at DESC, id
`, userID, modeArg, now)
	if err != nil {
		return nil, fmt.Errorf("list matches: %w", err)
	}
	defer rows.Close()

	return collectMatches(rows)
}

// ExpireStale marks up to limit lapsed matches as expired.
func (r *MatchRepo) ExpireStale(ctx context.Context, now time.Time, limit int) (int64, error) {
	if r.pool == nil {
		return 0, nil
	}
	if limit <= 0 {
		limit = 500
	}

	tag, err := r.pool.Exec(ctx, `
UPDATE matches
SET status = 'expired', ended_at = expires_at
WHERE id IN (
	SELECT id FROM matches
	WHERE status = 'active'
		AND conversation_started = FALSE
		AND expires_at IS NOT NULL
		AND expires_at <= $1
	ORDER BY expires_at
	LIMIT $2
	FOR UPDATE SKIP LOCKED
)
`, now, limit)
	if err != nil {
		return 0, fmt.Errorf("expire stale matches: %w", err)
	}
	return tag.RowsAffected(), nil
}

func collectMatches(rows pgx.Rows) ([]model.Match, error) {
	out := make([]model.Match, 0)
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, fmt.Errorf("scan match: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate matches: %w", err)
	}
	return out, nil
}

func scanMatch(row pgx.Row) (model.Match, error) {
	var (
		m      model.Match
		mode   string
		status string
	)
	if err := row.Scan(
		&m.ID,
		&m.User1ID,
		&m.User2ID,
		&mode,
		&status,
		&m.CreatedAt,
		&m.ExpiresAt,
		&m.ConversationStarted,
		&m.EndedAt,
		&m.EndedBy,
	); err != nil {
		return model.Match{}, err
	}
	m.Mode = enums.Mode(mode)
	m.Status = enums.MatchStatus(status)
	return m, nil
}
