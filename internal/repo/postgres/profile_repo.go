package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/listergram/backend/internal/domain/enums"
	"github.com/listergram/backend/internal/domain/model"
)

var (
	ErrProfileNotFound = errors.New("profile not found")
	ErrUsernameTaken   = errors.New("username already taken")
)

const profileColumns = `
	id,
	email,
	full_name,
	username,
	tower,
	floor,
	program,
	year_of_study,
	bio,
	pronouns,
	age,
	interests,
	dating_enabled,
	friend_mode_enabled,
	disabled_at,
	created_at,
	updated_at`

type ProfileRepo struct {
	pool *pgxpool.Pool
}

func NewProfileRepo(pool *pgxpool.Pool) *ProfileRepo {
	return &ProfileRepo{pool: pool}
}

func (r *ProfileRepo) Get(ctx context.Context, tx pgx.Tx, id uuid.UUID) (model.Profile, error) {
	q, err := conn(r.pool, tx)
	if err != nil {
		return model.Profile{}, err
	}

	profile, err := scanProfile(q.QueryRow(ctx, `SELECT`+profileColumns+` FROM profiles WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Profile{}, ErrProfileNotFound
		}
		return model.Profile{}, fmt.Errorf("get profile: %w", err)
	}
	return profile, nil
}

// Upsert creates the profile or replaces its owner-editable fields.
// disabled_at is left alone on update.
func (r *ProfileRepo) Upsert(ctx context.Context, tx pgx.Tx, p model.Profile, now time.Time) (model.Profile, error) {
	if p.ID == uuid.Nil {
		return model.Profile{}, fmt.Errorf("invalid profile payload")
	}
	if tx == nil {
		return model.Profile{}, fmt.Errorf("transaction is required")
	}

	interests := p.Interests
	if interests == nil {
		interests = []string{}
	}

	profile, err := scanProfile(tx.QueryRow(ctx, `
INSERT INTO profiles (
	id,
	email,
	full_name,
	username,
	tower,
	floor,
	program,
	year_of_study,
	bio,
	pronouns,
	age,
	interests,
	dating_enabled,
	friend_mode_enabled,
	created_at,
	updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $15)
ON CONFLICT (id) DO UPDATE SET
	email = EXCLUDED.email,
	full_name = EXCLUDED.full_name,
	username = EXCLUDED.username,
	tower = EXCLUDED.tower,
	floor = EXCLUDED.floor,
	program = EXCLUDED.program,
	year_of_study = EXCLUDED.year_of_study,
	bio = EXCLUDED.bio,
	pronouns = EXCLUDED.pronouns,
	age = EXCLUDED.age,
	interests = EXCLUDED.interests,
	dating_enabled = EXCLUDED.dating_enabled,
	friend_mode_enabled = EXCLUDED.friend_mode_enabled,
	updated_at = EXCLUDED.updated_at
RETURNING`+profileColumns,
		p.ID,
		strings.TrimSpace(p.Email),
		p.FullName,
		p.Username,
		string(p.Tower),
		p.Floor,
		p.Program,
		string(p.YearOfStudy),
		p.Bio,
		p.Pronouns,
		p.Age,
		interests,
		p.DatingEnabled,
		p.FriendModeEnabled,
		now,
	))
	if err != nil {
		if isUniqueViolation(err) {
			return model.Profile{}, ErrUsernameTaken
		}
		return model.Profile{}, fmt.Errorf("upsert profile: %w", err)
	}
	return profile, nil
}

func (r *ProfileRepo) SetModes(ctx context.Context, tx pgx.Tx, id uuid.UUID, dating, friends bool, now time.Time) (model.Profile, error) {
	if tx == nil {
		return model.Profile{}, fmt.Errorf("transaction is required")
	}

	profile, err := scanProfile(tx.QueryRow(ctx, `
UPDATE profiles
SET dating_enabled = $2, friend_mode_enabled = $3, updated_at = $4
WHERE id = $1
RETURNING`+profileColumns, id, dating, friends, now))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Profile{}, ErrProfileNotFound
		}
		return model.Profile{}, fmt.Errorf("set profile modes: %w", err)
	}
	return profile, nil
}

// Disable soft-disables the profile. Disabling twice keeps the first timestamp.
func (r *ProfileRepo) Disable(ctx context.Context, tx pgx.Tx, id uuid.UUID, now time.Time) (model.Profile, error) {
	if tx == nil {
		return model.Profile{}, fmt.Errorf("transaction is required")
	}

	profile, err := scanProfile(tx.QueryRow(ctx, `
UPDATE profiles
SET disabled_at = COALESCE(disabled_at, $2), updated_at = $2
WHERE id = $1
RETURNING`+profileColumns, id, now))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Profile{}, ErrProfileNotFound
		}
		return model.Profile{}, fmt.Errorf("disable profile: %w", err)
	}
	return profile, nil
}

// ListCandidates returns profiles the viewer may still swipe on in mode,
// ordered by id and starting strictly after the given id.
func (r *ProfileRepo) ListCandidates(
	ctx context.Context,
	tx pgx.Tx,
	viewerID uuid.UUID,
	mode enums.Mode,
	after *uuid.UUID,
	limit int,
	now time.Time,
) ([]model.Profile, error) {
	if viewerID == uuid.Nil || !mode.Valid() {
		return nil, fmt.Errorf("invalid candidate query payload")
	}
	if limit <= 0 {
		limit = 20
	}
	q, err := conn(r.pool, tx)
	if err != nil {
		return nil, err
	}

	rows, err := q.Query(ctx, `
SELECT`+profileColumns+`
FROM profiles p
WHERE p.id <> $1
	AND p.disabled_at IS NULL
	AND CASE WHEN $2::text = 'dating' THEN p.dating_enabled ELSE p.friend_mode_enabled END
	AND ($3::uuid IS NULL OR p.id > $3::uuid)
	AND NOT EXISTS (
		SELECT 1 FROM swipe_decisions s
		WHERE s.actor_id = $1 AND s.target_id = p.id AND s.mode = $2::text
	)
	AND NOT EXISTS (
		SELECT 1 FROM matches m
		WHERE m.match_type = $2::text
			AND m.status = 'active'
			AND ((m.user1_id = $1 AND m.user2_id = p.id) OR (m.user1_id = p.id AND m.user2_id = $1))
			AND (m.conversation_started OR m.expires_at IS NULL OR m.expires_at > $5)
	)
	AND NOT EXISTS (
		SELECT 1 FROM blocks b
		WHERE (b.blocker_id = $1 AND b.blocked_id = p.id) OR (b.blocker_id = p.id AND b.blocked_id = $1)
	)
ORDER BY p.id
LIMIT $4
`, viewerID, string(mode), after, limit, now)
	if err != nil {
		return nil, fmt.Errorf("list candidates: %w", err)
	}
	defer rows.Close()

	out := make([]model.Profile, 0, limit)
	for rows.Next() {
		profile, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan candidate: %w", err)
		}
		out = append(out, profile)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate candidates: %w", err)
	}

	return out, nil
}

func scanProfile(row pgx.Row) (model.Profile, error) {
	var (
		p     model.Profile
		tower string
		year  string
	)
	if err := row.Scan(
		&p.ID,
		&p.Email,
		&p.FullName,
		&p.Username,
		&tower,
		&p.Floor,
		&p.Program,
		&year,
		&p.Bio,
		&p.Pronouns,
		&p.Age,
		&p.Interests,
		&p.DatingEnabled,
		&p.FriendModeEnabled,
		&p.DisabledAt,
		&p.CreatedAt,
		&p.UpdatedAt,
	); err != nil {
		return model.Profile{}, err
	}
	p.Tower = enums.Tower(tower)
	p.YearOfStudy = enums.YearOfStudy(year)
	if p.Interests == nil {
		p.Interests = []string{}
	}
	return p, nil
}
