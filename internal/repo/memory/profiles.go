package memory

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/listergram/backend/internal/domain/enums"
	"github.com/listergram/backend/internal/domain/model"
	"github.com/listergram/backend/internal/domain/rules"
	pgrepo "github.com/listergram/backend/internal/repo/postgres"
)

type ProfileRepo struct {
	store *Store
}

func (r *ProfileRepo) Get(_ context.Context, _ pgx.Tx, id uuid.UUID) (model.Profile, error) {
	p, ok := r.store.state.profiles[id]
	if !ok {
		return model.Profile{}, pgrepo.ErrProfileNotFound
	}
	return p, nil
}

func (r *ProfileRepo) Upsert(_ context.Context, _ pgx.Tx, p model.Profile, now time.Time) (model.Profile, error) {
	if p.ID == uuid.Nil {
		return model.Profile{}, fmt.Errorf("invalid profile payload")
	}
	st := r.store.state
	for id, other := range st.profiles {
		if id != p.ID && strings.EqualFold(other.Username, p.Username) {
			return model.Profile{}, pgrepo.ErrUsernameTaken
		}
	}

	if existing, ok := st.profiles[p.ID]; ok {
		p.CreatedAt = existing.CreatedAt
		p.DisabledAt = existing.DisabledAt
	} else {
		p.CreatedAt = now
	}
	if p.Interests == nil {
		p.Interests = []string{}
	}
	p.UpdatedAt = now
	st.profiles[p.ID] = p
	return p, nil
}

func (r *ProfileRepo) SetModes(_ context.Context, _ pgx.Tx, id uuid.UUID, dating, friends bool, now time.Time) (model.Profile, error) {
	p, ok := r.store.state.profiles[id]
	if !ok {
		return model.Profile{}, pgrepo.ErrProfileNotFound
	}
	p.DatingEnabled = dating
	p.FriendModeEnabled = friends
	p.UpdatedAt = now
	r.store.state.profiles[id] = p
	return p, nil
}

func (r *ProfileRepo) Disable(_ context.Context, _ pgx.Tx, id uuid.UUID, now time.Time) (model.Profile, error) {
	p, ok := r.store.state.profiles[id]
	if !ok {
		return model.Profile{}, pgrepo.ErrProfileNotFound
	}
	if p.DisabledAt == nil {
		at := now
		p.DisabledAt = &at
	}
	p.UpdatedAt = now
	r.store.state.profiles[id] = p
	return p, nil
}

func (r *ProfileRepo) ListCandidates(
	_ context.Context,
	_ pgx.Tx,
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
	st := r.store.state

	out := make([]model.Profile, 0, limit)
	for _, id := range sortedProfileIDs(st.profiles) {
		if len(out) == limit {
			break
		}
		p := st.profiles[id]
		switch {
		case id == viewerID:
			continue
		case after != nil && !less(*after, id):
			continue
		case !p.EnabledFor(mode):
			continue
		}
		if _, swiped := st.decisions[swipeKey{actor: viewerID, target: id, mode: mode}]; swiped {
			continue
		}
		if blockedBetween(st, viewerID, id) {
			continue
		}
		if _, ok := activePairMatch(st, viewerID, id, mode, &now); ok {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func blockedBetween(st *state, a, b uuid.UUID) bool {
	_, ab := st.blocks[blockKey{blocker: a, blocked: b}]
	_, ba := st.blocks[blockKey{blocker: b, blocked: a}]
	return ab || ba
}

// activePairMatch finds the active row for the pair. With now set, lapsed
// rows are treated as absent.
func activePairMatch(st *state, a, b uuid.UUID, mode enums.Mode, now *time.Time) (model.Match, bool) {
	user1, user2 := model.OrderedPair(a, b)
	id, ok := st.active[pairKey{user1: user1, user2: user2, mode: mode}]
	if !ok {
		return model.Match{}, false
	}
	m := st.matches[id]
	if now != nil && rules.MatchExpired(m, *now) {
		return model.Match{}, false
	}
	return m, true
}
