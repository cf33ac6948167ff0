package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/listergram/backend/internal/domain/enums"
	"github.com/listergram/backend/internal/domain/model"
	"github.com/listergram/backend/internal/domain/rules"
	pgrepo "github.com/listergram/backend/internal/repo/postgres"
)

type MatchRepo struct {
	store *Store
}

// LockPair is a no-op: WithinTx already serialises every unit.
func (r *MatchRepo) LockPair(context.Context, pgx.Tx, uuid.UUID, uuid.UUID, enums.Mode) error {
	return nil
}

func (r *MatchRepo) Get(_ context.Context, _ pgx.Tx, id uuid.UUID) (model.Match, error) {
	m, ok := r.store.state.matches[id]
	if !ok {
		return model.Match{}, pgrepo.ErrMatchNotFound
	}
	return m, nil
}

func (r *MatchRepo) GetForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (model.Match, error) {
	return r.Get(ctx, tx, id)
}

func (r *MatchRepo) GetActiveForPair(_ context.Context, _ pgx.Tx, a, b uuid.UUID, mode enums.Mode) (model.Match, error) {
	m, ok := activePairMatch(r.store.state, a, b, mode, nil)
	if !ok {
		return model.Match{}, pgrepo.ErrMatchNotFound
	}
	return m, nil
}

func (r *MatchRepo) CreateActive(_ context.Context, _ pgx.Tx, m model.Match) (model.Match, bool, error) {
	if m.ID == uuid.Nil || m.User1ID == uuid.Nil || m.User2ID == uuid.Nil || m.User1ID == m.User2ID {
		return model.Match{}, false, fmt.Errorf("invalid match payload")
	}
	st := r.store.state
	if existing, ok := activePairMatch(st, m.User1ID, m.User2ID, m.Mode, nil); ok {
		return existing, false, nil
	}

	m.User1ID, m.User2ID = model.OrderedPair(m.User1ID, m.User2ID)
	m.Status = enums.MatchStatusActive
	m.ConversationStarted = false
	st.putMatch(m)
	return m, true, nil
}

func (r *MatchRepo) ExpirePair(_ context.Context, _ pgx.Tx, a, b uuid.UUID, mode enums.Mode, now time.Time) (int64, error) {
	st := r.store.state
	m, ok := activePairMatch(st, a, b, mode, nil)
	if !ok || !rules.MatchExpired(m, now) {
		return 0, nil
	}
	m.Status = enums.MatchStatusExpired
	m.EndedAt = m.ExpiresAt
	st.putMatch(m)
	return 1, nil
}

func (r *MatchRepo) EndActiveForPair(
	_ context.Context,
	_ pgx.Tx,
	a, b uuid.UUID,
	mode *enums.Mode,
	status enums.MatchStatus,
	endedBy uuid.UUID,
	now time.Time,
) ([]model.Match, error) {
	st := r.store.state
	modes := enums.AllModes()
	if mode != nil {
		modes = []enums.Mode{*mode}
	}

	ended := make([]model.Match, 0)
	for _, md := range modes {
		m, ok := activePairMatch(st, a, b, md, nil)
		if !ok {
			continue
		}
		m = endMatch(m, status, endedBy, now)
		st.putMatch(m)
		ended = append(ended, m)
	}
	return ended, nil
}

func (r *MatchRepo) End(_ context.Context, _ pgx.Tx, id uuid.UUID, status enums.MatchStatus, endedBy uuid.UUID, now time.Time) (model.Match, error) {
	st := r.store.state
	m, ok := st.matches[id]
	if !ok || m.Status != enums.MatchStatusActive {
		return model.Match{}, pgrepo.ErrMatchNotFound
	}
	m = endMatch(m, status, endedBy, now)
	st.putMatch(m)
	return m, nil
}

func (r *MatchRepo) MarkConversationStarted(_ context.Context, _ pgx.Tx, id uuid.UUID) error {
	st := r.store.state
	m, ok := st.matches[id]
	if !ok || m.ConversationStarted {
		return nil
	}
	m.ConversationStarted = true
	m.ExpiresAt = nil
	st.putMatch(m)
	return nil
}

func (r *MatchRepo) ListActiveForUser(_ context.Context, _ pgx.Tx, userID uuid.UUID, mode *enums.Mode, now time.Time) ([]model.Match, error) {
	out := make([]model.Match, 0)
	for _, m := range r.store.state.matches {
		if !m.HasParticipant(userID) || !rules.MatchActive(m, now) {
			continue
		}
		if mode != nil && m.Mode != *mode {
			continue
		}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return less(out[i].ID, out[j].ID)
	})
	return out, nil
}

func (r *MatchRepo) ExpireStale(ctx context.Context, now time.Time, limit int) (int64, error) {
	if limit <= 0 {
		limit = 500
	}
	var expired int64
	err := r.store.WithinTx(ctx, func(context.Context, pgx.Tx) error {
		st := r.store.state
		for _, m := range st.matches {
			if expired == int64(limit) {
				break
			}
			if m.Status != enums.MatchStatusActive || !rules.MatchExpired(m, now) {
				continue
			}
			m.Status = enums.MatchStatusExpired
			m.EndedAt = m.ExpiresAt
			st.putMatch(m)
			expired++
		}
		return nil
	})
	return expired, err
}

func endMatch(m model.Match, status enums.MatchStatus, endedBy uuid.UUID, now time.Time) model.Match {
	at := now
	by := endedBy
	m.Status = status
	m.EndedAt = &at
	m.EndedBy = &by
	return m
}
