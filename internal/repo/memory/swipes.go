package memory

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/listergram/backend/internal/domain/enums"
	"github.com/listergram/backend/internal/domain/model"
	pgrepo "github.com/listergram/backend/internal/repo/postgres"
)

type SwipeRepo struct {
	store *Store
}

func (r *SwipeRepo) Record(_ context.Context, _ pgx.Tx, d model.SwipeDecision) error {
	if d.ActorID == uuid.Nil || d.TargetID == uuid.Nil || d.ActorID == d.TargetID {
		return fmt.Errorf("invalid swipe payload")
	}
	if !d.Mode.Valid() || !d.Decision.Valid() {
		return fmt.Errorf("invalid swipe payload")
	}
	st := r.store.state
	st.events = append(st.events, d)
	st.decisions[swipeKey{actor: d.ActorID, target: d.TargetID, mode: d.Mode}] = d
	return nil
}

func (r *SwipeRepo) Get(_ context.Context, _ pgx.Tx, actorID, targetID uuid.UUID, mode enums.Mode) (model.SwipeDecision, error) {
	d, ok := r.store.state.decisions[swipeKey{actor: actorID, target: targetID, mode: mode}]
	if !ok {
		return model.SwipeDecision{}, pgrepo.ErrSwipeNotFound
	}
	return d, nil
}

// Events returns the append-only decision log.
func (r *SwipeRepo) Events() []model.SwipeDecision {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	return append([]model.SwipeDecision(nil), r.store.state.events...)
}
