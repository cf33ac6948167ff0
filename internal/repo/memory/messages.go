package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/listergram/backend/internal/domain/model"
	pgrepo "github.com/listergram/backend/internal/repo/postgres"
)

type MessageRepo struct {
	store *Store
}

func (r *MessageRepo) Create(_ context.Context, _ pgx.Tx, msg model.Message) (model.Message, error) {
	if msg.ID == uuid.Nil || msg.MatchID == uuid.Nil || msg.SenderID == uuid.Nil || !msg.Type.Valid() {
		return model.Message{}, fmt.Errorf("invalid message payload")
	}
	st := r.store.state
	if _, ok := st.matches[msg.MatchID]; !ok {
		return model.Message{}, fmt.Errorf("create message: match %s does not exist", msg.MatchID)
	}
	st.seq++
	msg.Seq = st.seq
	msg.ReadAt = nil
	st.messages[msg.MatchID] = append(st.messages[msg.MatchID], msg)
	return msg, nil
}

func (r *MessageRepo) Last(_ context.Context, _ pgx.Tx, matchID uuid.UUID) (pgrepo.MessagePosition, bool, error) {
	msgs := ordered(r.store.state.messages[matchID])
	if len(msgs) == 0 {
		return pgrepo.MessagePosition{}, false, nil
	}
	last := msgs[len(msgs)-1]
	return pgrepo.MessagePosition{CreatedAt: last.CreatedAt, Seq: last.Seq}, true, nil
}

func (r *MessageRepo) Get(_ context.Context, _ pgx.Tx, id uuid.UUID) (model.Message, error) {
	for _, msgs := range r.store.state.messages {
		for _, msg := range msgs {
			if msg.ID == id {
				return msg, nil
			}
		}
	}
	return model.Message{}, pgrepo.ErrMessageNotFound
}

func (r *MessageRepo) MarkRead(_ context.Context, _ pgx.Tx, matchID, readerID uuid.UUID, through, now time.Time) (int64, error) {
	msgs := r.store.state.messages[matchID]
	var updated int64
	for i, msg := range msgs {
		if msg.SenderID == readerID || msg.ReadAt != nil || msg.CreatedAt.After(through) {
			continue
		}
		at := now
		msg.ReadAt = &at
		msgs[i] = msg
		updated++
	}
	return updated, nil
}

func (r *MessageRepo) ListAfter(_ context.Context, _ pgx.Tx, matchID uuid.UUID, pos *pgrepo.MessagePosition, limit int) ([]model.Message, error) {
	if limit <= 0 {
		limit = 50
	}
	out := make([]model.Message, 0, limit)
	for _, msg := range ordered(r.store.state.messages[matchID]) {
		if len(out) == limit {
			break
		}
		if pos != nil && !after(msg, *pos) {
			continue
		}
		out = append(out, msg)
	}
	return out, nil
}

func after(msg model.Message, pos pgrepo.MessagePosition) bool {
	if !msg.CreatedAt.Equal(pos.CreatedAt) {
		return msg.CreatedAt.After(pos.CreatedAt)
	}
	return msg.Seq > pos.Seq
}

func ordered(msgs []model.Message) []model.Message {
	out := append([]model.Message(nil), msgs...)
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].Seq < out[j].Seq
	})
	return out
}
