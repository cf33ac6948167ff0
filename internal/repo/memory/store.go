// Package memory is a process-local store with the same semantics as the
// postgres repositories. Transactions are serialised and roll back by
// restoring a snapshot, which makes it suitable for tests and local runs.
package memory

import (
	"bytes"
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/listergram/backend/internal/domain/enums"
	"github.com/listergram/backend/internal/domain/model"
)

type swipeKey struct {
	actor  uuid.UUID
	target uuid.UUID
	mode   enums.Mode
}

type blockKey struct {
	blocker uuid.UUID
	blocked uuid.UUID
}

type quotaKey struct {
	user uuid.UUID
	mode enums.Mode
	day  string
}

type pairKey struct {
	user1 uuid.UUID
	user2 uuid.UUID
	mode  enums.Mode
}

type state struct {
	profiles  map[uuid.UUID]model.Profile
	decisions map[swipeKey]model.SwipeDecision
	events    []model.SwipeDecision
	matches   map[uuid.UUID]model.Match
	active    map[pairKey]uuid.UUID
	messages  map[uuid.UUID][]model.Message
	seq       int64
	blocks    map[blockKey]model.Block
	reports   []model.Report
	quotas    map[quotaKey]int
}

func newState() *state {
	return &state{
		profiles:  make(map[uuid.UUID]model.Profile),
		decisions: make(map[swipeKey]model.SwipeDecision),
		matches:   make(map[uuid.UUID]model.Match),
		active:    make(map[pairKey]uuid.UUID),
		messages:  make(map[uuid.UUID][]model.Message),
		blocks:    make(map[blockKey]model.Block),
		quotas:    make(map[quotaKey]int),
	}
}

func (s *state) clone() *state {
	out := &state{
		profiles:  make(map[uuid.UUID]model.Profile, len(s.profiles)),
		decisions: make(map[swipeKey]model.SwipeDecision, len(s.decisions)),
		events:    append([]model.SwipeDecision(nil), s.events...),
		matches:   make(map[uuid.UUID]model.Match, len(s.matches)),
		active:    make(map[pairKey]uuid.UUID, len(s.active)),
		messages:  make(map[uuid.UUID][]model.Message, len(s.messages)),
		seq:       s.seq,
		blocks:    make(map[blockKey]model.Block, len(s.blocks)),
		reports:   append([]model.Report(nil), s.reports...),
		quotas:    make(map[quotaKey]int, len(s.quotas)),
	}
	for k, v := range s.profiles {
		out.profiles[k] = v
	}
	for k, v := range s.decisions {
		out.decisions[k] = v
	}
	for k, v := range s.matches {
		out.matches[k] = v
	}
	for k, v := range s.active {
		out.active[k] = v
	}
	for k, v := range s.messages {
		out.messages[k] = append([]model.Message(nil), v...)
	}
	for k, v := range s.blocks {
		out.blocks[k] = v
	}
	for k, v := range s.quotas {
		out.quotas[k] = v
	}
	return out
}

// putMatch stores m and keeps the active-pair index in step with it.
func (s *state) putMatch(m model.Match) {
	s.matches[m.ID] = m
	key := pairKey{user1: m.User1ID, user2: m.User2ID, mode: m.Mode}
	if m.Status == enums.MatchStatusActive {
		s.active[key] = m.ID
		return
	}
	if s.active[key] == m.ID {
		delete(s.active, key)
	}
}

type Store struct {
	mu    sync.Mutex
	state *state
}

func New() *Store {
	return &Store{state: newState()}
}

// WithinTx runs fn with exclusive access. Any error restores the state seen
// before fn started. The pgx.Tx handed to fn is always nil.
func (s *Store) WithinTx(ctx context.Context, fn func(context.Context, pgx.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.state.clone()
	if err := fn(ctx, nil); err != nil {
		s.state = snapshot
		return err
	}
	if err := ctx.Err(); err != nil {
		s.state = snapshot
		return err
	}
	return nil
}

func (s *Store) Profiles() *ProfileRepo { return &ProfileRepo{store: s} }
func (s *Store) Swipes() *SwipeRepo     { return &SwipeRepo{store: s} }
func (s *Store) Matches() *MatchRepo    { return &MatchRepo{store: s} }
func (s *Store) Messages() *MessageRepo { return &MessageRepo{store: s} }
func (s *Store) Blocks() *BlockRepo     { return &BlockRepo{store: s} }
func (s *Store) Reports() *ReportRepo   { return &ReportRepo{store: s} }
func (s *Store) Quotas() *QuotaRepo     { return &QuotaRepo{store: s} }

func less(a, b uuid.UUID) bool {
	return bytes.Compare(a[:], b[:]) < 0
}

func sortedProfileIDs(profiles map[uuid.UUID]model.Profile) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(profiles))
	for id := range profiles {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return less(ids[i], ids[j]) })
	return ids
}
