package matching

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/listergram/backend/internal/domain/enums"
	"github.com/listergram/backend/internal/domain/failure"
	"github.com/listergram/backend/internal/domain/model"
	"github.com/listergram/backend/internal/repo/memory"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingNotifier struct {
	mu      sync.Mutex
	created []model.Match
	ended   []model.Match
}

func (n *recordingNotifier) MatchCreated(_ context.Context, m model.Match) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.created = append(n.created, m)
}

func (n *recordingNotifier) MatchEnded(_ context.Context, m model.Match) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.ended = append(n.ended, m)
}

type denyLimiter struct {
	retryAfter time.Duration
}

func (d denyLimiter) Allow(context.Context, uuid.UUID) (time.Duration, bool, error) {
	return d.retryAfter, false, nil
}

type brokenLimiter struct{}

func (brokenLimiter) Allow(context.Context, uuid.UUID) (time.Duration, bool, error) {
	return 0, false, errors.New("redis: connection refused")
}

type harness struct {
	svc      *Service
	store    *memory.Store
	clock    *fakeClock
	notifier *recordingNotifier
}

func newHarness(t *testing.T, cfg Config) *harness {
	t.Helper()
	store := memory.New()
	clock := &fakeClock{now: time.Date(2026, time.March, 2, 18, 30, 0, 0, time.UTC)}
	notifier := &recordingNotifier{}

	svc := NewService(Dependencies{
		Tx:       store,
		Profiles: store.Profiles(),
		Swipes:   store.Swipes(),
		Matches:  store.Matches(),
		Quotas:   store.Quotas(),
		Blocks:   store.Blocks(),
		Reports:  store.Reports(),
		Messages: store.Messages(),
		Notifier: notifier,
	}, cfg)
	svc.now = clock.Now

	return &harness{svc: svc, store: store, clock: clock, notifier: notifier}
}

func (h *harness) profile(t *testing.T, username string, dating, friends bool) uuid.UUID {
	t.Helper()
	id := uuid.New()
	err := h.store.WithinTx(context.Background(), func(ctx context.Context, tx pgx.Tx) error {
		_, err := h.store.Profiles().Upsert(ctx, tx, model.Profile{
			ID:                id,
			FullName:          username,
			Username:          username,
			Tower:             enums.TowerKelsey,
			Floor:             3,
			YearOfStudy:       enums.YearFirst,
			DatingEnabled:     dating,
			FriendModeEnabled: friends,
		}, h.clock.Now())
		return err
	})
	if err != nil {
		t.Fatalf("seed profile %s: %v", username, err)
	}
	return id
}

func (h *harness) swipe(t *testing.T, actor, target uuid.UUID, mode enums.Mode, decision enums.SwipeDecision) SwipeResult {
	t.Helper()
	res, err := h.svc.RecordSwipe(context.Background(), actor, target, mode, decision)
	if err != nil {
		t.Fatalf("swipe %s: %v", decision, err)
	}
	return res
}

func (h *harness) match(t *testing.T, id uuid.UUID) model.Match {
	t.Helper()
	var m model.Match
	err := h.store.WithinTx(context.Background(), func(ctx context.Context, tx pgx.Tx) error {
		var err error
		m, err = h.store.Matches().Get(ctx, tx, id)
		return err
	})
	if err != nil {
		t.Fatalf("load match: %v", err)
	}
	return m
}

func TestRecordSwipeReciprocalLikeCreatesMatch(t *testing.T) {
	h := newHarness(t, Config{})
	a := h.profile(t, "ana", true, true)
	b := h.profile(t, "ben", true, true)

	first := h.swipe(t, a, b, enums.ModeDating, enums.SwipeDecisionLike)
	if first.Matched || first.MatchID != nil {
		t.Fatalf("one-sided like must not match: %+v", first)
	}

	second := h.swipe(t, b, a, enums.ModeDating, enums.SwipeDecisionSuperlike)
	if !second.Matched || !second.Created || second.MatchID == nil {
		t.Fatalf("reciprocal like must create a match: %+v", second)
	}

	m := h.match(t, *second.MatchID)
	user1, user2 := model.OrderedPair(a, b)
	if m.User1ID != user1 || m.User2ID != user2 {
		t.Fatalf("match pair is not ordered")
	}
	if m.Mode != enums.ModeDating || m.Status != enums.MatchStatusActive {
		t.Fatalf("unexpected match: mode=%s status=%s", m.Mode, m.Status)
	}
	if m.ExpiresAt == nil || !m.ExpiresAt.Equal(h.clock.Now().Add(14*24*time.Hour)) {
		t.Fatalf("unexpected expires_at: %v", m.ExpiresAt)
	}
	if len(h.notifier.created) != 1 {
		t.Fatalf("unexpected created notifications: got %d want %d", len(h.notifier.created), 1)
	}

	again := h.swipe(t, a, b, enums.ModeDating, enums.SwipeDecisionLike)
	if !again.Matched || again.Created || *again.MatchID != *second.MatchID {
		t.Fatalf("repeat like must return the existing match: %+v", again)
	}
	if len(h.notifier.created) != 1 {
		t.Fatalf("existing match must not be announced twice")
	}
}

func TestRecordSwipeConcurrentReciprocalLikesCreateOneMatch(t *testing.T) {
	for i := 0; i < 20; i++ {
		h := newHarness(t, Config{})
		a := h.profile(t, "ana", true, false)
		b := h.profile(t, "ben", true, false)

		var wg sync.WaitGroup
		results := make([]SwipeResult, 2)
		errs := make([]error, 2)
		for j, pair := range [][2]uuid.UUID{{a, b}, {b, a}} {
			wg.Add(1)
			go func(j int, actor, target uuid.UUID) {
				defer wg.Done()
				results[j], errs[j] = h.svc.RecordSwipe(context.Background(), actor, target, enums.ModeDating, enums.SwipeDecisionLike)
			}(j, pair[0], pair[1])
		}
		wg.Wait()

		created := 0
		for j := range results {
			if errs[j] != nil {
				t.Fatalf("swipe %d: %v", j, errs[j])
			}
			if results[j].Created {
				created++
			}
		}
		if created != 1 {
			t.Fatalf("unexpected created count: got %d want %d", created, 1)
		}

		active, err := h.svc.ListMatches(context.Background(), a, nil)
		if err != nil {
			t.Fatalf("list matches: %v", err)
		}
		if len(active) != 1 {
			t.Fatalf("unexpected active matches: got %d want %d", len(active), 1)
		}
	}
}

func TestRecordSwipeModesAreIndependent(t *testing.T) {
	h := newHarness(t, Config{})
	a := h.profile(t, "ana", true, true)
	b := h.profile(t, "ben", true, true)

	h.swipe(t, a, b, enums.ModeDating, enums.SwipeDecisionLike)
	res := h.swipe(t, b, a, enums.ModeFriends, enums.SwipeDecisionLike)
	if res.Matched {
		t.Fatalf("likes in different modes must not match")
	}

	h.swipe(t, a, b, enums.ModeFriends, enums.SwipeDecisionLike)
	h.swipe(t, b, a, enums.ModeDating, enums.SwipeDecisionLike)

	matches, err := h.svc.ListMatches(context.Background(), a, nil)
	if err != nil {
		t.Fatalf("list matches: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("expected one match per mode, got %d", len(matches))
	}

	dating := enums.ModeDating
	matches, err = h.svc.ListMatches(context.Background(), a, &dating)
	if err != nil {
		t.Fatalf("list dating matches: %v", err)
	}
	if len(matches) != 1 || matches[0].Mode != enums.ModeDating {
		t.Fatalf("unexpected dating matches: %+v", matches)
	}
}

func TestRecordSwipePassEndsMatchAndSupersedes(t *testing.T) {
	h := newHarness(t, Config{})
	a := h.profile(t, "ana", true, true)
	b := h.profile(t, "ben", true, true)

	h.swipe(t, a, b, enums.ModeDating, enums.SwipeDecisionLike)
	first := h.swipe(t, b, a, enums.ModeDating, enums.SwipeDecisionLike)

	h.clock.Advance(time.Minute)
	if res := h.swipe(t, b, a, enums.ModeDating, enums.SwipeDecisionPass); res.Matched {
		t.Fatalf("pass must not report a match")
	}

	ended := h.match(t, *first.MatchID)
	if ended.Status != enums.MatchStatusUnmatched || ended.EndedBy == nil || *ended.EndedBy != b {
		t.Fatalf("pass must unmatch: status=%s ended_by=%v", ended.Status, ended.EndedBy)
	}
	if len(h.notifier.ended) != 1 {
		t.Fatalf("unexpected ended notifications: got %d want %d", len(h.notifier.ended), 1)
	}

	// The latest decision wins, so liking again re-forms the pair.
	second := h.swipe(t, b, a, enums.ModeDating, enums.SwipeDecisionLike)
	if !second.Created || *second.MatchID == *first.MatchID {
		t.Fatalf("re-like must create a fresh match: %+v", second)
	}

	events := h.store.Swipes().Events()
	if len(events) != 4 {
		t.Fatalf("unexpected swipe history length: got %d want %d", len(events), 4)
	}
}

func TestRecordSwipeValidatesParticipants(t *testing.T) {
	h := newHarness(t, Config{})
	a := h.profile(t, "ana", true, true)
	friendsOnly := h.profile(t, "fred", false, true)
	datingOnly := h.profile(t, "dana", true, false)
	gone := h.profile(t, "gone", true, true)
	err := h.store.WithinTx(context.Background(), func(ctx context.Context, tx pgx.Tx) error {
		_, err := h.store.Profiles().Disable(ctx, tx, gone, h.clock.Now())
		return err
	})
	if err != nil {
		t.Fatalf("disable: %v", err)
	}

	cases := []struct {
		name     string
		actor    uuid.UUID
		target   uuid.UUID
		mode     enums.Mode
		decision enums.SwipeDecision
		want     error
	}{
		{"self", a, a, enums.ModeDating, enums.SwipeDecisionLike, failure.ErrInvalidInput},
		{"unknown mode", a, friendsOnly, "romance", enums.SwipeDecisionLike, failure.ErrInvalidInput},
		{"unknown decision", a, friendsOnly, enums.ModeFriends, "maybe", failure.ErrInvalidInput},
		{"target mode off", a, friendsOnly, enums.ModeDating, enums.SwipeDecisionLike, failure.ErrNotFound},
		{"target disabled", a, gone, enums.ModeDating, enums.SwipeDecisionLike, failure.ErrNotFound},
		{"target missing", a, uuid.New(), enums.ModeDating, enums.SwipeDecisionLike, failure.ErrNotFound},
		{"actor mode off", datingOnly, a, enums.ModeFriends, enums.SwipeDecisionLike, failure.ErrInvalidInput},
		{"actor disabled", gone, a, enums.ModeDating, enums.SwipeDecisionLike, failure.ErrNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := h.svc.RecordSwipe(context.Background(), tc.actor, tc.target, tc.mode, tc.decision)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}

	if events := h.store.Swipes().Events(); len(events) != 0 {
		t.Fatalf("rejected swipes must not be stored, got %d", len(events))
	}
}

func TestSuperlikeDailyQuota(t *testing.T) {
	loc, err := time.LoadLocation("America/Edmonton")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	h := newHarness(t, Config{SuperlikesPerDay: 1, QuotaLocation: loc})
	a := h.profile(t, "ana", true, true)
	b := h.profile(t, "ben", true, true)
	c := h.profile(t, "cam", true, true)
	ctx := context.Background()

	ok, err := h.svc.CanSuperlike(ctx, a, enums.ModeDating)
	if err != nil || !ok {
		t.Fatalf("fresh user must be able to superlike: ok=%v err=%v", ok, err)
	}

	h.swipe(t, a, b, enums.ModeDating, enums.SwipeDecisionSuperlike)

	ok, err = h.svc.CanSuperlike(ctx, a, enums.ModeDating)
	if err != nil || ok {
		t.Fatalf("quota must be spent: ok=%v err=%v", ok, err)
	}

	_, err = h.svc.RecordSwipe(ctx, a, c, enums.ModeDating, enums.SwipeDecisionSuperlike)
	rl, isRL := failure.IsRateLimited(err)
	if !isRL {
		t.Fatalf("expected rate limited error, got %v", err)
	}
	// 18:30 UTC is 11:30 in Edmonton, so the quota resets at 07:00 UTC.
	wantReset := time.Date(2026, time.March, 3, 7, 0, 0, 0, time.UTC)
	if rl.ResetAt == nil || !rl.ResetAt.Equal(wantReset) {
		t.Fatalf("unexpected reset at: %v", rl.ResetAt)
	}
	if rl.RetryAfter != wantReset.Sub(h.clock.Now()) {
		t.Fatalf("unexpected retry after: %s", rl.RetryAfter)
	}

	ok, err = h.svc.CanSuperlike(ctx, a, enums.ModeFriends)
	if err != nil || !ok {
		t.Fatalf("friends quota is separate: ok=%v err=%v", ok, err)
	}

	h.swipe(t, a, c, enums.ModeDating, enums.SwipeDecisionLike)

	h.clock.Advance(13 * time.Hour)
	ok, err = h.svc.CanSuperlike(ctx, a, enums.ModeDating)
	if err != nil || !ok {
		t.Fatalf("quota must reset at local midnight: ok=%v err=%v", ok, err)
	}
}

func TestSuperlikeUnlimitedWhenLimitDisabled(t *testing.T) {
	h := newHarness(t, Config{SuperlikesPerDay: 0})
	a := h.profile(t, "ana", true, true)

	for i := 0; i < 3; i++ {
		target := h.profile(t, "peer"+string(rune('a'+i)), true, true)
		h.swipe(t, a, target, enums.ModeDating, enums.SwipeDecisionSuperlike)
	}

	status, err := h.svc.SuperlikeStatus(context.Background(), a, enums.ModeDating)
	if err != nil {
		t.Fatalf("superlike status: %v", err)
	}
	if !status.Allowed || status.ResetAt != nil {
		t.Fatalf("unexpected status: %+v", status)
	}
}

func TestRecordSwipeRateLimited(t *testing.T) {
	h := newHarness(t, Config{})
	h.svc.limiter = denyLimiter{retryAfter: 7 * time.Second}
	a := h.profile(t, "ana", true, true)
	b := h.profile(t, "ben", true, true)

	_, err := h.svc.RecordSwipe(context.Background(), a, b, enums.ModeDating, enums.SwipeDecisionLike)
	rl, ok := failure.IsRateLimited(err)
	if !ok {
		t.Fatalf("expected rate limited, got %v", err)
	}
	if rl.RetryAfterSeconds() != 7 {
		t.Fatalf("unexpected retry after: %d", rl.RetryAfterSeconds())
	}
	if len(h.store.Swipes().Events()) != 0 {
		t.Fatalf("limited swipe must not be stored")
	}

	h.svc.limiter = brokenLimiter{}
	if _, err := h.svc.RecordSwipe(context.Background(), a, b, enums.ModeDating, enums.SwipeDecisionLike); err != nil {
		t.Fatalf("limiter outage must not block swipes: %v", err)
	}
}

func TestMatchExpiresWithoutConversation(t *testing.T) {
	h := newHarness(t, Config{MatchTTL: time.Hour})
	a := h.profile(t, "ana", true, true)
	b := h.profile(t, "ben", true, true)
	ctx := context.Background()

	h.swipe(t, a, b, enums.ModeFriends, enums.SwipeDecisionLike)
	first := h.swipe(t, b, a, enums.ModeFriends, enums.SwipeDecisionLike)

	h.clock.Advance(time.Hour)

	got, err := h.svc.GetMatch(ctx, *first.MatchID, a)
	if err != nil {
		t.Fatalf("get match: %v", err)
	}
	if got.Status != enums.MatchStatusExpired {
		t.Fatalf("unexpected status after ttl: %s", got.Status)
	}
	list, err := h.svc.ListMatches(ctx, a, nil)
	if err != nil {
		t.Fatalf("list matches: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("expired match must not be listed")
	}
	if _, err := h.svc.Unmatch(ctx, *first.MatchID, a); !errors.Is(err, failure.ErrMatchInactive) {
		t.Fatalf("expected ErrMatchInactive, got %v", err)
	}

	second := h.swipe(t, a, b, enums.ModeFriends, enums.SwipeDecisionLike)
	if !second.Created || *second.MatchID == *first.MatchID {
		t.Fatalf("liking after expiry must create a new match: %+v", second)
	}
	if old := h.match(t, *first.MatchID); old.Status != enums.MatchStatusExpired {
		t.Fatalf("lapsed match must be retired, got %s", old.Status)
	}
}

func TestGetMatchAndUnmatchAuthorization(t *testing.T) {
	h := newHarness(t, Config{})
	a := h.profile(t, "ana", true, true)
	b := h.profile(t, "ben", true, true)
	outsider := h.profile(t, "oz", true, true)
	ctx := context.Background()

	h.swipe(t, a, b, enums.ModeDating, enums.SwipeDecisionLike)
	res := h.swipe(t, b, a, enums.ModeDating, enums.SwipeDecisionLike)

	if _, err := h.svc.GetMatch(ctx, *res.MatchID, outsider); !errors.Is(err, failure.ErrAuthorization) {
		t.Fatalf("expected ErrAuthorization, got %v", err)
	}
	if _, err := h.svc.GetMatch(ctx, uuid.New(), a); !errors.Is(err, failure.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := h.svc.Unmatch(ctx, *res.MatchID, outsider); !errors.Is(err, failure.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}

	ended, err := h.svc.Unmatch(ctx, *res.MatchID, a)
	if err != nil {
		t.Fatalf("unmatch: %v", err)
	}
	if ended.Status != enums.MatchStatusUnmatched {
		t.Fatalf("unexpected status: %s", ended.Status)
	}
	if _, err := h.svc.Unmatch(ctx, *res.MatchID, b); !errors.Is(err, failure.ErrMatchInactive) {
		t.Fatalf("expected ErrMatchInactive on second unmatch, got %v", err)
	}

	// b still likes a, but a withdrew, so b liking again must not re-match.
	if again := h.swipe(t, b, a, enums.ModeDating, enums.SwipeDecisionLike); again.Matched {
		t.Fatalf("unmatch must withdraw the like")
	}
}

func TestBlockEndsMatchesInEveryMode(t *testing.T) {
	h := newHarness(t, Config{})
	a := h.profile(t, "ana", true, true)
	b := h.profile(t, "ben", true, true)
	ctx := context.Background()

	for _, mode := range enums.AllModes() {
		h.swipe(t, a, b, mode, enums.SwipeDecisionLike)
		h.swipe(t, b, a, mode, enums.SwipeDecisionLike)
	}

	if err := h.svc.Block(ctx, b, a, "rude"); err != nil {
		t.Fatalf("block: %v", err)
	}
	if len(h.notifier.ended) != 2 {
		t.Fatalf("unexpected ended notifications: got %d want %d", len(h.notifier.ended), 2)
	}
	for _, m := range h.notifier.ended {
		if m.Status != enums.MatchStatusBlocked {
			t.Fatalf("unexpected ended status: %s", m.Status)
		}
	}

	list, err := h.svc.ListMatches(ctx, a, nil)
	if err != nil {
		t.Fatalf("list matches: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("blocked pair must have no active matches")
	}
	if _, err := h.svc.RecordSwipe(ctx, a, b, enums.ModeDating, enums.SwipeDecisionLike); !errors.Is(err, failure.ErrNotFound) {
		t.Fatalf("expected ErrNotFound swiping on a blocker, got %v", err)
	}
	if err := h.svc.Block(ctx, a, a, ""); !errors.Is(err, failure.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for self block, got %v", err)
	}
}

func TestReportFilesPendingReportAndBlocks(t *testing.T) {
	h := newHarness(t, Config{})
	a := h.profile(t, "ana", true, true)
	b := h.profile(t, "ben", true, true)
	ctx := context.Background()

	h.swipe(t, a, b, enums.ModeDating, enums.SwipeDecisionLike)
	res := h.swipe(t, b, a, enums.ModeDating, enums.SwipeDecisionLike)

	msgID := uuid.New()
	err := h.store.WithinTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		_, err := h.store.Messages().Create(ctx, tx, model.Message{
			ID:        msgID,
			MatchID:   *res.MatchID,
			SenderID:  b,
			Type:      enums.MessageTypeText,
			Text:      "buy followers",
			CreatedAt: h.clock.Now(),
		})
		return err
	})
	if err != nil {
		t.Fatalf("seed message: %v", err)
	}

	_, err = h.svc.Report(ctx, ReportInput{ReporterID: a, TargetID: b, MessageID: &msgID, Reason: "boring"})
	if !errors.Is(err, failure.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for unknown reason, got %v", err)
	}
	_, err = h.svc.Report(ctx, ReportInput{ReporterID: b, TargetID: a, MessageID: &msgID, Reason: enums.ReportReasonSpam})
	if !errors.Is(err, failure.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput when message author differs, got %v", err)
	}

	report, err := h.svc.Report(ctx, ReportInput{
		ReporterID: a,
		TargetID:   b,
		MessageID:  &msgID,
		Reason:     enums.ReportReasonSpam,
		Details:    "selling things",
	})
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if report.Status != enums.ReportStatusPending {
		t.Fatalf("unexpected report status: %s", report.Status)
	}
	if all := h.store.Reports().All(); len(all) != 1 {
		t.Fatalf("unexpected report count: got %d want %d", len(all), 1)
	}
	if m := h.match(t, *res.MatchID); m.Status != enums.MatchStatusBlocked {
		t.Fatalf("report must end the match as blocked, got %s", m.Status)
	}
}
