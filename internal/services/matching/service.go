package matching

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/listergram/backend/internal/domain/enums"
	"github.com/listergram/backend/internal/domain/failure"
	"github.com/listergram/backend/internal/domain/model"
	"github.com/listergram/backend/internal/domain/rules"
	pgrepo "github.com/listergram/backend/internal/repo/postgres"
)

type Transactor interface {
	WithinTx(ctx context.Context, fn func(context.Context, pgx.Tx) error) error
}

type ProfileStore interface {
	Get(ctx context.Context, tx pgx.Tx, id uuid.UUID) (model.Profile, error)
}

type SwipeStore interface {
	Record(ctx context.Context, tx pgx.Tx, d model.SwipeDecision) error
	Get(ctx context.Context, tx pgx.Tx, actorID, targetID uuid.UUID, mode enums.Mode) (model.SwipeDecision, error)
}

type MatchStore interface {
	LockPair(ctx context.Context, tx pgx.Tx, a, b uuid.UUID, mode enums.Mode) error
	Get(ctx context.Context, tx pgx.Tx, id uuid.UUID) (model.Match, error)
	GetForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (model.Match, error)
	CreateActive(ctx context.Context, tx pgx.Tx, m model.Match) (model.Match, bool, error)
	ExpirePair(ctx context.Context, tx pgx.Tx, a, b uuid.UUID, mode enums.Mode, now time.Time) (int64, error)
	EndActiveForPair(
		ctx context.Context,
		tx pgx.Tx,
		a, b uuid.UUID,
		mode *enums.Mode,
		status enums.MatchStatus,
		endedBy uuid.UUID,
		now time.Time,
	) ([]model.Match, error)
	End(ctx context.Context, tx pgx.Tx, id uuid.UUID, status enums.MatchStatus, endedBy uuid.UUID, now time.Time) (model.Match, error)
	ListActiveForUser(ctx context.Context, tx pgx.Tx, userID uuid.UUID, mode *enums.Mode, now time.Time) ([]model.Match, error)
}

type QuotaStore interface {
	GetSuperlikesUsed(ctx context.Context, tx pgx.Tx, userID uuid.UUID, mode enums.Mode, dayKey string) (int, error)
	ConsumeSuperlike(ctx context.Context, tx pgx.Tx, userID uuid.UUID, mode enums.Mode, dayKey string, limit int) (int, error)
}

type BlockStore interface {
	Upsert(ctx context.Context, tx pgx.Tx, blockerID, blockedID uuid.UUID, reason string, now time.Time) error
	ExistsBetween(ctx context.Context, tx pgx.Tx, a, b uuid.UUID) (bool, error)
}

type ReportStore interface {
	Create(ctx context.Context, tx pgx.Tx, report model.Report) (model.Report, error)
}

type MessageLookup interface {
	Get(ctx context.Context, tx pgx.Tx, id uuid.UUID) (model.Message, error)
}

type RateLimiter interface {
	Allow(ctx context.Context, userID uuid.UUID) (time.Duration, bool, error)
}

// Notifier receives match lifecycle events after the owning transaction
// has committed.
type Notifier interface {
	MatchCreated(ctx context.Context, m model.Match)
	MatchEnded(ctx context.Context, m model.Match)
}

type Metrics interface {
	SwipeRecorded(mode enums.Mode, decision enums.SwipeDecision)
	MatchCreated(mode enums.Mode)
	MatchEnded(status enums.MatchStatus)
}

type Config struct {
	MatchTTL         time.Duration
	SuperlikesPerDay int
	QuotaLocation    *time.Location
}

type Dependencies struct {
	Tx          Transactor
	Profiles    ProfileStore
	Swipes      SwipeStore
	Matches     MatchStore
	Quotas      QuotaStore
	Blocks      BlockStore
	Reports     ReportStore
	Messages    MessageLookup
	RateLimiter RateLimiter
	Notifier    Notifier
	Metrics     Metrics
	Logger      *zap.Logger
}

type Service struct {
	tx       Transactor
	profiles ProfileStore
	swipes   SwipeStore
	matches  MatchStore
	quotas   QuotaStore
	blocks   BlockStore
	reports  ReportStore
	messages MessageLookup
	limiter  RateLimiter
	notifier Notifier
	metrics  Metrics
	logger   *zap.Logger
	cfg      Config
	now      func() time.Time
	newID    func() uuid.UUID
}

// SwipeResult reports whether the pair is matched after the swipe.
// Created is false when the match already existed.
type SwipeResult struct {
	Matched bool
	MatchID *uuid.UUID
	Created bool
}

type SuperlikeStatus struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   *time.Time
}

type ReportInput struct {
	ReporterID uuid.UUID
	TargetID   uuid.UUID
	MessageID  *uuid.UUID
	Reason     enums.ReportReason
	Details    string
}

const maxReportDetails = 1000

func NewService(deps Dependencies, cfg Config) *Service {
	if cfg.MatchTTL <= 0 {
		cfg.MatchTTL = rules.DefaultMatchTTL
	}
	if cfg.QuotaLocation == nil {
		cfg.QuotaLocation = time.UTC
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Service{
		tx:       deps.Tx,
		profiles: deps.Profiles,
		swipes:   deps.Swipes,
		matches:  deps.Matches,
		quotas:   deps.Quotas,
		blocks:   deps.Blocks,
		reports:  deps.Reports,
		messages: deps.Messages,
		limiter:  deps.RateLimiter,
		notifier: deps.Notifier,
		metrics:  deps.Metrics,
		logger:   logger.Named("matching"),
		cfg:      cfg,
		now:      time.Now,
		newID:    uuid.New,
	}
}

// RecordSwipe stores actor's decision about target in mode and resolves
// reciprocity. Concurrent reciprocal likes yield exactly one match: the pair
// is locked for the transaction and the store keeps one active row per pair.
func (s *Service) RecordSwipe(
	ctx context.Context,
	actorID, targetID uuid.UUID,
	mode enums.Mode,
	decision enums.SwipeDecision,
) (SwipeResult, error) {
	if err := validateSwipe(actorID, targetID, mode, decision); err != nil {
		return SwipeResult{}, err
	}
	if err := s.ready(); err != nil {
		return SwipeResult{}, err
	}
	if err := s.checkRate(ctx, actorID); err != nil {
		return SwipeResult{}, err
	}

	now := s.clock()
	var (
		result  SwipeResult
		created *model.Match
		ended   []model.Match
	)
	err := s.tx.WithinTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		result, created, ended = SwipeResult{}, nil, nil

		if err := s.matches.LockPair(ctx, tx, actorID, targetID, mode); err != nil {
			return err
		}
		if err := s.checkEligibility(ctx, tx, actorID, targetID, mode); err != nil {
			return err
		}
		if decision == enums.SwipeDecisionSuperlike {
			if err := s.consumeSuperlike(ctx, tx, actorID, mode, now); err != nil {
				return err
			}
		}

		if err := s.swipes.Record(ctx, tx, model.SwipeDecision{
			ActorID:   actorID,
			TargetID:  targetID,
			Mode:      mode,
			Decision:  decision,
			DecidedAt: now,
		}); err != nil {
			return err
		}

		if !decision.Positive() {
			var err error
			ended, err = s.matches.EndActiveForPair(ctx, tx, actorID, targetID, &mode, enums.MatchStatusUnmatched, actorID, now)
			return err
		}

		reverse, err := s.swipes.Get(ctx, tx, targetID, actorID, mode)
		if err != nil {
			if errors.Is(err, pgrepo.ErrSwipeNotFound) {
				return nil
			}
			return err
		}
		if !reverse.Decision.Positive() {
			return nil
		}

		if _, err := s.matches.ExpirePair(ctx, tx, actorID, targetID, mode, now); err != nil {
			return err
		}
		user1, user2 := model.OrderedPair(actorID, targetID)
		expiresAt := rules.MatchExpiresAt(now, s.cfg.MatchTTL)
		m, isNew, err := s.matches.CreateActive(ctx, tx, model.Match{
			ID:        s.newID(),
			User1ID:   user1,
			User2ID:   user2,
			Mode:      mode,
			Status:    enums.MatchStatusActive,
			CreatedAt: now,
			ExpiresAt: &expiresAt,
		})
		if err != nil {
			return err
		}

		matchID := m.ID
		result = SwipeResult{Matched: true, MatchID: &matchID, Created: isNew}
		if isNew {
			created = &m
		}
		return nil
	})
	if err != nil {
		return SwipeResult{}, mapStoreError(err)
	}

	if s.metrics != nil {
		s.metrics.SwipeRecorded(mode, decision)
	}
	if created != nil {
		s.logger.Info("match created",
			zap.String("match_id", created.ID.String()),
			zap.String("mode", string(mode)),
		)
		if s.metrics != nil {
			s.metrics.MatchCreated(mode)
		}
		if s.notifier != nil {
			s.notifier.MatchCreated(ctx, *created)
		}
	}
	s.afterEnded(ctx, ended)

	return result, nil
}

// CanSuperlike reports whether actorID still has a superlike left today in mode.
func (s *Service) CanSuperlike(ctx context.Context, actorID uuid.UUID, mode enums.Mode) (bool, error) {
	status, err := s.SuperlikeStatus(ctx, actorID, mode)
	if err != nil {
		return false, err
	}
	return status.Allowed, nil
}

func (s *Service) SuperlikeStatus(ctx context.Context, actorID uuid.UUID, mode enums.Mode) (SuperlikeStatus, error) {
	if actorID == uuid.Nil {
		return SuperlikeStatus{}, fmt.Errorf("actor id is required: %w", failure.ErrInvalidInput)
	}
	if !mode.Valid() {
		return SuperlikeStatus{}, fmt.Errorf("unknown mode %q: %w", mode, failure.ErrInvalidInput)
	}
	limit := s.cfg.SuperlikesPerDay
	if !rules.SuperlikeQuotaEnabled(limit) {
		return SuperlikeStatus{Allowed: true, Limit: 0, Remaining: -1}, nil
	}
	if s.tx == nil || s.quotas == nil {
		return SuperlikeStatus{}, fmt.Errorf("superlike dependencies are not configured")
	}

	now := s.clock()
	var used int
	err := s.tx.WithinTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		var err error
		used, err = s.quotas.GetSuperlikesUsed(ctx, tx, actorID, mode, rules.DayKey(now, s.cfg.QuotaLocation))
		return err
	})
	if err != nil {
		return SuperlikeStatus{}, err
	}

	remaining := limit - used
	if remaining < 0 {
		remaining = 0
	}
	resetAt := rules.NextResetAt(now, s.cfg.QuotaLocation)
	return SuperlikeStatus{
		Allowed:   remaining > 0,
		Limit:     limit,
		Remaining: remaining,
		ResetAt:   &resetAt,
	}, nil
}

// ListMatches returns the caller's matches that are active right now.
func (s *Service) ListMatches(ctx context.Context, userID uuid.UUID, mode *enums.Mode) ([]model.Match, error) {
	if userID == uuid.Nil {
		return nil, fmt.Errorf("user id is required: %w", failure.ErrInvalidInput)
	}
	if mode != nil && !mode.Valid() {
		return nil, fmt.Errorf("unknown mode %q: %w", *mode, failure.ErrInvalidInput)
	}
	if s.tx == nil || s.matches == nil {
		return nil, fmt.Errorf("match dependencies are not configured")
	}

	now := s.clock()
	var items []model.Match
	err := s.tx.WithinTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		var err error
		items, err = s.matches.ListActiveForUser(ctx, tx, userID, mode, now)
		return err
	})
	if err != nil {
		return nil, mapStoreError(err)
	}
	return items, nil
}

// GetMatch loads a match for one of its participants. The returned status
// already reflects lazy expiry.
func (s *Service) GetMatch(ctx context.Context, matchID, callerID uuid.UUID) (model.Match, error) {
	if matchID == uuid.Nil || callerID == uuid.Nil {
		return model.Match{}, fmt.Errorf("match and caller ids are required: %w", failure.ErrInvalidInput)
	}
	if s.tx == nil || s.matches == nil {
		return model.Match{}, fmt.Errorf("match dependencies are not configured")
	}

	var m model.Match
	err := s.tx.WithinTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		var err error
		m, err = s.matches.Get(ctx, tx, matchID)
		return err
	})
	if err != nil {
		return model.Match{}, mapStoreError(err)
	}
	if !m.HasParticipant(callerID) {
		return model.Match{}, fmt.Errorf("caller is not part of match: %w", failure.ErrAuthorization)
	}
	m.Status = rules.EffectiveStatus(m, s.clock())
	return m, nil
}

// Unmatch ends an active match. It also records a pass from the caller so
// the pair no longer satisfies reciprocity.
func (s *Service) Unmatch(ctx context.Context, matchID, userID uuid.UUID) (model.Match, error) {
	if matchID == uuid.Nil || userID == uuid.Nil {
		return model.Match{}, fmt.Errorf("match and user ids are required: %w", failure.ErrInvalidInput)
	}
	if err := s.ready(); err != nil {
		return model.Match{}, err
	}

	now := s.clock()
	var ended model.Match
	err := s.tx.WithinTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		m, err := s.matches.GetForUpdate(ctx, tx, matchID)
		if err != nil {
			return err
		}
		peer, ok := m.Peer(userID)
		if !ok {
			return fmt.Errorf("user is not part of match: %w", failure.ErrForbidden)
		}
		if !rules.MatchActive(m, now) {
			return fmt.Errorf("match is %s: %w", rules.EffectiveStatus(m, now), failure.ErrMatchInactive)
		}

		if err := s.swipes.Record(ctx, tx, model.SwipeDecision{
			ActorID:   userID,
			TargetID:  peer,
			Mode:      m.Mode,
			Decision:  enums.SwipeDecisionPass,
			DecidedAt: now,
		}); err != nil {
			return err
		}

		ended, err = s.matches.End(ctx, tx, matchID, enums.MatchStatusUnmatched, userID, now)
		return err
	})
	if err != nil {
		return model.Match{}, mapStoreError(err)
	}

	s.afterEnded(ctx, []model.Match{ended})
	return ended, nil
}

// Block hides the pair from each other and ends their matches in every mode.
func (s *Service) Block(ctx context.Context, actorID, targetID uuid.UUID, reason string) error {
	if actorID == uuid.Nil || targetID == uuid.Nil || actorID == targetID {
		return fmt.Errorf("block needs two distinct users: %w", failure.ErrInvalidInput)
	}
	if err := s.ready(); err != nil {
		return err
	}
	if s.blocks == nil {
		return fmt.Errorf("block dependencies are not configured")
	}

	now := s.clock()
	var ended []model.Match
	err := s.tx.WithinTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		var err error
		ended, err = s.blockPair(ctx, tx, actorID, targetID, reason, now)
		return err
	})
	if err != nil {
		return mapStoreError(err)
	}

	s.afterEnded(ctx, ended)
	return nil
}

// Report files a pending report and blocks the reported user for the reporter.
func (s *Service) Report(ctx context.Context, in ReportInput) (model.Report, error) {
	if in.ReporterID == uuid.Nil || in.TargetID == uuid.Nil || in.ReporterID == in.TargetID {
		return model.Report{}, fmt.Errorf("report needs two distinct users: %w", failure.ErrInvalidInput)
	}
	if !in.Reason.Valid() {
		return model.Report{}, fmt.Errorf("unknown report reason %q: %w", in.Reason, failure.ErrInvalidInput)
	}
	if len([]rune(in.Details)) > maxReportDetails {
		return model.Report{}, fmt.Errorf("report details must fit %d characters: %w", maxReportDetails, failure.ErrInvalidInput)
	}
	if err := s.ready(); err != nil {
		return model.Report{}, err
	}
	if s.blocks == nil || s.reports == nil {
		return model.Report{}, fmt.Errorf("report dependencies are not configured")
	}

	now := s.clock()
	var (
		report model.Report
		ended  []model.Match
	)
	err := s.tx.WithinTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		if in.MessageID != nil {
			if err := s.checkReportedMessage(ctx, tx, in); err != nil {
				return err
			}
		}

		var err error
		report, err = s.reports.Create(ctx, tx, model.Report{
			ID:                s.newID(),
			ReporterID:        in.ReporterID,
			ReportedUserID:    in.TargetID,
			ReportedMessageID: in.MessageID,
			Reason:            in.Reason,
			Details:           in.Details,
			Status:            enums.ReportStatusPending,
			CreatedAt:         now,
		})
		if err != nil {
			return err
		}

		ended, err = s.blockPair(ctx, tx, in.ReporterID, in.TargetID, "report:"+string(in.Reason), now)
		return err
	})
	if err != nil {
		return model.Report{}, mapStoreError(err)
	}

	s.logger.Info("report filed",
		zap.String("report_id", report.ID.String()),
		zap.String("reason", string(report.Reason)),
	)
	s.afterEnded(ctx, ended)
	return report, nil
}

func (s *Service) blockPair(ctx context.Context, tx pgx.Tx, actorID, targetID uuid.UUID, reason string, now time.Time) ([]model.Match, error) {
	if _, err := s.profiles.Get(ctx, tx, targetID); err != nil {
		return nil, err
	}
	if err := s.blocks.Upsert(ctx, tx, actorID, targetID, reason, now); err != nil {
		return nil, err
	}
	return s.matches.EndActiveForPair(ctx, tx, actorID, targetID, nil, enums.MatchStatusBlocked, actorID, now)
}

func (s *Service) checkReportedMessage(ctx context.Context, tx pgx.Tx, in ReportInput) error {
	if s.messages == nil {
		return fmt.Errorf("message lookup is not configured")
	}
	msg, err := s.messages.Get(ctx, tx, *in.MessageID)
	if err != nil {
		return err
	}
	if msg.SenderID != in.TargetID {
		return fmt.Errorf("reported message was not sent by reported user: %w", failure.ErrInvalidInput)
	}
	m, err := s.matches.Get(ctx, tx, msg.MatchID)
	if err != nil {
		return err
	}
	if !m.HasParticipant(in.ReporterID) {
		return fmt.Errorf("reporter is not part of the conversation: %w", failure.ErrForbidden)
	}
	return nil
}

func (s *Service) checkEligibility(ctx context.Context, tx pgx.Tx, actorID, targetID uuid.UUID, mode enums.Mode) error {
	actor, err := s.profiles.Get(ctx, tx, actorID)
	if err != nil {
		if errors.Is(err, pgrepo.ErrProfileNotFound) {
			return fmt.Errorf("actor profile: %w", failure.ErrNotFound)
		}
		return err
	}
	if actor.Disabled() {
		return fmt.Errorf("actor profile is disabled: %w", failure.ErrNotFound)
	}
	if !actor.EnabledFor(mode) {
		return fmt.Errorf("%s mode is off for actor: %w", mode, failure.ErrInvalidInput)
	}

	target, err := s.profiles.Get(ctx, tx, targetID)
	if err != nil {
		if errors.Is(err, pgrepo.ErrProfileNotFound) {
			return fmt.Errorf("target profile: %w", failure.ErrNotFound)
		}
		return err
	}
	if !target.EnabledFor(mode) {
		return fmt.Errorf("target is not in the %s pool: %w", mode, failure.ErrNotFound)
	}

	if s.blocks != nil {
		blocked, err := s.blocks.ExistsBetween(ctx, tx, actorID, targetID)
		if err != nil {
			return err
		}
		if blocked {
			return fmt.Errorf("target is not available: %w", failure.ErrNotFound)
		}
	}
	return nil
}

func (s *Service) consumeSuperlike(ctx context.Context, tx pgx.Tx, actorID uuid.UUID, mode enums.Mode, now time.Time) error {
	limit := s.cfg.SuperlikesPerDay
	if !rules.SuperlikeQuotaEnabled(limit) || s.quotas == nil {
		return nil
	}

	_, err := s.quotas.ConsumeSuperlike(ctx, tx, actorID, mode, rules.DayKey(now, s.cfg.QuotaLocation), limit)
	if err == nil {
		return nil
	}
	if errors.Is(err, pgrepo.ErrSuperlikeLimitReached) {
		resetAt := rules.NextResetAt(now, s.cfg.QuotaLocation)
		return &failure.RateLimitedError{
			Scope:      "superlike",
			RetryAfter: resetAt.Sub(now),
			ResetAt:    &resetAt,
		}
	}
	return err
}

func (s *Service) checkRate(ctx context.Context, actorID uuid.UUID) error {
	if s.limiter == nil {
		return nil
	}
	retryAfter, allowed, err := s.limiter.Allow(ctx, actorID)
	if err != nil {
		// Redis trouble should not take swiping down with it.
		s.logger.Warn("swipe rate limiter unavailable", zap.Error(err))
		return nil
	}
	if !allowed {
		return &failure.RateLimitedError{Scope: "swipe", RetryAfter: retryAfter}
	}
	return nil
}

func (s *Service) afterEnded(ctx context.Context, ended []model.Match) {
	for _, m := range ended {
		if s.metrics != nil {
			s.metrics.MatchEnded(m.Status)
		}
		if s.notifier != nil {
			s.notifier.MatchEnded(ctx, m)
		}
	}
}

func (s *Service) ready() error {
	if s.tx == nil || s.profiles == nil || s.swipes == nil || s.matches == nil {
		return fmt.Errorf("swipe dependencies are not configured")
	}
	return nil
}

func (s *Service) clock() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

func validateSwipe(actorID, targetID uuid.UUID, mode enums.Mode, decision enums.SwipeDecision) error {
	switch {
	case actorID == uuid.Nil || targetID == uuid.Nil:
		return fmt.Errorf("actor and target ids are required: %w", failure.ErrInvalidInput)
	case actorID == targetID:
		return fmt.Errorf("cannot swipe on yourself: %w", failure.ErrInvalidInput)
	case !mode.Valid():
		return fmt.Errorf("unknown mode %q: %w", mode, failure.ErrInvalidInput)
	case !decision.Valid():
		return fmt.Errorf("unknown decision %q: %w", decision, failure.ErrInvalidInput)
	}
	return nil
}

func mapStoreError(err error) error {
	switch {
	case errors.Is(err, pgrepo.ErrProfileNotFound):
		return fmt.Errorf("profile: %w", failure.ErrNotFound)
	case errors.Is(err, pgrepo.ErrMatchNotFound):
		return fmt.Errorf("match: %w", failure.ErrNotFound)
	case errors.Is(err, pgrepo.ErrMessageNotFound):
		return fmt.Errorf("message: %w", failure.ErrNotFound)
	default:
		return err
	}
}
