package conversations

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/listergram/backend/internal/domain/enums"
	"github.com/listergram/backend/internal/domain/failure"
	"github.com/listergram/backend/internal/domain/model"
	"github.com/listergram/backend/internal/domain/rules"
	"github.com/listergram/backend/internal/pkg/validate"
	pgrepo "github.com/listergram/backend/internal/repo/postgres"
)

const (
	defaultMaxTextLength = 2000
	defaultPageSize      = 50
	defaultMaxPageSize   = 200
	maxMediaURLLength    = 2048
)

type Transactor interface {
	WithinTx(ctx context.Context, fn func(context.Context, pgx.Tx) error) error
}

type MatchStore interface {
	Get(ctx context.Context, tx pgx.Tx, id uuid.UUID) (model.Match, error)
	GetForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (model.Match, error)
	MarkConversationStarted(ctx context.Context, tx pgx.Tx, id uuid.UUID) error
}

type MessageStore interface {
	Create(ctx context.Context, tx pgx.Tx, msg model.Message) (model.Message, error)
	Last(ctx context.Context, tx pgx.Tx, matchID uuid.UUID) (pgrepo.MessagePosition, bool, error)
	MarkRead(ctx context.Context, tx pgx.Tx, matchID, readerID uuid.UUID, through, now time.Time) (int64, error)
	ListAfter(ctx context.Context, tx pgx.Tx, matchID uuid.UUID, pos *pgrepo.MessagePosition, limit int) ([]model.Message, error)
}

type RateLimiter interface {
	Allow(ctx context.Context, userID uuid.UUID) (time.Duration, bool, error)
}

// Notifier is told about committed conversation changes.
type Notifier interface {
	MessageCreated(ctx context.Context, m model.Match, msg model.Message)
	MessagesRead(ctx context.Context, m model.Match, readerID uuid.UUID, through time.Time)
}

type Metrics interface {
	MessageSent(kind enums.MessageType)
	MessagesRead(count int64)
}

type Config struct {
	MaxTextLength   int
	DefaultPageSize int
	MaxPageSize     int
}

type Dependencies struct {
	Tx          Transactor
	Matches     MatchStore
	Messages    MessageStore
	RateLimiter RateLimiter
	Notifier    Notifier
	Metrics     Metrics
	Logger      *zap.Logger
}

type Service struct {
	tx       Transactor
	matches  MatchStore
	messages MessageStore
	limiter  RateLimiter
	notifier Notifier
	metrics  Metrics
	logger   *zap.Logger
	cfg      Config
	now      func() time.Time
	newID    func() uuid.UUID
}

// Content is what a sender submits. Type defaults to text.
type Content struct {
	Type         enums.MessageType
	Text         string
	MediaURL     string
	ClientSentAt *time.Time
}

// Page is one slice of a conversation. NextCursor resumes after the last
// item and is set whenever Items is non-empty; HasMore says whether more
// messages already exist past it.
type Page struct {
	Items      []model.Message
	NextCursor string
	HasMore    bool
}

func NewService(deps Dependencies, cfg Config) *Service {
	if cfg.MaxTextLength <= 0 {
		cfg.MaxTextLength = defaultMaxTextLength
	}
	if cfg.DefaultPageSize <= 0 {
		cfg.DefaultPageSize = defaultPageSize
	}
	if cfg.MaxPageSize < cfg.DefaultPageSize {
		cfg.MaxPageSize = max(defaultMaxPageSize, cfg.DefaultPageSize)
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Service{
		tx:       deps.Tx,
		matches:  deps.Matches,
		messages: deps.Messages,
		limiter:  deps.RateLimiter,
		notifier: deps.Notifier,
		metrics:  deps.Metrics,
		logger:   logger.Named("conversations"),
		cfg:      cfg,
		now:      time.Now,
		newID:    uuid.New,
	}
}

// SendMessage appends a message to an active match. The match row is locked
// for the insert, so created_at never goes backwards within a conversation
// and seq breaks ties in arrival order.
func (s *Service) SendMessage(ctx context.Context, matchID, senderID uuid.UUID, content Content) (model.Message, error) {
	if matchID == uuid.Nil || senderID == uuid.Nil {
		return model.Message{}, fmt.Errorf("match and sender ids are required: %w", failure.ErrInvalidInput)
	}
	content, err := s.normalizeContent(content)
	if err != nil {
		return model.Message{}, err
	}
	if err := s.ready(); err != nil {
		return model.Message{}, err
	}
	if err := s.checkRate(ctx, senderID); err != nil {
		return model.Message{}, err
	}

	var (
		saved model.Message
		match model.Match
	)
	err = s.tx.WithinTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		now := s.clock()

		m, err := s.matches.GetForUpdate(ctx, tx, matchID)
		if err != nil {
			return err
		}
		if !m.HasParticipant(senderID) {
			return fmt.Errorf("sender is not part of match: %w", failure.ErrForbidden)
		}
		if !rules.MatchActive(m, now) {
			return fmt.Errorf("match is %s: %w", rules.EffectiveStatus(m, now), failure.ErrMatchInactive)
		}

		createdAt := now
		last, ok, err := s.messages.Last(ctx, tx, matchID)
		if err != nil {
			return err
		}
		if ok && last.CreatedAt.After(createdAt) {
			createdAt = last.CreatedAt
		}

		saved, err = s.messages.Create(ctx, tx, model.Message{
			ID:           s.newID(),
			MatchID:      matchID,
			SenderID:     senderID,
			Type:         content.Type,
			Text:         content.Text,
			MediaURL:     content.MediaURL,
			ClientSentAt: content.ClientSentAt,
			CreatedAt:    createdAt,
		})
		if err != nil {
			return err
		}

		if !m.ConversationStarted {
			if err := s.matches.MarkConversationStarted(ctx, tx, matchID); err != nil {
				return err
			}
			m.ConversationStarted = true
			m.ExpiresAt = nil
		}
		match = m
		return nil
	})
	if err != nil {
		return model.Message{}, mapStoreError(err)
	}

	if s.metrics != nil {
		s.metrics.MessageSent(saved.Type)
	}
	if s.notifier != nil {
		s.notifier.MessageCreated(ctx, match, saved)
	}
	return saved, nil
}

// MarkRead stamps read_at on the peer's messages up to through. A zero
// through means "everything so far"; through never reaches past the later
// of now and the newest message. Repeating the call changes nothing.
func (s *Service) MarkRead(ctx context.Context, matchID, readerID uuid.UUID, through time.Time) (int64, error) {
	if matchID == uuid.Nil || readerID == uuid.Nil {
		return 0, fmt.Errorf("match and reader ids are required: %w", failure.ErrInvalidInput)
	}
	if err := s.ready(); err != nil {
		return 0, err
	}

	requested := through

	var (
		updated int64
		match   model.Match
	)
	err := s.tx.WithinTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		now := s.clock()

		m, err := s.matches.Get(ctx, tx, matchID)
		if err != nil {
			return err
		}
		if !m.HasParticipant(readerID) {
			return fmt.Errorf("reader is not part of match: %w", failure.ErrForbidden)
		}

		// Stored times never go backwards, so the newest message may sit
		// ahead of a clock that stepped back.
		ceiling := now
		last, ok, err := s.messages.Last(ctx, tx, matchID)
		if err != nil {
			return err
		}
		if ok && last.CreatedAt.After(ceiling) {
			ceiling = last.CreatedAt
		}
		through = requested
		if through.IsZero() || through.After(ceiling) {
			through = ceiling
		}
		through = through.UTC().Truncate(time.Microsecond)

		match = m
		updated, err = s.messages.MarkRead(ctx, tx, matchID, readerID, through, now)
		return err
	})
	if err != nil {
		return 0, mapStoreError(err)
	}

	if updated > 0 {
		if s.metrics != nil {
			s.metrics.MessagesRead(updated)
		}
		if s.notifier != nil {
			s.notifier.MessagesRead(ctx, match, readerID, through)
		}
	}
	return updated, nil
}

// ListMessages returns up to limit messages after cursor in conversation
// order. Only participants may read a conversation.
func (s *Service) ListMessages(ctx context.Context, matchID, callerID uuid.UUID, cursor string, limit int) (Page, error) {
	if matchID == uuid.Nil || callerID == uuid.Nil {
		return Page{}, fmt.Errorf("match and caller ids are required: %w", failure.ErrInvalidInput)
	}
	pos, err := DecodeCursor(matchID, cursor)
	if err != nil {
		return Page{}, err
	}
	if err := s.ready(); err != nil {
		return Page{}, err
	}
	limit = s.normalizeLimit(limit)

	var items []model.Message
	err = s.tx.WithinTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		m, err := s.matches.Get(ctx, tx, matchID)
		if err != nil {
			return err
		}
		if !m.HasParticipant(callerID) {
			return fmt.Errorf("caller is not part of match: %w", failure.ErrAuthorization)
		}

		items, err = s.messages.ListAfter(ctx, tx, matchID, pos, limit+1)
		return err
	})
	if err != nil {
		return Page{}, mapStoreError(err)
	}

	page := Page{Items: items, NextCursor: cursor}
	if len(items) > limit {
		page.Items = items[:limit]
		page.HasMore = true
	}
	if n := len(page.Items); n > 0 {
		last := page.Items[n-1]
		page.NextCursor = EncodeCursor(matchID, pgrepo.MessagePosition{CreatedAt: last.CreatedAt, Seq: last.Seq})
	}
	return page, nil
}

// Messages walks the conversation lazily from cursor to the current end,
// fetching one page at a time. The walk stops at the first error.
func (s *Service) Messages(ctx context.Context, matchID, callerID uuid.UUID, cursor string) iter.Seq2[model.Message, error] {
	return func(yield func(model.Message, error) bool) {
		for {
			page, err := s.ListMessages(ctx, matchID, callerID, cursor, s.cfg.DefaultPageSize)
			if err != nil {
				yield(model.Message{}, err)
				return
			}
			for _, msg := range page.Items {
				if !yield(msg, nil) {
					return
				}
			}
			if !page.HasMore {
				return
			}
			cursor = page.NextCursor
		}
	}
}

func (s *Service) normalizeContent(c Content) (Content, error) {
	if c.Type == "" {
		c.Type = enums.MessageTypeText
	}
	if !c.Type.Valid() {
		return Content{}, fmt.Errorf("unknown message type %q: %w", c.Type, failure.ErrInvalidInput)
	}
	c.Text = strings.TrimSpace(c.Text)
	c.MediaURL = strings.TrimSpace(c.MediaURL)

	if !validate.MaxRunes(c.Text, s.cfg.MaxTextLength) {
		return Content{}, fmt.Errorf("message must fit %d characters: %w", s.cfg.MaxTextLength, failure.ErrInvalidInput)
	}
	if c.Type.HasMedia() {
		if !validate.Required(c.MediaURL) || len(c.MediaURL) > maxMediaURLLength {
			return Content{}, fmt.Errorf("%s message needs a media url: %w", c.Type, failure.ErrInvalidInput)
		}
	} else {
		if !validate.Required(c.Text) {
			return Content{}, fmt.Errorf("message text is required: %w", failure.ErrInvalidInput)
		}
		c.MediaURL = ""
	}
	if c.ClientSentAt != nil {
		at := c.ClientSentAt.UTC().Truncate(time.Microsecond)
		c.ClientSentAt = &at
	}
	return c, nil
}

func (s *Service) checkRate(ctx context.Context, senderID uuid.UUID) error {
	if s.limiter == nil {
		return nil
	}
	retryAfter, allowed, err := s.limiter.Allow(ctx, senderID)
	if err != nil {
		s.logger.Warn("message rate limiter unavailable", zap.Error(err))
		return nil
	}
	if !allowed {
		return &failure.RateLimitedError{Scope: "messages", RetryAfter: retryAfter}
	}
	return nil
}

func (s *Service) normalizeLimit(limit int) int {
	if limit <= 0 {
		return s.cfg.DefaultPageSize
	}
	if limit > s.cfg.MaxPageSize {
		return s.cfg.MaxPageSize
	}
	return limit
}

func (s *Service) ready() error {
	if s.tx == nil || s.matches == nil || s.messages == nil {
		return fmt.Errorf("conversation dependencies are not configured")
	}
	return nil
}

func (s *Service) clock() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

func mapStoreError(err error) error {
	switch {
	case errors.Is(err, pgrepo.ErrMatchNotFound):
		return fmt.Errorf("match: %w", failure.ErrNotFound)
	case errors.Is(err, pgrepo.ErrMessageNotFound):
		return fmt.Errorf("message: %w", failure.ErrNotFound)
	default:
		return err
	}
}
