package profiles

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/listergram/backend/internal/domain/enums"
	"github.com/listergram/backend/internal/domain/failure"
	"github.com/listergram/backend/internal/domain/model"
	"github.com/listergram/backend/internal/pkg/validate"
	pgrepo "github.com/listergram/backend/internal/repo/postgres"
)

const (
	minFloor        = 1
	maxFloor        = 20
	maxInterests    = 20
	maxInterestLen  = 32
	maxBioLen       = 500
	maxNameLen      = 100
	maxProgramLen   = 120
	maxPronounsLen  = 40
	minAge          = 16
	maxAge          = 120
	defaultPageSize = 20
	maxPageSize     = 100
)

type ProfileStore interface {
	Get(ctx context.Context, tx pgx.Tx, id uuid.UUID) (model.Profile, error)
	Upsert(ctx context.Context, tx pgx.Tx, p model.Profile, now time.Time) (model.Profile, error)
	SetModes(ctx context.Context, tx pgx.Tx, id uuid.UUID, dating, friends bool, now time.Time) (model.Profile, error)
	Disable(ctx context.Context, tx pgx.Tx, id uuid.UUID, now time.Time) (model.Profile, error)
	ListCandidates(
		ctx context.Context,
		tx pgx.Tx,
		viewerID uuid.UUID,
		mode enums.Mode,
		after *uuid.UUID,
		limit int,
		now time.Time,
	) ([]model.Profile, error)
}

type Transactor interface {
	WithinTx(ctx context.Context, fn func(context.Context, pgx.Tx) error) error
}

type Config struct {
	CandidatePageSize int
}

type Dependencies struct {
	Tx    Transactor
	Store ProfileStore
}

type Service struct {
	tx    Transactor
	store ProfileStore
	cfg   Config
	now   func() time.Time
}

type UpsertInput struct {
	Email             string
	FullName          string
	Username          string
	Tower             enums.Tower
	Floor             int
	Program           string
	YearOfStudy       enums.YearOfStudy
	Bio               string
	Pronouns          string
	Age               *int
	Interests         []string
	DatingEnabled     *bool
	FriendModeEnabled *bool
}

// CandidatePage is one slice of the candidate set. Next is the keyset bound
// for the following call and is nil once the set is exhausted.
type CandidatePage struct {
	Items []model.Profile
	Next  *uuid.UUID
}

func NewService(deps Dependencies, cfg Config) *Service {
	if cfg.CandidatePageSize <= 0 {
		cfg.CandidatePageSize = defaultPageSize
	}

	return &Service{
		tx:    deps.Tx,
		store: deps.Store,
		cfg:   cfg,
		now:   time.Now,
	}
}

func (s *Service) GetProfile(ctx context.Context, id uuid.UUID) (model.Profile, error) {
	if id == uuid.Nil {
		return model.Profile{}, fmt.Errorf("profile id is required: %w", failure.ErrInvalidInput)
	}
	if err := s.ready(); err != nil {
		return model.Profile{}, err
	}

	var profile model.Profile
	err := s.tx.WithinTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		var err error
		profile, err = s.store.Get(ctx, tx, id)
		return err
	})
	if err != nil {
		return model.Profile{}, mapStoreError(err)
	}
	return profile, nil
}

// FindCandidates lists profiles forUserID can still swipe on in mode:
// never self, never someone already swiped in mode, never a profile with
// the mode switched off, never an active match partner, never a blocked pair.
func (s *Service) FindCandidates(ctx context.Context, forUserID uuid.UUID, mode enums.Mode, after *uuid.UUID, limit int) (CandidatePage, error) {
	if forUserID == uuid.Nil {
		return CandidatePage{}, fmt.Errorf("user id is required: %w", failure.ErrInvalidInput)
	}
	if !mode.Valid() {
		return CandidatePage{}, fmt.Errorf("unknown mode %q: %w", mode, failure.ErrInvalidInput)
	}
	if err := s.ready(); err != nil {
		return CandidatePage{}, err
	}
	limit = s.normalizeLimit(limit)

	var items []model.Profile
	err := s.tx.WithinTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		viewer, err := s.store.Get(ctx, tx, forUserID)
		if err != nil {
			return err
		}
		if viewer.Disabled() {
			return fmt.Errorf("viewer profile is disabled: %w", failure.ErrNotFound)
		}
		if !viewer.EnabledFor(mode) {
			return fmt.Errorf("%s mode is off for viewer: %w", mode, failure.ErrInvalidInput)
		}

		// One extra row tells us whether another page exists.
		items, err = s.store.ListCandidates(ctx, tx, forUserID, mode, after, limit+1, s.now().UTC())
		return err
	})
	if err != nil {
		return CandidatePage{}, mapStoreError(err)
	}

	page := CandidatePage{Items: items}
	if len(items) > limit {
		page.Items = items[:limit]
		last := page.Items[limit-1].ID
		page.Next = &last
	}
	return page, nil
}

// UpsertProfile creates or updates the caller's own profile.
func (s *Service) UpsertProfile(ctx context.Context, ownerID uuid.UUID, in UpsertInput) (model.Profile, error) {
	if ownerID == uuid.Nil {
		return model.Profile{}, fmt.Errorf("owner id is required: %w", failure.ErrInvalidInput)
	}
	profile, err := buildProfile(ownerID, in)
	if err != nil {
		return model.Profile{}, err
	}
	if err := s.ready(); err != nil {
		return model.Profile{}, err
	}

	var saved model.Profile
	err = s.tx.WithinTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		existing, err := s.store.Get(ctx, tx, ownerID)
		switch {
		case err == nil:
			profile.DatingEnabled = pickBool(in.DatingEnabled, existing.DatingEnabled)
			profile.FriendModeEnabled = pickBool(in.FriendModeEnabled, existing.FriendModeEnabled)
		case errors.Is(err, pgrepo.ErrProfileNotFound):
			profile.DatingEnabled = pickBool(in.DatingEnabled, false)
			profile.FriendModeEnabled = pickBool(in.FriendModeEnabled, true)
		default:
			return err
		}

		saved, err = s.store.Upsert(ctx, tx, profile, s.now().UTC())
		return err
	})
	if err != nil {
		return model.Profile{}, mapStoreError(err)
	}
	return saved, nil
}

func (s *Service) SetModes(ctx context.Context, ownerID uuid.UUID, dating, friends bool) (model.Profile, error) {
	if ownerID == uuid.Nil {
		return model.Profile{}, fmt.Errorf("owner id is required: %w", failure.ErrInvalidInput)
	}
	if err := s.ready(); err != nil {
		return model.Profile{}, err
	}

	var saved model.Profile
	err := s.tx.WithinTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		var err error
		saved, err = s.store.SetModes(ctx, tx, ownerID, dating, friends, s.now().UTC())
		return err
	})
	if err != nil {
		return model.Profile{}, mapStoreError(err)
	}
	return saved, nil
}

// Disable soft-disables the caller's profile. Profiles are never deleted.
func (s *Service) Disable(ctx context.Context, ownerID uuid.UUID) (model.Profile, error) {
	if ownerID == uuid.Nil {
		return model.Profile{}, fmt.Errorf("owner id is required: %w", failure.ErrInvalidInput)
	}
	if err := s.ready(); err != nil {
		return model.Profile{}, err
	}

	var saved model.Profile
	err := s.tx.WithinTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		var err error
		saved, err = s.store.Disable(ctx, tx, ownerID, s.now().UTC())
		return err
	})
	if err != nil {
		return model.Profile{}, mapStoreError(err)
	}
	return saved, nil
}

func (s *Service) ready() error {
	if s.tx == nil || s.store == nil {
		return fmt.Errorf("profile dependencies are not configured")
	}
	return nil
}

func (s *Service) normalizeLimit(limit int) int {
	if limit <= 0 {
		return s.cfg.CandidatePageSize
	}
	if limit > maxPageSize {
		return maxPageSize
	}
	return limit
}

func buildProfile(ownerID uuid.UUID, in UpsertInput) (model.Profile, error) {
	fullName := strings.TrimSpace(in.FullName)
	username := strings.ToLower(strings.TrimSpace(in.Username))
	program := strings.TrimSpace(in.Program)
	bio := strings.TrimSpace(in.Bio)
	pronouns := strings.TrimSpace(in.Pronouns)

	switch {
	case !validate.Required(fullName) || !validate.MaxRunes(fullName, maxNameLen):
		return model.Profile{}, fmt.Errorf("full name is required and must fit %d characters: %w", maxNameLen, failure.ErrInvalidInput)
	case !validate.Username(username):
		return model.Profile{}, fmt.Errorf("username must be 3-30 of a-z, 0-9, _ or .: %w", failure.ErrInvalidInput)
	case !in.Tower.Valid():
		return model.Profile{}, fmt.Errorf("unknown tower %q: %w", in.Tower, failure.ErrInvalidInput)
	case in.Floor < minFloor || in.Floor > maxFloor:
		return model.Profile{}, fmt.Errorf("floor must be between %d and %d: %w", minFloor, maxFloor, failure.ErrInvalidInput)
	case !in.YearOfStudy.Valid():
		return model.Profile{}, fmt.Errorf("unknown year of study %q: %w", in.YearOfStudy, failure.ErrInvalidInput)
	case !validate.MaxRunes(program, maxProgramLen):
		return model.Profile{}, fmt.Errorf("program is too long: %w", failure.ErrInvalidInput)
	case !validate.MaxRunes(bio, maxBioLen):
		return model.Profile{}, fmt.Errorf("bio must fit %d characters: %w", maxBioLen, failure.ErrInvalidInput)
	case !validate.MaxRunes(pronouns, maxPronounsLen):
		return model.Profile{}, fmt.Errorf("pronouns are too long: %w", failure.ErrInvalidInput)
	case in.Age != nil && (*in.Age < minAge || *in.Age > maxAge):
		return model.Profile{}, fmt.Errorf("age must be between %d and %d: %w", minAge, maxAge, failure.ErrInvalidInput)
	}

	interests := validate.Tags(in.Interests)
	if len(interests) > maxInterests {
		return model.Profile{}, fmt.Errorf("at most %d interests are allowed: %w", maxInterests, failure.ErrInvalidInput)
	}
	for _, tag := range interests {
		if !validate.MaxRunes(tag, maxInterestLen) {
			return model.Profile{}, fmt.Errorf("interest %q is too long: %w", tag, failure.ErrInvalidInput)
		}
	}

	return model.Profile{
		ID:          ownerID,
		Email:       strings.TrimSpace(in.Email),
		FullName:    fullName,
		Username:    username,
		Tower:       in.Tower,
		Floor:       in.Floor,
		Program:     program,
		YearOfStudy: in.YearOfStudy,
		Bio:         bio,
		Pronouns:    pronouns,
		Age:         in.Age,
		Interests:   interests,
	}, nil
}

func pickBool(v *bool, fallback bool) bool {
	if v == nil {
		return fallback
	}
	return *v
}

func mapStoreError(err error) error {
	switch {
	case errors.Is(err, pgrepo.ErrProfileNotFound):
		return fmt.Errorf("profile: %w", failure.ErrNotFound)
	case errors.Is(err, pgrepo.ErrUsernameTaken):
		return fmt.Errorf("username is taken: %w", failure.ErrConflict)
	default:
		return err
	}
}
