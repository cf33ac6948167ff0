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
	pgrepo "github.com/listergram/backend/internal/repo/postgres"
)

type BlockRepo struct {
	store *Store
}

func (r *BlockRepo) Upsert(_ context.Context, _ pgx.Tx, blockerID, blockedID uuid.UUID, reason string, now time.Time) error {
	if blockerID == uuid.Nil || blockedID == uuid.Nil || blockerID == blockedID {
		return fmt.Errorf("invalid block payload")
	}
	key := blockKey{blocker: blockerID, blocked: blockedID}
	block, ok := r.store.state.blocks[key]
	if !ok {
		block = model.Block{BlockerID: blockerID, BlockedID: blockedID, CreatedAt: now}
	}
	block.Reason = strings.TrimSpace(reason)
	r.store.state.blocks[key] = block
	return nil
}

func (r *BlockRepo) ExistsBetween(_ context.Context, _ pgx.Tx, a, b uuid.UUID) (bool, error) {
	return blockedBetween(r.store.state, a, b), nil
}

type ReportRepo struct {
	store *Store
}

func (r *ReportRepo) Create(_ context.Context, _ pgx.Tx, report model.Report) (model.Report, error) {
	if report.ID == uuid.Nil || report.ReporterID == uuid.Nil || report.ReportedUserID == uuid.Nil ||
		report.ReporterID == report.ReportedUserID {
		return model.Report{}, fmt.Errorf("invalid report payload")
	}
	if !report.Reason.Valid() {
		return model.Report{}, fmt.Errorf("report reason is required")
	}
	report.Status = enums.ReportStatusPending
	report.Details = strings.TrimSpace(report.Details)
	r.store.state.reports = append(r.store.state.reports, report)
	return report, nil
}

// All returns every stored report in creation order.
func (r *ReportRepo) All() []model.Report {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	return append([]model.Report(nil), r.store.state.reports...)
}

type QuotaRepo struct {
	store *Store
}

func (r *QuotaRepo) GetSuperlikesUsed(_ context.Context, _ pgx.Tx, userID uuid.UUID, mode enums.Mode, dayKey string) (int, error) {
	if userID == uuid.Nil || strings.TrimSpace(dayKey) == "" {
		return 0, fmt.Errorf("invalid quota lookup payload")
	}
	return r.store.state.quotas[quotaKey{user: userID, mode: mode, day: dayKey}], nil
}

func (r *QuotaRepo) ConsumeSuperlike(_ context.Context, _ pgx.Tx, userID uuid.UUID, mode enums.Mode, dayKey string, limit int) (int, error) {
	if userID == uuid.Nil || strings.TrimSpace(dayKey) == "" || limit <= 0 {
		return 0, fmt.Errorf("invalid quota update payload")
	}
	key := quotaKey{user: userID, mode: mode, day: dayKey}
	used := r.store.state.quotas[key]
	if used >= limit {
		return 0, pgrepo.ErrSuperlikeLimitReached
	}
	used++
	r.store.state.quotas[key] = used
	return used, nil
}
