package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/listergram/backend/internal/domain/enums"
	"github.com/listergram/backend/internal/domain/model"
)

type ReportRepo struct {
	pool *pgxpool.Pool
}

func NewReportRepo(pool *pgxpool.Pool) *ReportRepo {
	return &ReportRepo{pool: pool}
}

// Create stores a pending report.
func (r *ReportRepo) Create(ctx context.Context, tx pgx.Tx, report model.Report) (model.Report, error) {
	if report.ID == uuid.Nil || report.ReporterID == uuid.Nil || report.ReportedUserID == uuid.Nil ||
		report.ReporterID == report.ReportedUserID {
		return model.Report{}, fmt.Errorf("invalid report payload")
	}
	if !report.Reason.Valid() {
		return model.Report{}, fmt.Errorf("report reason is required")
	}
	if tx == nil {
		return model.Report{}, fmt.Errorf("transaction is required")
	}

	var (
		out    = report
		status string
	)
	if err := tx.QueryRow(ctx, `
INSERT INTO reports (
	id,
	reporter_id,
	reported_user_id,
	reported_message_id,
	reason,
	details,
	status,
	created_at,
	updated_at
) VALUES ($1, $2, $3, $4, $5, $6, 'pending', $7, $7)
RETURNING status, created_at
`,
		report.ID,
		report.ReporterID,
		report.ReportedUserID,
		report.ReportedMessageID,
		string(report.Reason),
		strings.TrimSpace(report.Details),
		report.CreatedAt,
	).Scan(&status, &out.CreatedAt); err != nil {
		return model.Report{}, fmt.Errorf("create report: %w", err)
	}
	out.Status = enums.ReportStatus(status)
	out.Details = strings.TrimSpace(report.Details)

	return out, nil
}
