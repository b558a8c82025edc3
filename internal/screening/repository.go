package screening

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aristath/screener/internal/domain"
)

// ReportRepository persists completed screening reports in the
// screening_reports table
type ReportRepository struct {
	db *sql.DB
}

// NewReportRepository creates a report repository
func NewReportRepository(db *sql.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

// Save stores a report, replacing any report with the same run id
func (r *ReportRepository) Save(ctx context.Context, report *domain.Report) error {
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to encode report %s: %w", report.RunID, err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO screening_reports (run_id, started_at, finished_at, report)
		VALUES (?, ?, ?, ?)
	`, report.RunID, report.StartedAt.UnixMilli(), report.FinishedAt.UnixMilli(), data)
	if err != nil {
		return fmt.Errorf("failed to store report %s: %w", report.RunID, err)
	}
	return nil
}

// Latest returns the most recently finished report, or nil if none exists
func (r *ReportRepository) Latest(ctx context.Context) (*domain.Report, error) {
	var data []byte
	err := r.db.QueryRowContext(ctx, `
		SELECT report FROM screening_reports ORDER BY finished_at DESC LIMIT 1
	`).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read latest report: %w", err)
	}

	var report domain.Report
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("failed to decode latest report: %w", err)
	}
	return &report, nil
}

// Prune keeps the newest keep reports and deletes the rest
func (r *ReportRepository) Prune(ctx context.Context, keep int) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM screening_reports WHERE run_id NOT IN (
			SELECT run_id FROM screening_reports ORDER BY finished_at DESC LIMIT ?
		)
	`, keep)
	if err != nil {
		return 0, fmt.Errorf("failed to prune reports: %w", err)
	}
	return result.RowsAffected()
}
