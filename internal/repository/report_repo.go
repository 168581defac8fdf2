package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/pulseapp/pulse-engine/internal/db"
)

// ReportRepository provides data access for abuse reports. Flags are always
// derived from these rows, never stored as counters, so the report log is
// the single source of truth for moderation state.
type ReportRepository struct {
	db *gorm.DB
}

func NewReportRepository(database *gorm.DB) *ReportRepository {
	return &ReportRepository{db: database}
}

func (r *ReportRepository) Create(ctx context.Context, report *db.AbuseReport) error {
	return r.db.WithContext(ctx).Create(report).Error
}

// HasRecent reports whether the reporter already filed against the target
// since the given time. Backs the one-report-per-day spam guard.
func (r *ReportRepository) HasRecent(ctx context.Context, reporterID, targetID uint64, since time.Time) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&db.AbuseReport{}).
		Where("reporter_id = ? AND reported_user_id = ? AND created_at > ?", reporterID, targetID, since).
		Count(&count).Error
	return count > 0, err
}

// CountRecentNonDismissed counts reports against the target inside the
// moderation window, excluding dismissed ones.
func (r *ReportRepository) CountRecentNonDismissed(ctx context.Context, targetID uint64, since time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&db.AbuseReport{}).
		Where("reported_user_id = ? AND created_at > ? AND status <> ?",
			targetID, since, db.ReportStatusDismissed).
		Count(&count).Error
	return count, err
}

// ReportStats is the anonymous aggregate exposed by the safety surface.
type ReportStats struct {
	TotalReports    int64 `json:"total_reports"`
	ResolvedReports int64 `json:"resolved_reports"`
	PendingReports  int64 `json:"pending_reports"`
	RecentReports   int64 `json:"recent_reports"`
}

// Stats aggregates user-filed reports (system rows excluded).
func (r *ReportRepository) Stats(ctx context.Context) (*ReportStats, error) {
	since := time.Now().UTC().Add(-30 * 24 * time.Hour)
	var stats ReportStats
	err := r.db.WithContext(ctx).
		Model(&db.AbuseReport{}).
		Select(`COUNT(*) as total_reports,
			SUM(CASE WHEN status = 'resolved' THEN 1 ELSE 0 END) as resolved_reports,
			SUM(CASE WHEN status = 'pending' THEN 1 ELSE 0 END) as pending_reports,
			SUM(CASE WHEN created_at > ? THEN 1 ELSE 0 END) as recent_reports`, since).
		Where("reporter_id <> ?", db.SystemReporterID).
		Scan(&stats).Error
	if err != nil {
		return nil, err
	}
	return &stats, nil
}
