package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/pulseapp/pulse-engine/internal/db"
)

// MatchRepository provides data access for match rows. The canonical
// (low, high) ordering is the caller's responsibility; every method here
// takes the pair already normalized.
type MatchRepository struct {
	db *gorm.DB
}

func NewMatchRepository(database *gorm.DB) *MatchRepository {
	return &MatchRepository{db: database}
}

func (r *MatchRepository) GetByID(ctx context.Context, id uint64) (*db.Match, error) {
	var m db.Match
	if err := r.db.WithContext(ctx).First(&m, id).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

// GetByPair looks up the single row for a normalized pair.
func (r *MatchRepository) GetByPair(ctx context.Context, lowID, highID uint64) (*db.Match, error) {
	var m db.Match
	err := r.db.WithContext(ctx).
		Where("user_low_id = ? AND user_high_id = ?", lowID, highID).
		First(&m).Error
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// Create inserts a new match row. The uk_match_pair unique index backs the
// one-row-per-pair invariant; a concurrent duplicate surfaces as
// gorm.ErrDuplicatedKey (TranslateError is on).
func (r *MatchRepository) Create(ctx context.Context, m *db.Match) error {
	return r.db.WithContext(ctx).Create(m).Error
}

// UpdateStatus transitions a match and bumps updated_at.
func (r *MatchRepository) UpdateStatus(ctx context.Context, id uint64, status string) error {
	return r.db.WithContext(ctx).
		Model(&db.Match{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":     status,
			"updated_at": time.Now().UTC(),
		}).Error
}

// ForceBlockPair moves whatever match exists between the pair to blocked,
// regardless of current state. No-op when no row exists.
func (r *MatchRepository) ForceBlockPair(ctx context.Context, lowID, highID uint64) error {
	return r.db.WithContext(ctx).
		Model(&db.Match{}).
		Where("user_low_id = ? AND user_high_id = ?", lowID, highID).
		Updates(map[string]interface{}{
			"status":     db.MatchStatusBlocked,
			"updated_at": time.Now().UTC(),
		}).Error
}

// ListForUser returns a user's matches newest-first, optionally filtered by
// status. Accepted sorts ahead of pending, terminal states last.
func (r *MatchRepository) ListForUser(ctx context.Context, userID uint64, status string) ([]db.Match, error) {
	query := r.db.WithContext(ctx).
		Where("user_low_id = ? OR user_high_id = ?", userID, userID).
		Order(`CASE status
			WHEN 'accepted' THEN 1
			WHEN 'pending' THEN 2
			ELSE 3 END, updated_at DESC`)
	if status != "" && status != "all" {
		query = query.Where("status = ?", status)
	}
	var matches []db.Match
	if err := query.Find(&matches).Error; err != nil {
		return nil, err
	}
	return matches, nil
}

// MatchStats aggregates a user's match history.
type MatchStats struct {
	TotalMatches     int64   `json:"total_matches"`
	PendingMatches   int64   `json:"pending_matches"`
	AcceptedMatches  int64   `json:"accepted_matches"`
	DeclinedMatches  int64   `json:"declined_matches"`
	AvgCompatibility float64 `json:"avg_compatibility"`
}

// StatsForUser computes aggregate counts and average score in one pass.
func (r *MatchRepository) StatsForUser(ctx context.Context, userID uint64) (*MatchStats, error) {
	var stats MatchStats
	err := r.db.WithContext(ctx).
		Table("matches").
		Select(`COUNT(*) as total_matches,
			SUM(CASE WHEN status = 'pending' THEN 1 ELSE 0 END) as pending_matches,
			SUM(CASE WHEN status = 'accepted' THEN 1 ELSE 0 END) as accepted_matches,
			SUM(CASE WHEN status = 'declined' THEN 1 ELSE 0 END) as declined_matches,
			COALESCE(AVG(compatibility_score), 0) as avg_compatibility`).
		Where("user_low_id = ? OR user_high_id = ?", userID, userID).
		Scan(&stats).Error
	if err != nil {
		return nil, err
	}
	return &stats, nil
}
