package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/pulseapp/pulse-engine/internal/compat"
	"github.com/pulseapp/pulse-engine/internal/db"
)

// TagRepository provides data access for the hanky-code catalog and per-user
// assignments.
type TagRepository struct {
	db *gorm.DB
}

func NewTagRepository(database *gorm.DB) *TagRepository {
	return &TagRepository{db: database}
}

// ListCodes returns catalog entries, optionally filtered by category.
func (r *TagRepository) ListCodes(ctx context.Context, category string) ([]db.HankyCode, error) {
	query := r.db.WithContext(ctx).Order("category, color, position")
	if category != "" && category != "all" {
		query = query.Where("category = ?", category)
	}
	var codes []db.HankyCode
	if err := query.Find(&codes).Error; err != nil {
		return nil, err
	}
	return codes, nil
}

// GetCode fetches one catalog entry by id.
func (r *TagRepository) GetCode(ctx context.Context, id uint64) (*db.HankyCode, error) {
	var code db.HankyCode
	if err := r.db.WithContext(ctx).First(&code, id).Error; err != nil {
		return nil, err
	}
	return &code, nil
}

// CategoryCount is one row of the categories listing.
type CategoryCount struct {
	Category string `json:"category"`
	Count    int64  `json:"count"`
}

// Categories returns distinct catalog categories with entry counts.
func (r *TagRepository) Categories(ctx context.Context) ([]CategoryCount, error) {
	var rows []CategoryCount
	err := r.db.WithContext(ctx).
		Table("hanky_codes").
		Select("category, COUNT(*) as count").
		Group("category").
		Order("category").
		Scan(&rows).Error
	return rows, err
}

// PopularCode is a catalog entry annotated with usage stats.
type PopularCode struct {
	db.HankyCode
	UserCount    int64   `json:"user_count"`
	AvgIntensity float64 `json:"avg_intensity"`
}

// PopularCodes ranks catalog entries by how many users wear them.
func (r *TagRepository) PopularCodes(ctx context.Context, limit int) ([]PopularCode, error) {
	var rows []PopularCode
	err := r.db.WithContext(ctx).
		Table("hanky_codes hc").
		Select(`hc.*,
			COUNT(uhc.user_id) as user_count,
			COALESCE(AVG(uhc.intensity), 0) as avg_intensity`).
		Joins("LEFT JOIN user_hanky_codes uhc ON uhc.hanky_code_id = hc.id").
		Group("hc.id").
		Order("user_count DESC, avg_intensity DESC").
		Limit(limit).
		Scan(&rows).Error
	return rows, err
}

// AssignmentsForUser returns the user's codes flattened for scoring.
func (r *TagRepository) AssignmentsForUser(ctx context.Context, userID uint64) ([]compat.TagAssignment, error) {
	var rows []compat.TagAssignment
	err := r.db.WithContext(ctx).
		Table("user_hanky_codes uhc").
		Select("hc.id as code_id, hc.color, uhc.position, uhc.intensity").
		Joins("JOIN hanky_codes hc ON hc.id = uhc.hanky_code_id").
		Where("uhc.user_id = ?", userID).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// UpsertAssignment inserts or replaces a user's take on a catalog entry.
// Composite PK ensures overwrite: re-assigning replaces intensity.
func (r *TagRepository) UpsertAssignment(ctx context.Context, userID, codeID uint64, position string, intensity int) error {
	assignment := db.UserHankyCode{
		UserID:      userID,
		HankyCodeID: codeID,
		Position:    position,
		Intensity:   intensity,
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "hanky_code_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"position", "intensity", "updated_at"}),
		}).
		Create(&assignment).Error
}

// RemoveAssignment deletes a user's assignment. Returns rows affected so the
// service can distinguish "was not assigned".
func (r *TagRepository) RemoveAssignment(ctx context.Context, userID, codeID uint64) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("user_id = ? AND hanky_code_id = ?", userID, codeID).
		Delete(&db.UserHankyCode{})
	return res.RowsAffected, res.Error
}
