package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/pulseapp/pulse-engine/internal/db"
)

// UserRepository provides read access to user rows for discovery and
// participant lookups. Account mutation lives in the account service.
type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(database *gorm.DB) *UserRepository {
	return &UserRepository{db: database}
}

func (r *UserRepository) GetUser(ctx context.Context, id uint64) (*db.User, error) {
	var user db.User
	if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) GetUsers(ctx context.Context, ids []uint64) (map[uint64]db.User, error) {
	if len(ids) == 0 {
		return map[uint64]db.User{}, nil
	}
	var users []db.User
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, err
	}
	out := make(map[uint64]db.User, len(users))
	for _, u := range users {
		out[u.ID] = u
	}
	return out, nil
}

// Candidate is a discovery pool row before scoring.
type Candidate struct {
	ID            uint64
	Username      string
	DisplayName   string
	Age           int
	Pronouns      string
	Bio           string
	LocationCity  string
	LocationState string
	LastActive    time.Time
	CodeCount     int64
}

// DiscoveryCandidates selects users eligible to be offered to the requester:
// not self, visible (public or community), inside the age range, wearing at
// least one code, and with no match row at all against the requester —
// pending pairs are excluded too, so discovery never re-offers someone a
// decision is already in flight for.
//
// When the requester has a city set, candidates are limited to that city or
// to users with no city, mirroring the coarse location filter of the
// product. Restriction flags are applied by the service on top of this.
func (r *UserRepository) DiscoveryCandidates(
	ctx context.Context,
	requester *db.User,
	minAge, maxAge, limit int,
) ([]Candidate, error) {
	query := r.db.WithContext(ctx).
		Table("users u").
		Select(`u.id, u.username, u.display_name, u.age, u.pronouns, u.bio,
			u.location_city, u.location_state, u.last_active,
			COUNT(uhc.hanky_code_id) as code_count`).
		Joins("LEFT JOIN user_hanky_codes uhc ON uhc.user_id = u.id").
		Where("u.id <> ?", requester.ID).
		Where("u.profile_visibility IN ?", []string{"public", "community"}).
		Where("u.age BETWEEN ? AND ?", minAge, maxAge).
		Where(`NOT EXISTS (
			SELECT 1 FROM matches m
			WHERE (m.user_low_id = ? AND m.user_high_id = u.id)
			   OR (m.user_low_id = u.id AND m.user_high_id = ?)
		)`, requester.ID, requester.ID).
		Group("u.id").
		Having("COUNT(uhc.hanky_code_id) > 0").
		Order("u.last_active DESC").
		Limit(limit)

	if requester.LocationCity != "" {
		query = query.Where("(u.location_city = ? OR u.location_city = '' OR u.location_city IS NULL)",
			requester.LocationCity)
	}

	var candidates []Candidate
	if err := query.Scan(&candidates).Error; err != nil {
		return nil, err
	}
	return candidates, nil
}
