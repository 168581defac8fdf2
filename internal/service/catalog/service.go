package catalog

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/pulseapp/pulse-engine/internal/app"
	"github.com/pulseapp/pulse-engine/internal/compat"
	"github.com/pulseapp/pulse-engine/internal/db"
	svcErr "github.com/pulseapp/pulse-engine/internal/errors"
	"github.com/pulseapp/pulse-engine/internal/repository"
)

// Service serves the read-only hanky-code catalog and manages per-user
// assignments (the scorer's input).
type Service struct {
	appCtx  *app.AppContext
	tagRepo *repository.TagRepository
}

func NewService(appCtx *app.AppContext) *Service {
	return &Service{
		appCtx:  appCtx,
		tagRepo: repository.NewTagRepository(appCtx.DB),
	}
}

func (s *Service) ListCodes(ctx context.Context, category string) ([]db.HankyCode, error) {
	codes, err := s.tagRepo.ListCodes(ctx, category)
	if err != nil {
		return nil, svcErr.Store(err)
	}
	return codes, nil
}

func (s *Service) GetCode(ctx context.Context, id uint64) (*db.HankyCode, error) {
	code, err := s.tagRepo.GetCode(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, svcErr.NotFound("hanky code not found")
		}
		return nil, svcErr.Store(err)
	}
	return code, nil
}

func (s *Service) Categories(ctx context.Context) ([]repository.CategoryCount, error) {
	categories, err := s.tagRepo.Categories(ctx)
	if err != nil {
		return nil, svcErr.Store(err)
	}
	return categories, nil
}

func (s *Service) PopularCodes(ctx context.Context, limit int) ([]repository.PopularCode, error) {
	if limit <= 0 {
		limit = 10
	}
	codes, err := s.tagRepo.PopularCodes(ctx, limit)
	if err != nil {
		return nil, svcErr.Store(err)
	}
	return codes, nil
}

// UserCodes returns the caller's assignments flattened the same way the
// scorer sees them.
func (s *Service) UserCodes(ctx context.Context, userID uint64) ([]compat.TagAssignment, error) {
	assignments, err := s.tagRepo.AssignmentsForUser(ctx, userID)
	if err != nil {
		return nil, svcErr.Store(err)
	}
	return assignments, nil
}

// AssignCode adds a catalog entry to the user's profile, or replaces the
// intensity when already assigned. The position is copied from the catalog
// entry at assignment time.
func (s *Service) AssignCode(ctx context.Context, userID, codeID uint64, intensity int) error {
	if intensity < 1 || intensity > 10 {
		return svcErr.InvalidInput("intensity must be between 1 and 10")
	}

	code, err := s.tagRepo.GetCode(ctx, codeID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return svcErr.NotFound("hanky code not found")
		}
		return svcErr.Store(err)
	}

	if err := s.tagRepo.UpsertAssignment(ctx, userID, code.ID, code.Position, intensity); err != nil {
		return svcErr.Store(err)
	}
	return nil
}

// RemoveCode deletes a user's assignment.
func (s *Service) RemoveCode(ctx context.Context, userID, codeID uint64) error {
	affected, err := s.tagRepo.RemoveAssignment(ctx, userID, codeID)
	if err != nil {
		return svcErr.Store(err)
	}
	if affected == 0 {
		return svcErr.NotFound("code not assigned")
	}
	return nil
}
