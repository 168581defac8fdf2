package trust

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pulseapp/pulse-engine/internal/app"
	"github.com/pulseapp/pulse-engine/internal/db"
	svcErr "github.com/pulseapp/pulse-engine/internal/errors"
	"github.com/pulseapp/pulse-engine/internal/repository"
)

const (
	// one report per reporter/target/day
	reportSpamWindow = 24 * time.Hour
	// auto-moderation looks at the trailing week of reports
	moderationWindow = 7 * 24 * time.Hour

	restrictThreshold = 5
	flagThreshold     = 3

	restrictTTL = 7 * 24 * time.Hour
	flagTTL     = 3 * 24 * time.Hour
	blockTTL    = 365 * 24 * time.Hour
	incidentTTL = 24 * time.Hour
)

// ReportType values users may file. The "system" type is reserved for
// auto-moderation rows.
var validReportTypes = map[string]bool{
	"harassment":            true,
	"inappropriate_content": true,
	"fake_profile":          true,
	"safety_concern":        true,
	"other":                 true,
}

// Service is the trust engine: abuse-report aggregation, derived restriction
// flags, and mutual block relationships. Flags and blocks live in Redis so
// the discovery/match/message hot paths pay one existence check, not a
// relational query.
type Service struct {
	appCtx     *app.AppContext
	reportRepo *repository.ReportRepository
	matchRepo  *repository.MatchRepository
	userRepo   *repository.UserRepository
}

func NewService(appCtx *app.AppContext) *Service {
	return &Service{
		appCtx:     appCtx,
		reportRepo: repository.NewReportRepository(appCtx.DB),
		matchRepo:  repository.NewMatchRepository(appCtx.DB),
		userRepo:   repository.NewUserRepository(appCtx.DB),
	}
}

// Report files an abuse report and re-evaluates the target's moderation
// state. A reporter may file against the same target at most once per 24h.
func (s *Service) Report(ctx context.Context, reporterID, targetID uint64, reportType, description string) (uint64, error) {
	if targetID == 0 || reporterID == targetID {
		return 0, svcErr.InvalidInput("cannot report yourself")
	}
	if !validReportTypes[reportType] {
		return 0, svcErr.InvalidInput("invalid report type")
	}
	description = strings.TrimSpace(description)
	if description == "" {
		return 0, svcErr.InvalidInput("description is required")
	}

	if _, err := s.userRepo.GetUser(ctx, targetID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, svcErr.NotFound("reported user not found")
		}
		return 0, svcErr.Store(err)
	}

	recent, err := s.reportRepo.HasRecent(ctx, reporterID, targetID, time.Now().UTC().Add(-reportSpamWindow))
	if err != nil {
		return 0, svcErr.Store(err)
	}
	if recent {
		return 0, svcErr.RateLimited("you can only report the same user once per 24 hours")
	}

	report := &db.AbuseReport{
		ReporterID:     reporterID,
		ReportedUserID: targetID,
		ReportType:     reportType,
		Description:    description,
		Status:         db.ReportStatusPending,
	}
	if err := s.reportRepo.Create(ctx, report); err != nil {
		return 0, svcErr.Store(err)
	}

	// Re-derive the target's flags from the report log. A failure here must
	// not lose the report itself.
	if err := s.evaluateModeration(ctx, targetID); err != nil {
		s.appCtx.Logger.Error("auto-moderation failed", "target", targetID, "err", err)
	}

	return report.ID, nil
}

// evaluateModeration recomputes the target's restriction state from the
// trailing 7 days of non-dismissed reports. Flags are derived, not
// accumulated: they can always be rebuilt from the report rows alone.
func (s *Service) evaluateModeration(ctx context.Context, targetID uint64) error {
	count, err := s.reportRepo.CountRecentNonDismissed(ctx, targetID, time.Now().UTC().Add(-moderationWindow))
	if err != nil {
		return err
	}

	cache := s.appCtx.RedisCache
	switch {
	case count >= restrictThreshold:
		if err := cache.Set(ctx, cache.KeyForRestricted(targetID), "true", restrictTTL); err != nil {
			return err
		}
		audit := &db.AbuseReport{
			ReporterID:     db.SystemReporterID,
			ReportedUserID: targetID,
			ReportType:     "system",
			Description:    fmt.Sprintf("Auto-restricted due to multiple reports (%d)", count),
			Status:         db.ReportStatusInvestigating,
		}
		if err := s.reportRepo.Create(ctx, audit); err != nil {
			return err
		}
		s.appCtx.Logger.Warn("user auto-restricted", "user", targetID, "report_count", count)
	case count >= flagThreshold:
		if err := cache.Set(ctx, cache.KeyForFlagged(targetID), "true", flagTTL); err != nil {
			return err
		}
		s.appCtx.Logger.Info("user flagged", "user", targetID, "report_count", count)
	}
	return nil
}

// Block writes both directional block keys and forces any existing match
// between the pair to blocked.
func (s *Service) Block(ctx context.Context, userID, targetID uint64) error {
	if targetID == 0 || userID == targetID {
		return svcErr.InvalidInput("invalid user to block")
	}
	if _, err := s.userRepo.GetUser(ctx, targetID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return svcErr.NotFound("user not found")
		}
		return svcErr.Store(err)
	}

	cache := s.appCtx.RedisCache
	if err := cache.Set(ctx, cache.KeyForBlock(userID, targetID), "true", blockTTL); err != nil {
		return svcErr.Store(err)
	}
	if err := cache.Set(ctx, cache.KeyForBlock(targetID, userID), "true", blockTTL); err != nil {
		return svcErr.Store(err)
	}

	low, high := userID, targetID
	if low > high {
		low, high = high, low
	}
	if err := s.matchRepo.ForceBlockPair(ctx, low, high); err != nil {
		return svcErr.Store(err)
	}
	return nil
}

// Unblock removes both directional keys. The match itself stays blocked —
// pairs are never reopened automatically.
func (s *Service) Unblock(ctx context.Context, userID, targetID uint64) error {
	if targetID == 0 {
		return svcErr.InvalidInput("user id required")
	}
	cache := s.appCtx.RedisCache
	err := cache.Del(ctx,
		cache.KeyForBlock(userID, targetID),
		cache.KeyForBlock(targetID, userID),
	)
	if err != nil {
		return svcErr.Store(err)
	}
	return nil
}

// IsBlocked checks one directional key; Block/Unblock keep both directions
// in sync, so either suffices.
func (s *Service) IsBlocked(ctx context.Context, userID, targetID uint64) (bool, error) {
	blocked, err := s.appCtx.RedisCache.Exists(ctx, s.appCtx.RedisCache.KeyForBlock(userID, targetID))
	if err != nil {
		return false, svcErr.Store(err)
	}
	return blocked, nil
}

// ListBlocked enumerates the block namespace for one user by prefix scan.
func (s *Service) ListBlocked(ctx context.Context, userID uint64) ([]uint64, error) {
	prefix := s.appCtx.RedisCache.KeyForBlockPrefix(userID)
	keys, err := s.appCtx.RedisCache.ScanPrefix(ctx, prefix)
	if err != nil {
		return nil, svcErr.Store(err)
	}

	ids := make([]uint64, 0, len(keys))
	for _, key := range keys {
		id, err := strconv.ParseUint(strings.TrimPrefix(key, prefix), 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// IsRestricted reports whether the user is excluded from discovery entirely.
func (s *Service) IsRestricted(ctx context.Context, userID uint64) (bool, error) {
	ok, err := s.appCtx.RedisCache.Exists(ctx, s.appCtx.RedisCache.KeyForRestricted(userID))
	if err != nil {
		return false, svcErr.Store(err)
	}
	return ok, nil
}

// IsFlagged reports whether the user is down-ranked but still discoverable.
// Collapsing flagged into restricted would silently drop eligible
// candidates, so the two severities stay separate.
func (s *Service) IsFlagged(ctx context.Context, userID uint64) (bool, error) {
	ok, err := s.appCtx.RedisCache.Exists(ctx, s.appCtx.RedisCache.KeyForFlagged(userID))
	if err != nil {
		return false, svcErr.Store(err)
	}
	return ok, nil
}

// Incident is a panic-button record, kept for 24h.
type Incident struct {
	UserID    uint64 `json:"userId"`
	Location  string `json:"location"`
	Situation string `json:"situation"`
	Timestamp string `json:"timestamp"`
	Status    string `json:"status"`
}

// Panic records an emergency incident and returns its id.
func (s *Service) Panic(ctx context.Context, userID uint64, location, situation string) (string, error) {
	if location == "" {
		location = "Location not provided"
	}
	if situation == "" {
		situation = "Emergency situation"
	}

	incidentID := uuid.NewString()
	record := Incident{
		UserID:    userID,
		Location:  location,
		Situation: situation,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Status:    "active",
	}
	payload, err := json.Marshal(record)
	if err != nil {
		return "", svcErr.Store(err)
	}

	key := s.appCtx.RedisCache.KeyForIncident(incidentID)
	if err := s.appCtx.RedisCache.Set(ctx, key, payload, incidentTTL); err != nil {
		return "", svcErr.Store(err)
	}

	s.appCtx.Logger.Warn("panic incident recorded", "user", userID, "incident", incidentID)
	return incidentID, nil
}

// Stats returns the anonymous report aggregates.
func (s *Service) Stats(ctx context.Context) (*repository.ReportStats, error) {
	stats, err := s.reportRepo.Stats(ctx)
	if err != nil {
		return nil, svcErr.Store(err)
	}
	return stats, nil
}
