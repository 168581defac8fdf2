package discovery

import (
	"context"
	"errors"
	"sort"
	"time"

	"gorm.io/gorm"

	"github.com/pulseapp/pulse-engine/internal/app"
	"github.com/pulseapp/pulse-engine/internal/compat"
	svcErr "github.com/pulseapp/pulse-engine/internal/errors"
	"github.com/pulseapp/pulse-engine/internal/repository"
	"github.com/pulseapp/pulse-engine/internal/service/trust"
)

const (
	defaultLimit = 20
	defaultMin   = 18
	defaultMax   = 100

	// Below this two users share essentially nothing.
	noiseFloor = 0.1
)

// Service builds the ranked candidate pool for a user.
type Service struct {
	appCtx   *app.AppContext
	userRepo *repository.UserRepository
	tagRepo  *repository.TagRepository
	trust    *trust.Service
}

func NewService(appCtx *app.AppContext, trustSvc *trust.Service) *Service {
	return &Service{
		appCtx:   appCtx,
		userRepo: repository.NewUserRepository(appCtx.DB),
		tagRepo:  repository.NewTagRepository(appCtx.DB),
		trust:    trustSvc,
	}
}

// Result is one ranked discovery candidate.
type Result struct {
	UserID               uint64    `json:"id"`
	Username             string    `json:"username"`
	DisplayName          string    `json:"displayName"`
	Age                  int       `json:"age"`
	Pronouns             string    `json:"pronouns"`
	Bio                  string    `json:"bio"`
	City                 string    `json:"city,omitempty"`
	State                string    `json:"state,omitempty"`
	CompatibilityPercent int       `json:"compatibilityPercentage"`
	SharedCodeCount      int       `json:"matchedCodesCount"`
	LastActive           time.Time `json:"lastActive"`

	score   float64
	flagged bool
}

// Discover returns up to limit candidates for the user, scored from the
// requester's perspective and ranked best-first. An empty pool is a normal
// outcome, never an error.
//
// The SQL filter handles self/visibility/age/existing-pair/tagless
// exclusions; this layer applies the KV-backed ones (blocks, restriction
// flags), scores the survivors, drops the noise floor, and ranks. Flagged
// users stay in the pool but lose ties; restricted users are gone entirely.
func (s *Service) Discover(ctx context.Context, userID uint64, minAge, maxAge, limit int) ([]Result, error) {
	if limit <= 0 {
		limit = defaultLimit
	}
	if minAge < defaultMin {
		minAge = defaultMin
	}
	if maxAge <= 0 {
		maxAge = defaultMax
	}
	if minAge > maxAge {
		return nil, svcErr.InvalidInput("minAge must not exceed maxAge")
	}

	requester, err := s.userRepo.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, svcErr.NotFound("user not found")
		}
		return nil, svcErr.Store(err)
	}

	myTags, err := s.tagRepo.AssignmentsForUser(ctx, userID)
	if err != nil {
		return nil, svcErr.Store(err)
	}
	if len(myTags) == 0 {
		// nothing to score against; every candidate would sit below the floor
		return []Result{}, nil
	}

	candidates, err := s.userRepo.DiscoveryCandidates(ctx, requester, minAge, maxAge, limit)
	if err != nil {
		return nil, svcErr.Store(err)
	}

	results := make([]Result, 0, len(candidates))
	for _, c := range candidates {
		restricted, err := s.trust.IsRestricted(ctx, c.ID)
		if err != nil {
			return nil, err
		}
		if restricted {
			continue
		}
		blocked, err := s.trust.IsBlocked(ctx, userID, c.ID)
		if err != nil {
			return nil, err
		}
		if blocked {
			continue
		}

		theirTags, err := s.tagRepo.AssignmentsForUser(ctx, c.ID)
		if err != nil {
			return nil, svcErr.Store(err)
		}
		score, shared := compat.Score(myTags, theirTags)
		if score <= noiseFloor {
			continue
		}

		flagged, err := s.trust.IsFlagged(ctx, c.ID)
		if err != nil {
			return nil, err
		}

		results = append(results, Result{
			UserID:               c.ID,
			Username:             c.Username,
			DisplayName:          c.DisplayName,
			Age:                  c.Age,
			Pronouns:             c.Pronouns,
			Bio:                  c.Bio,
			City:                 c.LocationCity,
			State:                c.LocationState,
			CompatibilityPercent: compat.Percent(score),
			SharedCodeCount:      len(shared),
			LastActive:           c.LastActive,
			score:                score,
			flagged:              flagged,
		})
	}

	// score desc; ties: unflagged first, then most recently active
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].score != results[j].score {
			return results[i].score > results[j].score
		}
		if results[i].flagged != results[j].flagged {
			return !results[i].flagged
		}
		return results[i].LastActive.After(results[j].LastActive)
	})

	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}
