package match

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/pulseapp/pulse-engine/internal/app"
	"github.com/pulseapp/pulse-engine/internal/compat"
	"github.com/pulseapp/pulse-engine/internal/db"
	svcErr "github.com/pulseapp/pulse-engine/internal/errors"
	"github.com/pulseapp/pulse-engine/internal/repository"
	"github.com/pulseapp/pulse-engine/internal/service/trust"
)

// Service owns the match state machine: propose, accept, decline, and the
// listing/stat reads. Blocking transitions come in through the trust engine.
type Service struct {
	appCtx      *app.AppContext
	matchRepo   *repository.MatchRepository
	userRepo    *repository.UserRepository
	tagRepo     *repository.TagRepository
	messageRepo *repository.MessageRepository
	trust       *trust.Service
}

func NewService(appCtx *app.AppContext, trustSvc *trust.Service) *Service {
	return &Service{
		appCtx:      appCtx,
		matchRepo:   repository.NewMatchRepository(appCtx.DB),
		userRepo:    repository.NewUserRepository(appCtx.DB),
		tagRepo:     repository.NewTagRepository(appCtx.DB),
		messageRepo: repository.NewMessageRepository(appCtx.DB),
		trust:       trustSvc,
	}
}

// NormalizePair maps an unordered user pair onto its canonical storage
// order. Done once here at the boundary; everything below assumes low<high.
func NormalizePair(a, b uint64) (low, high uint64) {
	if a < b {
		return a, b
	}
	return b, a
}

// ProposeResult is what a successful proposal returns to the caller.
type ProposeResult struct {
	MatchID              uint64   `json:"matchId"`
	CompatibilityPercent int      `json:"compatibilityPercentage"`
	Status               string   `json:"status"`
	SharedCodeIDs        []uint64 `json:"sharedCodeIds"`
}

// Propose creates the pending match for (userID, targetID). The score is
// computed from the proposer's perspective (see compat.Score on asymmetry).
//
// At most one match row exists per unordered pair. A duplicate — whether
// found by the pre-check or by losing the insert race on uk_match_pair —
// comes back as Conflict carrying the existing row's status.
func (s *Service) Propose(ctx context.Context, userID, targetID uint64) (*ProposeResult, error) {
	if targetID == 0 || targetID == userID {
		return nil, svcErr.InvalidInput("invalid target user")
	}
	if _, err := s.userRepo.GetUser(ctx, targetID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, svcErr.NotFound("target user not found")
		}
		return nil, svcErr.Store(err)
	}

	blocked, err := s.trust.IsBlocked(ctx, userID, targetID)
	if err != nil {
		return nil, err
	}
	if blocked {
		return nil, svcErr.Forbidden("cannot match with this user")
	}

	low, high := NormalizePair(userID, targetID)

	if existing, err := s.matchRepo.GetByPair(ctx, low, high); err == nil {
		return nil, conflictWith(existing)
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, svcErr.Store(err)
	}

	myTags, err := s.tagRepo.AssignmentsForUser(ctx, userID)
	if err != nil {
		return nil, svcErr.Store(err)
	}
	theirTags, err := s.tagRepo.AssignmentsForUser(ctx, targetID)
	if err != nil {
		return nil, svcErr.Store(err)
	}
	score, shared := compat.Score(myTags, theirTags)

	sharedJSON, _ := json.Marshal(shared)
	m := &db.Match{
		UserLowID:          low,
		UserHighID:         high,
		CompatibilityScore: score,
		SharedCodeIDs:      string(sharedJSON),
		Status:             db.MatchStatusPending,
	}
	if err := s.matchRepo.Create(ctx, m); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// lost the race to a concurrent proposal for the same pair
			if existing, gerr := s.matchRepo.GetByPair(ctx, low, high); gerr == nil {
				return nil, conflictWith(existing)
			}
			return nil, svcErr.Conflict("match already exists", nil)
		}
		return nil, svcErr.Store(err)
	}

	s.appCtx.Logger.Info("match proposed",
		"match", m.ID, "proposer", userID, "target", targetID, "score", score)

	return &ProposeResult{
		MatchID:              m.ID,
		CompatibilityPercent: compat.Percent(score),
		Status:               m.Status,
		SharedCodeIDs:        shared,
	}, nil
}

func conflictWith(existing *db.Match) error {
	return svcErr.Conflict("match already exists", map[string]any{
		"matchId": existing.ID,
		"status":  existing.Status,
	})
}

// Accept transitions pending → accepted. Idempotent: accepting an already
// accepted match returns it unchanged.
func (s *Service) Accept(ctx context.Context, matchID, userID uint64) (*db.Match, error) {
	m, err := s.authorizedMatch(ctx, matchID, userID)
	if err != nil {
		return nil, err
	}

	switch m.Status {
	case db.MatchStatusAccepted:
		return m, nil
	case db.MatchStatusPending:
		if err := s.matchRepo.UpdateStatus(ctx, m.ID, db.MatchStatusAccepted); err != nil {
			return nil, svcErr.Store(err)
		}
		m.Status = db.MatchStatusAccepted
		m.UpdatedAt = time.Now().UTC()
		return m, nil
	default:
		return nil, svcErr.Forbidden("cannot accept a " + m.Status + " match")
	}
}

// Decline moves any non-blocked state to declined.
func (s *Service) Decline(ctx context.Context, matchID, userID uint64) (*db.Match, error) {
	m, err := s.authorizedMatch(ctx, matchID, userID)
	if err != nil {
		return nil, err
	}

	if m.Status == db.MatchStatusBlocked {
		return nil, svcErr.Forbidden("cannot decline a blocked match")
	}
	if m.Status != db.MatchStatusDeclined {
		if err := s.matchRepo.UpdateStatus(ctx, m.ID, db.MatchStatusDeclined); err != nil {
			return nil, svcErr.Store(err)
		}
		m.Status = db.MatchStatusDeclined
		m.UpdatedAt = time.Now().UTC()
	}
	return m, nil
}

// authorizedMatch loads a match and verifies the acting user is one of its
// participants.
func (s *Service) authorizedMatch(ctx context.Context, matchID, userID uint64) (*db.Match, error) {
	m, err := s.matchRepo.GetByID(ctx, matchID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, svcErr.NotFound("match not found")
		}
		return nil, svcErr.Store(err)
	}
	if m.UserLowID != userID && m.UserHighID != userID {
		return nil, svcErr.Unauthorized("not a participant of this match")
	}
	return m, nil
}

// Partner is the other participant as shown in match listings.
type Partner struct {
	ID          uint64 `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"displayName"`
	Age         int    `json:"age"`
	Pronouns    string `json:"pronouns"`
	City        string `json:"city,omitempty"`
	State       string `json:"state,omitempty"`
}

// Summary is one row of a user's match list.
type Summary struct {
	MatchID              uint64    `json:"matchId"`
	Status               string    `json:"status"`
	CompatibilityPercent int       `json:"compatibilityPercentage"`
	SharedCodeIDs        []uint64  `json:"sharedCodeIds"`
	Partner              Partner   `json:"partner"`
	UnreadCount          int64     `json:"unreadCount"`
	CreatedAt            time.Time `json:"createdAt"`
}

// List returns the user's matches with partner info and unread counts,
// optionally filtered by status ("all" or "" mean no filter).
func (s *Service) List(ctx context.Context, userID uint64, status string) ([]Summary, error) {
	if status != "" && status != "all" {
		switch status {
		case db.MatchStatusPending, db.MatchStatusAccepted, db.MatchStatusDeclined, db.MatchStatusBlocked:
		default:
			return nil, svcErr.InvalidInput("invalid status filter")
		}
	}

	matches, err := s.matchRepo.ListForUser(ctx, userID, status)
	if err != nil {
		return nil, svcErr.Store(err)
	}
	if len(matches) == 0 {
		return []Summary{}, nil
	}

	matchIDs := make([]uint64, 0, len(matches))
	partnerIDs := make([]uint64, 0, len(matches))
	for _, m := range matches {
		matchIDs = append(matchIDs, m.ID)
		partnerIDs = append(partnerIDs, partnerOf(&m, userID))
	}

	users, err := s.userRepo.GetUsers(ctx, partnerIDs)
	if err != nil {
		return nil, svcErr.Store(err)
	}
	unread, err := s.messageRepo.UnreadCounts(ctx, matchIDs, userID)
	if err != nil {
		return nil, svcErr.Store(err)
	}

	summaries := make([]Summary, 0, len(matches))
	for _, m := range matches {
		partnerID := partnerOf(&m, userID)
		u := users[partnerID]

		var shared []uint64
		_ = json.Unmarshal([]byte(m.SharedCodeIDs), &shared)

		summaries = append(summaries, Summary{
			MatchID:              m.ID,
			Status:               m.Status,
			CompatibilityPercent: compat.Percent(m.CompatibilityScore),
			SharedCodeIDs:        shared,
			Partner: Partner{
				ID:          u.ID,
				Username:    u.Username,
				DisplayName: u.DisplayName,
				Age:         u.Age,
				Pronouns:    u.Pronouns,
				City:        u.LocationCity,
				State:       u.LocationState,
			},
			UnreadCount: unread[m.ID],
			CreatedAt:   m.CreatedAt,
		})
	}
	return summaries, nil
}

// Stats returns the user's aggregate match history.
func (s *Service) Stats(ctx context.Context, userID uint64) (*repository.MatchStats, error) {
	stats, err := s.matchRepo.StatsForUser(ctx, userID)
	if err != nil {
		return nil, svcErr.Store(err)
	}
	return stats, nil
}

func partnerOf(m *db.Match, userID uint64) uint64 {
	if m.UserLowID == userID {
		return m.UserHighID
	}
	return m.UserLowID
}
