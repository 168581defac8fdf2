package message

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/pulseapp/pulse-engine/internal/app"
	"github.com/pulseapp/pulse-engine/internal/compat"
	"github.com/pulseapp/pulse-engine/internal/db"
	svcErr "github.com/pulseapp/pulse-engine/internal/errors"
	"github.com/pulseapp/pulse-engine/internal/ratelimit"
	"github.com/pulseapp/pulse-engine/internal/repository"
)

const (
	maxContentLen = 1000
	// a sender may retract a message for this long after sending
	deleteWindow = 5 * time.Minute

	defaultPageSize = 50
)

// Service gates messaging to accepted matches and enforces the per
// conversation rate limit.
type Service struct {
	appCtx      *app.AppContext
	matchRepo   *repository.MatchRepository
	messageRepo *repository.MessageRepository
	userRepo    *repository.UserRepository
	limiter     *ratelimit.Limiter
}

func NewService(appCtx *app.AppContext) *Service {
	return &Service{
		appCtx:      appCtx,
		matchRepo:   repository.NewMatchRepository(appCtx.DB),
		messageRepo: repository.NewMessageRepository(appCtx.DB),
		userRepo:    repository.NewUserRepository(appCtx.DB),
		limiter:     ratelimit.New(appCtx.RedisCache),
	}
}

// Send stores a message in an accepted conversation. Blocked and declined
// matches never accept messages — TrustEngine.Block forces the match row to
// blocked, so the status check covers block state too.
func (s *Service) Send(ctx context.Context, matchID, senderID uint64, content string) (*db.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, svcErr.InvalidInput("message content is required")
	}
	if len(content) > maxContentLen {
		return nil, svcErr.InvalidInput("message too long (max 1000 characters)")
	}

	m, err := s.acceptedMatch(ctx, matchID, senderID)
	if err != nil {
		return nil, err
	}

	allowed, err := s.limiter.Allow(ctx, senderID, m.ID)
	if err != nil {
		return nil, svcErr.Store(err)
	}
	if !allowed {
		return nil, svcErr.RateLimited("rate limit exceeded, please wait before sending more messages")
	}

	msg := &db.Message{
		MatchID:     m.ID,
		SenderID:    senderID,
		Content:     content,
		MessageType: "text",
	}
	if err := s.messageRepo.Create(ctx, msg); err != nil {
		return nil, svcErr.Store(err)
	}
	if err := s.limiter.Record(ctx, senderID, m.ID); err != nil {
		// the message is stored; a lost counter tick only weakens the limit
		s.appCtx.Logger.Warn("rate limit record failed", "sender", senderID, "match", m.ID, "err", err)
	}
	return msg, nil
}

// History returns one page of the conversation newest-first and marks the
// partner's messages read as a side effect of viewing them.
func (s *Service) History(ctx context.Context, matchID, userID uint64, paginationToken *string, limit int) ([]db.Message, *string, error) {
	if limit <= 0 || limit > defaultPageSize {
		limit = defaultPageSize
	}

	if _, err := s.acceptedMatch(ctx, matchID, userID); err != nil {
		return nil, nil, err
	}

	messages, nextToken, err := s.messageRepo.ListForMatch(ctx, matchID, paginationToken, limit)
	if err != nil {
		return nil, nil, svcErr.Store(err)
	}

	if _, err := s.messageRepo.MarkRead(ctx, matchID, userID); err != nil {
		return nil, nil, svcErr.Store(err)
	}
	return messages, nextToken, nil
}

// MarkRead stamps all of the partner's unread messages in the match.
func (s *Service) MarkRead(ctx context.Context, matchID, userID uint64) (int64, error) {
	if _, err := s.participantMatch(ctx, matchID, userID); err != nil {
		return 0, err
	}
	n, err := s.messageRepo.MarkRead(ctx, matchID, userID)
	if err != nil {
		return 0, svcErr.Store(err)
	}
	return n, nil
}

// Delete soft-replaces a message's content. Only the sender may delete, and
// only within the mutability window.
func (s *Service) Delete(ctx context.Context, messageID, userID uint64) error {
	msg, err := s.messageRepo.GetByID(ctx, messageID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return svcErr.NotFound("message not found")
		}
		return svcErr.Store(err)
	}
	if msg.SenderID != userID {
		return svcErr.Unauthorized("not the sender of this message")
	}
	if time.Since(msg.CreatedAt) > deleteWindow {
		return svcErr.Forbidden("can only delete messages within 5 minutes of sending")
	}
	if err := s.messageRepo.SoftDelete(ctx, msg.ID); err != nil {
		return svcErr.Store(err)
	}
	return nil
}

// Conversation is one row of the inbox listing.
type Conversation struct {
	MatchID              uint64     `json:"matchId"`
	PartnerID            uint64     `json:"partnerId"`
	PartnerUsername      string     `json:"partnerUsername"`
	PartnerDisplayName   string     `json:"partnerDisplayName"`
	CompatibilityPercent int        `json:"compatibilityPercentage"`
	LastMessage          string     `json:"lastMessage,omitempty"`
	LastMessageAt        *time.Time `json:"lastMessageAt,omitempty"`
	LastSentByMe         bool       `json:"lastSentByMe"`
	UnreadCount          int64      `json:"unreadCount"`
	MatchedAt            time.Time  `json:"matchedAt"`
}

// Conversations lists the user's accepted matches with their latest message
// and unread counts, most recent traffic first.
func (s *Service) Conversations(ctx context.Context, userID uint64) ([]Conversation, error) {
	matches, err := s.matchRepo.ListForUser(ctx, userID, db.MatchStatusAccepted)
	if err != nil {
		return nil, svcErr.Store(err)
	}
	if len(matches) == 0 {
		return []Conversation{}, nil
	}

	matchIDs := make([]uint64, 0, len(matches))
	partnerIDs := make([]uint64, 0, len(matches))
	for _, m := range matches {
		matchIDs = append(matchIDs, m.ID)
		if m.UserLowID == userID {
			partnerIDs = append(partnerIDs, m.UserHighID)
		} else {
			partnerIDs = append(partnerIDs, m.UserLowID)
		}
	}

	users, err := s.userRepo.GetUsers(ctx, partnerIDs)
	if err != nil {
		return nil, svcErr.Store(err)
	}
	unread, err := s.messageRepo.UnreadCounts(ctx, matchIDs, userID)
	if err != nil {
		return nil, svcErr.Store(err)
	}

	conversations := make([]Conversation, 0, len(matches))
	for i, m := range matches {
		u := users[partnerIDs[i]]
		conv := Conversation{
			MatchID:              m.ID,
			PartnerID:            u.ID,
			PartnerUsername:      u.Username,
			PartnerDisplayName:   u.DisplayName,
			CompatibilityPercent: compat.Percent(m.CompatibilityScore),
			UnreadCount:          unread[m.ID],
			MatchedAt:            m.CreatedAt,
		}
		if last, err := s.messageRepo.LastMessage(ctx, m.ID); err != nil {
			return nil, svcErr.Store(err)
		} else if last != nil {
			conv.LastMessage = last.Content
			t := last.CreatedAt
			conv.LastMessageAt = &t
			conv.LastSentByMe = last.SenderID == userID
		}
		conversations = append(conversations, conv)
	}

	sort.SliceStable(conversations, func(i, j int) bool {
		ti, tj := conversations[i].LastMessageAt, conversations[j].LastMessageAt
		switch {
		case ti == nil && tj == nil:
			return conversations[i].MatchedAt.After(conversations[j].MatchedAt)
		case ti == nil:
			return false
		case tj == nil:
			return true
		default:
			return ti.After(*tj)
		}
	})
	return conversations, nil
}

// acceptedMatch authorizes the user and requires accepted status.
func (s *Service) acceptedMatch(ctx context.Context, matchID, userID uint64) (*db.Match, error) {
	m, err := s.participantMatch(ctx, matchID, userID)
	if err != nil {
		return nil, err
	}
	if m.Status != db.MatchStatusAccepted {
		return nil, svcErr.Forbidden("can only message accepted matches")
	}
	return m, nil
}

func (s *Service) participantMatch(ctx context.Context, matchID, userID uint64) (*db.Match, error) {
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
