package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/pulseapp/pulse-engine/internal/db"
	"github.com/pulseapp/pulse-engine/internal/utils/pagination"
)

// MessageRepository provides data access for conversation messages.
type MessageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(database *gorm.DB) *MessageRepository {
	return &MessageRepository{db: database}
}

func (r *MessageRepository) Create(ctx context.Context, m *db.Message) error {
	return r.db.WithContext(ctx).Create(m).Error
}

func (r *MessageRepository) GetByID(ctx context.Context, id uint64) (*db.Message, error) {
	var m db.Message
	if err := r.db.WithContext(ctx).First(&m, id).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

// ListForMatch returns a conversation page newest-first with cursor-based
// pagination via paginationToken.
func (r *MessageRepository) ListForMatch(
	ctx context.Context,
	matchID uint64,
	paginationToken *string,
	limit int,
) ([]db.Message, *string, error) {
	cursor, err := pagination.Decode(getString(paginationToken))
	if err != nil {
		return nil, nil, err
	}

	query := r.db.WithContext(ctx).
		Where("match_id = ?", matchID).
		Order("created_at DESC, id DESC").
		Limit(limit + 1)

	// apply cursor
	if cursor.MessageID > 0 && cursor.CreatedUnix > 0 {
		ts := time.UnixMilli(cursor.CreatedUnix)
		query = query.Where(
			"(created_at < ? OR (created_at = ? AND id < ?))",
			ts, ts, cursor.MessageID,
		)
	}

	var messages []db.Message
	if err := query.Find(&messages).Error; err != nil {
		return nil, nil, err
	}

	// pagination: build next cursor if needed
	var nextToken *string
	if len(messages) > limit {
		last := messages[limit-1]
		token, _ := pagination.Encode(pagination.Cursor{
			MessageID:   last.ID,
			CreatedUnix: last.CreatedAt.UnixMilli(),
		})
		nextToken = &token
		messages = messages[:limit]
	}

	return messages, nextToken, nil
}

// MarkRead stamps every unread message in the match that the reader did not
// send. Returns the number of rows touched.
func (r *MessageRepository) MarkRead(ctx context.Context, matchID, readerID uint64) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&db.Message{}).
		Where("match_id = ? AND sender_id <> ? AND read_at IS NULL", matchID, readerID).
		Update("read_at", time.Now().UTC())
	return res.RowsAffected, res.Error
}

// SoftDelete replaces the content in place. The row survives for audit.
func (r *MessageRepository) SoftDelete(ctx context.Context, id uint64) error {
	return r.db.WithContext(ctx).
		Model(&db.Message{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"content":      "[Message deleted]",
			"message_type": "system",
		}).Error
}

// UnreadCount counts messages addressed to the reader that are still unread.
func (r *MessageRepository) UnreadCount(ctx context.Context, matchID, readerID uint64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&db.Message{}).
		Where("match_id = ? AND sender_id <> ? AND read_at IS NULL", matchID, readerID).
		Count(&count).Error
	return count, err
}

// UnreadCounts batches UnreadCount over several matches in one query.
func (r *MessageRepository) UnreadCounts(ctx context.Context, matchIDs []uint64, readerID uint64) (map[uint64]int64, error) {
	counts := make(map[uint64]int64, len(matchIDs))
	if len(matchIDs) == 0 {
		return counts, nil
	}
	var rows []struct {
		MatchID uint64
		Count   int64
	}
	err := r.db.WithContext(ctx).
		Model(&db.Message{}).
		Select("match_id, COUNT(*) as count").
		Where("match_id IN ? AND sender_id <> ? AND read_at IS NULL", matchIDs, readerID).
		Group("match_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		counts[row.MatchID] = row.Count
	}
	return counts, nil
}

// LastMessage returns the newest message of a match, or nil when the
// conversation is empty.
func (r *MessageRepository) LastMessage(ctx context.Context, matchID uint64) (*db.Message, error) {
	var m db.Message
	err := r.db.WithContext(ctx).
		Where("match_id = ?", matchID).
		Order("created_at DESC, id DESC").
		First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// getString safely dereferences a string pointer for pagination tokens.
func getString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
