package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"pulse/internal/models"
	"pulse/pkg/errors"
)

// ChatStore persists conversation turns. Saves are independent inserts; the
// caller treats failures as best-effort.
type ChatStore struct {
	db     *gorm.DB
	logger *logrus.Logger
}

func NewChatStore(db *gorm.DB, logger *logrus.Logger) *ChatStore {
	return &ChatStore{db: db, logger: logger}
}

// Save inserts one message with a fresh id.
func (s *ChatStore) Save(ctx context.Context, msg *models.ChatMessage) error {
	msg.ID = uuid.NewString()
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	return errors.Wrap(errors.KindDegraded, "store.SaveChat", s.db.WithContext(ctx).Create(msg).Error)
}

// Recent returns the last limit messages of a (user, session) conversation,
// oldest first, ready to feed a prompt.
func (s *ChatStore) Recent(ctx context.Context, userID, sessionID string, limit int) ([]models.ChatMessage, error) {
	var msgs []models.ChatMessage
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND session_id = ?", userID, sessionID).
		Order("created_at DESC").
		Limit(limit).
		Find(&msgs).Error
	if err != nil {
		return nil, errors.Wrap(errors.KindDegraded, "store.RecentChat", err)
	}

	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}
