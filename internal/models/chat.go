package models

import "time"

// Chat roles as stored and as sent upstream.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage is one turn of a conversation, grouped by (user, session).
// Each insert stands alone: losing one message never rolls back its pair.
type ChatMessage struct {
	ID              string    `gorm:"primaryKey;size:36" json:"id"`
	UserID          string    `gorm:"index:idx_chat_user_session;size:64" json:"userId"`
	SessionID       string    `gorm:"index:idx_chat_user_session;size:36" json:"sessionId"`
	Role            string    `gorm:"size:16" json:"role"`
	Content         string    `gorm:"type:text" json:"content"`
	DetectedEmotion string    `gorm:"size:32" json:"detectedEmotion"`
	CreatedAt       time.Time `json:"createdAt"`
}

func (ChatMessage) TableName() string { return "chat_messages" }
