package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"pulse/internal/models"
	"pulse/pkg/llm"
)

const chatSystemPrompt = "You are Pulse, an empathetic emotional health companion. " +
	"Respond kindly, help users manage their feelings, and suggest calming music or " +
	"movies when appropriate. Keep responses short, warm, and natural."

// chatContextWindow is how many stored turns feed the upstream prompt.
const chatContextWindow = 6

type chatRequest struct {
	Content   string `json:"content"`
	SessionID string `json:"sessionId"`
}

type chatResponse struct {
	AssistantMessage string `json:"assistantMessage"`
	SessionID        string `json:"sessionId"`
	DetectedEmotion  string `json:"detectedEmotion"`
}

// HandleChat generates a conversational reply. Unlike mood classification
// there is no degraded substitute for the reply provider, so its failure is a
// server error.
func (h *Handlers) HandleChat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	content := strings.TrimSpace(req.Content)
	if content == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "empty message"})
		return
	}
	if h.chatLLM == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "chat provider not configured"})
		return
	}

	ident := CurrentIdentity(c)
	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	ctx := context.WithoutCancel(c.Request.Context())
	res := h.classifier.Classify(ctx, content)

	userMsg := &models.ChatMessage{
		UserID:          ident.ID,
		SessionID:       sessionID,
		Role:            models.RoleUser,
		Content:         content,
		DetectedEmotion: res.Label,
	}
	if err := h.chats.Save(ctx, userMsg); err != nil {
		h.logger.WithError(err).Warn("could not save user message")
	}

	history, err := h.chats.Recent(ctx, ident.ID, sessionID, chatContextWindow)
	if err != nil {
		h.logger.WithError(err).Warn("could not fetch chat history")
		history = nil
	}

	msgs := []llm.Message{{Role: llm.RoleSystem, Content: chatSystemPrompt}}
	for _, m := range history {
		role := llm.RoleUser
		if m.Role == models.RoleAssistant {
			role = llm.RoleAssistant
		}
		msgs = append(msgs, llm.Message{Role: role, Content: m.Content})
	}
	// If the save or read above degraded, make sure the current input still
	// reaches the model.
	if len(history) == 0 || history[len(history)-1].Content != content {
		msgs = append(msgs, llm.Message{Role: llm.RoleUser, Content: content})
	}

	cctx, cancel := context.WithTimeout(ctx, 45*time.Second)
	defer cancel()
	reply, err := h.chatLLM.Complete(cctx, h.cfg.ChatModel, msgs, llm.Options{Temperature: 0.8, MaxTokens: 300})
	if err != nil {
		h.logger.WithError(err).Error("chat reply generation failed")
		c.JSON(http.StatusBadGateway, gin.H{"error": "chat provider request failed"})
		return
	}
	reply = strings.TrimSpace(reply)

	assistantMsg := &models.ChatMessage{
		UserID:    ident.ID,
		SessionID: sessionID,
		Role:      models.RoleAssistant,
		Content:   reply,
	}
	if err := h.chats.Save(ctx, assistantMsg); err != nil {
		h.logger.WithError(err).Warn("could not save assistant reply")
	}

	c.JSON(http.StatusOK, chatResponse{
		AssistantMessage: reply,
		SessionID:        sessionID,
		DetectedEmotion:  res.Label,
	})
}
