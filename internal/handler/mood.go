package handlers

import (
	"context"
	"encoding/base64"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"pulse/internal/models"
	"pulse/internal/queue"
	"pulse/internal/recommend"
	"pulse/internal/store"
	"pulse/pkg/metrics"
)

type moodRequest struct {
	Text             string `json:"text"`
	AudioRef         string `json:"audioRef"`
	AudioData        string `json:"audioData"` // base64, stored via the blob collaborator
	AudioContentType string `json:"audioContentType"`
	SessionID        string `json:"sessionId"`
	Source           string `json:"source"`
}

type moodResponse struct {
	DetectedEmotion  string                    `json:"detectedEmotion"`
	Confidence       float64                   `json:"confidence"`
	AssistantMessage string                    `json:"assistantMessage"`
	Recommendations  recommend.Recommendations `json:"recommendations"`
	Saved            bool                      `json:"saved"`
	SnapshotID       string                    `json:"snapshotId,omitempty"`
}

// empathyLines is the deterministic supportive message per emotion.
var empathyLines = map[string]string{
	models.EmotionHappy:   "That's wonderful to hear. Hold on to what made today good.",
	models.EmotionCalm:    "Calm moments restore balance. Enjoy the quiet.",
	models.EmotionSad:     "I'm sorry you're feeling down. It's okay to take a moment for yourself.",
	models.EmotionAnxious: "Feeling anxious is natural sometimes. Try a slow, deep breath.",
	models.EmotionAngry:   "Anger can be heavy. A short walk or a pause might ease it.",
	models.EmotionTired:   "You sound worn out. Rest counts as progress too.",
	models.EmotionNeutral: "Thanks for sharing. Noticing your emotions is how you grow.",
}

func empathyMessage(emotion string) string {
	if line, ok := empathyLines[emotion]; ok {
		return line
	}
	return "I'm here for you. Thank you for sharing how you feel."
}

// HandleMood is the snapshot submission pipeline: validate, stash audio,
// classify, persist, fan out recommendations, dispatch transcription.
func (h *Handlers) HandleMood(c *gin.Context) {
	var req moodRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	text := strings.TrimSpace(req.Text)
	if text == "" && req.AudioRef == "" && req.AudioData == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "at least one of text or audio is required"})
		return
	}

	ident := CurrentIdentity(c)
	audioRef := req.AudioRef
	if req.AudioData != "" {
		raw, err := base64.StdEncoding.DecodeString(req.AudioData)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "audioData must be valid base64"})
			return
		}
		if key, ok := h.storeAudio(c.Request.Context(), raw, req.AudioContentType); ok {
			audioRef = key
		} else if text == "" && audioRef == "" {
			// The upload degraded and there is nothing else to keep. A
			// snapshot needs text or an audio reference, so answer degraded
			// instead of persisting an empty record.
			res := h.classifier.Classify(c.Request.Context(), "")
			c.JSON(http.StatusOK, moodResponse{
				DetectedEmotion:  res.Label,
				Confidence:       res.Confidence,
				AssistantMessage: empathyMessage(res.Label),
				Recommendations:  recommend.Recommendations{Tracks: []recommend.Track{}, Movies: []recommend.Movie{}},
				Saved:            false,
			})
			return
		}
	}

	source := req.Source
	if source == "" {
		source = models.SourceText
		if audioRef != "" {
			source = models.SourceVoice
		}
	}

	// Once dispatched, the fan-out runs to its own timeouts even if the
	// client disconnects.
	ctx := context.WithoutCancel(c.Request.Context())

	res := h.classifier.Classify(ctx, text)

	recs := recommend.Recommendations{Tracks: []recommend.Track{}, Movies: []recommend.Movie{}}
	var wg sync.WaitGroup
	if text != "" {
		// Independent of persistence; they share no mutable state.
		wg.Add(1)
		go func() {
			defer wg.Done()
			recs = h.recommender.ForEmotion(ctx, res.Label)
		}()
	}

	confidence := res.Confidence
	snap := &models.MoodSnapshot{
		UserID:          ident.ID,
		Source:          source,
		RawText:         text,
		AudioKey:        audioRef,
		DetectedEmotion: res.Label,
		Confidence:      &confidence,
	}
	if req.SessionID != "" {
		snap.MergeMeta(map[string]interface{}{"sessionId": req.SessionID})
	}

	snapshotID, err := h.snapshots.Persist(ctx, snap)
	saved := err == nil
	if err != nil {
		h.logger.WithError(err).Error("snapshot persistence degraded")
	}

	wg.Wait()

	// Dispatch after persistence so the job always references a stored id.
	if audioRef != "" && saved {
		h.dispatchTranscription(ctx, snapshotID, audioRef)
	}

	metrics.Snapshots.WithLabelValues(res.Label, source).Inc()

	c.JSON(http.StatusOK, moodResponse{
		DetectedEmotion:  res.Label,
		Confidence:       res.Confidence,
		AssistantMessage: empathyMessage(res.Label),
		Recommendations:  recs,
		Saved:            saved,
		SnapshotID:       snapshotID,
	})
}

// storeAudio writes inline audio to the blob collaborator and returns the
// generated key. Failures degrade; the caller decides whether anything is
// left worth persisting.
func (h *Handlers) storeAudio(ctx context.Context, raw []byte, contentType string) (string, bool) {
	if h.blobs == nil {
		h.logger.Warn("audio upload received but no blob store configured")
		return "", false
	}
	if contentType == "" {
		contentType = "audio/wav"
	}
	key := "audio/" + uuid.NewString()
	uctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := h.blobs.Write(uctx, key, strings.NewReader(string(raw)), int64(len(raw)), contentType); err != nil {
		h.logger.WithError(err).Warn("audio blob upload failed")
		return "", false
	}
	return key, true
}

// dispatchTranscription publishes the job descriptor. At-most-once from this
// side: a failed publish is logged and the snapshot stays unenriched.
func (h *Handlers) dispatchTranscription(ctx context.Context, snapshotID, audioRef string) {
	if h.publisher == nil {
		h.logger.Warn("no job publisher configured, snapshot left untranscribed")
		return
	}
	job := queue.TranscriptionJob{SnapshotID: snapshotID, AudioRef: audioRef}
	if err := h.publisher.Publish(ctx, job); err != nil {
		h.logger.WithError(err).WithField("snapshot", snapshotID).Error("transcription job publish failed")
		return
	}
	metrics.JobsPublished.Inc()
}

type moodHistoryItem struct {
	ID              string   `json:"id"`
	DetectedEmotion string   `json:"detectedEmotion"`
	Confidence      *float64 `json:"confidence"`
	RawText         string   `json:"rawText"`
	CreatedAt       string   `json:"createdAt"`
}

// HandleMoodHistory lists the caller's snapshots, newest first.
func (h *Handlers) HandleMoodHistory(c *gin.Context) {
	limit := 20
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}
	if limit > 100 {
		limit = 100
	}

	ident := CurrentIdentity(c)
	snaps, err := h.snapshots.History(c.Request.Context(), ident.ID, limit)
	if err != nil {
		h.logger.WithError(err).Error("mood history read failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch mood history"})
		return
	}

	items := make([]moodHistoryItem, 0, len(snaps))
	for _, s := range snaps {
		items = append(items, moodHistoryItem{
			ID:              s.ID,
			DetectedEmotion: s.DetectedEmotion,
			Confidence:      s.Confidence,
			RawText:         s.RawText,
			CreatedAt:       s.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	c.JSON(http.StatusOK, items)
}

type transcriptionCallback struct {
	TranscribedText string `json:"transcribedText"`
	Engine          string `json:"engine"`
}

// HandleTranscriptionCallback reconciles a worker result into the snapshot.
// Text supplied at creation always wins over a later transcription; the
// classification is recomputed unconditionally so it reflects the most
// complete text available. Safe to apply more than once.
func (h *Handlers) HandleTranscriptionCallback(c *gin.Context) {
	var req transcriptionCallback
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.TranscribedText) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "transcribedText required"})
		return
	}

	id := c.Param("id")
	snap, fromJournal, err := h.snapshots.Get(c.Request.Context(), id)
	if err != nil {
		if err == store.ErrNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "snapshot not found"})
			return
		}
		h.logger.WithError(err).WithField("snapshot", id).Error("snapshot load failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load snapshot"})
		return
	}

	if strings.TrimSpace(snap.RawText) == "" {
		snap.RawText = req.TranscribedText
	}
	meta := map[string]interface{}{"transcribed": true}
	if req.Engine != "" {
		meta["engine"] = req.Engine
	}
	snap.MergeMeta(meta)

	res := h.classifier.Classify(c.Request.Context(), snap.RawText)
	confidence := res.Confidence
	snap.DetectedEmotion = res.Label
	snap.Confidence = &confidence

	if err := h.snapshots.Update(c.Request.Context(), snap, fromJournal); err != nil {
		h.logger.WithError(err).WithField("snapshot", id).Error("snapshot update failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update snapshot"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok", "id": snap.ID, "emotion": snap.DetectedEmotion})
}
