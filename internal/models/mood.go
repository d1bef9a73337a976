package models

import (
	"encoding/json"
	"time"
)

// The closed emotion label set. Classification never produces anything else.
const (
	EmotionHappy   = "happy"
	EmotionSad     = "sad"
	EmotionAnxious = "anxious"
	EmotionAngry   = "angry"
	EmotionCalm    = "calm"
	EmotionTired   = "tired"
	EmotionNeutral = "neutral"
)

var emotionSet = map[string]struct{}{
	EmotionHappy: {}, EmotionSad: {}, EmotionAnxious: {}, EmotionAngry: {},
	EmotionCalm: {}, EmotionTired: {}, EmotionNeutral: {},
}

// ValidEmotion reports whether label belongs to the closed set.
func ValidEmotion(label string) bool {
	_, ok := emotionSet[label]
	return ok
}

// Source kinds for a snapshot.
const (
	SourceText  = "text"
	SourceVoice = "voice"
)

// MoodSnapshot is one persisted record of a user's classified emotional input.
// DetectedEmotion and Confidence are set together or not at all. RawText may
// be filled in later, exactly once, by the transcription callback.
type MoodSnapshot struct {
	ID              string    `gorm:"primaryKey;size:36" json:"id"`
	UserID          string    `gorm:"index;size:64" json:"userId"`
	Source          string    `gorm:"size:16" json:"source"`
	RawText         string    `gorm:"type:text" json:"rawText"`
	AudioKey        string    `gorm:"size:512" json:"audioKey"`
	DetectedEmotion string    `gorm:"size:32" json:"detectedEmotion"`
	Confidence      *float64  `json:"confidence"`
	Metadata        string    `gorm:"type:text" json:"-"` // JSON key/value bag
	CreatedAt       time.Time `json:"createdAt"`
}

func (MoodSnapshot) TableName() string { return "mood_snapshots" }

// Meta decodes the metadata bag. A broken or empty bag decodes to an empty map.
func (s *MoodSnapshot) Meta() map[string]interface{} {
	out := map[string]interface{}{}
	if s.Metadata != "" {
		_ = json.Unmarshal([]byte(s.Metadata), &out)
	}
	return out
}

// MergeMeta merges kv into the metadata bag, keeping existing keys that are
// not overwritten.
func (s *MoodSnapshot) MergeMeta(kv map[string]interface{}) {
	meta := s.Meta()
	for k, v := range kv {
		meta[k] = v
	}
	raw, err := json.Marshal(meta)
	if err != nil {
		return
	}
	s.Metadata = string(raw)
}

// JournalEntry is the secondary, more general write shape used when the
// primary table is unavailable (e.g. mid schema migration). Payload holds the
// full snapshot as JSON.
type JournalEntry struct {
	ID        string    `gorm:"primaryKey;size:36"`
	UserID    string    `gorm:"index;size:64"`
	Kind      string    `gorm:"size:32"`
	Payload   string    `gorm:"type:text"`
	CreatedAt time.Time
}

func (JournalEntry) TableName() string { return "journal_entries" }

// KindMoodSnapshot tags journal entries that encode a MoodSnapshot.
const KindMoodSnapshot = "mood_snapshot"
