package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"pulse/internal/models"
	"pulse/pkg/errors"
)

// ErrNotFound is returned when neither table holds the snapshot id.
var ErrNotFound = errors.New(errors.KindCaller, "store", "snapshot not found")

// SnapshotStore persists mood snapshots. Writes target the primary
// mood_snapshots table and fall back to the journal_entries shape when the
// primary is unavailable; each write generates a fresh id, so there is no
// upsert and no duplicate-key path.
type SnapshotStore struct {
	db     *gorm.DB
	logger *logrus.Logger
}

func NewSnapshotStore(db *gorm.DB, logger *logrus.Logger) *SnapshotStore {
	return &SnapshotStore{db: db, logger: logger}
}

// Persist writes the snapshot and returns its generated id. A primary-table
// failure degrades to the journal shape; only both paths failing is an error,
// and even that must not fail the surrounding request.
func (s *SnapshotStore) Persist(ctx context.Context, snap *models.MoodSnapshot) (string, error) {
	snap.ID = uuid.NewString()
	if snap.CreatedAt.IsZero() {
		snap.CreatedAt = time.Now().UTC()
	}

	if err := s.db.WithContext(ctx).Create(snap).Error; err != nil {
		s.logger.WithError(err).Warn("primary snapshot write failed, trying journal fallback")
	} else {
		return snap.ID, nil
	}

	payload, err := json.Marshal(snap)
	if err != nil {
		return "", errors.Wrap(errors.KindInternal, "store.Persist", err)
	}
	entry := models.JournalEntry{
		ID:        snap.ID,
		UserID:    snap.UserID,
		Kind:      models.KindMoodSnapshot,
		Payload:   string(payload),
		CreatedAt: snap.CreatedAt,
	}
	if err := s.db.WithContext(ctx).Create(&entry).Error; err != nil {
		return "", errors.Wrap(errors.KindDegraded, "store.Persist", err)
	}
	return entry.ID, nil
}

// History returns the user's snapshots, newest first, up to limit. If the
// primary table cannot be read the journal fallback is consulted instead.
func (s *SnapshotStore) History(ctx context.Context, userID string, limit int) ([]models.MoodSnapshot, error) {
	var snaps []models.MoodSnapshot
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&snaps).Error
	if err == nil {
		return snaps, nil
	}
	s.logger.WithError(err).Warn("primary history read failed, trying journal fallback")

	var entries []models.JournalEntry
	err = s.db.WithContext(ctx).
		Where("user_id = ? AND kind = ?", userID, models.KindMoodSnapshot).
		Order("created_at DESC").
		Limit(limit).
		Find(&entries).Error
	if err != nil {
		return nil, errors.Wrap(errors.KindDegraded, "store.History", err)
	}

	snaps = make([]models.MoodSnapshot, 0, len(entries))
	for _, e := range entries {
		var snap models.MoodSnapshot
		if err := json.Unmarshal([]byte(e.Payload), &snap); err != nil {
			s.logger.WithError(err).WithField("entry", e.ID).Warn("skipping undecodable journal entry")
			continue
		}
		snaps = append(snaps, snap)
	}
	return snaps, nil
}

// Get loads a snapshot by id from either table. fromJournal tells Update
// which shape to write back.
func (s *SnapshotStore) Get(ctx context.Context, id string) (snap *models.MoodSnapshot, fromJournal bool, err error) {
	var primary models.MoodSnapshot
	perr := s.db.WithContext(ctx).Where("id = ?", id).First(&primary).Error
	if perr == nil {
		return &primary, false, nil
	}
	if perr != gorm.ErrRecordNotFound {
		s.logger.WithError(perr).Warn("primary snapshot read failed, trying journal fallback")
	}

	var entry models.JournalEntry
	jerr := s.db.WithContext(ctx).
		Where("id = ? AND kind = ?", id, models.KindMoodSnapshot).
		First(&entry).Error
	if jerr != nil {
		return nil, false, ErrNotFound
	}

	var decoded models.MoodSnapshot
	if err := json.Unmarshal([]byte(entry.Payload), &decoded); err != nil {
		return nil, false, errors.Wrap(errors.KindInternal, "store.Get", err)
	}
	return &decoded, true, nil
}

// Update writes back a snapshot mutated by the transcription callback.
// CreatedAt is never touched.
func (s *SnapshotStore) Update(ctx context.Context, snap *models.MoodSnapshot, fromJournal bool) error {
	if fromJournal {
		payload, err := json.Marshal(snap)
		if err != nil {
			return errors.Wrap(errors.KindInternal, "store.Update", err)
		}
		err = s.db.WithContext(ctx).
			Model(&models.JournalEntry{}).
			Where("id = ?", snap.ID).
			Update("payload", string(payload)).Error
		return errors.Wrap(errors.KindDegraded, "store.Update", err)
	}

	err := s.db.WithContext(ctx).
		Model(&models.MoodSnapshot{}).
		Where("id = ?", snap.ID).
		Updates(map[string]interface{}{
			"raw_text":         snap.RawText,
			"detected_emotion": snap.DetectedEmotion,
			"confidence":       snap.Confidence,
			"metadata":         snap.Metadata,
		}).Error
	return errors.Wrap(errors.KindDegraded, "store.Update", err)
}
