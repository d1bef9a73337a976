package handlers_test

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"pulse/internal/classifier"
	handlers "pulse/internal/handler"
	"pulse/internal/models"
	"pulse/internal/queue"
	"pulse/internal/recommend"
	"pulse/pkg/config"
	"pulse/pkg/middleware"
	"pulse/pkg/storage"
)

const testServiceKey = "svc-secret"

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

type fakePublisher struct {
	mu   sync.Mutex
	jobs []queue.TranscriptionJob
	err  error
}

func (f *fakePublisher) Publish(_ context.Context, job queue.TranscriptionJob) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.jobs = append(f.jobs, job)
	return nil
}

func (f *fakePublisher) published() []queue.TranscriptionJob {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]queue.TranscriptionJob, len(f.jobs))
	copy(out, f.jobs)
	return out
}

type memBlobs struct {
	mu    sync.Mutex
	data  map[string][]byte
	types map[string]string
	fail  bool
}

func (m *memBlobs) Read(_ context.Context, key string) (io.ReadCloser, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	body, ok := m.data[key]
	if !ok {
		return nil, 0, errors.New("no such key")
	}
	return io.NopCloser(bytes.NewReader(body)), int64(len(body)), nil
}

func (m *memBlobs) Write(_ context.Context, key string, r io.Reader, _ int64, contentType string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errors.New("bucket unavailable")
	}
	raw, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	if m.data == nil {
		m.data = map[string][]byte{}
		m.types = map[string]string{}
	}
	m.data[key] = raw
	m.types[key] = contentType
	return nil
}

func (m *memBlobs) Exists(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.data[key]
	return ok, nil
}

type testApp struct {
	engine    *gin.Engine
	db        *gorm.DB
	publisher *fakePublisher
}

// newTestApp wires the router with a heuristic-only classifier, an in-memory
// database, and no external providers. AuthURL stays empty so requests run as
// the dev user.
func newTestApp(t *testing.T) *testApp {
	return newTestAppWithBlobs(t, nil)
}

func newTestAppWithBlobs(t *testing.T, blobs storage.BlobStore) *testApp {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&models.MoodSnapshot{}, &models.JournalEntry{}, &models.ChatMessage{}))

	log := quietLogger()
	cfg := &config.Config{APIPrefix: "/api", ServiceKey: testServiceKey, ChatModel: "gpt-4o-mini"}
	pub := &fakePublisher{}

	h := handlers.NewHandlers(cfg, db, handlers.Deps{
		Classifier:  classifier.New(nil, "", log),
		Recommender: recommend.NewService(recommend.NewSpotifyClient("", "", log), recommend.NewTMDBClient("", "", log), log),
		Publisher:   pub,
		Blobs:       blobs,
		Logger:      log,
	})

	engine := gin.New()
	h.Register(engine)
	return &testApp{engine: engine, db: db, publisher: pub}
}

func (a *testApp) postJSON(t *testing.T, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	a.engine.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, into interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), into))
}

func TestMoodTextSubmission(t *testing.T) {
	app := newTestApp(t)

	rec := app.postJSON(t, "/api/mood", gin.H{"text": "I feel anxious today"}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		DetectedEmotion  string  `json:"detectedEmotion"`
		Confidence       float64 `json:"confidence"`
		AssistantMessage string  `json:"assistantMessage"`
		Saved            bool    `json:"saved"`
		SnapshotID       string  `json:"snapshotId"`
		Recommendations  struct {
			Spotify []interface{} `json:"spotify"`
			TMDB    []interface{} `json:"tmdb"`
		} `json:"recommendations"`
	}
	decodeBody(t, rec, &resp)

	assert.Equal(t, models.EmotionAnxious, resp.DetectedEmotion)
	assert.InDelta(t, 0.85, resp.Confidence, 0.001)
	assert.True(t, resp.Saved)
	assert.NotEmpty(t, resp.SnapshotID)
	assert.NotEmpty(t, resp.AssistantMessage)
	// No provider credentials, so both lists are present but empty.
	assert.NotNil(t, resp.Recommendations.Spotify)
	assert.NotNil(t, resp.Recommendations.TMDB)
	assert.Empty(t, resp.Recommendations.Spotify)

	var snap models.MoodSnapshot
	require.NoError(t, app.db.Where("id = ?", resp.SnapshotID).First(&snap).Error)
	assert.Equal(t, "dev-user", snap.UserID)
	assert.Equal(t, models.SourceText, snap.Source)
	// Text-only submissions never dispatch a transcription job.
	assert.Empty(t, app.publisher.published())
}

func TestMoodRequiresTextOrAudio(t *testing.T) {
	app := newTestApp(t)

	rec := app.postJSON(t, "/api/mood", gin.H{"text": "   "}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = app.postJSON(t, "/api/mood", gin.H{}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMoodAudioDispatchesTranscription(t *testing.T) {
	app := newTestApp(t)

	rec := app.postJSON(t, "/api/mood", gin.H{"audioRef": "audio/k1"}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		DetectedEmotion string  `json:"detectedEmotion"`
		Confidence      float64 `json:"confidence"`
		SnapshotID      string  `json:"snapshotId"`
		Saved           bool    `json:"saved"`
	}
	decodeBody(t, rec, &resp)

	// No text yet: the snapshot starts neutral until transcription lands.
	assert.Equal(t, models.EmotionNeutral, resp.DetectedEmotion)
	assert.InDelta(t, 0.5, resp.Confidence, 0.001)
	assert.True(t, resp.Saved)

	jobs := app.publisher.published()
	require.Len(t, jobs, 1)
	assert.Equal(t, resp.SnapshotID, jobs[0].SnapshotID)
	assert.Equal(t, "audio/k1", jobs[0].AudioRef)

	var snap models.MoodSnapshot
	require.NoError(t, app.db.Where("id = ?", resp.SnapshotID).First(&snap).Error)
	assert.Equal(t, models.SourceVoice, snap.Source)
}

func TestMoodInlineAudioUpload(t *testing.T) {
	blobs := &memBlobs{}
	app := newTestAppWithBlobs(t, blobs)
	audio := []byte("fake-wav-bytes")

	rec := app.postJSON(t, "/api/mood", gin.H{
		"audioData":        base64.StdEncoding.EncodeToString(audio),
		"audioContentType": "audio/ogg",
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		SnapshotID string `json:"snapshotId"`
		Saved      bool   `json:"saved"`
	}
	decodeBody(t, rec, &resp)
	assert.True(t, resp.Saved)

	// Exactly one blob, holding the decoded bytes under a generated key.
	require.Len(t, blobs.data, 1)
	var key string
	for k := range blobs.data {
		key = k
	}
	assert.True(t, strings.HasPrefix(key, "audio/"))
	assert.Equal(t, audio, blobs.data[key])
	assert.Equal(t, "audio/ogg", blobs.types[key])

	var snap models.MoodSnapshot
	require.NoError(t, app.db.Where("id = ?", resp.SnapshotID).First(&snap).Error)
	assert.Equal(t, key, snap.AudioKey)
	assert.Equal(t, models.SourceVoice, snap.Source)

	jobs := app.publisher.published()
	require.Len(t, jobs, 1)
	assert.Equal(t, resp.SnapshotID, jobs[0].SnapshotID)
	assert.Equal(t, key, jobs[0].AudioRef)
}

func TestMoodRejectsUndecodableAudioData(t *testing.T) {
	app := newTestApp(t)

	rec := app.postJSON(t, "/api/mood", gin.H{"audioData": "!!!not-base64!!!"}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var count int64
	require.NoError(t, app.db.Model(&models.MoodSnapshot{}).Count(&count).Error)
	assert.EqualValues(t, 0, count)
}

func TestMoodDegradedAudioUploadAloneIsNotPersisted(t *testing.T) {
	payload := gin.H{"audioData": base64.StdEncoding.EncodeToString([]byte("bytes"))}

	// No blob store configured, and a blob store whose writes fail.
	for name, app := range map[string]*testApp{
		"nil store":    newTestApp(t),
		"failed write": newTestAppWithBlobs(t, &memBlobs{fail: true}),
	} {
		rec := app.postJSON(t, "/api/mood", payload, nil)
		require.Equal(t, http.StatusOK, rec.Code, name)

		var resp struct {
			DetectedEmotion string  `json:"detectedEmotion"`
			Confidence      float64 `json:"confidence"`
			Saved           bool    `json:"saved"`
			SnapshotID      string  `json:"snapshotId"`
		}
		decodeBody(t, rec, &resp)
		assert.False(t, resp.Saved, name)
		assert.Empty(t, resp.SnapshotID, name)
		assert.Equal(t, models.EmotionNeutral, resp.DetectedEmotion, name)
		assert.InDelta(t, 0.5, resp.Confidence, 0.001, name)

		var snaps, entries int64
		require.NoError(t, app.db.Model(&models.MoodSnapshot{}).Count(&snaps).Error)
		require.NoError(t, app.db.Model(&models.JournalEntry{}).Count(&entries).Error)
		assert.Zero(t, snaps, name)
		assert.Zero(t, entries, name)
		assert.Empty(t, app.publisher.published(), name)
	}
}

func TestMoodDegradedAudioUploadKeepsText(t *testing.T) {
	app := newTestAppWithBlobs(t, &memBlobs{fail: true})

	rec := app.postJSON(t, "/api/mood", gin.H{
		"text":      "I feel sad",
		"audioData": base64.StdEncoding.EncodeToString([]byte("bytes")),
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		DetectedEmotion string `json:"detectedEmotion"`
		Saved           bool   `json:"saved"`
		SnapshotID      string `json:"snapshotId"`
	}
	decodeBody(t, rec, &resp)
	assert.True(t, resp.Saved)
	assert.Equal(t, models.EmotionSad, resp.DetectedEmotion)

	var snap models.MoodSnapshot
	require.NoError(t, app.db.Where("id = ?", resp.SnapshotID).First(&snap).Error)
	assert.Equal(t, "I feel sad", snap.RawText)
	assert.Empty(t, snap.AudioKey)
	assert.Empty(t, app.publisher.published())
}

func TestTranscriptionCallbackReclassifies(t *testing.T) {
	app := newTestApp(t)

	rec := app.postJSON(t, "/api/mood", gin.H{"audioRef": "audio/k1"}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var created struct {
		SnapshotID string `json:"snapshotId"`
	}
	decodeBody(t, rec, &created)

	cb := app.postJSON(t,
		fmt.Sprintf("/api/mood/%s/transcription", created.SnapshotID),
		gin.H{"transcribedText": "I am furious", "engine": "openai_whisper"},
		map[string]string{middleware.ServiceKeyHeader: testServiceKey},
	)
	require.Equal(t, http.StatusOK, cb.Code)

	var snap models.MoodSnapshot
	require.NoError(t, app.db.Where("id = ?", created.SnapshotID).First(&snap).Error)
	assert.Equal(t, "I am furious", snap.RawText)
	assert.Equal(t, models.EmotionAngry, snap.DetectedEmotion)
	require.NotNil(t, snap.Confidence)
	assert.InDelta(t, 0.8, *snap.Confidence, 0.001)

	meta := snap.Meta()
	assert.Equal(t, true, meta["transcribed"])
	assert.Equal(t, "openai_whisper", meta["engine"])
}

func TestTranscriptionNeverOverwritesOriginalText(t *testing.T) {
	app := newTestApp(t)

	rec := app.postJSON(t, "/api/mood", gin.H{"text": "hello", "audioRef": "audio/k2"}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var created struct {
		SnapshotID string `json:"snapshotId"`
	}
	decodeBody(t, rec, &created)

	cb := app.postJSON(t,
		fmt.Sprintf("/api/mood/%s/transcription", created.SnapshotID),
		gin.H{"transcribedText": "world"},
		map[string]string{middleware.ServiceKeyHeader: testServiceKey},
	)
	require.Equal(t, http.StatusOK, cb.Code)

	var snap models.MoodSnapshot
	require.NoError(t, app.db.Where("id = ?", created.SnapshotID).First(&snap).Error)
	assert.Equal(t, "hello", snap.RawText)
	assert.Equal(t, true, snap.Meta()["transcribed"])
}

func TestTranscriptionCallbackRejections(t *testing.T) {
	app := newTestApp(t)

	rec := app.postJSON(t, "/api/mood", gin.H{"audioRef": "audio/k3"}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var created struct {
		SnapshotID string `json:"snapshotId"`
	}
	decodeBody(t, rec, &created)
	path := fmt.Sprintf("/api/mood/%s/transcription", created.SnapshotID)

	// Wrong service key.
	cb := app.postJSON(t, path, gin.H{"transcribedText": "x"},
		map[string]string{middleware.ServiceKeyHeader: "wrong"})
	assert.Equal(t, http.StatusForbidden, cb.Code)

	// Missing service key.
	cb = app.postJSON(t, path, gin.H{"transcribedText": "x"}, nil)
	assert.Equal(t, http.StatusForbidden, cb.Code)

	// Empty transcript.
	cb = app.postJSON(t, path, gin.H{"transcribedText": "   "},
		map[string]string{middleware.ServiceKeyHeader: testServiceKey})
	assert.Equal(t, http.StatusBadRequest, cb.Code)

	// Unknown snapshot.
	cb = app.postJSON(t, "/api/mood/no-such-id/transcription", gin.H{"transcribedText": "x"},
		map[string]string{middleware.ServiceKeyHeader: testServiceKey})
	assert.Equal(t, http.StatusNotFound, cb.Code)

	// The snapshot itself is untouched by all of the above.
	var snap models.MoodSnapshot
	require.NoError(t, app.db.Where("id = ?", created.SnapshotID).First(&snap).Error)
	assert.Empty(t, snap.RawText)
}

func TestMoodHistory(t *testing.T) {
	app := newTestApp(t)

	for _, text := range []string{"I feel sad", "so happy today"} {
		rec := app.postJSON(t, "/api/mood", gin.H{"text": text}, nil)
		require.Equal(t, http.StatusOK, rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/mood/history?limit=1", nil)
	rec := httptest.NewRecorder()
	app.engine.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var items []struct {
		DetectedEmotion string `json:"detectedEmotion"`
		RawText         string `json:"rawText"`
		CreatedAt       string `json:"createdAt"`
	}
	decodeBody(t, rec, &items)
	require.Len(t, items, 1)
	assert.NotEmpty(t, items[0].CreatedAt)

	req = httptest.NewRequest(http.MethodGet, "/api/mood/history?limit=0", nil)
	rec = httptest.NewRecorder()
	app.engine.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
