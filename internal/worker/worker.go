// Package worker consumes transcription jobs from the job channel, runs
// speech-to-text, and reports results back through the snapshot callback.
//
// Each job moves through received → downloading → transcribing → reporting →
// done. There is no retry anywhere on this path: a failed download or
// transcription turns into a sentinel transcript that is still reported, and
// a failed callback is only logged.
package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"pulse/internal/queue"
	"pulse/pkg/llm"
	"pulse/pkg/metrics"
	"pulse/pkg/middleware"
	"pulse/pkg/storage"
)

// Sentinel transcripts reported when a stage fails.
const (
	TranscriptUnavailable = "_TRANSCRIPTION_NOT_AVAILABLE_"
	TranscriptDownloadErr = "_DOWNLOAD_FAILED_"
	transcribeErrPrefix   = "_TRANSCRIBE_ERR_"
)

// Engine tags recorded alongside the transcript.
const (
	EngineNone    = "none"
	EngineWhisper = "openai_whisper"
)

type Worker struct {
	blobs       storage.BlobStore // nil when no blob store is configured
	transcriber llm.Transcriber   // nil when no speech-to-text credential
	backendURL  string
	serviceKey  string
	apiPrefix   string
	httpClient  *http.Client
	logger      *logrus.Logger
}

func New(blobs storage.BlobStore, transcriber llm.Transcriber, backendURL, apiPrefix, serviceKey string, logger *logrus.Logger) *Worker {
	return &Worker{
		blobs:       blobs,
		transcriber: transcriber,
		backendURL:  backendURL,
		apiPrefix:   apiPrefix,
		serviceKey:  serviceKey,
		httpClient:  &http.Client{Timeout: 20 * time.Second},
		logger:      logger,
	}
}

// Run processes messages until the channel closes or ctx is cancelled.
func (w *Worker) Run(ctx context.Context, msgs <-chan string) {
	for {
		select {
		case <-ctx.Done():
			return
		case raw, ok := <-msgs:
			if !ok {
				return
			}
			w.Process(ctx, raw)
		}
	}
}

// Process handles one raw channel message end to end. Malformed messages are
// dropped and logged, never retried.
func (w *Worker) Process(ctx context.Context, raw string) {
	var job queue.TranscriptionJob
	if err := json.Unmarshal([]byte(raw), &job); err != nil || job.SnapshotID == "" || job.AudioRef == "" {
		w.logger.WithField("payload", raw).Warn("dropping malformed transcription job")
		metrics.JobsProcessed.WithLabelValues("malformed").Inc()
		return
	}

	log := w.logger.WithFields(logrus.Fields{"snapshot": job.SnapshotID, "audio": job.AudioRef})
	log.Info("job received")

	transcript, engine := w.transcribe(ctx, log, job)
	outcome := "ok"
	if isSentinel(transcript) {
		outcome = "degraded"
	}

	log.Info("reporting transcription result")
	if err := w.report(ctx, job.SnapshotID, transcript, engine); err != nil {
		log.WithError(err).Error("transcription callback failed")
		metrics.JobsProcessed.WithLabelValues("callback_failed").Inc()
		return
	}
	metrics.JobsProcessed.WithLabelValues(outcome).Inc()
	log.Info("job done")
}

// transcribe covers the downloading and transcribing stages. Every failure
// yields a sentinel transcript so the job still completes and reports.
func (w *Worker) transcribe(ctx context.Context, log *logrus.Entry, job queue.TranscriptionJob) (string, string) {
	if w.blobs == nil {
		log.Warn("no blob store configured")
		return TranscriptUnavailable, EngineNone
	}

	log.Info("downloading audio")
	obj, _, err := w.blobs.Read(ctx, job.AudioRef)
	if err != nil {
		log.WithError(err).Warn("audio download failed")
		return TranscriptDownloadErr, EngineNone
	}
	defer obj.Close()

	tmp, err := os.CreateTemp("", "pulse-audio-*")
	if err != nil {
		log.WithError(err).Warn("scratch file creation failed")
		return TranscriptDownloadErr, EngineNone
	}
	defer os.Remove(tmp.Name())
	if _, err := io.Copy(tmp, obj); err != nil {
		tmp.Close()
		log.WithError(err).Warn("audio download failed")
		return TranscriptDownloadErr, EngineNone
	}
	tmp.Close()

	if w.transcriber == nil {
		log.Warn("no transcription credential configured")
		return TranscriptUnavailable, EngineNone
	}

	log.Info("transcribing audio")
	tctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()
	text, err := w.transcriber.Transcribe(tctx, tmp.Name())
	if err != nil {
		log.WithError(err).Warn("transcription failed")
		return fmt.Sprintf("%s%v", transcribeErrPrefix, err), EngineWhisper
	}
	return text, EngineWhisper
}

func isSentinel(transcript string) bool {
	return transcript == TranscriptUnavailable ||
		transcript == TranscriptDownloadErr ||
		strings.HasPrefix(transcript, transcribeErrPrefix)
}

func (w *Worker) report(ctx context.Context, snapshotID, transcript, engine string) error {
	payload, err := json.Marshal(map[string]string{
		"transcribedText": transcript,
		"engine":          engine,
	})
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s%s/mood/%s/transcription", w.backendURL, w.apiPrefix, snapshotID)
	rctx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(rctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(middleware.ServiceKeyHeader, w.serviceKey)

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("callback status %d", resp.StatusCode)
	}
	return nil
}
