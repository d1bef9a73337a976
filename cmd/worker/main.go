package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/cenkalti/backoff/v4"

	"pulse/internal/queue"
	"pulse/internal/worker"
	"pulse/pkg/config"
	"pulse/pkg/llm"
	"pulse/pkg/logger"
	"pulse/pkg/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	log := logger.NewLogrus(cfg.Log.Level)

	var blobs storage.BlobStore
	if cfg.MinioEndpoint != "" {
		store, err := storage.NewMinioStore(storage.MinioConfig{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
		})
		if err != nil {
			log.WithError(err).Warn("blob store unavailable; downloads will fail")
		} else {
			blobs = store
		}
	}

	var transcriber llm.Transcriber
	if cfg.OpenAIAPIKey != "" {
		transcriber = llm.NewWhisperHandler(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.WhisperModel, log)
	} else {
		log.Warn("no speech-to-text credential; jobs will report the unavailable sentinel")
	}

	w := worker.New(blobs, transcriber, cfg.BackendURL, cfg.APIPrefix, cfg.ServiceKey, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Resubscribe with backoff when the redis connection drops. Messages
	// published while disconnected are lost; that is the channel's contract.
	operation := func() error {
		bus, err := queue.NewRedisBus(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.JobChannel, log)
		if err != nil {
			log.WithError(err).Warn("redis connect failed, will retry")
			return err
		}
		defer bus.Close()

		log.WithField("channel", cfg.JobChannel).Info("worker subscribed")
		w.Run(ctx, bus.Subscribe(ctx))

		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		return fmt.Errorf("subscription closed")
	}

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = 0
	if err := backoff.Retry(operation, backoff.WithContext(b, ctx)); err != nil && ctx.Err() == nil {
		log.WithError(err).Fatal("worker stopped")
	}
	log.Info("worker shut down")
}
