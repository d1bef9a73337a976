// Package queue carries transcription work from the API process to the
// worker over a redis pub/sub channel.
//
// Pub/sub is broadcast: every subscriber sees every message, and nothing is
// retained for subscribers that are offline. Run a single worker instance, or
// rely on the idempotent callback (first-writer-wins text, unconditional
// reclassification) to make duplicate deliveries converge. Moving to redis
// streams with a consumer group is the upgrade path if competing consumers
// are ever needed.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// DefaultChannel is the well-known transcription topic.
const DefaultChannel = "pulse:transcribe_jobs"

// TranscriptionJob is the channel message: a reference to the snapshot plus
// the blob key, nothing else. It is not a stored entity.
type TranscriptionJob struct {
	SnapshotID string `json:"snapshotId"`
	AudioRef   string `json:"audioRef"`
}

// Publisher is the dispatcher's side of the channel. Publish is
// fire-and-forget: the caller logs a failure and moves on, it never retries.
type Publisher interface {
	Publish(ctx context.Context, job TranscriptionJob) error
}

// RedisBus implements both ends of the channel on go-redis.
type RedisBus struct {
	client  *redis.Client
	channel string
	logger  *logrus.Logger
}

func NewRedisBus(addr, password string, db int, channel string, logger *logrus.Logger) (*RedisBus, error) {
	if channel == "" {
		channel = DefaultChannel
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisBus{client: client, channel: channel, logger: logger}, nil
}

func (b *RedisBus) Publish(ctx context.Context, job TranscriptionJob) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, b.channel, payload).Err()
}

// Subscribe returns raw message payloads. The channel closes when ctx is
// cancelled or the connection drops; callers decide whether to resubscribe.
func (b *RedisBus) Subscribe(ctx context.Context) <-chan string {
	sub := b.client.Subscribe(ctx, b.channel)
	out := make(chan string)

	go func() {
		defer sub.Close()
		pump(ctx, sub.Channel(), out)
	}()
	return out
}

// pump forwards payloads until ctx is cancelled or msgs closes. The consumer
// may be gone already, so the send itself also watches ctx; a shutdown never
// strands this goroutine.
func pump(ctx context.Context, msgs <-chan *redis.Message, out chan<- string) {
	defer close(out)
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			select {
			case out <- msg.Payload:
			case <-ctx.Done():
				return
			}
		}
	}
}

func (b *RedisBus) Close() error {
	return b.client.Close()
}
