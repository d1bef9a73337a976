package queue

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
)

func TestPumpForwardsPayloads(t *testing.T) {
	msgs := make(chan *redis.Message, 2)
	out := make(chan string)

	go pump(context.Background(), msgs, out)
	msgs <- &redis.Message{Payload: "one"}
	msgs <- &redis.Message{Payload: "two"}
	close(msgs)

	assert.Equal(t, "one", <-out)
	assert.Equal(t, "two", <-out)
	_, open := <-out
	assert.False(t, open, "out must close when msgs closes")
}

func TestPumpReturnsWhenConsumerGone(t *testing.T) {
	msgs := make(chan *redis.Message, 1)
	out := make(chan string)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		pump(ctx, msgs, out)
		close(done)
	}()

	// A pending message with nobody reading out, then shutdown.
	msgs <- &redis.Message{Payload: "stranded"}
	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("pump did not return after cancel")
	}

	_, open := <-out
	assert.False(t, open)
}
