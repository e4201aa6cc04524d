package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// StatusEvent is published whenever a session changes status. Consumed by
// the websocket endpoint so clients don't have to poll during processing.
type StatusEvent struct {
	Type      string    `json:"type"` // always "status"
	SessionID string    `json:"session_id"`
	Status    string    `json:"status"`
	Message   string    `json:"message,omitempty"`
	At        time.Time `json:"at"`
}

type Publisher interface {
	PublishStatus(ctx context.Context, ev StatusEvent) error
}

// StatusChannel is the pub/sub channel carrying one session's events.
func StatusChannel(sessionID string) string {
	return "session:" + sessionID + ":status"
}

type RedisPublisher struct {
	rdb *redis.Client
}

func NewRedisPublisher(rdb *redis.Client) *RedisPublisher {
	return &RedisPublisher{rdb: rdb}
}

func (p *RedisPublisher) PublishStatus(ctx context.Context, ev StatusEvent) error {
	if ev.Type == "" {
		ev.Type = "status"
	}
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return p.rdb.Publish(ctx, StatusChannel(ev.SessionID), b).Err()
}

// NopPublisher drops events. Used when redis is not wired (tests, CLI).
type NopPublisher struct{}

func (NopPublisher) PublishStatus(context.Context, StatusEvent) error { return nil }
