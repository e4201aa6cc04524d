package workers

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/calmwave/calmwave/internal/services"
)

// ProcessingWorkerPool consumes the processing stream and drives sessions
// through assembly and enhancement. Consumers share one consumer group, so
// each queued session is handled by exactly one worker.
type ProcessingWorkerPool struct {
	Redis      *redis.Client
	Processor  services.ProcessingService
	NumWorkers int

	Logger *logrus.Logger

	Stream         string
	Group          string
	ConsumerPrefix string
}

func (p *ProcessingWorkerPool) Start(ctx context.Context) error {
	if p.Redis == nil || p.Processor == nil {
		return errors.New("ProcessingWorkerPool missing dependency: Redis/Processor must be set")
	}
	if p.Stream == "" {
		p.Stream = ProcessStream
	}
	if p.Group == "" {
		p.Group = "processing-workers"
	}
	if p.ConsumerPrefix == "" {
		p.ConsumerPrefix = "c"
	}
	if p.NumWorkers <= 0 {
		p.NumWorkers = 5
	}
	if p.Logger == nil {
		p.Logger = logrus.New()
	}

	_ = p.Redis.XGroupCreateMkStream(ctx, p.Stream, p.Group, "0").Err() // ignore BUSYGROUP

	for i := 0; i < p.NumWorkers; i++ {
		consumer := p.ConsumerPrefix + "-" + strconv.Itoa(i+1)
		go p.runConsumer(ctx, consumer)
	}
	return nil
}

func (p *ProcessingWorkerPool) runConsumer(ctx context.Context, consumer string) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		res, err := p.Redis.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    p.Group,
			Consumer: consumer,
			Streams:  []string{p.Stream, ">"},
			Count:    10,
			Block:    5 * time.Second,
		}).Result()

		if err != nil {
			if err == redis.Nil {
				continue
			}
			time.Sleep(500 * time.Millisecond)
			continue
		}

		for _, stream := range res {
			for _, msg := range stream.Messages {
				p.handleMsg(ctx, msg)
				_ = p.Redis.XAck(ctx, p.Stream, p.Group, msg.ID).Err()
			}
		}
	}
}

func (p *ProcessingWorkerPool) handleMsg(ctx context.Context, msg redis.XMessage) {
	sessionID := ""
	if v, ok := msg.Values["session_id"]; ok {
		sessionID, _ = v.(string)
	}
	if sessionID == "" {
		return
	}

	log := p.Logger.WithFields(logrus.Fields{
		"redis_id":   msg.ID,
		"session_id": sessionID,
	})
	log.Info("processing session")

	if err := p.Processor.Process(ctx, sessionID); err != nil {
		// terminal failures are recorded on the session record; an error
		// here means we could not even get that far
		log.WithError(err).Error("processing failed")
		return
	}
	log.Info("processing done")
}
