package interview

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// TurnStream is where the API enqueues adaptive question requests.
const TurnStream = "interview:requests"

// TurnWorkerPool drains interview turn requests. Generation is slow (one LLM
// round trip plus history assembly), so it runs behind a consumer group
// instead of inside the request path; the driver pushes the finished turn to
// the candidate's interview channel itself.
type TurnWorkerPool struct {
	Redis      *redis.Client
	Driver     *Driver
	NumWorkers int

	Logger *logrus.Logger

	Stream         string
	Group          string
	ConsumerPrefix string
}

func (p *TurnWorkerPool) Start(ctx context.Context) error {
	if p.Redis == nil || p.Driver == nil {
		return errors.New("TurnWorkerPool missing dependency: Redis/Driver must be set")
	}
	if p.Stream == "" {
		p.Stream = TurnStream
	}
	if p.Group == "" {
		p.Group = "interview-workers"
	}
	if p.ConsumerPrefix == "" {
		p.ConsumerPrefix = "i"
	}
	if p.NumWorkers <= 0 {
		p.NumWorkers = 2
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

func (p *TurnWorkerPool) runConsumer(ctx context.Context, consumer string) {
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

func (p *TurnWorkerPool) handleMsg(ctx context.Context, msg redis.XMessage) {
	getStr := func(k string) string {
		v, ok := msg.Values[k]
		if !ok || v == nil {
			return ""
		}
		s, _ := v.(string)
		return s
	}

	examID := getStr("exam_id")
	userID := getStr("user_id")
	if examID == "" || userID == "" {
		return
	}

	log := p.Logger.WithFields(logrus.Fields{
		"redis_id": msg.ID,
		"exam_id":  examID,
		"user_id":  userID,
	})

	if _, err := p.Driver.NextTurn(ctx, examID, userID); err != nil {
		log.WithError(err).Error("interview turn failed")
		return
	}
	log.Info("interview turn delivered")
}
