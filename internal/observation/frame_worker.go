package observation

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/hireloop/proctor/internal/hub"
	"github.com/hireloop/proctor/internal/perception"
	"github.com/hireloop/proctor/internal/protocol"
)

// FrameStream is where websocket handlers enqueue proctoring snapshots.
const FrameStream = "observation:frames"

type frameResult struct {
	perception.Result
	ID string `json:"id,omitempty"`
}

// FrameWorkerPool drains the observation stream: each frame runs through the
// perception dispatcher, the result is pushed back to the submitting user and
// appended to the exam's observation record.
type FrameWorkerPool struct {
	Redis      *redis.Client
	Dispatcher *perception.Dispatcher
	Recorder   *Recorder
	Hub        hub.Hub
	NumWorkers int

	Logger *logrus.Logger

	Stream         string
	Group          string
	ConsumerPrefix string
}

func (p *FrameWorkerPool) Start(ctx context.Context) error {
	if p.Redis == nil || p.Dispatcher == nil || p.Recorder == nil || p.Hub == nil {
		return errors.New("FrameWorkerPool missing dependency: Redis/Dispatcher/Recorder/Hub must be set")
	}
	if p.Stream == "" {
		p.Stream = FrameStream
	}
	if p.Group == "" {
		p.Group = "frame-workers"
	}
	if p.ConsumerPrefix == "" {
		p.ConsumerPrefix = "f"
	}
	if p.NumWorkers <= 0 {
		p.NumWorkers = 3
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

func (p *FrameWorkerPool) runConsumer(ctx context.Context, consumer string) {
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

func (p *FrameWorkerPool) handleMsg(ctx context.Context, msg redis.XMessage) {
	getStr := func(k string) string {
		v, ok := msg.Values[k]
		if !ok || v == nil {
			return ""
		}
		s, _ := v.(string)
		return s
	}

	userID := getStr("user_id")
	frame := getStr("image_data")
	if userID == "" || frame == "" {
		return
	}
	examID := getStr("exam_id")
	requestID := getStr("request_id")

	log := p.Logger.WithFields(logrus.Fields{
		"redis_id": msg.ID,
		"user_id":  userID,
		"exam_id":  examID,
	})

	res := p.Dispatcher.Analyze(ctx, frame)

	raw, err := json.Marshal(frameResult{Result: res, ID: requestID})
	if err != nil {
		log.WithError(err).Error("frame result marshal failed")
		return
	}
	addr := hub.UserAddress(userID, hub.ChannelObservation)
	if err := p.Hub.Publish(ctx, addr, protocol.Wrapped{Message: raw}); err != nil {
		log.WithError(err).Warn("frame result publish failed")
	}

	p.Recorder.Record(ctx, examID, res)
}
