package perception

import (
	"context"
	"image"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/hireloop/proctor/internal/metrics"
	"github.com/hireloop/proctor/internal/workers"
)

// Dispatcher fans one decoded frame out to the three detectors in parallel
// and merges their results. Wall-clock cost per frame is the slowest
// detector, not the sum.
type Dispatcher struct {
	reg  *Registry
	pool *workers.Pool
	log  *logrus.Entry
}

func NewDispatcher(reg *Registry, pool *workers.Pool, log *logrus.Entry) *Dispatcher {
	return &Dispatcher{reg: reg, pool: pool, log: log}
}

// Analyze decodes a base64 frame and runs all detectors. An undecodable
// payload yields a Result with Err set; a single failing detector yields an
// empty list for its category only.
func (d *Dispatcher) Analyze(ctx context.Context, base64Frame string) Result {
	img, err := DecodeBase64Frame(base64Frame)
	if err != nil {
		d.log.WithError(err).Warn("frame decode failed")
		metrics.FramesAnalyzed.WithLabelValues("decode_error").Inc()
		return Result{Err: "Failed to decode image"}
	}
	return d.AnalyzeImage(ctx, img)
}

func (d *Dispatcher) AnalyzeImage(ctx context.Context, img image.Image) Result {
	start := time.Now()

	var (
		res Result
		wg  sync.WaitGroup
	)
	run := func(name string, det Detector, dst *[]Detection) {
		defer wg.Done()
		if det == nil {
			return
		}
		err := d.pool.Do(ctx, func() {
			out, derr := det.Detect(img)
			if derr != nil {
				d.log.WithError(derr).WithField("detector", name).Warn("detector failed")
				return
			}
			*dst = out
		})
		if err != nil {
			d.log.WithError(err).WithField("detector", name).Warn("detector dispatch failed")
		}
	}

	wg.Add(3)
	go run("emotions", d.reg.Emotions, &res.Emotions)
	go run("attire", d.reg.Attire, &res.Clothing)
	go run("gestures", d.reg.Gestures, &res.Gestures)
	wg.Wait()

	metrics.FramesAnalyzed.WithLabelValues("ok").Inc()
	metrics.FrameAnalyzeSeconds.Observe(time.Since(start).Seconds())
	return res
}
