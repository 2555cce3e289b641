package speech

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/hireloop/proctor/internal/metrics"
	"github.com/hireloop/proctor/internal/providers/stt"
	"github.com/hireloop/proctor/internal/utils"
	"github.com/hireloop/proctor/internal/workers"
)

// PCM stream parameters agreed with the capture frontend.
const (
	SampleRate = 16000
	BitDepth   = 16
	Channels   = 1

	// ChunkSize is the target sub-chunk handed to the recognizer;
	// MinChunkSize is the smallest slice worth an inference call.
	ChunkSize    = 8192
	MinChunkSize = 1600
)

type EventKind string

const (
	EventPartial EventKind = "partial"
	EventFinal   EventKind = "final"
)

// Event is one transcript emission. Chunk holds the raw PCM sub-chunk that
// produced it so the client can replay or archive the audio alongside the
// text.
type Event struct {
	Kind       EventKind
	Text       string
	Confidence float64
	Quality    Quality
	Chunk      []byte
	Timestamp  time.Time
}

// Decoder accumulates a single connection's PCM stream and drives the
// recognizer over fixed-size sub-chunks. It is owned by exactly one
// connection goroutine; calls must not overlap, and sub-chunks are decoded
// strictly in arrival order.
type Decoder struct {
	rec  stt.Recognizer
	pool *workers.Pool
	log  *logrus.Entry

	buf []byte
}

func NewDecoder(rec stt.Recognizer, pool *workers.Pool, log *logrus.Entry) *Decoder {
	return &Decoder{rec: rec, pool: pool, log: log}
}

// Feed appends a chunk to the buffer and decodes every complete sub-chunk,
// returning zero or more transcript events. Odd-length chunks are padded
// with one zero byte so the buffer never splits a 16-bit sample. Leftover
// bytes below the minimum viable size stay buffered for the next call.
func (d *Decoder) Feed(ctx context.Context, chunk []byte) ([]Event, error) {
	const op = "speech.Decoder.Feed"

	if len(chunk)%2 != 0 {
		d.log.WithField("length", len(chunk)).Warn("odd audio chunk length, padding with zero byte")
		chunk = append(chunk, 0)
	}
	d.buf = append(d.buf, chunk...)
	metrics.AudioBytesProcessed.Add(float64(len(chunk)))

	var events []Event
	for len(d.buf) >= MinChunkSize {
		size := len(d.buf)
		if size > ChunkSize {
			size = ChunkSize
		}
		size &^= 1
		if size < MinChunkSize {
			break
		}

		sub := make([]byte, size)
		copy(sub, d.buf[:size])
		d.buf = d.buf[size:]

		var (
			accepted bool
			quality  Quality
			recErr   error
		)
		err := d.pool.Do(ctx, func() {
			quality = Analyze(sub)
			accepted, recErr = d.rec.AcceptWaveform(sub)
		})
		if err != nil {
			return events, utils.E(utils.CodeInternal, op, "audio decode offload failed", err)
		}
		if recErr != nil {
			d.log.WithError(recErr).Warn("recognizer rejected sub-chunk")
			continue
		}

		now := time.Now()
		if accepted {
			res := d.rec.Result()
			if res.Text != "" {
				metrics.TranscriptEvents.WithLabelValues("final").Inc()
				events = append(events, Event{
					Kind:       EventFinal,
					Text:       res.Text,
					Confidence: res.Confidence,
					Quality:    quality,
					Chunk:      sub,
					Timestamp:  now,
				})
			}
			continue
		}

		if partial := d.rec.PartialResult(); partial != "" {
			metrics.TranscriptEvents.WithLabelValues("partial").Inc()
			events = append(events, Event{
				Kind:      EventPartial,
				Text:      partial,
				Quality:   quality,
				Chunk:     sub,
				Timestamp: now,
			})
		}
	}

	return events, nil
}

// Buffered reports bytes waiting for the next sub-chunk boundary.
func (d *Decoder) Buffered() int { return len(d.buf) }

// Reset drops buffered audio and reinitializes recognizer state for an
// explicit capture restart.
func (d *Decoder) Reset() error {
	const op = "speech.Decoder.Reset"
	d.buf = nil
	if err := d.rec.Reset(); err != nil {
		return utils.E(utils.CodeInternal, op, "recognizer reset failed", err)
	}
	return nil
}

func (d *Decoder) Close() error {
	d.buf = nil
	return d.rec.Close()
}
