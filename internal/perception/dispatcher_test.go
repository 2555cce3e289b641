package perception

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"image/png"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hireloop/proctor/internal/workers"
)

type stubDetector struct {
	out   []Detection
	err   error
	delay time.Duration

	mu    sync.Mutex
	calls int
}

func (s *stubDetector) Detect(image.Image) ([]Detection, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	return s.out, s.err
}

func testFramePNG(t *testing.T) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 32, 32))
	for y := 0; y < 32; y++ {
		for x := 0; x < 32; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 8), G: uint8(y * 8), B: 40, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

func newTestDispatcher(t *testing.T, reg *Registry) *Dispatcher {
	t.Helper()
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	pool := workers.NewPool(3, log)
	t.Cleanup(pool.Stop)
	return NewDispatcher(reg, pool, log.WithField("component", "perception"))
}

func TestAnalyzeMergesAllCategories(t *testing.T) {
	reg := &Registry{
		Emotions: &stubDetector{out: []Detection{{Label: "neutral", Confidence: 0.8}}},
		Attire:   &stubDetector{out: []Detection{{Label: "shirt, blouse", Confidence: 0.91}}},
		Gestures: &stubDetector{out: []Detection{{Label: "thumb_up", Confidence: 0.77}}},
	}
	d := newTestDispatcher(t, reg)

	res := d.Analyze(context.Background(), testFramePNG(t))
	assert.Empty(t, res.Err)
	require.Len(t, res.Emotions, 1)
	assert.Equal(t, "neutral", res.Emotions[0].Label)
	require.Len(t, res.Clothing, 1)
	assert.Equal(t, "shirt, blouse", res.Clothing[0].Label)
	require.Len(t, res.Gestures, 1)
}

func TestAnalyzeUndecodableFrameReturnsErrorResult(t *testing.T) {
	reg := &Registry{
		Emotions: &stubDetector{},
		Attire:   &stubDetector{},
		Gestures: &stubDetector{},
	}
	d := newTestDispatcher(t, reg)

	res := d.Analyze(context.Background(), "not-base64!!!")
	assert.Equal(t, "Failed to decode image", res.Err)
	assert.Zero(t, reg.Emotions.(*stubDetector).calls)
}

// One detector failing must not suppress the other two categories.
func TestAnalyzePartialDetectorFailure(t *testing.T) {
	reg := &Registry{
		Emotions: &stubDetector{err: errors.New("model exploded")},
		Attire:   &stubDetector{out: []Detection{{Label: "jacket", Confidence: 0.88}}},
		Gestures: &stubDetector{out: []Detection{{Label: "open_palm", Confidence: 0.7}}},
	}
	d := newTestDispatcher(t, reg)

	res := d.Analyze(context.Background(), testFramePNG(t))
	assert.Empty(t, res.Err)
	assert.Empty(t, res.Emotions)
	assert.Len(t, res.Clothing, 1)
	assert.Len(t, res.Gestures, 1)
}

// All three detectors sleep; if they ran sequentially the pass would take
// three times as long.
func TestAnalyzeRunsDetectorsConcurrently(t *testing.T) {
	const delay = 120 * time.Millisecond
	reg := &Registry{
		Emotions: &stubDetector{delay: delay},
		Attire:   &stubDetector{delay: delay},
		Gestures: &stubDetector{delay: delay},
	}
	d := newTestDispatcher(t, reg)

	start := time.Now()
	d.Analyze(context.Background(), testFramePNG(t))
	assert.Less(t, time.Since(start), 3*delay)
}

func TestDecodeBase64FrameDataURL(t *testing.T) {
	raw := testFramePNG(t)

	img, err := DecodeBase64Frame("data:image/png;base64," + raw)
	require.NoError(t, err)
	assert.Equal(t, 32, img.Bounds().Dx())

	// whitespace from chunked transports is tolerated
	img, err = DecodeBase64Frame(raw[:40] + "\n" + raw[40:])
	require.NoError(t, err)
	assert.Equal(t, 32, img.Bounds().Dy())
}
