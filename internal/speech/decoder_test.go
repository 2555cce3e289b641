package speech

import (
	"context"
	"encoding/binary"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hireloop/proctor/internal/providers/stt"
	"github.com/hireloop/proctor/internal/workers"
)

// fakeRecognizer records every sub-chunk it is fed and replays scripted
// partial/final results.
type fakeRecognizer struct {
	fed      [][]byte
	partials []string
	finals   []stt.FinalResult
	calls    int
	closed   bool
}

func (f *fakeRecognizer) AcceptWaveform(chunk []byte) (bool, error) {
	cp := make([]byte, len(chunk))
	copy(cp, chunk)
	f.fed = append(f.fed, cp)
	f.calls++
	return len(f.finals) > 0, nil
}

func (f *fakeRecognizer) Result() stt.FinalResult {
	if len(f.finals) == 0 {
		return stt.FinalResult{}
	}
	out := f.finals[0]
	f.finals = f.finals[1:]
	return out
}

func (f *fakeRecognizer) PartialResult() string {
	if len(f.partials) == 0 {
		return ""
	}
	out := f.partials[0]
	f.partials = f.partials[1:]
	return out
}

func (f *fakeRecognizer) Reset() error { f.fed = nil; return nil }
func (f *fakeRecognizer) Close() error { f.closed = true; return nil }

func newTestDecoder(t *testing.T, rec stt.Recognizer) *Decoder {
	t.Helper()
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	pool := workers.NewPool(2, log)
	t.Cleanup(pool.Stop)
	return NewDecoder(rec, pool, log.WithField("component", "speech"))
}

func pcm(samples ...int16) []byte {
	out := make([]byte, 2*len(samples))
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[2*i:], uint16(s))
	}
	return out
}

// Every byte fed must either reach the recognizer inside a sub-chunk or
// still sit in the buffer afterwards.
func TestFeedConservesBytes(t *testing.T) {
	rec := &fakeRecognizer{}
	d := newTestDecoder(t, rec)
	ctx := context.Background()

	sizes := []int{100, 1500, 8192, 3, 9000, 1600, 7}
	total := 0
	for _, n := range sizes {
		chunk := make([]byte, n)
		_, err := d.Feed(ctx, chunk)
		require.NoError(t, err)
		total += n
		if n%2 != 0 {
			total++ // padded to an even sample boundary
		}
	}

	consumed := 0
	for _, c := range rec.fed {
		consumed += len(c)
	}
	assert.Equal(t, total, consumed+d.Buffered())
}

func TestOddChunkPaddedEven(t *testing.T) {
	rec := &fakeRecognizer{}
	d := newTestDecoder(t, rec)

	_, err := d.Feed(context.Background(), make([]byte, 1601))
	require.NoError(t, err)

	// one sub-chunk of 1600 consumed, 2 bytes (odd byte + pad) remain
	require.Len(t, rec.fed, 1)
	assert.Len(t, rec.fed[0], 1600)
	assert.Equal(t, 2, d.Buffered())
}

func TestSubChunkSizesBounded(t *testing.T) {
	rec := &fakeRecognizer{}
	d := newTestDecoder(t, rec)

	_, err := d.Feed(context.Background(), make([]byte, 3*ChunkSize+MinChunkSize+10))
	require.NoError(t, err)

	require.Len(t, rec.fed, 4)
	for _, c := range rec.fed[:3] {
		assert.Len(t, c, ChunkSize)
	}
	assert.GreaterOrEqual(t, len(rec.fed[3]), MinChunkSize)
	assert.Less(t, d.Buffered(), MinChunkSize)
}

func TestSmallChunksStayBuffered(t *testing.T) {
	rec := &fakeRecognizer{}
	d := newTestDecoder(t, rec)

	events, err := d.Feed(context.Background(), make([]byte, MinChunkSize-2))
	require.NoError(t, err)
	assert.Empty(t, events)
	assert.Empty(t, rec.fed)
	assert.Equal(t, MinChunkSize-2, d.Buffered())
}

// 3200 bytes of silence at 16kHz mono: the quality snapshot says very_quiet
// and nothing is transcribed.
func TestSilenceIsVeryQuietWithNoFinal(t *testing.T) {
	rec := &fakeRecognizer{}
	d := newTestDecoder(t, rec)

	events, err := d.Feed(context.Background(), make([]byte, 3200))
	require.NoError(t, err)

	for _, ev := range events {
		assert.NotEqual(t, EventFinal, ev.Kind)
	}
	assert.Equal(t, StatusVeryQuiet, Analyze(make([]byte, 3200)).Status)
}

func TestPartialThenFinalEvents(t *testing.T) {
	rec := &fakeRecognizer{
		partials: []string{"tell me"},
	}
	d := newTestDecoder(t, rec)
	ctx := context.Background()

	events, err := d.Feed(ctx, pcm(make([]int16, ChunkSize/2)...))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, EventPartial, events[0].Kind)
	assert.Equal(t, "tell me", events[0].Text)
	assert.NotEmpty(t, events[0].Chunk)

	rec.finals = []stt.FinalResult{{Text: "tell me about yourself", Confidence: 0.91}}
	events, err = d.Feed(ctx, make([]byte, ChunkSize))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, EventFinal, events[0].Kind)
	assert.Equal(t, "tell me about yourself", events[0].Text)
	assert.InDelta(t, 0.91, events[0].Confidence, 1e-9)
}

func TestResetDropsBufferAndRecognizerState(t *testing.T) {
	rec := &fakeRecognizer{}
	d := newTestDecoder(t, rec)

	_, err := d.Feed(context.Background(), make([]byte, 500))
	require.NoError(t, err)
	require.NotZero(t, d.Buffered())

	require.NoError(t, d.Reset())
	assert.Zero(t, d.Buffered())
}

func TestAnalyzeStatuses(t *testing.T) {
	assert.Equal(t, StatusInsufficientData, Analyze(nil).Status)
	assert.Equal(t, StatusInsufficientData, Analyze([]byte{1}).Status)
	assert.Equal(t, StatusVeryQuiet, Analyze(pcm(10, -20, 30)).Status)
	assert.Equal(t, StatusQuiet, Analyze(pcm(120, -300, 40)).Status)

	// strong peak but near-silent average
	samples := make([]int16, 200)
	samples[0] = 2000
	assert.Equal(t, StatusLowSignal, Analyze(pcm(samples...)).Status)

	loud := make([]int16, 100)
	for i := range loud {
		loud[i] = 8000
	}
	q := Analyze(pcm(loud...))
	assert.Equal(t, StatusGood, q.Status)
	assert.False(t, q.Clipping)
	assert.Equal(t, 8000, q.MaxAmplitude)
	assert.Equal(t, 100, q.SampleCount)

	clipped := pcm(32767, -32768, 500)
	assert.True(t, Analyze(clipped).Clipping)
}
