package workers

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

func TestPoolDoRunsTask(t *testing.T) {
	p := NewPool(2, testLogger())
	defer p.Stop()

	var ran atomic.Bool
	err := p.Do(context.Background(), func() { ran.Store(true) })
	require.NoError(t, err)
	assert.True(t, ran.Load())
}

func TestPoolBoundsConcurrency(t *testing.T) {
	p := NewPool(2, testLogger())
	defer p.Stop()

	var cur, peak atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = p.Do(context.Background(), func() {
				n := cur.Add(1)
				for {
					old := peak.Load()
					if n <= old || peak.CompareAndSwap(old, n) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				cur.Add(-1)
			})
		}()
	}
	wg.Wait()
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestPoolDoHonorsContext(t *testing.T) {
	p := NewPool(1, testLogger())
	defer p.Stop()

	block := make(chan struct{})
	go func() { _ = p.Do(context.Background(), func() { <-block }) }()
	time.Sleep(10 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := p.Do(ctx, func() {})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	close(block)
}

func TestPoolRecoversFromPanic(t *testing.T) {
	p := NewPool(1, testLogger())
	defer p.Stop()

	_ = p.Do(context.Background(), func() { panic("model blew up") })

	var ran atomic.Bool
	require.NoError(t, p.Do(context.Background(), func() { ran.Store(true) }))
	assert.True(t, ran.Load())
}

func TestPoolStopRejectsWork(t *testing.T) {
	p := NewPool(1, testLogger())
	p.Stop()
	assert.False(t, p.Submit(func() {}))
	assert.ErrorIs(t, p.Do(context.Background(), func() {}), ErrPoolClosed)
}
