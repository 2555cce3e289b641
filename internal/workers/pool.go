package workers

import (
	"context"
	"errors"
	"runtime"
	"sync"

	"github.com/sirupsen/logrus"
)

// ErrPoolClosed is returned by Do after Stop.
var ErrPoolClosed = errors.New("worker pool closed")

// Pool is a fixed-size pool for blocking model inference. Connection
// goroutines never run inference inline; they hand the call to the pool and
// wait, so one slow model call stalls one task, not the read loop of every
// sibling connection.
type Pool struct {
	log   *logrus.Entry
	tasks chan func()

	mu      sync.Mutex
	started bool
	done    chan struct{}
	wg      sync.WaitGroup
}

func NewPool(size int, l *logrus.Logger) *Pool {
	if size <= 0 {
		size = runtime.NumCPU()
	}
	p := &Pool{
		log:   l.WithField("component", "inference_pool"),
		tasks: make(chan func(), size*10),
		done:  make(chan struct{}),
	}
	p.startWorkers(size)
	return p
}

func (p *Pool) startWorkers(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return
	}
	p.started = true
	for i := 0; i < n; i++ {
		p.wg.Add(1)
		go p.run(i + 1)
	}
	p.log.WithField("workers", n).Info("inference pool started")
}

func (p *Pool) run(id int) {
	defer p.wg.Done()
	for {
		select {
		case <-p.done:
			return
		case fn := <-p.tasks:
			p.exec(id, fn)
		}
	}
}

func (p *Pool) exec(id int, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			p.log.WithFields(logrus.Fields{"worker": id, "panic": r}).Error("inference task panicked")
		}
	}()
	fn()
}

// Do submits fn and blocks until it has run or ctx is done. A canceled
// context abandons the result; an already-enqueued fn may still execute.
func (p *Pool) Do(ctx context.Context, fn func()) error {
	select {
	case <-p.done:
		return ErrPoolClosed
	default:
	}

	ran := make(chan struct{})
	wrapped := func() {
		defer close(ran)
		fn()
	}

	select {
	case p.tasks <- wrapped:
	case <-ctx.Done():
		return ctx.Err()
	case <-p.done:
		return ErrPoolClosed
	}

	select {
	case <-ran:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Submit enqueues fn without waiting. It reports false when the queue is
// full or the pool is stopped; callers treat that as a dropped unit of work.
func (p *Pool) Submit(fn func()) bool {
	select {
	case <-p.done:
		return false
	default:
	}
	select {
	case p.tasks <- fn:
		return true
	default:
		p.log.Warn("inference queue full, task dropped")
		return false
	}
}

// Stop drains nothing: queued tasks that have not started are discarded.
func (p *Pool) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.started {
		return
	}
	select {
	case <-p.done:
		return
	default:
		close(p.done)
	}
	p.wg.Wait()
}
