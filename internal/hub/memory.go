package hub

import (
	"context"
	"sync"
)

// MemoryHub is a single-process fabric with the same addressing contract as
// RedisHub. Used for single-node deployments and in tests.
type MemoryHub struct {
	mu   sync.RWMutex
	subs map[string]map[chan []byte]struct{}
}

func NewMemoryHub() *MemoryHub {
	return &MemoryHub{subs: make(map[string]map[chan []byte]struct{})}
}

func (h *MemoryHub) Publish(ctx context.Context, addr string, payload any) error {
	b, err := marshalPayload(payload)
	if err != nil {
		return err
	}

	// Sends happen under the read lock: cancel closes channels under the
	// write lock, so a channel still reachable here cannot be mid-close.
	// The non-blocking send keeps the hold time bounded.
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subs[addr] {
		select {
		case ch <- b:
		default:
			// Slow subscriber: drop rather than block the pipeline.
		}
	}
	return nil
}

func (h *MemoryHub) Subscribe(ctx context.Context, addr string) (<-chan []byte, func(), error) {
	ch := make(chan []byte, 64)

	h.mu.Lock()
	if h.subs[addr] == nil {
		h.subs[addr] = make(map[chan []byte]struct{})
	}
	h.subs[addr][ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs[addr], ch)
			if len(h.subs[addr]) == 0 {
				delete(h.subs, addr)
			}
			// Closed inside the critical section so no publisher can be
			// sending on ch concurrently.
			close(ch)
			h.mu.Unlock()
		})
	}
	return ch, cancel, nil
}

// SubscriberCount reports current subscribers of an address.
func (h *MemoryHub) SubscriberCount(addr string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[addr])
}
