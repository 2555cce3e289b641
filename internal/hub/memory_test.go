package hub

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recvOne(t *testing.T, ch <-chan []byte) []byte {
	t.Helper()
	select {
	case b := <-ch:
		return b
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
		return nil
	}
}

func TestUserAddress(t *testing.T) {
	assert.Equal(t, "user_42_audio", UserAddress("42", ChannelAudio))
	assert.Equal(t, "user_42_observation", UserAddress("42", ChannelObservation))
}

// Observation pushes for one user must never reach another user's
// subscription, and different channel kinds for the same user stay separate.
func TestGroupAddressingIsolation(t *testing.T) {
	h := NewMemoryHub()
	ctx := context.Background()

	aObs, cancelA, err := h.Subscribe(ctx, UserAddress("alice", ChannelObservation))
	require.NoError(t, err)
	defer cancelA()
	bObs, cancelB, err := h.Subscribe(ctx, UserAddress("bob", ChannelObservation))
	require.NoError(t, err)
	defer cancelB()
	aInt, cancelAI, err := h.Subscribe(ctx, UserAddress("alice", ChannelInterview))
	require.NoError(t, err)
	defer cancelAI()

	require.NoError(t, h.Publish(ctx, UserAddress("alice", ChannelObservation), map[string]string{"id": "frame-1"}))
	require.NoError(t, h.Publish(ctx, UserAddress("bob", ChannelObservation), map[string]string{"id": "frame-2"}))

	assert.Contains(t, string(recvOne(t, aObs)), "frame-1")
	assert.Contains(t, string(recvOne(t, bObs)), "frame-2")

	select {
	case b := <-aInt:
		t.Fatalf("interview channel received observation payload: %s", b)
	case <-time.After(50 * time.Millisecond):
	}
	select {
	case b := <-aObs:
		t.Fatalf("alice received bob's payload: %s", b)
	case <-time.After(50 * time.Millisecond):
	}
}

// A publish after teardown has no subscribers and is silently dropped: late
// perception results for a closed session go nowhere.
func TestPublishAfterUnsubscribeIsDropped(t *testing.T) {
	h := NewMemoryHub()
	ctx := context.Background()

	addr := UserAddress("carol", ChannelObservation)
	ch, cancel, err := h.Subscribe(ctx, addr)
	require.NoError(t, err)
	cancel()
	cancel() // idempotent

	require.NoError(t, h.Publish(ctx, addr, []byte(`{"late":true}`)))
	_, open := <-ch
	assert.False(t, open)
	assert.Zero(t, h.SubscriberCount(addr))
}

// Teardown racing an in-flight publish must never send on a closed channel:
// that is the disconnect-while-perception-completes path.
func TestPublishDuringCancelIsSafe(t *testing.T) {
	h := NewMemoryHub()
	ctx := context.Background()
	addr := UserAddress("dave", ChannelObservation)

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-done:
				return
			default:
				_ = h.Publish(ctx, addr, []byte(`{"n":1}`))
			}
		}
	}()

	for i := 0; i < 500; i++ {
		ch, cancel, err := h.Subscribe(ctx, addr)
		require.NoError(t, err)
		cancel()
		for range ch {
			// drain until the close is observed
		}
	}

	close(done)
	wg.Wait()
	assert.Zero(t, h.SubscriberCount(addr))
}
