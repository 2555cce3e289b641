// Package hub is the named-group push fabric: every live websocket
// subscribes to a logical address and server-side pipelines publish to it.
package hub

import (
	"context"
	"encoding/json"
	"fmt"
)

// Channel is the kind of stream a connection carries. Each kind gets its own
// logical address per user so independent streams never cross-deliver.
type Channel string

const (
	ChannelAudio        Channel = "audio"
	ChannelVideo        Channel = "video"
	ChannelSignaling    Channel = "signaling"
	ChannelObservation  Channel = "observation"
	ChannelInterview    Channel = "interview"
	ChannelNotification Channel = "notification"
)

// UserAddress returns the per-user-per-channel logical address.
func UserAddress(userID string, ch Channel) string {
	return fmt.Sprintf("user_%s_%s", userID, ch)
}

// SignalingRoom is the shared address for WebRTC signaling passthrough.
const SignalingRoom = "signaling_room"

// Hub delivers payloads to all current subscribers of an address,
// best-effort: a disconnected subscriber simply misses the message.
type Hub interface {
	Publish(ctx context.Context, addr string, payload any) error
	// Subscribe returns a receive channel and an idempotent cancel func.
	Subscribe(ctx context.Context, addr string) (<-chan []byte, func(), error)
}

func marshalPayload(payload any) ([]byte, error) {
	switch v := payload.(type) {
	case []byte:
		return v, nil
	case json.RawMessage:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return json.Marshal(payload)
	}
}
