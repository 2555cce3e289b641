package handlers

import (
	"context"
	"encoding/json"

	"github.com/gin-gonic/gin"

	"github.com/hireloop/proctor/internal/hub"
	"github.com/hireloop/proctor/internal/protocol"
)

// signalFrame carries the sender's session id through the room so a peer
// never echoes its own offer back to itself.
type signalFrame struct {
	Sender  string          `json:"sender"`
	Message json.RawMessage `json:"message"`
}

// SignalingWS is the WebRTC signaling relay. Every frame a peer sends is
// broadcast verbatim to the other members of the room.
func (h *StreamHandler) SignalingWS(c *gin.Context) {
	s, wc, ok := h.open(c, hub.ChannelSignaling)
	if !ok {
		return
	}
	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()
	defer h.manager.Close(context.Background(), s)

	room := c.Query("room")
	if room == "" {
		room = hub.SignalingRoom
	}

	msgs, unsub, err := h.hub.Subscribe(ctx, room)
	if err != nil {
		h.log.WithError(err).WithField("session_id", s.ID).Error("signaling subscribe failed")
		return
	}
	s.OnClose(unsub)

	go func() {
		for b := range msgs {
			var fr signalFrame
			if json.Unmarshal(b, &fr) != nil || fr.Sender == s.ID {
				continue
			}
			if werr := wc.writeText(fr.Message); werr != nil {
				h.manager.Close(context.Background(), s)
				return
			}
		}
	}()

	h.manager.Activate(s)

	for {
		_, data, rerr := wc.c.ReadMessage()
		if rerr != nil {
			return
		}
		if !s.Active() {
			return
		}

		in, perr := protocol.ParseInbound(data, "")
		if perr != nil {
			_ = wc.writeJSON(protocol.NewErrorEvent("INVALID_JSON", "invalid JSON frame", wallClock()))
			continue
		}

		switch in.Kind {
		case protocol.KindOffer, protocol.KindAnswer, protocol.KindICECandidate,
			protocol.KindJoin, protocol.KindLeave:
			h.publish(ctx, room, signalFrame{Sender: s.ID, Message: in.Raw})
		default:
			_ = wc.writeJSON(protocol.UnknownKindError(in.Kind, wallClock()))
		}
	}
}
