package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/hireloop/proctor/internal/hub"
	"github.com/hireloop/proctor/internal/protocol"
)

type videoFrame struct {
	Frame string `json:"frame"`
}

// VideoWS relays preview frames. Inbound {"image":...} fans out to every
// subscriber of the user's video address, the sender included, so a reviewer
// tab sees exactly what the candidate's camera sends.
func (h *StreamHandler) VideoWS(c *gin.Context) {
	s, wc, ok := h.open(c, hub.ChannelVideo)
	if !ok {
		return
	}
	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()
	defer h.manager.Close(context.Background(), s)

	addr := hub.UserAddress(s.UserID, hub.ChannelVideo)
	if err := h.bridge(ctx, s, wc, addr); err != nil {
		h.log.WithError(err).WithField("session_id", s.ID).Error("video bridge failed")
		return
	}
	h.manager.Activate(s)

	for {
		_, data, rerr := wc.c.ReadMessage()
		if rerr != nil {
			return
		}
		if !s.Active() {
			return
		}

		in, perr := protocol.ParseInbound(data, protocol.KindImageFrame)
		if perr != nil {
			_ = wc.writeJSON(protocol.NewErrorEvent("INVALID_JSON", "invalid JSON frame", wallClock()))
			continue
		}
		if in.Kind != protocol.KindImageFrame || in.Frame() == "" {
			_ = wc.writeJSON(protocol.UnknownKindError(in.Kind, wallClock()))
			continue
		}

		h.publish(ctx, addr, videoFrame{Frame: in.Frame()})
	}
}
