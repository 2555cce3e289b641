package handlers

import (
	"context"
	"encoding/json"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/hireloop/proctor/internal/hub"
	"github.com/hireloop/proctor/internal/protocol"
)

// InterviewWS carries interview turns. The question driver publishes
// generated turns to the user's interview address; anything the client sends
// under "message" is echoed back through the same address.
func (h *StreamHandler) InterviewWS(c *gin.Context) {
	h.relayWS(c, hub.ChannelInterview)
}

// NotificationWS is the generic server-to-client push channel.
func (h *StreamHandler) NotificationWS(c *gin.Context) {
	h.relayWS(c, hub.ChannelNotification)
}

func (h *StreamHandler) relayWS(c *gin.Context, ch hub.Channel) {
	s, wc, ok := h.open(c, ch)
	if !ok {
		return
	}
	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()
	defer h.manager.Close(context.Background(), s)

	addr := hub.UserAddress(s.UserID, ch)
	if err := h.bridge(ctx, s, wc, addr); err != nil {
		h.log.WithError(err).WithFields(logrus.Fields{
			"session_id": s.ID,
			"channel":    string(ch),
		}).Error("relay bridge failed")
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

		var w protocol.Wrapped
		if err := json.Unmarshal(data, &w); err != nil {
			_ = wc.writeJSON(protocol.NewErrorEvent("INVALID_JSON", "invalid JSON frame", wallClock()))
			continue
		}
		if len(w.Message) == 0 {
			_ = wc.writeJSON(protocol.NewErrorEvent("MISSING_MESSAGE", "message is required", wallClock()))
			continue
		}

		h.publish(ctx, addr, w)
	}
}
