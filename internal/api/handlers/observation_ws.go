package handlers

import (
	"context"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/hireloop/proctor/internal/hub"
	"github.com/hireloop/proctor/internal/observation"
	"github.com/hireloop/proctor/internal/protocol"
)

// ObservationWS accepts proctoring snapshots. Frames are enqueued onto the
// observation stream; a worker pool runs perception off the hot path and
// pushes results back through the user's observation address.
func (h *StreamHandler) ObservationWS(c *gin.Context) {
	s, wc, ok := h.open(c, hub.ChannelObservation)
	if !ok {
		return
	}
	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()
	defer h.manager.Close(context.Background(), s)

	addr := hub.UserAddress(s.UserID, hub.ChannelObservation)
	if err := h.bridge(ctx, s, wc, addr); err != nil {
		h.log.WithError(err).WithField("session_id", s.ID).Error("observation bridge failed")
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
		if in.Kind != protocol.KindImageFrame {
			_ = wc.writeJSON(protocol.UnknownKindError(in.Kind, wallClock()))
			continue
		}
		if in.Frame() == "" {
			_ = wc.writeJSON(protocol.NewErrorEvent("MISSING_IMAGE", "image_data is required", wallClock()))
			continue
		}

		examID := in.ExamID
		if examID == "" {
			examID = s.ExamID
		}

		err := h.redis.XAdd(ctx, &redis.XAddArgs{
			Stream: observation.FrameStream,
			Values: map[string]any{
				"user_id":    s.UserID,
				"exam_id":    examID,
				"request_id": in.ID,
				"image_data": in.Frame(),
				"ts_unix":    strconv.FormatInt(time.Now().UTC().Unix(), 10),
			},
		}).Err()
		if err != nil {
			h.log.WithError(err).WithField("session_id", s.ID).Warn("observation enqueue failed")
			_ = wc.writeJSON(protocol.NewErrorEvent("UNAVAILABLE", "failed to enqueue frame", wallClock()))
		}
	}
}
