package handlers

import (
	"context"
	"encoding/base64"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/hireloop/proctor/internal/hub"
	"github.com/hireloop/proctor/internal/protocol"
	"github.com/hireloop/proctor/internal/speech"
)

// AudioWS runs the streaming transcription channel. Clients send PCM chunks
// either as binary frames or as {"type":"stream_data","data":"<base64>"};
// transcripts come back through the user's audio address so other backend
// pipelines can push to the same socket.
func (h *StreamHandler) AudioWS(c *gin.Context) {
	s, wc, ok := h.open(c, hub.ChannelAudio)
	if !ok {
		return
	}
	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()
	defer h.manager.Close(context.Background(), s)

	language := c.Query("language")
	if language == "" {
		language = "en-US"
	}

	rec, err := h.stt.NewRecognizer(ctx, language)
	if err != nil {
		h.log.WithError(err).WithField("session_id", s.ID).Error("recognizer unavailable")
		_ = wc.writeJSON(protocol.NewErrorEvent("STT_UNAVAILABLE", "speech recognizer unavailable", wallClock()))
		return
	}
	dec := speech.NewDecoder(rec, h.pool, h.log.WithField("session_id", s.ID))
	s.OnClose(func() { _ = dec.Close() })

	addr := hub.UserAddress(s.UserID, hub.ChannelAudio)
	if err := h.bridge(ctx, s, wc, addr); err != nil {
		h.log.WithError(err).WithField("session_id", s.ID).Error("audio bridge failed")
		return
	}

	// the capture frontend waits for this before sending the first chunk
	_ = wc.writeJSON(protocol.NewAudioConfig())
	h.manager.Activate(s)

	for {
		mt, data, rerr := wc.c.ReadMessage()
		if rerr != nil {
			return
		}
		if !s.Active() {
			return
		}

		var chunk []byte
		switch mt {
		case websocket.BinaryMessage:
			chunk = data
		case websocket.TextMessage:
			in, perr := protocol.ParseInbound(data, protocol.KindStreamData)
			if perr != nil {
				_ = wc.writeJSON(protocol.NewErrorEvent("INVALID_JSON", "invalid JSON frame", wallClock()))
				continue
			}

			switch in.Kind {
			case protocol.KindStreamData:
				chunk, perr = base64.StdEncoding.DecodeString(in.Data)
				if perr != nil {
					_ = wc.writeJSON(protocol.NewErrorEvent("AUDIO_DECODE_ERROR", "invalid base64 audio data", wallClock()))
					continue
				}
			case protocol.KindReset:
				if err := dec.Reset(); err != nil {
					h.log.WithError(err).WithField("session_id", s.ID).Warn("decoder reset failed")
				}
				_ = wc.writeJSON(protocol.NewResetComplete())
				continue
			default:
				_ = wc.writeJSON(protocol.UnknownKindError(in.Kind, wallClock()))
				continue
			}
		default:
			continue
		}

		if len(chunk) == 0 {
			continue
		}

		events, ferr := dec.Feed(ctx, chunk)
		if ferr != nil {
			h.log.WithError(ferr).WithField("session_id", s.ID).Warn("audio chunk processing failed")
			_ = wc.writeJSON(protocol.NewErrorEvent("PROCESSING_ERROR", "failed to process audio chunk", wallClock()))
			continue
		}

		for _, ev := range events {
			tr := protocol.TranscriptFromEvent(ev, base64.StdEncoding.EncodeToString(ev.Chunk))
			h.publish(ctx, addr, tr)
			if err := h.transcripts.Record(ctx, s.ID, s.UserID, s.ExamID, ev, tr.AudioChunk); err != nil {
				h.log.WithError(err).WithField("session_id", s.ID).Warn("transcript archive failed")
			}
		}
	}
}
