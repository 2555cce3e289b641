package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/hireloop/proctor/internal/hub"
	"github.com/hireloop/proctor/internal/metrics"
	"github.com/hireloop/proctor/internal/providers/stt"
	"github.com/hireloop/proctor/internal/services"
	"github.com/hireloop/proctor/internal/session"
	"github.com/hireloop/proctor/internal/workers"
)

const readDeadline = 60 * time.Second

// StreamHandler owns the websocket endpoints. Every channel follows the same
// shape: resolve identity, accept a session, bridge the hub subscription onto
// the socket, then run the channel's read loop until the peer goes away.
type StreamHandler struct {
	manager     *session.Manager
	hub         hub.Hub
	stt         stt.Provider
	transcripts services.TranscriptService
	redis       *redis.Client
	pool        *workers.Pool
	log         *logrus.Entry
	upgrader    websocket.Upgrader
}

func NewStreamHandler(
	manager *session.Manager,
	h hub.Hub,
	sttProvider stt.Provider,
	transcripts services.TranscriptService,
	rdb *redis.Client,
	pool *workers.Pool,
	log *logrus.Entry,
) *StreamHandler {
	return &StreamHandler{
		manager:     manager,
		hub:         h,
		stt:         sttProvider,
		transcripts: transcripts,
		redis:       rdb,
		pool:        pool,
		log:         log,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true }, // TODO: restrict origin in prod
		},
	}
}

type wsConn struct {
	c  *websocket.Conn
	mu sync.Mutex
}

func (w *wsConn) writeText(b []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.c.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return w.c.WriteMessage(websocket.TextMessage, b)
}

func (w *wsConn) writeJSON(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return w.writeText(b)
}

// open authenticates and upgrades the request. The exam a stream belongs to
// rides along as a query parameter since upgrade requests carry no body.
func (h *StreamHandler) open(c *gin.Context, ch hub.Channel) (*session.Session, *wsConn, bool) {
	userID, ok := requireUserID(c)
	if !ok {
		return nil, nil, false
	}

	s, err := h.manager.Accept(c.Request.Context(), userID, c.Query("exam_id"), ch)
	if err != nil {
		writeError(c, err)
		return nil, nil, false
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// upgrade already wrote response in most cases
		h.manager.Close(c.Request.Context(), s)
		return nil, nil, false
	}

	wc := &wsConn{c: conn}
	s.OnClose(func() { _ = conn.Close() })

	conn.SetReadDeadline(time.Now().Add(readDeadline))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readDeadline))
	})
	return s, wc, true
}

// bridge forwards hub pushes for addr onto the socket until the session
// closes. Payloads are forwarded as-is; publishers emit full wire frames.
func (h *StreamHandler) bridge(ctx context.Context, s *session.Session, wc *wsConn, addr string) error {
	msgs, cancel, err := h.hub.Subscribe(ctx, addr)
	if err != nil {
		return err
	}
	s.OnClose(cancel)

	go func() {
		for b := range msgs {
			if err := wc.writeText(b); err != nil {
				h.manager.Close(context.Background(), s)
				return
			}
		}
	}()
	return nil
}

func (h *StreamHandler) publish(ctx context.Context, addr string, payload any) {
	if err := h.hub.Publish(ctx, addr, payload); err != nil {
		metrics.PublishFailures.Inc()
		h.log.WithError(err).WithField("addr", addr).Warn("hub publish failed")
	}
}

func wallClock() float64 {
	return float64(time.Now().UnixNano()) / 1e9
}
