package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	mongorepo "github.com/hireloop/proctor/internal/repositories/mongo"
	"github.com/hireloop/proctor/internal/services"
	"github.com/hireloop/proctor/internal/utils"
)

type SessionHandler struct {
	sessions    mongorepo.SessionRepository
	transcripts services.TranscriptService
}

func NewSessionHandler(sessions mongorepo.SessionRepository, transcripts services.TranscriptService) *SessionHandler {
	return &SessionHandler{sessions: sessions, transcripts: transcripts}
}

func (h *SessionHandler) Get(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	sess, err := h.sessions.GetBySessionID(c.Request.Context(), c.Param("session_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	if sess.UserID != userID {
		writeError(c, utils.E(utils.CodeForbidden, "SessionHandler.Get", "forbidden", nil))
		return
	}

	c.JSON(http.StatusOK, sess)
}

func (h *SessionHandler) ListActive(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	out, err := h.sessions.ListActiveByUser(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessions": out})
}

func (h *SessionHandler) Transcripts(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	sessionID := c.Param("session_id")
	sess, err := h.sessions.GetBySessionID(c.Request.Context(), sessionID)
	if err != nil {
		writeError(c, err)
		return
	}
	if sess.UserID != userID {
		writeError(c, utils.E(utils.CodeForbidden, "SessionHandler.Transcripts", "forbidden", nil))
		return
	}

	limit, _ := strconv.ParseInt(c.Query("limit"), 10, 64)
	out, err := h.transcripts.ListBySession(c.Request.Context(), sessionID, limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transcripts": out})
}
