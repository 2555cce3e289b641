package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hireloop/proctor/internal/api/handlers"
	"github.com/hireloop/proctor/internal/api/middleware"
)

type Deps struct {
	Session *handlers.SessionHandler
	Exam    *handlers.ExamHandler
	Stream  *handlers.StreamHandler
}

func RegisterRoutes(r *gin.Engine, d Deps) {
	// Health-ish
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{"message": "pong"})
	})
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Protected routes (JWT)
	auth := r.Group("/")
	auth.Use(middleware.JWTAuth())

	auth.GET("/session/:session_id", d.Session.Get)
	auth.GET("/session/:session_id/transcripts", d.Session.Transcripts)
	auth.GET("/sessions/active", d.Session.ListActive)

	auth.GET("/exam/:exam_id", d.Exam.Get)
	auth.POST("/exam/:exam_id/start", d.Exam.Start)
	auth.POST("/exam/:exam_id/turn", d.Exam.RequestTurn)
	auth.GET("/exam/:exam_id/observations", d.Exam.Observations)
	auth.POST("/interview/response/:response_id/answer", d.Exam.Answer)

	// WebSocket (one endpoint per stream kind)
	auth.GET("/ws/audio", d.Stream.AudioWS)
	auth.GET("/ws/video", d.Stream.VideoWS)
	auth.GET("/ws/signaling", d.Stream.SignalingWS)
	auth.GET("/ws/observation", d.Stream.ObservationWS)
	auth.GET("/ws/interview", d.Stream.InterviewWS)
	auth.GET("/ws/notification", d.Stream.NotificationWS)

	// Admin-only operations
	admin := auth.Group("/admin")
	admin.Use(middleware.RequireAdmin())

	admin.POST("/exams", d.Exam.Create)
	admin.GET("/exam/:exam_id/questions", d.Exam.Questions)
	admin.POST("/exam/:exam_id/screening", d.Exam.Screen)
	admin.POST("/cv/parse", d.Exam.ParseCV)
	admin.POST("/exams/generate-batch", d.Exam.GenerateBatch)
}
