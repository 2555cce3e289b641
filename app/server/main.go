package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"google.golang.org/api/option"

	"github.com/hireloop/proctor/config"
	"github.com/hireloop/proctor/internal/api/handlers"
	"github.com/hireloop/proctor/internal/api/middleware"
	"github.com/hireloop/proctor/internal/api/routes"
	"github.com/hireloop/proctor/internal/cache"
	"github.com/hireloop/proctor/internal/hub"
	"github.com/hireloop/proctor/internal/interview"
	"github.com/hireloop/proctor/internal/logger"
	"github.com/hireloop/proctor/internal/models"
	"github.com/hireloop/proctor/internal/observation"
	"github.com/hireloop/proctor/internal/perception"
	"github.com/hireloop/proctor/internal/providers/llm"
	"github.com/hireloop/proctor/internal/providers/stt"
	mongorepo "github.com/hireloop/proctor/internal/repositories/mongo"
	"github.com/hireloop/proctor/internal/repositories/postgres"
	"github.com/hireloop/proctor/internal/services"
	"github.com/hireloop/proctor/internal/session"
	"github.com/hireloop/proctor/internal/workers"
)

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func main() {
	_ = godotenv.Load()
	log := logger.New()

	if err := config.InitMongo(); err != nil {
		log.Fatalf("MongoDB init error: %v", err)
	}
	if err := config.EnsureMongoIndexes(); err != nil {
		log.Fatalf("MongoDB index error: %v", err)
	}
	if err := config.InitPostgres(); err != nil {
		log.Fatalf("PostgreSQL init error: %v", err)
	}
	if err := config.InitRedis(); err != nil {
		log.Fatalf("Redis init error: %v", err)
	}
	log.Info("datastores connected")

	if err := config.PostgresDB.Exec("CREATE EXTENSION IF NOT EXISTS vector").Error; err != nil {
		log.Fatalf("pgvector extension error: %v", err)
	}
	if err := config.PostgresDB.AutoMigrate(
		&models.ApplicationExam{},
		&models.ExamQuestion{},
		&models.ExamObservation{},
		&models.InterviewQuestion{},
		&models.InterviewResponse{},
	); err != nil {
		log.Fatalf("migration error: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Cloud providers
	var gcpOpts []option.ClientOption
	if f := os.Getenv("GOOGLE_CREDENTIALS_FILE"); f != "" {
		gcpOpts = append(gcpOpts, option.WithCredentialsFile(f))
	}

	sttProvider, err := stt.NewGoogleStreaming(ctx, gcpOpts...)
	if err != nil {
		log.Fatalf("speech client error: %v", err)
	}
	defer sttProvider.Close()

	llmProvider, err := llm.NewVertexGemini(ctx,
		os.Getenv("VERTEX_PROJECT_ID"),
		envOr("VERTEX_LOCATION", "us-central1"),
		os.Getenv("VERTEX_MODEL"),
		gcpOpts...,
	)
	if err != nil {
		log.Fatalf("vertex client error: %v", err)
	}
	defer llmProvider.Close()

	// Perception models
	if err := perception.InitRuntime(os.Getenv("ONNXRUNTIME_LIB")); err != nil {
		log.Fatalf("onnxruntime init error: %v", err)
	}
	defer perception.ShutdownRuntime()

	emotions, err := perception.NewEmotionDetector(
		os.Getenv("FACE_MODEL_PATH"),
		os.Getenv("EMOTION_MODEL_PATH"),
	)
	if err != nil {
		log.Fatalf("emotion detector error: %v", err)
	}
	attire, err := perception.NewAttireDetector(os.Getenv("ATTIRE_MODEL_PATH"))
	if err != nil {
		log.Fatalf("attire detector error: %v", err)
	}
	gestures, err := perception.NewGestureDetector(os.Getenv("GESTURE_MODEL_PATH"))
	if err != nil {
		log.Fatalf("gesture detector error: %v", err)
	}
	registry := &perception.Registry{Emotions: emotions, Attire: attire, Gestures: gestures}
	defer registry.Close()

	poolSize, _ := strconv.Atoi(envOr("WORKER_POOL_SIZE", "8"))
	pool := workers.NewPool(poolSize, log)
	defer pool.Stop()

	// Repositories
	mdb := config.MongoDatabase()
	sessionRepo := mongorepo.NewSessionRepo(mdb)
	transcriptRepo := mongorepo.NewTranscriptRepo(mdb)
	examRepo := postgres.NewExamRepo(config.PostgresDB)
	interviewRepo := postgres.NewInterviewRepo(config.PostgresDB)
	observationRepo := postgres.NewObservationRepo(config.PostgresDB)

	// Core pipeline
	pushHub := hub.NewRedisHub(config.RedisClient, log)
	transcripts := services.NewTranscriptService(transcriptRepo, 0)
	manager := session.NewManager(sessionRepo, logger.Component(log, "session"))
	dispatcher := perception.NewDispatcher(registry, pool, logger.Component(log, "perception"))
	recorder := observation.NewRecorder(observationRepo, logger.Component(log, "observation"))

	loader := interview.NewContextLoader(examRepo, interviewRepo, cache.NewRedisCache(config.RedisClient))
	driver := interview.NewDriver(loader, examRepo, interviewRepo, llmProvider, pushHub, nil,
		logger.Component(log, "interview"))
	agent := interview.NewAgent(examRepo, llmProvider, logger.Component(log, "agent"))
	batch := interview.NewBatchGenerator(examRepo, llmProvider, pushHub, logger.Component(log, "batch"))
	if v := os.Getenv("BATCH_THROTTLE"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			log.Fatalf("invalid BATCH_THROTTLE: %v", err)
		}
		batch.Throttle = d
	}

	// Stream consumers
	frameWorkers := &observation.FrameWorkerPool{
		Redis:      config.RedisClient,
		Dispatcher: dispatcher,
		Recorder:   recorder,
		Hub:        pushHub,
		Logger:     log,
	}
	if err := frameWorkers.Start(ctx); err != nil {
		log.Fatalf("frame workers error: %v", err)
	}
	turnWorkers := &interview.TurnWorkerPool{
		Redis:  config.RedisClient,
		Driver: driver,
		Logger: log,
	}
	if err := turnWorkers.Start(ctx); err != nil {
		log.Fatalf("turn workers error: %v", err)
	}

	// HTTP
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(log))
	routes.RegisterRoutes(r, routes.Deps{
		Session: handlers.NewSessionHandler(sessionRepo, transcripts),
		Exam: handlers.NewExamHandler(examRepo, interviewRepo, observationRepo,
			agent, batch, config.RedisClient, logger.Component(log, "exam")),
		Stream: handlers.NewStreamHandler(manager, pushHub, sttProvider, transcripts,
			config.RedisClient, pool, logger.Component(log, "stream")),
	})

	srv := &http.Server{
		Addr:    ":" + envOr("PORT", "8080"),
		Handler: r,
	}
	go func() {
		log.WithField("addr", srv.Addr).Info("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("shutdown incomplete")
	}
}
