package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TranscriptEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "proctor_transcript_events_total",
		Help: "Transcript events emitted by the speech decoder, by kind.",
	}, []string{"kind"})

	AudioBytesProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "proctor_audio_bytes_processed_total",
		Help: "PCM bytes drained from per-session audio buffers.",
	})

	FramesAnalyzed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "proctor_frames_analyzed_total",
		Help: "Video frames run through the perception dispatcher, by outcome.",
	}, []string{"outcome"})

	FrameAnalyzeSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "proctor_frame_analyze_seconds",
		Help:    "Wall-clock duration of one full frame perception pass.",
		Buckets: prometheus.DefBuckets,
	})

	PublishFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "proctor_publish_failures_total",
		Help: "Failed pushes to the pub/sub fabric.",
	})

	ObservationAppendFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "proctor_observation_append_failures_total",
		Help: "Swallowed observation persistence failures.",
	})

	InterviewGenerations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "proctor_interview_generations_total",
		Help: "Adaptive interview question generation attempts, by result.",
	}, []string{"result"})

	ActiveSessions = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "proctor_active_sessions",
		Help: "Live websocket sessions, by channel kind.",
	}, []string{"channel"})
)
