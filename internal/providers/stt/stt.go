package stt

import "context"

// FinalResult is a confirmed utterance with its confidence score.
type FinalResult struct {
	Text       string
	Confidence float64
}

// Recognizer is one incremental speech-recognition session. A session is
// owned by exactly one connection and is not safe for concurrent feeds;
// sub-chunks must arrive in stream order.
type Recognizer interface {
	// AcceptWaveform feeds one PCM sub-chunk and reports whether a complete
	// utterance has been assembled.
	AcceptWaveform(chunk []byte) (bool, error)
	// Result returns the pending final utterance and implicitly resets the
	// utterance boundary.
	Result() FinalResult
	// PartialResult returns the best current hypothesis, superseding any
	// previous partial.
	PartialResult() string
	// Reset discards recognition state for an explicit capture restart.
	Reset() error
	Close() error
}

// Provider creates per-connection recognizers against one backend.
type Provider interface {
	NewRecognizer(ctx context.Context, language string) (Recognizer, error)
	Close() error
}
