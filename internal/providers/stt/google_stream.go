package stt

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"

	speech "cloud.google.com/go/speech/apiv1"
	speechpb "cloud.google.com/go/speech/apiv1/speechpb"
	"google.golang.org/api/option"
)

// GoogleStreaming backs recognizers with Cloud Speech StreamingRecognize.
type GoogleStreaming struct {
	c *speech.Client

	SampleRateHz int32
}

func NewGoogleStreaming(ctx context.Context, opts ...option.ClientOption) (*GoogleStreaming, error) {
	c, err := speech.NewClient(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return &GoogleStreaming{c: c, SampleRateHz: 16000}, nil
}

func (g *GoogleStreaming) Close() error { return g.c.Close() }

// language example: "en-US", "id-ID"
func (g *GoogleStreaming) NewRecognizer(ctx context.Context, language string) (Recognizer, error) {
	if language == "" {
		language = "en-US"
	}
	r := &googleRecognizer{
		c:          g.c,
		ctx:        ctx,
		language:   language,
		sampleRate: g.SampleRateHz,
	}
	if err := r.open(); err != nil {
		return nil, err
	}
	return r, nil
}

type googleRecognizer struct {
	c          *speech.Client
	ctx        context.Context
	language   string
	sampleRate int32

	mu      sync.Mutex
	stream  speechpb.Speech_StreamingRecognizeClient
	partial string
	finals  []FinalResult
	recvErr error
	closed  bool
}

func (r *googleRecognizer) open() error {
	stream, err := r.c.StreamingRecognize(r.ctx)
	if err != nil {
		return err
	}
	cfg := &speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_StreamingConfig{
			StreamingConfig: &speechpb.StreamingRecognitionConfig{
				Config: &speechpb.RecognitionConfig{
					Encoding:                   speechpb.RecognitionConfig_LINEAR16,
					SampleRateHertz:            r.sampleRate,
					LanguageCode:               r.language,
					EnableAutomaticPunctuation: true,
				},
				InterimResults: true,
			},
		},
	}
	if err := stream.Send(cfg); err != nil {
		return err
	}

	r.mu.Lock()
	r.stream = stream
	r.recvErr = nil
	r.mu.Unlock()

	go r.recvLoop(stream)
	return nil
}

// recvLoop drains interim and final results into recognizer state until the
// stream ends.
func (r *googleRecognizer) recvLoop(stream speechpb.Speech_StreamingRecognizeClient) {
	for {
		resp, err := stream.Recv()
		if err != nil {
			r.mu.Lock()
			if r.stream == stream {
				r.recvErr = err
			}
			r.mu.Unlock()
			return
		}

		r.mu.Lock()
		for _, res := range resp.Results {
			if len(res.Alternatives) == 0 {
				continue
			}
			alt := res.Alternatives[0]
			text := strings.TrimSpace(alt.Transcript)
			if res.IsFinal {
				r.finals = append(r.finals, FinalResult{Text: text, Confidence: float64(alt.Confidence)})
				r.partial = ""
			} else {
				r.partial = text
			}
		}
		r.mu.Unlock()
	}
}

func (r *googleRecognizer) AcceptWaveform(chunk []byte) (bool, error) {
	r.mu.Lock()
	stream, recvErr, closed := r.stream, r.recvErr, r.closed
	r.mu.Unlock()

	if closed || stream == nil {
		return false, errors.New("recognizer closed")
	}
	if recvErr != nil && !errors.Is(recvErr, io.EOF) {
		return false, recvErr
	}

	req := &speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_AudioContent{AudioContent: chunk},
	}
	if err := stream.Send(req); err != nil {
		return false, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.finals) > 0, nil
}

func (r *googleRecognizer) Result() FinalResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.finals) == 0 {
		return FinalResult{}
	}
	out := r.finals[0]
	r.finals = r.finals[1:]
	return out
}

func (r *googleRecognizer) PartialResult() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.partial
}

// Reset tears the gRPC stream down and opens a fresh one; buffered partial
// and final results are discarded.
func (r *googleRecognizer) Reset() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return errors.New("recognizer closed")
	}
	if r.stream != nil {
		_ = r.stream.CloseSend()
		r.stream = nil
	}
	r.partial = ""
	r.finals = nil
	r.mu.Unlock()

	return r.open()
}

func (r *googleRecognizer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	if r.stream != nil {
		_ = r.stream.CloseSend()
		r.stream = nil
	}
	return nil
}
