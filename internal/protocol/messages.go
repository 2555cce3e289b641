package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/hireloop/proctor/internal/speech"
	"github.com/hireloop/proctor/internal/utils"
)

// Kind discriminates inbound frames. Clients send it as "type", with
// "action" tolerated as a legacy alias.
type Kind string

const (
	KindStreamData   Kind = "stream_data"
	KindReset        Kind = "reset"
	KindOffer        Kind = "offer"
	KindAnswer       Kind = "answer"
	KindICECandidate Kind = "ice_candidate"
	KindJoin         Kind = "join"
	KindLeave        Kind = "leave"
	KindImageFrame   Kind = "image_frame"
	KindNotify       Kind = "notify"
)

// Inbound is one parsed client frame. Only the fields for its Kind are
// populated; Raw always holds the effective payload for passthrough.
type Inbound struct {
	Kind Kind

	// stream_data
	Data string `json:"data"`

	// image frames: video relay uses "image", observation uses
	// "image_data" plus correlation ids
	Image     string `json:"image"`
	ImageData string `json:"image_data"`
	ID        string `json:"id"`
	ExamID    string `json:"exam_id"`

	// notification/interview passthrough
	Message json.RawMessage `json:"message"`

	Raw json.RawMessage `json:"-"`
}

// Frame returns whichever image field the client used.
func (in *Inbound) Frame() string {
	if in.Image != "" {
		return in.Image
	}
	return in.ImageData
}

type envelope struct {
	Type    Kind            `json:"type"`
	Action  Kind            `json:"action"`
	Message json.RawMessage `json:"message"`
}

// ParseInbound decodes a client frame. Frames may wrap the real payload in a
// "message" object carrying its own type; defaultKind applies when no
// discriminator is present (the audio channel treats bare frames as
// stream_data).
func ParseInbound(raw []byte, defaultKind Kind) (*Inbound, error) {
	const op = "protocol.ParseInbound"

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, utils.E(utils.CodeInvalidArgument, op, "invalid JSON frame", err)
	}

	kind := env.Type
	if kind == "" {
		kind = env.Action
	}

	payload := raw
	if len(env.Message) > 0 && env.Message[0] == '{' {
		var inner envelope
		if err := json.Unmarshal(env.Message, &inner); err == nil {
			if k := inner.Type; k != "" {
				kind = k
				payload = env.Message
			} else if k := inner.Action; k != "" {
				kind = k
				payload = env.Message
			}
		}
	}
	if kind == "" {
		kind = defaultKind
	}

	var in Inbound
	if err := json.Unmarshal(payload, &in); err != nil {
		return nil, utils.E(utils.CodeInvalidArgument, op, "invalid frame payload", err)
	}
	in.Kind = kind
	in.Raw = append(json.RawMessage(nil), payload...)
	return &in, nil
}

// Outbound error frame; processing errors never drop the connection.
type ErrorEvent struct {
	ResponseType string  `json:"responseType"`
	Error        string  `json:"error"`
	ErrorCode    string  `json:"error_code"`
	Timestamp    float64 `json:"timestamp"`
}

func NewErrorEvent(code, msg string, ts float64) ErrorEvent {
	return ErrorEvent{ResponseType: "error", Error: msg, ErrorCode: code, Timestamp: ts}
}

func UnknownKindError(kind Kind, ts float64) ErrorEvent {
	return NewErrorEvent("INVALID_MESSAGE_TYPE", fmt.Sprintf("Unknown message type: %s", kind), ts)
}

// AudioConfig is pushed once after an audio connection is accepted so the
// capture frontend matches the decoder's expectations.
type AudioConfig struct {
	Type   string          `json:"type"`
	Status string          `json:"status"`
	Config AudioConfigBody `json:"config"`
}

type AudioConfigBody struct {
	SampleRate        int    `json:"sample_rate"`
	BitDepth          int    `json:"bit_depth"`
	Channels          int    `json:"channels"`
	Format            string `json:"format"`
	ExpectedChunkSize int    `json:"expected_chunk_size"`
	BufferSize        int    `json:"buffer_size"`
}

func NewAudioConfig() AudioConfig {
	return AudioConfig{
		Type:   "audio_config",
		Status: "ready",
		Config: AudioConfigBody{
			SampleRate:        speech.SampleRate,
			BitDepth:          speech.BitDepth,
			Channels:          speech.Channels,
			Format:            "PCM_INT16",
			ExpectedChunkSize: speech.ChunkSize,
			BufferSize:        4096,
		},
	}
}

// Transcript is a partial_transcript or final_transcript push.
type Transcript struct {
	Type          string         `json:"type"`
	Transcription string         `json:"transcription"`
	Confidence    float64        `json:"confidence,omitempty"`
	AudioQuality  speech.Quality `json:"audio_quality"`
	Timestamp     float64        `json:"timestamp"`
	AudioChunk    string         `json:"audio_chunk"`
}

// TranscriptFromEvent converts a decoder event into its wire form, encoding
// the raw sub-chunk alongside the text.
func TranscriptFromEvent(ev speech.Event, audioBase64 string) Transcript {
	t := Transcript{
		Type:          "partial_transcript",
		Transcription: ev.Text,
		AudioQuality:  ev.Quality,
		Timestamp:     float64(ev.Timestamp.UnixNano()) / 1e9,
		AudioChunk:    audioBase64,
	}
	if ev.Kind == speech.EventFinal {
		t.Type = "final_transcript"
		t.Confidence = ev.Confidence
	}
	return t
}

type ResetComplete struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func NewResetComplete() ResetComplete {
	return ResetComplete{Type: "reset_complete", Message: "Transcription state reset successfully"}
}

// Wrapped is the envelope used for server pushes relayed off the hub.
type Wrapped struct {
	Message json.RawMessage `json:"message"`
}
