package perception

import (
	"image"

	ort "github.com/yalue/onnxruntime_go"
)

var gestureLabels = []string{
	"none",
	"closed_fist",
	"open_palm",
	"pointing_up",
	"thumb_down",
	"thumb_up",
	"victory",
	"i_love_you",
}

const (
	gestureInputSide       = 224
	gestureConfidenceFloor = 0.6
)

// GestureDetector classifies the dominant hand gesture in the frame.
type GestureDetector struct {
	sess *ort.DynamicAdvancedSession
}

func NewGestureDetector(modelPath string) (*GestureDetector, error) {
	sess, err := newSession(modelPath, []string{"input"}, []string{"scores"})
	if err != nil {
		return nil, err
	}
	return &GestureDetector{sess: sess}, nil
}

func (d *GestureDetector) Close() { d.sess.Destroy() }

func (d *GestureDetector) Detect(img image.Image) ([]Detection, error) {
	tensor := chwTensor(img, gestureInputSide, gestureInputSide,
		[3]float32{0.5, 0.5, 0.5},
		[3]float32{0.5, 0.5, 0.5})

	data, _, err := runFloat32(d.sess,
		tensor, ort.NewShape(1, 3, gestureInputSide, gestureInputSide), 1)
	if err != nil {
		return nil, err
	}

	idx, conf := argmax(softmax(data[0]))
	if idx < 0 || idx >= len(gestureLabels) || conf < gestureConfidenceFloor {
		return nil, nil
	}
	if gestureLabels[idx] == "none" {
		return nil, nil
	}
	return []Detection{{Label: gestureLabels[idx], Confidence: round3(conf)}}, nil
}
