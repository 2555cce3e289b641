package perception

import (
	"image"
	"math"

	ort "github.com/yalue/onnxruntime_go"
)

// emotionLabels follows the FER+ class order.
var emotionLabels = []string{
	"neutral", "happiness", "surprise", "sadness",
	"anger", "disgust", "fear", "contempt",
}

const (
	faceInputW = 320
	faceInputH = 240

	// faces smaller than this on either side are noise at webcam distance
	minFaceSide = 20

	faceScoreFloor = 0.7
	faceIoUFloor   = 0.4

	emotionInputSide = 64
)

// EmotionDetector localizes faces with a lightweight detector, then
// classifies each crop with a FER+ style classifier.
type EmotionDetector struct {
	faces    *ort.DynamicAdvancedSession
	emotions *ort.DynamicAdvancedSession
}

func NewEmotionDetector(faceModelPath, emotionModelPath string) (*EmotionDetector, error) {
	faces, err := newSession(faceModelPath, []string{"input"}, []string{"scores", "boxes"})
	if err != nil {
		return nil, err
	}
	emotions, err := newSession(emotionModelPath, []string{"Input3"}, []string{"Plus692_Output_0"})
	if err != nil {
		faces.Destroy()
		return nil, err
	}
	return &EmotionDetector{faces: faces, emotions: emotions}, nil
}

func (d *EmotionDetector) Close() {
	d.faces.Destroy()
	d.emotions.Destroy()
}

func (d *EmotionDetector) Detect(img image.Image) ([]Detection, error) {
	boxes, err := d.detectFaces(img)
	if err != nil {
		return nil, err
	}

	var out []Detection
	for _, box := range boxes {
		if box.Dx() < minFaceSide || box.Dy() < minFaceSide {
			continue
		}
		face := cropImage(img, box)
		if face == nil {
			continue
		}
		label, conf, err := d.classify(face)
		if err != nil {
			continue // one bad crop must not sink the frame
		}
		out = append(out, Detection{
			Label:      label,
			Confidence: conf,
			BBox:       []int{box.Min.X, box.Min.Y, box.Max.X, box.Max.Y},
		})
	}
	return out, nil
}

// detectFaces runs the detector at its fixed input size and maps the
// normalized boxes back onto the original frame.
func (d *EmotionDetector) detectFaces(img image.Image) ([]image.Rectangle, error) {
	tensor := chwTensor(img, faceInputW, faceInputH,
		[3]float32{127.0 / 255, 127.0 / 255, 127.0 / 255},
		[3]float32{128.0 / 255, 128.0 / 255, 128.0 / 255})

	data, shapes, err := runFloat32(d.faces,
		tensor, ort.NewShape(1, 3, faceInputH, faceInputW), 2)
	if err != nil {
		return nil, err
	}

	scores, boxes := data[0], data[1]
	n := int(shapes[0][1]) // anchors: scores [1,n,2], boxes [1,n,4]

	bounds := img.Bounds()
	w, h := float64(bounds.Dx()), float64(bounds.Dy())

	type cand struct {
		r     image.Rectangle
		score float64
	}
	var cands []cand
	for i := 0; i < n; i++ {
		score := float64(scores[i*2+1])
		if score < faceScoreFloor {
			continue
		}
		x1 := int(float64(boxes[i*4+0])*w) + bounds.Min.X
		y1 := int(float64(boxes[i*4+1])*h) + bounds.Min.Y
		x2 := int(float64(boxes[i*4+2])*w) + bounds.Min.X
		y2 := int(float64(boxes[i*4+3])*h) + bounds.Min.Y
		r := image.Rect(x1, y1, x2, y2).Intersect(bounds)
		if r.Empty() {
			continue
		}
		cands = append(cands, cand{r: r, score: score})
	}

	// greedy non-maximum suppression, highest score first
	var kept []image.Rectangle
	for len(cands) > 0 {
		best := 0
		for i := range cands {
			if cands[i].score > cands[best].score {
				best = i
			}
		}
		top := cands[best]
		kept = append(kept, top.r)
		next := cands[:0]
		for i, c := range cands {
			if i == best {
				continue
			}
			if iou(top.r, c.r) < faceIoUFloor {
				next = append(next, c)
			}
		}
		cands = next
	}
	return kept, nil
}

func (d *EmotionDetector) classify(face image.Image) (string, float64, error) {
	tensor := grayTensor(face, emotionInputSide, emotionInputSide)
	data, _, err := runFloat32(d.emotions,
		tensor, ort.NewShape(1, 1, emotionInputSide, emotionInputSide), 1)
	if err != nil {
		return "", 0, err
	}
	idx, conf := argmax(softmax(data[0]))
	if idx < 0 || idx >= len(emotionLabels) {
		return "", 0, nil
	}
	return emotionLabels[idx], conf, nil
}

func iou(a, b image.Rectangle) float64 {
	inter := a.Intersect(b)
	if inter.Empty() {
		return 0
	}
	ai := float64(inter.Dx() * inter.Dy())
	union := float64(a.Dx()*a.Dy()+b.Dx()*b.Dy()) - ai
	if union <= 0 {
		return 0
	}
	return math.Min(1, ai/union)
}
