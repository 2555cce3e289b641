package perception

import (
	"image"

	ort "github.com/yalue/onnxruntime_go"
)

// fashionCategories is the Fashionpedia label set, in model class order.
var fashionCategories = []string{
	"shirt, blouse",
	"top, t-shirt, sweatshirt",
	"sweater",
	"cardigan",
	"jacket",
	"vest",
	"pants",
	"shorts",
	"skirt",
	"coat",
	"dress",
	"jumpsuit",
	"cape",
	"glasses",
	"hat",
	"headband, head covering, hair accessory",
	"tie",
	"glove",
	"watch",
	"belt",
	"leg warmer",
	"tights, stockings",
	"sock",
	"shoe",
	"bag, wallet",
	"scarf",
	"umbrella",
	"hood",
	"collar",
	"lapel",
	"epaulette",
	"sleeve",
	"pocket",
	"neckline",
	"buckle",
	"zipper",
	"applique",
	"bead",
	"bow",
	"flower",
	"fringe",
	"ribbon",
	"rivet",
	"ruffle",
	"sequin",
	"tassel",
}

const (
	attireInputSide = 512

	// queries whose best class probability is at or below the floor are
	// treated as background
	attireConfidenceFloor = 0.6
)

// AttireDetector runs a DETR-style clothing detector over the whole frame.
// The last class of the logits head is the no-object sentinel.
type AttireDetector struct {
	sess *ort.DynamicAdvancedSession
}

func NewAttireDetector(modelPath string) (*AttireDetector, error) {
	sess, err := newSession(modelPath, []string{"pixel_values"}, []string{"logits", "pred_boxes"})
	if err != nil {
		return nil, err
	}
	return &AttireDetector{sess: sess}, nil
}

func (d *AttireDetector) Close() { d.sess.Destroy() }

func (d *AttireDetector) Detect(img image.Image) ([]Detection, error) {
	tensor := chwTensor(img, attireInputSide, attireInputSide,
		[3]float32{0.485, 0.456, 0.406},
		[3]float32{0.229, 0.224, 0.225})

	data, shapes, err := runFloat32(d.sess,
		tensor, ort.NewShape(1, 3, attireInputSide, attireInputSide), 2)
	if err != nil {
		return nil, err
	}

	return attireDetections(data[0], int(shapes[0][1]), int(shapes[0][2])), nil
}

func attireDetections(logits []float32, queries, classes int) []Detection {
	var out []Detection
	for q := 0; q < queries; q++ {
		probs := softmax(logits[q*classes : (q+1)*classes])
		label, score := argmax(probs[:classes-1]) // drop no-object
		if score <= attireConfidenceFloor {
			continue
		}
		if label >= len(fashionCategories) {
			continue
		}
		out = append(out, Detection{
			Label:      fashionCategories[label],
			Confidence: round3(score),
		})
	}
	return out
}

func round3(v float64) float64 {
	return float64(int(v*1000+0.5)) / 1000
}
