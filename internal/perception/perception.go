package perception

import "image"

// Detection is one labeled hit from a detector. BBox is pixel coordinates
// [x1, y1, x2, y2] when the detector localizes; classifiers leave it nil.
type Detection struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence,omitempty"`
	BBox       []int   `json:"bbox,omitempty"`
}

// Detector runs one model family over a decoded frame. Implementations must
// be safe for concurrent Detect calls; the dispatcher fans all three out
// against the same frame.
type Detector interface {
	Detect(img image.Image) ([]Detection, error)
}

// Registry holds the process-lifetime model set. Models are loaded once at
// startup and injected; detectors are never constructed per frame.
type Registry struct {
	Emotions Detector
	Attire   Detector
	Gestures Detector
}

func (r *Registry) Close() {
	for _, d := range []Detector{r.Emotions, r.Attire, r.Gestures} {
		if c, ok := d.(interface{ Close() }); ok && c != nil {
			c.Close()
		}
	}
}

// Result is one frame's combined perception output. A failed detector
// contributes an empty list, never an error for the whole frame; Err is set
// only when the frame itself could not be decoded.
type Result struct {
	Emotions []Detection `json:"emotions"`
	Clothing []Detection `json:"clothing"`
	Gestures []Detection `json:"hand_gestures"`
	Err      string      `json:"error,omitempty"`
}
