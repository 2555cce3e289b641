package speech

import (
	"encoding/binary"
	"math"
)

// Coarse signal labels attached to every transcript event.
const (
	StatusGood             = "good"
	StatusQuiet            = "quiet"
	StatusVeryQuiet        = "very_quiet"
	StatusLowSignal        = "low_signal"
	StatusInsufficientData = "insufficient_data"
	StatusNoSamples        = "no_samples"
	StatusAnalysisError    = "analysis_error"
)

// clippingFloor is near the int16 ceiling; anything at or above it is
// treated as clipped capture.
const clippingFloor = 32760

// Quality is a per-sub-chunk signal snapshot pushed alongside transcripts so
// the client can surface microphone problems while the candidate speaks.
type Quality struct {
	Status       string  `json:"status"`
	MaxAmplitude int     `json:"max_amplitude"`
	AvgAmplitude float64 `json:"avg_amplitude"`
	RMS          float64 `json:"rms"`
	SampleCount  int     `json:"sample_count"`
	Clipping     bool    `json:"clipping"`
}

// Analyze inspects a raw PCM sub-chunk as little-endian signed 16-bit mono
// samples. It never fails: chunks too small to hold a sample report
// insufficient_data, and an internal fault degrades to analysis_error.
func Analyze(chunk []byte) (q Quality) {
	defer func() {
		if r := recover(); r != nil {
			q = Quality{Status: StatusAnalysisError}
		}
	}()

	if len(chunk) < 2 {
		return Quality{Status: StatusInsufficientData}
	}

	n := len(chunk) / 2
	if n == 0 {
		return Quality{Status: StatusNoSamples}
	}

	var (
		maxAmp    int
		sumAbs    int64
		sumSquare float64
	)
	for i := 0; i+1 < len(chunk); i += 2 {
		s := int(int16(binary.LittleEndian.Uint16(chunk[i : i+2])))
		abs := s
		if abs < 0 {
			abs = -abs
		}
		if abs > maxAmp {
			maxAmp = abs
		}
		sumAbs += int64(abs)
		sumSquare += float64(s) * float64(s)
	}

	avg := float64(sumAbs) / float64(n)
	rms := math.Sqrt(sumSquare / float64(n))

	status := StatusGood
	switch {
	case maxAmp < 100:
		status = StatusVeryQuiet
	case maxAmp < 500:
		status = StatusQuiet
	case avg < 50:
		status = StatusLowSignal
	}

	return Quality{
		Status:       status,
		MaxAmplitude: maxAmp,
		AvgAmplitude: avg,
		RMS:          rms,
		SampleCount:  n,
		Clipping:     maxAmp >= clippingFloor,
	}
}
