package perception

import (
	"math"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/hireloop/proctor/internal/utils"
)

var ortInit sync.Once

// InitRuntime prepares the shared ONNX Runtime environment. Call once at
// process start before loading any model; libraryPath may be empty when the
// runtime shared object is already on the loader path.
func InitRuntime(libraryPath string) error {
	const op = "perception.InitRuntime"

	var err error
	ortInit.Do(func() {
		if libraryPath != "" {
			ort.SetSharedLibraryPath(libraryPath)
		}
		err = ort.InitializeEnvironment()
	})
	if err != nil {
		return utils.E(utils.CodeUnavailable, op, "onnxruntime environment init failed", err)
	}
	return nil
}

func ShutdownRuntime() {
	_ = ort.DestroyEnvironment()
}

func newSession(modelPath string, inputs, outputs []string) (*ort.DynamicAdvancedSession, error) {
	const op = "perception.newSession"

	opts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, utils.E(utils.CodeUnavailable, op, "session options", err)
	}
	defer opts.Destroy()

	if err := opts.SetGraphOptimizationLevel(ort.GraphOptimizationLevelEnableAll); err != nil {
		return nil, utils.E(utils.CodeUnavailable, op, "graph optimization level", err)
	}
	// 0 = all available cores; the inference pool bounds concurrency above us.
	_ = opts.SetIntraOpNumThreads(0)

	sess, err := ort.NewDynamicAdvancedSession(modelPath, inputs, outputs, opts)
	if err != nil {
		return nil, utils.E(utils.CodeUnavailable, op, "load model "+modelPath, err)
	}
	return sess, nil
}

// runFloat32 executes a single-input session and copies out every float32
// output before the backing tensors are destroyed.
func runFloat32(sess *ort.DynamicAdvancedSession, input []float32, shape ort.Shape, nOutputs int) ([][]float32, [][]int64, error) {
	const op = "perception.runFloat32"

	in, err := ort.NewTensor(shape, input)
	if err != nil {
		return nil, nil, utils.E(utils.CodeInternal, op, "input tensor", err)
	}
	defer in.Destroy()

	outputs := make([]ort.Value, nOutputs)
	if err := sess.Run([]ort.Value{in}, outputs); err != nil {
		return nil, nil, utils.E(utils.CodeInternal, op, "inference failed", err)
	}

	data := make([][]float32, nOutputs)
	shapes := make([][]int64, nOutputs)
	for i, out := range outputs {
		t, ok := out.(*ort.Tensor[float32])
		if !ok {
			out.Destroy()
			return nil, nil, utils.E(utils.CodeInternal, op, "unexpected output tensor type", nil)
		}
		src := t.GetData()
		cp := make([]float32, len(src))
		copy(cp, src)
		data[i] = cp
		shapes[i] = append([]int64(nil), t.GetShape()...)
		t.Destroy()
	}
	return data, shapes, nil
}

func softmax(logits []float32) []float64 {
	maxv := float64(math.Inf(-1))
	for _, v := range logits {
		if float64(v) > maxv {
			maxv = float64(v)
		}
	}
	var sum float64
	out := make([]float64, len(logits))
	for i, v := range logits {
		out[i] = math.Exp(float64(v) - maxv)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}

func argmax(p []float64) (int, float64) {
	best, bestV := -1, math.Inf(-1)
	for i, v := range p {
		if v > bestV {
			best, bestV = i, v
		}
	}
	return best, bestV
}
