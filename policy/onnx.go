package policy

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/brensch/snekline/game"
	"github.com/brensch/snekline/rules"
	ort "github.com/yalue/onnxruntime_go"
)

// OnnxConfig configures a learned policy. The model takes a [1, Channels,
// Size, Size] float32 tensor and returns [1, 3] scores in rules.Actions
// order.
type OnnxConfig struct {
	ModelPath  string
	InputName  string
	OutputName string
	Grid       GridLayout
}

func DefaultOnnxConfig(modelPath string) OnnxConfig {
	return OnnxConfig{
		ModelPath:  modelPath,
		InputName:  "input",
		OutputName: "policy",
		Grid:       DefaultGridLayout,
	}
}

// Onnx runs a policy network through ONNX Runtime. It keeps one input and
// one output tensor and is not safe for concurrent use.
type Onnx struct {
	cfg     OnnxConfig
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]
}

var ortInitOnce sync.Once
var ortInitErr error

func NewOnnx(cfg OnnxConfig) (*Onnx, error) {
	if cfg.Grid.Size <= 0 || cfg.Grid.CellSize <= 0 {
		cfg.Grid = DefaultGridLayout
	}
	if cfg.InputName == "" {
		cfg.InputName = "input"
	}
	if cfg.OutputName == "" {
		cfg.OutputName = "policy"
	}
	if _, err := os.Stat(cfg.ModelPath); err != nil {
		return nil, fmt.Errorf("onnx model: %w", err)
	}

	if err := initRuntime(); err != nil {
		return nil, err
	}

	size := int64(cfg.Grid.Size)
	input, err := ort.NewTensor(ort.NewShape(1, Channels, size, size), make([]float32, cfg.Grid.Len()))
	if err != nil {
		return nil, fmt.Errorf("input tensor: %w", err)
	}
	output, err := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(len(rules.Actions))))
	if err != nil {
		input.Destroy()
		return nil, fmt.Errorf("output tensor: %w", err)
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		input.Destroy()
		output.Destroy()
		return nil, err
	}
	defer options.Destroy()
	// One inference per turn.
	_ = options.SetIntraOpNumThreads(1)
	_ = options.SetInterOpNumThreads(1)

	session, err := ort.NewAdvancedSession(cfg.ModelPath,
		[]string{cfg.InputName}, []string{cfg.OutputName},
		[]ort.Value{input}, []ort.Value{output}, options)
	if err != nil {
		input.Destroy()
		output.Destroy()
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	return &Onnx{cfg: cfg, session: session, input: input, output: output}, nil
}

func initRuntime() error {
	ortInitOnce.Do(func() {
		if p := os.Getenv("ORT_SHARED_LIBRARY_PATH"); p != "" {
			ort.SetSharedLibraryPath(p)
		} else if runtime.GOOS == "linux" {
			cwd, _ := os.Getwd()
			for _, name := range []string{"libonnxruntime.so", "libonnxruntime.so.1"} {
				abs := filepath.Join(cwd, name)
				if _, err := os.Stat(abs); err == nil {
					ort.SetSharedLibraryPath(abs)
					break
				}
			}
		}
		ortInitErr = ort.InitializeEnvironment()
	})
	if ortInitErr != nil {
		return fmt.Errorf("failed to init ort: %w", ortInitErr)
	}
	return nil
}

func (o *Onnx) Decide(ctx context.Context, snap game.Snapshot, selfID int) (rules.Action, error) {
	you, ok := snap.Snake(selfID)
	if !ok {
		return rules.Straight, nil
	}
	heading, ok := rules.Heading(you.Body)
	if !ok {
		return rules.Straight, nil
	}
	o.cfg.Grid.Encode(snap, selfID, heading, o.input.GetData())
	if err := ctx.Err(); err != nil {
		return rules.Straight, err
	}
	if err := o.session.Run(); err != nil {
		return rules.Straight, fmt.Errorf("onnx run: %w", err)
	}
	return argmax(o.output.GetData()), nil
}

func argmax(scores []float32) rules.Action {
	best := rules.Straight
	for i, s := range scores {
		if i >= len(rules.Actions) {
			break
		}
		if s > scores[best] {
			best = rules.Actions[i]
		}
	}
	return best
}

func (o *Onnx) Close() error {
	o.input.Destroy()
	o.output.Destroy()
	return o.session.Destroy()
}
