package evaluator

import (
	"fmt"
	"sync"
	"time"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/goishi/deepgo/board"
	"github.com/goishi/deepgo/features"
)

var ortInitOnce sync.Once
var ortInitErr error

func ensureRuntimeInitialized() error {
	ortInitOnce.Do(func() {
		ortInitErr = ort.InitializeEnvironment()
	})
	return ortInitErr
}

// ONNXBackendConfig configures one ONNXBackend session and its batching
// behavior.
type ONNXBackendConfig struct {
	ModelPath    string
	BatchSize    int
	BatchTimeout time.Duration
	UseCUDA      bool
}

type onnxRequest struct {
	planes   []float32
	response chan onnxResponse
}

type onnxResponse struct {
	policy []float32
	value  float32
	err    error
}

// ONNXBackend runs the policy/value network via onnxruntime_go, batching
// concurrent Infer calls the way executor/inference/onnx.go's OnnxClient
// batches requests: a buffered channel feeds a single goroutine that
// accumulates up to BatchSize requests (or waits at most BatchTimeout)
// before running one session.Run call and fanning results back out.
type ONNXBackend struct {
	cfg          ONNXBackendConfig
	session      *ort.DynamicAdvancedSession
	requestsChan chan onnxRequest
	closeOnce    sync.Once
	done         chan struct{}
}

// NewONNXBackend loads the model at cfg.ModelPath and starts its batching
// loop. Callers must call Close when finished.
func NewONNXBackend(cfg ONNXBackendConfig) (*ONNXBackend, error) {
	if err := ensureRuntimeInitialized(); err != nil {
		return nil, fmt.Errorf("initialize onnxruntime environment: %w", err)
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 8
	}
	if cfg.BatchTimeout <= 0 {
		cfg.BatchTimeout = 5 * time.Millisecond
	}

	opts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("create onnx session options: %w", err)
	}
	defer opts.Destroy()

	if cfg.UseCUDA {
		cudaOpts, cudaErr := ort.NewCUDAProviderOptions()
		if cudaErr == nil {
			if err := opts.AppendExecutionProviderCUDA(cudaOpts); err != nil {
				// CUDA is best-effort; fall back to CPU silently the way
				// executor/inference/onnx.go does when the provider is
				// unavailable in this build.
			}
			cudaOpts.Destroy()
		}
	}

	session, err := ort.NewDynamicAdvancedSession(
		cfg.ModelPath,
		[]string{"input"},
		[]string{"policy", "value"},
		opts,
	)
	if err != nil {
		return nil, fmt.Errorf("create onnx session %q: %w", cfg.ModelPath, err)
	}

	b := &ONNXBackend{
		cfg:          cfg,
		session:      session,
		requestsChan: make(chan onnxRequest, cfg.BatchSize*4),
		done:         make(chan struct{}),
	}
	go b.batchLoop()
	return b, nil
}

// Infer implements Backend by enqueueing planes onto the batching loop
// and blocking for that request's slice of the batch result.
func (b *ONNXBackend) Infer(planes []float32) ([]float32, float32, error) {
	resp := make(chan onnxResponse, 1)
	b.requestsChan <- onnxRequest{planes: planes, response: resp}
	r := <-resp
	return r.policy, r.value, r.err
}

func (b *ONNXBackend) batchLoop() {
	ticker := time.NewTicker(b.cfg.BatchTimeout)
	defer ticker.Stop()

	var batch []onnxRequest
	for {
		select {
		case req := <-b.requestsChan:
			batch = append(batch, req)
			if len(batch) >= b.cfg.BatchSize {
				b.runBatch(batch)
				batch = nil
			}
		case <-ticker.C:
			if len(batch) > 0 {
				b.runBatch(batch)
				batch = nil
			}
		case <-b.done:
			b.failBatch(batch, fmt.Errorf("onnx backend closed"))
			return
		}
	}
}

func (b *ONNXBackend) runBatch(batch []onnxRequest) {
	n := len(batch)
	inputShape := ort.NewShape(int64(n), int64(features.Planes), int64(board.Size), int64(board.Size))
	inputData := make([]float32, n*features.Size)
	for i, req := range batch {
		copy(inputData[i*features.Size:(i+1)*features.Size], req.planes)
	}

	inputTensor, err := ort.NewTensor(inputShape, inputData)
	if err != nil {
		b.failBatch(batch, fmt.Errorf("build onnx input tensor: %w", err))
		return
	}
	defer inputTensor.Destroy()

	policyShape := ort.NewShape(int64(n), int64(board.NumVertices+1))
	policyTensor, err := ort.NewEmptyTensor[float32](policyShape)
	if err != nil {
		b.failBatch(batch, fmt.Errorf("build onnx policy output tensor: %w", err))
		return
	}
	defer policyTensor.Destroy()

	valueShape := ort.NewShape(int64(n), 1)
	valueTensor, err := ort.NewEmptyTensor[float32](valueShape)
	if err != nil {
		b.failBatch(batch, fmt.Errorf("build onnx value output tensor: %w", err))
		return
	}
	defer valueTensor.Destroy()

	if err := b.session.Run([]ort.Value{inputTensor}, []ort.Value{policyTensor, valueTensor}); err != nil {
		b.failBatch(batch, fmt.Errorf("run onnx session: %w", err))
		return
	}

	policyData := policyTensor.GetData()
	valueData := valueTensor.GetData()
	perMove := board.NumVertices + 1
	for i, req := range batch {
		policy := make([]float32, perMove)
		copy(policy, policyData[i*perMove:(i+1)*perMove])
		req.response <- onnxResponse{policy: policy, value: valueData[i]}
	}
}

func (b *ONNXBackend) failBatch(batch []onnxRequest, err error) {
	for _, req := range batch {
		req.response <- onnxResponse{err: err}
	}
}

// Close stops the batching loop and releases the onnxruntime session.
func (b *ONNXBackend) Close() error {
	b.closeOnce.Do(func() {
		close(b.done)
	})
	return b.session.Destroy()
}
