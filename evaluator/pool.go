package evaluator

import (
	"fmt"
	"io"
	"sync/atomic"
)

// BackendPool round-robins Infer calls across a fixed set of backends,
// letting several independent ONNX sessions (and, if the model was
// exported with CUDA, several GPU streams) serve concurrent search
// workers without any single session becoming a bottleneck.
type BackendPool struct {
	backends []Backend
	next     atomic.Uint64
}

// NewBackendPool wraps a non-empty slice of backends in a pool.
func NewBackendPool(backends []Backend) (*BackendPool, error) {
	if len(backends) == 0 {
		return nil, fmt.Errorf("backend pool: at least one backend required")
	}
	return &BackendPool{backends: backends}, nil
}

// NewONNXBackendPool creates n independent ONNXBackend sessions under cfg
// and pools them, the way NewOnnxClientPoolWithConfig does.
func NewONNXBackendPool(cfg ONNXBackendConfig, n int) (*BackendPool, error) {
	if n <= 0 {
		n = 1
	}
	backends := make([]Backend, 0, n)
	for i := 0; i < n; i++ {
		b, err := NewONNXBackend(cfg)
		if err != nil {
			for _, prior := range backends {
				prior.(*ONNXBackend).Close()
			}
			return nil, fmt.Errorf("create onnx backend %d/%d: %w", i+1, n, err)
		}
		backends = append(backends, b)
	}
	return NewBackendPool(backends)
}

// Infer implements Backend by dispatching to the next backend in
// round-robin order.
func (p *BackendPool) Infer(planes []float32) ([]float32, float32, error) {
	idx := (p.next.Add(1) - 1) % uint64(len(p.backends))
	return p.backends[idx].Infer(planes)
}

// Close closes every pooled backend that implements io.Closer-like
// semantics (ONNXBackend does), returning the first error encountered.
func (p *BackendPool) Close() error {
	var firstErr error
	for _, b := range p.backends {
		if closer, ok := b.(io.Closer); ok {
			if err := closer.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
