package embed

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
)

// mockEmbedder is a test double with controllable failure and call
// accounting.
type mockEmbedder struct {
	dims     int
	fail     atomic.Bool
	calls    atomic.Int64
	mu       sync.Mutex
	batchLog []int // sizes of batches received
}

func newMockEmbedder(dims int) *mockEmbedder {
	return &mockEmbedder{dims: dims}
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := m.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (m *mockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	m.calls.Add(1)
	m.mu.Lock()
	m.batchLog = append(m.batchLog, len(texts))
	m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.fail.Load() {
		return nil, fmt.Errorf("mock provider down")
	}

	out := make([][]float32, len(texts))
	for i, text := range texts {
		v := make([]float32, m.dims)
		// Distinct, deterministic per text.
		for j := range v {
			v[j] = float32(len(text)+j) / float32(m.dims)
		}
		out[i] = v
	}
	return out, nil
}

func (m *mockEmbedder) batchSizes() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int(nil), m.batchLog...)
}

func (m *mockEmbedder) Dimensions() int                  { return m.dims }
func (m *mockEmbedder) ModelName() string                { return "mock" }
func (m *mockEmbedder) Available(_ context.Context) bool { return !m.fail.Load() }
func (m *mockEmbedder) Close() error                     { return nil }
