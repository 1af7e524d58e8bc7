package mock

import (
	"context"
	"sync"

	"github.com/use-agent/postwatch/api/handler"
	"github.com/use-agent/postwatch/models"
	"github.com/use-agent/postwatch/platform"
)

var _ handler.Pool = (*Pool)(nil)

// Pool is a mock implementation of handler.Pool that records requests.
type Pool struct {
	AcquireAndRunFn func(ctx context.Context, ex platform.Extractor, req models.ExtractRequest) models.Envelope
	StatsFn         func() models.PoolStats

	mu       sync.Mutex
	requests []models.ExtractRequest
}

func (m *Pool) AcquireAndRun(ctx context.Context, ex platform.Extractor, req models.ExtractRequest) models.Envelope {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()
	return m.AcquireAndRunFn(ctx, ex, req)
}

func (m *Pool) Stats() models.PoolStats {
	if m.StatsFn == nil {
		return models.PoolStats{}
	}
	return m.StatsFn()
}

// Requests returns the requests received so far, in arrival order.
func (m *Pool) Requests() []models.ExtractRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.ExtractRequest(nil), m.requests...)
}
