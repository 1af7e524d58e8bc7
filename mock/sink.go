package mock

import (
	"context"
	"sync"

	"github.com/use-agent/postwatch/sink"
)

var _ sink.Sink = (*Sink)(nil)

// Sink records writes in memory. WriteFn, when set, decides the error.
type Sink struct {
	WriteFn func(ctx context.Context, path string, data []byte) error

	mu    sync.Mutex
	files map[string][]byte
}

func (s *Sink) Write(ctx context.Context, path string, data []byte) error {
	if s.WriteFn != nil {
		if err := s.WriteFn(ctx, path, data); err != nil {
			return err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.files == nil {
		s.files = make(map[string][]byte)
	}
	s.files[path] = data
	return nil
}

// Files returns a copy of everything written so far.
func (s *Sink) Files() map[string][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string][]byte, len(s.files))
	for k, v := range s.files {
		out[k] = v
	}
	return out
}
