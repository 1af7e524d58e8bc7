package mock

import (
	"context"
	"fmt"
	"sync"

	"github.com/use-agent/postwatch/engine"
	"github.com/use-agent/postwatch/models"
	"github.com/use-agent/postwatch/page"
	"github.com/use-agent/postwatch/platform"
)

var (
	_ engine.Launcher     = (*Launcher)(nil)
	_ engine.Session      = (*Session)(nil)
	_ engine.ProfileStore = (*ProfileStore)(nil)
	_ platform.Extractor  = (*Extractor)(nil)
)

// Launcher is a mock implementation of engine.Launcher.
type Launcher struct {
	OpenFn func(ctx context.Context, spec engine.LaunchSpec) (engine.Session, error)
}

func (m *Launcher) Open(ctx context.Context, spec engine.LaunchSpec) (engine.Session, error) {
	return m.OpenFn(ctx, spec)
}

// Session is a mock implementation of engine.Session.
type Session struct {
	PageValue page.Handle
	CloseFn   func() error
}

func (m *Session) Page() page.Handle {
	if m.PageValue == nil {
		return &Page{}
	}
	return m.PageValue
}

func (m *Session) Close() error {
	if m.CloseFn == nil {
		return nil
	}
	return m.CloseFn()
}

// ProfileStore records resets and never touches the disk.
type ProfileStore struct {
	ResetFn func(dir string) error

	mu     sync.Mutex
	resets []string
}

func (m *ProfileStore) Dir(index int) string {
	return fmt.Sprintf("profiles/worker_%d", index+1)
}

func (m *ProfileStore) Ensure(string) error { return nil }

func (m *ProfileStore) Reset(dir string) error {
	m.mu.Lock()
	m.resets = append(m.resets, dir)
	m.mu.Unlock()
	if m.ResetFn != nil {
		return m.ResetFn(dir)
	}
	return nil
}

// Resets returns the directories reset so far, in order.
func (m *ProfileStore) Resets() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.resets...)
}

// Extractor is a mock implementation of platform.Extractor.
type Extractor struct {
	NameValue          string
	ExtractFn          func(ctx context.Context, h page.Handle, url string, download bool) models.Envelope
	SuspectsIdentityFn func(env *models.Envelope) bool
}

func (m *Extractor) Name() string {
	if m.NameValue == "" {
		return "mock"
	}
	return m.NameValue
}

func (m *Extractor) WebName() string { return m.Name() }

func (m *Extractor) Extract(ctx context.Context, h page.Handle, url string, download bool) models.Envelope {
	return m.ExtractFn(ctx, h, url, download)
}

func (m *Extractor) SuspectsIdentity(env *models.Envelope) bool {
	if m.SuspectsIdentityFn == nil {
		return env != nil && env.Message == models.MsgRedirectToLogin
	}
	return m.SuspectsIdentityFn(env)
}
