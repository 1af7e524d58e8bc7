// Package mock provides function-field fakes of the postwatch interfaces.
// A nil function field behaves as "nothing there".
package mock

import (
	"context"
	"time"

	"github.com/use-agent/postwatch/page"
)

var _ page.Handle = (*Page)(nil)

// Page is a mock implementation of page.Handle.
type Page struct {
	NavigateFn        func(ctx context.Context, url string) (string, error)
	URLFn             func(ctx context.Context) string
	CountFn           func(ctx context.Context, p page.Probe) (int, error)
	VisibleFn         func(ctx context.Context, p page.Probe) (bool, error)
	TextFn            func(ctx context.Context, p page.Probe, timeout time.Duration) page.Read
	AttributeFn       func(ctx context.Context, p page.Probe, name string) page.Read
	ClickFn           func(ctx context.Context, p page.Probe) error
	ScreenshotFn      func(ctx context.Context) ([]byte, error)
	FetchViaSessionFn func(ctx context.Context, url string, headers map[string]string) ([]byte, error)
	BrowserPropertyFn func(ctx context.Context, name string) (string, error)
}

func (m *Page) Navigate(ctx context.Context, url string) (string, error) {
	if m.NavigateFn == nil {
		return url, nil
	}
	return m.NavigateFn(ctx, url)
}

func (m *Page) URL(ctx context.Context) string {
	if m.URLFn == nil {
		return ""
	}
	return m.URLFn(ctx)
}

func (m *Page) Count(ctx context.Context, p page.Probe) (int, error) {
	if m.CountFn == nil {
		return 0, nil
	}
	return m.CountFn(ctx, p)
}

func (m *Page) Visible(ctx context.Context, p page.Probe) (bool, error) {
	if m.VisibleFn == nil {
		return false, nil
	}
	return m.VisibleFn(ctx, p)
}

func (m *Page) Text(ctx context.Context, p page.Probe, timeout time.Duration) page.Read {
	if m.TextFn == nil {
		return page.NotFoundRead(nil)
	}
	return m.TextFn(ctx, p, timeout)
}

func (m *Page) Attribute(ctx context.Context, p page.Probe, name string) page.Read {
	if m.AttributeFn == nil {
		return page.NotFoundRead(nil)
	}
	return m.AttributeFn(ctx, p, name)
}

func (m *Page) Click(ctx context.Context, p page.Probe) error {
	if m.ClickFn == nil {
		return nil
	}
	return m.ClickFn(ctx, p)
}

func (m *Page) Screenshot(ctx context.Context) ([]byte, error) {
	if m.ScreenshotFn == nil {
		return []byte("png"), nil
	}
	return m.ScreenshotFn(ctx)
}

func (m *Page) FetchViaSession(ctx context.Context, url string, headers map[string]string) ([]byte, error) {
	if m.FetchViaSessionFn == nil {
		return nil, nil
	}
	return m.FetchViaSessionFn(ctx, url, headers)
}

func (m *Page) BrowserProperty(ctx context.Context, name string) (string, error) {
	if m.BrowserPropertyFn == nil {
		return "", nil
	}
	return m.BrowserPropertyFn(ctx, name)
}
