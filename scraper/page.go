package scraper

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/ysmood/gson"

	"github.com/use-agent/postwatch/models"
	"github.com/use-agent/postwatch/page"
)

var _ page.Handle = (*rodPage)(nil)

// rodPage adapts a rod tab to page.Handle. Element lookups never wait: the
// readiness poller owns the waiting.
type rodPage struct {
	page    *rod.Page
	fetcher *httpFetcher
}

func (p *rodPage) Navigate(ctx context.Context, url string) (string, error) {
	pg := p.page.Context(ctx)

	// Registered before Navigate so the event is not missed.
	wait := pg.WaitNavigation(proto.PageLifecycleEventNameDOMContentLoaded)
	if err := pg.Navigate(url); err != nil {
		return "", categorizeError(err, "navigation to target URL failed")
	}
	wait()

	if landed := p.URL(ctx); landed != "" {
		return landed, nil
	}
	return url, nil
}

func (p *rodPage) URL(ctx context.Context) string {
	info, err := p.page.Context(ctx).Info()
	if err != nil {
		return ""
	}
	return info.URL
}

func (p *rodPage) Count(ctx context.Context, probe page.Probe) (int, error) {
	pg := p.page.Context(ctx)

	switch probe.Kind {
	case page.CSS:
		els, err := pg.Elements(probe.Expr)
		return len(els), err
	case page.XPath:
		els, err := pg.ElementsX(probe.Expr)
		return len(els), err
	default:
		res, err := pg.Eval(`(t) => !!document.body && document.body.innerText.includes(t)`, probe.Expr)
		if err != nil {
			return 0, err
		}
		if res.Value.Bool() {
			return 1, nil
		}
		return 0, nil
	}
}

// first returns the first match or (nil, nil) when nothing matches.
func (p *rodPage) first(ctx context.Context, probe page.Probe) (*rod.Element, error) {
	pg := p.page.Context(ctx).Sleeper(rod.NotFoundSleeper)

	var (
		el  *rod.Element
		err error
	)
	switch probe.Kind {
	case page.CSS:
		el, err = pg.Element(probe.Expr)
	case page.XPath:
		el, err = pg.ElementX(probe.Expr)
	default:
		el, err = pg.ElementR("body *", regexp.QuoteMeta(probe.Expr))
	}
	var notFound *rod.ElementNotFoundError
	if errors.As(err, &notFound) {
		return nil, nil
	}
	return el, err
}

func (p *rodPage) Visible(ctx context.Context, probe page.Probe) (bool, error) {
	el, err := p.first(ctx, probe)
	if err != nil || el == nil {
		return false, err
	}
	return el.Visible()
}

func (p *rodPage) Text(ctx context.Context, probe page.Probe, timeout time.Duration) page.Read {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	read := p.text(ctx, probe)
	read.Elapsed = time.Since(start)
	return read
}

func (p *rodPage) text(ctx context.Context, probe page.Probe) page.Read {
	el, err := p.first(ctx, probe)
	if err != nil {
		return failedRead(err)
	}
	if el == nil {
		return page.NotFoundRead(nil)
	}
	txt, err := el.Text()
	if err != nil {
		return failedRead(err)
	}
	return page.FoundRead(strings.TrimSpace(txt))
}

func (p *rodPage) Attribute(ctx context.Context, probe page.Probe, name string) page.Read {
	start := time.Now()
	el, err := p.first(ctx, probe)
	if err != nil {
		return failedRead(err)
	}
	if el == nil {
		return page.NotFoundRead(nil)
	}
	v, err := el.Attribute(name)
	if err != nil {
		return failedRead(err)
	}
	if v == nil {
		return page.NotFoundRead(nil)
	}
	read := page.FoundRead(*v)
	read.Elapsed = time.Since(start)
	return read
}

func (p *rodPage) Click(ctx context.Context, probe page.Probe) error {
	el, err := p.first(ctx, probe)
	if err != nil {
		return err
	}
	if el == nil {
		return &rod.ElementNotFoundError{}
	}
	return el.Click(proto.InputMouseButtonLeft, 1)
}

func (p *rodPage) Screenshot(ctx context.Context) ([]byte, error) {
	return p.page.Context(ctx).Screenshot(true, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
}

// FetchViaSession downloads url with the tab's cookies over a Chrome TLS
// fingerprint, so CDNs see the same session the page used.
func (p *rodPage) FetchViaSession(ctx context.Context, url string, headers map[string]string) ([]byte, error) {
	cookies, err := p.page.Context(ctx).Cookies([]string{url})
	if err != nil {
		return nil, models.NewExtractError(models.ErrCodeMedia, "failed to read session cookies", err)
	}
	body, err := p.fetcher.fetch(ctx, url, headers, cookieHeader(cookies))
	if err != nil {
		return nil, models.NewExtractError(models.ErrCodeMedia, "session fetch failed", err)
	}
	return body, nil
}

func (p *rodPage) BrowserProperty(ctx context.Context, name string) (string, error) {
	res, err := p.page.Context(ctx).Eval(`(n) => String(navigator[n])`, name)
	if err != nil {
		return "", err
	}
	return res.Value.Str(), nil
}

func cookieHeader(cookies []*proto.NetworkCookie) string {
	parts := make([]string, 0, len(cookies))
	for _, c := range cookies {
		parts = append(parts, c.Name+"="+c.Value)
	}
	return strings.Join(parts, "; ")
}

func failedRead(err error) page.Read {
	if errors.Is(err, context.DeadlineExceeded) {
		return page.TimedOutRead(err)
	}
	return page.NotFoundRead(err)
}

// toHeadersMap converts a plain string map to the proto.NetworkHeaders type
// (map[string]gson.JSON) required by NetworkSetExtraHTTPHeaders.
func toHeadersMap(headers map[string]string) proto.NetworkHeaders {
	m := make(proto.NetworkHeaders, len(headers))
	for k, v := range headers {
		m[k] = gson.New(v)
	}
	return m
}

// categorizeError wraps raw errors into typed ExtractErrors.
func categorizeError(err error, msg string) *models.ExtractError {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return models.NewExtractError(models.ErrCodeTimeout, msg, err)
	case errors.Is(err, context.Canceled):
		return models.NewExtractError(models.ErrCodeTimeout, "request canceled", err)
	default:
		return models.NewExtractError(models.ErrCodeNavigation, msg, err)
	}
}
