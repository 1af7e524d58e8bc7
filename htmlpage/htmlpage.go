// Package htmlpage implements page.Handle over captured HTML with goquery.
// It replays saved platform pages without a browser: CSS and text probes are
// supported, XPath is not.
package htmlpage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/use-agent/postwatch/page"
)

// ErrUnsupported is returned for operations a static document cannot do.
var ErrUnsupported = errors.New("htmlpage: unsupported on static page")

var _ page.Handle = (*Page)(nil)

// Page is a static, in-memory page. Clicking an element removes it, which is
// enough to model dismissible pop-ups.
type Page struct {
	// LandedURL is reported by Navigate and URL regardless of the URL asked
	// for, so redirects can be simulated.
	LandedURL string

	// UserAgent is returned for BrowserProperty("userAgent").
	UserAgent string

	// Resources maps absolute URLs to bodies served by FetchViaSession.
	Resources map[string][]byte

	// PNG, when non-nil, is returned by Screenshot.
	PNG []byte

	mu  sync.RWMutex
	doc *goquery.Document
}

// New parses html into a Page that lands on landedURL.
func New(landedURL, html string) (*Page, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("htmlpage: parse: %w", err)
	}
	return &Page{LandedURL: landedURL, doc: doc}, nil
}

// MustNew is New for fixtures.
func MustNew(landedURL, html string) *Page {
	p, err := New(landedURL, html)
	if err != nil {
		panic(err)
	}
	return p
}

func (p *Page) Navigate(ctx context.Context, url string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if p.LandedURL == "" {
		return url, nil
	}
	return p.LandedURL, nil
}

func (p *Page) URL(context.Context) string { return p.LandedURL }

func (p *Page) Count(_ context.Context, probe page.Probe) (int, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	switch probe.Kind {
	case page.CSS:
		return p.doc.Find(probe.Expr).Length(), nil
	case page.Text:
		if strings.Contains(p.doc.Find("body").Text(), probe.Expr) {
			return 1, nil
		}
		return 0, nil
	default:
		return 0, fmt.Errorf("%w: %s probe", ErrUnsupported, probe.Kind)
	}
}

// Visible treats an element as visible unless it or an ancestor carries the
// hidden attribute or an inline display:none.
func (p *Page) Visible(ctx context.Context, probe page.Probe) (bool, error) {
	if probe.Kind != page.CSS {
		n, err := p.Count(ctx, probe)
		return n > 0, err
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	sel := p.doc.Find(probe.Expr).First()
	if sel.Length() == 0 {
		return false, nil
	}
	for s := sel; s.Length() > 0; s = s.Parent() {
		if _, hidden := s.Attr("hidden"); hidden {
			return false, nil
		}
		style, _ := s.Attr("style")
		if strings.Contains(strings.ReplaceAll(style, " ", ""), "display:none") {
			return false, nil
		}
	}
	return true, nil
}

func (p *Page) Text(ctx context.Context, probe page.Probe, _ time.Duration) page.Read {
	start := time.Now()
	read := p.text(ctx, probe)
	read.Elapsed = time.Since(start)
	return read
}

func (p *Page) text(ctx context.Context, probe page.Probe) page.Read {
	if err := ctx.Err(); err != nil {
		return page.TimedOutRead(err)
	}
	if probe.Kind != page.CSS {
		return page.NotFoundRead(fmt.Errorf("%w: text of %s probe", ErrUnsupported, probe.Kind))
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	sel := p.doc.Find(probe.Expr).First()
	if sel.Length() == 0 {
		return page.NotFoundRead(nil)
	}
	return page.FoundRead(strings.TrimSpace(sel.Text()))
}

func (p *Page) Attribute(_ context.Context, probe page.Probe, name string) page.Read {
	if probe.Kind != page.CSS {
		return page.NotFoundRead(fmt.Errorf("%w: attribute of %s probe", ErrUnsupported, probe.Kind))
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	v, ok := p.doc.Find(probe.Expr).First().Attr(name)
	if !ok {
		return page.NotFoundRead(nil)
	}
	return page.FoundRead(v)
}

func (p *Page) Click(_ context.Context, probe page.Probe) error {
	if probe.Kind != page.CSS {
		return fmt.Errorf("%w: click on %s probe", ErrUnsupported, probe.Kind)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	sel := p.doc.Find(probe.Expr).First()
	if sel.Length() == 0 {
		return fmt.Errorf("htmlpage: no element matches %s", probe)
	}
	sel.Remove()
	return nil
}

func (p *Page) Screenshot(context.Context) ([]byte, error) {
	if p.PNG == nil {
		return nil, fmt.Errorf("%w: screenshot", ErrUnsupported)
	}
	return p.PNG, nil
}

func (p *Page) FetchViaSession(ctx context.Context, url string, _ map[string]string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	body, ok := p.Resources[url]
	if !ok {
		return nil, fmt.Errorf("htmlpage: HTTP 404 for %s", url)
	}
	return body, nil
}

func (p *Page) BrowserProperty(_ context.Context, name string) (string, error) {
	if name == "userAgent" {
		return p.UserAgent, nil
	}
	return "", fmt.Errorf("%w: navigator.%s", ErrUnsupported, name)
}
