// Package page defines the browser capability the extraction core consumes.
// Implementations live in scraper (go-rod) and htmlpage (static replay).
package page

import (
	"context"
	"time"
)

// Kind selects how a probe expression is interpreted.
type Kind int

const (
	// CSS is a CSS selector.
	CSS Kind = iota
	// XPath is an XPath 1.0 expression.
	XPath
	// Text matches when the page's visible text contains Expr.
	Text
)

func (k Kind) String() string {
	switch k {
	case CSS:
		return "css"
	case XPath:
		return "xpath"
	case Text:
		return "text"
	default:
		return "unknown"
	}
}

// Probe is a page query descriptor: a selector or a text to look for.
type Probe struct {
	Kind Kind
	Expr string
}

// CSSProbe returns a CSS selector probe.
func CSSProbe(sel string) Probe { return Probe{Kind: CSS, Expr: sel} }

// XPathProbe returns an XPath probe.
func XPathProbe(x string) Probe { return Probe{Kind: XPath, Expr: x} }

// TextProbe returns a visible-text probe.
func TextProbe(s string) Probe { return Probe{Kind: Text, Expr: s} }

func (p Probe) String() string { return p.Kind.String() + ":" + p.Expr }

// Status is the outcome of a single read. Absence of an optional element is
// NotFound; a read that ran out of time is TimedOut. Neither is an error of
// the extraction as a whole.
type Status int

const (
	Found Status = iota
	NotFound
	TimedOut
)

func (s Status) String() string {
	switch s {
	case Found:
		return "found"
	case NotFound:
		return "not_found"
	case TimedOut:
		return "timed_out"
	default:
		return "unknown"
	}
}

// Read is the result of a text or attribute read.
type Read struct {
	Value   string
	Status  Status
	Err     error // underlying cause when Status != Found, may be nil
	Elapsed time.Duration
}

// Ok reports whether the read produced a value.
func (r Read) Ok() bool { return r.Status == Found }

// Ptr returns the value as a pointer, nil unless Found.
func (r Read) Ptr() *string {
	if r.Status != Found {
		return nil
	}
	v := r.Value
	return &v
}

// FoundRead, NotFoundRead and TimedOutRead are small constructors for
// implementations.
func FoundRead(v string) Read     { return Read{Value: v, Status: Found} }
func NotFoundRead(err error) Read { return Read{Status: NotFound, Err: err} }
func TimedOutRead(err error) Read { return Read{Status: TimedOut, Err: err} }

// Handle is one open browser tab under a worker identity.
type Handle interface {
	// Navigate loads url and returns the landed URL after redirects.
	Navigate(ctx context.Context, url string) (string, error)

	// URL returns the current page URL.
	URL(ctx context.Context) string

	// Count returns how many elements currently match the probe. For text
	// probes it is 1 when the text is present, 0 otherwise.
	Count(ctx context.Context, p Probe) (int, error)

	// Visible reports whether the first match is visible.
	Visible(ctx context.Context, p Probe) (bool, error)

	// Text reads the rendered text of the first match within timeout.
	Text(ctx context.Context, p Probe, timeout time.Duration) Read

	// Attribute reads an attribute of the first match.
	Attribute(ctx context.Context, p Probe, name string) Read

	// Click clicks the first match.
	Click(ctx context.Context, p Probe) error

	// Screenshot captures the full page as PNG.
	Screenshot(ctx context.Context) ([]byte, error)

	// FetchViaSession downloads url with the page's session cookies.
	FetchViaSession(ctx context.Context, url string, headers map[string]string) ([]byte, error)

	// BrowserProperty returns navigator[name] as a string, e.g. "userAgent".
	BrowserProperty(ctx context.Context, name string) (string, error)
}
