// Package platform holds the per-platform extractors and the shared
// extraction flow they run: navigate, classify the landed page, wait for
// readiness, read fields, resolve media, build the envelope.
package platform

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"

	"github.com/use-agent/postwatch/envelope"
	"github.com/use-agent/postwatch/models"
	"github.com/use-agent/postwatch/page"
	"github.com/use-agent/postwatch/readiness"
	"github.com/use-agent/postwatch/sink"
)

// Extractor is the contract every platform implements.
type Extractor interface {
	// Name is the short platform key used in routes and logs ("xhs").
	Name() string

	// WebName is the display name written to web_name.
	WebName() string

	// Extract drives h to requestedURL and always returns an envelope.
	Extract(ctx context.Context, h page.Handle, requestedURL string, downloadMedia bool) models.Envelope

	// SuspectsIdentity reports whether env indicates the worker identity
	// has been flagged by the site (as opposed to ordinary missing content).
	SuspectsIdentity(env *models.Envelope) bool
}

// Field names a value read from the page. Field values double as probe keys.
type Field string

const (
	FieldTitle       Field = "title"
	FieldAuthor      Field = "author"
	FieldContent     Field = "content"
	FieldLikes       Field = "likes"
	FieldComments    Field = "comments"
	FieldShares      Field = "shares"
	FieldViews       Field = "views"
	FieldFavours     Field = "favours"
	FieldFans        Field = "fans"
	FieldPublishTime Field = "publish_time"
)

// MediaProbe is one candidate media element and the file extension its
// download is stored with.
type MediaProbe struct {
	Probe page.Probe
	Ext   string
}

// Variant is one page shape of a platform (video, note, article...).
type Variant struct {
	Name string

	// WebName overrides the platform display name when set.
	WebName string

	// Markers are URL substrings; any match selects the variant.
	Markers []string

	// Probes are keyed by Field. Probes.Required gates readiness.
	Probes readiness.ProbeSet

	// Fields lists what is read once the page is ready.
	Fields []Field

	// Media is tried in order. Empty means the variant carries no media.
	Media []MediaProbe
}

func (v *Variant) matches(u string) bool {
	for _, m := range v.Markers {
		if strings.Contains(u, m) {
			return true
		}
	}
	return false
}

// ErrorText maps visible page text to a terminal outcome.
type ErrorText struct {
	Text    string
	Outcome readiness.Outcome
}

// Platform is a table-driven Extractor.
type Platform struct {
	name     string
	webName  string
	variants []*Variant

	// errorTexts are checked on every poll round, in order.
	errorTexts []ErrorText

	// loginMarkers are landed-URL substrings meaning the site bounced the
	// identity to a sign-in page.
	loginMarkers []string

	// referer is sent with media downloads.
	referer string

	run *Runner
}

var _ Extractor = (*Platform)(nil)

func (p *Platform) Name() string    { return p.name }
func (p *Platform) WebName() string { return p.webName }

// Variants returns the platform's page variants.
func (p *Platform) Variants() []*Variant { return p.variants }

// Variant returns the variant matching a landed URL.
func (p *Platform) Variant(landedURL string) (*Variant, bool) {
	for _, v := range p.variants {
		if v.matches(landedURL) {
			return v, true
		}
	}
	return nil, false
}

// Validate checks every variant's probe table.
func (p *Platform) Validate() error {
	for _, v := range p.variants {
		if err := v.Probes.Validate(); err != nil {
			return fmt.Errorf("platform %s: %w", p.name, err)
		}
		for _, f := range v.Fields {
			if _, ok := v.Probes.Probe(string(f)); !ok {
				return fmt.Errorf("platform %s: variant %s reads %q without a probe", p.name, v.Name, f)
			}
		}
	}
	return nil
}

// SuspectsIdentity matches the redirect-to-login outcome. Removed content
// and QR walls say nothing about the identity.
func (p *Platform) SuspectsIdentity(env *models.Envelope) bool {
	return env != nil && env.Code == models.CodeForbidden && env.Message == models.MsgRedirectToLogin
}

// ClassifyErrorStates reports the platform's terminal state for the page as
// it is right now, or "".
func (p *Platform) ClassifyErrorStates(ctx context.Context, h page.Handle) readiness.Outcome {
	if p.isLoginURL(h.URL(ctx)) {
		return readiness.RedirectToLogin
	}
	for _, et := range p.errorTexts {
		if n, err := h.Count(ctx, page.TextProbe(et.Text)); err == nil && n > 0 {
			return et.Outcome
		}
	}
	return ""
}

func (p *Platform) isLoginURL(u string) bool {
	for _, m := range p.loginMarkers {
		if strings.Contains(u, m) {
			return true
		}
	}
	return false
}

// Extract implements Extractor.
func (p *Platform) Extract(ctx context.Context, h page.Handle, requestedURL string, downloadMedia bool) (env models.Envelope) {
	landed := requestedURL
	webName := p.webName

	defer func() {
		if r := recover(); r != nil {
			slog.Error("extraction panicked",
				"platform", p.name, "url", landed, "panic", r, "stack", string(debug.Stack()))
			env = envelope.Failed(webName, landed)
		}
	}()

	navCtx, cancel := context.WithTimeout(ctx, p.run.navigationTimeout())
	got, err := h.Navigate(navCtx, requestedURL)
	cancel()
	if err != nil {
		slog.Warn("navigation failed", "platform", p.name, "url", requestedURL, "error", err)
		return envelope.Failed(webName, requestedURL)
	}
	if got != "" {
		landed = got
	}

	if p.isLoginURL(landed) {
		return p.terminal(readiness.RedirectToLogin, webName, landed)
	}

	v, ok := p.Variant(landed)
	if !ok {
		// Removed content sometimes lands on a generic error page whose
		// URL matches no variant.
		if tag := p.ClassifyErrorStates(ctx, h); tag != "" {
			return p.terminal(tag, webName, landed)
		}
		slog.Info("url not supported", "platform", p.name, "url", landed)
		return envelope.Unsupported(webName)
	}
	if v.WebName != "" {
		webName = v.WebName
	}

	outcome := p.run.Poller.Poll(ctx, h, &v.Probes, p.ClassifyErrorStates)

	// The page may have moved on while rendering.
	if u := h.URL(ctx); u != "" {
		landed = u
	}
	if outcome != readiness.AllReady {
		return p.terminal(outcome, webName, landed)
	}

	fields := p.run.readFields(ctx, h, v)
	fields.URL = &landed
	if v.WebName != "" {
		fields.WebName = &v.WebName
	}
	if fields.Favours != nil {
		slog.Debug("collect count", "platform", p.name, "url", landed, "favours", *fields.Favours)
	}
	if len(v.Media) > 0 {
		fields.MediaURL = p.run.resolveMedia(ctx, h, p, v, fields, downloadMedia)
	}

	return envelope.Success(webName, fields, p.run.now())
}

func (p *Platform) terminal(outcome readiness.Outcome, webName, landed string) models.Envelope {
	switch outcome {
	case readiness.PageNotFound:
		return envelope.Terminal(models.CodeNotFound, models.MsgNotFound, webName, landed)
	case readiness.MobileLinkRequired:
		return envelope.Terminal(models.CodeForbidden, models.MsgMobileLink, webName, landed)
	case readiness.RedirectToLogin:
		slog.Warn("redirected to login", "platform", p.name, "url", landed)
		return envelope.Terminal(models.CodeForbidden, models.MsgRedirectToLogin, webName, landed)
	default:
		return envelope.Failed(webName, landed)
	}
}

// Runner carries what every platform's extraction flow shares.
type Runner struct {
	Poller readiness.Poller

	// Sink receives downloaded media and screenshots. Nil disables writes.
	Sink sink.Sink

	NavigationTimeout time.Duration
	FieldTimeout      time.Duration
	SlowRead          time.Duration
	MediaTimeout      time.Duration

	// Location is the zone publish times are interpreted in.
	Location *time.Location

	// Now defaults to time.Now.
	Now func() time.Time
}

const (
	defaultNavigationTimeout = 20 * time.Second
	defaultFieldTimeout      = time.Second
	defaultSlowRead          = 500 * time.Millisecond
	defaultMediaTimeout      = 10 * time.Second
)

func (r *Runner) navigationTimeout() time.Duration {
	if r.NavigationTimeout > 0 {
		return r.NavigationTimeout
	}
	return defaultNavigationTimeout
}

func (r *Runner) fieldTimeout() time.Duration {
	if r.FieldTimeout > 0 {
		return r.FieldTimeout
	}
	return defaultFieldTimeout
}

func (r *Runner) slowRead() time.Duration {
	if r.SlowRead > 0 {
		return r.SlowRead
	}
	return defaultSlowRead
}

func (r *Runner) mediaTimeout() time.Duration {
	if r.MediaTimeout > 0 {
		return r.MediaTimeout
	}
	return defaultMediaTimeout
}

func (r *Runner) now() time.Time {
	now := time.Now
	if r.Now != nil {
		now = r.Now
	}
	t := now()
	if r.Location != nil {
		t = t.In(r.Location)
	}
	return t
}
