package platform

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/use-agent/postwatch/models"
	"github.com/use-agent/postwatch/normalize"
	"github.com/use-agent/postwatch/page"
)

// mediaAttrs are tried in order; sites differ in which one holds the real
// source.
var mediaAttrs = []string{"src", "data-src", "data-original"}

// screenshotSettle gives the page a moment after dismissing a pop-up.
const screenshotSettle = 300 * time.Millisecond

// resolveMedia walks v.Media in priority order and returns the first
// resolvable locator. With download set the bytes are fetched through the
// page's own session and stored. When nothing resolves, a full-page
// screenshot is stored and the "screenshot" sentinel returned.
func (r *Runner) resolveMedia(ctx context.Context, h page.Handle, p *Platform, v *Variant, f models.ExtractedFields, download bool) *string {
	ctx, cancel := context.WithTimeout(ctx, r.mediaTimeout())
	defer cancel()

	stem := fileStem(f)
	for _, mp := range v.Media {
		locator, ok := resolveLocator(ctx, h, mp.Probe)
		if !ok {
			continue
		}
		slog.Debug("media resolved", "platform", p.name, "probe", mp.Probe, "media", locator)
		if download {
			r.download(ctx, h, p, locator, p.name+"/"+stem+mp.Ext)
		}
		return &locator
	}

	return r.screenshot(ctx, h, p, v, p.name+"/"+stem+".png")
}

func resolveLocator(ctx context.Context, h page.Handle, probe page.Probe) (string, bool) {
	if n, err := h.Count(ctx, probe); err != nil || n == 0 {
		return "", false
	}
	for _, attr := range mediaAttrs {
		read := h.Attribute(ctx, probe, attr)
		v := strings.TrimSpace(read.Value)
		if !read.Ok() || v == "" || isBlobURL(v) {
			continue
		}
		return normalize.AbsoluteURL(v), true
	}
	return "", false
}

// blob: sources (MSE video players) only exist inside the page and cannot
// be fetched or stored.
func isBlobURL(v string) bool {
	return len(v) >= 5 && strings.EqualFold(v[:5], "blob:")
}

// download failures are logged; the locator is still reported.
func (r *Runner) download(ctx context.Context, h page.Handle, p *Platform, locator, dest string) {
	headers := map[string]string{}
	if p.referer != "" {
		headers["Referer"] = p.referer
	}
	if ua, err := h.BrowserProperty(ctx, "userAgent"); err == nil && ua != "" {
		headers["User-Agent"] = ua
	}

	body, err := h.FetchViaSession(ctx, locator, headers)
	if err != nil {
		slog.Warn("media download failed", "platform", p.name, "media", locator, "error", err)
		return
	}
	if r.Sink == nil {
		return
	}
	if err := r.Sink.Write(ctx, dest, body); err != nil {
		slog.Warn("media not saved", "platform", p.name, "path", dest, "error", err)
		return
	}
	slog.Info("media saved", "platform", p.name, "path", dest, "bytes", len(body))
}

func (r *Runner) screenshot(ctx context.Context, h page.Handle, p *Platform, v *Variant, dest string) *string {
	slog.Info("no media element resolved, capturing screenshot", "platform", p.name, "path", dest)

	if v.Probes.Interstitial != nil {
		probe := *v.Probes.Interstitial
		if n, err := h.Count(ctx, probe); err == nil && n > 0 {
			if err := h.Click(ctx, probe); err == nil {
				select {
				case <-time.After(screenshotSettle):
				case <-ctx.Done():
				}
			}
		}
	}

	png, err := h.Screenshot(ctx)
	if err != nil {
		slog.Warn("screenshot failed", "platform", p.name, "error", err)
		return nil
	}
	if r.Sink != nil {
		if err := r.Sink.Write(ctx, dest, png); err != nil {
			slog.Warn("screenshot not saved", "platform", p.name, "path", dest, "error", err)
		}
	}
	return models.String(models.MediaScreenshot)
}

// fileStem is "<title>-<author>", each part sanitized, missing parts dropped.
func fileStem(f models.ExtractedFields) string {
	var parts []string
	for _, s := range []*string{f.Title, f.Author} {
		if s != nil && strings.TrimSpace(*s) != "" {
			parts = append(parts, normalize.SafeFilename(*s, normalize.DefaultFilenameLen))
		}
	}
	if len(parts) == 0 {
		return "unnamed"
	}
	return strings.Join(parts, "-")
}
