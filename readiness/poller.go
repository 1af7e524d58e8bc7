package readiness

import (
	"context"
	"log/slog"
	"time"

	"github.com/use-agent/postwatch/page"
)

// Outcome is the classified result of one readiness wait. Platforms add
// their own terminal tags.
type Outcome string

const (
	AllReady Outcome = "ALL_READY"
	Timeout  Outcome = "TIMEOUT"

	PageNotFound       Outcome = "PAGE_NOT_FOUND"
	MobileLinkRequired Outcome = "MOBILE_LINK_REQUIRED"
	RedirectToLogin    Outcome = "REDIRECT_TO_LOGIN"
)

// ErrorClassifier inspects the page for a platform's terminal error states
// and returns the matching tag, or "" when none applies.
type ErrorClassifier func(ctx context.Context, h page.Handle) Outcome

// Defaults used when a Poller field is zero.
const (
	DefaultInterval = 500 * time.Millisecond
	DefaultTimeout  = 12 * time.Second
	dismissTimeout  = time.Second
)

// Poller repeatedly samples a page until it is ready, reports a terminal
// error, or the timeout elapses.
type Poller struct {
	Interval time.Duration
	Timeout  time.Duration
}

// Poll blocks until one of three things happens: every required probe
// matches (AllReady), the classifier reports a terminal tag, or the timeout
// (or ctx) expires (Timeout). Each round first tries to dismiss the
// interstitial; dismissal failures are ignored.
func (p Poller) Poll(ctx context.Context, h page.Handle, set *ProbeSet, classify ErrorClassifier) Outcome {
	interval := p.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var missing string
	for {
		if set.Interstitial != nil {
			dismiss(ctx, h, *set.Interstitial, set.Name)
		}

		if classify != nil {
			if tag := classify(ctx, h); tag != "" {
				slog.Info("page reached terminal state", "variant", set.Name, "outcome", tag)
				return tag
			}
		}

		missing = firstMissing(ctx, h, set)
		if missing == "" {
			return AllReady
		}

		select {
		case <-ctx.Done():
			slog.Warn("page not ready within timeout",
				"variant", set.Name, "missing", missing, "timeout", timeout)
			return Timeout
		case <-time.After(interval):
		}
	}
}

// firstMissing returns the first required key with no match, or "".
func firstMissing(ctx context.Context, h page.Handle, set *ProbeSet) string {
	for _, key := range set.Required {
		n, err := h.Count(ctx, set.Probes[key])
		if err != nil || n == 0 {
			return key
		}
	}
	return ""
}

func dismiss(ctx context.Context, h page.Handle, probe page.Probe, variant string) {
	n, err := h.Count(ctx, probe)
	if err != nil || n == 0 {
		return
	}
	visible, err := h.Visible(ctx, probe)
	if err != nil || !visible {
		return
	}
	clickCtx, cancel := context.WithTimeout(ctx, dismissTimeout)
	defer cancel()
	if err := h.Click(clickCtx, probe); err != nil {
		slog.Debug("interstitial dismissal failed", "variant", variant, "error", err)
		return
	}
	slog.Info("interstitial dismissed", "variant", variant)
}
