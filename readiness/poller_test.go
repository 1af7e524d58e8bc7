package readiness_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/use-agent/postwatch/mock"
	"github.com/use-agent/postwatch/page"
	"github.com/use-agent/postwatch/readiness"
)

var (
	titleProbe  = page.CSSProbe("#detail-title")
	authorProbe = page.CSSProbe(".author .name")
	closeProbe  = page.CSSProbe(".close-btn")
)

func newSet() *readiness.ProbeSet {
	return &readiness.ProbeSet{
		Name: "test/note",
		Probes: map[string]page.Probe{
			"title":  titleProbe,
			"author": authorProbe,
		},
		Required: []string{"title", "author"},
	}
}

var fast = readiness.Poller{Interval: 5 * time.Millisecond, Timeout: 200 * time.Millisecond}

func TestPoll_AllReadyAfterSomeRounds(t *testing.T) {
	t.Parallel()

	var rounds atomic.Int32
	p := &mock.Page{
		CountFn: func(_ context.Context, probe page.Probe) (int, error) {
			if probe == titleProbe {
				rounds.Add(1)
				return 1, nil
			}
			if rounds.Load() >= 3 {
				return 1, nil
			}
			return 0, nil
		},
	}

	got := fast.Poll(context.Background(), p, newSet(), nil)
	assert.Equal(t, readiness.AllReady, got)
	assert.GreaterOrEqual(t, rounds.Load(), int32(3))
}

func TestPoll_TimeoutWhenRequiredNeverAppears(t *testing.T) {
	t.Parallel()

	p := &mock.Page{
		CountFn: func(_ context.Context, probe page.Probe) (int, error) {
			if probe == authorProbe {
				return 0, nil
			}
			return 1, nil
		},
	}

	start := time.Now()
	got := fast.Poll(context.Background(), p, newSet(), nil)
	assert.Equal(t, readiness.Timeout, got)
	assert.GreaterOrEqual(t, time.Since(start), fast.Timeout)
}

func TestPoll_CountErrorsAreNotReady(t *testing.T) {
	t.Parallel()

	p := &mock.Page{
		CountFn: func(context.Context, page.Probe) (int, error) {
			return 0, errors.New("cdp: target closed")
		},
	}
	assert.Equal(t, readiness.Timeout, fast.Poll(context.Background(), p, newSet(), nil))
}

func TestPoll_TerminalTagWinsOverReadiness(t *testing.T) {
	t.Parallel()

	p := &mock.Page{
		CountFn: func(context.Context, page.Probe) (int, error) { return 1, nil },
	}
	classify := func(context.Context, page.Handle) readiness.Outcome {
		return readiness.PageNotFound
	}

	assert.Equal(t, readiness.PageNotFound, fast.Poll(context.Background(), p, newSet(), classify))
}

func TestPoll_TerminalTagDetectedLater(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	p := &mock.Page{}
	classify := func(context.Context, page.Handle) readiness.Outcome {
		if calls.Add(1) > 2 {
			return readiness.MobileLinkRequired
		}
		return ""
	}

	assert.Equal(t, readiness.MobileLinkRequired, fast.Poll(context.Background(), p, newSet(), classify))
}

func TestPoll_DismissesVisibleInterstitial(t *testing.T) {
	t.Parallel()

	var clicks atomic.Int32
	set := newSet()
	set.Interstitial = &closeProbe

	p := &mock.Page{
		CountFn: func(_ context.Context, probe page.Probe) (int, error) {
			if probe == closeProbe {
				if clicks.Load() > 0 {
					return 0, nil
				}
				return 1, nil
			}
			if clicks.Load() > 0 {
				return 1, nil
			}
			return 0, nil
		},
		VisibleFn: func(context.Context, page.Probe) (bool, error) { return true, nil },
		ClickFn: func(_ context.Context, probe page.Probe) error {
			require.Equal(t, closeProbe, probe)
			clicks.Add(1)
			return nil
		},
	}

	assert.Equal(t, readiness.AllReady, fast.Poll(context.Background(), p, set, nil))
	assert.Equal(t, int32(1), clicks.Load())
}

func TestPoll_DismissFailuresAreSwallowed(t *testing.T) {
	t.Parallel()

	set := newSet()
	set.Interstitial = &closeProbe

	var rounds atomic.Int32
	p := &mock.Page{
		CountFn: func(_ context.Context, probe page.Probe) (int, error) {
			if probe == closeProbe {
				rounds.Add(1)
				return 1, nil
			}
			if rounds.Load() > 2 {
				return 1, nil
			}
			return 0, nil
		},
		VisibleFn: func(context.Context, page.Probe) (bool, error) { return true, nil },
		ClickFn: func(context.Context, page.Probe) error {
			return errors.New("element is covered by another element")
		},
	}

	assert.Equal(t, readiness.AllReady, fast.Poll(context.Background(), p, set, nil))
}

func TestPoll_HiddenInterstitialIsNotClicked(t *testing.T) {
	t.Parallel()

	set := newSet()
	set.Interstitial = &closeProbe

	p := &mock.Page{
		CountFn:   func(context.Context, page.Probe) (int, error) { return 1, nil },
		VisibleFn: func(context.Context, page.Probe) (bool, error) { return false, nil },
		ClickFn: func(context.Context, page.Probe) error {
			t.Error("hidden interstitial must not be clicked")
			return nil
		},
	}

	assert.Equal(t, readiness.AllReady, fast.Poll(context.Background(), p, set, nil))
}

func TestPoll_CanceledContextTimesOut(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	got := readiness.Poller{Interval: time.Hour, Timeout: time.Hour}.Poll(ctx, &mock.Page{}, newSet(), nil)
	assert.Equal(t, readiness.Timeout, got)
}

func TestProbeSet_Validate(t *testing.T) {
	t.Parallel()

	require.NoError(t, newSet().Validate())

	bad := newSet()
	bad.Required = append(bad.Required, "likes")
	assert.ErrorContains(t, bad.Validate(), `unknown key "likes"`)

	empty := newSet()
	empty.Required = nil
	assert.Error(t, empty.Validate())

	badCSS := newSet()
	badCSS.Probes["title"] = page.CSSProbe("div[")
	assert.ErrorContains(t, badCSS.Validate(), "invalid selector")

	xpath := newSet()
	xpath.Probes["title"] = page.XPathProbe(`//*[@id="detail-title"]`)
	assert.NoError(t, xpath.Validate())

	blank := newSet()
	blank.Interstitial = &page.Probe{Kind: page.Text}
	assert.ErrorContains(t, blank.Validate(), "interstitial")
}
