package engine

import (
	"context"

	"github.com/use-agent/postwatch/models"
	"github.com/use-agent/postwatch/page"
)

// DeviceProfile is the fingerprint a browser identity presents.
type DeviceProfile struct {
	UserAgent  string
	Viewport   models.Viewport
	TimezoneID string
}

// WithHints returns d with any non-empty hint applied. The identity's own
// profile is not changed.
func (d DeviceProfile) WithHints(h models.IdentityHints) DeviceProfile {
	if h.UserAgent != "" {
		d.UserAgent = h.UserAgent
	}
	if h.Viewport != nil && h.Viewport.Width > 0 && h.Viewport.Height > 0 {
		d.Viewport = *h.Viewport
	}
	if h.TimezoneID != "" {
		d.TimezoneID = h.TimezoneID
	}
	return d
}

// DefaultDevices are desktop fingerprints common among mainland China users.
// Identity i uses DefaultDevices[i].
var DefaultDevices = []DeviceProfile{
	{
		UserAgent:  "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		Viewport:   models.Viewport{Width: 1366, Height: 768},
		TimezoneID: "Asia/Shanghai",
	},
	{
		UserAgent:  "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36",
		Viewport:   models.Viewport{Width: 1536, Height: 864},
		TimezoneID: "Asia/Shanghai",
	},
	{
		UserAgent:  "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/118.0.0.0 Safari/537.36",
		Viewport:   models.Viewport{Width: 1600, Height: 900},
		TimezoneID: "Asia/Shanghai",
	},
	{
		UserAgent:  "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36 Edg/120.0.0.0",
		Viewport:   models.Viewport{Width: 1536, Height: 864},
		TimezoneID: "Asia/Shanghai",
	},
	{
		UserAgent:  "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Safari/605.1.15",
		Viewport:   models.Viewport{Width: 1440, Height: 900},
		TimezoneID: "Asia/Shanghai",
	},
	{
		UserAgent:  "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Safari/605.1.15",
		Viewport:   models.Viewport{Width: 1680, Height: 1050},
		TimezoneID: "Asia/Shanghai",
	},
	{
		UserAgent:  "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		Viewport:   models.Viewport{Width: 1440, Height: 900},
		TimezoneID: "Asia/Shanghai",
	},
	{
		UserAgent:  "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/117.0.0.0 Safari/537.36",
		Viewport:   models.Viewport{Width: 1366, Height: 768},
		TimezoneID: "Asia/Shanghai",
	},
}

// LaunchSpec describes the browser session to open for one extraction.
type LaunchSpec struct {
	// ProfileDir is the identity's persisted browser state.
	ProfileDir string
	Device     DeviceProfile
	Headless   bool
}

// Launcher opens browser sessions bound to a persisted profile. The scraper
// package provides the go-rod implementation.
type Launcher interface {
	Open(ctx context.Context, spec LaunchSpec) (Session, error)
}

// Session is one open browser with a single tab.
type Session interface {
	Page() page.Handle

	// Close shuts the browser down and releases the profile directory.
	Close() error
}
