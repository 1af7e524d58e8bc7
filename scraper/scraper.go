// Package scraper binds the extraction core to Chrome through go-rod. Each
// session is a dedicated Chrome process running on an identity's persisted
// profile directory.
package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"github.com/use-agent/postwatch/config"
	"github.com/use-agent/postwatch/engine"
	"github.com/use-agent/postwatch/models"
	"github.com/use-agent/postwatch/page"
)

const acceptLanguage = "zh-CN,zh;q=0.9,en;q=0.8"

// exitWait bounds how long Close waits for Chrome to release the profile.
const exitWait = 5 * time.Second

var _ engine.Launcher = (*Launcher)(nil)

// Launcher starts one Chrome per session on the identity's profile.
// It is safe for concurrent use.
type Launcher struct {
	cfg     config.BrowserConfig
	blocked map[proto.NetworkResourceType]struct{}
	fetcher *httpFetcher
}

// NewLauncher creates a Launcher from the browser configuration.
func NewLauncher(cfg config.BrowserConfig) *Launcher {
	return &Launcher{
		cfg:     cfg,
		blocked: blockedTypes(cfg.BlockedResourceTypes),
		fetcher: newHTTPFetcher(cfg.DefaultProxy),
	}
}

// Open launches Chrome on spec.ProfileDir and prepares a tab presenting
// spec.Device.
func (l *Launcher) Open(ctx context.Context, spec engine.LaunchSpec) (engine.Session, error) {
	ln := launcher.New().
		Context(ctx).
		UserDataDir(spec.ProfileDir).
		Headless(spec.Headless).
		NoSandbox(l.cfg.NoSandbox).
		Leakless(true)

	if l.cfg.BrowserBin != "" {
		ln = ln.Bin(l.cfg.BrowserBin)
	}
	if l.cfg.DefaultProxy != "" {
		ln = ln.Proxy(l.cfg.DefaultProxy)
	}

	// ── Stealth flags ────────────────────────────────────────────────
	ln.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	ln.Delete(flags.Flag("enable-automation"))
	ln.Set(flags.Flag("disable-features"), "AudioServiceOutOfProcess,TranslateUI")
	ln.Set(flags.Flag("disable-popup-blocking"))
	ln.Set(flags.Flag("disable-renderer-backgrounding"))
	ln.Set(flags.Flag("disable-background-timer-throttling"))
	ln.Set(flags.Flag("disable-backgrounding-occluded-windows"))
	ln.Set(flags.Flag("disable-component-update"))
	ln.Set(flags.Flag("disable-default-apps"))
	ln.Set(flags.Flag("disable-dev-shm-usage"))
	ln.Set(flags.Flag("no-first-run"))
	ln.Set(flags.Flag("lang"), "zh-CN")
	if v := spec.Device.Viewport; v.Width > 0 && v.Height > 0 {
		ln.Set(flags.Flag("window-size"), fmt.Sprintf("%d,%d", v.Width, v.Height))
	}

	controlURL, err := ln.Launch()
	if err != nil {
		return nil, models.NewExtractError(models.ErrCodeBrowserCrash, "failed to launch browser", err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		ln.Kill()
		return nil, models.NewExtractError(models.ErrCodeBrowserCrash, "failed to connect to browser", err)
	}

	s := &session{launcher: ln, browser: browser, profile: spec.ProfileDir}

	tab, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		_ = s.Close()
		return nil, models.NewExtractError(models.ErrCodeBrowserCrash, "failed to open tab", err)
	}
	s.tab = tab

	// Everything below must be in place before the first navigation.
	if err := l.prepare(tab, spec.Device); err != nil {
		_ = s.Close()
		return nil, err
	}
	s.router = setupHijack(tab, l.blocked, l.cfg.BlockAds)
	s.page = &rodPage{page: tab, fetcher: l.fetcher}

	slog.Debug("browser session opened", "worker", spec.ProfileDir, "headless", spec.Headless)
	return s, nil
}

// prepare applies stealth and the device fingerprint to tab.
func (l *Launcher) prepare(tab *rod.Page, d engine.DeviceProfile) error {
	if _, err := tab.EvalOnNewDocument(stealth.JS); err != nil {
		slog.Warn("stealth injection failed, proceeding without stealth", "error", err)
	}

	if d.UserAgent != "" {
		if err := tab.SetUserAgent(&proto.NetworkSetUserAgentOverride{
			UserAgent:      d.UserAgent,
			AcceptLanguage: acceptLanguage,
			Platform:       navigatorPlatform(d.UserAgent),
		}); err != nil {
			return models.NewExtractError(models.ErrCodeBrowserCrash, "failed to set user agent", err)
		}
	}

	if v := d.Viewport; v.Width > 0 && v.Height > 0 {
		if err := tab.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
			Width:             v.Width,
			Height:            v.Height,
			DeviceScaleFactor: 1,
		}); err != nil {
			return models.NewExtractError(models.ErrCodeBrowserCrash, "failed to set viewport", err)
		}
	}

	if d.TimezoneID != "" {
		if err := (proto.EmulationSetTimezoneOverride{TimezoneID: d.TimezoneID}).Call(tab); err != nil {
			slog.Warn("timezone override failed", "timezone", d.TimezoneID, "error", err)
		}
	}

	_ = proto.NetworkSetExtraHTTPHeaders{
		Headers: toHeadersMap(map[string]string{"Accept-Language": acceptLanguage}),
	}.Call(tab)
	return nil
}

func navigatorPlatform(ua string) string {
	switch {
	case strings.Contains(ua, "Macintosh"):
		return "MacIntel"
	case strings.Contains(ua, "Windows"):
		return "Win32"
	default:
		return "Linux x86_64"
	}
}

var _ engine.Session = (*session)(nil)

type session struct {
	launcher *launcher.Launcher
	browser  *rod.Browser
	tab      *rod.Page
	router   *rod.HijackRouter
	page     *rodPage
	profile  string
}

func (s *session) Page() page.Handle { return s.page }

// Close stops Chrome and waits for it to exit so the profile directory is
// free. The launcher's Cleanup is never called: it deletes the user data
// directory, which here is the identity's persisted profile.
func (s *session) Close() error {
	if s.router != nil {
		_ = s.router.Stop()
	}
	err := s.browser.Close()
	pid := s.launcher.PID()
	s.launcher.Kill()
	waitExit(pid, exitWait)
	if err != nil {
		return fmt.Errorf("scraper: close browser for %s: %w", s.profile, err)
	}
	return nil
}

// waitExit polls until the process is gone or d elapses.
func waitExit(pid int, d time.Duration) {
	if pid <= 0 {
		return
	}
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		proc, err := os.FindProcess(pid)
		if err != nil || proc.Signal(syscall.Signal(0)) != nil {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	slog.Warn("browser did not exit in time", "pid", pid)
}
