package scraper

import (
	"strings"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// resourceTypes maps config names to protocol resource types.
var resourceTypes = map[string]proto.NetworkResourceType{
	"Image":      proto.NetworkResourceTypeImage,
	"Stylesheet": proto.NetworkResourceTypeStylesheet,
	"Font":       proto.NetworkResourceTypeFont,
	"Media":      proto.NetworkResourceTypeMedia,
}

// blockedTypes builds the lookup set for setupHijack. Unknown names are
// ignored. Scripts are never blocked since every platform renders client-side.
func blockedTypes(names []string) map[proto.NetworkResourceType]struct{} {
	blocked := make(map[proto.NetworkResourceType]struct{}, len(names))
	for _, name := range names {
		if rt, ok := resourceTypes[name]; ok {
			blocked[rt] = struct{}{}
		}
	}
	return blocked
}

// adDomains are analytics and ad hosts that the platforms load on every
// post page. None of them affect rendering of the post itself.
var adDomains = map[string]struct{}{
	"doubleclick.net":          {},
	"googlesyndication.com":    {},
	"google-analytics.com":     {},
	"googletagmanager.com":     {},
	"hm.baidu.com":             {},
	"cnzz.com":                 {},
	"umeng.com":                {},
	"growingio.com":            {},
	"sensorsdata.cn":           {},
	"tanx.com":                 {},
	"mmstat.com":               {},
	"pangolin-sdk-toutiao.com": {},
	"hotjar.com":               {},
	"scorecardresearch.com":    {},
}

// isAdDomain checks if a hostname (or any parent domain) is in the ad blocklist.
func isAdDomain(host string) bool {
	host = strings.ToLower(host)
	// Check exact match first.
	if _, ok := adDomains[host]; ok {
		return true
	}
	// Check parent domains (e.g., "pagead2.googlesyndication.com" → "googlesyndication.com").
	for {
		idx := strings.IndexByte(host, '.')
		if idx < 0 {
			break
		}
		host = host[idx+1:]
		if _, ok := adDomains[host]; ok {
			return true
		}
	}
	return false
}

// setupHijack installs a request interceptor that fails requests for the
// blocked resource types and, when blockAds is set, known tracker hosts.
// Returns nil if there is nothing to block; otherwise the caller stops the
// returned router when the session ends.
func setupHijack(page *rod.Page, blocked map[proto.NetworkResourceType]struct{}, blockAds bool) *rod.HijackRouter {
	if len(blocked) == 0 && !blockAds {
		return nil
	}

	router := page.HijackRequests()
	_ = router.Add("*", "", func(ctx *rod.Hijack) {
		if _, ok := blocked[ctx.Request.Type()]; ok {
			ctx.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
			return
		}
		if blockAds && isAdDomain(ctx.Request.URL().Hostname()) {
			ctx.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
			return
		}
		ctx.ContinueRequest(&proto.FetchContinueRequest{})
	})

	// Run blocks until Stop.
	go router.Run()

	return router
}
