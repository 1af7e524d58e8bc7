package normalize

import (
	"regexp"
	"strings"
)

// Media types reported in media_type.
const (
	MediaVideo      = "video"
	MediaImage      = "image"
	MediaScreenshot = "screenshot"
)

var imageMarkers = []string{"image", "blob", "webp", ".jpg", ".png", ".jpeg"}

// MediaType classifies a resolved media locator (or the screenshot
// sentinel). Inconclusive input yields nil.
func MediaType(locator *string) *string {
	if locator == nil || *locator == "" {
		return nil
	}
	u := strings.ToLower(*locator)

	var t string
	switch {
	case strings.Contains(u, "video"):
		t = MediaVideo
	case containsAny(u, imageMarkers):
		t = MediaImage
	case strings.Contains(u, "screenshot"):
		t = MediaScreenshot
	default:
		return nil
	}
	return &t
}

// AbsoluteURL upgrades protocol-relative locators ("//cdn/x.jpg") to https.
func AbsoluteURL(u string) string {
	if strings.HasPrefix(u, "//") {
		return "https:" + u
	}
	return u
}

var reIllegalFilename = regexp.MustCompile(`[\\/:*?"<>|]`)

// DefaultFilenameLen bounds sanitized filenames, in characters.
const DefaultFilenameLen = 100

// SafeFilename replaces characters that common filesystems reject, trims
// surrounding space and truncates to maxLen characters. Empty results
// become "unnamed".
func SafeFilename(name string, maxLen int) string {
	name = strings.TrimSpace(reIllegalFilename.ReplaceAllString(name, "_"))
	if name == "" {
		name = "unnamed"
	}
	if r := []rune(name); len(r) > maxLen {
		name = string(r[:maxLen])
	}
	return name
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
