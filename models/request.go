package models

// Viewport is a browser window size in CSS pixels.
type Viewport struct {
	Width  int `json:"width" binding:"omitempty,min=320,max=7680"`
	Height int `json:"height" binding:"omitempty,min=240,max=4320"`
}

// IdentityHints optionally override the worker's device fingerprint for a
// single extraction.
type IdentityHints struct {
	UserAgent  string    `json:"user_agent,omitempty"`
	Viewport   *Viewport `json:"viewport,omitempty"`
	TimezoneID string    `json:"timezone_id,omitempty"`
}

// ExtractRequest is the payload for POST /api/v1/extract/:platform.
type ExtractRequest struct {
	// URL is the content page to inspect. Required.
	URL string `json:"url" binding:"required,url"`

	// DownloadMedia persists the resolved media through the byte sink.
	DownloadMedia bool `json:"download_media,omitempty"`

	// Headless controls whether the identity's browser runs headless.
	// Default: the server's configured mode.
	Headless *bool `json:"headless,omitempty"`

	// MaxAge, in milliseconds, allows answering from a cached envelope no
	// older than this. 0 disables the cache lookup.
	MaxAge int `json:"max_age,omitempty" binding:"omitempty,min=0"`

	IdentityHints
}

// Defaults applies default values to unset fields.
func (r *ExtractRequest) Defaults(headless bool) {
	if r.Headless == nil {
		r.Headless = &headless
	}
}

// LegacyRequest mirrors the original per-platform endpoints, which named the
// media flag differently per platform.
type LegacyRequest struct {
	URL           string `json:"url" binding:"required"`
	DownloadImg   *bool  `json:"download_img,omitempty"`
	DownloadVideo *bool  `json:"download_video,omitempty"`
	Headless      *bool  `json:"headless,omitempty"`
}

// ToExtractRequest converts the legacy payload. The original endpoints
// downloaded media unless told otherwise.
func (r *LegacyRequest) ToExtractRequest(headless bool) ExtractRequest {
	download := true
	switch {
	case r.DownloadImg != nil:
		download = *r.DownloadImg
	case r.DownloadVideo != nil:
		download = *r.DownloadVideo
	}
	req := ExtractRequest{URL: r.URL, DownloadMedia: download, Headless: r.Headless}
	req.Defaults(headless)
	return req
}
