package models

// Status codes of the envelope taxonomy. 500 is produced only at the HTTP
// boundary, never by an extraction itself.
const (
	CodeSuccess        = 200
	CodeUnsupportedURL = 400
	CodeForbidden      = 403
	CodeNotFound       = 404
	CodeInternal       = 500
	CodeFailed         = 502
)

// Envelope messages.
const (
	MsgSuccess         = "success"
	MsgNotFound        = "PAGE_NOT_FOUND: 作品已下架"
	MsgMobileLink      = "MOBILE_LINK_REQUIRED: 需要 APP 扫码授权"
	MsgRedirectToLogin = "REDIRECT_TO_LOGIN: 可能被重定向到登录页"
	MsgFailed          = "ERROR: extraction failed (抓取数据失败)"
	MsgUnsupportedURL  = "URL_NOT_SUPPORTED: 不支持的链接"
	MsgInternal        = "internal_error"
	MsgInvalidRequest  = "invalid_request"
)

// Envelope is the fixed outbound record returned by every extraction.
type Envelope struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    Data   `json:"data"`
}

// Data carries the eighteen fixed fields. None of them use omitempty:
// consumers rely on every key being present, null when unknown.
type Data struct {
	Title               *string `json:"title"`
	URL                 *string `json:"url"`
	Content             *string `json:"content"`
	MediaType           *string `json:"media_type"`
	PublishTime         *string `json:"publish_time"`
	WebName             *string `json:"web_name"`
	PraiseCount         *int64  `json:"praise_count"`
	ForwardCount        *int64  `json:"forward_count"`
	VisitCount          *int64  `json:"visit_count"`
	ReplyCount          *int64  `json:"reply_count"`
	Author              *string `json:"author"`
	AuthorNickname      *string `json:"author_nickname"`
	AuthorFansCount     *int64  `json:"author_fans_count"`
	AuthorStatusesCount *int64  `json:"author_statuses_count"`
	IPRegion            *string `json:"ip_region"`
	UserID              *string `json:"user_id"`
	AuthorAvatarURL     *string `json:"author_avatar_url"`
	MediaURLs           *string `json:"media_urls"`
}

// IsLive reports whether the envelope confirms the content is still online.
func (e *Envelope) IsLive() bool { return e.Code == CodeSuccess }

// IsOffline reports whether the target site confirmed removal.
func (e *Envelope) IsOffline() bool { return e.Code == CodeNotFound }

// ExtractedFields holds raw, pre-normalization values read from one page.
// Nil means the field was not read or could not be read.
type ExtractedFields struct {
	URL         *string
	WebName     *string // overrides the platform display name (e.g. 微头条)
	Title       *string
	Author      *string
	Content     *string
	Likes       *string
	Comments    *string
	Shares      *string
	Views       *string
	Favours     *string
	Fans        *string
	PublishTime *string
	MediaURL    *string // resolved locator or the "screenshot" sentinel
}

// MediaScreenshot is the sentinel media value reported when no media locator
// could be resolved and a full-page screenshot was captured instead.
const MediaScreenshot = "screenshot"

// String returns a pointer to s. Handy for building optional fields.
func String(s string) *string { return &s }
