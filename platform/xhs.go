package platform

import (
	"github.com/use-agent/postwatch/page"
	"github.com/use-agent/postwatch/readiness"
)

// Xiaohongshu note pages. Share links (xhslink.com) redirect to /explore/;
// /discovery/item/ is the mobile-share form that often asks for a QR scan.
func NewXHS(run *Runner) *Platform {
	closeBtn := page.CSSProbe(".icon-btn-wrapper")
	probes := map[string]page.Probe{
		string(FieldTitle):       page.CSSProbe("#detail-title"),
		string(FieldAuthor):      page.CSSProbe(".author-container a span.username"),
		string(FieldContent):     page.CSSProbe("#detail-desc > span.note-text > span"),
		string(FieldLikes):       page.CSSProbe("div.left > span.like-wrapper > span.count"),
		string(FieldFavours):     page.CSSProbe("#note-page-collect-board-guide > span.count"),
		string(FieldComments):    page.CSSProbe("span.chat-wrapper > span.count"),
		string(FieldPublishTime): page.CSSProbe("span.date"),
	}
	required := []string{
		string(FieldTitle), string(FieldAuthor), string(FieldLikes),
		string(FieldFavours), string(FieldComments), string(FieldPublishTime),
	}
	fields := []Field{
		FieldTitle, FieldAuthor, FieldContent, FieldLikes,
		FieldFavours, FieldComments, FieldPublishTime,
	}
	media := []MediaProbe{
		{Probe: page.CSSProbe("video"), Ext: ".mp4"},
		{Probe: page.CSSProbe("video source"), Ext: ".mp4"},
		{Probe: page.CSSProbe("img.live-img"), Ext: ".jpg"},
		{Probe: page.CSSProbe(`.swiper-slide-visible img[decoding="sync"]`), Ext: ".jpg"},
		{Probe: page.CSSProbe("xg-poster"), Ext: ".jpg"},
	}

	note := func(name string, markers ...string) *Variant {
		return &Variant{
			Name:    name,
			Markers: markers,
			Probes: readiness.ProbeSet{
				Name:         "xhs/" + name,
				Probes:       probes,
				Required:     required,
				Interstitial: &closeBtn,
			},
			Fields: fields,
			Media:  media,
		}
	}

	return &Platform{
		name:    "xhs",
		webName: "小红书",
		variants: []*Variant{
			note("explore", "xiaohongshu.com/explore/"),
			note("discovery", "xiaohongshu.com/discovery/item/"),
		},
		errorTexts: []ErrorText{
			{Text: "你访问的页面不见了", Outcome: readiness.PageNotFound},
			{Text: "当前笔记暂时无法浏览", Outcome: readiness.PageNotFound},
			{Text: "请打开小红书App扫码查看", Outcome: readiness.MobileLinkRequired},
		},
		loginMarkers: []string{"xiaohongshu.com/website-login", "xiaohongshu.com/login"},
		referer:      "https://www.xiaohongshu.com/",
		run:          run,
	}
}
