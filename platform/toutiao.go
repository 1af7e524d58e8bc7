package platform

import (
	"github.com/use-agent/postwatch/page"
	"github.com/use-agent/postwatch/readiness"
)

// Toutiao micro-posts (微头条), videos and articles.
func NewToutiao(run *Runner) *Platform {
	weitoutiao := &Variant{
		Name:    "weitoutiao",
		WebName: "微头条",
		Markers: []string{"toutiao.com/w/"},
		Probes: readiness.ProbeSet{
			Name: "toutiao/weitoutiao",
			Probes: map[string]page.Probe{
				string(FieldAuthor):      page.CSSProbe("a.name"),
				string(FieldContent):     page.CSSProbe("div.weitoutiao-html"),
				string(FieldPublishTime): page.CSSProbe("span.time"),
				string(FieldLikes):       page.CSSProbe("div.detail-like > span"),
			},
			Required: []string{
				string(FieldAuthor), string(FieldContent), string(FieldPublishTime), string(FieldLikes),
			},
		},
		Fields: []Field{FieldAuthor, FieldContent, FieldPublishTime, FieldLikes},
	}

	video := &Variant{
		Name:    "video",
		Markers: []string{"toutiao.com/video/"},
		Probes: readiness.ProbeSet{
			Name: "toutiao/video",
			Probes: map[string]page.Probe{
				string(FieldAuthor):      page.CSSProbe("a.author-name"),
				string(FieldTitle):       page.CSSProbe("h1"),
				string(FieldPublishTime): page.CSSProbe("span.publish-time"),
				string(FieldViews):       page.CSSProbe("span.views-count"),
				string(FieldLikes):       page.CSSProbe("ul li button span.like-count"),
			},
			Required: []string{
				string(FieldAuthor), string(FieldTitle), string(FieldPublishTime),
				string(FieldViews), string(FieldLikes),
			},
		},
		Fields: []Field{FieldAuthor, FieldTitle, FieldPublishTime, FieldViews, FieldLikes},
		Media: []MediaProbe{
			{Probe: page.CSSProbe(`ul li video[mediatype="video"]`), Ext: ".mp4"},
		},
	}

	article := &Variant{
		Name:    "article",
		Markers: []string{"toutiao.com/article/"},
		Probes: readiness.ProbeSet{
			Name: "toutiao/article",
			Probes: map[string]page.Probe{
				string(FieldTitle):       page.CSSProbe("div.article-content > h1"),
				string(FieldAuthor):      page.CSSProbe("div.article-meta span.name a"),
				string(FieldContent):     page.CSSProbe("div.article-content article"),
				string(FieldPublishTime): page.CSSProbe("div.article-meta > span:not(.name)"),
				string(FieldLikes):       page.CSSProbe("div.detail-like > span"),
			},
			Required: []string{string(FieldTitle), string(FieldAuthor), string(FieldContent)},
		},
		Fields: []Field{FieldTitle, FieldAuthor, FieldContent, FieldPublishTime, FieldLikes},
	}

	return &Platform{
		name:     "toutiao",
		webName:  "头条",
		variants: []*Variant{weitoutiao, video, article},
		errorTexts: []ErrorText{
			{Text: "内容不存在", Outcome: readiness.PageNotFound},
		},
		loginMarkers: []string{"sso.toutiao.com", "toutiao.com/auth/page/login"},
		referer:      "https://www.toutiao.com/",
		run:          run,
	}
}
