package platform

import (
	"github.com/use-agent/postwatch/page"
	"github.com/use-agent/postwatch/readiness"
)

// Douyin video and note (图文) pages. v.douyin.com share links redirect to
// one of them.
func NewDouyin(run *Runner) *Platform {
	closeBtn := page.CSSProbe("article > div > div > div > svg")

	video := &Variant{
		Name:    "video",
		Markers: []string{"douyin.com/video/"},
		Probes: readiness.ProbeSet{
			Name: "douyin/video",
			Probes: map[string]page.Probe{
				string(FieldTitle):       page.CSSProbe(`[data-e2e="detail-video-info"] h1`),
				string(FieldAuthor):      page.CSSProbe(`[data-e2e="video-detail"] [data-click-from="title"]`),
				string(FieldLikes):       page.CSSProbe(`[data-e2e="video-player-digg"]`),
				string(FieldComments):    page.CSSProbe(`[data-e2e="feed-comment-icon"]`),
				string(FieldShares):      page.CSSProbe(`[data-e2e="video-player-share"]`),
				string(FieldFans):        page.CSSProbe(`[data-e2e="user-info-fans"]`),
				string(FieldPublishTime): page.CSSProbe(`[data-e2e="detail-video-publish-time"]`),
			},
			Required: []string{
				string(FieldAuthor), string(FieldLikes), string(FieldComments),
				string(FieldShares), string(FieldFans), string(FieldPublishTime),
			},
			Interstitial: &closeBtn,
		},
		Fields: []Field{
			FieldTitle, FieldAuthor, FieldLikes, FieldComments,
			FieldShares, FieldFans, FieldPublishTime,
		},
		Media: []MediaProbe{
			{Probe: page.CSSProbe("xg-video-container video source"), Ext: ".mp4"},
			{Probe: page.CSSProbe("xg-video-container video"), Ext: ".mp4"},
		},
	}

	note := &Variant{
		Name:    "note",
		Markers: []string{"douyin.com/note/"},
		Probes: readiness.ProbeSet{
			Name: "douyin/note",
			Probes: map[string]page.Probe{
				string(FieldTitle):       page.CSSProbe(`[data-e2e="note-detail"] h1`),
				string(FieldAuthor):      page.CSSProbe(`[data-e2e="user-info"] [data-click-from="title"]`),
				string(FieldLikes):       page.CSSProbe(`[data-e2e="video-player-digg"]`),
				string(FieldComments):    page.CSSProbe(`[data-e2e="feed-comment-icon"]`),
				string(FieldShares):      page.CSSProbe(`[data-e2e="video-player-share"]`),
				string(FieldFans):        page.CSSProbe(`[data-e2e="user-info-fans"]`),
				string(FieldPublishTime): page.CSSProbe(`[data-e2e="detail-video-publish-time"]`),
			},
			Required: []string{
				string(FieldAuthor), string(FieldLikes), string(FieldComments), string(FieldPublishTime),
			},
			Interstitial: &closeBtn,
		},
		Fields: []Field{
			FieldTitle, FieldAuthor, FieldLikes, FieldComments,
			FieldShares, FieldFans, FieldPublishTime,
		},
		Media: []MediaProbe{
			{Probe: page.CSSProbe(`[data-e2e="note-detail"] img`), Ext: ".jpg"},
		},
	}

	return &Platform{
		name:     "douyin",
		webName:  "抖音",
		variants: []*Variant{video, note},
		errorTexts: []ErrorText{
			{Text: "你要观看的图文不存在", Outcome: readiness.PageNotFound},
			{Text: "你要观看的视频不存在", Outcome: readiness.PageNotFound},
		},
		loginMarkers: []string{"douyin.com/passport", "douyin.com/login", "sso.douyin.com"},
		referer:      "https://www.douyin.com/",
		run:          run,
	}
}
