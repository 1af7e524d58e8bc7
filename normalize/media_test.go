package normalize_test

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/use-agent/postwatch/normalize"
)

func TestMediaType(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   *string
		want *string
	}{
		{nil, nil},
		{ptr(""), nil},
		{ptr("https://v26-web.douyinvod.com/video/tos/cn/abc"), ptr("video")},
		{ptr("https://sns-webpic-qc.xhscdn.com/x/1040g2sg!nd_dft_wlteh_webp_3"), ptr("image")},
		{ptr("https://p3.toutiaoimg.com/origin/x.JPEG"), ptr("image")},
		{ptr("blob:https://www.xiaohongshu.com/3f2a"), ptr("image")},
		{ptr("screenshot"), ptr("screenshot")},
		{ptr("https://example.com/stream.m3u8"), nil},
	}

	for _, tt := range tests {
		got := normalize.MediaType(tt.in)
		if tt.want == nil {
			assert.Nil(t, got)
			continue
		}
		if assert.NotNil(t, got) {
			assert.Equal(t, *tt.want, *got)
		}
	}
}

func TestAbsoluteURL(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "https://cdn.example.com/a.jpg", normalize.AbsoluteURL("//cdn.example.com/a.jpg"))
	assert.Equal(t, "http://cdn.example.com/a.jpg", normalize.AbsoluteURL("http://cdn.example.com/a.jpg"))
	assert.Equal(t, "blob:https://x/1", normalize.AbsoluteURL("blob:https://x/1"))
}

func TestSafeFilename(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "a_b_c_d_e_f_g_h_i", normalize.SafeFilename(`a\b/c:d*e?f"g<h>i`, 100))
	assert.Equal(t, "title", normalize.SafeFilename("  title  ", 100))
	assert.Equal(t, "unnamed", normalize.SafeFilename("   ", 100))
	assert.Equal(t, "unnamed", normalize.SafeFilename("", 100))

	long := strings.Repeat("春", 150)
	got := normalize.SafeFilename(long, normalize.DefaultFilenameLen)
	assert.Equal(t, normalize.DefaultFilenameLen, utf8.RuneCountInString(got))
	assert.True(t, utf8.ValidString(got))
}
