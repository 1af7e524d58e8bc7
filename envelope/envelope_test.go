package envelope_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/use-agent/postwatch/envelope"
	"github.com/use-agent/postwatch/models"
)

var dataKeys = []string{
	"title", "url", "content", "media_type", "publish_time", "web_name",
	"praise_count", "forward_count", "visit_count", "reply_count", "author",
	"author_nickname", "author_fans_count", "author_statuses_count",
	"ip_region", "user_id", "author_avatar_url", "media_urls",
}

func decode(t *testing.T, env models.Envelope) (map[string]any, map[string]any) {
	t.Helper()
	raw, err := json.Marshal(env)
	require.NoError(t, err)

	var top map[string]any
	require.NoError(t, json.Unmarshal(raw, &top))
	data, ok := top["data"].(map[string]any)
	require.True(t, ok)
	return top, data
}

func TestSuccess_NormalizesFields(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	env := envelope.Success("小红书", models.ExtractedFields{
		URL:         models.String("https://www.xiaohongshu.com/explore/abc"),
		Title:       models.String("春日露营"),
		Author:      models.String("阿青"),
		Likes:       models.String("1.2万"),
		Comments:    models.String("368"),
		Shares:      models.String("分享"),
		PublishTime: models.String("发布时间：2025-12-17 15:30"),
		MediaURL:    models.String(models.MediaScreenshot),
	}, now)

	top, data := decode(t, env)
	assert.EqualValues(t, 200, top["code"])
	assert.Equal(t, "success", top["message"])
	assert.EqualValues(t, 12000, data["praise_count"])
	assert.EqualValues(t, 368, data["reply_count"])
	assert.EqualValues(t, 0, data["forward_count"])
	assert.Equal(t, "2025-12-17 15:30:00", data["publish_time"])
	assert.Equal(t, "screenshot", data["media_urls"])
	assert.Equal(t, "screenshot", data["media_type"])
	assert.Equal(t, "小红书", data["web_name"])
	assert.Nil(t, data["visit_count"])
	assert.Nil(t, data["author_fans_count"])
	assert.Nil(t, data["user_id"])
}

func TestSuccess_FieldWebNameOverrides(t *testing.T) {
	t.Parallel()

	env := envelope.Success("头条", models.ExtractedFields{WebName: models.String("微头条")}, time.Now())
	require.NotNil(t, env.Data.WebName)
	assert.Equal(t, "微头条", *env.Data.WebName)
}

func TestEveryEnvelopeCarriesAllKeys(t *testing.T) {
	t.Parallel()

	envs := []models.Envelope{
		envelope.Success("抖音", models.ExtractedFields{}, time.Now()),
		envelope.Terminal(models.CodeNotFound, models.MsgNotFound, "抖音", "https://www.douyin.com/video/1"),
		envelope.Failed("抖音", "https://www.douyin.com/video/1"),
		envelope.Unsupported("抖音"),
		envelope.Internal("抖音", ""),
	}
	for _, env := range envs {
		_, data := decode(t, env)
		assert.Len(t, data, len(dataKeys))
		for _, k := range dataKeys {
			_, ok := data[k]
			assert.True(t, ok, "missing key %q for code %d", k, env.Code)
		}
	}
}

func TestTerminal_OnlyURLAndWebName(t *testing.T) {
	t.Parallel()

	url := "https://www.xiaohongshu.com/explore/gone"
	for _, code := range []int{models.CodeNotFound, models.CodeForbidden, models.CodeFailed} {
		env := envelope.Terminal(code, "m", "小红书", url)
		top, data := decode(t, env)
		assert.EqualValues(t, code, top["code"])
		for _, k := range dataKeys {
			switch k {
			case "url":
				assert.Equal(t, url, data[k])
			case "web_name":
				assert.Equal(t, "小红书", data[k])
			default:
				assert.Nil(t, data[k], k)
			}
		}
	}
}

func TestUnsupported_HasNoURL(t *testing.T) {
	t.Parallel()

	env := envelope.Unsupported("头条")
	assert.Equal(t, models.CodeUnsupportedURL, env.Code)
	assert.Equal(t, models.MsgUnsupportedURL, env.Message)
	assert.Nil(t, env.Data.URL)
}

func TestInvalid(t *testing.T) {
	t.Parallel()

	env := envelope.Invalid("抖音")
	assert.Equal(t, 400, env.Code)
	assert.Equal(t, "invalid_request", env.Message)
	require.NotNil(t, env.Data.WebName)
	assert.Equal(t, "抖音", *env.Data.WebName)
	assert.Nil(t, env.Data.URL)
}
