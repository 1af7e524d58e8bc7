package models_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/use-agent/postwatch/models"
)

func ptr[T any](v T) *T { return &v }

func TestLegacyRequest_ToExtractRequest(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		in           models.LegacyRequest
		wantDownload bool
		wantHeadless bool
	}{
		{"defaults download media", models.LegacyRequest{URL: "u"}, true, true},
		{"download_img false", models.LegacyRequest{URL: "u", DownloadImg: ptr(false)}, false, true},
		{"download_video false", models.LegacyRequest{URL: "u", DownloadVideo: ptr(false)}, false, true},
		{"headful", models.LegacyRequest{URL: "u", Headless: ptr(false)}, true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := tt.in.ToExtractRequest(true)
			assert.Equal(t, "u", got.URL)
			assert.Equal(t, tt.wantDownload, got.DownloadMedia)
			require.NotNil(t, got.Headless)
			assert.Equal(t, tt.wantHeadless, *got.Headless)
		})
	}
}

func TestExtractRequest_DefaultsKeepsExplicitHeadless(t *testing.T) {
	t.Parallel()

	req := models.ExtractRequest{Headless: ptr(false)}
	req.Defaults(true)
	assert.False(t, *req.Headless)

	req = models.ExtractRequest{}
	req.Defaults(false)
	require.NotNil(t, req.Headless)
	assert.False(t, *req.Headless)
}

func TestEnvelope_LiveOffline(t *testing.T) {
	t.Parallel()

	assert.True(t, (&models.Envelope{Code: models.CodeSuccess}).IsLive())
	assert.True(t, (&models.Envelope{Code: models.CodeNotFound}).IsOffline())
	assert.False(t, (&models.Envelope{Code: models.CodeFailed}).IsLive())
}
