package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/use-agent/postwatch/api/handler"
	"github.com/use-agent/postwatch/cache"
	"github.com/use-agent/postwatch/envelope"
	"github.com/use-agent/postwatch/mock"
	"github.com/use-agent/postwatch/models"
	"github.com/use-agent/postwatch/platform"
	"github.com/use-agent/postwatch/webhook"
)

func init() { gin.SetMode(gin.TestMode) }

var published = time.Date(2025, 12, 20, 10, 0, 0, 0, time.UTC)

func registry(t *testing.T) *platform.Registry {
	t.Helper()
	reg, err := platform.NewRegistry(&platform.Runner{})
	require.NoError(t, err)
	return reg
}

func live(ex platform.Extractor, url string) models.Envelope {
	return envelope.Success(ex.WebName(), models.ExtractedFields{
		URL:   models.String(url),
		Title: models.String("周末去哪儿"),
		Likes: models.String("1.2万"),
	}, published)
}

func newRouter(t *testing.T, pool *mock.Pool, cc *cache.Cache) *gin.Engine {
	t.Helper()
	x := &handler.Extraction{Pool: pool, Extractors: registry(t), Cache: cc, Headless: true}
	r := gin.New()
	r.POST("/api/v1/extract/:platform", x.Extract())
	r.POST("/xhs", x.Legacy("xhs"))
	r.POST("/douyin", x.Legacy("douyin"))
	return r
}

func post(r http.Handler, path, body string) (*httptest.ResponseRecorder, models.Envelope) {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env models.Envelope
	_ = json.Unmarshal(w.Body.Bytes(), &env)
	return w, env
}

func TestExtract_Success(t *testing.T) {
	t.Parallel()

	pool := &mock.Pool{AcquireAndRunFn: func(_ context.Context, ex platform.Extractor, req models.ExtractRequest) models.Envelope {
		return live(ex, req.URL)
	}}
	r := newRouter(t, pool, nil)

	w, env := post(r, "/api/v1/extract/rednote", `{"url":"https://www.xiaohongshu.com/explore/1","download_media":true}`)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.CodeSuccess, env.Code)
	require.NotNil(t, env.Data.PraiseCount)
	assert.Equal(t, int64(12000), *env.Data.PraiseCount)

	reqs := pool.Requests()
	require.Len(t, reqs, 1)
	assert.True(t, reqs[0].DownloadMedia)
	require.NotNil(t, reqs[0].Headless)
	assert.True(t, *reqs[0].Headless)
}

func TestExtract_PassesIdentityHints(t *testing.T) {
	t.Parallel()

	pool := &mock.Pool{AcquireAndRunFn: func(_ context.Context, ex platform.Extractor, req models.ExtractRequest) models.Envelope {
		return envelope.Failed(ex.WebName(), req.URL)
	}}
	r := newRouter(t, pool, nil)

	w, env := post(r, "/api/v1/extract/douyin",
		`{"url":"https://www.douyin.com/video/1","headless":false,"user_agent":"UA","viewport":{"width":1280,"height":720},"timezone_id":"Asia/Tokyo"}`)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.CodeFailed, env.Code)

	req := pool.Requests()[0]
	assert.False(t, *req.Headless)
	assert.Equal(t, "UA", req.UserAgent)
	require.NotNil(t, req.Viewport)
	assert.Equal(t, 1280, req.Viewport.Width)
	assert.Equal(t, "Asia/Tokyo", req.TimezoneID)
}

func TestExtract_UnknownPlatform(t *testing.T) {
	t.Parallel()

	pool := &mock.Pool{}
	r := newRouter(t, pool, nil)

	w, env := post(r, "/api/v1/extract/weibo", `{"url":"https://weibo.com/1"}`)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.CodeUnsupportedURL, env.Code)
	assert.Equal(t, models.MsgUnsupportedURL, env.Message)
	assert.Empty(t, pool.Requests())
}

func TestExtract_InvalidBody(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"missing url":  `{}`,
		"not a url":    `{"url":"xiaohongshu"}`,
		"bad viewport": `{"url":"https://www.xiaohongshu.com/explore/1","viewport":{"width":10,"height":10}}`,
		"not json":     `url=1`,
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			pool := &mock.Pool{}
			w, env := post(newRouter(t, pool, nil), "/api/v1/extract/xhs", body)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, models.CodeUnsupportedURL, env.Code)
			assert.Equal(t, models.MsgInvalidRequest, env.Message)
			assert.Empty(t, pool.Requests())
		})
	}
}

func TestExtract_CacheServesDefinitiveAnswers(t *testing.T) {
	t.Parallel()

	cc := cache.New(10, time.Hour)
	defer cc.Close()

	pool := &mock.Pool{AcquireAndRunFn: func(_ context.Context, ex platform.Extractor, req models.ExtractRequest) models.Envelope {
		if strings.HasSuffix(req.URL, "/gone") {
			return envelope.Terminal(models.CodeNotFound, models.MsgNotFound, ex.WebName(), req.URL)
		}
		return envelope.Failed(ex.WebName(), req.URL)
	}}
	r := newRouter(t, pool, cc)

	gone := `{"url":"https://www.douyin.com/video/gone","max_age":60000}`
	_, first := post(r, "/api/v1/extract/douyin", gone)
	_, second := post(r, "/api/v1/extract/douyin", gone)
	assert.Equal(t, models.CodeNotFound, first.Code)
	assert.Equal(t, first, second)
	assert.Len(t, pool.Requests(), 1)

	// Without max_age the pool is always consulted.
	post(r, "/api/v1/extract/douyin", `{"url":"https://www.douyin.com/video/gone"}`)
	assert.Len(t, pool.Requests(), 2)

	// Failures are never cached.
	flaky := `{"url":"https://www.douyin.com/video/flaky","max_age":60000}`
	post(r, "/api/v1/extract/douyin", flaky)
	post(r, "/api/v1/extract/douyin", flaky)
	assert.Len(t, pool.Requests(), 4)
}

func TestLegacy_MediaFlagAndDefaults(t *testing.T) {
	t.Parallel()

	pool := &mock.Pool{AcquireAndRunFn: func(_ context.Context, ex platform.Extractor, req models.ExtractRequest) models.Envelope {
		assert.Equal(t, "xhs", ex.Name())
		return live(ex, req.URL)
	}}
	r := newRouter(t, pool, nil)

	w, env := post(r, "/xhs", `{"url":"https://www.xiaohongshu.com/explore/1","download_img":false,"headless":false}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.CodeSuccess, env.Code)

	post(r, "/xhs", `{"url":"https://www.xiaohongshu.com/explore/2"}`)

	reqs := pool.Requests()
	require.Len(t, reqs, 2)
	assert.False(t, reqs[0].DownloadMedia)
	assert.False(t, *reqs[0].Headless)
	assert.True(t, reqs[1].DownloadMedia, "original endpoints download by default")
	assert.True(t, *reqs[1].Headless)
}

func TestLegacy_InvalidBody(t *testing.T) {
	t.Parallel()

	w, env := post(newRouter(t, &mock.Pool{}, nil), "/douyin", `{"download_video":true}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, models.MsgInvalidRequest, env.Message)
	require.NotNil(t, env.Data.WebName)
	assert.Equal(t, "抖音", *env.Data.WebName)
}

func TestHealth(t *testing.T) {
	t.Parallel()

	stats := models.PoolStats{Workers: 8, MaxConcurrency: 3, Active: 1, Available: 2}
	pool := &mock.Pool{StatsFn: func() models.PoolStats { return stats }}

	r := gin.New()
	r.GET("/health", handler.LegacyHealth(pool))
	r.GET("/api/v1/health", handler.Health(pool, time.Now()))
	r.GET("/api/v1/pool", handler.PoolStats(pool))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.JSONEq(t, `{"status":"ok","total_workers":8,"max_concurrency":3,"available_concurrency_slots":2}`, w.Body.String())

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	var health models.HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &health))
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, 2, health.PoolStats.Available)

	stats.Available = 0
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &health))
	assert.Equal(t, "degraded", health.Status)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/pool", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"workers":8`)
}

type webhookRecorder struct {
	mu     sync.Mutex
	bodies [][]byte
	sigs   []string
	got    chan struct{}
}

func (rec *webhookRecorder) ServeHTTP(_ http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	rec.mu.Lock()
	rec.bodies = append(rec.bodies, body)
	rec.sigs = append(rec.sigs, r.Header.Get(webhook.SignatureHeader))
	rec.mu.Unlock()
	rec.got <- struct{}{}
}

func TestBatch_RunsItemsAndNotifies(t *testing.T) {
	t.Parallel()

	rec := &webhookRecorder{got: make(chan struct{}, 1)}
	hook := httptest.NewServer(rec)
	defer hook.Close()

	pool := &mock.Pool{AcquireAndRunFn: func(_ context.Context, ex platform.Extractor, req models.ExtractRequest) models.Envelope {
		switch {
		case strings.HasSuffix(req.URL, "/live"):
			return live(ex, req.URL)
		case strings.HasSuffix(req.URL, "/gone"):
			return envelope.Terminal(models.CodeNotFound, models.MsgNotFound, ex.WebName(), req.URL)
		default:
			return envelope.Failed(ex.WebName(), req.URL)
		}
	}}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	x := &handler.Extraction{Pool: pool, Extractors: registry(t), Headless: true}
	batches := handler.NewBatches(ctx, x, webhook.New("s3cret"), 2, time.Hour)

	r := gin.New()
	r.POST("/api/v1/batch", batches.Post())
	r.GET("/api/v1/batch/:id", batches.Get())

	body, _ := json.Marshal(models.BatchRequest{
		Items: []models.BatchItem{
			{Platform: "xhs", URL: "https://www.xiaohongshu.com/explore/live"},
			{Platform: "douyin", URL: "https://www.douyin.com/video/gone"},
			{Platform: "tt", URL: "https://www.toutiao.com/w/broken"},
		},
		WebhookURL: hook.URL,
	})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/batch", bytes.NewReader(body)))
	require.Equal(t, http.StatusOK, w.Code)

	var accepted models.BatchResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &accepted))
	assert.Equal(t, handler.BatchProcessing, accepted.Status)
	assert.Equal(t, 3, accepted.Total)

	waitCtx, waitCancel := context.WithTimeout(ctx, 5*time.Second)
	defer waitCancel()
	require.True(t, batches.Wait(waitCtx, accepted.ID))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/batch/"+accepted.ID, nil))
	var status models.BatchStatusResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))

	assert.Equal(t, handler.BatchPartial, status.Status)
	assert.Equal(t, 3, status.Completed)
	assert.Equal(t, 1, status.Live)
	assert.Equal(t, 1, status.Offline)
	assert.Equal(t, 1, status.Failed)
	require.Len(t, status.Results, 3)
	assert.Equal(t, models.CodeSuccess, status.Results[0].Code)
	assert.Equal(t, models.CodeNotFound, status.Results[1].Code)
	assert.Equal(t, models.CodeFailed, status.Results[2].Code)

	select {
	case <-rec.got:
	case <-time.After(5 * time.Second):
		t.Fatal("webhook not delivered")
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Equal(t, webhook.Sign("s3cret", rec.bodies[0]), rec.sigs[0])

	var event webhook.Event
	require.NoError(t, json.Unmarshal(rec.bodies[0], &event))
	assert.Equal(t, webhook.EventBatchCompleted, event.Type)
	assert.Equal(t, accepted.ID, event.JobID)
}

func TestBatch_AllLiveIsCompleted(t *testing.T) {
	t.Parallel()

	pool := &mock.Pool{AcquireAndRunFn: func(_ context.Context, ex platform.Extractor, req models.ExtractRequest) models.Envelope {
		return live(ex, req.URL)
	}}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	x := &handler.Extraction{Pool: pool, Extractors: registry(t)}
	batches := handler.NewBatches(ctx, x, nil, 1, time.Hour)
	r := gin.New()
	r.POST("/b", batches.Post())
	r.GET("/b/:id", batches.Get())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/b",
		strings.NewReader(`{"items":[{"platform":"xhs","url":"https://www.xiaohongshu.com/explore/1"}],"download_media":true}`)))
	var accepted models.BatchResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &accepted))
	require.True(t, batches.Wait(ctx, accepted.ID))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/b/"+accepted.ID, nil))
	var status models.BatchStatusResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Equal(t, handler.BatchCompleted, status.Status)

	reqs := pool.Requests()
	require.Len(t, reqs, 1)
	assert.True(t, reqs[0].DownloadMedia)
	assert.False(t, *reqs[0].Headless)
}

func TestBatch_RejectsBadRequests(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool := &mock.Pool{}
	x := &handler.Extraction{Pool: pool, Extractors: registry(t)}
	batches := handler.NewBatches(ctx, x, nil, 1, time.Hour)
	r := gin.New()
	r.POST("/b", batches.Post())
	r.GET("/b/:id", batches.Get())

	tests := map[string]string{
		"empty":            `{"items":[]}`,
		"unknown platform": `{"items":[{"platform":"weibo","url":"https://weibo.com/1"}]}`,
		"bad url":          `{"items":[{"platform":"xhs","url":"nope"}]}`,
	}
	for name, body := range tests {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/b", strings.NewReader(body)))
		assert.Equal(t, http.StatusBadRequest, w.Code, name)
		assert.Contains(t, w.Body.String(), models.ErrCodeInvalidInput, name)
	}
	assert.Empty(t, pool.Requests())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/b/missing", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.False(t, batches.Wait(ctx, "missing"))
}
