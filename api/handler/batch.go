package handler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/use-agent/postwatch/models"
	"github.com/use-agent/postwatch/platform"
	"github.com/use-agent/postwatch/webhook"
)

// Batch job states.
const (
	BatchProcessing = "processing"
	BatchCompleted  = "completed"
	BatchPartial    = "partial"
	BatchFailed     = "failed"
)

// Batches runs and tracks batch refresh jobs.
type Batches struct {
	ctx      context.Context
	x        *Extraction
	notifier *webhook.Notifier
	parallel int
	expiry   time.Duration

	jobs sync.Map // id -> *batchJob
}

// NewBatches creates the job store. Items run under ctx, at most parallel at
// a time; finished jobs are dropped after expiry. A background goroutine
// sweeps expired jobs until ctx is done.
func NewBatches(ctx context.Context, x *Extraction, notifier *webhook.Notifier, parallel int, expiry time.Duration) *Batches {
	if parallel < 1 {
		parallel = 1
	}
	if expiry <= 0 {
		expiry = time.Hour
	}
	b := &Batches{ctx: ctx, x: x, notifier: notifier, parallel: parallel, expiry: expiry}
	go b.sweepLoop()
	return b
}

// batchJob guards a models.BatchJob that item goroutines update while
// readers poll it.
type batchJob struct {
	mu   sync.Mutex
	job  models.BatchJob
	done chan struct{}
}

func (j *batchJob) record(i int, env models.Envelope) {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.job.Results[i] = &env
	j.job.Completed++
	switch {
	case env.IsLive():
		j.job.Live++
	case env.IsOffline():
		j.job.Offline++
	default:
		j.job.Failed++
	}
}

func (j *batchJob) finish() {
	j.mu.Lock()
	switch {
	case j.job.Failed == j.job.Total:
		j.job.Status = BatchFailed
	case j.job.Failed > 0:
		j.job.Status = BatchPartial
	default:
		j.job.Status = BatchCompleted
	}
	j.mu.Unlock()
	close(j.done)
}

func (j *batchJob) snapshot() models.BatchStatusResponse {
	j.mu.Lock()
	defer j.mu.Unlock()

	// Results stay aligned with the request items; pending ones are null.
	results := append([]*models.Envelope(nil), j.job.Results...)
	return models.BatchStatusResponse{
		ID:        j.job.ID,
		Status:    j.job.Status,
		Completed: j.job.Completed,
		Total:     j.job.Total,
		Live:      j.job.Live,
		Offline:   j.job.Offline,
		Failed:    j.job.Failed,
		Results:   results,
	}
}

// Post returns a handler for POST /api/v1/batch.
func (b *Batches) Post() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.BatchRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": models.ErrorDetail{Code: models.ErrCodeInvalidInput, Message: err.Error()},
			})
			return
		}

		exs := make([]platform.Extractor, len(req.Items))
		for i, item := range req.Items {
			ex, ok := b.x.Extractors.Get(item.Platform)
			if !ok {
				c.JSON(http.StatusBadRequest, gin.H{
					"error": models.ErrorDetail{
						Code:    models.ErrCodeInvalidInput,
						Message: fmt.Sprintf("items[%d]: unknown platform %q", i, item.Platform),
					},
				})
				return
			}
			exs[i] = ex
		}

		job := &batchJob{
			job: models.BatchJob{
				ID:        uuid.NewString(),
				Status:    BatchProcessing,
				Total:     len(req.Items),
				Results:   make([]*models.Envelope, len(req.Items)),
				CreatedAt: time.Now().Unix(),
			},
			done: make(chan struct{}),
		}
		b.jobs.Store(job.job.ID, job)

		go b.run(job, exs, req)

		c.JSON(http.StatusOK, models.BatchResponse{
			ID:     job.job.ID,
			Status: BatchProcessing,
			Total:  job.job.Total,
		})
	}
}

// Get returns a handler for GET /api/v1/batch/:id.
func (b *Batches) Get() gin.HandlerFunc {
	return func(c *gin.Context) {
		val, ok := b.jobs.Load(c.Param("id"))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{
				"error": models.ErrorDetail{Code: models.ErrCodeInvalidInput, Message: "batch job not found"},
			})
			return
		}
		c.JSON(http.StatusOK, val.(*batchJob).snapshot())
	}
}

// Wait blocks until job id finishes or ctx is done. It reports false for
// unknown ids.
func (b *Batches) Wait(ctx context.Context, id string) bool {
	val, ok := b.jobs.Load(id)
	if !ok {
		return false
	}
	select {
	case <-val.(*batchJob).done:
		return true
	case <-ctx.Done():
		return false
	}
}

// run fans the items out to the pool. The group limit keeps queued items
// from holding a goroutine blocked on the pool's semaphore.
func (b *Batches) run(job *batchJob, exs []platform.Extractor, req models.BatchRequest) {
	g := new(errgroup.Group)
	g.SetLimit(b.parallel)

	for i, item := range req.Items {
		g.Go(func() error {
			r := models.ExtractRequest{URL: item.URL, DownloadMedia: req.DownloadMedia}
			r.Defaults(b.x.Headless)
			job.record(i, b.x.run(b.ctx, exs[i], r))
			return nil
		})
	}
	_ = g.Wait()
	job.finish()

	status := job.snapshot()
	slog.Info("batch job finished",
		"id", status.ID,
		"status", status.Status,
		"live", status.Live,
		"offline", status.Offline,
		"failed", status.Failed,
		"total", status.Total,
	)

	if req.WebhookURL != "" && b.notifier != nil {
		b.notifier.DeliverAsync(req.WebhookURL, &webhook.Event{
			Type:      webhook.EventBatchCompleted,
			JobID:     status.ID,
			Timestamp: time.Now().Unix(),
			Data:      status,
		})
	}
}

func (b *Batches) sweepLoop() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-b.ctx.Done():
			return
		case now := <-ticker.C:
			b.sweep(now)
		}
	}
}

// sweep drops finished jobs created before now minus the expiry.
func (b *Batches) sweep(now time.Time) {
	cutoff := now.Add(-b.expiry).Unix()
	b.jobs.Range(func(key, value any) bool {
		j := value.(*batchJob)
		select {
		case <-j.done:
		default:
			return true
		}
		j.mu.Lock()
		expired := j.job.CreatedAt < cutoff
		j.mu.Unlock()
		if expired {
			b.jobs.Delete(key)
		}
		return true
	})
}
