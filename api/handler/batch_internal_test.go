package handler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/use-agent/postwatch/models"
)

func storeJob(b *Batches, id string, created time.Time, finished bool) {
	j := &batchJob{
		job:  models.BatchJob{ID: id, Total: 1, Results: make([]*models.Envelope, 1), CreatedAt: created.Unix()},
		done: make(chan struct{}),
	}
	if finished {
		j.finish()
	}
	b.jobs.Store(id, j)
}

func TestSweep_DropsOnlyExpiredFinishedJobs(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	b := NewBatches(ctx, &Extraction{}, nil, 1, time.Hour)
	now := time.Date(2025, 12, 20, 12, 0, 0, 0, time.UTC)

	storeJob(b, "old-done", now.Add(-2*time.Hour), true)
	storeJob(b, "old-running", now.Add(-2*time.Hour), false)
	storeJob(b, "fresh-done", now.Add(-10*time.Minute), true)

	b.sweep(now)

	_, ok := b.jobs.Load("old-done")
	assert.False(t, ok)
	_, ok = b.jobs.Load("old-running")
	assert.True(t, ok, "running jobs are never swept")
	_, ok = b.jobs.Load("fresh-done")
	assert.True(t, ok)
}

func TestBatchJob_FinishStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		codes []int
		want  string
	}{
		{"all live or offline", []int{models.CodeSuccess, models.CodeNotFound}, BatchCompleted},
		{"some failed", []int{models.CodeSuccess, models.CodeFailed}, BatchPartial},
		{"all failed", []int{models.CodeForbidden, models.CodeFailed}, BatchFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			j := &batchJob{
				job:  models.BatchJob{Total: len(tt.codes), Results: make([]*models.Envelope, len(tt.codes))},
				done: make(chan struct{}),
			}
			for i, code := range tt.codes {
				j.record(i, models.Envelope{Code: code})
			}
			j.finish()

			s := j.snapshot()
			assert.Equal(t, tt.want, s.Status)
			assert.Equal(t, len(tt.codes), s.Completed)
		})
	}
}
