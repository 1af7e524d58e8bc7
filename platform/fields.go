package platform

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/use-agent/postwatch/models"
	"github.com/use-agent/postwatch/page"
)

// readFields reads every declared field concurrently. Reads are isolated
// from each other: a missing, slow or panicking read only nils its own field.
func (r *Runner) readFields(ctx context.Context, h page.Handle, v *Variant) models.ExtractedFields {
	values := make([]*string, len(v.Fields))

	var g errgroup.Group
	for i, f := range v.Fields {
		g.Go(func() error {
			values[i] = r.readField(ctx, h, v, f)
			return nil
		})
	}
	_ = g.Wait()

	var out models.ExtractedFields
	for i, f := range v.Fields {
		assign(&out, f, values[i])
	}
	return out
}

func (r *Runner) readField(ctx context.Context, h page.Handle, v *Variant, f Field) (value *string) {
	defer func() {
		if rec := recover(); rec != nil {
			slog.Warn("field read panicked", "variant", v.Probes.Name, "field", f, "panic", fmt.Sprint(rec))
			value = nil
		}
	}()

	probe, _ := v.Probes.Probe(string(f))
	read := h.Text(ctx, probe, r.fieldTimeout())

	if read.Elapsed > r.slowRead() {
		slog.Warn("slow field read",
			"variant", v.Probes.Name, "field", f, "elapsed", read.Elapsed, "status", read.Status)
	}
	if !read.Ok() {
		slog.Debug("field not read",
			"variant", v.Probes.Name, "field", f, "status", read.Status, "error", read.Err)
	}
	return read.Ptr()
}

func assign(out *models.ExtractedFields, f Field, v *string) {
	switch f {
	case FieldTitle:
		out.Title = v
	case FieldAuthor:
		out.Author = v
	case FieldContent:
		out.Content = v
	case FieldLikes:
		out.Likes = v
	case FieldComments:
		out.Comments = v
	case FieldShares:
		out.Shares = v
	case FieldViews:
		out.Views = v
	case FieldFavours:
		out.Favours = v
	case FieldFans:
		out.Fans = v
	case FieldPublishTime:
		out.PublishTime = v
	}
}
