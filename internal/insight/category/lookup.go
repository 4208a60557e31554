package category

import (
	"context"

	"github.com/mohammad-safakhou/brandlens/internal/insight"
)

// TrendCode is the realtime trends category parameter for a bucket.
func TrendCode(b insight.Bucket) string {
	switch b {
	case insight.BucketBusiness:
		return "b"
	case insight.BucketEntertainment:
		return "e"
	case insight.BucketScienceTech:
		return "t"
	case insight.BucketHealth:
		return "m"
	case insight.BucketSports:
		return "s"
	default:
		return "all"
	}
}

// WithFallback wraps a bucketed lookup so that a miss on a specific bucket is
// retried once with BucketAll.
func WithFallback[T any](lookup func(ctx context.Context, b insight.Bucket) insight.Result[T]) func(context.Context, insight.CategoryResolution) insight.Result[T] {
	return func(ctx context.Context, res insight.CategoryResolution) insight.Result[T] {
		out := lookup(ctx, res.Bucket)
		if out.OK() || res.Bucket == insight.BucketAll || out.Reason() == insight.ReasonNotConfigured {
			return out
		}
		if ctx.Err() != nil {
			return out
		}
		return lookup(ctx, insight.BucketAll)
	}
}
