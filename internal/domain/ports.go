package domain

import "context"

type ReviewRepository interface {
	// Write paths
	UpsertReviews(ctx context.Context, rs []Review) error // keeps persisted approved flags
	SetApproved(ctx context.Context, id string, approved bool) (Review, error)
	UpsertApproval(ctx context.Context, r Review) (Review, error)

	// Read paths
	Get(ctx context.Context, id string) (Review, error)
	ApprovalStates(ctx context.Context) (map[string]bool, error)
	ListApproved(ctx context.Context) ([]Review, error)
}

// ReviewSource yields raw upstream review payloads (live API or mock file).
type ReviewSource interface {
	Name() string
	FetchReviews(ctx context.Context) ([]any, error)
}

type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttlSec int) error
	Del(ctx context.Context, key string) error
	Incr(ctx context.Context, key string) (int64, error)
}
