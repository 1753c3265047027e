package app

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"flex_reviews/internal/adapters/observability"
	"flex_reviews/internal/domain"
)

// upstream fetches and normalizes the raw review pool. Nothing is kept
// between calls.
type upstream struct {
	source domain.ReviewSource
	norm   *Normalizer
}

func (u upstream) load(ctx context.Context) ([]domain.Review, error) {
	raws, err := u.source.FetchReviews(ctx)
	if err != nil {
		var ue *domain.UpstreamFetchError
		if errors.As(err, &ue) {
			return nil, err
		}
		return nil, &domain.UpstreamFetchError{Source: u.source.Name(), Err: err}
	}
	out := u.norm.NormalizeMany(raws)
	observability.ObserveNormalized(u.source.Name(), len(out), len(raws)-len(out))
	return out, nil
}

func (u upstream) find(ctx context.Context, id string) (domain.Review, error) {
	pool, err := u.load(ctx)
	if err != nil {
		return domain.Review{}, err
	}
	for _, r := range pool {
		if r.ID == id {
			return r, nil
		}
	}
	return domain.Review{}, domain.ErrNotFound
}

const publicGenKey = "public:reviews:gen"

// bumpPublic moves the public listing cache to a fresh generation so stale
// pages are never served after a moderation change.
func bumpPublic(ctx context.Context, c domain.Cache) {
	if c == nil {
		return
	}
	_, err := c.Incr(ctx, publicGenKey)
	if err == nil {
		return
	}
	log.Warn().Err(err).Str("key", publicGenKey).Msg("public cache generation bump failed; resetting")
	// Any value other than the current one retires every cached page.
	if err := c.Set(ctx, publicGenKey, time.Now().UnixNano(), 0); err != nil {
		log.Error().Err(err).Str("key", publicGenKey).Msg("public cache generation reset failed")
	}
}
