package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"flex_reviews/internal/adapters/observability"
	"flex_reviews/internal/domain"
)

type ModerationService struct {
	repo  domain.ReviewRepository
	up    upstream
	cache domain.Cache
}

func NewModerationService(r domain.ReviewRepository, src domain.ReviewSource, n *Normalizer, cache domain.Cache) *ModerationService {
	return &ModerationService{repo: r, up: upstream{source: src, norm: n}, cache: cache}
}

// SetApproved flips the approval flag of a review. A review that exists only
// upstream is materialized into the store on its first moderation.
// Atomicity per id comes from the store's conditional upsert.
func (s *ModerationService) SetApproved(ctx context.Context, id string, approved bool) (domain.Review, error) {
	if id == "" {
		return domain.Review{}, domain.NewValidationError("id", "must not be empty")
	}

	r, err := s.repo.SetApproved(ctx, id, approved)
	switch {
	case err == nil:
		s.afterChange(ctx, r)
		return r, nil
	case !errors.Is(err, domain.ErrNotFound):
		return domain.Review{}, domain.Persist("set approved", err)
	}

	// 1) Not persisted yet: look it up in the normalized upstream pool.
	cand, err := s.up.find(ctx, id)
	if err != nil {
		return domain.Review{}, err
	}

	// 2) Insert-or-update with the requested flag.
	cand.Approved = approved
	r, err = s.repo.UpsertApproval(ctx, cand)
	if err != nil {
		return domain.Review{}, domain.Persist("upsert approval", err)
	}
	log.Info().Str("id", id).Bool("approved", approved).Msg("review materialized from upstream")
	s.afterChange(ctx, r)
	return r, nil
}

func (s *ModerationService) afterChange(ctx context.Context, r domain.Review) {
	observability.ObserveApproval(r.Approved)
	bumpPublic(ctx, s.cache)
}

// IngestionService seeds the store from the upstream pool. Re-running it
// refreshes review content but never touches approval flags.
type IngestionService struct {
	repo  domain.ReviewRepository
	up    upstream
	cache domain.Cache
}

func NewIngestionService(r domain.ReviewRepository, src domain.ReviewSource, n *Normalizer, cache domain.Cache) *IngestionService {
	return &IngestionService{repo: r, up: upstream{source: src, norm: n}, cache: cache}
}

// Load returns the normalized upstream pool.
func (s *IngestionService) Load(ctx context.Context) ([]domain.Review, error) {
	return s.up.load(ctx)
}

func (s *IngestionService) IngestBatch(ctx context.Context, rs []domain.Review) error {
	if len(rs) == 0 {
		return nil
	}
	if err := s.repo.UpsertReviews(ctx, rs); err != nil {
		// do not swallow this; surface so we know inserts failed
		return fmt.Errorf("upsert %d reviews (first %s): %w", len(rs), rs[0].ID, domain.Persist("upsert reviews", err))
	}
	bumpPublic(ctx, s.cache)
	return nil
}

// Batches splits rs into chunks of at most size.
func Batches(rs []domain.Review, size int) [][]domain.Review {
	if size <= 0 {
		size = len(rs)
	}
	var out [][]domain.Review
	for len(rs) > 0 {
		n := min(size, len(rs))
		out = append(out, rs[:n])
		rs = rs[n:]
	}
	return out
}
