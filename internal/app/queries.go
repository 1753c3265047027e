package app

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"flex_reviews/internal/domain"
)

type QueryService struct {
	repo     domain.ReviewRepository
	up       upstream
	cache    domain.Cache
	cacheTTL time.Duration
	now      func() time.Time
}

func NewQueryService(r domain.ReviewRepository, src domain.ReviewSource, n *Normalizer, c domain.Cache, ttl time.Duration) *QueryService {
	return &QueryService{repo: r, up: upstream{source: src, norm: n}, cache: c, cacheTTL: ttl, now: time.Now}
}

// ListHostaway is the manager view: the normalized upstream pool with the
// persisted approval state merged in.
func (s *QueryService) ListHostaway(ctx context.Context, q domain.ReviewQuery) (domain.ReviewsPage, error) {
	var (
		pool   []domain.Review
		states map[string]bool
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		pool, err = s.up.load(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		states, err = s.repo.ApprovalStates(gctx)
		return domain.Persist("approval states", err)
	})
	if err := g.Wait(); err != nil {
		return domain.ReviewsPage{}, err
	}

	for i := range pool {
		pool[i].Approved = states[pool[i].ID]
	}
	q.ApprovedOnly = false
	return Apply(pool, q, s.now()), nil
}

// ListPublic returns approved reviews only, stripped of private fields.
// The approved filter is applied regardless of q.
func (s *QueryService) ListPublic(ctx context.Context, q domain.ReviewQuery) (domain.ReviewsPage, error) {
	q.ApprovedOnly = true

	key, cached := s.publicKey(ctx, q)
	var out domain.ReviewsPage
	if cached {
		if ok, _ := s.cache.Get(ctx, key, &out); ok {
			out.Meta.GeneratedAt = domain.FormatTime(s.now())
			return out, nil
		}
	}

	approved, err := s.repo.ListApproved(ctx)
	if err != nil {
		return domain.ReviewsPage{}, domain.Persist("list approved", err)
	}
	pool := make([]domain.Review, 0, len(approved))
	for _, r := range approved {
		if r.Approved {
			pool = append(pool, r.Public())
		}
	}
	out = Apply(pool, q, s.now())

	if cached {
		// optional size guard
		if b, _ := json.Marshal(out); len(b) < 1_000_000 {
			_ = s.cache.Set(ctx, key, out, int(s.cacheTTL.Seconds()))
		}
	}
	return out, nil
}

// GetReview prefers the persisted record and falls back to the upstream pool.
func (s *QueryService) GetReview(ctx context.Context, id string) (domain.Review, error) {
	r, err := s.repo.Get(ctx, id)
	if err == nil {
		return r, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return domain.Review{}, domain.Persist("get", err)
	}
	return s.up.find(ctx, id)
}

// publicKey reports false when the cache generation cannot be read; the
// caller then bypasses the cache rather than risk a retired page.
func (s *QueryService) publicKey(ctx context.Context, q domain.ReviewQuery) (string, bool) {
	if s.cache == nil {
		return "", false
	}
	var gen int64
	if _, err := s.cache.Get(ctx, publicGenKey, &gen); err != nil {
		log.Warn().Err(err).Str("key", publicGenKey).Msg("public cache generation unreadable; bypassing cache")
		return "", false
	}
	return fmt.Sprintf("public:reviews:%d:%s", gen, queryKey(q)), true
}

// queryKey is a stable digest of every field that affects the result.
func queryKey(q domain.ReviewQuery) string {
	str := func(p *string) string {
		if p == nil {
			return "-"
		}
		return *p
	}
	num := func(p *float64) string {
		if p == nil {
			return "-"
		}
		return fmt.Sprintf("%g", *p)
	}
	ts := func(p *time.Time) string {
		if p == nil {
			return "-"
		}
		return p.UTC().Format(time.RFC3339Nano)
	}
	var typ, st, ch string
	if q.Type != nil {
		typ = string(*q.Type)
	}
	if q.Status != nil {
		st = string(*q.Status)
	}
	if q.Channel != nil {
		ch = string(*q.Channel)
	}
	sig := fmt.Sprintf("%s|%s|%s|%s|%s|%s|%s|%s|%s|%s|%s|%d|%d|%t",
		str(q.ID), str(q.ListingID), str(q.Q), typ, st, ch,
		num(q.MinRating), num(q.MaxRating), ts(q.From), ts(q.To),
		q.Sort, q.Limit, q.Offset, q.ApprovedOnly)
	sum := sha1.Sum([]byte(sig))
	return hex.EncodeToString(sum[:])
}
