// Package memory is a process-local ReviewRepository for development and
// tests. One mutex guards the map, so per-id updates are linearizable.
package memory

import (
	"context"
	"sort"
	"sync"

	"flex_reviews/internal/domain"
)

type Store struct {
	mu   sync.Mutex
	rows map[string]domain.Review
}

func New() *Store { return &Store{rows: make(map[string]domain.Review)} }

// clone detaches the mutable parts so callers never alias stored rows.
func clone(r domain.Review) domain.Review {
	if r.Categories != nil {
		cats := make(map[string]float64, len(r.Categories))
		for k, v := range r.Categories {
			cats[k] = v
		}
		r.Categories = cats
	}
	return r
}

func (s *Store) UpsertReviews(ctx context.Context, rs []domain.Review) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range rs {
		if err := r.Validate(); err != nil {
			return err
		}
		if old, ok := s.rows[r.ID]; ok {
			r.Approved = old.Approved
		}
		s.rows[r.ID] = clone(r)
	}
	return nil
}

func (s *Store) SetApproved(ctx context.Context, id string, approved bool) (domain.Review, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rows[id]
	if !ok {
		return domain.Review{}, domain.ErrNotFound
	}
	r.Approved = approved
	s.rows[id] = r
	return clone(r), nil
}

func (s *Store) UpsertApproval(ctx context.Context, r domain.Review) (domain.Review, error) {
	if err := r.Validate(); err != nil {
		return domain.Review{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.rows[r.ID]; ok {
		old.Approved = r.Approved
		s.rows[r.ID] = old
		return clone(old), nil
	}
	s.rows[r.ID] = clone(r)
	return clone(r), nil
}

func (s *Store) Get(ctx context.Context, id string) (domain.Review, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rows[id]
	if !ok {
		return domain.Review{}, domain.ErrNotFound
	}
	return clone(r), nil
}

func (s *Store) ApprovalStates(ctx context.Context) (map[string]bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]bool, len(s.rows))
	for id, r := range s.rows {
		out[id] = r.Approved
	}
	return out, nil
}

func (s *Store) ListApproved(ctx context.Context) ([]domain.Review, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Review
	for _, r := range s.rows {
		if r.Approved {
			out = append(out, clone(r))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
