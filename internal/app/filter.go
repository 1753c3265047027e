package app

import (
	"sort"
	"strings"
	"time"

	"flex_reviews/internal/domain"
)

// Apply filters, sorts and paginates pool. The pool is not modified.
// Ordering is total (ties fall back to ascending id) so offsets page
// through a stable sequence.
func Apply(pool []domain.Review, q domain.ReviewQuery, now time.Time) domain.ReviewsPage {
	filtered := make([]domain.Review, 0, len(pool))
	for _, r := range pool {
		if matches(r, q) {
			filtered = append(filtered, r)
		}
	}

	sortReviews(filtered, q.Sort)

	limit := q.Limit
	if limit <= 0 {
		limit = domain.DefaultAdminLimit
	}
	start := min(max(q.Offset, 0), len(filtered))
	end := min(start+limit, len(filtered))

	page := make([]domain.Review, end-start)
	copy(page, filtered[start:end])

	return domain.ReviewsPage{
		Meta: domain.Meta{
			Count:       len(filtered),
			Limit:       limit,
			Offset:      q.Offset,
			GeneratedAt: domain.FormatTime(now),
		},
		Reviews: page,
	}
}

func matches(r domain.Review, q domain.ReviewQuery) bool {
	if q.ApprovedOnly && !r.Approved {
		return false
	}
	if q.ID != nil && r.ID != *q.ID {
		return false
	}
	if q.ListingID != nil && r.ListingID != *q.ListingID {
		return false
	}
	if q.Q != nil && !matchesText(r, *q.Q) {
		return false
	}
	if q.Type != nil && r.Type != *q.Type {
		return false
	}
	if q.Status != nil && (r.Status == nil || *r.Status != *q.Status) {
		return false
	}
	if q.Channel != nil && r.Channel != *q.Channel {
		return false
	}

	// Unrated reviews count as 0 against minRating and 5 against maxRating.
	if q.MinRating != nil && ratingOr(r, 0) < *q.MinRating {
		return false
	}
	if q.MaxRating != nil && ratingOr(r, 5) > *q.MaxRating {
		return false
	}

	// Reviews whose date does not parse are never excluded by range bounds.
	if t, ok := domain.ParseTime(r.SubmittedAt); ok {
		if q.From != nil && t.Before(*q.From) {
			return false
		}
		if q.To != nil && t.After(*q.To) {
			return false
		}
	}
	return true
}

func matchesText(r domain.Review, needle string) bool {
	needle = strings.ToLower(needle)
	for _, hay := range []string{r.ID, r.ListingID, deref(r.ListingName), deref(r.Text), r.AuthorName()} {
		if strings.Contains(strings.ToLower(hay), needle) {
			return true
		}
	}
	return false
}

func ratingOr(r domain.Review, def float64) float64 {
	if r.Rating == nil {
		return def
	}
	return *r.Rating
}

func submittedAt(r domain.Review) time.Time {
	t, _ := domain.ParseTime(r.SubmittedAt)
	return t
}

// compareRating orders nil ratings below any number.
func compareRating(a, b *float64) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	case *a < *b:
		return -1
	case *a > *b:
		return 1
	}
	return 0
}

func sortReviews(rs []domain.Review, by domain.Sort) {
	sort.SliceStable(rs, func(i, j int) bool {
		a, b := rs[i], rs[j]
		var c int
		switch by {
		case domain.SortOldest:
			c = submittedAt(a).Compare(submittedAt(b))
		case domain.SortRatingDesc:
			c = -compareRating(a.Rating, b.Rating)
		case domain.SortRatingAsc:
			c = compareRating(a.Rating, b.Rating)
		}
		// rating ties and newest fall back to newest first
		if c == 0 && by != domain.SortOldest {
			c = submittedAt(b).Compare(submittedAt(a))
		}
		if c != 0 {
			return c < 0
		}
		return a.ID < b.ID
	})
}
