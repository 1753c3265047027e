package domain

import "time"

type Sort string

const (
	SortNewest     Sort = "newest"
	SortOldest     Sort = "oldest"
	SortRatingDesc Sort = "rating_desc"
	SortRatingAsc  Sort = "rating_asc"
)

func (s Sort) Valid() bool {
	return contains([]Sort{SortNewest, SortOldest, SortRatingDesc, SortRatingAsc}, s)
}

const (
	MaxLimit          = 200
	DefaultAdminLimit = 50
)

// ReviewQuery is the typed filter/sort/paginate parameter set. Nil pointers
// mean "not filtered".
type ReviewQuery struct {
	ID        *string
	ListingID *string
	Q         *string
	Type      *Type
	Status    *Status
	Channel   *Channel
	MinRating *float64
	MaxRating *float64
	From      *time.Time
	To        *time.Time
	Sort      Sort
	Limit     int
	Offset    int

	// ApprovedOnly is set by the public surface only; it is never read from
	// request parameters.
	ApprovedOnly bool
}

type Meta struct {
	Count       int    `json:"count"`
	Limit       int    `json:"limit"`
	Offset      int    `json:"offset"`
	GeneratedAt string `json:"generatedAt"`
}

type ReviewsPage struct {
	Meta    Meta     `json:"meta"`
	Reviews []Review `json:"reviews"`
}
