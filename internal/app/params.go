package app

import (
	"math"
	"net/url"
	"strconv"
	"strings"

	"flex_reviews/internal/domain"
)

// ParseReviewQuery coerces string query parameters into a typed query.
// Empty values are treated as absent. The first invalid field is reported
// as a *domain.ValidationError.
func ParseReviewQuery(v url.Values, defaultLimit int) (domain.ReviewQuery, error) {
	q := domain.ReviewQuery{Sort: domain.SortNewest, Limit: defaultLimit}
	get := func(k string) (string, bool) {
		s := strings.TrimSpace(v.Get(k))
		return s, s != ""
	}

	if s, ok := get("id"); ok {
		q.ID = &s
	}
	if s, ok := get("listingId"); ok {
		q.ListingID = &s
	}
	if s, ok := get("q"); ok {
		q.Q = &s
	}
	if s, ok := get("type"); ok {
		t := domain.Type(s)
		if !t.Valid() {
			return q, domain.NewValidationError("type", "must be one of guest_to_host, host_to_guest")
		}
		q.Type = &t
	}
	if s, ok := get("status"); ok {
		st := domain.Status(s)
		if !st.Valid() {
			return q, domain.NewValidationError("status", "must be one of awaiting, published, pending, scheduled, expired")
		}
		q.Status = &st
	}
	if s, ok := get("channel"); ok {
		ch := domain.Channel(s)
		if !ch.Valid() {
			return q, domain.NewValidationError("channel", "must be one of airbnb, booking, vrbo, direct, unknown")
		}
		q.Channel = &ch
	}
	for _, k := range []string{"minRating", "maxRating"} {
		s, ok := get(k)
		if !ok {
			continue
		}
		// decimal only; ParseFloat also takes hex floats and NaN
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || strings.ContainsAny(s, "xX") || math.IsNaN(f) || f < 0 || f > 5 {
			return q, domain.NewValidationError(k, "must be a number between 0 and 5")
		}
		if k == "minRating" {
			q.MinRating = &f
		} else {
			q.MaxRating = &f
		}
	}
	for _, k := range []string{"from", "to"} {
		s, ok := get(k)
		if !ok {
			continue
		}
		t, ok := ParseLooseTime(s)
		if !ok {
			return q, domain.NewValidationError(k, "must be an ISO date")
		}
		if k == "from" {
			q.From = &t
		} else {
			q.To = &t
		}
	}
	if s, ok := get("sort"); ok {
		q.Sort = domain.Sort(s)
		if !q.Sort.Valid() {
			return q, domain.NewValidationError("sort", "must be one of newest, oldest, rating_desc, rating_asc")
		}
	}
	if s, ok := get("limit"); ok {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 || n > domain.MaxLimit {
			return q, domain.NewValidationError("limit", "must be an integer between 1 and %d", domain.MaxLimit)
		}
		q.Limit = n
	}
	if s, ok := get("offset"); ok {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			return q, domain.NewValidationError("offset", "must be a non-negative integer")
		}
		q.Offset = n
	}
	return q, nil
}

// ApprovalRequest is the moderation mutation body.
type ApprovalRequest struct {
	Approved *bool `json:"approved"`
}

func (a ApprovalRequest) Validate() error {
	if a.Approved == nil {
		return domain.NewValidationError("approved", "approved must be a boolean")
	}
	return nil
}
