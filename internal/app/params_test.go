package app_test

import (
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flex_reviews/internal/app"
	"flex_reviews/internal/domain"
)

func TestParseReviewQuery_Defaults(t *testing.T) {
	q, err := app.ParseReviewQuery(url.Values{}, 12)
	require.NoError(t, err)
	assert.Equal(t, domain.ReviewQuery{Sort: domain.SortNewest, Limit: 12}, q)
}

func TestParseReviewQuery_AllFields(t *testing.T) {
	v := url.Values{
		"id":        {"hostaway:1"},
		"listingId": {"70985"},
		"q":         {" shoreditch "},
		"type":      {"guest_to_host"},
		"status":    {"published"},
		"channel":   {"airbnb"},
		"minRating": {"3.5"},
		"maxRating": {"5"},
		"from":      {"2020-01-01"},
		"to":        {"2020-12-31 23:59:59"},
		"sort":      {"rating_asc"},
		"limit":     {"200"},
		"offset":    {"10"},
		"approved":  {"false"}, // not a query parameter
	}
	q, err := app.ParseReviewQuery(v, 50)
	require.NoError(t, err)

	assert.Equal(t, "hostaway:1", *q.ID)
	assert.Equal(t, "70985", *q.ListingID)
	assert.Equal(t, "shoreditch", *q.Q)
	assert.Equal(t, domain.TypeGuestToHost, *q.Type)
	assert.Equal(t, domain.StatusPublished, *q.Status)
	assert.Equal(t, domain.ChannelAirbnb, *q.Channel)
	assert.Equal(t, 3.5, *q.MinRating)
	assert.Equal(t, 5.0, *q.MaxRating)
	assert.Equal(t, time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), *q.From)
	assert.Equal(t, time.Date(2020, 12, 31, 23, 59, 59, 0, time.UTC), *q.To)
	assert.Equal(t, domain.SortRatingAsc, q.Sort)
	assert.Equal(t, 200, q.Limit)
	assert.Equal(t, 10, q.Offset)
	assert.False(t, q.ApprovedOnly)
}

func TestParseReviewQuery_EmptyValuesAreAbsent(t *testing.T) {
	q, err := app.ParseReviewQuery(url.Values{"type": {""}, "limit": {" "}}, 50)
	require.NoError(t, err)
	assert.Nil(t, q.Type)
	assert.Equal(t, 50, q.Limit)
}

func TestParseReviewQuery_Invalid(t *testing.T) {
	cases := map[string]string{
		"type":      "guest-to-host",
		"status":    "archived",
		"channel":   "expedia",
		"minRating": "abc",
		"maxRating": "6",
		"from":      "yesterday",
		"to":        "31/12/2020",
		"sort":      "random",
		"limit":     "0",
		"offset":    "-1",
	}
	for field, val := range cases {
		t.Run(field, func(t *testing.T) {
			_, err := app.ParseReviewQuery(url.Values{field: {val}}, 50)
			var ve *domain.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, field, ve.Field)
		})
	}

	_, err := app.ParseReviewQuery(url.Values{"limit": {"201"}}, 50)
	assert.Error(t, err)

	for _, val := range []string{"NaN", "nan", "0x1p-2", "0X1", "-0x1p-2"} {
		for _, field := range []string{"minRating", "maxRating"} {
			_, err := app.ParseReviewQuery(url.Values{field: {val}}, 50)
			var ve *domain.ValidationError
			require.ErrorAs(t, err, &ve, "%s=%s", field, val)
			assert.Equal(t, field, ve.Field)
		}
	}

	q, err := app.ParseReviewQuery(url.Values{"minRating": {"2.5e0"}, "maxRating": {"4"}}, 50)
	require.NoError(t, err)
	assert.Equal(t, 2.5, *q.MinRating)
	assert.Equal(t, 4.0, *q.MaxRating)
}

func TestApprovalRequest_Validate(t *testing.T) {
	assert.NoError(t, app.ApprovalRequest{Approved: ptr(false)}.Validate())

	err := app.ApprovalRequest{}.Validate()
	var ve *domain.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "approved", ve.Field)
}
