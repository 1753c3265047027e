package app

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"flex_reviews/internal/domain"
)

/********** id generation **********/

// IDGenerator produces the token for reviews that arrive without an
// upstream id. Tokens only need to be unique within a process run.
type IDGenerator interface {
	NewID() string
}

type IDFunc func() string

func (f IDFunc) NewID() string { return f() }

type uuidIDs struct{}

func (uuidIDs) NewID() string { return strings.ReplaceAll(uuid.NewString(), "-", "") }

/********** permissive intake shape **********/

type categoryRating struct {
	Category string
	Rating   float64
}

// hostawayReview holds the Hostaway fields we read. Unknown extra fields in
// the payload are ignored.
type hostawayReview struct {
	ID              *string
	ListingMapID    *string
	ListingID       *string
	ListingName     *string
	Type            *string
	ChannelID       any
	Status          *string
	Rating          *float64
	PublicReview    *string
	PrivateFeedback *string
	SubmittedAt     *string
	DepartureDate   *string
	GuestName       *string
	ReservationID   *string
	Categories      []categoryRating
}

func parseHostaway(raw any) (hostawayReview, error) {
	m, ok := raw.(map[string]any)
	if !ok {
		return hostawayReview{}, domain.NewValidationError("", "payload must be an object, got %T", raw)
	}
	var (
		h    hostawayReview
		errs []error
	)
	collect := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}
	var err error
	h.ID, err = optScalar(m, "id")
	collect(err)
	h.ListingMapID, err = optScalar(m, "listingMapId")
	collect(err)
	h.ListingID, err = optScalar(m, "listingId")
	collect(err)
	h.ReservationID, err = optScalar(m, "reservationId")
	collect(err)
	h.ListingName, err = optString(m, "listingName")
	collect(err)
	h.Type, err = optString(m, "type")
	collect(err)
	h.Status, err = optString(m, "status")
	collect(err)
	h.PublicReview, err = optString(m, "publicReview")
	collect(err)
	h.PrivateFeedback, err = optString(m, "privateFeedback")
	collect(err)
	h.SubmittedAt, err = optString(m, "submittedAt")
	collect(err)
	h.DepartureDate, err = optString(m, "departureDate")
	collect(err)
	h.GuestName, err = optString(m, "guestName")
	collect(err)
	h.Rating, err = optNumber(m, "rating")
	collect(err)
	h.Categories, err = categoryList(m, "reviewCategory")
	collect(err)

	switch v := m["channelId"].(type) {
	case nil, string, float64, int, int64, json.Number:
		h.ChannelID = v
	default:
		collect(domain.NewValidationError("channelId", "must be a string or number, got %T", v))
	}

	if len(errs) > 0 {
		// first violation is enough for the caller; the rest are noise
		return hostawayReview{}, errs[0]
	}
	return h, nil
}

// optScalar accepts a string or number and returns its string form.
func optScalar(m map[string]any, key string) (*string, error) {
	switch v := m[key].(type) {
	case nil:
		return nil, nil
	case string, float64, int, int64, json.Number:
		s := stringify(v)
		return &s, nil
	default:
		return nil, domain.NewValidationError(key, "must be a string or number, got %T", v)
	}
}

func optString(m map[string]any, key string) (*string, error) {
	switch v := m[key].(type) {
	case nil:
		return nil, nil
	case string:
		return &v, nil
	default:
		return nil, domain.NewValidationError(key, "must be a string, got %T", v)
	}
}

func optNumber(m map[string]any, key string) (*float64, error) {
	if f, ok := number(m[key]); ok {
		return &f, nil
	}
	if m[key] == nil {
		return nil, nil
	}
	return nil, domain.NewValidationError(key, "must be a number, got %T", m[key])
}

func number(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	}
	return 0, false
}

// categoryList keeps entries with a non-blank name and a numeric rating and
// drops the rest without failing the record.
func categoryList(m map[string]any, key string) ([]categoryRating, error) {
	v := m[key]
	if v == nil {
		return nil, nil
	}
	items, ok := v.([]any)
	if !ok {
		return nil, domain.NewValidationError(key, "must be an array, got %T", v)
	}
	out := make([]categoryRating, 0, len(items))
	for _, it := range items {
		obj, ok := it.(map[string]any)
		if !ok {
			continue
		}
		name, _ := obj["category"].(string)
		name = strings.TrimSpace(name)
		rating, ok := number(obj["rating"])
		if name == "" || !ok {
			continue
		}
		out = append(out, categoryRating{Category: name, Rating: rating})
	}
	return out, nil
}

/********** field mappers **********/

// mapType defaults anything other than guest-to-host to host_to_guest.
// Missing or garbled upstream types are therefore indistinguishable from
// genuine host reviews.
func mapType(s *string) domain.Type {
	if s != nil && strings.ToLower(*s) == "guest-to-host" {
		return domain.TypeGuestToHost
	}
	return domain.TypeHostToGuest
}

func mapStatus(s *string) *domain.Status {
	if s == nil {
		return nil
	}
	st := domain.Status(strings.ToLower(*s))
	if !st.Valid() {
		return nil
	}
	return &st
}

func firstNonBlank(ps ...*string) *string {
	for _, p := range ps {
		if p != nil && strings.TrimSpace(*p) != "" {
			return p
		}
	}
	return nil
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

/********** review normalizer **********/

// Normalizer maps Hostaway payloads to canonical reviews. It holds no
// mutable state and is safe for concurrent use.
type Normalizer struct {
	source   domain.Source
	channels ChannelMap
	dates    DateNormalizer
	ids      IDGenerator
}

// NewNormalizer builds a Hostaway normalizer. A zero ChannelMap selects the
// default table; a nil IDGenerator selects random UUID tokens.
func NewNormalizer(channels ChannelMap, dates DateNormalizer, ids IDGenerator) *Normalizer {
	if channels.m == nil {
		channels = defaultChannelMap
	}
	if ids == nil {
		ids = uuidIDs{}
	}
	return &Normalizer{source: domain.SourceHostaway, channels: channels, dates: dates, ids: ids}
}

func (n *Normalizer) canonicalID(external *string) string {
	if external != nil {
		return string(n.source) + ":" + *external
	}
	return string(n.source) + ":local_" + n.ids.NewID()
}

// NormalizeOne converts one upstream payload. It fails with a
// *domain.ValidationError when the payload is not an object, a known field
// has the wrong type, or the assembled review breaks the canonical schema.
func (n *Normalizer) NormalizeOne(raw any) (domain.Review, error) {
	h, err := parseHostaway(raw)
	if err != nil {
		return domain.Review{}, err
	}

	listingID := "unknown"
	if p := firstNonBlank(h.ListingMapID, h.ListingID); p != nil {
		listingID = *p
	}

	categories := make(map[string]float64, len(h.Categories))
	for _, c := range h.Categories {
		categories[c.Category] = c.Rating
	}

	var author *domain.Author
	if h.GuestName != nil && *h.GuestName != "" {
		author = &domain.Author{Name: h.GuestName}
	}

	var ext *domain.ExternalIDs
	if h.ID != nil || h.ReservationID != nil {
		ext = &domain.ExternalIDs{ReviewID: h.ID, ReservationID: h.ReservationID}
	}

	r := domain.Review{
		ID:              n.canonicalID(h.ID),
		Source:          n.source,
		ListingID:       listingID,
		ListingName:     h.ListingName,
		Type:            mapType(h.Type),
		Channel:         n.channels.Map(h.ChannelID),
		Status:          mapStatus(h.Status),
		Rating:          h.Rating,
		Categories:      categories,
		Text:            h.PublicReview,
		PrivateFeedback: h.PrivateFeedback,
		SubmittedAt:     n.dates.ToISO(deref(firstNonBlank(h.SubmittedAt, h.DepartureDate)), true),
		Author:          author,
		Approved:        false,
		ExternalIDs:     ext,
	}
	if err := r.Validate(); err != nil {
		return domain.Review{}, err
	}
	return r, nil
}

// NormalizeMany normalizes each payload and drops the ones that fail.
// Order of the surviving reviews follows the input.
func (n *Normalizer) NormalizeMany(raws []any) []domain.Review {
	out := make([]domain.Review, 0, len(raws))
	for i, raw := range raws {
		r, err := n.NormalizeOne(raw)
		if err != nil {
			var ve *domain.ValidationError
			if !errors.As(err, &ve) {
				log.Error().Err(err).Int("index", i).Str("context", "NormalizeMany").Msg("unexpected normalize error")
			} else {
				log.Debug().Err(err).Int("index", i).Str("context", "NormalizeMany").Msg("dropped upstream review")
			}
			continue
		}
		out = append(out, r)
	}
	return out
}
