package domain

import (
	"net/url"
	"strings"
	"time"
)

type Source string

const (
	SourceHostaway Source = "hostaway"
	SourceGoogle   Source = "google"
)

// Type is the direction of a review (who reviewed whom).
type Type string

const (
	TypeGuestToHost Type = "guest_to_host"
	TypeHostToGuest Type = "host_to_guest"
)

// Channel is the booking platform of the stay, best-effort.
type Channel string

const (
	ChannelAirbnb  Channel = "airbnb"
	ChannelBooking Channel = "booking"
	ChannelVrbo    Channel = "vrbo"
	ChannelDirect  Channel = "direct"
	ChannelUnknown Channel = "unknown"
)

type Status string

const (
	StatusAwaiting  Status = "awaiting"
	StatusPublished Status = "published"
	StatusPending   Status = "pending"
	StatusScheduled Status = "scheduled"
	StatusExpired   Status = "expired"
)

var (
	sources  = []Source{SourceHostaway, SourceGoogle}
	types    = []Type{TypeGuestToHost, TypeHostToGuest}
	channels = []Channel{ChannelAirbnb, ChannelBooking, ChannelVrbo, ChannelDirect, ChannelUnknown}
	statuses = []Status{StatusAwaiting, StatusPublished, StatusPending, StatusScheduled, StatusExpired}
)

func (s Source) Valid() bool  { return contains(sources, s) }
func (t Type) Valid() bool    { return contains(types, t) }
func (c Channel) Valid() bool { return contains(channels, c) }
func (s Status) Valid() bool  { return contains(statuses, s) }

func contains[T comparable](set []T, v T) bool {
	for _, x := range set {
		if x == v {
			return true
		}
	}
	return false
}

type Author struct {
	Name *string `json:"name,omitempty"`
	URL  *string `json:"url,omitempty"`
}

// ExternalIDs trace a canonical review back to its upstream record.
type ExternalIDs struct {
	ReviewID      *string `json:"reviewId,omitempty"`
	ReservationID *string `json:"reservationId,omitempty"`
	PlaceID       *string `json:"placeId,omitempty"`
}

// Review is the canonical, source-agnostic review. Approved is the only
// field mutated after normalization.
type Review struct {
	ID              string             `json:"id"`
	Source          Source             `json:"source"`
	ListingID       string             `json:"listingId"`
	ListingName     *string            `json:"listingName,omitempty"`
	Type            Type               `json:"type"`
	Channel         Channel            `json:"channel"`
	Status          *Status            `json:"status,omitempty"`
	Rating          *float64           `json:"rating"`
	Categories      map[string]float64 `json:"categories"`
	Text            *string            `json:"text"`
	PrivateFeedback *string            `json:"privateFeedback"`
	SubmittedAt     string             `json:"submittedAt"`
	Author          *Author            `json:"author"`
	Approved        bool               `json:"approved"`
	ExternalIDs     *ExternalIDs       `json:"externalIds,omitempty"`
}

// ISOLayout is the canonical submittedAt format (UTC, millisecond precision).
const ISOLayout = "2006-01-02T15:04:05.000Z"

func FormatTime(t time.Time) string { return t.UTC().Format(ISOLayout) }

// ParseTime parses a canonical submittedAt value. It also accepts any
// RFC 3339 timestamp, which is what stored rows and seed data carry.
func ParseTime(s string) (time.Time, bool) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, true
	}
	return time.Time{}, false
}

// Validate checks the canonical schema. A review that fails it must never be
// persisted or returned.
func (r Review) Validate() error {
	switch {
	case strings.TrimSpace(r.ID) == "":
		return NewValidationError("id", "must not be empty")
	case !r.Source.Valid():
		return NewValidationError("source", "unknown source %q", r.Source)
	case strings.TrimSpace(r.ListingID) == "":
		return NewValidationError("listingId", "must not be empty")
	case !r.Type.Valid():
		return NewValidationError("type", "unknown type %q", r.Type)
	case !r.Channel.Valid():
		return NewValidationError("channel", "unknown channel %q", r.Channel)
	case r.Status != nil && !r.Status.Valid():
		return NewValidationError("status", "unknown status %q", *r.Status)
	case r.Rating != nil && (*r.Rating < 0 || *r.Rating > 5):
		return NewValidationError("rating", "must be between 0 and 5, got %v", *r.Rating)
	}
	for k := range r.Categories {
		if strings.TrimSpace(k) == "" {
			return NewValidationError("categories", "category name must not be empty")
		}
	}
	if _, ok := ParseTime(r.SubmittedAt); !ok {
		return NewValidationError("submittedAt", "must be an ISO date string")
	}
	if r.Author != nil {
		if r.Author.Name != nil && *r.Author.Name == "" {
			return NewValidationError("author.name", "must not be empty")
		}
		if r.Author.URL != nil {
			if u, err := url.Parse(*r.Author.URL); err != nil || u.Scheme == "" || u.Host == "" {
				return NewValidationError("author.url", "must be an absolute URL")
			}
		}
	}
	return nil
}

// Public returns a copy safe for the public listing: private feedback and
// upstream identifiers are removed.
func (r Review) Public() Review {
	r.PrivateFeedback = nil
	r.ExternalIDs = nil
	return r
}

// AuthorName returns the author's display name or "".
func (r Review) AuthorName() string {
	if r.Author == nil || r.Author.Name == nil {
		return ""
	}
	return *r.Author.Name
}
