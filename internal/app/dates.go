package app

import (
	"strings"
	"time"

	"flex_reviews/internal/domain"
)

// Layouts tried in order. Zone-less layouts are read as UTC.
var looseLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02Z07:00",
	"2006-01-02",
}

// DateNormalizer converts upstream timestamps to the canonical ISO form.
type DateNormalizer struct {
	Now func() time.Time
}

func (d DateNormalizer) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

// ToISO parses raw and formats it as 2006-01-02T15:04:05.000Z. Upstream
// dates like "2020-08-21 22:45:14" carry no zone and are taken as UTC.
// Unparseable or empty input yields the current instant, or "" when
// fallbackToNow is false.
func (d DateNormalizer) ToISO(raw string, fallbackToNow bool) string {
	if t, ok := ParseLooseTime(raw); ok {
		return domain.FormatTime(t)
	}
	if fallbackToNow {
		return domain.FormatTime(d.now())
	}
	return ""
}

// ToISODate is DateNormalizer.ToISO against the wall clock.
func ToISODate(raw string, fallbackToNow bool) string {
	return DateNormalizer{}.ToISO(raw, fallbackToNow)
}

// ParseLooseTime applies the upstream date rules without any fallback.
func ParseLooseTime(raw string) (time.Time, bool) {
	if strings.TrimSpace(raw) == "" {
		return time.Time{}, false
	}
	s := raw
	if !strings.Contains(s, "T") && !strings.HasSuffix(s, "Z") {
		s = strings.Replace(s, " ", "T", 1) + "Z"
	}
	for _, layout := range looseLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}
