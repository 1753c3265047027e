package app

import (
	"fmt"
	"strconv"

	"flex_reviews/internal/domain"
)

// ChannelMap translates upstream channel identifiers into canonical channels.
// It is immutable once built; callers wanting different mappings build their own.
type ChannelMap struct {
	m map[string]domain.Channel
}

// DefaultChannels is the table observed in Hostaway data. Extend it as new
// ids show up in real payloads.
func DefaultChannels() map[string]domain.Channel {
	return map[string]domain.Channel{
		"1": domain.ChannelAirbnb,
		"2": domain.ChannelBooking,
		"3": domain.ChannelVrbo,
	}
}

func NewChannelMap(m map[string]domain.Channel) ChannelMap {
	cp := make(map[string]domain.Channel, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return ChannelMap{m: cp}
}

var defaultChannelMap = NewChannelMap(DefaultChannels())

// With returns a copy of c extended by extra (upstream id -> channel name).
// Entries naming an unknown channel are skipped and reported.
func (c ChannelMap) With(extra map[string]string) (ChannelMap, []string) {
	base := c.m
	if base == nil {
		base = defaultChannelMap.m
	}
	out := NewChannelMap(base)
	var skipped []string
	for id, name := range extra {
		ch := domain.Channel(name)
		if !ch.Valid() {
			skipped = append(skipped, id)
			continue
		}
		out.m[id] = ch
	}
	return out, skipped
}

// Map never fails: nil and unmapped ids are ChannelUnknown.
func (c ChannelMap) Map(raw any) domain.Channel {
	if raw == nil {
		return domain.ChannelUnknown
	}
	if ch, ok := c.m[stringify(raw)]; ok && ch.Valid() {
		return ch
	}
	return domain.ChannelUnknown
}

// MapChannelID maps using the default table.
func MapChannelID(raw any) domain.Channel { return defaultChannelMap.Map(raw) }

// stringify renders scalars the way they appear in JSON (7453, not 7453.000000).
func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}
