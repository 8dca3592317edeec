package normalize

import (
	"strings"
	"time"
)

// maxEpochMillis is the widest instant a JavaScript Date can hold.
const maxEpochMillis = 8.64e15

// Layouts that carry their own offset.
var zonedLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999-0700",
	"2006-01-02T15:04:05-0700",
	"2006-01-02T15:04Z07:00",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05 -0700",
	time.RFC1123Z,
	time.RFC1123,
	time.RFC822Z,
	time.RFC850,
	"Mon Jan 2 2006 15:04:05 GMT-0700",
}

// Layouts interpreted in the normalizer's default location.
var localLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"Monday, January 2, 2006 3:04 PM",
	"Monday, January 2, 2006 3:04PM",
	"Monday, January 2, 2006",
	"January 2, 2006 3:04 PM",
	"January 2, 2006 3:04PM",
	"January 2, 2006 15:04",
	"January 2, 2006",
	"January 2 2006 3:04 PM",
	"January 2 2006",
	"Jan 2, 2006 3:04 PM",
	"Jan 2, 2006 15:04",
	"Jan 2, 2006",
	"Jan 2 2006",
	"2 January 2006 15:04",
	"2 January 2006",
	"01/02/2006 3:04 PM",
	"01/02/2006 15:04",
	"01/02/2006",
	"2006/01/02 15:04",
	"2006/01/02",
}

// ParseDatetime turns a model-provided date string into a UTC instant.
// It returns nil for anything it cannot read; a bad date is never an error.
// ISO date-only strings are taken as UTC midnight; other zone-less strings
// are read in loc.
func ParseDatetime(s string, loc *time.Location) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if loc == nil {
		loc = time.UTC
	}
	for _, layout := range zonedLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return utc(t)
		}
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return utc(t)
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return utc(t)
		}
	}
	return nil
}

// utc converts t, dropping instants outside the four-digit years an ISO
// timestamp can carry.
func utc(t time.Time) *time.Time {
	u := t.UTC()
	if u.Year() < 0 || u.Year() > 9999 {
		return nil
	}
	return &u
}
