// Package model contains domain models passed between layers.
package model

import (
	"encoding/json"
	"strings"
	"time"
)

// Field defaults applied when the model's answer omits a value.
const (
	DefaultTitle        = "Unnamed Event"
	DefaultLocationName = "Unknown Location"
)

// ISOLayout renders instants like JavaScript's Date.toISOString.
const ISOLayout = "2006-01-02T15:04:05.000Z07:00"

// RawContent is unstructured text pulled from an image or a web page.
type RawContent string

// EventType categorises a plan.
type EventType string

const (
	TypeSocial        EventType = "social"
	TypeBusiness      EventType = "business"
	TypeEntertainment EventType = "entertainment"
)

// Valid reports whether t is one of the known event types.
func (t EventType) Valid() bool {
	switch t {
	case TypeSocial, TypeBusiness, TypeEntertainment:
		return true
	}
	return false
}

// ParseEventType maps s to a known type, ignoring case and surrounding
// space, falling back to social.
func ParseEventType(s string) EventType {
	if t := EventType(strings.ToLower(strings.TrimSpace(s))); t.Valid() {
		return t
	}
	return TypeSocial
}

// Location is where an event happens.
type Location struct {
	Name    string `json:"name"`
	Address string `json:"address,omitempty"`
}

// EventRecord is the normalised event extracted from raw content.
// Every field is always populated; Datetime is nil when unknown.
type EventRecord struct {
	Title       string
	Datetime    *time.Time
	Location    Location
	Description string
	Type        EventType
}

// NewEventRecord returns a record holding only the documented defaults.
func NewEventRecord() EventRecord {
	return EventRecord{
		Title:    DefaultTitle,
		Location: Location{Name: DefaultLocationName},
		Type:     TypeSocial,
	}
}

type eventWire struct {
	Title       string    `json:"title"`
	Datetime    *string   `json:"datetime"`
	Location    Location  `json:"location"`
	Description string    `json:"description"`
	Type        EventType `json:"type"`
}

func (e EventRecord) wire() eventWire {
	return eventWire{
		Title:       e.Title,
		Datetime:    formatInstant(e.Datetime),
		Location:    e.Location,
		Description: e.Description,
		Type:        e.Type,
	}
}

func (w eventWire) record() (EventRecord, error) {
	dt, err := parseInstant(w.Datetime)
	if err != nil {
		return EventRecord{}, err
	}
	return EventRecord{
		Title:       w.Title,
		Datetime:    dt,
		Location:    w.Location,
		Description: w.Description,
		Type:        w.Type,
	}, nil
}

// MarshalJSON always emits all five keys; datetime is a UTC instant or null.
func (e EventRecord) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.wire())
}

// UnmarshalJSON reads the shape produced by MarshalJSON.
func (e *EventRecord) UnmarshalJSON(b []byte) error {
	var w eventWire
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	rec, err := w.record()
	if err != nil {
		return err
	}
	*e = rec
	return nil
}

func formatInstant(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(ISOLayout)
	return &s
}

func parseInstant(s *string) (*time.Time, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339Nano, *s)
	if err != nil {
		return nil, err
	}
	t = t.UTC()
	return &t, nil
}
