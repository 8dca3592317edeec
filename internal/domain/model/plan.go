package model

import (
	"encoding/json"
	"time"
)

// Source names where a plan's text came from.
type Source string

const (
	SourceURL      Source = "url"
	SourceImage    Source = "image"
	SourceURLImage Source = "url+image"
)

// Meta carries submission details stored next to a record.
type Meta struct {
	Source    Source
	SourceURL string
}

// Plan is a persisted event record. ID and CreatedAt are assigned by the
// store and never change.
type Plan struct {
	ID        string
	CreatedAt time.Time
	Meta      Meta
	Event     EventRecord
}

type planWire struct {
	ID string `json:"_id"`
	eventWire
	Source    Source `json:"source,omitempty"`
	SourceURL string `json:"sourceUrl,omitempty"`
	CreatedAt string `json:"createdAt"`
}

// MarshalJSON flattens the record next to the store metadata.
func (p Plan) MarshalJSON() ([]byte, error) {
	return json.Marshal(planWire{
		ID:        p.ID,
		eventWire: p.Event.wire(),
		Source:    p.Meta.Source,
		SourceURL: p.Meta.SourceURL,
		CreatedAt: p.CreatedAt.UTC().Format(ISOLayout),
	})
}

// UnmarshalJSON reads the shape produced by MarshalJSON.
func (p *Plan) UnmarshalJSON(b []byte) error {
	var w planWire
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	rec, err := w.eventWire.record()
	if err != nil {
		return err
	}
	created, err := time.Parse(time.RFC3339Nano, w.CreatedAt)
	if err != nil {
		return err
	}
	*p = Plan{
		ID:        w.ID,
		CreatedAt: created.UTC(),
		Meta:      Meta{Source: w.Source, SourceURL: w.SourceURL},
		Event:     rec,
	}
	return nil
}
