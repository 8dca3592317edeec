// Package normalize turns raw event text into an EventRecord using a
// chat-completion model.
package normalize

import (
	"context"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/tapdin/planner/internal/domain/errs"
	"github.com/tapdin/planner/internal/domain/model"
	"github.com/tapdin/planner/pkg/logger"
)

// ChatClient sends one system+user exchange and returns the reply text.
// An empty reply means the model produced no choices.
type ChatClient interface {
	Complete(ctx context.Context, system, user string, maxTokens int) (string, error)
}

// Normalizer coerces model answers into event records.
type Normalizer struct {
	client    ChatClient
	maxTokens int
	location  *time.Location
	logger    logger.Logger
}

// Option applies a configuration option to the Normalizer.
type Option func(*Normalizer)

// WithMaxTokens caps the model's answer length.
func WithMaxTokens(n int) Option {
	return func(nz *Normalizer) {
		if n > 0 {
			nz.maxTokens = n
		}
	}
}

// WithLocation sets the zone used for datetimes that carry no offset.
func WithLocation(loc *time.Location) Option {
	return func(nz *Normalizer) {
		if loc != nil {
			nz.location = loc
		}
	}
}

// WithLogger sets the logger used for reporting unparseable replies.
func WithLogger(l logger.Logger) Option {
	return func(nz *Normalizer) {
		if l != nil {
			nz.logger = l
		}
	}
}

// New builds a Normalizer around client.
func New(client ChatClient, opts ...Option) *Normalizer {
	nz := &Normalizer{
		client:    client,
		maxTokens: DefaultMaxTokens,
		location:  time.UTC,
		logger:    logger.Nop(),
	}
	for _, opt := range opts {
		opt(nz)
	}
	return nz
}

// Normalize asks the model for the event fields in raw and coerces the answer.
func (n *Normalizer) Normalize(ctx context.Context, raw model.RawContent) (model.EventRecord, error) {
	const op = "normalize.normalize"
	reply, err := n.client.Complete(ctx, SystemPrompt, string(raw), n.maxTokens)
	if err != nil {
		return model.EventRecord{}, errs.WrapKind(op, errs.ErrLLM, err)
	}
	rec, err := Coerce(reply, n.location)
	if err != nil {
		n.logger.Warn(ctx, "model reply rejected",
			logger.Error(err),
			logger.String("reply", reply),
		)
		return model.EventRecord{}, err
	}
	return rec, nil
}

// Coerce parses a model reply and fills every missing field with its default.
// A reply that does not look like JSON fails with ErrNonJSONResponse; one that
// looks like JSON but does not decode fails with ErrResponseParse.
func Coerce(reply string, loc *time.Location) (model.EventRecord, error) {
	const op = "normalize.coerce"
	reply = strings.TrimSpace(reply)
	if reply == "" {
		reply = "{}"
	}
	if !strings.HasPrefix(reply, "{") && !strings.HasPrefix(reply, "[") {
		return model.EventRecord{}, errs.NewKind(op, errs.ErrNonJSONResponse)
	}

	var decoded any
	if err := json.Unmarshal([]byte(reply), &decoded); err != nil {
		return model.EventRecord{}, errs.WrapKind(op, errs.ErrResponseParse, err)
	}

	fields := asObject(decoded)
	rec := model.NewEventRecord()
	if title := text(fields["title"]); title != "" {
		rec.Title = title
	}
	rec.Datetime = datetime(fields["datetime"], loc)
	if place, ok := location(fields["location"]); ok {
		rec.Location = place
	}
	rec.Description = text(fields["description"])
	rec.Type = model.ParseEventType(text(fields["type"]))
	return rec, nil
}

// asObject picks the field map out of a decoded reply. For arrays the first
// element is used.
func asObject(v any) map[string]any {
	switch t := v.(type) {
	case map[string]any:
		return t
	case []any:
		if len(t) > 0 {
			if m, ok := t[0].(map[string]any); ok {
				return m
			}
		}
	}
	return map[string]any{}
}

// text renders scalar JSON values; falsy values become "".
func text(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		if t == 0 {
			return ""
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		if t {
			return "true"
		}
	}
	return ""
}

func datetime(v any, loc *time.Location) *time.Time {
	switch t := v.(type) {
	case string:
		return ParseDatetime(t, loc)
	case float64:
		if t == 0 || math.IsNaN(t) || math.Abs(t) > maxEpochMillis {
			return nil
		}
		return utc(time.UnixMilli(int64(t)))
	}
	return nil
}

func location(v any) (model.Location, bool) {
	switch t := v.(type) {
	case string:
		if name := strings.TrimSpace(t); name != "" {
			return model.Location{Name: name}, true
		}
	case map[string]any:
		loc := model.Location{
			Name:    text(t["name"]),
			Address: text(t["address"]),
		}
		if loc.Name == "" {
			loc.Name = model.DefaultLocationName
		}
		return loc, true
	}
	return model.Location{}, false
}
