package mongostore

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/tapdin/planner/internal/domain/model"
)

// planDocument is the stored shape of a plan: the record's fields flattened
// next to the metadata.
type planDocument struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"`
	Title       string             `bson:"title"`
	Datetime    *time.Time         `bson:"datetime"`
	Location    locationDocument   `bson:"location"`
	Description string             `bson:"description"`
	Type        string             `bson:"type"`
	Source      string             `bson:"source,omitempty"`
	SourceURL   string             `bson:"sourceUrl,omitempty"`
	CreatedAt   time.Time          `bson:"createdAt"`
}

type locationDocument struct {
	Name    string `bson:"name"`
	Address string `bson:"address,omitempty"`
}

func toDocument(rec model.EventRecord, meta model.Meta, created time.Time) planDocument {
	var dt *time.Time
	if rec.Datetime != nil {
		t := rec.Datetime.UTC()
		dt = &t
	}
	return planDocument{
		Title:       rec.Title,
		Datetime:    dt,
		Location:    locationDocument{Name: rec.Location.Name, Address: rec.Location.Address},
		Description: rec.Description,
		Type:        string(rec.Type),
		Source:      string(meta.Source),
		SourceURL:   meta.SourceURL,
		CreatedAt:   created.UTC(),
	}
}

func (d planDocument) plan() model.Plan {
	var dt *time.Time
	if d.Datetime != nil {
		t := d.Datetime.UTC()
		dt = &t
	}
	return model.Plan{
		ID:        d.ID.Hex(),
		CreatedAt: d.CreatedAt.UTC(),
		Meta:      model.Meta{Source: model.Source(d.Source), SourceURL: d.SourceURL},
		Event: model.EventRecord{
			Title:       d.Title,
			Datetime:    dt,
			Location:    model.Location{Name: d.Location.Name, Address: d.Location.Address},
			Description: d.Description,
			Type:        model.ParseEventType(d.Type),
		},
	}
}
