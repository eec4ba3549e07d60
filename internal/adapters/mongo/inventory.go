package mongo

import (
	"context"
	"encoding/json"
	"io"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/robertarktes/rail-booking/internal/catalog"
	"github.com/robertarktes/rail-booking/internal/observability"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// TrainInventory serves train searches from a local collection. It is used
// when no external train search service is configured.
type TrainInventory struct {
	coll   *mongo.Collection
	logger observability.Logger
}

func NewTrainInventory(db *mongo.Database, logger observability.Logger) *TrainInventory {
	return &TrainInventory{
		coll:   db.Collection("trains"),
		logger: logger,
	}
}

// TrainDoc is a scheduled train. A train with no service dates runs daily.
type TrainDoc struct {
	ID            uuid.UUID  `bson:"_id" json:"-"`
	Name          string     `bson:"name" json:"name"`
	Number        string     `bson:"number" json:"number"`
	From          string     `bson:"from" json:"from"`
	To            string     `bson:"to" json:"to"`
	DepartureTime string     `bson:"departure_time" json:"departureTime"`
	ArrivalTime   string     `bson:"arrival_time" json:"arrivalTime"`
	ServiceDates  []string   `bson:"service_dates,omitempty" json:"serviceDates,omitempty"`
	Classes       []ClassDoc `bson:"classes" json:"classes"`
	CreatedAt     time.Time  `bson:"created_at" json:"-"`
	UpdatedAt     time.Time  `bson:"updated_at" json:"-"`
}

type ClassDoc struct {
	Type      string  `bson:"type" json:"type"`
	Capacity  int     `bson:"capacity" json:"capacity"`
	Available int     `bson:"available" json:"available"`
	Price     float64 `bson:"price" json:"price"`
}

func (t *TrainInventory) EnsureIndexes(ctx context.Context) error {
	_, err := t.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "from", Value: 1}, {Key: "to", Value: 1}, {Key: "departure_time", Value: 1}},
	})
	return err
}

func (t *TrainInventory) CreateTrain(ctx context.Context, train TrainDoc) error {
	if train.ID == uuid.Nil {
		train.ID = uuid.New()
	}
	train.CreatedAt = time.Now()
	train.UpdatedAt = train.CreatedAt
	_, err := t.coll.InsertOne(ctx, train)
	if err != nil {
		t.logger.WithError(err).Error("failed to create train")
		return err
	}
	return nil
}

// Seed loads a JSON array of trains and creates those whose number is not
// in the inventory yet. It returns how many were created.
func (t *TrainInventory) Seed(ctx context.Context, r io.Reader) (int, error) {
	var trains []TrainDoc
	if err := json.NewDecoder(r).Decode(&trains); err != nil {
		return 0, errors.Wrap(err, "decode seed trains")
	}
	created := 0
	for _, train := range trains {
		if train.Number == "" {
			return created, errors.Newf("seed train %q has no number", train.Name)
		}
		n, err := t.coll.CountDocuments(ctx, bson.M{"number": train.Number})
		if err != nil {
			return created, errors.Wrapf(err, "look up train %s", train.Number)
		}
		if n > 0 {
			continue
		}
		if err := t.CreateTrain(ctx, train); err != nil {
			return created, errors.Wrapf(err, "create train %s", train.Number)
		}
		created++
	}
	t.logger.WithField("created", created).WithField("total", len(trains)).Info("train inventory seeded")
	return created, nil
}

func (t *TrainInventory) Search(ctx context.Context, q catalog.SearchQuery) (catalog.SearchResult, error) {
	filter := bson.M{
		"from": q.From,
		"to":   q.To,
		"$or": bson.A{
			bson.M{"service_dates": q.Date},
			bson.M{"service_dates": bson.M{"$exists": false}},
		},
	}

	total, err := t.coll.CountDocuments(ctx, filter)
	if err != nil {
		return catalog.SearchResult{}, errors.Wrap(err, "count trains")
	}

	limit := int64(q.Limit)
	if limit <= 0 {
		limit = 10
	}
	page := int64(q.Page)
	if page < 1 {
		page = 1
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "departure_time", Value: 1}, {Key: "number", Value: 1}}).
		SetSkip((page - 1) * limit).
		SetLimit(limit)

	cur, err := t.coll.Find(ctx, filter, opts)
	if err != nil {
		return catalog.SearchResult{}, errors.Wrap(err, "find trains")
	}
	var docs []TrainDoc
	if err := cur.All(ctx, &docs); err != nil {
		return catalog.SearchResult{}, errors.Wrap(err, "decode trains")
	}

	res := catalog.SearchResult{
		Success:    true,
		Trains:     make([]catalog.TrainRecord, 0, len(docs)),
		Pagination: catalog.Pagination{Total: int(total)},
	}
	for _, d := range docs {
		res.Trains = append(res.Trains, d.record())
	}
	return res, nil
}

func (d TrainDoc) record() catalog.TrainRecord {
	r := catalog.TrainRecord{
		Name:          d.Name,
		Number:        d.Number,
		Route:         catalog.Route{From: d.From, To: d.To},
		DepartureTime: d.DepartureTime,
		ArrivalTime:   d.ArrivalTime,
		Classes:       make([]catalog.ClassRecord, 0, len(d.Classes)),
	}
	for _, c := range d.Classes {
		r.Classes = append(r.Classes, catalog.ClassRecord{
			Type:      c.Type,
			Capacity:  c.Capacity,
			Available: c.Available,
			Price:     c.Price,
		})
	}
	return r
}
