// Package archive keeps a copy of raw fetched records in MongoDB, one
// collection per UTC day.
package archive

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/ned0ra/diplom/internal/flatten"
)

// Archiver stores raw records of one run.
type Archiver interface {
	Archive(ctx context.Context, runID string, records []flatten.Node) error
}

// CollectionName returns the per-day collection for t: raw_vacancies_YYYY_MM_DD.
func CollectionName(t time.Time) string {
	return "raw_vacancies_" + t.UTC().Format("2006_01_02")
}

// Mongo writes records into a database.
type Mongo struct {
	db  *mongo.Database
	log *zap.Logger
	now func() time.Time
}

// NewMongo returns an archiver writing into db.
func NewMongo(db *mongo.Database, log *zap.Logger) *Mongo {
	if log == nil {
		log = zap.NewNop()
	}
	return &Mongo{db: db, log: log, now: time.Now}
}

// Archive inserts one document per record:
// {run_id, fetched_at, payload}.
func (m *Mongo) Archive(ctx context.Context, runID string, records []flatten.Node) error {
	if len(records) == 0 {
		return nil
	}
	now := m.now().UTC()
	name := CollectionName(now)
	coll := m.db.Collection(name)

	ensureRunIndex(ctx, coll.Indexes(), name, m.log)

	docs := make([]any, 0, len(records))
	for _, r := range records {
		docs = append(docs, Document(runID, now, r))
	}
	res, err := coll.InsertMany(ctx, docs)
	if err != nil {
		return fmt.Errorf("archive into %s: %w", name, err)
	}
	m.log.Debug("raw records archived",
		zap.String("collection", name),
		zap.Int("count", len(res.InsertedIDs)),
	)
	return nil
}

// Document builds the archived form of one record.
func Document(runID string, fetchedAt time.Time, record flatten.Node) bson.D {
	return bson.D{
		{Key: "run_id", Value: runID},
		{Key: "fetched_at", Value: fetchedAt},
		{Key: "payload", Value: ToBSON(record)},
	}
}

// ToBSON converts a record tree to BSON values, keeping object key order.
// Numbers become int64 when integral, float64 otherwise.
func ToBSON(n flatten.Node) any {
	switch n.Kind {
	case flatten.KindObject:
		d := make(bson.D, 0, len(n.Fields))
		for _, f := range n.Fields {
			d = append(d, bson.E{Key: f.Key, Value: ToBSON(f.Value)})
		}
		return d
	case flatten.KindArray:
		a := make(bson.A, 0, len(n.Items))
		for _, it := range n.Items {
			a = append(a, ToBSON(it))
		}
		return a
	}

	v := n.Scalar
	switch v.Type {
	case flatten.TypeNull:
		return nil
	case flatten.TypeBool:
		return v.Raw == "true"
	case flatten.TypeNumber:
		if i, err := strconv.ParseInt(v.Raw, 10, 64); err == nil {
			return i
		}
		if f, err := strconv.ParseFloat(v.Raw, 64); err == nil {
			return f
		}
	}
	return v.Raw
}

// Noop discards records. Used when no MongoDB is configured.
type Noop struct{}

// Archive implements Archiver.
func (Noop) Archive(context.Context, string, []flatten.Node) error { return nil }

type indexCreator interface {
	CreateOne(ctx context.Context, model mongo.IndexModel, opts ...*options.CreateIndexesOptions) (string, error)
}

// ensureRunIndex creates the run_id index on a collection. A failure does
// not block archiving.
func ensureRunIndex(ctx context.Context, idx indexCreator, collection string, log *zap.Logger) {
	_, err := idx.CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "run_id", Value: 1}},
	})
	if err != nil {
		log.Warn("archive index",
			zap.String("collection", collection),
			zap.Error(err),
		)
	}
}
