// Package mongobackend implements the backend contracts on MongoDB: one
// collection per table, $lookup for foreign-key expansion, GridFS for
// objects and change streams for realtime.
package mongobackend

import (
	"context"
	"fmt"

	"github.com/dalemusser/freshershub/internal/backend"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Tables implements backend.Database over a Mongo database.
type Tables struct {
	db *mongo.Database
}

// NewTables wraps db.
func NewTables(db *mongo.Database) *Tables {
	return &Tables{db: db}
}

func (t *Tables) Find(ctx context.Context, q *backend.Query) ([]bson.Raw, error) {
	coll := t.db.Collection(q.Table)

	var (
		cur *mongo.Cursor
		err error
	)
	if len(q.Embeds) == 0 {
		opts := options.Find()
		if s := sortDoc(q.Orders); len(s) > 0 {
			opts.SetSort(s)
		}
		if q.LimitN > 0 {
			opts.SetLimit(int64(q.LimitN))
		}
		if len(q.Fields) > 0 {
			opts.SetProjection(projection(q.Fields, nil))
		}
		cur, err = coll.Find(ctx, filterDoc(q.Predicates), opts)
	} else {
		cur, err = coll.Aggregate(ctx, pipeline(q))
	}
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", q.Table, err)
	}
	defer cur.Close(ctx)

	var out []bson.Raw
	for cur.Next(ctx) {
		out = append(out, append(bson.Raw(nil), cur.Current...))
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("find %s: %w", q.Table, err)
	}
	return out, nil
}

func (t *Tables) Count(ctx context.Context, q *backend.Query) (int64, error) {
	return t.db.Collection(q.Table).CountDocuments(ctx, filterDoc(q.Predicates))
}

func (t *Tables) Insert(ctx context.Context, table string, docs ...any) ([]string, error) {
	if len(docs) == 0 {
		return nil, nil
	}
	prepared := make([]any, 0, len(docs))
	ids := make([]string, 0, len(docs))
	for _, doc := range docs {
		d, id, err := backend.PrepareDocument(doc)
		if err != nil {
			return nil, fmt.Errorf("insert %s: %w", table, err)
		}
		prepared = append(prepared, d)
		ids = append(ids, id)
	}
	if _, err := t.db.Collection(table).InsertMany(ctx, prepared); err != nil {
		return nil, mapWriteErr(table, err)
	}
	return ids, nil
}

func (t *Tables) Update(ctx context.Context, q *backend.Query, set backend.Set) (int64, error) {
	res, err := t.db.Collection(q.Table).UpdateMany(ctx, filterDoc(q.Predicates), bson.M{"$set": bson.M(set)})
	if err != nil {
		return 0, mapWriteErr(q.Table, err)
	}
	return res.MatchedCount, nil
}

func (t *Tables) Increment(ctx context.Context, q *backend.Query, field string, by int64) (int64, error) {
	res, err := t.db.Collection(q.Table).UpdateMany(ctx, filterDoc(q.Predicates), bson.M{"$inc": bson.M{field: by}})
	if err != nil {
		return 0, mapWriteErr(q.Table, err)
	}
	return res.MatchedCount, nil
}

func (t *Tables) Delete(ctx context.Context, q *backend.Query) (int64, error) {
	res, err := t.db.Collection(q.Table).DeleteMany(ctx, filterDoc(q.Predicates))
	if err != nil {
		return 0, mapWriteErr(q.Table, err)
	}
	return res.DeletedCount, nil
}

func mapWriteErr(table string, err error) error {
	if wafflemongo.IsDup(err) {
		return fmt.Errorf("%s: %w", table, backend.ErrConflict)
	}
	return fmt.Errorf("write %s: %w", table, err)
}

func filterDoc(preds []backend.Predicate) bson.M {
	if len(preds) == 0 {
		return bson.M{}
	}
	conds := make([]bson.M, 0, len(preds))
	for _, p := range preds {
		var c any
		switch p.Op {
		case backend.OpNeq:
			c = bson.M{"$ne": p.Value}
		case backend.OpIn:
			c = bson.M{"$in": p.Value}
		case backend.OpGte:
			c = bson.M{"$gte": p.Value}
		case backend.OpLt:
			c = bson.M{"$lt": p.Value}
		default:
			c = p.Value
		}
		conds = append(conds, bson.M{p.Field: c})
	}
	if len(conds) == 1 {
		return conds[0]
	}
	return bson.M{"$and": conds}
}

func sortDoc(orders []backend.Order) bson.D {
	d := bson.D{}
	for _, o := range orders {
		dir := 1
		if o.Desc {
			dir = -1
		}
		d = append(d, bson.E{Key: o.Field, Value: dir})
	}
	return d
}

func projection(fields []string, embeds []backend.Embed) bson.M {
	p := bson.M{"_id": 1}
	for _, f := range fields {
		p[f] = 1
	}
	for _, e := range embeds {
		p[e.As] = 1
	}
	return p
}

// pipeline translates a query with embeds into an aggregation.
func pipeline(q *backend.Query) mongo.Pipeline {
	p := mongo.Pipeline{{{Key: "$match", Value: filterDoc(q.Predicates)}}}
	if s := sortDoc(q.Orders); len(s) > 0 {
		p = append(p, bson.D{{Key: "$sort", Value: s}})
	}
	if q.LimitN > 0 {
		p = append(p, bson.D{{Key: "$limit", Value: int64(q.LimitN)}})
	}
	for _, e := range q.Embeds {
		p = append(p, bson.D{{Key: "$lookup", Value: bson.M{
			"from":         e.Table,
			"localField":   e.LocalField,
			"foreignField": e.ForeignField,
			"as":           e.As,
		}}})
	}
	if len(q.Fields) > 0 {
		p = append(p, bson.D{{Key: "$project", Value: projection(q.Fields, q.Embeds)}})
	}
	return p
}
