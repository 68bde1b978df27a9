package backend

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
)

// FindAll runs q and decodes every row into T.
func FindAll[T any](ctx context.Context, db Database, q *Query) ([]T, error) {
	rows, err := db.Find(ctx, q)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(rows))
	for _, raw := range rows {
		var v T
		if err := bson.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("decode %s row: %w", q.Table, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// FindOne runs q with a limit of one and decodes the row into T.
// It returns ErrNotFound when nothing matched.
func FindOne[T any](ctx context.Context, db Database, q *Query) (T, error) {
	var zero T
	rows, err := FindAll[T](ctx, db, q.Limit(1))
	if err != nil {
		return zero, err
	}
	if len(rows) == 0 {
		return zero, ErrNotFound
	}
	return rows[0], nil
}

// PrepareDocument converts doc into a bson.D and guarantees a non-empty
// string _id, generating a UUID when the document has none.
func PrepareDocument(doc any) (bson.D, string, error) {
	raw, err := bson.Marshal(doc)
	if err != nil {
		return nil, "", err
	}
	var d bson.D
	if err := bson.Unmarshal(raw, &d); err != nil {
		return nil, "", err
	}
	for i, e := range d {
		if e.Key != "_id" {
			continue
		}
		if id, ok := e.Value.(string); ok && id != "" {
			return d, id, nil
		}
		id := uuid.NewString()
		d[i].Value = id
		return d, id, nil
	}
	id := uuid.NewString()
	return append(bson.D{{Key: "_id", Value: id}}, d...), id, nil
}
