// Package memory is an in-process implementation of every backend contract.
// It backs the hermetic store tests and the backend_mode=memory demo mode.
//
// Only _id is unique unless a table registers more fields with Unique.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/dalemusser/freshershub/internal/backend"
	"github.com/dalemusser/freshershub/internal/backend/tokens"
	"go.mongodb.org/mongo-driver/bson"
)

// Backend holds tables, identities, objects and change subscribers in memory.
type Backend struct {
	mu     sync.Mutex
	tables map[string][]bson.M
	fail   map[string]error
	failR  map[string]error
	calls  map[string]int
	unique map[string][]string

	hub  *hub
	auth *Auth
	objs *Storage
}

// New builds an empty Backend. baseURL prefixes public object URLs.
func New(issuer *tokens.Issuer, baseURL string) *Backend {
	b := &Backend{
		tables: map[string][]bson.M{},
		fail:   map[string]error{},
		failR:  map[string]error{},
		calls:  map[string]int{},
		unique: map[string][]string{},
		hub:    newHub(),
	}
	b.auth = newAuth(issuer)
	b.objs = newStorage(baseURL)
	return b
}

// Client returns a signed-out client over this backend.
func (b *Backend) Client() *backend.Client {
	return backend.NewClient(b.auth, b, b.objs, b.hub)
}

// Auth exposes the identity service.
func (b *Backend) Auth() *Auth { return b.auth }

// Storage exposes the object store.
func (b *Backend) Storage() *Storage { return b.objs }

// FailWrites makes every insert, update, increment and delete on table
// return err. A nil err clears the failure.
func (b *Backend) FailWrites(table string, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err == nil {
		delete(b.fail, table)
		return
	}
	b.fail[table] = err
}

// FailReads makes every find and count on table return err. A nil err
// clears the failure.
func (b *Backend) FailReads(table string, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err == nil {
		delete(b.failR, table)
		return
	}
	b.failR[table] = err
}

// Unique makes each of fields unique within table, the way a unique index
// with a non-empty partial filter would. Inserts and updates that would
// repeat a non-empty value fail with backend.ErrConflict.
func (b *Backend) Unique(table string, fields ...string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.unique[table] = append(b.unique[table], fields...)
}

// InsertAttempts returns how many documents were offered to Insert on table,
// including attempts that failed.
func (b *Backend) InsertAttempts(table string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[table]
}

func (b *Backend) Find(ctx context.Context, q *backend.Query) ([]bson.Raw, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.failR[q.Table]; err != nil {
		return nil, err
	}

	rows, err := b.matching(q)
	if err != nil {
		return nil, err
	}
	rows = sortRows(rows, q.Orders)
	if q.LimitN > 0 && len(rows) > q.LimitN {
		rows = rows[:q.LimitN]
	}

	out := make([]bson.Raw, 0, len(rows))
	for _, row := range rows {
		doc := project(row, q.Fields)
		for _, e := range q.Embeds {
			doc[e.As] = b.related(row, e)
		}
		raw, err := bson.Marshal(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, raw)
	}
	return out, nil
}

func (b *Backend) Count(ctx context.Context, q *backend.Query) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.failR[q.Table]; err != nil {
		return 0, err
	}
	rows, err := b.matching(q)
	if err != nil {
		return 0, err
	}
	return int64(len(rows)), nil
}

func (b *Backend) Insert(ctx context.Context, table string, docs ...any) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.mu.Lock()
	b.calls[table] += len(docs)
	if err := b.fail[table]; err != nil {
		b.mu.Unlock()
		return nil, err
	}

	ids := make([]string, 0, len(docs))
	rows := make([]bson.M, 0, len(docs))
	for _, doc := range docs {
		d, id, err := backend.PrepareDocument(doc)
		if err != nil {
			b.mu.Unlock()
			return nil, err
		}
		for _, existing := range b.tables[table] {
			if existing["_id"] == id {
				b.mu.Unlock()
				return nil, backend.ErrConflict
			}
		}
		m, err := toM(d)
		if err != nil {
			b.mu.Unlock()
			return nil, err
		}
		if err := b.checkUnique(table, m, append(b.tables[table], rows...)); err != nil {
			b.mu.Unlock()
			return nil, err
		}
		rows = append(rows, m)
		ids = append(ids, id)
	}
	b.tables[table] = append(b.tables[table], rows...)
	b.mu.Unlock()

	for _, id := range ids {
		b.hub.publish(backend.ChangeEvent{Table: table, Op: backend.OpInsert, ID: id})
	}
	return ids, nil
}

func (b *Backend) Update(ctx context.Context, q *backend.Query, set backend.Set) (int64, error) {
	return b.mutate(ctx, q, func(row bson.M) error {
		for k, v := range set {
			nv, err := normalize(v)
			if err != nil {
				return err
			}
			row[k] = nv
		}
		return nil
	})
}

func (b *Backend) Increment(ctx context.Context, q *backend.Query, field string, by int64) (int64, error) {
	return b.mutate(ctx, q, func(row bson.M) error {
		cur, _ := toFloat(row[field])
		row[field] = int64(cur) + by
		return nil
	})
}

func (b *Backend) mutate(ctx context.Context, q *backend.Query, apply func(bson.M) error) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	b.mu.Lock()
	if err := b.fail[q.Table]; err != nil {
		b.mu.Unlock()
		return 0, err
	}
	rows, err := b.matching(q)
	if err != nil {
		b.mu.Unlock()
		return 0, err
	}
	var ids []string
	for _, row := range rows {
		next := copyM(row)
		if err := apply(next); err != nil {
			b.mu.Unlock()
			return 0, err
		}
		if err := b.checkUnique(q.Table, next, b.tables[q.Table]); err != nil {
			b.mu.Unlock()
			return 0, err
		}
		for k, v := range next {
			row[k] = v
		}
		id, _ := row["_id"].(string)
		ids = append(ids, id)
	}
	b.mu.Unlock()

	for _, id := range ids {
		b.hub.publish(backend.ChangeEvent{Table: q.Table, Op: backend.OpUpdate, ID: id})
	}
	return int64(len(ids)), nil
}

func (b *Backend) Delete(ctx context.Context, q *backend.Query) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	b.mu.Lock()
	if err := b.fail[q.Table]; err != nil {
		b.mu.Unlock()
		return 0, err
	}
	var kept []bson.M
	var ids []string
	for _, row := range b.tables[q.Table] {
		ok, err := matches(row, q.Predicates)
		if err != nil {
			b.mu.Unlock()
			return 0, err
		}
		if ok {
			id, _ := row["_id"].(string)
			ids = append(ids, id)
			continue
		}
		kept = append(kept, row)
	}
	b.tables[q.Table] = kept
	b.mu.Unlock()

	for _, id := range ids {
		b.hub.publish(backend.ChangeEvent{Table: q.Table, Op: backend.OpDelete, ID: id})
	}
	return int64(len(ids)), nil
}

// matching returns the live rows of q.Table that satisfy q. Callers hold b.mu.
func (b *Backend) matching(q *backend.Query) ([]bson.M, error) {
	var out []bson.M
	for _, row := range b.tables[q.Table] {
		ok, err := matches(row, q.Predicates)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, row)
		}
	}
	return out, nil
}

// checkUnique reports ErrConflict when row repeats a non-empty unique field
// of any other row in against. Callers hold b.mu.
func (b *Backend) checkUnique(table string, row bson.M, against []bson.M) error {
	for _, f := range b.unique[table] {
		v, ok := row[f]
		if !ok || v == nil || v == "" {
			continue
		}
		for _, other := range against {
			if other["_id"] == row["_id"] {
				continue
			}
			if equal(other[f], v) {
				return fmt.Errorf("%s.%s: %w", table, f, backend.ErrConflict)
			}
		}
	}
	return nil
}

func (b *Backend) related(row bson.M, e backend.Embed) bson.A {
	out := bson.A{}
	local, ok := row[e.LocalField]
	if !ok {
		return out
	}
	for _, other := range b.tables[e.Table] {
		if equal(other[e.ForeignField], local) {
			out = append(out, copyM(other))
		}
	}
	return out
}

func project(row bson.M, fields []string) bson.M {
	if len(fields) == 0 {
		return copyM(row)
	}
	out := bson.M{"_id": row["_id"]}
	for _, f := range fields {
		if v, ok := row[f]; ok {
			out[f] = v
		}
	}
	return out
}

func sortRows(rows []bson.M, orders []backend.Order) []bson.M {
	if len(orders) == 0 {
		return rows
	}
	out := append([]bson.M(nil), rows...)
	sort.SliceStable(out, func(i, j int) bool {
		for _, o := range orders {
			c := compare(out[i][o.Field], out[j][o.Field])
			if c == 0 {
				continue
			}
			if o.Desc {
				return c > 0
			}
			return c < 0
		}
		return false
	})
	return out
}

func copyM(m bson.M) bson.M {
	out := make(bson.M, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
