package backend

// Predicate operators understood by every Database implementation.
const (
	OpEq  = "eq"
	OpNeq = "neq"
	OpIn  = "in"
	OpGte = "gte"
	OpLt  = "lt"
)

// Predicate is one filter condition on a top-level field.
type Predicate struct {
	Field string
	Op    string
	Value any
}

// Order is one sort key.
type Order struct {
	Field string
	Desc  bool
}

// Embed expands a foreign-key relation: rows of Table whose ForeignField
// equals this row's LocalField are attached under As. Implementations always
// attach an array; callers normalise it.
type Embed struct {
	As           string
	Table        string
	LocalField   string
	ForeignField string
}

// Query selects rows from one table. Build it with From and the chained
// helpers; a nil *Query is never valid.
type Query struct {
	Table      string
	Predicates []Predicate
	Orders     []Order
	LimitN     int
	Fields     []string
	Embeds     []Embed
}

// From starts a query on table.
func From(table string) *Query {
	return &Query{Table: table}
}

func (q *Query) where(field, op string, v any) *Query {
	q.Predicates = append(q.Predicates, Predicate{Field: field, Op: op, Value: v})
	return q
}

// Eq filters rows where field == v.
func (q *Query) Eq(field string, v any) *Query { return q.where(field, OpEq, v) }

// Neq filters rows where field != v.
func (q *Query) Neq(field string, v any) *Query { return q.where(field, OpNeq, v) }

// Gte filters rows where field >= v.
func (q *Query) Gte(field string, v any) *Query { return q.where(field, OpGte, v) }

// Lt filters rows where field < v.
func (q *Query) Lt(field string, v any) *Query { return q.where(field, OpLt, v) }

// In filters rows where field is one of vals.
func In[T any](q *Query, field string, vals []T) *Query {
	out := make([]any, len(vals))
	for i, v := range vals {
		out[i] = v
	}
	return q.where(field, OpIn, out)
}

// OrderBy appends a sort key.
func (q *Query) OrderBy(field string, desc bool) *Query {
	q.Orders = append(q.Orders, Order{Field: field, Desc: desc})
	return q
}

// Limit caps the number of rows returned. Zero means no limit.
func (q *Query) Limit(n int) *Query {
	q.LimitN = n
	return q
}

// Select restricts the returned fields. _id is always returned.
func (q *Query) Select(fields ...string) *Query {
	q.Fields = append(q.Fields, fields...)
	return q
}

// Embed adds a foreign-key expansion.
func (q *Query) Embed(as, table, localField, foreignField string) *Query {
	q.Embeds = append(q.Embeds, Embed{As: as, Table: table, LocalField: localField, ForeignField: foreignField})
	return q
}
