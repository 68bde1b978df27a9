package memory

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/dalemusser/freshershub/internal/backend"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// normalize runs v through the BSON codec so it compares like a stored value.
func normalize(v any) (any, error) {
	raw, err := bson.Marshal(bson.M{"v": v})
	if err != nil {
		return nil, err
	}
	var m bson.M
	if err := bson.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return m["v"], nil
}

func toM(d bson.D) (bson.M, error) {
	raw, err := bson.Marshal(d)
	if err != nil {
		return nil, err
	}
	var m bson.M
	if err := bson.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return m, nil
}

func matches(row bson.M, preds []backend.Predicate) (bool, error) {
	for _, p := range preds {
		want, err := normalize(p.Value)
		if err != nil {
			return false, err
		}
		got := row[p.Field]
		var ok bool
		switch p.Op {
		case backend.OpEq:
			ok = eqOrContains(got, want)
		case backend.OpNeq:
			ok = !eqOrContains(got, want)
		case backend.OpIn:
			list, _ := want.(bson.A)
			for _, w := range list {
				if eqOrContains(got, w) {
					ok = true
					break
				}
			}
		case backend.OpGte:
			ok = got != nil && compare(got, want) >= 0
		case backend.OpLt:
			ok = got != nil && compare(got, want) < 0
		default:
			return false, fmt.Errorf("memory: unsupported operator %q", p.Op)
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// eqOrContains follows document-store semantics: an array field matches a
// scalar when any element equals it.
func eqOrContains(got, want any) bool {
	if arr, ok := got.(bson.A); ok {
		if _, wantArr := want.(bson.A); !wantArr {
			for _, el := range arr {
				if equal(el, want) {
					return true
				}
			}
			return false
		}
	}
	return equal(got, want)
}

func equal(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if af, ok := toFloat(a); ok {
		bf, ok := toFloat(b)
		return ok && af == bf
	}
	return reflect.DeepEqual(a, b)
}

// compare orders values of like kind; mismatched kinds order nil first and
// otherwise by type name so sorting stays deterministic.
func compare(a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	if af, ok := toFloat(a); ok {
		if bf, ok := toFloat(b); ok {
			switch {
			case af < bf:
				return -1
			case af > bf:
				return 1
			}
			return 0
		}
	}
	switch av := a.(type) {
	case string:
		if bv, ok := b.(string); ok {
			return strings.Compare(av, bv)
		}
	case bool:
		if bv, ok := b.(bool); ok {
			switch {
			case av == bv:
				return 0
			case !av:
				return -1
			}
			return 1
		}
	}
	return strings.Compare(fmt.Sprintf("%T", a), fmt.Sprintf("%T", b))
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	case float64:
		return n, true
	case primitive.DateTime:
		return float64(n), true
	}
	return 0, false
}
