// Package memory is an in-process Adapter implementation, grounated on
// the teacher's storage/memory backend: a mutex-guarded map used for
// tests and single-process demos.
package memory

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/ncrq/authguard/internal/storage"
)

type row struct {
	key  string
	data storage.Record
}

// Adapter is a thread-safe, in-memory implementation of storage.Adapter.
type Adapter struct {
	mu     sync.Mutex
	tables map[string][]row
	seq    uint64
}

func New() *Adapter {
	return &Adapter{tables: make(map[string][]row)}
}

func clone(r storage.Record) storage.Record {
	out := make(storage.Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

func (a *Adapter) nextKey() string {
	a.seq++
	return "row-" + strconv.FormatUint(a.seq, 36)
}

func (a *Adapter) Create(_ context.Context, model string, data storage.Record) (storage.Record, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	rec := clone(data)
	a.tables[model] = append(a.tables[model], row{key: a.nextKey(), data: rec})
	return clone(rec), nil
}

func matches(rec storage.Record, where []storage.Where) bool {
	if len(where) == 0 {
		return true
	}
	result := true
	for i, w := range where {
		ok := matchOne(rec[w.Field], w.Op(), w.Value)
		if i == 0 {
			result = ok
			continue
		}
		if w.Conn() == storage.ConnOr {
			result = result || ok
		} else {
			result = result && ok
		}
	}
	return result
}

func matchOne(fieldVal interface{}, op storage.Operator, want interface{}) bool {
	switch op {
	case storage.OpEq, "":
		return equalLoose(fieldVal, want)
	case storage.OpNe:
		return !equalLoose(fieldVal, want)
	case storage.OpIn:
		items, ok := want.([]string)
		if !ok {
			return false
		}
		s, ok := fieldVal.(string)
		if !ok {
			return false
		}
		for _, it := range items {
			if it == s {
				return true
			}
		}
		return false
	case storage.OpContains:
		return containsStr(fieldVal, want)
	case storage.OpStartsWith:
		s, sok := fieldVal.(string)
		w, wok := want.(string)
		return sok && wok && len(s) >= len(w) && s[:len(w)] == w
	case storage.OpEndsWith:
		s, sok := fieldVal.(string)
		w, wok := want.(string)
		return sok && wok && len(s) >= len(w) && s[len(s)-len(w):] == w
	case storage.OpLt, storage.OpLte, storage.OpGt, storage.OpGte:
		return compareOrdered(fieldVal, want, op)
	default:
		return false
	}
}

func containsStr(fieldVal, want interface{}) bool {
	s, sok := fieldVal.(string)
	w, wok := want.(string)
	if !sok || !wok {
		return false
	}
	return len(s) >= len(w) && indexOf(s, w) >= 0
}

func indexOf(s, substr string) int {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return i
		}
	}
	return -1
}

func equalLoose(a, b interface{}) bool {
	return toComparable(a) == toComparable(b)
}

// toComparable normalizes JSON round-tripped numeric/time values so
// equality checks aren't fooled by float64-vs-int or time.Time-vs-RFC3339.
func toComparable(v interface{}) interface{} {
	switch t := v.(type) {
	case nil:
		return nil
	case int:
		return float64(t)
	case int64:
		return float64(t)
	case time.Time:
		return t.Format(time.RFC3339Nano)
	default:
		return t
	}
}

func compareOrdered(fieldVal, want interface{}, op storage.Operator) bool {
	fs, fok := asTimeOrString(fieldVal)
	ws, wok := asTimeOrString(want)
	if !fok || !wok {
		return false
	}
	switch op {
	case storage.OpLt:
		return fs < ws
	case storage.OpLte:
		return fs <= ws
	case storage.OpGt:
		return fs > ws
	case storage.OpGte:
		return fs >= ws
	}
	return false
}

func asTimeOrString(v interface{}) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case interface{ String() string }:
		return t.String(), true
	default:
		return "", false
	}
}

func (a *Adapter) FindOne(_ context.Context, q storage.Query) (storage.Record, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, r := range a.tables[q.Model] {
		if matches(r.data, q.Where) {
			return clone(r.data), nil
		}
	}
	return nil, storage.ErrNotFound
}

func (a *Adapter) FindMany(_ context.Context, q storage.Query) ([]storage.Record, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	var out []storage.Record
	for _, r := range a.tables[q.Model] {
		if matches(r.data, q.Where) {
			out = append(out, clone(r.data))
		}
	}
	if len(q.SortBy) > 0 {
		sort.SliceStable(out, func(i, j int) bool {
			for _, s := range q.SortBy {
				vi, _ := asTimeOrString(out[i][s.Field])
				vj, _ := asTimeOrString(out[j][s.Field])
				if vi == vj {
					continue
				}
				if s.Direction == storage.SortDesc {
					return vi > vj
				}
				return vi < vj
			}
			return false
		})
	}
	if q.Offset > 0 && q.Offset < len(out) {
		out = out[q.Offset:]
	} else if q.Offset >= len(out) {
		out = nil
	}
	if q.Limit > 0 && q.Limit < len(out) {
		out = out[:q.Limit]
	}
	return out, nil
}

func (a *Adapter) Update(_ context.Context, model string, where []storage.Where, update storage.Record) (storage.Record, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	rows := a.tables[model]
	for i := range rows {
		if matches(rows[i].data, where) {
			for k, v := range update {
				rows[i].data[k] = v
			}
			return clone(rows[i].data), nil
		}
	}
	return nil, storage.ErrNotFound
}

func (a *Adapter) UpdateMany(_ context.Context, model string, where []storage.Where, update storage.Record) (int64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	var count int64
	rows := a.tables[model]
	for i := range rows {
		if matches(rows[i].data, where) {
			for k, v := range update {
				rows[i].data[k] = v
			}
			count++
		}
	}
	return count, nil
}

func (a *Adapter) Delete(_ context.Context, model string, where []storage.Where) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	rows := a.tables[model]
	for i, r := range rows {
		if matches(r.data, where) {
			a.tables[model] = append(rows[:i:i], rows[i+1:]...)
			return nil
		}
	}
	return storage.ErrNotFound
}

func (a *Adapter) DeleteMany(_ context.Context, model string, where []storage.Where) (int64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	rows := a.tables[model]
	kept := rows[:0:0]
	var count int64
	for _, r := range rows {
		if matches(r.data, where) {
			count++
			continue
		}
		kept = append(kept, r)
	}
	a.tables[model] = kept
	return count, nil
}

func (a *Adapter) Count(_ context.Context, model string, where []storage.Where) (int64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	var count int64
	for _, r := range a.tables[model] {
		if matches(r.data, where) {
			count++
		}
	}
	return count, nil
}

// Transaction emulates a transaction sequentially, per §4.C: the
// memory adapter has no native multi-statement isolation, so fn simply
// runs against the same adapter under its existing per-call locking.
func (a *Adapter) Transaction(ctx context.Context, fn func(tx storage.Adapter) error) error {
	return fn(a)
}
