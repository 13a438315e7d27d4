package memory

import "sort"

// ResultItem is a single row in a query's result set.
type ResultItem struct {
	Key   string
	Value Value
	Event uint64
}

// Order selects how Query results are sorted.
type Order string

const (
	OrderKey     Order = "key"
	OrderKeyDesc Order = "key_desc"
	OrderEvent   Order = "event"
)

// Filter selects which documents a Query includes, through a single match
// predicate set by the constructor that built the Filter.
type Filter struct {
	match func(ResultItem) bool
}

// KeyEquals matches documents whose key equals key exactly.
func KeyEquals(key string) Filter {
	return Filter{match: func(item ResultItem) bool { return item.Key == key }}
}

// KeyPrefix matches documents whose key starts with prefix.
func KeyPrefix(prefix string) Filter {
	return Filter{match: func(item ResultItem) bool { return len(item.Key) >= len(prefix) && item.Key[:len(prefix)] == prefix }}
}

// TypeEquals matches documents whose value kind equals kind.
func TypeEquals(kind ValueKind) Filter {
	return Filter{match: func(item ResultItem) bool { return item.Value.Kind == kind }}
}

// Custom matches documents satisfying an arbitrary predicate.
func Custom(predicate func(ResultItem) bool) Filter {
	return Filter{match: predicate}
}

// Query builds a deterministic, ordered read over a Store.
type Query struct {
	store   *Store
	filters []Filter
	order   Order
	limit   int
}

// NewQuery creates a Query over store, defaulting to key-ascending order
// with no limit.
func NewQuery(store *Store) *Query {
	return &Query{store: store, order: OrderKey}
}

// Where adds a filter; all filters must match for a document to be included.
func (q *Query) Where(f Filter) *Query {
	q.filters = append(q.filters, f)
	return q
}

// OrderBy sets the result ordering.
func (q *Query) OrderBy(order Order) *Query {
	q.order = order
	return q
}

// Limit caps the number of results returned. A zero limit means unlimited.
func (q *Query) Limit(n int) *Query {
	q.limit = n
	return q
}

// Run executes the query against the store's current state.
func (q *Query) Run() []ResultItem {
	var results []ResultItem
	for _, key := range q.store.Keys() {
		doc, ok := q.store.Read(key)
		if !ok {
			continue
		}
		item := ResultItem{Key: doc.Key, Value: doc.Value, Event: doc.CausalEvent}
		if q.matches(item) {
			results = append(results, item)
		}
	}

	switch q.order {
	case OrderKeyDesc:
		sort.Slice(results, func(i, j int) bool { return results[i].Key > results[j].Key })
	case OrderEvent:
		sort.Slice(results, func(i, j int) bool { return results[i].Event < results[j].Event })
	case OrderKey:
		sort.Slice(results, func(i, j int) bool { return results[i].Key < results[j].Key })
	}

	if q.limit > 0 && len(results) > q.limit {
		results = results[:q.limit]
	}
	return results
}

func (q *Query) matches(item ResultItem) bool {
	for _, f := range q.filters {
		if !f.match(item) {
			return false
		}
	}
	return true
}
