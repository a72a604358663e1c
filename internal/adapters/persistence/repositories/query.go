package repositories

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"

	"gorm.io/gorm/clause"
)

// ErrIndexRequired is returned by the indexed query tier when the composite
// index a query relies on does not exist in the store.
var ErrIndexRequired = errors.New("query requires a composite index that does not exist")

// tenantColumn is carried by every tenant-scoped table
const tenantColumn = "hostel_id"

// Filter is one equality (or membership) condition of a scoped query
type Filter struct {
	Field  string
	Value  interface{}
	Values []interface{}
}

// Where builds an equality filter
func Where(field string, value interface{}) Filter {
	return Filter{Field: field, Value: value}
}

// In builds a membership filter
func In(field string, values ...interface{}) Filter {
	return Filter{Field: field, Values: values}
}

func (f Filter) expression() clause.Expression {
	col := clause.Column{Name: f.Field}
	if f.Values != nil {
		return clause.IN{Column: col, Values: f.Values}
	}
	return clause.Eq{Column: col, Value: f.Value}
}

// Query describes a scoped read.
// Index names the composite index backing Filters + OrderBy; empty means none is needed.
type Query struct {
	Filters []Filter
	OrderBy string
	Desc    bool
	Limit   int
	Offset  int
	Index   string
}

func (q Query) validate() error {
	for _, f := range q.Filters {
		if f.Field == "" {
			return fmt.Errorf("empty filter field")
		}
		if strings.EqualFold(f.Field, tenantColumn) {
			return fmt.Errorf("filter on %s is implied by the scope", tenantColumn)
		}
	}
	if q.Limit < 0 || q.Offset < 0 {
		return fmt.Errorf("negative limit or offset")
	}
	return nil
}

// window applies offset and limit to an already sorted slice
func window[P any](items []P, offset, limit int) []P {
	if offset >= len(items) {
		return []P{}
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

// sortByValues orders items by the extracted key, stable for equal keys
func sortByValues[P any](items []P, keys []interface{}, desc bool) {
	idx := make([]int, len(items))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		c := compareValues(keys[idx[a]], keys[idx[b]])
		if desc {
			return c > 0
		}
		return c < 0
	})

	sorted := make([]P, len(items))
	for i, j := range idx {
		sorted[i] = items[j]
	}
	copy(items, sorted)
}

func compareValues(a, b interface{}) int {
	switch av := a.(type) {
	case time.Time:
		if bv, ok := b.(time.Time); ok {
			return av.Compare(bv)
		}
	case *time.Time:
		if bv, ok := b.(*time.Time); ok {
			switch {
			case av == nil && bv == nil:
				return 0
			case av == nil:
				return -1
			case bv == nil:
				return 1
			}
			return av.Compare(*bv)
		}
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

	ra, rb := reflect.ValueOf(a), reflect.ValueOf(b)
	switch {
	case ra.CanInt() && rb.CanInt():
		return cmp(ra.Int(), rb.Int())
	case ra.CanUint() && rb.CanUint():
		return cmp(ra.Uint(), rb.Uint())
	case ra.CanFloat() && rb.CanFloat():
		return cmp(ra.Float(), rb.Float())
	case ra.Kind() == reflect.String && rb.Kind() == reflect.String:
		return strings.Compare(ra.String(), rb.String())
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func cmp[N int64 | uint64 | float64](a, b N) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
