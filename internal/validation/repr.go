package validation

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/wonny/paperflow/internal/tabular"
)

// Messages render lists, maps and literals the way analysts see them in notebooks:
// ['a', 'b'], {'a': 2}, None

func quoteList(items []string) string {
	quoted := make([]string, len(items))
	for i, s := range items {
		quoted[i] = "'" + s + "'"
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}

// countMap renders counts in the given key order
func countMap(keys []string, counts map[string]int) string {
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		if n, ok := counts[k]; ok {
			parts = append(parts, "'"+k+"': "+strconv.Itoa(n))
		}
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

func literal(v any) string {
	switch x := v.(type) {
	case nil:
		return "None"
	case string:
		return "'" + x + "'"
	case time.Time:
		return "'" + x.Format("2006-01-02") + "'"
	default:
		return tabular.FormatValue(x)
	}
}

// literalSet renders values as a set literal with deterministic ordering
func literalSet(values []any) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = literal(v)
	}
	sort.Strings(parts)
	return "{" + strings.Join(parts, ", ") + "}"
}

func optFloat(v *float64) string {
	if v == nil {
		return "None"
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func optInt(v *int) string {
	if v == nil {
		return "None"
	}
	return strconv.Itoa(*v)
}

func optString(v string) string {
	if v == "" {
		return "None"
	}
	return v
}
