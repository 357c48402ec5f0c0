package tabular

import (
	"strconv"
	"strings"
	"time"
)

// naTokens are text cells read as missing
var naTokens = map[string]struct{}{
	"": {}, "#N/A": {}, "#N/A N/A": {}, "#NA": {}, "-1.#IND": {}, "-1.#QNAN": {},
	"-NaN": {}, "-nan": {}, "1.#IND": {}, "1.#QNAN": {}, "<NA>": {}, "N/A": {},
	"NA": {}, "NULL": {}, "NaN": {}, "None": {}, "n/a": {}, "nan": {}, "null": {},
}

func isNA(s string) bool {
	_, ok := naTokens[s]
	return ok
}

func parseBoolToken(s string) (bool, bool) {
	switch s {
	case "True", "true", "TRUE":
		return true, true
	case "False", "false", "FALSE":
		return false, true
	}
	return false, false
}

// columnFromText types a column of raw text cells.
// Integers, then floats, then booleans are tried before falling back to strings.
// Integer columns with missing cells are stored as floats.
func columnFromText(name string, raw []string) *Column {
	values := make([]any, len(raw))
	hasNA := false
	allNA := true
	for _, s := range raw {
		if isNA(strings.TrimSpace(s)) {
			hasNA = true
		} else {
			allNA = false
		}
	}

	if allNA {
		return &Column{Name: name, Type: TypeFloat, Values: values}
	}

	if ints, ok := parseAll(raw, func(s string) (any, bool) {
		n, err := strconv.ParseInt(s, 10, 64)
		return n, err == nil
	}); ok {
		if !hasNA {
			return &Column{Name: name, Type: TypeInt, Values: ints}
		}
		for i, v := range ints {
			if v != nil {
				ints[i] = float64(v.(int64))
			}
		}
		return &Column{Name: name, Type: TypeFloat, Values: ints}
	}

	if floats, ok := parseAll(raw, func(s string) (any, bool) {
		f, err := strconv.ParseFloat(s, 64)
		return f, err == nil
	}); ok {
		return &Column{Name: name, Type: TypeFloat, Values: floats}
	}

	if bools, ok := parseAll(raw, func(s string) (any, bool) {
		return parseBoolToken(s)
	}); ok {
		return &Column{Name: name, Type: TypeBool, Values: bools}
	}

	for i, s := range raw {
		if !isNA(strings.TrimSpace(s)) {
			values[i] = s
		}
	}
	return &Column{Name: name, Type: TypeString, Values: values}
}

func parseAll(raw []string, parse func(string) (any, bool)) ([]any, bool) {
	out := make([]any, len(raw))
	for i, s := range raw {
		s = strings.TrimSpace(s)
		if isNA(s) {
			continue
		}
		v, ok := parse(s)
		if !ok {
			return nil, false
		}
		out[i] = v
	}
	return out, true
}

// columnFromValues types a column of already-decoded cells (JSON, SQLite)
func columnFromValues(name string, values []any) *Column {
	var ints, floats, bools, strs, times, blobs, nulls int
	for _, v := range values {
		switch v.(type) {
		case nil:
			nulls++
		case int64:
			ints++
		case float64:
			floats++
		case bool:
			bools++
		case string:
			strs++
		case time.Time:
			times++
		case []byte:
			blobs++
		default:
			strs++
		}
	}

	nonNull := len(values) - nulls
	switch {
	case nonNull == 0:
		return &Column{Name: name, Type: TypeFloat, Values: values}
	case ints == nonNull && nulls == 0:
		return &Column{Name: name, Type: TypeInt, Values: values}
	case ints+floats == nonNull:
		out := make([]any, len(values))
		for i, v := range values {
			switch x := v.(type) {
			case int64:
				out[i] = float64(x)
			case float64:
				out[i] = x
			}
		}
		return &Column{Name: name, Type: TypeFloat, Values: out}
	case bools == nonNull:
		return &Column{Name: name, Type: TypeBool, Values: values}
	case times == nonNull:
		return &Column{Name: name, Type: TypeDatetime, Values: values}
	case blobs == nonNull:
		return &Column{Name: name, Type: TypeBinary, Values: values}
	}

	out := make([]any, len(values))
	for i, v := range values {
		if v != nil {
			out[i] = FormatValue(v)
		}
	}
	return &Column{Name: name, Type: TypeString, Values: out}
}

// uniqueNames suffixes repeated header names with .1, .2, ...
func uniqueNames(header []string) []string {
	seen := make(map[string]int, len(header))
	out := make([]string, len(header))
	for i, name := range header {
		base := name
		if n, dup := seen[base]; dup {
			name = base + "." + strconv.Itoa(n)
			seen[base] = n + 1
		} else {
			seen[base] = 1
		}
		out[i] = name
	}
	return out
}
