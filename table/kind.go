package table

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Kind is the inferred type of a column.
type Kind int

const (
	// Null is the kind of a column without any non-nil value
	Null Kind = iota
	Bool
	Int64
	Float64
	String
)

func (k Kind) String() string {
	switch k {
	case Null:
		return "null"
	case Bool:
		return "bool"
	case Int64:
		return "int64"
	case Float64:
		return "float64"
	case String:
		return "string"
	default:
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// ParseKind parses a kind name as produced by Kind.String.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "null":
		return Null, nil
	case "bool", "boolean":
		return Bool, nil
	case "int", "int64", "integer":
		return Int64, nil
	case "float", "float64", "double":
		return Float64, nil
	case "string", "str", "text":
		return String, nil
	}
	return Null, fmt.Errorf("unknown kind %q", s)
}

// KindOf returns the kind of a normalized value.
func KindOf(v any) Kind {
	switch v.(type) {
	case bool:
		return Bool
	case int64:
		return Int64
	case float64:
		return Float64
	case string:
		return String
	default:
		return Null
	}
}

// Normalize maps Go values onto the canonical value set
// (int64, float64, string, bool, nil).
func Normalize(v any) (any, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case bool, int64, float64, string:
		return x, nil
	case int:
		return int64(x), nil
	case int8:
		return int64(x), nil
	case int16:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case uint8:
		return int64(x), nil
	case uint16:
		return int64(x), nil
	case uint32:
		return int64(x), nil
	case uint:
		if uint64(x) > 1<<63-1 {
			return nil, fmt.Errorf("%w: %d overflows int64", ErrUnsupportedValue, x)
		}
		return int64(x), nil
	case uint64:
		if x > 1<<63-1 {
			return nil, fmt.Errorf("%w: %d overflows int64", ErrUnsupportedValue, x)
		}
		return int64(x), nil
	case float32:
		return float64(x), nil
	case []byte:
		return string(x), nil
	case json.Number:
		if n, err := x.Int64(); err == nil {
			return n, nil
		}
		f, err := x.Float64()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnsupportedValue, err)
		}
		return f, nil
	case fmt.Stringer:
		return x.String(), nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedValue, v)
	}
}

// Infer returns the kind shared by all non-nil normalized values. Int64 and
// Float64 values together infer Float64; any other mix is ErrMixedKinds.
func Infer(values []any) (Kind, error) {
	kind := Null
	for _, v := range values {
		k := KindOf(v)
		switch {
		case k == Null || k == kind:
		case kind == Null:
			kind = k
		case (kind == Int64 && k == Float64) || (kind == Float64 && k == Int64):
			kind = Float64
		default:
			return Null, fmt.Errorf("%w: %s and %s", ErrMixedKinds, kind, k)
		}
	}
	return kind, nil
}

// ConvertValues converts normalized values to kind. Nil stays nil.
func ConvertValues(values []any, kind Kind) ([]any, error) {
	out := make([]any, len(values))
	for i, v := range values {
		if v == nil {
			continue
		}
		cv, err := convertValue(v, kind)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		out[i] = cv
	}
	return out, nil
}

func convertValue(v any, kind Kind) (any, error) {
	switch kind {
	case Null:
		return nil, nil
	case String:
		return FormatValue(v), nil
	case Int64:
		switch x := v.(type) {
		case int64:
			return x, nil
		case float64:
			if x != float64(int64(x)) {
				return nil, fmt.Errorf("cannot convert %v to int64 without loss", x)
			}
			return int64(x), nil
		case bool:
			if x {
				return int64(1), nil
			}
			return int64(0), nil
		case string:
			return strconv.ParseInt(strings.TrimSpace(x), 10, 64)
		}
	case Float64:
		switch x := v.(type) {
		case int64:
			return float64(x), nil
		case float64:
			return x, nil
		case string:
			return strconv.ParseFloat(strings.TrimSpace(x), 64)
		}
	case Bool:
		switch x := v.(type) {
		case bool:
			return x, nil
		case int64:
			return x != 0, nil
		case string:
			return ParseBool(x)
		}
	}
	return nil, fmt.Errorf("cannot convert %T to %s", v, kind)
}

// ParseBool accepts "true" and "false" in any letter case.
func ParseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true":
		return true, nil
	case "false":
		return false, nil
	}
	return false, fmt.Errorf("invalid bool %q", s)
}

// FormatValue renders a normalized value as text. Integral floats keep a
// trailing ".0" so they read back as floats.
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return FormatFloat(x)
	case bool:
		return strconv.FormatBool(x)
	default:
		return fmt.Sprint(x)
	}
}

// FormatFloat formats f in the shortest form that parses back to f and is
// never mistaken for an integer.
func FormatFloat(f float64) string {
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if strings.ContainsAny(s, ".eEnN") {
		return s
	}
	return s + ".0"
}
