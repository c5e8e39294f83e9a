package importer

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"

	gojson "github.com/goccy/go-json"

	"github.com/roach88/dtmirror/internal/apipath"
	"github.com/roach88/dtmirror/internal/ddl"
	"github.com/roach88/dtmirror/internal/schema"
)

// DateTimeLayout is how datetimes are stored: UTC, second precision.
const DateTimeLayout = "2006-01-02 15:04:05"

// dateTimeInputs are accepted API datetime forms. Fractional seconds are
// accepted by every layout when parsing.
var dateTimeInputs = []string{
	time.RFC3339,
	"2006-01-02T15:04:05Z0700",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02T15:04:05",
	DateTimeLayout,
}

// NormalizeDateTime converts an ISO 8601 timestamp to UTC in DateTimeLayout.
// Timestamps without an offset are taken to be UTC, so normalising an
// already normalised value returns it unchanged.
func NormalizeDateTime(s string) (string, error) {
	for _, layout := range dateTimeInputs {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t.UTC().Format(DateTimeLayout), nil
		}
	}
	return "", fmt.Errorf("unrecognised datetime %q", s)
}

// Convert maps a record value to the SQL value of a base column.
func Convert(b ddl.Binding, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch t := b.Type.(type) {
	case schema.Scalar:
		return scalar(t.Kind, v)
	case schema.ToOne:
		return Key(v, b.SQLType)
	case schema.External:
		return Key(v, ddl.Text)
	case schema.ToMany, schema.Unused:
		return nil, fmt.Errorf("%s has no base column", t)
	default:
		panic(fmt.Sprintf("unhandled column type %T", b.Type))
	}
}

// Key extracts the key segment of a resource path, typed for the column it
// is stored in.
func Key(v any, typ ddl.SQLType) (any, error) {
	if v == nil {
		return nil, nil
	}
	s, ok := v.(string)
	if !ok {
		return nil, fmt.Errorf("relation value %v is not a resource path", v)
	}
	if s == "" {
		return nil, nil
	}
	p, err := apipath.Parse(s)
	if err != nil {
		return nil, err
	}
	if p.IsCollection() {
		return nil, fmt.Errorf("relation value %q has no key", s)
	}
	if typ == ddl.Integer {
		n, err := strconv.ParseInt(p.Key, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("relation value %q: key is not an integer", s)
		}
		return n, nil
	}
	return p.Key, nil
}

func scalar(kind schema.Kind, v any) (any, error) {
	switch kind {
	case schema.KindInteger:
		return integer(v)
	case schema.KindBoolean:
		if b, ok := v.(bool); ok {
			if b {
				return int64(1), nil
			}
			return int64(0), nil
		}
		return integer(v)
	case schema.KindDateTime:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("datetime value %v is not a string", v)
		}
		return NormalizeDateTime(s)
	case schema.KindString, schema.KindDate, schema.KindTimeDelta:
		return text(v)
	}
	panic(fmt.Sprintf("unhandled scalar kind %q", kind))
}

func integer(v any) (any, error) {
	switch n := v.(type) {
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i, nil
		}
		f, err := n.Float64()
		if err != nil || f != math.Trunc(f) {
			return nil, fmt.Errorf("value %s is not an integer", n)
		}
		return int64(f), nil
	case string:
		i, err := strconv.ParseInt(n, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("value %q is not an integer", n)
		}
		return i, nil
	case bool:
		if n {
			return int64(1), nil
		}
		return int64(0), nil
	}
	return nil, fmt.Errorf("value %v is not an integer", v)
}

// text stores strings as-is and anything structured as JSON.
func text(v any) (any, error) {
	switch s := v.(type) {
	case string:
		return s, nil
	case json.Number:
		return s.String(), nil
	}
	data, err := gojson.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}
