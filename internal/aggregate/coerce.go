package aggregate

import (
	"strconv"
	"strings"
	"time"

	"github.com/parut/agri-advisor/internal/model"
	"github.com/parut/agri-advisor/internal/upstream"
)

// Defensive coercion for raw payload fields. Upstream and demo payloads mix
// JSON numbers, YAML ints, strings, and typed values; anything unparsable
// becomes nil so the rest of the record survives.

func coerceFloat(v any) *float64 {
	switch x := v.(type) {
	case nil:
		return nil
	case float64:
		return &x
	case float32:
		f := float64(x)
		return &f
	case int:
		f := float64(x)
		return &f
	case int64:
		f := float64(x)
		return &f
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return nil
		}
		return &f
	default:
		return nil
	}
}

// coerceTime parses a timestamp and normalizes it to KST. Bare timestamps
// without a zone are assumed to already be civil KST.
func coerceTime(v any) *time.Time {
	switch x := v.(type) {
	case time.Time:
		t := x.In(model.Seoul())
		return &t
	case string:
		s := strings.TrimSpace(x)
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			t = t.In(model.Seoul())
			return &t
		}
		for _, layout := range []string{"2006-01-02T15:04:05", "2006-01-02 15:04:05", "2006-01-02T15:04"} {
			if t, err := time.ParseInLocation(layout, s, model.Seoul()); err == nil {
				return &t
			}
		}
		return nil
	default:
		return nil
	}
}

func coerceDate(v any) (model.Date, bool) {
	switch x := v.(type) {
	case model.Date:
		return x, !x.IsZero()
	case time.Time:
		return model.DateOf(x.In(model.Seoul())), true
	case string:
		d, err := model.ParseDate(strings.TrimSpace(x))
		if err != nil {
			return model.Date{}, false
		}
		return d, true
	default:
		return model.Date{}, false
	}
}

func coerceString(v any) string {
	s, _ := v.(string)
	return strings.TrimSpace(s)
}

// field returns the first present key from an entry. Live clients and demo
// fixtures spell some fields differently ("tmax" vs "tmax_c").
func field(e upstream.Entry, keys ...string) any {
	for _, k := range keys {
		if v, ok := e[k]; ok && v != nil {
			return v
		}
	}
	return nil
}
