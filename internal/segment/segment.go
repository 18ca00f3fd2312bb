// Package segment implements declarative targeting predicates over tutor
// feature rows. A segment is a conjunction of per-field conditions; each
// condition is one of three tagged kinds (range, set membership, boolean
// equality) and round-trips through the JSON wire shape emitted in the
// experiments table:
//
//	{"churn_risk_level": ["High"], "poor_first_session_flag": true,
//	 "first_session_count": {"min": 1}}
package segment

import (
	"encoding/json"
	"sort"

	"github.com/rotisserie/eris"
)

// Kind discriminates the condition variants.
type Kind string

const (
	KindRange      Kind = "range"
	KindMembership Kind = "membership"
	KindEquals     Kind = "equals"
)

// Condition is one tagged predicate over a single feature.
type Condition struct {
	Kind   Kind
	In     []string // membership
	Equals bool     // boolean equality
	Min    *float64 // range lower bound, inclusive
	Max    *float64 // range upper bound, inclusive
}

// Segment maps feature names to conditions. An empty segment matches everything.
type Segment map[string]Condition

// Features is a uniform lookup of tutor/aggregate fields by column name.
// Numeric fields may be int, float64, or *float64 (nil meaning "no data",
// which ranges treat as zero).
type Features map[string]any

// Range builds an inclusive numeric range condition. Either bound may be nil.
func Range(min, max *float64) Condition {
	return Condition{Kind: KindRange, Min: min, Max: max}
}

// Min builds a range condition with only a lower bound.
func Min(v float64) Condition { return Range(&v, nil) }

// Max builds a range condition with only an upper bound.
func Max(v float64) Condition { return Range(nil, &v) }

// In builds a set-membership condition.
func In(values ...string) Condition {
	return Condition{Kind: KindMembership, In: values}
}

// Equals builds a boolean-equality condition.
func Equals(v bool) Condition {
	return Condition{Kind: KindEquals, Equals: v}
}

// Matches evaluates the condition against a single feature value.
func (c Condition) Matches(v any) bool {
	switch c.Kind {
	case KindMembership:
		s, ok := v.(string)
		if !ok {
			if sv, isStringer := v.(interface{ String() string }); isStringer {
				s = sv.String()
			} else {
				return false
			}
		}
		for _, want := range c.In {
			if s == want {
				return true
			}
		}
		return false
	case KindEquals:
		b, ok := v.(bool)
		return ok && b == c.Equals
	case KindRange:
		f, ok := asFloat(v)
		if !ok {
			return false
		}
		if c.Min != nil && f < *c.Min {
			return false
		}
		if c.Max != nil && f > *c.Max {
			return false
		}
		return true
	default:
		return false
	}
}

// Matches reports whether every condition in the segment holds for the given
// feature row. Conditions on features absent from the row pass, so a segment
// written against aggregate columns still evaluates for tutors that have no
// aggregate row yet.
func (s Segment) Matches(f Features) bool {
	for name, cond := range s {
		v, ok := f[name]
		if !ok {
			continue
		}
		if !cond.Matches(v) {
			return false
		}
	}
	return true
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case *float64:
		if n == nil {
			return 0, true
		}
		return *n, true
	default:
		return 0, false
	}
}

// MarshalJSON emits the compact wire shape: membership as an array, equality
// as a bare bool, range as a {"min":..,"max":..} object.
func (c Condition) MarshalJSON() ([]byte, error) {
	switch c.Kind {
	case KindMembership:
		return json.Marshal(c.In)
	case KindEquals:
		return json.Marshal(c.Equals)
	case KindRange:
		obj := map[string]float64{}
		if c.Min != nil {
			obj["min"] = *c.Min
		}
		if c.Max != nil {
			obj["max"] = *c.Max
		}
		return json.Marshal(obj)
	default:
		return nil, eris.Errorf("segment: marshal unknown condition kind %q", c.Kind)
	}
}

// UnmarshalJSON detects the condition kind from the wire shape.
func (c *Condition) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return eris.Wrap(err, "segment: unmarshal condition")
	}
	switch v := raw.(type) {
	case bool:
		*c = Equals(v)
	case []any:
		in := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return eris.Errorf("segment: membership value %v is not a string", item)
			}
			in = append(in, s)
		}
		*c = In(in...)
	case map[string]any:
		var cond Condition
		cond.Kind = KindRange
		if mn, ok := v["min"]; ok {
			f, ok := mn.(float64)
			if !ok {
				return eris.Errorf("segment: range min %v is not a number", mn)
			}
			cond.Min = &f
		}
		if mx, ok := v["max"]; ok {
			f, ok := mx.(float64)
			if !ok {
				return eris.Errorf("segment: range max %v is not a number", mx)
			}
			cond.Max = &f
		}
		if cond.Min == nil && cond.Max == nil {
			return eris.New("segment: range condition needs min or max")
		}
		*c = cond
	default:
		return eris.Errorf("segment: unsupported condition shape %T", raw)
	}
	return nil
}

// FieldNames returns the targeted feature names in sorted order.
func (s Segment) FieldNames() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
