package instance

import (
	"fmt"
	"maps"
	"math"
	"strings"

	"github.com/kazz187/taskpulse/pkg/cerr"
)

// Well-known attribute keys of the predicted and actual maps.
const (
	AttrExpectedRelief        = "expected_relief"
	AttrActualRelief          = "actual_relief"
	AttrExpectedAversion      = "expected_aversion"
	AttrExpectedCognitiveLoad = "expected_cognitive_load"
	AttrTimeEstimateMinutes   = "time_estimate_minutes"
	AttrActualTimeMinutes     = "actual_time_minutes"
	AttrCompletionPercent     = "completion_percent"
	AttrTaskType              = "task_type"
	AttrNotes                 = "notes"
	AttrCancelReason          = "cancel_reason"
)

// Attributes is a predicted or actual snapshot. Values are JSON-like:
// float64, string, bool, nil, []any or map[string]any.
type Attributes map[string]any

// Float returns a numeric attribute. Numeric strings are not coerced.
func (a Attributes) Float(key string) (float64, bool) {
	v, ok := a[key]
	if !ok {
		return 0, false
	}
	f, ok := toFloat(v)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// FloatPtr is Float returning nil when the attribute is absent.
func (a Attributes) FloatPtr(key string) *float64 {
	f, ok := a.Float(key)
	if !ok {
		return nil
	}
	return &f
}

func (a Attributes) String(key string) string {
	s, _ := a[key].(string)
	return s
}

// Clone returns a deep copy.
func (a Attributes) Clone() Attributes {
	if a == nil {
		return nil
	}
	out := make(Attributes, len(a))
	for k, v := range a {
		out[k] = cloneValue(v)
	}
	return out
}

// Normalize returns a copy where every number is a float64, nested maps are
// map[string]any and an empty map is nil. Both store backends normalize
// before writing and after reading, so decoded values compare equal
// whatever the wire format decoded numbers into.
func (a Attributes) Normalize() Attributes {
	if len(a) == 0 {
		return nil
	}
	out := make(Attributes, len(a))
	for k, v := range a {
		out[k] = normalizeValue(v)
	}
	return out
}

// Validate rejects values that do not survive a round trip through the
// stores: non-finite numbers and anything that is not a string, bool, number,
// list or string-keyed map.
func (a Attributes) Validate() error {
	for k, v := range a {
		if err := validateValue(v); err != nil {
			return cerr.NewError(cerr.InvalidArgument, fmt.Sprintf("attribute %s: %v", k, err), nil)
		}
	}
	return nil
}

func validateValue(v any) error {
	if f, ok := toFloat(v); ok {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Errorf("non-finite number %v", f)
		}
		return nil
	}
	switch t := v.(type) {
	case nil, string, bool:
		return nil
	case map[string]any:
		return validateMap(t)
	case Attributes:
		return validateMap(t)
	case map[any]any:
		for k, e := range t {
			if _, ok := k.(string); !ok {
				return fmt.Errorf("map key %v is not a string", k)
			}
			if err := validateValue(e); err != nil {
				return err
			}
		}
		return nil
	case []any:
		for _, e := range t {
			if err := validateValue(e); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("unsupported value of type %T", v)
	}
}

func validateMap(m map[string]any) error {
	for _, e := range m {
		if err := validateValue(e); err != nil {
			return err
		}
	}
	return nil
}

// WithNote returns a copy with note appended as a new line of the notes
// attribute.
func (a Attributes) WithNote(note string) Attributes {
	out := maps.Clone(a)
	if out == nil {
		out = Attributes{}
	}
	note = strings.TrimSpace(note)
	if prev := strings.TrimSpace(out.String(AttrNotes)); prev != "" {
		out[AttrNotes] = prev + "\n" + note
	} else {
		out[AttrNotes] = note
	}
	return out
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}

func normalizeValue(v any) any {
	if f, ok := toFloat(v); ok {
		return f
	}
	switch t := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, e := range t {
			m[k] = normalizeValue(e)
		}
		return m
	case Attributes:
		return map[string]any(t.Normalize())
	case map[any]any:
		m := make(map[string]any, len(t))
		for k, e := range t {
			if ks, ok := k.(string); ok {
				m[ks] = normalizeValue(e)
			}
		}
		return m
	case []any:
		s := make([]any, len(t))
		for i, e := range t {
			s[i] = normalizeValue(e)
		}
		return s
	default:
		return v
	}
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, e := range t {
			m[k] = cloneValue(e)
		}
		return m
	case []any:
		s := make([]any, len(t))
		for i, e := range t {
			s[i] = cloneValue(e)
		}
		return s
	default:
		return v
	}
}
