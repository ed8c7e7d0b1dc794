package lifecycle

import (
	"fmt"

	"github.com/kazz187/taskpulse/internal/instance"
	"github.com/kazz187/taskpulse/pkg/cerr"
)

var percentKeys = []string{
	instance.AttrExpectedRelief,
	instance.AttrActualRelief,
	instance.AttrExpectedAversion,
	instance.AttrExpectedCognitiveLoad,
	instance.AttrCompletionPercent,
}

var minuteKeys = []string{
	instance.AttrTimeEstimateMinutes,
	instance.AttrActualTimeMinutes,
}

var stringKeys = []string{
	instance.AttrTaskType,
	instance.AttrNotes,
	instance.AttrCancelReason,
}

// ValidateAttributes checks a predicted or actual snapshot: every value must
// be storable and the well-known keys must be in range.
func ValidateAttributes(a instance.Attributes) error {
	if err := a.Validate(); err != nil {
		return err
	}
	for _, key := range percentKeys {
		if err := checkNumber(a, key, 0, 100); err != nil {
			return err
		}
	}
	for _, key := range minuteKeys {
		if err := checkNumber(a, key, 0, -1); err != nil {
			return err
		}
	}
	for _, key := range stringKeys {
		if v, ok := a[key]; ok && v != nil {
			if _, ok := v.(string); !ok {
				return cerr.NewError(cerr.InvalidArgument, fmt.Sprintf("%s must be a string", key), nil)
			}
		}
	}
	return nil
}

// checkNumber requires a[key], when present, to be a finite number in
// [lo, hi]. A negative hi leaves the range open above.
func checkNumber(a instance.Attributes, key string, lo, hi float64) error {
	v, present := a[key]
	if !present || v == nil {
		return nil
	}
	f, ok := a.Float(key)
	if !ok {
		return cerr.NewError(cerr.InvalidArgument, fmt.Sprintf("%s must be a number", key), nil)
	}
	if f < lo || (hi >= 0 && f > hi) {
		if hi >= 0 {
			return cerr.NewError(cerr.InvalidArgument, fmt.Sprintf("%s must be between %g and %g, got %g", key, lo, hi, f), nil)
		}
		return cerr.NewError(cerr.InvalidArgument, fmt.Sprintf("%s must be at least %g, got %g", key, lo, f), nil)
	}
	return nil
}
