package conf

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that serializes as a human-readable string
// ("90s", "1h0m0s"). Bare numbers are read as whole seconds, which is how
// operators tend to write TTLs in environment variables.
type Duration time.Duration

// Std converts Duration to a standard time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

func (d Duration) String() string {
	return time.Duration(d).String()
}

// parseDurationValue converts a decoded scalar into a Duration.
func parseDurationValue(v any) (Duration, error) {
	switch value := v.(type) {
	case nil:
		return 0, nil
	case Duration:
		return value, nil
	case time.Duration:
		return Duration(value), nil
	case string:
		if parsed, err := time.ParseDuration(value); err == nil {
			return Duration(parsed), nil
		}
		if secs, err := strconv.ParseInt(value, 10, 64); err == nil {
			return Duration(time.Duration(secs) * time.Second), nil
		}
		return 0, fmt.Errorf("invalid duration %q: expected format like \"30s\" or \"5m\"", value)
	case int:
		return Duration(time.Duration(value) * time.Second), nil
	case int64:
		return Duration(time.Duration(value) * time.Second), nil
	case float64:
		return Duration(time.Duration(value * float64(time.Second))), nil
	default:
		return 0, fmt.Errorf("invalid duration value: %v (type %T)", v, v)
	}
}

// MarshalJSON outputs the duration as a JSON string.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON accepts a duration string, a number of seconds, or null.
func (d *Duration) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	parsed, err := parseDurationValue(v)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// MarshalYAML outputs the duration as a string.
func (d Duration) MarshalYAML() (any, error) {
	return d.String(), nil
}

// UnmarshalYAML accepts a scalar duration string or a number of seconds.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("expected scalar duration value, got %v", value.Kind)
	}
	parsed, err := parseDurationValue(value.Value)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

var durationType = reflect.TypeFor[Duration]()

// DurationDecodeHook lets viper decode strings and numbers into Duration
// fields. Viper's stock hooks are kept for time.Duration and string slices.
func DurationDecodeHook() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		mapstructure.DecodeHookFuncType(func(_, to reflect.Type, data any) (any, error) {
			if to != durationType {
				return data, nil
			}
			return parseDurationValue(data)
		}),
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)
}
