package types

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

type bound struct {
	min, max float64
}

var bounds = map[string]bound{
	FieldTemperature: {-50, 100},
	FieldTDSValue:    {0, 10000},
	FieldLatitude:    {-90, 90},
	FieldLongitude:   {-180, 180},
	FieldSpeed:       {0, 50},
}

// DecodePayload parses a raw transport frame. Anything but a JSON object is a
// *DecodeError.
func DecodePayload(raw []byte) (Payload, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, &DecodeError{Err: err}
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, &DecodeError{Err: fmt.Errorf("expected JSON object, got %s", jsonKind(v))}
	}
	return Payload(obj), nil
}

// ReadingFromPayload casts the schema fields of p into a Reading stamped with
// arrivedAt and checks every bound. Violations are collected into a single
// *ValidationFailure.
func ReadingFromPayload(p Payload, arrivedAt time.Time) (Reading, error) {
	failures := map[string]string{}
	cast := func(field string) *float64 {
		v, err := castNumber(p[field])
		if err != nil {
			failures[field] = err.Error()
			return nil
		}
		return v
	}

	r := Reading{
		Temperature: cast(FieldTemperature),
		TDSValue:    cast(FieldTDSValue),
		Latitude:    cast(FieldLatitude),
		Longitude:   cast(FieldLongitude),
		Timestamp:   arrivedAt.UTC(),
	}
	if speed := cast(FieldSpeed); speed != nil {
		r.Speed = *speed
	}
	if len(failures) > 0 {
		return Reading{}, &ValidationFailure{Fields: failures}
	}
	if err := Validate(r); err != nil {
		return Reading{}, err
	}
	return r, nil
}

// Validate checks the declared bounds of r.
func Validate(r Reading) error {
	failures := map[string]string{}
	check := func(field string, v *float64) {
		if v == nil {
			return
		}
		b := bounds[field]
		switch {
		case *v < b.min:
			failures[field] = fmt.Sprintf("%s is less than minimum allowed value (%s)", formatFloat(*v), formatFloat(b.min))
		case *v > b.max:
			failures[field] = fmt.Sprintf("%s is more than maximum allowed value (%s)", formatFloat(*v), formatFloat(b.max))
		}
	}
	check(FieldTemperature, r.Temperature)
	check(FieldTDSValue, r.TDSValue)
	check(FieldLatitude, r.Latitude)
	check(FieldLongitude, r.Longitude)
	check(FieldSpeed, &r.Speed)
	if r.Timestamp.IsZero() {
		failures["timestamp"] = "is required"
	}
	if len(failures) > 0 {
		return &ValidationFailure{Fields: failures}
	}
	return nil
}

// castNumber accepts JSON numbers, Go integers and numeric strings. nil and
// "" mean absent.
func castNumber(v any) (*float64, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case float64:
		return &t, nil
	case int:
		f := float64(t)
		return &f, nil
	case int64:
		f := float64(t)
		return &f, nil
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return nil, fmt.Errorf("cast to number failed for value %q", t.String())
		}
		return &f, nil
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return nil, nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, fmt.Errorf("cast to number failed for value %q", t)
		}
		return &f, nil
	default:
		return nil, fmt.Errorf("cast to number failed for %s value", jsonKind(v))
	}
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func jsonKind(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case float64, int, int64, json.Number:
		return "number"
	case string:
		return "string"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}

// IsDecodeError reports whether err carries a *DecodeError.
func IsDecodeError(err error) bool {
	var de *DecodeError
	return errors.As(err, &de)
}
