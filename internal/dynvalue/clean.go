package dynvalue

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"
)

const (
	DateLayout     = "2006-01-02"
	DateTimeLayout = time.RFC3339Nano
	TimeLayout     = "15:04:05.999999999"
)

var dateTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	DateLayout,
}

var timeLayouts = []string{"15:04:05", "15:04"}

// Clean coerces input to the canonical in-memory representation of t.
//
// An unknown t yields *UnsupportedDataTypeError; an input that cannot be
// coerced yields *ValidationError.
func Clean(t Type, input any) (Value, error) {
	if !t.Valid() {
		return Value{}, &UnsupportedDataTypeError{Type: string(t)}
	}
	if input == nil {
		return Value{}, &ValidationError{Type: t, Reason: "value cannot be null"}
	}
	if v, ok := input.(Value); ok {
		if v.typ == t {
			return v, nil
		}
		input = v.Interface()
	}

	var (
		native any
		err    error
	)
	switch t {
	case Text:
		native, err = cleanText(input)
	case Integer:
		native, err = cleanInteger(input)
	case Float:
		native, err = cleanFloat(input)
	case Boolean:
		native, err = cleanBoolean(input)
	case Date:
		native, err = cleanDate(input)
	case DateTime:
		native, err = cleanDateTime(input)
	case Time:
		native, err = cleanTime(input)
	}
	if err != nil {
		return Value{}, &ValidationError{Type: t, Reason: err.Error()}
	}
	return Value{typ: t, native: native}, nil
}

func cleanText(input any) (string, error) {
	switch v := input.(type) {
	case string:
		return v, nil
	case json.Number:
		return v.String(), nil
	case bool:
		return strconv.FormatBool(v), nil
	case fmt.Stringer:
		return v.String(), nil
	}
	rv := reflect.ValueOf(input)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(rv.Uint(), 10), nil
	case reflect.Float32, reflect.Float64:
		return strconv.FormatFloat(rv.Float(), 'f', -1, 64), nil
	case reflect.String:
		return rv.String(), nil
	}
	return "", fmt.Errorf("cannot convert %T to text", input)
}

func cleanInteger(input any) (int64, error) {
	switch v := input.(type) {
	case bool:
		return 0, errors.New("boolean is not an integer")
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return i, nil
		}
		f, err := v.Float64()
		if err != nil {
			return 0, fmt.Errorf("%q is not a valid integer", v.String())
		}
		return integralFloat(f)
	case string:
		s := strings.TrimSpace(v)
		i, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%q is not a valid integer", v)
		}
		return i, nil
	}
	rv := reflect.ValueOf(input)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u := rv.Uint()
		if u > math.MaxInt64 {
			return 0, fmt.Errorf("%d overflows integer", u)
		}
		return int64(u), nil
	case reflect.Float32, reflect.Float64:
		return integralFloat(rv.Float())
	}
	return 0, fmt.Errorf("cannot convert %T to integer", input)
}

func integralFloat(f float64) (int64, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) || math.Trunc(f) != f {
		return 0, fmt.Errorf("%v is not an integer", f)
	}
	// float64(math.MaxInt64) rounds up to 2^63, which int64 cannot hold.
	if f >= math.MaxInt64 || f < math.MinInt64 {
		return 0, fmt.Errorf("%v overflows integer", f)
	}
	return int64(f), nil
}

func cleanFloat(input any) (float64, error) {
	var f float64
	switch v := input.(type) {
	case bool:
		return 0, errors.New("boolean is not a number")
	case json.Number:
		parsed, err := v.Float64()
		if err != nil {
			return 0, fmt.Errorf("%q is not a valid number", v.String())
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, fmt.Errorf("%q is not a valid number", v)
		}
		f = parsed
	default:
		rv := reflect.ValueOf(input)
		switch rv.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			f = float64(rv.Int())
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			f = float64(rv.Uint())
		case reflect.Float32, reflect.Float64:
			f = rv.Float()
		default:
			return 0, fmt.Errorf("cannot convert %T to float", input)
		}
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%v is not a finite number", f)
	}
	return f, nil
}

func cleanBoolean(input any) (bool, error) {
	switch v := input.(type) {
	case bool:
		return v, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "t", "1":
			return true, nil
		case "false", "f", "0":
			return false, nil
		}
		return false, fmt.Errorf("%q must be either true or false", v)
	case json.Number:
		return cleanBoolean(v.String())
	}
	rv := reflect.ValueOf(input)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return numericBool(float64(rv.Int()))
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return numericBool(float64(rv.Uint()))
	case reflect.Float32, reflect.Float64:
		return numericBool(rv.Float())
	}
	return false, fmt.Errorf("cannot convert %T to boolean", input)
}

func numericBool(f float64) (bool, error) {
	switch f {
	case 1:
		return true, nil
	case 0:
		return false, nil
	}
	return false, fmt.Errorf("%v must be either 1 or 0", f)
}

func cleanDate(input any) (time.Time, error) {
	switch v := input.(type) {
	case time.Time:
		return dateOf(v), nil
	case string:
		t, err := time.Parse(DateLayout, strings.TrimSpace(v))
		if err != nil {
			return time.Time{}, fmt.Errorf("%q has an invalid date format, it must be in YYYY-MM-DD format", v)
		}
		return t, nil
	}
	return time.Time{}, fmt.Errorf("cannot convert %T to date", input)
}

func cleanDateTime(input any) (time.Time, error) {
	switch v := input.(type) {
	case time.Time:
		return v.UTC(), nil
	case string:
		s := strings.TrimSpace(v)
		for _, layout := range dateTimeLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t.UTC(), nil
			}
		}
		return time.Time{}, fmt.Errorf("%q has an invalid datetime format, it must be in RFC 3339 format", v)
	}
	return time.Time{}, fmt.Errorf("cannot convert %T to datetime", input)
}

func cleanTime(input any) (time.Time, error) {
	switch v := input.(type) {
	case time.Time:
		return clockOf(v), nil
	case string:
		s := strings.TrimSpace(v)
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return clockOf(t), nil
			}
		}
		return time.Time{}, fmt.Errorf("%q has an invalid time format, it must be in HH:MM[:ss[.uuuuuu]] format", v)
	}
	return time.Time{}, fmt.Errorf("cannot convert %T to time", input)
}

func dateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func clockOf(t time.Time) time.Time {
	return time.Date(0, time.January, 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
}
