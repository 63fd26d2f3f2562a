package dynvalue

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"
)

// Value is a cleaned attribute value tagged with its type. The zero Value
// holds nothing and is stored as SQL NULL.
type Value struct {
	typ    Type
	native any
}

// storageSchema is the JSON document persisted for every value.
type storageSchema struct {
	Datatype Type `json:"datatype"`
	Value    any  `json:"value"`
}

func (v Value) Type() Type {
	return v.typ
}

func (v Value) IsZero() bool {
	return v.typ == ""
}

// Native returns string, int64, float64, bool or time.Time.
func (v Value) Native() any {
	return v.native
}

// Interface returns the JSON friendly form: temporal values as strings.
func (v Value) Interface() any {
	if v.typ.IsTemporal() {
		return v.String()
	}
	return v.native
}

func (v Value) String() string {
	switch n := v.native.(type) {
	case nil:
		return ""
	case string:
		return n
	case int64:
		return strconv.FormatInt(n, 10)
	case float64:
		return strconv.FormatFloat(n, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(n)
	case time.Time:
		switch v.typ {
		case Date:
			return n.Format(DateLayout)
		case Time:
			return n.Format(TimeLayout)
		default:
			return n.Format(DateTimeLayout)
		}
	}
	return fmt.Sprint(v.native)
}

func (v Value) Text() (string, bool) {
	s, ok := v.native.(string)
	return s, ok && v.typ == Text
}

func (v Value) Int() (int64, bool) {
	i, ok := v.native.(int64)
	return i, ok
}

func (v Value) Float() (float64, bool) {
	f, ok := v.native.(float64)
	return f, ok
}

func (v Value) Bool() (bool, bool) {
	b, ok := v.native.(bool)
	return b, ok
}

func (v Value) Time() (time.Time, bool) {
	t, ok := v.native.(time.Time)
	return t, ok
}

func (v Value) Equal(o Value) bool {
	if v.typ != o.typ {
		return false
	}
	if a, ok := v.native.(time.Time); ok {
		b, ok := o.native.(time.Time)
		return ok && a.Equal(b)
	}
	return v.native == o.native
}

// Encode renders the storage document.
func (v Value) Encode() ([]byte, error) {
	if v.IsZero() {
		return nil, errors.New("dynvalue: encode of empty value")
	}
	return json.Marshal(storageSchema{Datatype: v.typ, Value: v.Interface()})
}

// Decode parses a storage document, re-parsing temporal values.
func Decode(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var doc struct {
		Datatype string `json:"datatype"`
		Value    any    `json:"value"`
	}
	if err := dec.Decode(&doc); err != nil {
		return Value{}, fmt.Errorf("dynvalue: decode: %w", err)
	}
	t, err := ParseType(doc.Datatype)
	if err != nil {
		return Value{}, err
	}
	return Clean(t, doc.Value)
}

func (v Value) MarshalJSON() ([]byte, error) {
	if v.IsZero() {
		return []byte("null"), nil
	}
	return v.Encode()
}

func (v *Value) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*v = Value{}
		return nil
	}
	decoded, err := Decode(data)
	if err != nil {
		return err
	}
	*v = decoded
	return nil
}

// Value implements driver.Valuer.
func (v Value) Value() (driver.Value, error) {
	if v.IsZero() {
		return nil, nil
	}
	return v.Encode()
}

// Scan implements sql.Scanner.
func (v *Value) Scan(src any) error {
	switch data := src.(type) {
	case nil:
		*v = Value{}
		return nil
	case []byte:
		return v.UnmarshalJSON(data)
	case string:
		return v.UnmarshalJSON([]byte(data))
	}
	return fmt.Errorf("dynvalue: cannot scan %T", src)
}
