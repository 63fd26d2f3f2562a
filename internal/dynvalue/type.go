// Package dynvalue implements the typed values stored for product attributes.
//
// The attribute schema is user defined, so values are persisted as a tagged
// union {"datatype": ..., "value": ...} in a JSON column instead of native
// typed columns. Temporal values are stored in their string form and parsed
// back to time.Time on read.
package dynvalue

import "strings"

// Type is the declared value type of a product attribute.
type Type string

const (
	Text     Type = "text"
	Integer  Type = "integer"
	Float    Type = "float"
	Boolean  Type = "boolean"
	Date     Type = "date"
	DateTime Type = "datetime"
	Time     Type = "time"
)

// Types lists every supported value type in display order.
var Types = []Type{Text, Integer, Float, Boolean, Date, DateTime, Time}

// legacyText is the spelling used for text attributes by older catalog data.
const legacyText = "charactor"

// ParseType resolves a stored or user supplied type name.
func ParseType(s string) (Type, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	if name == legacyText {
		return Text, nil
	}
	t := Type(name)
	if !t.Valid() {
		return "", &UnsupportedDataTypeError{Type: s}
	}
	return t, nil
}

func (t Type) Valid() bool {
	switch t {
	case Text, Integer, Float, Boolean, Date, DateTime, Time:
		return true
	}
	return false
}

// IsTemporal reports whether values of t are stored as strings and re-parsed on read.
func (t Type) IsTemporal() bool {
	return t == Date || t == DateTime || t == Time
}

func (t Type) String() string {
	return string(t)
}
