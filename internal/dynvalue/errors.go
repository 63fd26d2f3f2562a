package dynvalue

import "fmt"

// UnsupportedDataTypeError reports a value type the catalog does not know.
// It means the attribute schema itself is broken, not that a value was bad.
type UnsupportedDataTypeError struct {
	Type string
}

func (e *UnsupportedDataTypeError) Error() string {
	return fmt.Sprintf("unsupported data type %q", e.Type)
}

// ValidationError reports an input that cannot be coerced to the declared type.
type ValidationError struct {
	Type   Type
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for %s, %s", e.Type, e.Reason)
}
