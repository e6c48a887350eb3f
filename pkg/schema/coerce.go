package schema

import (
	"fmt"
	"strconv"
)

// Coerce parses a string supplied on the command line into the declared
// type. Used for user input and --set flags; structured output never goes
// through coercion.
func Coerce(t Type, s string) (any, error) {
	switch typ := t.(type) {
	case *StringType:
		return s, nil
	case *IntType:
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("expected int, got %q", s)
		}
		return n, nil
	case *FloatType:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("expected float, got %q", s)
		}
		return f, nil
	case *BoolType:
		b, err := strconv.ParseBool(s)
		if err != nil {
			return nil, fmt.Errorf("expected bool, got %q", s)
		}
		return b, nil
	case *EnumType:
		if err := typ.Validate(s); err != nil {
			return nil, err
		}
		return s, nil
	default:
		// Slices and custom types take the raw string through Validate.
		if err := t.Validate(s); err != nil {
			return nil, err
		}
		return s, nil
	}
}
