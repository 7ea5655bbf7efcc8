package interceptor

import "errors"

var (
	// ErrAmbiguousInterceptor is returned under the Strict policy when more
	// than one interceptor is eligible for an annotation.
	ErrAmbiguousInterceptor = errors.New("ambiguous interceptor")
	// ErrUnknownPolicy is returned by ParsePolicy.
	ErrUnknownPolicy = errors.New("unknown interceptor resolution policy")
	// ErrFieldNotSettable is returned by Field.Set for unexported or
	// unaddressable fields.
	ErrFieldNotSettable = errors.New("field is not settable")
	// ErrIncompatibleValue is returned by Field.Set when the value cannot be
	// assigned to the field type.
	ErrIncompatibleValue = errors.New("value not assignable to field")
)
