package feeders

import (
	"errors"
	"fmt"
)

// Static errors for feeders.
var (
	ErrInvalidStructure = errors.New("expected pointer to struct")
	ErrEmptyPrefix      = errors.New("env: prefix cannot be empty")
	ErrFieldNotSettable = errors.New("field cannot be set")
	ErrConversion       = errors.New("cannot convert value to field type")
)

func wrapStructureError(got any) error {
	return fmt.Errorf("%w, got %T", ErrInvalidStructure, got)
}

func wrapConversionError(key string, value string, fieldType string, err error) error {
	return fmt.Errorf("%w: %s=%q to %s: %w", ErrConversion, key, value, fieldType, err)
}
