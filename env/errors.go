package env

import "errors"

var (
	// ErrInvalidProperty is returned when a property key is not declared by
	// the target object's type.
	ErrInvalidProperty = errors.New("env: invalid property")

	// ErrInvalidValue is returned when a value cannot be assigned to the
	// property it was addressed to.
	ErrInvalidValue = errors.New("env: invalid value")

	// ErrUnknownObject is returned when an object key is not present in the
	// environment.
	ErrUnknownObject = errors.New("env: unknown object")

	// ErrUnknownType is returned when an object type key has no registered
	// factory.
	ErrUnknownType = errors.New("env: unknown object type")
)
