package mapper

import (
	"errors"
	"fmt"
)

var (
	ErrDuplicateBinding   = errors.New("mapper: display is already mapped")
	ErrUnknownBinding     = errors.New("mapper: display is not mapped")
	ErrUnresolvedProperty = errors.New("mapper: display property could not be guessed")
	ErrInvalidPolicy      = errors.New("mapper: unknown submit policy")

	// Display property introspection failures, returned wrapped in a *PropertyError
	ErrPropertyNotFound      = errors.New("property not available")
	ErrPropertyNotObservable = errors.New("property has no notify signal")
	ErrPropertyNotReadable   = errors.New("property is not readable")
	ErrPropertyNotWritable   = errors.New("property is not writable")

	ErrReadOnlyModelProperty = errors.New("mapper: model property is read-only")
	ErrModelPropertyNotFound = errors.New("mapper: model has no such property")
	ErrNotifierNotFound      = errors.New("mapper: model has no such notifier")
	ErrNilDisplay            = errors.New("mapper: nil display")
	ErrUncomparableDisplay   = errors.New("mapper: display must be a comparable value, usually a pointer")
)

// PropertyError describes a display property that can't be used for a
// binding. Err is one of the ErrProperty* values.
type PropertyError struct {
	Display  Display
	Property string
	Err      error
}

func (e *PropertyError) Error() string {
	return fmt.Sprintf("mapper: property '%s' of %T: %s", e.Property, e.Display, e.Err)
}

func (e *PropertyError) Unwrap() error {
	return e.Err
}
