package permissions

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidTuple is returned when a tuple is missing a required field.
	ErrInvalidTuple = errors.New("permissions: tuple has empty object, relation or subject")

	// ErrUserUserset is returned when a user subject carries a relation.
	// Users are concrete principals, never usersets.
	ErrUserUserset = errors.New("permissions: user subject must not carry a relation")

	// ErrMalformedRef is returned when a "type:id" reference fails to parse.
	ErrMalformedRef = errors.New("permissions: malformed reference, expected type:id")

	// ErrEmptyFilter is returned when a filtered delete carries no
	// constraints. Wiping the whole store must be explicit, never the
	// accident of a zero-value filter.
	ErrEmptyFilter = errors.New("permissions: delete filter must constrain at least one field")
)

// MaxDepthError reports that a check exceeded the recursion bound.
// It signals malformed or cyclic schema/tuple data and is never retried
// automatically: retrying cannot succeed without fixing the data.
type MaxDepthError struct {
	Limit int
}

func (e *MaxDepthError) Error() string {
	return fmt.Sprintf("permissions: max check depth exceeded (limit %d)", e.Limit)
}

// IsMaxDepth reports whether err is a MaxDepthError.
func IsMaxDepth(err error) bool {
	var m *MaxDepthError
	return errors.As(err, &m)
}
