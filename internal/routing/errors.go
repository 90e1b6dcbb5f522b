package routing

import "errors"

var (
	// ErrEntityNotFound is returned when no entity exists for the given key
	ErrEntityNotFound = errors.New("routable entity not found")

	// ErrUnresolvable is returned when an entity has zero usable destinations
	// after every fallback; callers should treat it as a configuration defect
	ErrUnresolvable = errors.New("entity has no resolvable destination")

	// ErrNoDestinations is returned when the selector receives an empty list
	ErrNoDestinations = errors.New("no destinations available")

	// ErrDuplicateEntity is returned when creating an entity whose ID or
	// alias is already taken
	ErrDuplicateEntity = errors.New("entity id or alias already exists")

	// ErrUnsupportedOperator is returned when a condition uses an unknown operator
	ErrUnsupportedOperator = errors.New("unsupported operator")

	// ErrUnsupportedAttribute is returned when a condition targets an unknown attribute
	ErrUnsupportedAttribute = errors.New("unsupported attribute")
)
