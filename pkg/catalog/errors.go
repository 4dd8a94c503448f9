package catalog

import "errors"

var (
	// ErrDuplicateAttribute is returned when a codec declares the same attribute twice.
	ErrDuplicateAttribute = errors.New("duplicate attribute")

	// ErrInvalidIdentifier is returned for table, column or relation names that cannot be
	// quoted safely.
	ErrInvalidIdentifier = errors.New("invalid identifier")

	// ErrUnknownTable is returned when a key or relation references a table that was never added.
	ErrUnknownTable = errors.New("unknown table")

	// ErrUnknownColumn is returned when a key or relation references a missing column.
	ErrUnknownColumn = errors.New("unknown column")

	// ErrRelationArity is returned when a relation pairs a different number of local and
	// remote attributes.
	ErrRelationArity = errors.New("relation attribute count mismatch")

	// ErrRelationTypeMismatch is returned when a relation pairs attributes of incompatible kinds.
	ErrRelationTypeMismatch = errors.New("relation attribute type mismatch")

	// ErrDuplicateRelation is returned when two relations of a resource resolve to the same name.
	ErrDuplicateRelation = errors.New("duplicate relation name")

	// ErrUnknownResource is returned by lookups for a resource that is not in the catalog.
	ErrUnknownResource = errors.New("unknown resource")
)
