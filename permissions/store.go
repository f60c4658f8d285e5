package permissions

import "context"

// TupleStore defines the persistence contract for relationship tuples.
// Implementations can be in-memory or SQL-backed depending on scale;
// they hold no authorization logic.
//
// Storage failures propagate to the caller unchanged. The checker has
// no fallback and never coerces an error into a verdict.
type TupleStore interface {
	// Write upserts a tuple keyed by its 6-tuple identity. Writing an
	// existing key is an idempotent replace, not a duplicate insert.
	Write(ctx context.Context, tuple Tuple) error

	// WriteBatch upserts multiple tuples atomically.
	WriteBatch(ctx context.Context, tuples []Tuple) error

	// Exists reports whether a tuple matches literally. No userset
	// expansion: the subject must match a stored tuple exactly, be it
	// a concrete principal or a literal userset subject.
	Exists(ctx context.Context, object Object, relation string, subject Subject) (bool, error)

	// ListSubjects returns every subject (concrete or userset) holding
	// relation on object. Used by userset expansion.
	ListSubjects(ctx context.Context, object Object, relation string) ([]Subject, error)

	// TuplesForObject returns tuples whose object matches, optionally
	// filtered by relation (empty string means all relations). Used by
	// arrow evaluation to discover parent-object edges.
	TuplesForObject(ctx context.Context, object Object, relation string) ([]Tuple, error)

	// ListTuples returns all tuples matching the filter. Used for
	// reverse lookups such as "which channels can alice view".
	ListTuples(ctx context.Context, filter TupleFilter) ([]Tuple, error)

	// Delete removes a fact. Deleting a missing tuple is not an error.
	Delete(ctx context.Context, object Object, relation string, subject Subject) error

	// DeleteByFilter removes all tuples matching the filter. A filter
	// with no constraints is rejected with ErrEmptyFilter.
	DeleteByFilter(ctx context.Context, filter TupleFilter) error
}
