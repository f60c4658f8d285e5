package permissions

import (
	"context"
	"sync"
)

// tupleKey is the 6-tuple identity a stored fact is addressed by.
type tupleKey struct {
	objectType      string
	objectID        string
	relation        string
	subjectType     string
	subjectID       string
	subjectRelation string
}

func keyOf(t Tuple) tupleKey {
	return tupleKey{
		objectType:      t.Object.Type,
		objectID:        t.Object.ID,
		relation:        t.Relation,
		subjectType:     t.Subject.Type,
		subjectID:       t.Subject.ID,
		subjectRelation: t.Subject.Relation,
	}
}

// MemoryStore is an in-memory TupleStore keyed by the 6-tuple identity.
// Useful for tests, development and single-instance deployments; use
// the GORM-backed repository for durable storage.
type MemoryStore struct {
	mu     sync.RWMutex
	tuples map[tupleKey]Tuple
}

// NewMemoryStore creates an empty in-memory tuple store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tuples: make(map[tupleKey]Tuple)}
}

// Write upserts a tuple. Re-writing an existing key is a no-op.
func (s *MemoryStore) Write(ctx context.Context, tuple Tuple) error {
	if err := tuple.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.tuples[keyOf(tuple)] = tuple
	return nil
}

// WriteBatch upserts multiple tuples under one lock acquisition.
func (s *MemoryStore) WriteBatch(ctx context.Context, tuples []Tuple) error {
	for _, t := range tuples {
		if err := t.Validate(); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range tuples {
		s.tuples[keyOf(t)] = t
	}
	return nil
}

// Exists checks for a literal tuple match.
func (s *MemoryStore) Exists(ctx context.Context, object Object, relation string, subject Subject) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.tuples[keyOf(Tuple{Object: object, Relation: relation, Subject: subject})]
	return ok, nil
}

// ListSubjects returns every subject holding relation on object.
func (s *MemoryStore) ListSubjects(ctx context.Context, object Object, relation string) ([]Subject, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []Subject
	for _, t := range s.tuples {
		if t.Object == object && t.Relation == relation {
			result = append(result, t.Subject)
		}
	}
	return result, nil
}

// TuplesForObject returns tuples for an object, optionally filtered by
// relation.
func (s *MemoryStore) TuplesForObject(ctx context.Context, object Object, relation string) ([]Tuple, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []Tuple
	for _, t := range s.tuples {
		if t.Object != object {
			continue
		}
		if relation != "" && t.Relation != relation {
			continue
		}
		result = append(result, t)
	}
	return result, nil
}

// ListTuples returns all tuples matching the filter.
func (s *MemoryStore) ListTuples(ctx context.Context, filter TupleFilter) ([]Tuple, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []Tuple
	for _, t := range s.tuples {
		if filter.Matches(t) {
			result = append(result, t)
		}
	}
	return result, nil
}

// Delete removes a tuple. Missing tuples are not an error.
func (s *MemoryStore) Delete(ctx context.Context, object Object, relation string, subject Subject) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.tuples, keyOf(Tuple{Object: object, Relation: relation, Subject: subject}))
	return nil
}

// DeleteByFilter removes all tuples matching the filter. An empty
// filter is rejected with ErrEmptyFilter.
func (s *MemoryStore) DeleteByFilter(ctx context.Context, filter TupleFilter) error {
	if filter.IsZero() {
		return ErrEmptyFilter
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for k, t := range s.tuples {
		if filter.Matches(t) {
			delete(s.tuples, k)
		}
	}
	return nil
}

// Compile-time interface check
var _ TupleStore = (*MemoryStore)(nil)
