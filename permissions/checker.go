package permissions

import (
	"context"
	"fmt"
)

// DefaultMaxDepth is the recursion ceiling for permission checks. It is
// a hard bound, not a soft timeout: it caps worst-case recursion from
// malformed or cyclic schema and tuple data.
const DefaultMaxDepth = 10

// Checker evaluates CheckRequests by traversing the relation graph. It
// supports direct tuple lookups, single-hop userset expansion, and
// schema-driven composition (union, intersection, arrow inheritance),
// and owns a bounded LRU cache of final verdicts.
//
// A Checker is safe for concurrent use. Checks racing a concurrent
// tuple write may observe either the old or the new fact; no ordering
// is guaranteed across independent requests.
type Checker struct {
	store     TupleStore
	schemas   SchemaSet
	maxDepth  int
	cacheSize int
	cache     *verdictCache
}

// CheckerOption configures a Checker.
type CheckerOption func(*Checker)

// WithMaxDepth sets the maximum recursion depth.
func WithMaxDepth(depth int) CheckerOption {
	return func(c *Checker) {
		c.maxDepth = depth
	}
}

// WithSchemas sets the permission schemas consulted during evaluation.
func WithSchemas(schemas ...Schema) CheckerOption {
	return func(c *Checker) {
		for _, s := range schemas {
			c.schemas[s.Type] = s
		}
	}
}

// WithSchemaSet replaces the whole schema table.
func WithSchemaSet(set SchemaSet) CheckerOption {
	return func(c *Checker) {
		c.schemas = set
	}
}

// WithCacheSize bounds the verdict cache entry count.
func WithCacheSize(size int) CheckerOption {
	return func(c *Checker) {
		c.cacheSize = size
	}
}

// NewChecker creates a permission checker over the given store.
func NewChecker(store TupleStore, opts ...CheckerOption) (*Checker, error) {
	c := &Checker{
		store:     store,
		schemas:   make(SchemaSet),
		maxDepth:  DefaultMaxDepth,
		cacheSize: DefaultCacheSize,
	}

	for _, opt := range opts {
		opt(c)
	}

	cache, err := newVerdictCache(c.cacheSize)
	if err != nil {
		return nil, fmt.Errorf("permissions: init verdict cache: %w", err)
	}
	c.cache = cache

	return c, nil
}

// visitKey identifies a node in the evaluation graph for cycle
// detection. A revisited node contributes no new information and is
// treated as denied, never as an error.
type visitKey struct {
	object     Object
	permission string
	subject    Subject
}

// Check evaluates the request to a verdict. The cache is consulted
// first; on a miss the recursive algorithm runs and the boolean verdict
// is cached under the original request.
func (c *Checker) Check(ctx context.Context, req CheckRequest) (CheckResponse, error) {
	if allowed, ok := c.cache.get(req); ok {
		return CheckResponse{Allowed: allowed, Reason: "cached"}, nil
	}

	resp, err := c.check(ctx, req.Subject, req.Permission, req.Object, 0, make(map[visitKey]bool))
	if err != nil {
		return CheckResponse{}, err
	}

	c.cache.put(req, resp.Allowed)
	return resp, nil
}

// InvalidateObject drops cached verdicts that may involve the object.
// The cache key space cannot be partially matched, so this clears the
// entire cache.
func (c *Checker) InvalidateObject(object Object) {
	c.cache.clear()
}

// ClearCache drops all cached verdicts.
func (c *Checker) ClearCache() {
	c.cache.clear()
}

// CacheLen returns the number of cached verdicts.
func (c *Checker) CacheLen() int {
	return c.cache.len()
}

// check is the recursive evaluation. Order of steps: depth guard, cycle
// breaker, direct tuple match, single-hop userset expansion, schema
// composition. Absence of a grant is the terminal denied state.
func (c *Checker) check(ctx context.Context, subject Subject, permission string, object Object, depth int, visited map[visitKey]bool) (CheckResponse, error) {
	if depth > c.maxDepth {
		return CheckResponse{}, &MaxDepthError{Limit: c.maxDepth}
	}

	key := visitKey{object: object, permission: permission, subject: subject}
	if visited[key] {
		return CheckResponse{}, nil
	}
	visited[key] = true

	// Direct: a tuple literally uses the permission name as a relation.
	found, err := c.store.Exists(ctx, object, permission, subject)
	if err != nil {
		return CheckResponse{}, err
	}
	if found {
		return CheckResponse{Allowed: true, Reason: "direct:" + permission}, nil
	}

	// Userset expansion, for concrete user subjects only. One hop deep:
	// membership in each userset is tested with a single non-recursive
	// Exists call, so usersets of usersets resolve only through schema
	// composition.
	if subject.Type == TypeUser && !subject.IsUserset() {
		resp, err := c.checkUsersets(ctx, subject, permission, object)
		if err != nil {
			return CheckResponse{}, err
		}
		if resp.Allowed {
			return resp, nil
		}
	}

	// Schema: the continuation of the same logical check, so the
	// expression is evaluated at the current depth, not depth+1.
	if expr, ok := c.schemas.GetPermission(object.Type, permission); ok {
		resp, err := c.checkComputed(ctx, subject, expr, object, depth, visited)
		if err != nil {
			return CheckResponse{}, err
		}
		if resp.Allowed {
			return resp, nil
		}
	}

	return CheckResponse{}, nil
}

// checkUsersets tests whether the subject belongs to any userset
// holding relation on the object.
func (c *Checker) checkUsersets(ctx context.Context, subject Subject, relation string, object Object) (CheckResponse, error) {
	subjects, err := c.store.ListSubjects(ctx, object, relation)
	if err != nil {
		return CheckResponse{}, err
	}

	for _, holder := range subjects {
		if !holder.IsUserset() {
			continue
		}
		member, err := c.store.Exists(ctx, holder.Object(), holder.Relation, subject)
		if err != nil {
			return CheckResponse{}, err
		}
		if member {
			return CheckResponse{
				Allowed: true,
				Reason:  "userset:" + holder.String(),
			}, nil
		}
	}

	return CheckResponse{}, nil
}

// checkComputed evaluates a schema expression.
func (c *Checker) checkComputed(ctx context.Context, subject Subject, expr Computed, object Object, depth int, visited map[visitKey]bool) (CheckResponse, error) {
	switch e := expr.(type) {
	case DirectRelation:
		return c.checkDirectRelation(ctx, subject, e.Relation, object)

	case Union:
		for _, child := range e.Children {
			resp, err := c.checkComputed(ctx, subject, child, object, depth+1, visited)
			if err != nil {
				return CheckResponse{}, err
			}
			if resp.Allowed {
				return resp, nil
			}
		}
		return CheckResponse{}, nil

	case Intersection:
		for _, child := range e.Children {
			resp, err := c.checkComputed(ctx, subject, child, object, depth+1, visited)
			if err != nil {
				return CheckResponse{}, err
			}
			if !resp.Allowed {
				return CheckResponse{}, nil
			}
		}
		return CheckResponse{Allowed: true, Reason: "intersection"}, nil

	case Arrow:
		return c.checkArrow(ctx, subject, e, object, depth, visited)

	default:
		return CheckResponse{}, fmt.Errorf("permissions: unknown computed expression %T", expr)
	}
}

// checkDirectRelation applies the direct-match and userset-expansion
// steps against a schema relation instead of the original permission.
func (c *Checker) checkDirectRelation(ctx context.Context, subject Subject, relation string, object Object) (CheckResponse, error) {
	found, err := c.store.Exists(ctx, object, relation, subject)
	if err != nil {
		return CheckResponse{}, err
	}
	if found {
		return CheckResponse{Allowed: true, Reason: "direct:" + relation}, nil
	}

	if subject.Type == TypeUser && !subject.IsUserset() {
		return c.checkUsersets(ctx, subject, relation, object)
	}

	return CheckResponse{}, nil
}

// checkArrow follows the arrow relation to parent objects and checks
// the target permission there. Tuples whose subject is a user are
// skipped: a user cannot stand in for a parent object.
func (c *Checker) checkArrow(ctx context.Context, subject Subject, arrow Arrow, object Object, depth int, visited map[visitKey]bool) (CheckResponse, error) {
	tuples, err := c.store.TuplesForObject(ctx, object, arrow.Relation)
	if err != nil {
		return CheckResponse{}, err
	}

	for _, t := range tuples {
		if t.Subject.Type == TypeUser {
			continue
		}
		parent := t.Subject.Object()

		resp, err := c.check(ctx, subject, arrow.Target, parent, depth+1, visited)
		if err != nil {
			return CheckResponse{}, err
		}
		if resp.Allowed {
			return CheckResponse{
				Allowed: true,
				Reason:  "arrow:" + arrow.Relation + "->" + arrow.Target,
			}, nil
		}
	}

	return CheckResponse{}, nil
}
