package permissions

// Computed describes how a permission is derived from stored relations.
// It is a closed sum type with exactly four cases: DirectRelation,
// Union, Intersection and Arrow. Evaluation is a type switch in the
// checker; arbitrary nesting is expressed through Union/Intersection
// child lists.
type Computed interface {
	computed()
}

// DirectRelation grants the permission exactly when the named relation
// (or its userset expansion) holds on the object.
type DirectRelation struct {
	Relation string
}

// Union grants the permission if any child grants it. Evaluation
// short-circuits on the first success.
type Union struct {
	Children []Computed
}

// Intersection grants the permission only if every child grants it.
// Evaluation short-circuits on the first failure.
type Intersection struct {
	Children []Computed
}

// Arrow grants the permission if, for some tuple (object, Relation,
// parent), the subject holds Target on the parent object. This is the
// hierarchical-inheritance operator, e.g. a channel permission
// inherited from the parent waddle's admin relation.
type Arrow struct {
	Relation string
	Target   string
}

func (DirectRelation) computed() {}
func (Union) computed()          {}
func (Intersection) computed()   {}
func (Arrow) computed()          {}

// Expression constructors, for readable schema literals.

// Direct returns a DirectRelation expression.
func Direct(relation string) Computed {
	return DirectRelation{Relation: relation}
}

// AnyOf returns a Union over the given expressions.
func AnyOf(children ...Computed) Computed {
	return Union{Children: children}
}

// AllOf returns an Intersection over the given expressions.
func AllOf(children ...Computed) Computed {
	return Intersection{Children: children}
}

// Inherit returns an Arrow following relation to a parent object and
// checking target there.
func Inherit(relation, target string) Computed {
	return Arrow{Relation: relation, Target: target}
}

// Schema defines the computed permissions for one object type.
type Schema struct {
	Type        string
	Permissions map[string]Computed
}

// SchemaSet is the read-only lookup table consulted by the checker,
// provided wholesale at construction. Implementations wanting
// hot-reload swap the whole set on the checker, never single entries.
type SchemaSet map[string]Schema

// NewSchemaSet builds a SchemaSet from schema definitions. Later
// definitions for the same type replace earlier ones.
func NewSchemaSet(schemas ...Schema) SchemaSet {
	set := make(SchemaSet, len(schemas))
	for _, s := range schemas {
		set[s.Type] = s
	}
	return set
}

// GetPermission returns the expression for (objectType, name), if any.
func (s SchemaSet) GetPermission(objectType, name string) (Computed, bool) {
	schema, ok := s[objectType]
	if !ok {
		return nil, false
	}
	expr, ok := schema.Permissions[name]
	return expr, ok
}
