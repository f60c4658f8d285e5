// Package permissions implements the Relationship-Based Access Control
// (ReBAC) engine for the Waddle chat platform.
//
// Permissions are derived from a graph of stored relationship tuples
// rather than static roles. The package provides:
//   - Core types for representing relationship tuples
//   - A storage contract for persisting tuples
//   - A schema table describing how permissions are computed
//   - A recursive checker with cycle protection and verdict caching
//   - A high-level service for application use
//
// The design follows Google Zanzibar: every access-control decision in
// the platform (who may read a channel, who may kick an occupant, who
// may configure a room) reduces to a Check call against this engine.
package permissions

import "strings"

// Stock object and subject types. The enumeration is open: callers may
// introduce new types without touching the engine.
const (
	TypeUser          = "user"
	TypeWaddle        = "waddle" // a community (server-side "waddle")
	TypeChannel       = "channel"
	TypeRole          = "role"
	TypeDirectMessage = "dm"
	TypeMessage       = "message"
)

// Object is a typed reference to an entity, e.g. "channel:general" or
// "waddle:penguin-hq". Objects are referenced by identity only; the
// engine never creates or destroys them.
type Object struct {
	Type string
	ID   string
}

// String returns the canonical representation: "type:id".
func (o Object) String() string {
	return o.Type + ":" + o.ID
}

// IsZero reports whether the reference is empty.
func (o Object) IsZero() bool {
	return o.Type == "" && o.ID == ""
}

// Subject is the holder side of a tuple. With an empty Relation it
// denotes exactly one principal ("user:alice"). With a Relation set it
// denotes a userset: all principals currently holding that relation on
// the referenced object ("waddle:penguin-hq#member").
//
// A subject of type user must never carry a relation: users are always
// concrete, never usersets. Tuple validation enforces this.
type Subject struct {
	Type     string
	ID       string
	Relation string
}

// String returns "type:id" or "type:id#relation" for usersets.
func (s Subject) String() string {
	if s.Relation == "" {
		return s.Type + ":" + s.ID
	}
	return s.Type + ":" + s.ID + "#" + s.Relation
}

// IsUserset reports whether the subject denotes a userset.
func (s Subject) IsUserset() bool {
	return s.Relation != ""
}

// Object returns the subject reinterpreted as an object reference.
// Arrow evaluation uses this to treat a tuple's subject as a parent.
func (s Subject) Object() Object {
	return Object{Type: s.Type, ID: s.ID}
}

// Tuple is the single unit of stored fact: "subject holds relation on
// object". Tuples are content-addressed by the 6-tuple
// (object type, object id, relation, subject type, subject id,
// subject relation); writing an existing key is an idempotent replace.
type Tuple struct {
	Object   Object
	Relation string
	Subject  Subject
}

// String returns the canonical representation: "object#relation@subject".
func (t Tuple) String() string {
	return t.Object.String() + "#" + t.Relation + "@" + t.Subject.String()
}

// Validate checks the structural invariants of a tuple before storage.
func (t Tuple) Validate() error {
	if t.Object.Type == "" || t.Object.ID == "" || t.Relation == "" ||
		t.Subject.Type == "" || t.Subject.ID == "" {
		return ErrInvalidTuple
	}
	if t.Subject.Type == TypeUser && t.Subject.Relation != "" {
		return ErrUserUserset
	}
	return nil
}

// TupleFilter selects tuples for bulk queries. All non-empty fields are
// ANDed together.
type TupleFilter struct {
	ObjectType      string
	ObjectID        string
	Relation        string
	SubjectType     string
	SubjectID       string
	SubjectRelation string
}

// IsZero reports whether the filter carries no constraints.
func (f TupleFilter) IsZero() bool {
	return f == TupleFilter{}
}

// Matches reports whether the tuple satisfies the filter.
func (f TupleFilter) Matches(t Tuple) bool {
	if f.ObjectType != "" && t.Object.Type != f.ObjectType {
		return false
	}
	if f.ObjectID != "" && t.Object.ID != f.ObjectID {
		return false
	}
	if f.Relation != "" && t.Relation != f.Relation {
		return false
	}
	if f.SubjectType != "" && t.Subject.Type != f.SubjectType {
		return false
	}
	if f.SubjectID != "" && t.Subject.ID != f.SubjectID {
		return false
	}
	if f.SubjectRelation != "" && t.Subject.Relation != f.SubjectRelation {
		return false
	}
	return true
}

// CheckRequest asks whether Subject holds Permission on Object. The
// struct is comparable and is used verbatim as the verdict cache key.
type CheckRequest struct {
	Subject    Subject
	Permission string
	Object     Object
}

// CheckResponse is the verdict. Reason is a free-form diagnostic trail
// ("direct:owner", "arrow:parent->admin", "cached") with no semantic
// meaning beyond debugging and auditing.
type CheckResponse struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

// Helper constructors for common patterns.

// NewObject creates an object reference.
func NewObject(objectType, id string) Object {
	return Object{Type: objectType, ID: id}
}

// NewSubject creates a concrete (non-userset) subject.
func NewSubject(subjectType, id string) Subject {
	return Subject{Type: subjectType, ID: id}
}

// NewUserset creates a userset subject.
func NewUserset(objectType, id, relation string) Subject {
	return Subject{Type: objectType, ID: id, Relation: relation}
}

// NewTuple creates a tuple with a concrete subject.
func NewTuple(objectType, objectID, relation, subjectType, subjectID string) Tuple {
	return Tuple{
		Object:   Object{Type: objectType, ID: objectID},
		Relation: relation,
		Subject:  Subject{Type: subjectType, ID: subjectID},
	}
}

// NewUsersetTuple creates a tuple whose subject is a userset.
func NewUsersetTuple(objectType, objectID, relation, subjectType, subjectID, subjectRelation string) Tuple {
	return Tuple{
		Object:   Object{Type: objectType, ID: objectID},
		Relation: relation,
		Subject:  Subject{Type: subjectType, ID: subjectID, Relation: subjectRelation},
	}
}

// ParseObject parses a colon-delimited "type:id" reference.
func ParseObject(ref string) (Object, error) {
	typ, id, ok := strings.Cut(ref, ":")
	if !ok || typ == "" || id == "" {
		return Object{}, ErrMalformedRef
	}
	return Object{Type: typ, ID: id}, nil
}

// ParseSubject parses "type:id" or "type:id#relation".
func ParseSubject(ref string) (Subject, error) {
	base, relation, _ := strings.Cut(ref, "#")
	obj, err := ParseObject(base)
	if err != nil {
		return Subject{}, err
	}
	return Subject{Type: obj.Type, ID: obj.ID, Relation: relation}, nil
}
