// Package pgorm provides GORM-backed persistence for the permissions
// engine: relationship tuples and audit events, with the composite
// indexes the recursive checker depends on.
package pgorm

import (
	"time"

	"github.com/waddlechat/permafrost/permissions"
)

// gormRelationTuple is the stored form of a relationship tuple. The
// unique composite index enforces the 6-tuple identity; the secondary
// indexes cover lookup-by-object, lookup-by-subject,
// lookup-by-(object_type, relation) and the exact shape of the
// direct-relation check. Every recursive check step issues at least one
// of these lookups, so the index set is a latency requirement, not an
// optimization.
type gormRelationTuple struct {
	ID              string    `gorm:"primaryKey;size:36"`
	ObjectType      string    `gorm:"size:64;uniqueIndex:ux_tuple,priority:1;index:idx_object,priority:1;index:idx_type_relation,priority:1;index:idx_direct,priority:1"`
	ObjectID        string    `gorm:"size:255;uniqueIndex:ux_tuple,priority:2;index:idx_object,priority:2;index:idx_direct,priority:2"`
	Relation        string    `gorm:"size:64;uniqueIndex:ux_tuple,priority:3;index:idx_type_relation,priority:2;index:idx_direct,priority:3"`
	SubjectType     string    `gorm:"size:64;uniqueIndex:ux_tuple,priority:4;index:idx_subject,priority:1;index:idx_direct,priority:4"`
	SubjectID       string    `gorm:"size:255;uniqueIndex:ux_tuple,priority:5;index:idx_subject,priority:2;index:idx_direct,priority:5"`
	SubjectRelation string    `gorm:"size:64;uniqueIndex:ux_tuple,priority:6"`
	CreatedAt       time.Time `gorm:"autoCreateTime"`
}

// TableName returns the table name for GORM.
func (gormRelationTuple) TableName() string {
	return "relation_tuples"
}

func toTuple(gt *gormRelationTuple) permissions.Tuple {
	return permissions.Tuple{
		Object: permissions.Object{
			Type: gt.ObjectType,
			ID:   gt.ObjectID,
		},
		Relation: gt.Relation,
		Subject: permissions.Subject{
			Type:     gt.SubjectType,
			ID:       gt.SubjectID,
			Relation: gt.SubjectRelation,
		},
	}
}

func fromTuple(t permissions.Tuple, id string) *gormRelationTuple {
	return &gormRelationTuple{
		ID:              id,
		ObjectType:      t.Object.Type,
		ObjectID:        t.Object.ID,
		Relation:        t.Relation,
		SubjectType:     t.Subject.Type,
		SubjectID:       t.Subject.ID,
		SubjectRelation: t.Subject.Relation,
	}
}

// gormAuditEvent is the stored form of an audit event.
type gormAuditEvent struct {
	ID           string    `gorm:"primaryKey;size:36"`
	Type         string    `gorm:"size:64;index"`
	ActorID      string    `gorm:"size:255;index"`
	Status       string    `gorm:"size:16"`
	Message      string    `gorm:"size:1024"`
	ResourceType string    `gorm:"size:64;index:idx_audit_resource,priority:1"`
	ResourceID   string    `gorm:"size:255;index:idx_audit_resource,priority:2"`
	Metadata     []byte
	CreatedAt    time.Time `gorm:"autoCreateTime;index"`
}

// TableName returns the table name for GORM.
func (gormAuditEvent) TableName() string {
	return "audit_events"
}
