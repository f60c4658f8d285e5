package pgorm

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/waddlechat/permafrost/permissions"
)

// TupleRepository implements permissions.TupleStore on a relational
// database through GORM.
type TupleRepository struct {
	db *gorm.DB
}

// NewTupleRepository creates a tuple repository over an open gorm.DB.
func NewTupleRepository(db *gorm.DB) *TupleRepository {
	return &TupleRepository{db: db}
}

// AutoMigrate creates the tuple table and its indexes.
func (r *TupleRepository) AutoMigrate() error {
	return r.db.AutoMigrate(&gormRelationTuple{})
}

// DB exposes the underlying handle for health checks and composition.
func (r *TupleRepository) DB() *gorm.DB {
	return r.db
}

// Write upserts a tuple. The unique composite index makes re-writing an
// existing 6-tuple a no-op rather than a duplicate insert.
func (r *TupleRepository) Write(ctx context.Context, tuple permissions.Tuple) error {
	if err := tuple.Validate(); err != nil {
		return err
	}
	gt := fromTuple(tuple, uuid.NewString())

	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "object_type"}, {Name: "object_id"}, {Name: "relation"},
			{Name: "subject_type"}, {Name: "subject_id"}, {Name: "subject_relation"},
		},
		DoNothing: true,
	}).Create(gt).Error
}

// WriteBatch upserts multiple tuples in one transaction.
func (r *TupleRepository) WriteBatch(ctx context.Context, tuples []permissions.Tuple) error {
	if len(tuples) == 0 {
		return nil
	}
	for _, t := range tuples {
		if err := t.Validate(); err != nil {
			return err
		}
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, t := range tuples {
			gt := fromTuple(t, uuid.NewString())
			if err := tx.Clauses(clause.OnConflict{
				Columns: []clause.Column{
					{Name: "object_type"}, {Name: "object_id"}, {Name: "relation"},
					{Name: "subject_type"}, {Name: "subject_id"}, {Name: "subject_relation"},
				},
				DoNothing: true,
			}).Create(gt).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// Exists checks for a literal tuple match via the direct-check index.
func (r *TupleRepository) Exists(ctx context.Context, object permissions.Object, relation string, subject permissions.Subject) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&gormRelationTuple{}).
		Where("object_type = ? AND object_id = ? AND relation = ? AND subject_type = ? AND subject_id = ? AND subject_relation = ?",
			object.Type, object.ID, relation, subject.Type, subject.ID, subject.Relation).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// ListSubjects returns every subject holding relation on object.
func (r *TupleRepository) ListSubjects(ctx context.Context, object permissions.Object, relation string) ([]permissions.Subject, error) {
	var rows []gormRelationTuple
	err := r.db.WithContext(ctx).
		Where("object_type = ? AND object_id = ? AND relation = ?", object.Type, object.ID, relation).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	subjects := make([]permissions.Subject, len(rows))
	for i, row := range rows {
		subjects[i] = permissions.Subject{
			Type:     row.SubjectType,
			ID:       row.SubjectID,
			Relation: row.SubjectRelation,
		}
	}
	return subjects, nil
}

// TuplesForObject returns tuples by object, optionally by relation.
func (r *TupleRepository) TuplesForObject(ctx context.Context, object permissions.Object, relation string) ([]permissions.Tuple, error) {
	query := r.db.WithContext(ctx).
		Where("object_type = ? AND object_id = ?", object.Type, object.ID)
	if relation != "" {
		query = query.Where("relation = ?", relation)
	}

	var rows []gormRelationTuple
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}

	tuples := make([]permissions.Tuple, len(rows))
	for i := range rows {
		tuples[i] = toTuple(&rows[i])
	}
	return tuples, nil
}

// ListTuples returns all tuples matching the filter.
func (r *TupleRepository) ListTuples(ctx context.Context, filter permissions.TupleFilter) ([]permissions.Tuple, error) {
	var rows []gormRelationTuple
	if err := applyFilter(r.db.WithContext(ctx), filter).Find(&rows).Error; err != nil {
		return nil, err
	}

	tuples := make([]permissions.Tuple, len(rows))
	for i := range rows {
		tuples[i] = toTuple(&rows[i])
	}
	return tuples, nil
}

// Delete removes a tuple by its 6-tuple identity.
func (r *TupleRepository) Delete(ctx context.Context, object permissions.Object, relation string, subject permissions.Subject) error {
	return r.db.WithContext(ctx).
		Where("object_type = ? AND object_id = ? AND relation = ? AND subject_type = ? AND subject_id = ? AND subject_relation = ?",
			object.Type, object.ID, relation, subject.Type, subject.ID, subject.Relation).
		Delete(&gormRelationTuple{}).Error
}

// DeleteByFilter removes all tuples matching the filter. An empty
// filter is rejected with ErrEmptyFilter.
func (r *TupleRepository) DeleteByFilter(ctx context.Context, filter permissions.TupleFilter) error {
	if filter.IsZero() {
		return permissions.ErrEmptyFilter
	}
	return applyFilter(r.db.WithContext(ctx), filter).Delete(&gormRelationTuple{}).Error
}

func applyFilter(query *gorm.DB, filter permissions.TupleFilter) *gorm.DB {
	if filter.ObjectType != "" {
		query = query.Where("object_type = ?", filter.ObjectType)
	}
	if filter.ObjectID != "" {
		query = query.Where("object_id = ?", filter.ObjectID)
	}
	if filter.Relation != "" {
		query = query.Where("relation = ?", filter.Relation)
	}
	if filter.SubjectType != "" {
		query = query.Where("subject_type = ?", filter.SubjectType)
	}
	if filter.SubjectID != "" {
		query = query.Where("subject_id = ?", filter.SubjectID)
	}
	if filter.SubjectRelation != "" {
		query = query.Where("subject_relation = ?", filter.SubjectRelation)
	}
	return query
}

// Compile-time interface check
var _ permissions.TupleStore = (*TupleRepository)(nil)
