package pgorm

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/waddlechat/permafrost/audit"
)

// AuditRepository implements audit.Store on GORM.
type AuditRepository struct {
	db *gorm.DB
}

// NewAuditRepository creates an audit repository over an open gorm.DB.
func NewAuditRepository(db *gorm.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// AutoMigrate creates the audit table.
func (r *AuditRepository) AutoMigrate() error {
	return r.db.AutoMigrate(&gormAuditEvent{})
}

// SaveEvent persists an event, assigning an ID and timestamp if unset.
func (r *AuditRepository) SaveEvent(ctx context.Context, event *audit.Event) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	return r.db.WithContext(ctx).Create(&gormAuditEvent{
		ID:           event.ID,
		Type:         event.Type,
		ActorID:      event.ActorID,
		Status:       event.Status,
		Message:      event.Message,
		ResourceType: event.ResourceType,
		ResourceID:   event.ResourceID,
		Metadata:     event.Metadata,
		CreatedAt:    event.CreatedAt,
	}).Error
}

// Query returns matching events, newest first.
func (r *AuditRepository) Query(ctx context.Context, filter audit.Filter) ([]audit.Event, error) {
	query := r.db.WithContext(ctx).Model(&gormAuditEvent{}).Order("created_at DESC")

	if filter.ActorID != "" {
		query = query.Where("actor_id = ?", filter.ActorID)
	}
	if len(filter.Types) > 0 {
		query = query.Where("type IN ?", filter.Types)
	}
	if len(filter.Statuses) > 0 {
		query = query.Where("status IN ?", filter.Statuses)
	}
	if filter.ResourceType != "" {
		query = query.Where("resource_type = ?", filter.ResourceType)
	}
	if filter.ResourceID != "" {
		query = query.Where("resource_id = ?", filter.ResourceID)
	}
	if !filter.StartTime.IsZero() {
		query = query.Where("created_at >= ?", filter.StartTime)
	}
	if !filter.EndTime.IsZero() {
		query = query.Where("created_at <= ?", filter.EndTime)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}

	var rows []gormAuditEvent
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}

	events := make([]audit.Event, len(rows))
	for i, row := range rows {
		events[i] = audit.Event{
			ID:           row.ID,
			Type:         row.Type,
			ActorID:      row.ActorID,
			Status:       row.Status,
			Message:      row.Message,
			ResourceType: row.ResourceType,
			ResourceID:   row.ResourceID,
			Metadata:     row.Metadata,
			CreatedAt:    row.CreatedAt,
		}
	}
	return events, nil
}

// Purge deletes events older than the given time.
func (r *AuditRepository) Purge(ctx context.Context, olderThan time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("created_at < ?", olderThan).
		Delete(&gormAuditEvent{})
	return result.RowsAffected, result.Error
}

// Compile-time interface check
var _ audit.Store = (*AuditRepository)(nil)
