package permissions

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/waddlechat/permafrost/audit"
)

// MetricsRecorder receives timing and outcome data for checks and tuple
// mutations. telemetry.Provider implements it; a nil recorder disables
// metrics.
type MetricsRecorder interface {
	RecordCheck(ctx context.Context, allowed, cached bool, elapsed time.Duration)
	RecordTupleWrite(ctx context.Context)
}

// Service is the high-level API other subsystems call: tuple management
// plus permission checks, with automatic cache invalidation on writes
// and asynchronous audit logging.
//
// The chat-room affiliation resolver and the HTTP route handlers
// consume CheckPermission; callers wanting the diagnostic reason use
// Check directly.
type Service struct {
	store   TupleStore
	checker *Checker
	audits  audit.Store
	metrics MetricsRecorder
	tracer  trace.Tracer
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithAuditStore enables asynchronous audit logging of decisions and
// tuple mutations.
func WithAuditStore(store audit.Store) ServiceOption {
	return func(s *Service) {
		s.audits = store
	}
}

// WithMetrics enables check and tuple-write metrics.
func WithMetrics(recorder MetricsRecorder) ServiceOption {
	return func(s *Service) {
		s.metrics = recorder
	}
}

// WithTracer enables a span per check, e.g. telemetry.Provider.Tracer().
func WithTracer(tracer trace.Tracer) ServiceOption {
	return func(s *Service) {
		s.tracer = tracer
	}
}

// NewService creates a Service over a store and a configured checker.
func NewService(store TupleStore, checker *Checker, opts ...ServiceOption) *Service {
	s := &Service{store: store, checker: checker}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Check evaluates a full CheckRequest and returns the verdict with its
// diagnostic reason.
func (s *Service) Check(ctx context.Context, req CheckRequest) (CheckResponse, error) {
	var span trace.Span
	if s.tracer != nil {
		ctx, span = s.tracer.Start(ctx, "permissions.Check",
			trace.WithAttributes(
				attribute.String("permissions.subject", req.Subject.String()),
				attribute.String("permissions.permission", req.Permission),
				attribute.String("permissions.object", req.Object.String()),
			))
		defer span.End()
	}

	start := time.Now()
	resp, err := s.checker.Check(ctx, req)

	if span != nil {
		if err != nil {
			span.RecordError(err)
		} else {
			span.SetAttributes(attribute.Bool("permissions.allowed", resp.Allowed))
		}
	}
	if s.metrics != nil {
		s.metrics.RecordCheck(ctx, resp.Allowed, resp.Reason == "cached", time.Since(start))
	}
	s.auditCheck(req, resp, err)

	return resp, err
}

// CheckPermission is the simplified boolean interface: resource and
// subject are colon-delimited "type:id" strings (the subject may carry
// "#relation"), action is the permission name.
func (s *Service) CheckPermission(ctx context.Context, resource, action, subject string) (bool, error) {
	obj, err := ParseObject(resource)
	if err != nil {
		return false, fmt.Errorf("permissions: resource %q: %w", resource, err)
	}
	sub, err := ParseSubject(subject)
	if err != nil {
		return false, fmt.Errorf("permissions: subject %q: %w", subject, err)
	}

	resp, err := s.Check(ctx, CheckRequest{Subject: sub, Permission: action, Object: obj})
	if err != nil {
		return false, err
	}
	return resp.Allowed, nil
}

// RequirePermission returns an error when the subject lacks the
// permission. Denial and check failure remain distinct outcomes.
func (s *Service) RequirePermission(ctx context.Context, req CheckRequest) error {
	resp, err := s.Check(ctx, req)
	if err != nil {
		return err
	}
	if !resp.Allowed {
		return fmt.Errorf("permissions: %s does not have %s on %s",
			req.Subject, req.Permission, req.Object)
	}
	return nil
}

// Grant writes a tuple with a concrete subject and invalidates cached
// verdicts.
func (s *Service) Grant(ctx context.Context, subjectType, subjectID, relation, objectType, objectID string) error {
	return s.write(ctx, NewTuple(objectType, objectID, relation, subjectType, subjectID))
}

// GrantUserset writes a tuple whose subject is a userset, e.g. "all
// members of waddle:penguin-hq are viewers of channel:general".
func (s *Service) GrantUserset(ctx context.Context, subjectType, subjectID, subjectRelation, relation, objectType, objectID string) error {
	return s.write(ctx, NewUsersetTuple(objectType, objectID, relation, subjectType, subjectID, subjectRelation))
}

// WriteTuple writes an already-constructed tuple.
func (s *Service) WriteTuple(ctx context.Context, tuple Tuple) error {
	return s.write(ctx, tuple)
}

func (s *Service) write(ctx context.Context, tuple Tuple) error {
	if err := tuple.Validate(); err != nil {
		return err
	}
	if err := s.store.Write(ctx, tuple); err != nil {
		return err
	}
	s.checker.ClearCache()
	if s.metrics != nil {
		s.metrics.RecordTupleWrite(ctx)
	}
	s.auditTuple(audit.EventTupleWrite, tuple)
	return nil
}

// Revoke deletes a tuple with a concrete subject and invalidates cached
// verdicts.
func (s *Service) Revoke(ctx context.Context, subjectType, subjectID, relation, objectType, objectID string) error {
	return s.deleteTuple(ctx, NewTuple(objectType, objectID, relation, subjectType, subjectID))
}

// RevokeUserset deletes a userset tuple.
func (s *Service) RevokeUserset(ctx context.Context, subjectType, subjectID, subjectRelation, relation, objectType, objectID string) error {
	return s.deleteTuple(ctx, NewUsersetTuple(objectType, objectID, relation, subjectType, subjectID, subjectRelation))
}

// DeleteTuple deletes an already-constructed tuple.
func (s *Service) DeleteTuple(ctx context.Context, tuple Tuple) error {
	return s.deleteTuple(ctx, tuple)
}

func (s *Service) deleteTuple(ctx context.Context, tuple Tuple) error {
	if err := s.store.Delete(ctx, tuple.Object, tuple.Relation, tuple.Subject); err != nil {
		return err
	}
	s.checker.ClearCache()
	s.auditTuple(audit.EventTupleDelete, tuple)
	return nil
}

// SetParent links a child object to its parent via the "parent"
// relation, the edge that arrow inheritance follows.
func (s *Service) SetParent(ctx context.Context, parentType, parentID, childType, childID string) error {
	return s.write(ctx, Tuple{
		Object:   Object{Type: childType, ID: childID},
		Relation: RelationParent,
		Subject:  Subject{Type: parentType, ID: parentID},
	})
}

// GetParent returns the parent of an object, or nil when none is set.
func (s *Service) GetParent(ctx context.Context, childType, childID string) (*Object, error) {
	tuples, err := s.store.TuplesForObject(ctx, Object{Type: childType, ID: childID}, RelationParent)
	if err != nil {
		return nil, err
	}
	if len(tuples) == 0 {
		return nil, nil
	}
	parent := tuples[0].Subject.Object()
	return &parent, nil
}

// ListSubjects returns all subjects holding relation on the object.
func (s *Service) ListSubjects(ctx context.Context, objectType, objectID, relation string) ([]Subject, error) {
	return s.store.ListSubjects(ctx, Object{Type: objectType, ID: objectID}, relation)
}

// ListObjects returns the distinct objects of a type on which the
// subject directly holds the relation. Reverse lookup; computed
// permissions are not expanded.
func (s *Service) ListObjects(ctx context.Context, subjectType, subjectID, relation, objectType string) ([]Object, error) {
	tuples, err := s.store.ListTuples(ctx, TupleFilter{
		SubjectType: subjectType,
		SubjectID:   subjectID,
		Relation:    relation,
		ObjectType:  objectType,
	})
	if err != nil {
		return nil, err
	}

	seen := make(map[Object]bool, len(tuples))
	result := make([]Object, 0, len(tuples))
	for _, t := range tuples {
		if seen[t.Object] {
			continue
		}
		seen[t.Object] = true
		result = append(result, t.Object)
	}
	return result, nil
}

// InvalidateObject drops cached verdicts touching the object. Coarse:
// clears the entire cache.
func (s *Service) InvalidateObject(object Object) {
	s.checker.InvalidateObject(object)

	if s.audits != nil {
		go s.audits.SaveEvent(context.Background(), &audit.Event{
			Type:         audit.EventCacheClear,
			Status:       "success",
			Message:      "cache cleared for " + object.String(),
			ResourceType: object.Type,
			ResourceID:   object.ID,
			CreatedAt:    time.Now(),
		})
	}
}

// ClearCache drops all cached verdicts.
func (s *Service) ClearCache() {
	s.checker.ClearCache()
}

// auditCheck records a decision asynchronously so logging never blocks
// the decision path.
func (s *Service) auditCheck(req CheckRequest, resp CheckResponse, err error) {
	if s.audits == nil {
		return
	}

	status := audit.StatusDenied
	if resp.Allowed {
		status = audit.StatusAllowed
	}
	if err != nil {
		status = audit.StatusError
	}

	meta, _ := json.Marshal(map[string]any{
		"permission": req.Permission,
		"reason":     resp.Reason,
	})

	go s.audits.SaveEvent(context.Background(), &audit.Event{
		Type:         audit.EventCheck,
		ActorID:      req.Subject.String(),
		Status:       status,
		Message:      "check " + req.Permission + " on " + req.Object.String(),
		ResourceType: req.Object.Type,
		ResourceID:   req.Object.ID,
		Metadata:     meta,
		CreatedAt:    time.Now(),
	})
}

func (s *Service) auditTuple(eventType string, tuple Tuple) {
	if s.audits == nil {
		return
	}

	go s.audits.SaveEvent(context.Background(), &audit.Event{
		Type:         eventType,
		ActorID:      tuple.Subject.String(),
		Status:       "success",
		Message:      tuple.String(),
		ResourceType: tuple.Object.Type,
		ResourceID:   tuple.Object.ID,
		CreatedAt:    time.Now(),
	})
}
