package pgorm

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/waddlechat/permafrost/audit"
	"github.com/waddlechat/permafrost/permissions"
)

func setupRepo(t *testing.T) *TupleRepository {
	t.Helper()
	dbPath := t.TempDir() + "/tuples.db"
	t.Cleanup(func() { os.Remove(dbPath) })

	repo, err := OpenTupleStore("sqlite", dbPath, true)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	return repo
}

func TestRepositoryUpsert(t *testing.T) {
	ctx := context.Background()
	repo := setupRepo(t)

	tuple := permissions.NewTuple(permissions.TypeWaddle, "test", "owner", permissions.TypeUser, "alice")
	if err := repo.Write(ctx, tuple); err != nil {
		t.Fatalf("write: %v", err)
	}
	// second write of the same 6-tuple is a no-op, not a duplicate
	if err := repo.Write(ctx, tuple); err != nil {
		t.Fatalf("rewrite: %v", err)
	}

	subjects, err := repo.ListSubjects(ctx, permissions.NewObject(permissions.TypeWaddle, "test"), "owner")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(subjects) != 1 {
		t.Errorf("expected 1 subject, got %d", len(subjects))
	}

	if err := repo.Write(ctx, permissions.Tuple{}); err == nil {
		t.Error("expected validation error for empty tuple")
	}
}

func TestRepositoryExistsAndDelete(t *testing.T) {
	ctx := context.Background()
	repo := setupRepo(t)

	obj := permissions.NewObject(permissions.TypeChannel, "general")
	userset := permissions.NewUserset(permissions.TypeWaddle, "test", "member")

	repo.Write(ctx, permissions.Tuple{Object: obj, Relation: "viewer", Subject: userset})

	ok, err := repo.Exists(ctx, obj, "viewer", userset)
	if err != nil {
		t.Fatalf("exists: %v", err)
	}
	if !ok {
		t.Error("literal userset tuple should exist")
	}

	// no expansion: a concrete member of the userset does not match
	ok, _ = repo.Exists(ctx, obj, "viewer", permissions.NewSubject(permissions.TypeUser, "alice"))
	if ok {
		t.Error("exists must be a literal match")
	}

	if err := repo.Delete(ctx, obj, "viewer", userset); err != nil {
		t.Fatalf("delete: %v", err)
	}
	ok, _ = repo.Exists(ctx, obj, "viewer", userset)
	if ok {
		t.Error("tuple should be gone after delete")
	}
}

func TestRepositoryQueries(t *testing.T) {
	ctx := context.Background()
	repo := setupRepo(t)

	err := repo.WriteBatch(ctx, []permissions.Tuple{
		permissions.NewTuple(permissions.TypeChannel, "general", "parent", permissions.TypeWaddle, "hq"),
		permissions.NewTuple(permissions.TypeChannel, "general", "viewer", permissions.TypeUser, "alice"),
		permissions.NewTuple(permissions.TypeChannel, "random", "viewer", permissions.TypeUser, "alice"),
	})
	if err != nil {
		t.Fatalf("batch: %v", err)
	}

	parents, err := repo.TuplesForObject(ctx, permissions.NewObject(permissions.TypeChannel, "general"), "parent")
	if err != nil {
		t.Fatalf("tuples for object: %v", err)
	}
	if len(parents) != 1 || parents[0].Subject.Type != permissions.TypeWaddle {
		t.Errorf("unexpected parents %v", parents)
	}

	all, _ := repo.TuplesForObject(ctx, permissions.NewObject(permissions.TypeChannel, "general"), "")
	if len(all) != 2 {
		t.Errorf("expected 2 tuples, got %d", len(all))
	}

	mine, err := repo.ListTuples(ctx, permissions.TupleFilter{
		SubjectType: permissions.TypeUser,
		SubjectID:   "alice",
		Relation:    "viewer",
	})
	if err != nil {
		t.Fatalf("list tuples: %v", err)
	}
	if len(mine) != 2 {
		t.Errorf("expected 2 viewer tuples for alice, got %d", len(mine))
	}

	if err := repo.DeleteByFilter(ctx, permissions.TupleFilter{SubjectID: "alice"}); err != nil {
		t.Fatalf("delete by filter: %v", err)
	}
	left, _ := repo.ListTuples(ctx, permissions.TupleFilter{})
	if len(left) != 1 {
		t.Errorf("expected 1 tuple left, got %d", len(left))
	}

	// an unconstrained filter must not wipe the table
	if err := repo.DeleteByFilter(ctx, permissions.TupleFilter{}); !errors.Is(err, permissions.ErrEmptyFilter) {
		t.Errorf("empty filter delete = %v, want ErrEmptyFilter", err)
	}
	left, _ = repo.ListTuples(ctx, permissions.TupleFilter{})
	if len(left) != 1 {
		t.Errorf("empty filter must not delete, got %d tuples", len(left))
	}
}

func TestRepositoryBacksChecker(t *testing.T) {
	ctx := context.Background()
	repo := setupRepo(t)

	checker, err := permissions.NewChecker(repo, permissions.WithSchemas(permissions.DefaultSchemas()...))
	if err != nil {
		t.Fatalf("checker: %v", err)
	}

	repo.Write(ctx, permissions.NewUsersetTuple(permissions.TypeChannel, "general", "parent", permissions.TypeWaddle, "hq", "member"))
	repo.Write(ctx, permissions.NewTuple(permissions.TypeWaddle, "hq", "admin", permissions.TypeUser, "alice"))

	resp, err := checker.Check(ctx, permissions.CheckRequest{
		Subject:    permissions.NewSubject(permissions.TypeUser, "alice"),
		Permission: "moderate",
		Object:     permissions.NewObject(permissions.TypeChannel, "general"),
	})
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if !resp.Allowed {
		t.Error("arrow inheritance should work against the SQL store")
	}
}

func TestAuditRepository(t *testing.T) {
	ctx := context.Background()
	dbPath := t.TempDir() + "/audit.db"

	db, err := Open("sqlite", dbPath, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	repo := NewAuditRepository(db)
	if err := repo.AutoMigrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	old := &audit.Event{
		Type:      audit.EventCheck,
		ActorID:   "user:alice",
		Status:    audit.StatusAllowed,
		Message:   "check owner on waddle:test",
		CreatedAt: time.Now().Add(-48 * time.Hour),
	}
	recent := &audit.Event{
		Type:    audit.EventTupleWrite,
		ActorID: "user:bob",
		Status:  "success",
		Message: "tuple written",
	}
	if err := repo.SaveEvent(ctx, old); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := repo.SaveEvent(ctx, recent); err != nil {
		t.Fatalf("save: %v", err)
	}

	events, err := repo.Query(ctx, audit.Filter{ActorID: "user:alice"})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(events) != 1 || events[0].Type != audit.EventCheck {
		t.Errorf("unexpected events %v", events)
	}

	removed, err := repo.Purge(ctx, time.Now().Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if removed != 1 {
		t.Errorf("expected 1 purged event, got %d", removed)
	}
}
