package permissions

import (
	"context"
	"testing"
)

func newTestChecker(t *testing.T, store TupleStore, schemas ...Schema) *Checker {
	t.Helper()
	checker, err := NewChecker(store, WithSchemas(schemas...))
	if err != nil {
		t.Fatalf("NewChecker: %v", err)
	}
	return checker
}

func TestDirectGrant(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	checker := newTestChecker(t, store)

	if err := store.Write(ctx, NewTuple(TypeWaddle, "test", "owner", TypeUser, "alice")); err != nil {
		t.Fatalf("write: %v", err)
	}

	resp, err := checker.Check(ctx, CheckRequest{
		Subject:    NewSubject(TypeUser, "alice"),
		Permission: "owner",
		Object:     NewObject(TypeWaddle, "test"),
	})
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if !resp.Allowed {
		t.Error("alice should be owner of waddle:test")
	}
	if resp.Reason != "direct:owner" {
		t.Errorf("expected reason direct:owner, got %q", resp.Reason)
	}

	resp, err = checker.Check(ctx, CheckRequest{
		Subject:    NewSubject(TypeUser, "bob"),
		Permission: "owner",
		Object:     NewObject(TypeWaddle, "test"),
	})
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if resp.Allowed {
		t.Error("bob should not be owner of waddle:test")
	}
}

func TestUnionSemantics(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	checker := newTestChecker(t, store, Schema{
		Type: TypeWaddle,
		Permissions: map[string]Computed{
			"manage_settings": AnyOf(Direct("owner"), Direct("admin")),
		},
	})

	// carol holds only admin, not owner
	store.Write(ctx, NewTuple(TypeWaddle, "test", "admin", TypeUser, "carol"))

	resp, err := checker.Check(ctx, CheckRequest{
		Subject:    NewSubject(TypeUser, "carol"),
		Permission: "manage_settings",
		Object:     NewObject(TypeWaddle, "test"),
	})
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if !resp.Allowed {
		t.Error("admin should be allowed to manage_settings via union")
	}
	if resp.Reason != "direct:admin" {
		t.Errorf("expected reason direct:admin, got %q", resp.Reason)
	}
}

func TestIntersectionSemantics(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	checker := newTestChecker(t, store, Schema{
		Type: TypeWaddle,
		Permissions: map[string]Computed{
			"transfer_ownership": AllOf(Direct("owner"), Direct("member")),
		},
	})

	store.Write(ctx, NewTuple(TypeWaddle, "test", "owner", TypeUser, "alice"))

	// owner but not member: denied
	resp, err := checker.Check(ctx, CheckRequest{
		Subject:    NewSubject(TypeUser, "alice"),
		Permission: "transfer_ownership",
		Object:     NewObject(TypeWaddle, "test"),
	})
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if resp.Allowed {
		t.Error("intersection should deny owner who is not a member")
	}

	store.Write(ctx, NewTuple(TypeWaddle, "test", "member", TypeUser, "alice"))
	checker.ClearCache()

	resp, err = checker.Check(ctx, CheckRequest{
		Subject:    NewSubject(TypeUser, "alice"),
		Permission: "transfer_ownership",
		Object:     NewObject(TypeWaddle, "test"),
	})
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if !resp.Allowed {
		t.Error("intersection should allow owner who is also a member")
	}
	if resp.Reason != "intersection" {
		t.Errorf("expected reason intersection, got %q", resp.Reason)
	}
}

func TestArrowInheritance(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	checker := newTestChecker(t, store, Schema{
		Type: TypeChannel,
		Permissions: map[string]Computed{
			"moderate": Inherit("parent", "admin"),
		},
	})

	// channel:general --parent--> waddle:test, alice is admin there
	store.Write(ctx, NewUsersetTuple(TypeChannel, "general", "parent", TypeWaddle, "test", "member"))
	store.Write(ctx, NewTuple(TypeWaddle, "test", "admin", TypeUser, "alice"))

	resp, err := checker.Check(ctx, CheckRequest{
		Subject:    NewSubject(TypeUser, "alice"),
		Permission: "moderate",
		Object:     NewObject(TypeChannel, "general"),
	})
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if !resp.Allowed {
		t.Error("alice should moderate channel:general via parent admin")
	}
	if resp.Reason != "arrow:parent->admin" {
		t.Errorf("expected reason arrow:parent->admin, got %q", resp.Reason)
	}

	resp, _ = checker.Check(ctx, CheckRequest{
		Subject:    NewSubject(TypeUser, "mallory"),
		Permission: "moderate",
		Object:     NewObject(TypeChannel, "general"),
	})
	if resp.Allowed {
		t.Error("mallory should not moderate channel:general")
	}
}

func TestArrowSkipsUserSubjects(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	checker := newTestChecker(t, store, Schema{
		Type: TypeChannel,
		Permissions: map[string]Computed{
			"moderate": Inherit("parent", "admin"),
		},
	})

	// A user subject on the parent relation is invalid as a parent
	// object and must be skipped, not traversed.
	store.Write(ctx, NewTuple(TypeChannel, "general", "parent", TypeUser, "alice"))

	resp, err := checker.Check(ctx, CheckRequest{
		Subject:    NewSubject(TypeUser, "alice"),
		Permission: "moderate",
		Object:     NewObject(TypeChannel, "general"),
	})
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if resp.Allowed {
		t.Error("user subject must not act as a parent object")
	}
}

func TestUsersetMembership(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	checker := newTestChecker(t, store)

	// alice is member of waddle:test; channel:general grants viewer to
	// the userset waddle:test#member
	store.Write(ctx, NewTuple(TypeWaddle, "test", "member", TypeUser, "alice"))
	store.Write(ctx, NewUsersetTuple(TypeChannel, "general", "viewer", TypeWaddle, "test", "member"))

	resp, err := checker.Check(ctx, CheckRequest{
		Subject:    NewSubject(TypeUser, "alice"),
		Permission: "viewer",
		Object:     NewObject(TypeChannel, "general"),
	})
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if !resp.Allowed {
		t.Error("alice should be viewer via waddle:test#member")
	}
	if resp.Reason != "userset:waddle:test#member" {
		t.Errorf("expected reason userset:waddle:test#member, got %q", resp.Reason)
	}
}

func TestUsersetExpansionIsSingleHop(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	checker := newTestChecker(t, store)

	// nested userset: alice is member of role:staff, role:staff#member
	// is member of waddle:test, waddle:test#member is viewer of the
	// channel. The expansion step is one hop deep, so alice is NOT
	// resolved transitively; deeper nesting must go through schema
	// composition.
	store.Write(ctx, NewTuple(TypeRole, "staff", "member", TypeUser, "alice"))
	store.Write(ctx, NewUsersetTuple(TypeWaddle, "test", "member", TypeRole, "staff", "member"))
	store.Write(ctx, NewUsersetTuple(TypeChannel, "general", "viewer", TypeWaddle, "test", "member"))

	resp, err := checker.Check(ctx, CheckRequest{
		Subject:    NewSubject(TypeUser, "alice"),
		Permission: "viewer",
		Object:     NewObject(TypeChannel, "general"),
	})
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if resp.Allowed {
		t.Error("nested usersets must not be transitively expanded")
	}
}

func TestCycleSafety(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	checker := newTestChecker(t, store,
		Schema{
			Type: TypeChannel,
			Permissions: map[string]Computed{
				"view": Inherit("parent", "view"),
			},
		},
		Schema{
			Type: TypeWaddle,
			Permissions: map[string]Computed{
				"view": Inherit("parent", "view"),
			},
		},
	)

	// parent cycle: channel:a -> waddle:b -> channel:a
	store.Write(ctx, NewTuple(TypeChannel, "a", "parent", TypeWaddle, "b"))
	store.Write(ctx, NewTuple(TypeWaddle, "b", "parent", TypeChannel, "a"))

	resp, err := checker.Check(ctx, CheckRequest{
		Subject:    NewSubject(TypeUser, "alice"),
		Permission: "view",
		Object:     NewObject(TypeChannel, "a"),
	})
	// Either outcome is acceptable: the cycle breaker denies, or the
	// depth bound trips. It must never hang or overflow the stack.
	if err != nil && !IsMaxDepth(err) {
		t.Fatalf("unexpected error: %v", err)
	}
	if err == nil && resp.Allowed {
		t.Error("cycle must not grant permission")
	}
}

func TestMaxDepthExceeded(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	checker, err := NewChecker(store,
		WithMaxDepth(3),
		WithSchemas(Schema{
			Type: TypeChannel,
			Permissions: map[string]Computed{
				"view": Inherit("parent", "view"),
			},
		}),
	)
	if err != nil {
		t.Fatalf("NewChecker: %v", err)
	}

	// deep chain of distinct channels, longer than the depth bound
	for i := 0; i < 10; i++ {
		store.Write(ctx, Tuple{
			Object:   Object{Type: TypeChannel, ID: string(rune('a' + i))},
			Relation: "parent",
			Subject:  Subject{Type: TypeChannel, ID: string(rune('b' + i))},
		})
	}

	_, err = checker.Check(ctx, CheckRequest{
		Subject:    NewSubject(TypeUser, "alice"),
		Permission: "view",
		Object:     NewObject(TypeChannel, "a"),
	})
	if !IsMaxDepth(err) {
		t.Fatalf("expected MaxDepthError, got %v", err)
	}
}

func TestCacheIdempotence(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	checker := newTestChecker(t, store)

	store.Write(ctx, NewTuple(TypeWaddle, "test", "owner", TypeUser, "alice"))

	req := CheckRequest{
		Subject:    NewSubject(TypeUser, "alice"),
		Permission: "owner",
		Object:     NewObject(TypeWaddle, "test"),
	}

	first, err := checker.Check(ctx, req)
	if err != nil {
		t.Fatalf("first check: %v", err)
	}
	second, err := checker.Check(ctx, req)
	if err != nil {
		t.Fatalf("second check: %v", err)
	}

	if first.Allowed != second.Allowed {
		t.Error("cached verdict differs from computed verdict")
	}
	if second.Reason != "cached" {
		t.Errorf("expected reason cached, got %q", second.Reason)
	}

	// denied verdicts cache too
	deniedReq := CheckRequest{
		Subject:    NewSubject(TypeUser, "bob"),
		Permission: "owner",
		Object:     NewObject(TypeWaddle, "test"),
	}
	checker.Check(ctx, deniedReq)
	resp, _ := checker.Check(ctx, deniedReq)
	if resp.Allowed {
		t.Error("cached denial should stay denied")
	}
	if resp.Reason != "cached" {
		t.Errorf("expected reason cached, got %q", resp.Reason)
	}
}

func TestCacheStalenessUntilCleared(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	checker := newTestChecker(t, store)

	req := CheckRequest{
		Subject:    NewSubject(TypeUser, "alice"),
		Permission: "owner",
		Object:     NewObject(TypeWaddle, "test"),
	}

	// denied verdict goes into the cache
	resp, _ := checker.Check(ctx, req)
	if resp.Allowed {
		t.Fatal("expected initial denial")
	}

	// a raw store write does not invalidate: the stale denial persists
	store.Write(ctx, NewTuple(TypeWaddle, "test", "owner", TypeUser, "alice"))
	resp, _ = checker.Check(ctx, req)
	if resp.Allowed {
		t.Error("verdict should still be the stale cached denial")
	}

	checker.InvalidateObject(NewObject(TypeWaddle, "test"))
	resp, _ = checker.Check(ctx, req)
	if !resp.Allowed {
		t.Error("fresh check after invalidation should allow")
	}
}

func TestDefaultDenyOnAbsence(t *testing.T) {
	ctx := context.Background()
	checker := newTestChecker(t, NewMemoryStore())

	resp, err := checker.Check(ctx, CheckRequest{
		Subject:    NewSubject(TypeUser, "nobody"),
		Permission: "anything",
		Object:     NewObject(TypeChannel, "void"),
	})
	if err != nil {
		t.Fatalf("absence must not be an error: %v", err)
	}
	if resp.Allowed {
		t.Error("absence of tuples and schema must deny")
	}
}

func TestDefaultSchemasChannelConfigure(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	checker := newTestChecker(t, store, DefaultSchemas()...)

	store.Write(ctx, NewTuple(TypeChannel, "general", RelationParent, TypeWaddle, "hq"))
	store.Write(ctx, NewTuple(TypeChannel, "general", RelationManager, TypeUser, "dana"))

	// manager who is not a member of the parent waddle: denied
	resp, err := checker.Check(ctx, CheckRequest{
		Subject:    NewSubject(TypeUser, "dana"),
		Permission: "configure",
		Object:     NewObject(TypeChannel, "general"),
	})
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if resp.Allowed {
		t.Error("manager outside the community must not configure")
	}

	store.Write(ctx, NewTuple(TypeWaddle, "hq", RelationMember, TypeUser, "dana"))
	checker.ClearCache()

	resp, err = checker.Check(ctx, CheckRequest{
		Subject:    NewSubject(TypeUser, "dana"),
		Permission: "configure",
		Object:     NewObject(TypeChannel, "general"),
	})
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if !resp.Allowed {
		t.Error("enrolled manager should configure the channel")
	}
}
