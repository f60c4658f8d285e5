package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/waddlechat/permafrost/permissions"
)

func setupAPI(t *testing.T) (*echo.Echo, *permissions.MemoryStore) {
	t.Helper()

	store := permissions.NewMemoryStore()
	checker, err := permissions.NewChecker(store, permissions.WithSchemas(permissions.DefaultSchemas()...))
	if err != nil {
		t.Fatalf("checker: %v", err)
	}
	service := permissions.NewService(store, checker)

	e := echo.New()
	g := e.Group("/api/v1")
	NewHandler(service).RegisterRoutes(g)
	return e, store
}

func postJSON(e *echo.Echo, method, path string, body any) *httptest.ResponseRecorder {
	raw, _ := json.Marshal(body)
	req := httptest.NewRequest(method, path, bytes.NewBuffer(raw))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestAPITupleAndCheck(t *testing.T) {
	e, _ := setupAPI(t)

	// 1. Write a tuple
	rec := postJSON(e, http.MethodPost, "/api/v1/tuples", map[string]string{
		"object":   "waddle:test",
		"relation": "owner",
		"subject":  "user:alice",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("write failed with code %d: %s", rec.Code, rec.Body.String())
	}

	// 2. Check it
	rec = postJSON(e, http.MethodPost, "/api/v1/check", map[string]string{
		"subject":    "user:alice",
		"permission": "owner",
		"object":     "waddle:test",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("check failed with code %d: %s", rec.Code, rec.Body.String())
	}

	var verdict permissions.CheckResponse
	json.Unmarshal(rec.Body.Bytes(), &verdict)
	if !verdict.Allowed {
		t.Error("alice should be owner")
	}
	if verdict.Reason != "direct:owner" {
		t.Errorf("unexpected reason %q", verdict.Reason)
	}

	// 3. List subjects
	req := httptest.NewRequest(http.MethodGet, "/api/v1/objects/waddle/test/subjects?relation=owner", nil)
	listRec := httptest.NewRecorder()
	e.ServeHTTP(listRec, req)
	if listRec.Code != http.StatusOK {
		t.Fatalf("list failed with code %d: %s", listRec.Code, listRec.Body.String())
	}
	var listing struct {
		Subjects []string `json:"subjects"`
	}
	json.Unmarshal(listRec.Body.Bytes(), &listing)
	if len(listing.Subjects) != 1 || listing.Subjects[0] != "user:alice" {
		t.Errorf("unexpected subjects %v", listing.Subjects)
	}

	// 4. Delete and re-check
	rec = postJSON(e, http.MethodDelete, "/api/v1/tuples", map[string]string{
		"object":   "waddle:test",
		"relation": "owner",
		"subject":  "user:alice",
	})
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete failed with code %d: %s", rec.Code, rec.Body.String())
	}

	rec = postJSON(e, http.MethodPost, "/api/v1/check", map[string]string{
		"subject":    "user:alice",
		"permission": "owner",
		"object":     "waddle:test",
	})
	json.Unmarshal(rec.Body.Bytes(), &verdict)
	if verdict.Allowed {
		t.Error("verdict should be denied after delete")
	}
}

func TestAPIValidation(t *testing.T) {
	e, _ := setupAPI(t)

	// malformed object reference
	rec := postJSON(e, http.MethodPost, "/api/v1/check", map[string]string{
		"subject":    "user:alice",
		"permission": "owner",
		"object":     "nocolon",
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for malformed object, got %d", rec.Code)
	}

	// user subjects must not be usersets
	rec = postJSON(e, http.MethodPost, "/api/v1/tuples", map[string]string{
		"object":   "channel:general",
		"relation": "viewer",
		"subject":  "user:alice#member",
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for user userset, got %d", rec.Code)
	}

	// missing relation on listing
	req := httptest.NewRequest(http.MethodGet, "/api/v1/objects/waddle/test/subjects", nil)
	listRec := httptest.NewRecorder()
	e.ServeHTTP(listRec, req)
	if listRec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for missing relation, got %d", listRec.Code)
	}
}

func TestAPICacheInvalidate(t *testing.T) {
	e, store := setupAPI(t)
	ctx := context.Background()

	// prime a denied verdict
	rec := postJSON(e, http.MethodPost, "/api/v1/check", map[string]string{
		"subject":    "user:alice",
		"permission": "owner",
		"object":     "waddle:test",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("check failed: %s", rec.Body.String())
	}

	// write behind the service's back: the cached denial goes stale
	if err := store.Write(ctx, permissions.NewTuple(permissions.TypeWaddle, "test", "owner", permissions.TypeUser, "alice")); err != nil {
		t.Fatalf("raw write: %v", err)
	}

	rec = postJSON(e, http.MethodPost, "/api/v1/check", map[string]string{
		"subject":    "user:alice",
		"permission": "owner",
		"object":     "waddle:test",
	})
	var stale permissions.CheckResponse
	json.Unmarshal(rec.Body.Bytes(), &stale)
	if stale.Allowed {
		t.Fatal("expected stale cached denial before invalidation")
	}

	rec = postJSON(e, http.MethodPost, "/api/v1/cache/invalidate", map[string]string{
		"object": "waddle:test",
	})
	if rec.Code != http.StatusNoContent {
		t.Fatalf("invalidate failed with code %d", rec.Code)
	}

	rec = postJSON(e, http.MethodPost, "/api/v1/check", map[string]string{
		"subject":    "user:alice",
		"permission": "owner",
		"object":     "waddle:test",
	})
	var verdict permissions.CheckResponse
	json.Unmarshal(rec.Body.Bytes(), &verdict)
	if !verdict.Allowed {
		t.Error("fresh check after invalidation should allow")
	}
}
