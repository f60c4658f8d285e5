// Package api exposes the permissions engine over HTTP for the chat
// platform's route handlers and operational tooling.
package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/waddlechat/permafrost/permissions"
)

// Handler serves the permissions HTTP API.
type Handler struct {
	service *permissions.Service
}

// NewHandler creates a handler over the permissions service.
func NewHandler(service *permissions.Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes mounts the API under the given group.
func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.POST("/check", h.HandleCheck)
	g.POST("/tuples", h.HandleWriteTuple)
	g.DELETE("/tuples", h.HandleDeleteTuple)
	g.GET("/objects/:type/:id/subjects", h.HandleListSubjects)
	g.POST("/cache/invalidate", h.HandleInvalidate)
}

type refTuple struct {
	Object   string `json:"object"`   // "type:id"
	Relation string `json:"relation"` // bare relation name
	Subject  string `json:"subject"`  // "type:id" or "type:id#relation"
}

func (rt refTuple) parse() (permissions.Tuple, error) {
	obj, err := permissions.ParseObject(rt.Object)
	if err != nil {
		return permissions.Tuple{}, err
	}
	sub, err := permissions.ParseSubject(rt.Subject)
	if err != nil {
		return permissions.Tuple{}, err
	}
	return permissions.Tuple{Object: obj, Relation: rt.Relation, Subject: sub}, nil
}

// HandleCheck evaluates a permission check and returns the verdict with
// its diagnostic reason.
func (h *Handler) HandleCheck(c echo.Context) error {
	var body struct {
		Subject    string `json:"subject"`
		Permission string `json:"permission"`
		Object     string `json:"object"`
	}
	if err := c.Bind(&body); err != nil {
		return h.Error(c, http.StatusBadRequest, "invalid request body", err)
	}

	sub, err := permissions.ParseSubject(body.Subject)
	if err != nil {
		return h.Error(c, http.StatusBadRequest, "invalid subject", err)
	}
	obj, err := permissions.ParseObject(body.Object)
	if err != nil {
		return h.Error(c, http.StatusBadRequest, "invalid object", err)
	}

	resp, err := h.service.Check(c.Request().Context(), permissions.CheckRequest{
		Subject:    sub,
		Permission: body.Permission,
		Object:     obj,
	})
	if err != nil {
		if permissions.IsMaxDepth(err) {
			return h.Error(c, http.StatusUnprocessableEntity, "check exceeded max depth", err)
		}
		return h.Error(c, http.StatusInternalServerError, "check failed", err)
	}

	return c.JSON(http.StatusOK, resp)
}

// HandleWriteTuple stores a relationship fact.
func (h *Handler) HandleWriteTuple(c echo.Context) error {
	var body refTuple
	if err := c.Bind(&body); err != nil {
		return h.Error(c, http.StatusBadRequest, "invalid request body", err)
	}

	tuple, err := body.parse()
	if err != nil {
		return h.Error(c, http.StatusBadRequest, "invalid tuple", err)
	}

	if err := h.service.WriteTuple(c.Request().Context(), tuple); err != nil {
		if errors.Is(err, permissions.ErrInvalidTuple) || errors.Is(err, permissions.ErrUserUserset) {
			return h.Error(c, http.StatusBadRequest, "invalid tuple", err)
		}
		return h.Error(c, http.StatusInternalServerError, "write failed", err)
	}

	return c.JSON(http.StatusCreated, map[string]string{"tuple": tuple.String()})
}

// HandleDeleteTuple removes a relationship fact.
func (h *Handler) HandleDeleteTuple(c echo.Context) error {
	var body refTuple
	if err := c.Bind(&body); err != nil {
		return h.Error(c, http.StatusBadRequest, "invalid request body", err)
	}

	tuple, err := body.parse()
	if err != nil {
		return h.Error(c, http.StatusBadRequest, "invalid tuple", err)
	}

	if err := h.service.DeleteTuple(c.Request().Context(), tuple); err != nil {
		return h.Error(c, http.StatusInternalServerError, "delete failed", err)
	}

	return c.NoContent(http.StatusNoContent)
}

// HandleListSubjects returns the subjects holding a relation on an
// object. The relation query parameter is required.
func (h *Handler) HandleListSubjects(c echo.Context) error {
	relation := c.QueryParam("relation")
	if relation == "" {
		return h.Error(c, http.StatusBadRequest, "missing relation query parameter", nil)
	}

	subjects, err := h.service.ListSubjects(c.Request().Context(), c.Param("type"), c.Param("id"), relation)
	if err != nil {
		return h.Error(c, http.StatusInternalServerError, "list failed", err)
	}

	refs := make([]string, len(subjects))
	for i, s := range subjects {
		refs[i] = s.String()
	}
	return c.JSON(http.StatusOK, map[string]any{"subjects": refs})
}

// HandleInvalidate clears cached verdicts. An optional object reference
// scopes the intent, though invalidation is coarse either way.
func (h *Handler) HandleInvalidate(c echo.Context) error {
	var body struct {
		Object string `json:"object"`
	}
	if err := c.Bind(&body); err != nil {
		return h.Error(c, http.StatusBadRequest, "invalid request body", err)
	}

	if body.Object != "" {
		obj, err := permissions.ParseObject(body.Object)
		if err != nil {
			return h.Error(c, http.StatusBadRequest, "invalid object", err)
		}
		h.service.InvalidateObject(obj)
	} else {
		h.service.ClearCache()
	}

	return c.NoContent(http.StatusNoContent)
}

// Error writes a JSON error response.
func (h *Handler) Error(c echo.Context, code int, message string, err error) error {
	body := map[string]string{"error": message}
	if err != nil {
		body["detail"] = err.Error()
	}
	return c.JSON(code, body)
}
