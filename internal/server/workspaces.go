package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorhill/cronexpr"
	"github.com/labstack/echo/v4"
	"github.com/mohammad-safakhou/brandlens/internal/insight"
	"github.com/mohammad-safakhou/brandlens/internal/store"
)

// WorkspaceStore is the slice of *store.Store the workspace routes use.
type WorkspaceStore interface {
	CreateWorkspace(ctx context.Context, ws store.Workspace) (store.Workspace, error)
	GetWorkspace(ctx context.Context, id string) (store.Workspace, bool, error)
	ListWorkspaces(ctx context.Context) ([]store.Workspace, error)
	DeleteWorkspace(ctx context.Context, id string) (bool, error)
	ListFacts(ctx context.Context, workspaceID string, limit int) ([]insight.Fact, error)
}

type WorkspacesHandler struct {
	Store WorkspaceStore
}

func (h *WorkspacesHandler) Register(g *echo.Group) {
	g.GET("", h.list)
	g.POST("", h.create)
	g.GET("/:id", h.get)
	g.DELETE("/:id", h.remove)
	g.GET("/:id/insights", h.facts)
}

type createWorkspaceRequest struct {
	BrandName   string `json:"brandName"`
	Domain      string `json:"domain"`
	RefreshCron string `json:"refreshCron"`
}

func (h *WorkspacesHandler) list(c echo.Context) error {
	items, err := h.Store.ListWorkspaces(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, items)
}

func (h *WorkspacesHandler) create(c echo.Context) error {
	var req createWorkspaceRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if strings.TrimSpace(req.BrandName) == "" || strings.TrimSpace(req.Domain) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "brandName and domain are required")
	}
	if err := ValidateCron(req.RefreshCron); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ws, err := h.Store.CreateWorkspace(c.Request().Context(), store.Workspace{
		BrandName:   req.BrandName,
		Domain:      req.Domain,
		RefreshCron: strings.TrimSpace(req.RefreshCron),
	})
	if errors.Is(err, store.ErrDuplicateBrand) {
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusCreated, ws)
}

func (h *WorkspacesHandler) get(c echo.Context) error {
	ws, found, err := h.Store.GetWorkspace(c.Request().Context(), c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if !found {
		return echo.NewHTTPError(http.StatusNotFound, "workspace not found")
	}
	return c.JSON(http.StatusOK, ws)
}

func (h *WorkspacesHandler) remove(c echo.Context) error {
	ok, err := h.Store.DeleteWorkspace(c.Request().Context(), c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "workspace not found")
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *WorkspacesHandler) facts(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")
	if _, found, err := h.Store.GetWorkspace(ctx, id); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	} else if !found {
		return echo.NewHTTPError(http.StatusNotFound, "workspace not found")
	}
	limit := 0
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be a non-negative integer")
		}
		limit = n
	}
	facts, err := h.Store.ListFacts(ctx, id, limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, facts)
}

// ValidateCron accepts an empty spec (no scheduled refresh) or anything
// cronexpr can parse.
func ValidateCron(spec string) error {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil
	}
	if _, err := cronexpr.Parse(spec); err != nil {
		return errors.New("invalid refreshCron: " + err.Error())
	}
	return nil
}
