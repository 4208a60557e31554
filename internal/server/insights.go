package server

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/mohammad-safakhou/brandlens/internal/insight"
)

// InsightsHandler exposes on-demand aggregation.
type InsightsHandler struct {
	Aggregator Aggregator
}

func (h *InsightsHandler) Register(g *echo.Group) {
	g.GET("/insights", h.aggregate)
}

// aggregate runs one fan-out for brand and domain. Provider failures never
// change the status; only a missing identifier yields 400.
func (h *InsightsHandler) aggregate(c echo.Context) error {
	req := insight.Request{Brand: c.QueryParam("brand"), Domain: c.QueryParam("domain")}
	report, err := h.Aggregator.Aggregate(c.Request().Context(), req)
	if err != nil {
		if errors.Is(err, insight.ErrRequestInvalid) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, report)
}
