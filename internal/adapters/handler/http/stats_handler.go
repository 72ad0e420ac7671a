package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/comitanigiacomo/kanso-habits/internal/core/calendar"
	"github.com/comitanigiacomo/kanso-habits/internal/core/services"
)

const (
	minHeatmapYear = 1970
	maxHeatmapYear = 9999
)

type StatsHandler struct {
	svc *services.StatsService
}

func NewStatsHandler(svc *services.StatsService) *StatsHandler {
	return &StatsHandler{svc: svc}
}

func (h *StatsHandler) RegisterRoutes(r *gin.RouterGroup) {
	stats := r.Group("/stats")
	{
		stats.GET("/month/:month", h.GetMonthSummary)
		stats.GET("/heatmap/:year", h.GetYearHeatmap)
	}
}

// GetMonthSummary godoc
// @Summary   Per-habit progress, daily completion and streak for a month
// @Tags      stats
// @Security  BearerAuth
// @Produce   json
// @Param     month path string true "YYYY-MM"
// @Success   200 {object} progress.Summary
// @Failure   400 {object} errorResponse
// @Router    /stats/month/{month} [get]
func (h *StatsHandler) GetMonthSummary(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	key, err := calendar.ParseMonth(c.Param("month"))
	if err != nil {
		badRequest(c, err)
		return
	}

	summary, err := h.svc.MonthSummary(c.Request.Context(), userID, key)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, summary)
}

// GetYearHeatmap godoc
// @Summary   Contribution heatmap for a year
// @Tags      stats
// @Security  BearerAuth
// @Produce   json
// @Param     year path int true "year"
// @Success   200 {object} services.YearHeatmap
// @Failure   400 {object} errorResponse
// @Router    /stats/heatmap/{year} [get]
func (h *StatsHandler) GetYearHeatmap(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	year, err := strconv.Atoi(c.Param("year"))
	if err != nil || year < minHeatmapYear || year > maxHeatmapYear {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid year"})
		return
	}

	heatmap, err := h.svc.YearHeatmap(c.Request.Context(), userID, year)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, heatmap)
}
