package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/comitanigiacomo/kanso-habits/internal/core/calendar"
	"github.com/comitanigiacomo/kanso-habits/internal/core/domain"
	"github.com/comitanigiacomo/kanso-habits/internal/core/services"
)

type ChecksHandler struct {
	svc *services.CompletionService
}

func NewChecksHandler(svc *services.CompletionService) *ChecksHandler {
	return &ChecksHandler{svc: svc}
}

type markRequest struct {
	Done *bool `json:"done" binding:"required"`
}

type monthChecksResponse struct {
	Month  string             `json:"month"`
	Checks domain.MonthChecks `json:"checks"`
	// Completed lists each habit's marked days in ascending order.
	Completed map[string][]int `json:"completed"`
}

type markResponse struct {
	Month   string `json:"month"`
	HabitID string `json:"habit_id"`
	Day     int    `json:"day"`
	Done    bool   `json:"done"`
}

func (h *ChecksHandler) RegisterRoutes(r *gin.RouterGroup) {
	checks := r.Group("/checks")
	{
		checks.GET("/:month", h.GetMonth)
		checks.PUT("/:month/:habitID/:day", h.Mark)
		checks.POST("/:month/:habitID/:day/toggle", h.Toggle)
	}
}

// markTarget parses the month and day path parameters shared by Mark and Toggle.
func markTarget(c *gin.Context) (calendar.MonthKey, int, bool) {
	key, err := calendar.ParseMonth(c.Param("month"))
	if err != nil {
		badRequest(c, err)
		return calendar.MonthKey{}, 0, false
	}

	day, err := strconv.Atoi(c.Param("day"))
	if err != nil {
		badRequest(c, domain.ErrInvalidDay)
		return calendar.MonthKey{}, 0, false
	}
	return key, day, true
}

// GetMonth godoc
// @Summary   Sparse marks of one month
// @Tags      checks
// @Security  BearerAuth
// @Produce   json
// @Param     month path string true "YYYY-MM"
// @Success   200 {object} monthChecksResponse
// @Failure   400 {object} errorResponse
// @Router    /checks/{month} [get]
func (h *ChecksHandler) GetMonth(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	key, err := calendar.ParseMonth(c.Param("month"))
	if err != nil {
		badRequest(c, err)
		return
	}

	checks, err := h.svc.GetMonth(c.Request.Context(), userID, key)
	if err != nil {
		writeError(c, err)
		return
	}
	if checks == nil {
		checks = domain.MonthChecks{}
	}

	completed := make(map[string][]int, len(checks))
	for habitID, row := range checks {
		if days := row.CompletedDays(); len(days) > 0 {
			completed[habitID] = days
		}
	}

	c.JSON(http.StatusOK, monthChecksResponse{
		Month:     c.Param("month"),
		Checks:    checks,
		Completed: completed,
	})
}

// Mark godoc
// @Summary   Set or clear one day
// @Tags      checks
// @Security  BearerAuth
// @Accept    json
// @Produce   json
// @Param     month   path string true "YYYY-MM"
// @Param     habitID path string true "habit id"
// @Param     day     path int    true "day of month"
// @Param     body    body markRequest true "state"
// @Success   200 {object} markResponse
// @Failure   404 {object} errorResponse
// @Failure   422 {object} errorResponse
// @Router    /checks/{month}/{habitID}/{day} [put]
func (h *ChecksHandler) Mark(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	key, day, ok := markTarget(c)
	if !ok {
		return
	}

	var req markRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	err := h.svc.Mark(c.Request.Context(), services.MarkInput{
		UserID:  userID,
		HabitID: c.Param("habitID"),
		Month:   key,
		Day:     day,
		Done:    *req.Done,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, markResponse{
		Month:   c.Param("month"),
		HabitID: c.Param("habitID"),
		Day:     day,
		Done:    *req.Done,
	})
}

// Toggle godoc
// @Summary   Flip one day
// @Tags      checks
// @Security  BearerAuth
// @Produce   json
// @Param     month   path string true "YYYY-MM"
// @Param     habitID path string true "habit id"
// @Param     day     path int    true "day of month"
// @Success   200 {object} markResponse
// @Failure   422 {object} errorResponse
// @Router    /checks/{month}/{habitID}/{day}/toggle [post]
func (h *ChecksHandler) Toggle(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	key, day, ok := markTarget(c)
	if !ok {
		return
	}

	done, err := h.svc.Toggle(c.Request.Context(), services.ToggleInput{
		UserID:  userID,
		HabitID: c.Param("habitID"),
		Month:   key,
		Day:     day,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, markResponse{
		Month:   c.Param("month"),
		HabitID: c.Param("habitID"),
		Day:     day,
		Done:    done,
	})
}
