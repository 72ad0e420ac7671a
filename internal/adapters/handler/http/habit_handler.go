package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/comitanigiacomo/kanso-habits/internal/adapters/handler/http/middleware"
	"github.com/comitanigiacomo/kanso-habits/internal/core/domain"
	"github.com/comitanigiacomo/kanso-habits/internal/core/services"
)

var errUserContextMissing = errors.New("user context missing")

type HabitHandler struct {
	svc *services.HabitService
}

func NewHabitHandler(svc *services.HabitService) *HabitHandler {
	return &HabitHandler{
		svc: svc,
	}
}

type createHabitRequest struct {
	ID       string              `json:"id" binding:"omitempty,uuid"`
	Name     string              `json:"name" binding:"required"`
	Schedule *domain.ScheduleDoc `json:"schedule"`
}

type renameHabitRequest struct {
	Name    string `json:"name" binding:"required"`
	Version int    `json:"version"`
}

type scheduleRequest struct {
	Schedule domain.ScheduleDoc `json:"schedule"`
	Version  int                `json:"version"`
}

type positionRequest struct {
	Position *int `json:"position" binding:"required"`
	Version  int  `json:"version"`
}

type syncResponse struct {
	Changes   []*domain.Habit `json:"changes"`
	Timestamp time.Time       `json:"timestamp"`
}

func (h *HabitHandler) RegisterRoutes(router *gin.RouterGroup) {
	habits := router.Group("/habits")
	{
		habits.POST("", h.Create)
		habits.GET("", h.List)
		habits.GET("/sync", h.Sync)
		habits.PATCH("/:id", h.Rename)
		habits.PUT("/:id/schedule", h.UpdateSchedule)
		habits.PUT("/:id/position", h.Reorder)
		habits.DELETE("/:id", h.Delete)
	}
}

func requireUser(c *gin.Context) (string, bool) {
	userID, ok := middleware.GetUserID(c)
	if !ok || userID == "" {
		c.JSON(http.StatusInternalServerError, errorResponse{Error: errUserContextMissing.Error()})
		return "", false
	}
	return userID, true
}

// Create godoc
// @Summary   Create a habit
// @Tags      habits
// @Security  BearerAuth
// @Accept    json
// @Produce   json
// @Param     body body createHabitRequest true "habit"
// @Success   201 {object} domain.Habit
// @Failure   400 {object} errorResponse
// @Router    /habits [post]
func (h *HabitHandler) Create(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	var req createHabitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	habit, err := h.svc.Create(c.Request.Context(), services.CreateHabitInput{
		ID:       req.ID,
		UserID:   userID,
		Name:     req.Name,
		Schedule: req.Schedule,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, habit)
}

// List godoc
// @Summary   List the caller's habits in display order
// @Tags      habits
// @Security  BearerAuth
// @Produce   json
// @Success   200 {array} domain.Habit
// @Router    /habits [get]
func (h *HabitHandler) List(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	list, err := h.svc.ListByUserID(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	if list == nil {
		list = []*domain.Habit{}
	}

	c.JSON(http.StatusOK, list)
}

// Sync godoc
// @Summary   Habits changed since last_sync, deletions included
// @Tags      habits
// @Security  BearerAuth
// @Produce   json
// @Param     last_sync query string false "RFC3339 timestamp"
// @Success   200 {object} syncResponse
// @Router    /habits/sync [get]
func (h *HabitHandler) Sync(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	var lastSync time.Time
	if raw := c.Query("last_sync"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid last_sync format, use RFC3339"})
			return
		}
		lastSync = parsed
	}

	// Taken before the read so nothing written meanwhile is skipped next time.
	now := time.Now().UTC()

	deltas, err := h.svc.GetDelta(c.Request.Context(), userID, lastSync)
	if err != nil {
		writeError(c, err)
		return
	}
	if deltas == nil {
		deltas = []*domain.Habit{}
	}

	c.JSON(http.StatusOK, syncResponse{Changes: deltas, Timestamp: now})
}

// Rename godoc
// @Summary   Rename a habit
// @Tags      habits
// @Security  BearerAuth
// @Accept    json
// @Produce   json
// @Param     id   path string true "habit id"
// @Param     body body renameHabitRequest true "new name"
// @Success   200 {object} domain.Habit
// @Failure   409 {object} errorResponse
// @Router    /habits/{id} [patch]
func (h *HabitHandler) Rename(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	var req renameHabitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	habit, err := h.svc.Rename(c.Request.Context(), services.RenameHabitInput{
		ID:      c.Param("id"),
		UserID:  userID,
		Name:    req.Name,
		Version: req.Version,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, habit)
}

// UpdateSchedule godoc
// @Summary   Replace a habit's schedule
// @Tags      habits
// @Security  BearerAuth
// @Accept    json
// @Produce   json
// @Param     id   path string true "habit id"
// @Param     body body scheduleRequest true "schedule"
// @Success   200 {object} domain.Habit
// @Failure   400 {object} errorResponse
// @Router    /habits/{id}/schedule [put]
func (h *HabitHandler) UpdateSchedule(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	var req scheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	habit, err := h.svc.UpdateSchedule(c.Request.Context(), services.UpdateScheduleInput{
		ID:       c.Param("id"),
		UserID:   userID,
		Schedule: req.Schedule,
		Version:  req.Version,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, habit)
}

// Reorder godoc
// @Summary   Move a habit to a new position
// @Tags      habits
// @Security  BearerAuth
// @Accept    json
// @Produce   json
// @Param     id   path string true "habit id"
// @Param     body body positionRequest true "position"
// @Success   200 {object} domain.Habit
// @Router    /habits/{id}/position [put]
func (h *HabitHandler) Reorder(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	var req positionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	habit, err := h.svc.Reorder(c.Request.Context(), services.ReorderHabitInput{
		ID:       c.Param("id"),
		UserID:   userID,
		Position: *req.Position,
		Version:  req.Version,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, habit)
}

// Delete godoc
// @Summary   Soft-delete a habit
// @Tags      habits
// @Security  BearerAuth
// @Param     id path string true "habit id"
// @Success   204
// @Failure   404 {object} errorResponse
// @Router    /habits/{id} [delete]
func (h *HabitHandler) Delete(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	if err := h.svc.Delete(c.Request.Context(), c.Param("id"), userID); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
