package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/comitanigiacomo/kanso-habits/internal/core/calendar"
	"github.com/comitanigiacomo/kanso-habits/internal/core/domain"
	"github.com/comitanigiacomo/kanso-habits/internal/logger"
)

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

var errorStatus = []struct {
	err    error
	status int
}{
	{domain.ErrHabitNameEmpty, http.StatusBadRequest},
	{domain.ErrHabitNameTooLong, http.StatusBadRequest},
	{domain.ErrInvalidPosition, http.StatusBadRequest},
	{domain.ErrInvalidScheduleMode, http.StatusBadRequest},
	{domain.ErrInvalidWeekdays, http.StatusBadRequest},
	{domain.ErrInvalidPreset, http.StatusBadRequest},
	{domain.ErrInvalidDay, http.StatusBadRequest},
	{calendar.ErrInvalidMonth, http.StatusBadRequest},
	{calendar.ErrInvalidMonthKey, http.StatusBadRequest},
	{domain.ErrInvalidEmail, http.StatusBadRequest},
	{domain.ErrPasswordTooShort, http.StatusBadRequest},
	{domain.ErrDisplayNameTooLong, http.StatusBadRequest},
	{domain.ErrInvalidCredentials, http.StatusUnauthorized},
	{domain.ErrUnauthorized, http.StatusUnauthorized},
	{domain.ErrHabitNotFound, http.StatusNotFound},
	{domain.ErrUserNotFound, http.StatusNotFound},
	{domain.ErrHabitConflict, http.StatusConflict},
	{domain.ErrHabitDeleted, http.StatusConflict},
	{domain.ErrEmailAlreadyExists, http.StatusConflict},
	{domain.ErrHabitInactiveOnDay, http.StatusUnprocessableEntity},
}

// writeError maps domain sentinels to status codes. Anything unknown is a 500
// and its details stay in the log.
func writeError(c *gin.Context, err error) {
	for _, m := range errorStatus {
		if errors.Is(err, m.err) {
			resp := errorResponse{Error: m.err.Error()}
			if m.status == http.StatusConflict && errors.Is(err, domain.ErrHabitConflict) {
				resp.Message = "Data has been modified elsewhere. Please sync."
			}
			c.JSON(m.status, resp)
			return
		}
	}

	_ = c.Error(err)
	logger.Error("request failed", "method", c.Request.Method, "path", c.FullPath(), "err", err)
	c.JSON(http.StatusInternalServerError, errorResponse{Error: "internal server error"})
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
}
