package server

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/charlabot/charla/internal/scheduler"
)

type TasksHandler struct {
	Scheduler *scheduler.Scheduler
}

func (h *TasksHandler) Register(g *echo.Group, secret []byte) {
	g.Use(func(next echo.HandlerFunc) echo.HandlerFunc { return withAuth(next, secret) })
	g.GET("", h.list)
	g.POST("", h.create)
	g.DELETE("/:id", h.cancel)
}

func (h *TasksHandler) list(c echo.Context) error {
	userID := c.Get("user_id").(string)
	tasks, err := h.Scheduler.List(c.Request().Context(), userID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, tasks)
}

func (h *TasksHandler) create(c echo.Context) error {
	userID := c.Get("user_id").(string)
	var req CreateTaskRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	when, err := time.Parse(time.RFC3339, req.ScheduledTime)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "scheduled_time must be RFC 3339")
	}
	task, err := h.Scheduler.Create(c.Request().Context(), userID, req.Description, when)
	switch {
	case errors.Is(err, scheduler.ErrEmptyDescription), errors.Is(err, scheduler.ErrInvalidSchedule):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case err != nil:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusCreated, task)
}

func (h *TasksHandler) cancel(c echo.Context) error {
	userID := c.Get("user_id").(string)
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid task id")
	}
	switch err := h.Scheduler.Cancel(c.Request().Context(), id, userID); {
	case errors.Is(err, scheduler.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "task not found")
	case err != nil:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusOK)
}
