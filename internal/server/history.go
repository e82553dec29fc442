package server

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/charlabot/charla/internal/search"
	"github.com/charlabot/charla/internal/store"
)

type HistoryHandler struct {
	Store *store.Store
	Index *search.Index // optional
}

func (h *HistoryHandler) Register(api *echo.Group, secret []byte) {
	mw := func(next echo.HandlerFunc) echo.HandlerFunc { return withAuth(next, secret) }
	api.GET("/history", h.list, mw)
	api.POST("/messages/:id/edit", h.edit, mw)
	api.DELETE("/messages/:id", h.remove, mw)
	api.GET("/search", h.search, mw)
}

func (h *HistoryHandler) list(c echo.Context) error {
	userID := c.Get("user_id").(string)
	turns, err := h.Store.ListTurns(c.Request().Context(), userID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, turns)
}

func (h *HistoryHandler) edit(c echo.Context) error {
	userID := c.Get("user_id").(string)
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid message id")
	}
	var req EditMessageRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Message == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "message required")
	}
	updated, err := h.Store.UpdateTurnMessage(c.Request().Context(), id, userID, req.Message)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if !updated {
		return echo.NewHTTPError(http.StatusNotFound, "message not found")
	}
	return c.NoContent(http.StatusOK)
}

func (h *HistoryHandler) remove(c echo.Context) error {
	userID := c.Get("user_id").(string)
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid message id")
	}
	removed, err := h.Store.DeleteTurn(c.Request().Context(), id, userID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if !removed {
		return echo.NewHTTPError(http.StatusNotFound, "message not found")
	}
	if h.Index != nil {
		_ = h.Index.DeleteTurn(id)
	}
	return c.NoContent(http.StatusOK)
}

func (h *HistoryHandler) search(c echo.Context) error {
	userID := c.Get("user_id").(string)
	q := c.QueryParam("q")
	if q == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "q required")
	}
	if h.Index == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "search not enabled")
	}
	hits, err := h.Index.Search(userID, q, 20)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	out := make([]SearchHitResponse, 0, len(hits))
	for _, hit := range hits {
		out = append(out, SearchHitResponse{TurnID: hit.TurnID, Score: hit.Score})
	}
	return c.JSON(http.StatusOK, out)
}
