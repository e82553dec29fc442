package server

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/charlabot/charla/internal/store"
)

var (
	allowedModels    = map[string]bool{"gpt-3.5-turbo": true, "gpt-4o": true}
	allowedTones     = map[string]bool{"formal": true, "informal": true, "humorístico": true, "técnico": true}
	allowedLanguages = map[string]bool{"auto": true, "es": true, "en": true, "fr": true}
)

// ProfileHandler serves per-user preferences and the achievement list.
type ProfileHandler struct {
	Store *store.Store
}

func (h *ProfileHandler) Register(api *echo.Group, secret []byte) {
	mw := func(next echo.HandlerFunc) echo.HandlerFunc { return withAuth(next, secret) }
	api.GET("/preferences", h.getPreferences, mw)
	api.PUT("/preferences", h.putPreferences, mw)
	api.GET("/achievements", h.achievements, mw)
}

func (h *ProfileHandler) getPreferences(c echo.Context) error {
	userID := c.Get("user_id").(string)
	prefs, err := h.Store.GetPreferences(c.Request().Context(), userID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, prefs)
}

func (h *ProfileHandler) putPreferences(c echo.Context) error {
	userID := c.Get("user_id").(string)
	var req PreferencesRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	// omitted fields keep their current value
	current, err := h.Store.GetPreferences(c.Request().Context(), userID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if req.Model != "" {
		if !allowedModels[req.Model] {
			return echo.NewHTTPError(http.StatusBadRequest, "unknown model")
		}
		current.Model = req.Model
	}
	if req.Tone != "" {
		if !allowedTones[req.Tone] {
			return echo.NewHTTPError(http.StatusBadRequest, "unknown tone")
		}
		current.Tone = req.Tone
	}
	if req.Language != "" {
		if !allowedLanguages[req.Language] {
			return echo.NewHTTPError(http.StatusBadRequest, "unknown language")
		}
		current.Language = req.Language
	}
	if err := h.Store.UpsertPreferences(c.Request().Context(), userID, current); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, current)
}

func (h *ProfileHandler) achievements(c echo.Context) error {
	userID := c.Get("user_id").(string)
	items, err := h.Store.ListAchievements(c.Request().Context(), userID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, items)
}
