package server

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/charlabot/charla/internal/assistant"
	"github.com/charlabot/charla/provider"
)

type ChatHandler struct {
	Assistant *assistant.Assistant
	Uploads   *UploadsHandler
}

func (h *ChatHandler) Register(g *echo.Group, secret []byte) {
	g.Use(func(next echo.HandlerFunc) echo.HandlerFunc { return withAuth(next, secret) })
	g.POST("", h.chat)
}

// chat accepts either JSON {"message": ...} or a multipart form with a
// "message" field and an optional "file" attachment.
func (h *ChatHandler) chat(c echo.Context) error {
	userID := c.Get("user_id").(string)

	var message string
	var att *assistant.Attachment

	ctype := c.Request().Header.Get(echo.HeaderContentType)
	if len(ctype) >= len(echo.MIMEMultipartForm) && ctype[:len(echo.MIMEMultipartForm)] == echo.MIMEMultipartForm {
		message = c.FormValue("message")
		if fh, err := c.FormFile("file"); err == nil {
			url, name, mimeType, data, err := h.Uploads.Save(fh)
			if err != nil {
				return err
			}
			att = &assistant.Attachment{URL: url, Name: name, MIME: mimeType, Data: data}
		}
	} else {
		var req struct {
			Message string `json:"message"`
		}
		if err := c.Bind(&req); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		message = req.Message
	}

	reply, err := h.Assistant.HandleMessage(c.Request().Context(), userID, message, att)
	switch {
	case errors.Is(err, assistant.ErrEmptyInput):
		return echo.NewHTTPError(http.StatusBadRequest, "message or file required")
	case errors.Is(err, provider.ErrModelUnavailable):
		return echo.NewHTTPError(http.StatusBadGateway, "model unavailable")
	case err != nil:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, reply)
}
