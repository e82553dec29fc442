package server

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

var allowedExtensions = map[string]string{
	".txt":  "text/plain",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
}

const maxUploadBytes = 10 << 20

// UploadsHandler stores attachments under a flat tmp directory. Stored names
// are random so uploads never collide or leak original filenames; the janitor
// sweeps the directory on a schedule.
type UploadsHandler struct {
	Dir string
}

func (h *UploadsHandler) Register(api *echo.Group, root *echo.Echo, secret []byte) {
	api.POST("/uploads", func(c echo.Context) error { return withAuth(h.upload, secret)(c) })
	root.GET("/uploads/:name", h.serve)
}

// Save writes the multipart file to disk and returns its public URL together
// with the original name, detected MIME type and raw content.
func (h *UploadsHandler) Save(fh *multipart.FileHeader) (url, name, mimeType string, data []byte, err error) {
	ext := strings.ToLower(filepath.Ext(fh.Filename))
	mimeType, ok := allowedExtensions[ext]
	if !ok {
		return "", "", "", nil, echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("file type %q not allowed", ext))
	}
	if fh.Size > maxUploadBytes {
		return "", "", "", nil, echo.NewHTTPError(http.StatusBadRequest, "file too large")
	}

	src, err := fh.Open()
	if err != nil {
		return "", "", "", nil, err
	}
	defer src.Close()
	data, err = io.ReadAll(io.LimitReader(src, maxUploadBytes))
	if err != nil {
		return "", "", "", nil, err
	}

	if err := os.MkdirAll(h.Dir, 0o755); err != nil {
		return "", "", "", nil, err
	}
	stored := uuid.NewString() + ext
	if err := os.WriteFile(filepath.Join(h.Dir, stored), data, 0o644); err != nil {
		return "", "", "", nil, err
	}
	return "/uploads/" + stored, fh.Filename, mimeType, data, nil
}

func (h *UploadsHandler) upload(c echo.Context) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "file required")
	}
	url, name, _, _, err := h.Save(fh)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, UploadResponse{URL: url, Name: name})
}

func (h *UploadsHandler) serve(c echo.Context) error {
	name := c.Param("name")
	// stored names are uuid + extension; anything else is not ours
	if name != filepath.Base(name) || strings.Contains(name, "..") {
		return echo.NewHTTPError(http.StatusNotFound, "not found")
	}
	path := filepath.Join(h.Dir, name)
	if _, err := os.Stat(path); err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "not found")
	}
	return c.File(path)
}
