package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/qrave1/TeleVisit/internal/application/config"
	"github.com/qrave1/TeleVisit/internal/application/constant"
	"github.com/qrave1/TeleVisit/internal/infra/adapters/storage"
	"github.com/qrave1/TeleVisit/internal/infra/appctx"
	"github.com/qrave1/TeleVisit/internal/infra/ports/http/dto"
	"github.com/qrave1/TeleVisit/internal/usecase"
)

type FileHandler struct {
	maxSize     int64
	fileUsecase usecase.FileUsecase
}

func NewFileHandler(cfg *config.Config, fileUsecase usecase.FileUsecase) *FileHandler {
	return &FileHandler{
		maxSize:     cfg.Files.MaxSize,
		fileUsecase: fileUsecase,
	}
}

func (h *FileHandler) Upload(c echo.Context) error {
	userID, ok := appctx.UserID(c.Request().Context())
	if !ok {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid user ID in context"})
	}

	fh, err := c.FormFile("file")
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "multipart field file is required"})
	}

	if h.maxSize > 0 && fh.Size > h.maxSize {
		return c.JSON(http.StatusRequestEntityTooLarge, map[string]string{"error": "file too large"})
	}

	src, err := fh.Open()
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "could not read file"})
	}
	defer src.Close()

	file, err := h.fileUsecase.Upload(c.Request().Context(), userID, c.RealIP(), fh.Filename, src)
	switch {
	case errors.Is(err, storage.ErrInvalidName):
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid file name"})
	case errors.Is(err, storage.ErrTooLarge):
		return c.JSON(http.StatusRequestEntityTooLarge, map[string]string{"error": "file too large"})
	case err != nil:
		slog.Error("upload file", slog.Any(constant.Error, err), slog.Any(constant.UserID, userID))
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "could not store file"})
	}

	return c.JSON(http.StatusCreated, dto.FileResponse{
		URL:       file.URL,
		Name:      file.Name,
		ExpiresAt: file.ExpiresAt,
	})
}

// Serve отдаёт файл только по действующей подписи, токен не нужен
func (h *FileHandler) Serve(c echo.Context) error {
	object := c.Param("id") + "/" + c.Param("name")

	f, err := h.fileUsecase.Open(c.Request().Context(), object, c.QueryParam("expires"), c.QueryParam("sig"))
	switch {
	case errors.Is(err, storage.ErrBadSignature), errors.Is(err, storage.ErrExpired):
		return c.JSON(http.StatusForbidden, map[string]string{"error": err.Error()})
	case errors.Is(err, storage.ErrInvalidName):
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid file name"})
	case errors.Is(err, storage.ErrNotFound):
		return c.JSON(http.StatusNotFound, map[string]string{"error": "file not found"})
	case err != nil:
		slog.Error("open file", slog.Any(constant.Error, err))
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "could not open file"})
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "could not open file"})
	}

	http.ServeContent(c.Response(), c.Request(), c.Param("name"), stat.ModTime(), f)

	return nil
}
