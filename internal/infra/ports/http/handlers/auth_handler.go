package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/qrave1/TeleVisit/internal/application/config"
	"github.com/qrave1/TeleVisit/internal/application/constant"
	"github.com/qrave1/TeleVisit/internal/domain/repository"
	"github.com/qrave1/TeleVisit/internal/infra/appctx"
	"github.com/qrave1/TeleVisit/internal/infra/ports/http/dto"
	"github.com/qrave1/TeleVisit/internal/infra/ports/http/middleware"
	"github.com/qrave1/TeleVisit/internal/usecase"
)

type AuthHandler struct {
	cfg         *config.Config
	userUsecase usecase.UserUsecase
}

func NewAuthHandler(cfg *config.Config, userUsecase usecase.UserUsecase) *AuthHandler {
	return &AuthHandler{
		cfg:         cfg,
		userUsecase: userUsecase,
	}
}

func (h *AuthHandler) Register(c echo.Context) error {
	var req dto.RegisterRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request"})
	}

	user, err := h.userUsecase.CreateUser(c.Request().Context(), req.Username, req.Password, req.Role, req.DisplayName)
	switch {
	case errors.Is(err, usecase.ErrInvalidInput):
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, repository.ErrAlreadyExists):
		return c.JSON(http.StatusConflict, map[string]string{"error": "username is taken"})
	case err != nil:
		slog.Error("create user failed", slog.Any(constant.Error, err))
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "could not create user"})
	}

	return c.JSON(http.StatusCreated, user)
}

func (h *AuthHandler) Login(c echo.Context) error {
	var req dto.LoginRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request"})
	}

	user, err := h.userUsecase.ValidateCredentials(c.Request().Context(), req.Username, req.Password)
	if err != nil {
		slog.Warn("validate credentials failed", slog.String(constant.UserName, req.Username), slog.Any(constant.Error, err))
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid credentials"})
	}

	token, err := h.userUsecase.GenerateJWT(user)
	if err != nil {
		slog.Error("generate JWT failed", slog.Any(constant.Error, err))
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "could not create token"})
	}

	c.SetCookie(&http.Cookie{
		Name:     middleware.CookieName,
		Value:    token,
		Expires:  time.Now().Add(72 * time.Hour),
		Domain:   middleware.BuildCookieDomain(h.cookieHost()),
		Path:     "/",
		Secure:   !h.cfg.Debug,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	return c.JSON(http.StatusOK, dto.LoginResponse{Token: token})
}

func (h *AuthHandler) GetMe(c echo.Context) error {
	userID, ok := appctx.UserID(c.Request().Context())
	if !ok {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid user ID in context"})
	}

	user, err := h.userUsecase.GetUserByID(c.Request().Context(), userID)
	if err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "user not found"})
	}

	return c.JSON(http.StatusOK, dto.GetMeResponse{
		ID:          user.ID,
		Username:    user.Username,
		Role:        user.Role,
		DisplayName: user.DisplayName,
	})
}

func (h *AuthHandler) cookieHost() string {
	u, err := url.Parse(h.cfg.Domain)
	if err != nil || u.Host == "" {
		return strings.TrimSpace(h.cfg.Domain)
	}

	return u.Host
}
