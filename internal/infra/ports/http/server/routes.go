package server

import (
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/qrave1/TeleVisit/internal/infra/ports/http/handlers"
	"github.com/qrave1/TeleVisit/internal/infra/ports/http/middleware"
)

func New(
	tokens middleware.TokenParser,
	authHandler *handlers.AuthHandler,
	iceHandler *handlers.IceHandler,
	wsHandler *handlers.WebSocketHandler,
	fileHandler *handlers.FileHandler,
	roomHandler *handlers.RoomHandler,
) *echo.Echo {
	e := echo.New()

	e.HideBanner = true
	e.HidePort = true

	e.Use(echomw.Recover())
	e.Use(middleware.SlogLogger())
	e.Use(middleware.PrometheusMiddleware())

	auth := middleware.JWTAuthMiddleware(tokens)

	api := e.Group("/api")
	{
		authGroup := api.Group("/auth")
		{
			authGroup.POST("/register", authHandler.Register)
			authGroup.POST("/login", authHandler.Login)
		}

		v1 := api.Group("/v1")
		v1.Use(auth)
		{
			v1.GET("/me", authHandler.GetMe)

			v1.GET("/ice", iceHandler.IceServers)

			v1.POST("/files", fileHandler.Upload)

			v1.GET("/rooms/:room/peers", roomHandler.Peers)
		}
	}

	e.GET("/ws/:room/:peer", wsHandler.Handle, auth)

	// ссылки подписаны, токен не нужен
	e.GET("/files/:id/:name", fileHandler.Serve)

	return e
}
