package middleware

import (
	"net"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/qrave1/TeleVisit/internal/infra/appctx"
	"github.com/qrave1/TeleVisit/internal/usecase"
)

const CookieName = "jwt"

type TokenParser interface {
	ParseJWT(token string) (*usecase.Claims, error)
}

// JWTAuthMiddleware берёт токен из Authorization, cookie jwt или query token.
// Query нужен websocket клиентам, которые не могут выставить заголовок.
func JWTAuthMiddleware(parser TokenParser) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw := extractToken(c)
			if raw == "" {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "missing or malformed jwt"})
			}

			claims, err := parser.ParseJWT(raw)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid or expired jwt"})
			}

			userID, err := uuid.Parse(claims.Subject)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid subject"})
			}

			ctx := appctx.WithUserID(c.Request().Context(), userID)
			ctx = appctx.WithRole(ctx, claims.Role)

			c.SetRequest(c.Request().WithContext(ctx))

			return next(c)
		}
	}
}

func extractToken(c echo.Context) string {
	if h := c.Request().Header.Get(echo.HeaderAuthorization); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}

	if cookie, err := c.Cookie(CookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}

	return c.QueryParam("token")
}

// BuildCookieDomain возвращает значение для cookie.Domain или пустую строку, если Domain не нужно задавать.
// Для localhost и IP адресов Domain не выставляется.
func BuildCookieDomain(host string) string {
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}

	host = strings.ToLower(strings.TrimSpace(host))
	if host == "" || host == "localhost" || net.ParseIP(host) != nil {
		return ""
	}

	parts := strings.Split(host, ".")
	if len(parts) < 2 {
		return ""
	}

	return "." + strings.Join(parts[len(parts)-2:], ".")
}
