package middleware

import (
	"net/http"
	"strings"

	"github.com/jmehdipour/staffhooks/internal/repository"
	echo "github.com/labstack/echo/v4"
)

const (
	ctxEmployerID  = "employer_id"
	ctxEmployerRPS = "employer_rps"
)

// EmployerIDFromCtx extracts the authenticated employer set by APIKeyMiddleware.
func EmployerIDFromCtx(c echo.Context) (int64, bool) {
	id, ok := c.Get(ctxEmployerID).(int64)
	return id, ok
}

// APIKeyMiddleware authenticates requests using the X-API-Key header.
// Inactive employers are rejected like unknown keys.
func APIKeyMiddleware(employers repository.EmployersRepository) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := strings.TrimSpace(c.Request().Header.Get("X-API-Key"))
			if key == "" {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "missing api key"})
			}
			emp, err := employers.GetByAPIKey(c.Request().Context(), key)
			if err != nil {
				return c.JSON(http.StatusInternalServerError, map[string]string{"error": "auth error"})
			}
			if emp == nil || !emp.Active {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid api key"})
			}
			c.Set(ctxEmployerID, emp.ID)
			if emp.RateLimitRPS != nil {
				c.Set(ctxEmployerRPS, *emp.RateLimitRPS)
			}
			return next(c)
		}
	}
}
