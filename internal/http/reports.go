package http

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/jmehdipour/staffhooks/internal/http/middleware"
	"github.com/jmehdipour/staffhooks/internal/repository"
	echo "github.com/labstack/echo/v4"
)

func listEmailEventsHandler(chRepo repository.CHEmailEventsRepository) echo.HandlerFunc {
	return func(c echo.Context) error {
		empID, ok := middleware.EmployerIDFromCtx(c)
		if !ok || empID <= 0 {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		}

		limit := 50
		offset := 0
		if v := c.QueryParam("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 1000 {
				limit = n
			}
		}
		if v := c.QueryParam("offset"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n >= 0 {
				offset = n
			}
		}

		email := strings.ToLower(strings.TrimSpace(c.QueryParam("email")))
		event := strings.TrimSpace(c.QueryParam("event"))

		events, err := chRepo.ListByEmployer(c.Request().Context(), empID, email, event, limit, offset)
		if err != nil {
			c.Logger().Errorf("clickhouse list failed: %v", err)

			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "query failed"})
		}

		return c.JSON(http.StatusOK, map[string]any{
			"limit":   limit,
			"offset":  offset,
			"count":   len(events),
			"results": events,
		})
	}
}
