package http

import (
	"io"
	"net/http"

	"github.com/jmehdipour/staffhooks/internal/metrics"
	"github.com/jmehdipour/staffhooks/internal/model"
	"github.com/jmehdipour/staffhooks/internal/payload"
	"github.com/jmehdipour/staffhooks/internal/service/queue"
	"github.com/labstack/echo/v4"
)

const maxWebhookBody = 5 << 20

// postOnly answers anything but POST with 405; routes are registered with
// e.Any so the JSON body is ours rather than echo's default.
func postOnly(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if c.Request().Method != http.MethodPost {
			c.Response().Header().Set(echo.HeaderAllow, http.MethodPost)
			return c.JSON(http.StatusMethodNotAllowed, map[string]string{"error": "Method not allowed"})
		}
		return next(c)
	}
}

func readBody(c echo.Context) ([]byte, error) {
	return io.ReadAll(http.MaxBytesReader(c.Response(), c.Request().Body, maxWebhookBody))
}

// enqueueWebhook wraps the accepted payload in a task. Exactly one task per call.
func enqueueWebhook(c echo.Context, q queue.Enqueuer, provider string, kind model.TaskKind, body any) error {
	task, err := model.NewTask(kind, body)
	if err == nil {
		err = q.Enqueue(c.Request().Context(), nil, task)
	}
	if err != nil {
		metrics.WebhooksReceived.WithLabelValues(provider, "error").Inc()
		c.Logger().Errorf("%s webhook enqueue failed: %v", provider, err)
		return err
	}
	metrics.WebhooksReceived.WithLabelValues(provider, "accepted").Inc()
	return nil
}

func reject(c echo.Context, provider, msg string) error {
	metrics.WebhooksReceived.WithLabelValues(provider, "rejected").Inc()
	return c.JSON(http.StatusBadRequest, map[string]string{"error": msg})
}

func sendGridHookHandler(q queue.Enqueuer) echo.HandlerFunc {
	return postOnly(func(c echo.Context) error {
		body, err := readBody(c)
		if err != nil || !payload.ValidJSON(body) {
			return reject(c, "sendgrid", "Invalid JSON payload")
		}
		if err := enqueueWebhook(c, q, "sendgrid", model.TaskSendGridWebhook, body); err != nil {
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "enqueue failed"})
		}
		return c.JSON(http.StatusOK, map[string]string{"message": "Webhook received successfully"})
	})
}

func docuSignHookHandler(q queue.Enqueuer) echo.HandlerFunc {
	return postOnly(func(c echo.Context) error {
		body, err := readBody(c)
		if err != nil {
			return reject(c, "docusign", "Invalid JSON payload")
		}
		ev, err := payload.ParseDocuSign(body)
		if err != nil {
			return reject(c, "docusign", "Invalid JSON payload")
		}
		if err := ev.Validate(); err != nil {
			return reject(c, "docusign", err.Error())
		}
		if err := enqueueWebhook(c, q, "docusign", model.TaskDocuSignWebhook, body); err != nil {
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "enqueue failed"})
		}
		return c.JSON(http.StatusOK, map[string]string{"status": "received"})
	})
}

// whatsAppHookHandler forwards the Twilio form as a JSON object of value lists.
func whatsAppHookHandler(q queue.Enqueuer) echo.HandlerFunc {
	return postOnly(func(c echo.Context) error {
		form, err := c.FormParams()
		if err != nil {
			return reject(c, "whatsapp", "Invalid form payload")
		}
		if err := enqueueWebhook(c, q, "whatsapp", model.TaskWhatsAppWebhook, form); err != nil {
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "enqueue failed"})
		}
		return c.JSON(http.StatusOK, map[string]string{"status": "success"})
	})
}
