package http

import (
	"net/http"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/jmehdipour/staffhooks/internal/http/middleware"
	"github.com/jmehdipour/staffhooks/internal/model"
	"github.com/jmehdipour/staffhooks/internal/repository"
	"github.com/jmehdipour/staffhooks/internal/service/queue"
	"github.com/jmehdipour/staffhooks/internal/util"
	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"
)

const (
	maxSMSRunes      = 1600
	maxRecipients    = 5000
	maxAttachmentURL = 10
)

type smsCampaignReq struct {
	Recipients []string `json:"recipients"`
	Group      string   `json:"group"` // audience group, used when recipients is empty
	Body       string   `json:"body"`
}

type emailCampaignReq struct {
	Recipients     []string `json:"recipients"`
	Group          string   `json:"group"`
	Subject        string   `json:"subject"`
	HTML           string   `json:"html"`
	AttachmentURLs []string `json:"attachment_urls"`
}

func smsCampaignHandler(q queue.Enqueuer, users repository.UsersRepository) echo.HandlerFunc {
	return func(c echo.Context) error {
		empID, ok := middleware.EmployerIDFromCtx(c)
		if !ok || empID <= 0 {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		}

		var req smsCampaignReq
		if err := c.Bind(&req); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "bad request"})
		}

		req.Body = strings.TrimSpace(req.Body)
		if req.Body == "" {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "body is required"})
		}
		if utf8.RuneCountInString(req.Body) > maxSMSRunes {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "body too long"})
		}

		recipients := req.Recipients
		if len(recipients) == 0 && req.Group != "" {
			members, err := users.ListByGroup(c.Request().Context(), empID, req.Group)
			if err != nil {
				log.Errorf("list group %q failed: %v", req.Group, err)
				return c.JSON(http.StatusInternalServerError, map[string]string{"error": "db error"})
			}
			for _, u := range members {
				recipients = append(recipients, u.Phone)
			}
		}

		phones := make([]string, 0, len(recipients))
		for _, r := range recipients {
			if p := util.NormalizePhone(r); p != "" {
				phones = append(phones, p)
			}
		}
		if len(phones) == 0 {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "no valid recipients"})
		}
		if len(phones) > maxRecipients {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "too many recipients"})
		}

		return enqueueCampaign(c, q, empID, model.TaskBulkSMS, model.BulkSMSPayload{
			EmployerID: empID,
			Body:       req.Body,
			Recipients: phones,
		}, len(phones))
	}
}

func emailCampaignHandler(q queue.Enqueuer, users repository.UsersRepository) echo.HandlerFunc {
	return func(c echo.Context) error {
		empID, ok := middleware.EmployerIDFromCtx(c)
		if !ok || empID <= 0 {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		}

		var req emailCampaignReq
		if err := c.Bind(&req); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "bad request"})
		}

		req.Subject = strings.TrimSpace(req.Subject)
		if req.Subject == "" || strings.TrimSpace(req.HTML) == "" {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "subject and html are required"})
		}
		if len(req.AttachmentURLs) > maxAttachmentURL {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "too many attachments"})
		}

		recipients := req.Recipients
		if len(recipients) == 0 && req.Group != "" {
			members, err := users.ListByGroup(c.Request().Context(), empID, req.Group)
			if err != nil {
				log.Errorf("list group %q failed: %v", req.Group, err)
				return c.JSON(http.StatusInternalServerError, map[string]string{"error": "db error"})
			}
			for _, u := range members {
				recipients = append(recipients, u.Email)
			}
		}

		emails := make([]string, 0, len(recipients))
		for _, r := range recipients {
			r = strings.ToLower(strings.TrimSpace(r))
			if strings.Contains(r, "@") {
				emails = append(emails, r)
			}
		}
		if len(emails) == 0 {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "no valid recipients"})
		}
		if len(emails) > maxRecipients {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "too many recipients"})
		}

		return enqueueCampaign(c, q, empID, model.TaskBulkEmail, model.BulkEmailPayload{
			EmployerID:     empID,
			Subject:        req.Subject,
			HTML:           req.HTML,
			Recipients:     emails,
			AttachmentURLs: req.AttachmentURLs,
		}, len(emails))
	}
}

func enqueueCampaign(c echo.Context, q queue.Enqueuer, empID int64, kind model.TaskKind, p any, n int) error {
	task, err := model.NewTask(kind, p)
	if err == nil {
		err = q.Enqueue(c.Request().Context(), nil, task)
	}
	if err != nil {
		log.Errorf("enqueue %s failed: %v", kind, err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "db error"})
	}

	return c.JSON(http.StatusAccepted, map[string]any{
		"enqueued":    true,
		"id":          task.ID,
		"kind":        kind.String(),
		"recipients":  n,
		"employer_id": strconv.FormatInt(empID, 10),
	})
}
