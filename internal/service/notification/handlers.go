package notification

import (
	"context"

	"github.com/jmehdipour/staffhooks/internal/model"
)

func (s *Service) HandleNotifyHR(ctx context.Context, t model.Task) model.Result {
	var p model.NotifyHRPayload
	if err := t.Decode(&p); err != nil {
		return model.Errorf("%v", err)
	}
	return s.NotifyHR(ctx, p)
}

func (s *Service) HandleBulkEmail(ctx context.Context, t model.Task) model.Result {
	var p model.BulkEmailPayload
	if err := t.Decode(&p); err != nil {
		return model.Errorf("%v", err)
	}
	return s.BulkEmail(ctx, p)
}

func (s *Service) HandleBulkSMS(ctx context.Context, t model.Task) model.Result {
	var p model.BulkSMSPayload
	if err := t.Decode(&p); err != nil {
		return model.Errorf("%v", err)
	}
	return s.BulkSMS(ctx, p)
}
