// Package documents archives completed envelopes: the combined PDF goes to
// the shared bucket and to the employer's Dropbox when it has one.
package documents

import (
	"context"
	"errors"
	"sync"

	"github.com/jmehdipour/staffhooks/internal/credentials"
	"github.com/jmehdipour/staffhooks/internal/model"
	"github.com/jmehdipour/staffhooks/internal/storage"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type Fetcher interface {
	CombinedDocument(ctx context.Context, envelopeID string) ([]byte, error)
}

// Uploaders are built per task and dropped when it ends.
type (
	ArchiveFactory func() (storage.Uploader, error)
	DropboxFactory func(credentials.Dropbox) storage.Uploader
)

type Service struct {
	fetcher    Fetcher
	creds      credentials.Resolver
	newArchive ArchiveFactory
	newDropbox DropboxFactory
	log        *zap.Logger
}

func New(fetcher Fetcher, creds credentials.Resolver, newArchive ArchiveFactory, newDropbox DropboxFactory, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{fetcher: fetcher, creds: creds, newArchive: newArchive, newDropbox: newDropbox, log: log}
}

// Archive downloads the signed envelope once and uploads it to every
// destination concurrently. A destination failing does not affect the others.
func (s *Service) Archive(ctx context.Context, p model.DocumentFetchPayload) model.Result {
	if p.EnvelopeID == "" {
		return model.Errorf("archive: envelope id is required")
	}
	if s.fetcher == nil {
		return model.Done(model.ResultSkipped).With("reason", "docusign not configured")
	}

	pdf, err := s.fetcher.CombinedDocument(ctx, p.EnvelopeID)
	if err != nil {
		return model.Errorf("archive: download envelope %s: %v", p.EnvelopeID, err)
	}

	uploaders := s.destinations(ctx, p.EmployerID)
	if len(uploaders) == 0 {
		return model.Done(model.ResultSkipped).With("reason", "no destinations")
	}

	key := storage.DocumentKey(p.EmployerID, p.EnvelopeID)

	var (
		mu       sync.Mutex
		stored   []string
		failures = map[string]string{}
	)
	g, gctx := errgroup.WithContext(ctx)
	for _, u := range uploaders {
		g.Go(func() error {
			loc, err := u.Upload(gctx, key, pdf, storage.ContentTypePDF)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failures[u.Name()] = err.Error()
				s.log.Error("archive upload failed",
					zap.String("destination", u.Name()),
					zap.String("envelope_id", p.EnvelopeID),
					zap.Int64("employer_id", p.EmployerID),
					zap.Error(err))
				return nil
			}
			stored = append(stored, loc)
			return nil
		})
	}
	_ = g.Wait()

	status := model.ResultProcessed
	switch {
	case len(stored) == 0:
		status = model.ResultFailed
	case len(failures) > 0:
		status = model.ResultPartial
	}

	r := model.Done(status).With("stored", stored)
	if len(failures) > 0 {
		r = r.With("failed", failures)
	}
	if len(stored) == 0 {
		r.Error = "archive: every destination failed"
	}
	return r
}

func (s *Service) destinations(ctx context.Context, employerID int64) []storage.Uploader {
	var out []storage.Uploader

	if s.newArchive != nil {
		u, err := s.newArchive()
		if err != nil {
			s.log.Warn("archive bucket unavailable", zap.Error(err))
		} else {
			out = append(out, u)
		}
	}

	if s.newDropbox != nil && employerID != 0 {
		creds, err := s.creds.Dropbox(ctx, employerID)
		switch {
		case err == nil:
			out = append(out, s.newDropbox(creds))
		case errors.Is(err, credentials.ErrUnavailable):
			s.log.Debug("no dropbox for employer", zap.Int64("employer_id", employerID))
		default:
			s.log.Warn("dropbox credentials lookup failed", zap.Int64("employer_id", employerID), zap.Error(err))
		}
	}

	return out
}

func (s *Service) HandleDocumentFetch(ctx context.Context, t model.Task) model.Result {
	var p model.DocumentFetchPayload
	if err := t.Decode(&p); err != nil {
		return model.Errorf("%v", err)
	}
	return s.Archive(ctx, p)
}
