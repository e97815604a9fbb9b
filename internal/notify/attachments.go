package notify

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path"
	"time"

	"github.com/jmehdipour/staffhooks/internal/config"
	"go.uber.org/zap"
)

// AttachmentFetcher downloads email attachments by URL. A URL that fails or
// answers non-2xx is left out; the email still goes.
type AttachmentFetcher struct {
	client   *http.Client
	maxBytes int64
	log      *zap.Logger
}

func NewAttachmentFetcher(cfg config.AttachmentConfig, log *zap.Logger) *AttachmentFetcher {
	if log == nil {
		log = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	maxBytes := cfg.MaxBytes
	if maxBytes <= 0 {
		maxBytes = 10 << 20
	}
	return &AttachmentFetcher{
		client:   &http.Client{Timeout: timeout},
		maxBytes: maxBytes,
		log:      log,
	}
}

func (f *AttachmentFetcher) FetchAll(ctx context.Context, urls []string) []Attachment {
	out := make([]Attachment, 0, len(urls))
	for _, u := range urls {
		a, err := f.fetch(ctx, u)
		if err != nil {
			f.log.Warn("attachment skipped", zap.String("url", u), zap.Error(err))
			continue
		}
		out = append(out, a)
	}
	return out
}

func (f *AttachmentFetcher) fetch(ctx context.Context, rawURL string) (Attachment, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return Attachment{}, err
	}

	res, err := f.client.Do(req)
	if err != nil {
		return Attachment{}, err
	}
	defer res.Body.Close()

	if res.StatusCode/100 != 2 {
		return Attachment{}, fmt.Errorf("status=%d", res.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(res.Body, f.maxBytes+1))
	if err != nil {
		return Attachment{}, err
	}
	if int64(len(body)) > f.maxBytes {
		return Attachment{}, fmt.Errorf("larger than %d bytes", f.maxBytes)
	}

	name := filename(rawURL)
	ct := res.Header.Get("Content-Type")
	if ct == "" {
		ct = mime.TypeByExtension(path.Ext(name))
	}
	if ct == "" {
		ct = "application/octet-stream"
	}

	return Attachment{
		Filename:    name,
		ContentType: ct,
		Content:     base64.StdEncoding.EncodeToString(body),
	}, nil
}

func filename(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "attachment"
	}
	name := path.Base(u.Path)
	if name == "" || name == "/" || name == "." {
		return "attachment"
	}
	return name
}
