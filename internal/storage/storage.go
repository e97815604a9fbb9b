// Package storage archives signed documents. Each destination is an
// Uploader; callers fan out to all of them and treat failures independently.
package storage

import (
	"context"
	"fmt"
	"strings"
)

const ContentTypePDF = "application/pdf"

type Uploader interface {
	// Name labels the destination in logs and results.
	Name() string
	// Upload stores content under key and returns its location.
	Upload(ctx context.Context, key string, content []byte, contentType string) (string, error)
}

// DocumentKey is the bucket key of a signed envelope within the employer's prefix.
func DocumentKey(employerID int64, envelopeID string) string {
	return fmt.Sprintf("employers/%d/docusign/%s.pdf", employerID, sanitize(envelopeID))
}

func sanitize(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ' ':
			return '_'
		}
		return r
	}, s)
}
