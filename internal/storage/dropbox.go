package storage

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/dropbox/dropbox-sdk-go-unofficial/v6/dropbox"
	"github.com/dropbox/dropbox-sdk-go-unofficial/v6/dropbox/files"
	"github.com/jmehdipour/staffhooks/internal/credentials"
)

// DropboxUploader writes into one tenant's Dropbox under its root path.
// Build one per task from that tenant's resolved credentials.
type DropboxUploader struct {
	client files.Client
	root   string
}

var _ Uploader = (*DropboxUploader)(nil)

func NewDropboxUploader(creds credentials.Dropbox) *DropboxUploader {
	return newDropboxUploader(files.New(dropbox.Config{Token: creds.AccessToken}), creds.RootPath)
}

func newDropboxUploader(client files.Client, root string) *DropboxUploader {
	root = "/" + strings.Trim(root, "/")
	return &DropboxUploader{client: client, root: root}
}

func (u *DropboxUploader) Name() string { return "dropbox" }

// Upload ignores ctx; the SDK has no context-aware calls.
func (u *DropboxUploader) Upload(_ context.Context, key string, content []byte, _ string) (string, error) {
	p := path.Join(u.root, path.Base(key))

	arg := files.NewUploadArg(p)
	arg.Mode = &files.WriteMode{Tagged: dropbox.Tagged{Tag: files.WriteModeOverwrite}}

	meta, err := u.client.Upload(arg, bytes.NewReader(content))
	if err != nil {
		return "", fmt.Errorf("storage: dropbox upload %s: %w", p, err)
	}
	if meta != nil && meta.PathDisplay != "" {
		return "dropbox:" + meta.PathDisplay, nil
	}
	return "dropbox:" + p, nil
}
