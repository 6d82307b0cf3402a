package storage

import (
	"context"
	"fmt"
	"path"

	"github.com/google/uuid"

	"github.com/visionboard/backend/utils"
)

// Uploader runs the upload pipeline: transfer bytes to a unique path,
// resolve a public URL, hand the URL back. The steps are strictly
// ordered and each failure short-circuits the rest with its own error,
// so the caller can decide whether to retry the whole sequence. The
// caller writes any metadata record strictly after a URL is obtained.
type Uploader struct {
	store ObjectStore
}

// NewUploader wraps an object store.
func NewUploader(store ObjectStore) *Uploader {
	return &Uploader{store: store}
}

// Upload pushes the payload to destDir under a random unique name and
// returns its publicly fetchable URL. Transfer failures surface as
// ErrTransferFailed, URL failures as ErrURLResolution; neither step is
// retried here. A failed URL resolution may leave the payload orphaned
// in storage, which is accepted.
func (u *Uploader) Upload(ctx context.Context, data []byte, contentType, destDir string) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("%w: empty payload", utils.ErrValidation)
	}

	key := path.Join(destDir, uuid.NewString()+extFor(contentType))

	if err := u.store.Put(ctx, key, data, contentType); err != nil {
		return "", fmt.Errorf("%w: %v", utils.ErrTransferFailed, err)
	}

	url, err := u.store.PublicURL(ctx, key)
	if err != nil {
		return "", fmt.Errorf("%w: %v", utils.ErrURLResolution, err)
	}

	return url, nil
}

func extFor(contentType string) string {
	switch contentType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	case "image/heic":
		return ".heic"
	default:
		return ""
	}
}
