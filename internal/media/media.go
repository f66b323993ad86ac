// Package media moves product images from the messaging gateway into object
// storage so the catalog can reference a stable public URL.
package media

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	// ErrUnsupportedMedia is returned when the attachment is not an image
	ErrUnsupportedMedia = errors.New("attachment is not an image")
	// ErrMediaUnavailable is returned when no attachment could be located
	ErrMediaUnavailable = errors.New("attachment not available")
)

// Ref identifies an inbound attachment
type Ref struct {
	MessageSID  string
	URL         string
	ContentType string
}

// Object is a downloaded attachment
type Object struct {
	ContentType string
	Data        []byte
}

// Fetcher downloads inbound attachments
type Fetcher interface {
	Fetch(ctx context.Context, ref Ref) (*Object, error)
}

// ObjectStore persists objects and returns their public URL
type ObjectStore interface {
	Put(ctx context.Context, key, contentType string, data []byte) (string, error)
}

// Ingestor fetches an attachment and republishes it in object storage
type Ingestor struct {
	fetcher Fetcher
	store   ObjectStore
	logger  *zap.Logger
	now     func() time.Time
}

// NewIngestor creates an Ingestor
func NewIngestor(fetcher Fetcher, store ObjectStore, logger *zap.Logger) *Ingestor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ingestor{fetcher: fetcher, store: store, logger: logger, now: time.Now}
}

// Ingest downloads the attachment behind ref and returns the public URL of
// the stored copy.
func (i *Ingestor) Ingest(ctx context.Context, ref Ref) (string, error) {
	if ref.ContentType != "" && !IsImage(ref.ContentType) {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedMedia, ref.ContentType)
	}

	obj, err := i.fetcher.Fetch(ctx, ref)
	if err != nil {
		return "", fmt.Errorf("failed to fetch attachment: %w", err)
	}
	if !IsImage(obj.ContentType) {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedMedia, obj.ContentType)
	}

	key := ObjectKey(i.now(), obj.ContentType)
	url, err := i.store.Put(ctx, key, obj.ContentType, obj.Data)
	if err != nil {
		return "", fmt.Errorf("failed to store attachment: %w", err)
	}

	i.logger.Info("product image stored",
		zap.String("message_sid", ref.MessageSID),
		zap.String("key", key),
		zap.Int("bytes", len(obj.Data)),
	)
	return url, nil
}

// IsImage reports whether contentType names an image
func IsImage(contentType string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(contentType)), "image/")
}

// ObjectKey builds products/<yyyy>/<mm>/<uuid>.<ext>
func ObjectKey(now time.Time, contentType string) string {
	return path.Join("products", now.Format("2006"), now.Format("01"), uuid.NewString()+extension(contentType))
}

func extension(contentType string) string {
	switch strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0])) {
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	default:
		return ""
	}
}
