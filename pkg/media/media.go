package media

import (
	"context"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/google/uuid"
)

// Store uploads user media (avatars, cover images) to the configured media
// host and returns the public URL the stored object is reachable at.
type Store interface {
	Upload(ctx context.Context, key, contentType string, r io.Reader, size int64) (string, error)
	Delete(ctx context.Context, key string) error
}

// ObjectKey derives a collision-free storage key for an uploaded file,
// partitioned by date so buckets stay listable.
func ObjectKey(kind, filename string) string {
	now := time.Now().UTC()
	ext := path.Ext(filename)
	return fmt.Sprintf("%s/%d/%02d/%s%s", kind, now.Year(), now.Month(), uuid.NewString(), ext)
}
