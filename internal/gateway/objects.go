package gateway

import (
	"context"
	"time"

	"github.com/RegistryAccord/vidhub-go/internal/media"
)

// presignTTL is how long a direct-upload URL stays valid.
const presignTTL = 15 * time.Minute

// UploadObject stores one binary and returns its public URL. in.Progress, when
// set, receives byte counts as the body is consumed.
func (g *Gateway) UploadObject(ctx context.Context, in media.UploadInput) (url string, err error) {
	ctx, done := g.begin(ctx, "upload_object")
	defer done(&err)

	if in.CacheControl == "" {
		in.CacheControl = "max-age=3600"
	}
	if err := g.objects.Upload(ctx, in); err != nil {
		return "", err
	}
	if g.metrics != nil {
		g.metrics.UploadBytesTotal.WithLabelValues(in.Bucket).Add(float64(in.Size))
	}
	return g.objects.PublicURL(in.Bucket, in.Key), nil
}

// StatObject reports an object's size and content type.
func (g *Gateway) StatObject(ctx context.Context, bucket, key string) (info media.ObjectInfo, err error) {
	ctx, done := g.begin(ctx, "stat_object")
	defer done(&err)
	return g.objects.Stat(ctx, bucket, key)
}

// PublicURL returns the public address of an object.
func (g *Gateway) PublicURL(bucket, key string) string {
	return g.objects.PublicURL(bucket, key)
}

// PresignUpload issues a time-limited URL for uploading directly to storage.
func (g *Gateway) PresignUpload(ctx context.Context, bucket, key string) (url string, err error) {
	ctx, done := g.begin(ctx, "presign_upload")
	defer done(&err)
	return g.objects.PresignUpload(ctx, bucket, key, presignTTL)
}
