package classifier

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/snap-point/moderation-api/config"
)

// minUsefulImageBytes is the size below which an upload is treated as a
// placeholder or thumbnail.
const minUsefulImageBytes = 10 * 1024

// ImageObject is the stored-object metadata for a bucket-hosted image.
type ImageObject struct {
	Key         string
	Size        int64
	ContentType string
}

// ImageInspector looks up metadata for images hosted in our own bucket.
// Inspect returns nil, nil for URLs it does not host.
type ImageInspector interface {
	Inspect(ctx context.Context, imageURL string) (*ImageObject, error)
}

type headObjectAPI interface {
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
}

// R2ImageInspector issues HEAD requests against the Cloudflare R2 bucket that
// backs user uploads.
type R2ImageInspector struct {
	client    headObjectAPI
	bucket    string
	publicURL string
}

func NewR2ImageInspector(cfg config.R2Config) *R2ImageInspector {
	client := s3.New(s3.Options{
		BaseEndpoint: aws.String(fmt.Sprintf("https://%s.r2.cloudflarestorage.com", cfg.AccountID)),
		Credentials: credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		),
		Region: cfg.Region,
	})
	return newR2ImageInspector(client, cfg.BucketName, cfg.PublicURL)
}

func newR2ImageInspector(client headObjectAPI, bucket, publicURL string) *R2ImageInspector {
	return &R2ImageInspector{
		client:    client,
		bucket:    bucket,
		publicURL: strings.TrimSuffix(publicURL, "/") + "/",
	}
}

func (r *R2ImageInspector) Inspect(ctx context.Context, imageURL string) (*ImageObject, error) {
	if !strings.HasPrefix(imageURL, r.publicURL) {
		return nil, nil
	}
	key := strings.TrimPrefix(imageURL, r.publicURL)
	if i := strings.IndexAny(key, "?#"); i >= 0 {
		key = key[:i]
	}

	out, err := r.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("head object %s: %w", key, err)
	}
	return &ImageObject{
		Key:         key,
		Size:        aws.ToInt64(out.ContentLength),
		ContentType: aws.ToString(out.ContentType),
	}, nil
}

// applyObject folds stored-object metadata into an annotation.
func applyObject(a *VisionAnnotation, obj *ImageObject) {
	if obj == nil {
		return
	}
	if obj.Size > 0 && obj.Size < minUsefulImageBytes && a.Quality > 0.2 {
		a.Quality = 0.2
	}
	if obj.ContentType != "" && !strings.HasPrefix(obj.ContentType, "image/") {
		a.Labels = append(a.Labels, "inappropriate")
		a.Spoof = clamp01(a.Spoof + 0.5)
	}
}
