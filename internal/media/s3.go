package media

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// defaultCacheControl matches the one-hour caching the web client expects.
const defaultCacheControl = "max-age=3600"

// S3Store implements ObjectStore on S3 or an S3-compatible service such as MinIO.
type S3Store struct {
	client        *s3.Client
	presign       *s3.PresignClient
	endpoint      string
	publicBaseURL string
}

// NewS3Store creates an S3-backed object store.
// Parameters:
//   - endpoint: S3 service endpoint URL (empty for AWS defaults)
//   - region: AWS region (or equivalent for S3-compatible services)
//   - accessKey, secretKey: static credentials
//   - publicBaseURL: prefix for public object URLs; defaults to the endpoint
func NewS3Store(ctx context.Context, endpoint, region, accessKey, secretKey, publicBaseURL string) (*S3Store, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if endpoint != "" {
		opts = append(opts, config.WithBaseEndpoint(endpoint))
	}
	if accessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(aws.CredentialsProviderFunc(
			func(ctx context.Context) (aws.Credentials, error) {
				return aws.Credentials{AccessKeyID: accessKey, SecretAccessKey: secretKey}, nil
			})))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	// Path-style addressing keeps MinIO and other S3-compatible services working.
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.UsePathStyle = true
	})

	base := publicBaseURL
	if base == "" {
		base = endpoint
	}
	if base == "" {
		base = fmt.Sprintf("https://s3.%s.amazonaws.com", region)
	}
	return &S3Store{
		client:        client,
		presign:       s3.NewPresignClient(client),
		endpoint:      endpoint,
		publicBaseURL: strings.TrimRight(base, "/"),
	}, nil
}

// Upload streams in.Body to the bucket, reporting progress as bytes are read.
// Without Upsert an existing key is rejected with ErrExists.
func (s *S3Store) Upload(ctx context.Context, in UploadInput) error {
	cacheControl := in.CacheControl
	if cacheControl == "" {
		cacheControl = defaultCacheControl
	}
	input := &s3.PutObjectInput{
		Bucket:       aws.String(in.Bucket),
		Key:          aws.String(in.Key),
		Body:         newProgressReader(in.Body, in.Size, in.Progress),
		CacheControl: aws.String(cacheControl),
	}
	if in.Size > 0 {
		input.ContentLength = aws.Int64(in.Size)
	}
	if in.ContentType != "" {
		input.ContentType = aws.String(in.ContentType)
	}
	if !in.Upsert {
		input.IfNoneMatch = aws.String("*")
	}
	if _, err := s.client.PutObject(ctx, input); err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) && apiErr.ErrorCode() == "PreconditionFailed" {
			return ErrExists
		}
		return fmt.Errorf("failed to upload %s/%s: %w", in.Bucket, in.Key, err)
	}
	return nil
}

// Stat returns the stored object's size and content type.
func (s *S3Store) Stat(ctx context.Context, bucket, key string) (ObjectInfo, error) {
	result, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nf *types.NotFound
		if errors.As(err, &nf) {
			return ObjectInfo{}, ErrNotFound
		}
		return ObjectInfo{}, fmt.Errorf("failed to get object metadata: %w", err)
	}
	return ObjectInfo{
		Size:        aws.ToInt64(result.ContentLength),
		ContentType: aws.ToString(result.ContentType),
	}, nil
}

// PublicURL returns the path-style public address of an object.
func (s *S3Store) PublicURL(bucket, key string) string {
	segments := strings.Split(key, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return s.publicBaseURL + "/" + bucket + "/" + strings.Join(segments, "/")
}

// PresignUpload generates a presigned PUT URL so clients can upload directly.
func (s *S3Store) PresignUpload(ctx context.Context, bucket, key string, expires time.Duration) (string, error) {
	result, err := s.presign.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = expires
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned URL: %w", err)
	}
	return result.URL, nil
}
