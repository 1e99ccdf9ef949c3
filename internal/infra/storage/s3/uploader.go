package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"path"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MaxPhotoBytes caps a single listing photo.
const MaxPhotoBytes = 10 << 20

var (
	// ErrUnsupportedPhotoType rejects anything that is not a known image format.
	ErrUnsupportedPhotoType = errors.New("s3: unsupported photo type")
	// ErrPhotoTooLarge rejects uploads over MaxPhotoBytes.
	ErrPhotoTooLarge = errors.New("s3: photo exceeds size limit")
)

// photoContentTypes maps the accepted file extensions onto the content type
// stored with the object. The extension decides; client-sent headers are not
// trusted.
var photoContentTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".webp": "image/webp",
}

// Uploader stores listing photos and returns a public URL for the feed to
// render.
type Uploader interface {
	UploadListingPhoto(ctx context.Context, listingID, fileName string, reader io.Reader, size int64) (publicURL string, err error)
}

// Client stores photos in an S3-compatible bucket under a per-listing prefix.
type Client struct {
	bucket         string
	publicBaseURL  string
	client         *minio.Client
	logger         *slog.Logger
	bucketInitOnce sync.Once
	bucketInitErr  error
}

// NewClient configures an uploader using the provided endpoint and credentials.
func NewClient(endpoint string, useSSL bool, accessKey, secretKey, bucket, publicBaseURL string, logger *slog.Logger) (*Client, error) {
	cleanEndpoint := strings.TrimSpace(endpoint)
	if cleanEndpoint == "" {
		return nil, errors.New("s3: endpoint is required")
	}
	if bucket = strings.TrimSpace(bucket); bucket == "" {
		return nil, errors.New("s3: bucket is required")
	}

	opts := &minio.Options{
		Creds:  credentials.NewStaticV4(strings.TrimSpace(accessKey), strings.TrimSpace(secretKey), ""),
		Secure: useSSL,
	}
	minioClient, err := minio.New(parseEndpoint(cleanEndpoint), opts)
	if err != nil {
		return nil, fmt.Errorf("s3: create client: %w", err)
	}

	base := strings.TrimSpace(publicBaseURL)
	if base == "" {
		base = cleanEndpoint
	}

	return &Client{
		bucket:        bucket,
		publicBaseURL: strings.TrimRight(base, "/"),
		client:        minioClient,
		logger:        logger,
	}, nil
}

// UploadListingPhoto validates the photo, stores it under the listing's
// prefix, and returns a direct URL. The object name is freshly generated so
// repeated uploads of the same file never collide.
func (c *Client) UploadListingPhoto(ctx context.Context, listingID, fileName string, reader io.Reader, size int64) (string, error) {
	key, contentType, err := photoKey(listingID, fileName, size)
	if err != nil {
		return "", err
	}
	if reader == nil {
		return "", errors.New("s3: reader is required")
	}
	if err := c.ensureBucket(ctx); err != nil {
		return "", err
	}

	_, err = c.client.PutObject(ctx, c.bucket, key, io.LimitReader(reader, MaxPhotoBytes), size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("s3: put object: %w", err)
	}

	publicURL := c.objectURL(key)
	if c.logger != nil {
		c.logger.Info("listing photo stored", "listing_id", listingID, "key", key, "bytes", size)
	}
	return publicURL, nil
}

// photoKey validates the upload and builds its object key, listings/<listing>/<uuid><ext>.
func photoKey(listingID, fileName string, size int64) (key, contentType string, err error) {
	listingID = strings.TrimSpace(listingID)
	if listingID == "" {
		return "", "", errors.New("s3: listing id is required")
	}
	ext := strings.ToLower(path.Ext(fileName))
	contentType, ok := photoContentTypes[ext]
	if !ok {
		return "", "", fmt.Errorf("%w: %q", ErrUnsupportedPhotoType, ext)
	}
	if size <= 0 || size > MaxPhotoBytes {
		return "", "", fmt.Errorf("%w: %d bytes", ErrPhotoTooLarge, size)
	}
	return fmt.Sprintf("listings/%s/%s%s", listingID, uuid.NewString(), ext), contentType, nil
}

// NoopUploader fails fast when S3 is unavailable.
type NoopUploader struct{}

func (NoopUploader) UploadListingPhoto(_ context.Context, _, _ string, _ io.Reader, _ int64) (string, error) {
	return "", errors.New("s3 uploader is not configured")
}

func (c *Client) ensureBucket(ctx context.Context) error {
	c.bucketInitOnce.Do(func() {
		exists, err := c.client.BucketExists(ctx, c.bucket)
		if err != nil {
			c.bucketInitErr = fmt.Errorf("s3: check bucket: %w", err)
			return
		}
		if exists {
			return
		}
		if err := c.client.MakeBucket(ctx, c.bucket, minio.MakeBucketOptions{}); err != nil {
			c.bucketInitErr = fmt.Errorf("s3: create bucket: %w", err)
			return
		}
		if err := c.allowPublicRead(ctx); err != nil {
			c.bucketInitErr = err
		}
	})
	return c.bucketInitErr
}

func (c *Client) allowPublicRead(ctx context.Context) error {
	policy := fmt.Sprintf(`{"Version":"2012-10-17","Statement":[{"Effect":"Allow","Principal":{"AWS":["*"]},"Action":["s3:GetObject"],"Resource":["arn:aws:s3:::%s/*"]}]}`, c.bucket)
	if err := c.client.SetBucketPolicy(ctx, c.bucket, policy); err != nil {
		return fmt.Errorf("s3: set bucket policy: %w", err)
	}
	return nil
}

func (c *Client) objectURL(key string) string {
	base := strings.TrimRight(c.publicBaseURL, "/")
	return fmt.Sprintf("%s/%s/%s", base, c.bucket, strings.TrimLeft(key, "/"))
}

func parseEndpoint(endpoint string) string {
	if parsed, err := url.Parse(endpoint); err == nil && parsed.Host != "" {
		return parsed.Host
	}
	return endpoint
}

var _ Uploader = (*Client)(nil)
var _ Uploader = NoopUploader{}
