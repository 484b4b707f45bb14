package objectstore

import (
	"context"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"mnemosyne/internal/adapters/config"
	"mnemosyne/pkg/errors"
)

// Client wraps a minio client bound to one bucket.
type Client struct {
	mc     *minio.Client
	bucket string
}

// NewClient connects to the object store and ensures the configured
// bucket exists. Bucket creation is create-if-absent so concurrent
// startups are safe.
func NewClient(ctx context.Context, cfg config.ObjectStoreConfig) (*Client, error) {
	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create object store client")
	}

	exists, err := mc.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrUnavailable, "failed to check bucket: %v", err)
	}
	if !exists {
		if err := mc.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			// Lost a creation race; the bucket existing is all that matters.
			exists, checkErr := mc.BucketExists(ctx, cfg.Bucket)
			if checkErr != nil || !exists {
				return nil, errors.Wrap(err, "failed to create bucket")
			}
		}
	}

	return &Client{mc: mc, bucket: cfg.Bucket}, nil
}

// Minio returns the underlying minio client.
func (c *Client) Minio() *minio.Client {
	return c.mc
}

// Bucket returns the bucket name the client is bound to.
func (c *Client) Bucket() string {
	return c.bucket
}
