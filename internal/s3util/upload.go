package s3util

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"time"

	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"
)

// DefaultPresignExpiry is long enough for Instagram to fetch and process a reel.
const DefaultPresignExpiry = time.Hour

// CampaignPrefix is the key prefix for all campaign objects.
const CampaignPrefix = "campaigns"

// ObjectAPI is the subset of the S3 client used by Bucket.
type ObjectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Presigner is the subset of s3.PresignClient used by Bucket.
type Presigner interface {
	PresignGetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// Bucket wraps one media bucket.
type Bucket struct {
	client  ObjectAPI
	presign Presigner
	name    string
	expiry  time.Duration
}

// NewBucket creates a Bucket from an S3 client.
func NewBucket(client *s3.Client, name string) *Bucket {
	return NewBucketWith(client, s3.NewPresignClient(client), name)
}

// NewBucketWith creates a Bucket from explicit collaborators.
func NewBucketWith(client ObjectAPI, presign Presigner, name string) *Bucket {
	return &Bucket{client: client, presign: presign, name: name, expiry: DefaultPresignExpiry}
}

// Name returns the bucket name.
func (b *Bucket) Name() string { return b.name }

// AssetKey returns the object key of a campaign asset, e.g. campaigns/c1/assets/img1.jpg.
func AssetKey(campaignID, asset string) string {
	return path.Join(CampaignPrefix, campaignID, asset)
}

// Put uploads body under key with the project tag.
func (b *Bucket) Put(ctx context.Context, key string, body io.Reader, contentType string) error {
	in := &s3.PutObjectInput{
		Bucket:  &b.name,
		Key:     &key,
		Body:    body,
		Tagging: ProjectTagging(),
	}
	if contentType != "" {
		in.ContentType = &contentType
	}
	if _, err := b.client.PutObject(ctx, in); err != nil {
		return fmt.Errorf("S3 PutObject %s: %w", key, err)
	}
	log.Debug().Str("bucket", b.name).Str("key", key).Msg("Object uploaded to S3")
	return nil
}

// PutFile uploads a local file under key.
func (b *Bucket) PutFile(ctx context.Context, key, localPath, contentType string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("open %s: %w", localPath, err)
	}
	defer f.Close()
	return b.Put(ctx, key, f, contentType)
}

// PresignedURL creates a pre-signed GET URL for key.
func (b *Bucket) PresignedURL(ctx context.Context, key string) (string, error) {
	result, err := b.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: &b.name, Key: &key,
	}, func(opts *s3.PresignOptions) {
		opts.Expires = b.expiry
	})
	if err != nil {
		return "", fmt.Errorf("presign GetObject %s: %w", key, err)
	}
	return result.URL, nil
}
