// Package s3util wraps the campaign media bucket: asset uploads, downloads,
// and presigned URLs that let Instagram fetch local media.
package s3util

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"
)

// Open streams the object at key. The caller closes the reader.
func (b *Bucket) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	result, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &b.name, Key: &key,
	})
	if err != nil {
		return nil, fmt.Errorf("S3 GetObject %s: %w", key, err)
	}
	return result.Body, nil
}

// DownloadToFile downloads the object at key to localPath.
func (b *Bucket) DownloadToFile(ctx context.Context, key, localPath string) error {
	log.Debug().Str("bucket", b.name).Str("key", key).Str("localPath", localPath).Msg("Downloading from S3")
	body, err := b.Open(ctx, key)
	if err != nil {
		return err
	}
	defer body.Close()

	f, err := os.Create(localPath)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	if _, err := io.Copy(f, body); err != nil {
		f.Close()
		os.Remove(localPath)
		return fmt.Errorf("download %s: %w", key, err)
	}
	return f.Close()
}
