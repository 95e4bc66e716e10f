package s3util

import (
	"bytes"
	"context"
	"fmt"
	"path"

	"github.com/google/uuid"

	"github.com/fpang/prachar/internal/media"
)

// StagingPrefix holds local and inline media copied up for Instagram to fetch.
const StagingPrefix = "staging"

// PublicURL implements instagram.URLSigner. Remote refs pass through; local
// files and inline payloads are staged under staging/{uuid}/ and returned as
// presigned URLs.
func (b *Bucket) PublicURL(ctx context.Context, ref media.Ref) (string, error) {
	switch ref.Source() {
	case media.SourceRemote:
		return ref.URL(), nil
	case media.SourceLocal:
		key := stagingKey(ref.Name())
		if err := b.PutFile(ctx, key, ref.Path(), ref.MIMEType()); err != nil {
			return "", err
		}
		return b.PresignedURL(ctx, key)
	case media.SourceInline:
		data, err := ref.Decode()
		if err != nil {
			return "", err
		}
		key := stagingKey("inline" + extFor(ref))
		if err := b.Put(ctx, key, bytes.NewReader(data), ref.MIMEType()); err != nil {
			return "", err
		}
		return b.PresignedURL(ctx, key)
	}
	return "", fmt.Errorf("unsupported media source %q", ref.Source())
}

func stagingKey(name string) string {
	return path.Join(StagingPrefix, uuid.NewString(), name)
}

func extFor(ref media.Ref) string {
	if ref.IsVideo() {
		return ".mp4"
	}
	switch ref.MIMEType() {
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	}
	return ".jpg"
}
