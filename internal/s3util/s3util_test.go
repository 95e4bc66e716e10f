package s3util

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/fpang/prachar/internal/media"
)

type fakeObjects struct {
	puts map[string][]byte
	tags map[string]string
}

func (f *fakeObjects) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, _ := io.ReadAll(in.Body)
	f.puts[*in.Key] = data
	if in.Tagging != nil {
		f.tags[*in.Key] = *in.Tagging
	}
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeObjects) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(f.puts[*in.Key]))}, nil
}

type fakePresigner struct {
	expires time.Duration
}

func (f *fakePresigner) PresignGetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	var opts s3.PresignOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	f.expires = opts.Expires
	return &v4.PresignedHTTPRequest{URL: "https://" + *in.Bucket + ".s3.example.com/" + *in.Key + "?X-Amz-Signature=x"}, nil
}

func newTestBucket() (*Bucket, *fakeObjects, *fakePresigner) {
	objects := &fakeObjects{puts: map[string][]byte{}, tags: map[string]string{}}
	presign := &fakePresigner{}
	return NewBucketWith(objects, presign, "media"), objects, presign
}

func TestAssetKey(t *testing.T) {
	if got := AssetKey("c1", "assets/img1.jpg"); got != "campaigns/c1/assets/img1.jpg" {
		t.Errorf("AssetKey = %s", got)
	}
}

func TestPutAndDownload(t *testing.T) {
	b, objects, _ := newTestBucket()
	ctx := context.Background()

	if err := b.Put(ctx, "k", strings.NewReader("hello"), "text/plain"); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if objects.tags["k"] != "Project=prachar" {
		t.Errorf("tagging = %q", objects.tags["k"])
	}

	out := filepath.Join(t.TempDir(), "out.txt")
	if err := b.DownloadToFile(ctx, "k", out); err != nil {
		t.Fatalf("DownloadToFile: %v", err)
	}
	data, _ := os.ReadFile(out)
	if string(data) != "hello" {
		t.Errorf("downloaded %q", data)
	}
}

func TestPublicURL(t *testing.T) {
	b, objects, presign := newTestBucket()
	ctx := context.Background()

	remote := media.RemoteURL("https://cdn.example.com/a.jpg", media.KindImage)
	if got, _ := b.PublicURL(ctx, remote); got != "https://cdn.example.com/a.jpg" {
		t.Errorf("remote URL = %s", got)
	}
	if len(objects.puts) != 0 {
		t.Error("remote refs must not be uploaded")
	}

	path := filepath.Join(t.TempDir(), "img1.jpg")
	os.WriteFile(path, []byte("jpeg"), 0o644)
	local, err := media.LocalFile(path)
	if err != nil {
		t.Fatal(err)
	}
	got, err := b.PublicURL(ctx, local)
	if err != nil {
		t.Fatalf("PublicURL: %v", err)
	}
	if !strings.Contains(got, "media.s3.example.com/staging/") || !strings.Contains(got, "/img1.jpg?") {
		t.Errorf("presigned URL = %s", got)
	}
	if len(objects.puts) != 1 {
		t.Fatalf("expected 1 staged object, got %d", len(objects.puts))
	}
	for key, data := range objects.puts {
		if !strings.HasPrefix(key, StagingPrefix+"/") || string(data) != "jpeg" {
			t.Errorf("staged %s = %q", key, data)
		}
	}
	if presign.expires != DefaultPresignExpiry {
		t.Errorf("expiry = %v, want %v", presign.expires, DefaultPresignExpiry)
	}

	inline, _ := media.InlineBase64("data:image/png;base64,aGVsbG8=", media.KindImage)
	got, err = b.PublicURL(ctx, inline)
	if err != nil {
		t.Fatalf("PublicURL inline: %v", err)
	}
	if !strings.HasSuffix(strings.Split(got, "?")[0], "inline.png") {
		t.Errorf("inline key should keep the png extension: %s", got)
	}
}
