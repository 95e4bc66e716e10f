package enhance

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"google.golang.org/genai"
)

type fakeModels struct {
	calls  int
	model  string
	resp   *genai.GenerateContentResponse
	err    error
	config *genai.GenerateContentConfig
}

func (f *fakeModels) GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.calls++
	f.model = model
	f.config = config
	return f.resp, f.err
}

func imageResponse(mimeType string, data []byte) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{
				{Text: "Here is the enhanced photo."},
				{InlineData: &genai.Blob{MIMEType: mimeType, Data: data}},
			}},
		}},
	}
}

func writeImage(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte("original"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestEnhanceFile_WritesEnhancedCopy(t *testing.T) {
	fake := &fakeModels{resp: imageResponse("image/jpeg", []byte("better"))}
	e := newEnhancer(fake)
	src := writeImage(t, "img1.jpg")

	got := e.EnhanceFile(context.Background(), src)

	want := filepath.Join(filepath.Dir(src), "enhanced_img1.jpg")
	if got != want {
		t.Errorf("EnhanceFile = %s, want %s", got, want)
	}
	data, _ := os.ReadFile(got)
	if string(data) != "better" {
		t.Errorf("enhanced content = %q", data)
	}
	if fake.model != DefaultModel {
		t.Errorf("model = %s, want %s", fake.model, DefaultModel)
	}
	if fake.config == nil || len(fake.config.ResponseModalities) != 2 {
		t.Error("expected image response modality to be requested")
	}
}

func TestEnhanceFile_NamesByReturnedFormat(t *testing.T) {
	tests := []struct {
		name     string
		mimeType string
		want     string
	}{
		{"png answer", "image/png", "enhanced_img1.png"},
		{"webp answer", "image/webp", "enhanced_img1.webp"},
		{"unknown answer", "application/octet-stream", "enhanced_img1.jpg"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := writeImage(t, "img1.jpg")
			got := newEnhancer(&fakeModels{resp: imageResponse(tt.mimeType, []byte("better"))}).EnhanceFile(context.Background(), src)
			if want := filepath.Join(filepath.Dir(src), tt.want); got != want {
				t.Errorf("EnhanceFile = %s, want %s", got, want)
			}
		})
	}
}

func TestEnhanceFile_FallsBackToOriginal(t *testing.T) {
	tests := []struct {
		name string
		fake *fakeModels
		file string
	}{
		{"api error", &fakeModels{err: errors.New("quota exceeded")}, "img.jpg"},
		{"text only answer", &fakeModels{resp: &genai.GenerateContentResponse{
			Candidates: []*genai.Candidate{{Content: &genai.Content{Parts: []*genai.Part{{Text: "cannot edit"}}}}},
		}}, "img.png"},
		{"nil response", &fakeModels{}, "img.webp"},
		{"not an image", &fakeModels{resp: imageResponse("image/png", []byte("x"))}, "clip.mp4"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := writeImage(t, tt.file)
			got := newEnhancer(tt.fake).EnhanceFile(context.Background(), src)
			if got != src {
				t.Errorf("EnhanceFile = %s, want original %s", got, src)
			}
			if _, err := os.Stat(filepath.Join(filepath.Dir(src), EnhancedPrefix+tt.file)); err == nil {
				t.Error("no enhanced file should be written on failure")
			}
		})
	}
}

func TestEnhance_NoImage(t *testing.T) {
	e := newEnhancer(&fakeModels{resp: &genai.GenerateContentResponse{}})
	if _, _, err := e.Enhance(context.Background(), []byte("x"), "image/jpeg"); !errors.Is(err, ErrNoImage) {
		t.Errorf("err = %v, want ErrNoImage", err)
	}
}

func TestEnhanceFiles_KeepsOrder(t *testing.T) {
	fake := &fakeModels{resp: imageResponse("image/jpeg", []byte("better"))}
	dir := t.TempDir()
	a := filepath.Join(dir, "a.jpg")
	b := filepath.Join(dir, "b.mov")
	os.WriteFile(a, []byte("a"), 0o644)
	os.WriteFile(b, []byte("b"), 0o644)

	got := newEnhancer(fake).WithModel("custom-image-model").EnhanceFiles(context.Background(), []string{a, b})

	if got[0] != filepath.Join(dir, "enhanced_a.jpg") || got[1] != b {
		t.Errorf("EnhanceFiles = %v", got)
	}
	if fake.calls != 1 || fake.model != "custom-image-model" {
		t.Errorf("calls = %d model = %s", fake.calls, fake.model)
	}
}
