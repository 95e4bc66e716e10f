// Package enhance improves product photos with a Gemini image model before
// they are published. Enhancement is best effort: any failure leaves the
// original image in place.
package enhance

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"google.golang.org/genai"

	"github.com/fpang/prachar/internal/media"
)

// DefaultModel is the Gemini image model used for enhancement.
const DefaultModel = "gemini-2.5-flash-image"

// DefaultPrompt asks for a marketplace-ready product photo without changing the product.
const DefaultPrompt = "Enhance this artisan product photo for social media marketing. " +
	"Improve lighting, color balance, and sharpness, and clean up the background. " +
	"Keep the product itself, its colors, patterns, and proportions exactly as they are. " +
	"Return only the edited image."

// EnhancedPrefix is prepended to the file name of enhanced images. Asset
// scans skip files carrying it.
const EnhancedPrefix = media.DerivedPrefix

// ErrNoImage is returned when the model answers without image data.
var ErrNoImage = errors.New("model returned no image")

// contentGenerator is the part of genai.Models used here.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Enhancer edits images through a Gemini image model.
type Enhancer struct {
	models contentGenerator
	model  string
	prompt string
}

// NewEnhancer creates a Gemini API client for apiKey.
func NewEnhancer(ctx context.Context, apiKey string) (*Enhancer, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create Gemini client: %w", err)
	}
	return newEnhancer(client.Models), nil
}

func newEnhancer(models contentGenerator) *Enhancer {
	return &Enhancer{models: models, model: DefaultModel, prompt: DefaultPrompt}
}

// WithModel overrides the image model.
func (e *Enhancer) WithModel(model string) *Enhancer {
	if model != "" {
		e.model = model
	}
	return e
}

// Enhance sends one image and returns the edited image bytes and MIME type.
func (e *Enhancer) Enhance(ctx context.Context, data []byte, mimeType string) ([]byte, string, error) {
	contents := []*genai.Content{{
		Role: genai.RoleUser,
		Parts: []*genai.Part{
			{InlineData: &genai.Blob{MIMEType: mimeType, Data: data}},
			{Text: e.prompt},
		},
	}}
	config := &genai.GenerateContentConfig{
		ResponseModalities: []string{"TEXT", "IMAGE"},
	}

	start := time.Now()
	resp, err := e.models.GenerateContent(ctx, e.model, contents, config)
	if err != nil {
		return nil, "", fmt.Errorf("generate content: %w", err)
	}
	if resp == nil {
		return nil, "", ErrNoImage
	}
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part.InlineData != nil && len(part.InlineData.Data) > 0 {
				log.Debug().
					Str("model", e.model).
					Int("input_bytes", len(data)).
					Int("output_bytes", len(part.InlineData.Data)).
					Dur("duration", time.Since(start)).
					Msg("Image enhanced")
				return part.InlineData.Data, part.InlineData.MIMEType, nil
			}
		}
	}
	return nil, "", ErrNoImage
}

// EnhanceFile enhances the image at path and writes enhanced_{name} next to
// it, with the extension of the returned image format, and returns the new path. On any failure it logs a warning and returns
// the original path so the pipeline can continue.
func (e *Enhancer) EnhanceFile(ctx context.Context, path string) string {
	out, err := e.enhanceFile(ctx, path)
	if err != nil {
		log.Warn().Err(err).Str("path", path).Msg("Image enhancement failed, using original")
		return path
	}
	log.Info().Str("path", path).Str("enhanced_path", out).Msg("Enhanced image written")
	return out
}

func (e *Enhancer) enhanceFile(ctx context.Context, path string) (string, error) {
	mimeType, err := media.GetMIMEType(filepath.Ext(path))
	if err != nil || !media.IsImage(filepath.Ext(path)) {
		return "", fmt.Errorf("not an image: %s", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read image: %w", err)
	}
	enhanced, outMIME, err := e.Enhance(ctx, data, mimeType)
	if err != nil {
		return "", err
	}
	// The model may answer in another format than it was sent.
	base := filepath.Base(path)
	if ext, ok := media.ExtForMIME(outMIME); ok && media.IsImage(ext) {
		base = strings.TrimSuffix(base, filepath.Ext(base)) + ext
	}
	out := filepath.Join(filepath.Dir(path), EnhancedPrefix+base)
	if err := os.WriteFile(out, enhanced, 0o644); err != nil {
		return "", fmt.Errorf("write enhanced image: %w", err)
	}
	return out, nil
}

// EnhanceFiles enhances each image in order, keeping originals for failures.
func (e *Enhancer) EnhanceFiles(ctx context.Context, paths []string) []string {
	out := make([]string, len(paths))
	for i, p := range paths {
		out[i] = e.EnhanceFile(ctx, p)
	}
	return out
}
