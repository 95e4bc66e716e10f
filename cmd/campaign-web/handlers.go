package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fpang/prachar/internal/campaign"
	"github.com/fpang/prachar/internal/gateway"
	"github.com/fpang/prachar/internal/media"
	"github.com/fpang/prachar/internal/reel"
	"github.com/fpang/prachar/internal/s3util"
	"github.com/fpang/prachar/internal/store"
)

func (s *server) handleRoot(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"message": "Prachar campaign API",
		"version": apiVersion,
		"status":  "active",
	})
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	list, err := s.store.ListCampaigns(r.Context())
	count := len(list)
	if err != nil {
		count = -1
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":         "healthy",
		"timestamp":      s.clock(),
		"campaignsCount": count,
		"platforms":      s.publisher.Platforms(),
		"apiVersion":     apiVersion,
	})
}

// --- Upload ---

type uploadResponse struct {
	CampaignID  string          `json:"campaignId"`
	Status      campaign.Status `json:"status"`
	ImagesCount int             `json:"imagesCount"`
}

func (s *server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		httpError(w, http.StatusBadRequest, "invalid multipart form: "+err.Error())
		return
	}
	files := r.MultipartForm.File["images"]
	if len(files) == 0 || len(files) > maxImages {
		httpError(w, http.StatusBadRequest, fmt.Sprintf("between 1 and %d images are required", maxImages))
		return
	}

	meta, headIndex, err := metadataFromForm(r, len(files))
	if err != nil {
		httpError(w, http.StatusBadRequest, err.Error())
		return
	}

	id := campaign.NewID()
	meta.ID = id
	dir := filepath.Join(s.campaignsDir, id)
	assets, err := saveImages(filepath.Join(dir, campaign.AssetsDir), files)
	if err != nil {
		os.RemoveAll(dir)
		status := http.StatusInternalServerError
		if errors.Is(err, errNotImage) {
			status = http.StatusBadRequest
		}
		httpError(w, status, err.Error())
		return
	}

	doc := campaign.Document{StandardMetadata: meta, Assets: assets, HeadIndex: headIndex}
	if err := campaign.WriteDir(dir, &doc); err != nil {
		os.RemoveAll(dir)
		httpError(w, http.StatusInternalServerError, err.Error())
		return
	}

	ctx := r.Context()
	if s.bucket != nil {
		for _, a := range assets {
			mimeType, _ := media.GetMIMEType(filepath.Ext(a))
			if err := s.bucket.PutFile(ctx, s3util.AssetKey(id, a), filepath.Join(dir, a), mimeType); err != nil {
				log.Error().Err(err).Str("campaign_id", id).Str("asset", a).Msg("Failed to upload asset")
				httpError(w, http.StatusBadGateway, "asset upload failed")
				return
			}
		}
	}

	rec := &campaign.Record{Document: doc, Status: campaign.StatusUploaded, Dir: dir}
	if err := s.store.PutCampaign(ctx, rec); err != nil {
		log.Error().Err(err).Str("campaign_id", id).Msg("Failed to store campaign")
		httpError(w, http.StatusInternalServerError, "failed to store campaign")
		return
	}

	log.Info().Str("campaign_id", id).Int("images", len(assets)).Msg("Campaign uploaded")
	respondJSON(w, http.StatusCreated, uploadResponse{CampaignID: id, Status: rec.Status, ImagesCount: len(assets)})
}

var errNotImage = errors.New("not an image")

func metadataFromForm(r *http.Request, imageCount int) (campaign.StandardMetadata, *int, error) {
	field := func(k string) string { return strings.TrimSpace(r.FormValue(k)) }

	meta := campaign.StandardMetadata{
		Hashtags: campaign.SplitHashtags(field("hashtags")),
	}
	if en, hi := field("title_en"), field("title_hi"); en != "" || hi != "" {
		meta.Titles = &campaign.Titles{EN: en, HI: hi}
	}
	if d := field("description_hi"); d != "" {
		meta.Description = &campaign.Description{HI: d}
	}
	wa := field("cta_whatsapp")
	if wa == "" {
		wa = field("whatsapp_link")
	}
	if wa != "" {
		meta.CTA = &campaign.CTA{WhatsApp: wa}
	}

	low, err := parseAmount(field("price_low"))
	if err != nil {
		return meta, nil, fmt.Errorf("price_low: %w", err)
	}
	high, err := parseAmount(field("price_high"))
	if err != nil {
		return meta, nil, fmt.Errorf("price_high: %w", err)
	}
	if low > 0 || high > 0 {
		meta.Price = &campaign.Price{Low: campaign.Amount(low), High: campaign.Amount(high), Currency: campaign.DefaultCurrency}
	}

	var headIndex *int
	if v := field("head_index"); v != "" {
		i, err := strconv.Atoi(v)
		if err != nil || i < 0 || i >= imageCount {
			return meta, nil, fmt.Errorf("head_index must be between 0 and %d", imageCount-1)
		}
		headIndex = &i
	}
	return meta, headIndex, nil
}

func parseAmount(s string) (float64, error) {
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("invalid amount %q", s)
	}
	return v, nil
}

// saveImages writes uploads as img{i}{ext} and returns their campaign-relative paths.
func saveImages(assetsDir string, files []*multipart.FileHeader) ([]string, error) {
	if err := os.MkdirAll(assetsDir, 0o755); err != nil {
		return nil, fmt.Errorf("create assets dir: %w", err)
	}
	assets := make([]string, 0, len(files))
	for i, fh := range files {
		if ct := fh.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "image/") {
			return nil, fmt.Errorf("file %s is %w", fh.Filename, errNotImage)
		}
		ext := strings.ToLower(filepath.Ext(fh.Filename))
		if ext == "" {
			ext = ".jpg"
		}
		if !media.IsImage(ext) {
			return nil, fmt.Errorf("file %s is %w", fh.Filename, errNotImage)
		}
		name := fmt.Sprintf("img%d%s", i+1, ext)
		if err := saveUpload(fh, filepath.Join(assetsDir, name)); err != nil {
			return nil, err
		}
		assets = append(assets, filepath.ToSlash(filepath.Join(campaign.AssetsDir, name)))
	}
	return assets, nil
}

func saveUpload(fh *multipart.FileHeader, dst string) error {
	src, err := fh.Open()
	if err != nil {
		return fmt.Errorf("open upload %s: %w", fh.Filename, err)
	}
	defer src.Close()
	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create %s: %w", dst, err)
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		return fmt.Errorf("save %s: %w", fh.Filename, err)
	}
	return out.Close()
}

// --- Reel ---

func (s *server) loadCampaign(w http.ResponseWriter, r *http.Request) (*campaign.Record, bool) {
	id := r.PathValue("id")
	if !validCampaignID(id) {
		httpError(w, http.StatusBadRequest, "invalid campaign id")
		return nil, false
	}
	rec, err := s.store.GetCampaign(r.Context(), id)
	if err != nil {
		log.Error().Err(err).Str("campaign_id", id).Msg("Failed to load campaign")
		httpError(w, http.StatusInternalServerError, "failed to load campaign")
		return nil, false
	}
	if rec == nil {
		httpError(w, http.StatusNotFound, "Campaign not found")
		return nil, false
	}
	return rec, true
}

func (s *server) handleCreateReel(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.loadCampaign(w, r)
	if !ok {
		return
	}
	if rec.Status != campaign.StatusUploaded {
		httpError(w, http.StatusConflict, fmt.Sprintf("Campaign status is %s, expected 'uploaded'", rec.Status))
		return
	}

	// Rendering outlives a dropped client connection.
	ctx := context.WithoutCancel(r.Context())
	logger := log.With().Str("campaign_id", rec.ID).Logger()
	if err := s.store.UpdateCampaign(ctx, rec.ID, store.Update{Status: campaign.StatusProcessing}); err != nil {
		httpError(w, http.StatusInternalServerError, "failed to update campaign")
		return
	}

	fail := func(status int, err error) {
		logger.Error().Err(err).Msg("Reel generation failed")
		s.store.UpdateCampaign(ctx, rec.ID, store.Update{Status: campaign.StatusError, Error: err.Error()})
		httpError(w, status, "Reel generation failed: "+err.Error())
	}

	refs, err := media.Resolve(rec.Dir, rec.Assets, rec.HeadIndex, media.ResolveOptions{ImagesOnly: true})
	if err != nil {
		fail(http.StatusUnprocessableEntity, err)
		return
	}
	images := make([]string, 0, len(refs))
	for _, ref := range refs {
		images = append(images, ref.Path())
	}
	enhanced := 0
	if s.enhancer != nil {
		out := s.enhancer.EnhanceFiles(ctx, images)
		for i := range out {
			if out[i] != images[i] {
				enhanced++
			}
		}
		images = out
	}

	output := filepath.Join(rec.Dir, reelFile)
	if err := s.render(ctx, images, output, reel.Options{}); err != nil {
		fail(http.StatusInternalServerError, err)
		return
	}
	if s.bucket != nil {
		if err := s.bucket.PutFile(ctx, s3util.AssetKey(rec.ID, reelFile), output, "video/mp4"); err != nil {
			fail(http.StatusBadGateway, err)
			return
		}
	}

	if err := s.store.UpdateCampaign(ctx, rec.ID, store.Update{Status: campaign.StatusReady, ReelKey: reelFile}); err != nil {
		httpError(w, http.StatusInternalServerError, "failed to update campaign")
		return
	}
	logger.Info().Int("images", len(images)).Int("enhanced", enhanced).Msg("Reel created")
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"campaignId":          rec.ID,
		"status":              campaign.StatusReady,
		"reelKey":             reelFile,
		"enhancedImagesCount": enhanced,
	})
}

// --- Publish ---

type publishRequest struct {
	Platforms []string `json:"platforms"`
}

func (s *server) handlePublish(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.loadCampaign(w, r)
	if !ok {
		return
	}
	if !slices.Contains(store.PublishableStatuses, rec.Status) {
		httpError(w, http.StatusConflict, fmt.Sprintf("Campaign status is %s, expected 'ready' or 'uploaded'", rec.Status))
		return
	}

	var body publishRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		httpError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	platforms := make([]campaign.Platform, 0, len(body.Platforms))
	for _, name := range body.Platforms {
		p, err := campaign.ParsePlatform(name)
		if err != nil {
			httpError(w, http.StatusBadRequest, err.Error())
			return
		}
		platforms = append(platforms, p)
	}

	// A partially sent thread is worse than a slow response.
	ctx := context.WithoutCancel(r.Context())
	req, err := gateway.RequestFromDocument(&rec.Document, rec.Dir)
	if err != nil {
		// Empty media still yields one NoUsableMedia result per platform.
		log.Warn().Err(err).Str("campaign_id", rec.ID).Msg("No usable media for campaign")
		req = gateway.Request{Metadata: rec.Metadata()}
	}

	// The status check above is advisory; the claim is what keeps two
	// instances from posting the same campaign.
	if err := store.ClaimForPublish(ctx, s.store, rec.ID); err != nil {
		switch {
		case errors.Is(err, store.ErrConflict):
			httpError(w, http.StatusConflict, "Campaign is already being published or was published")
		case errors.Is(err, store.ErrNotFound):
			httpError(w, http.StatusNotFound, "Campaign not found")
		default:
			log.Error().Err(err).Str("campaign_id", rec.ID).Msg("Failed to claim campaign")
			httpError(w, http.StatusInternalServerError, "failed to update campaign")
		}
		return
	}
	report := s.publisher.PublishCampaign(ctx, req, platforms)

	if !report.Shared {
		if err := s.store.PutPublishReport(ctx, report); err != nil {
			log.Error().Err(err).Str("campaign_id", rec.ID).Msg("Failed to store publish report")
		}
		if err := s.store.UpdateCampaign(ctx, rec.ID, store.Update{
			Status: report.State.CampaignStatus(),
			Error:  report.ErrorSummary(),
		}); err != nil {
			log.Error().Err(err).Str("campaign_id", rec.ID).Msg("Failed to update campaign status")
		}
		if s.notifier != nil {
			if err := s.notifier.PublishCompleted(ctx, report); err != nil {
				log.Warn().Err(err).Str("campaign_id", rec.ID).Msg("Failed to emit publish event")
			}
		}
	}
	respondJSON(w, http.StatusOK, report)
}

// --- Read endpoints ---

func (s *server) handleGetCampaign(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.loadCampaign(w, r)
	if !ok {
		return
	}
	reports, err := s.store.ListPublishReports(r.Context(), rec.ID)
	if err != nil {
		log.Warn().Err(err).Str("campaign_id", rec.ID).Msg("Failed to load publish reports")
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"campaign":       rec,
		"publishReports": reports,
	})
}

type campaignSummary struct {
	ID          string          `json:"id"`
	Status      campaign.Status `json:"status"`
	Title       string          `json:"title,omitempty"`
	ImagesCount int             `json:"imagesCount"`
	CreatedAt   time.Time       `json:"createdAt"`
}

func (s *server) handleListCampaigns(w http.ResponseWriter, r *http.Request) {
	list, err := s.store.ListCampaigns(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to list campaigns")
		httpError(w, http.StatusInternalServerError, "failed to list campaigns")
		return
	}
	out := make([]campaignSummary, 0, len(list))
	for _, rec := range list {
		out = append(out, campaignSummary{
			ID:          rec.ID,
			Status:      rec.Status,
			Title:       rec.Metadata().Titles.EN,
			ImagesCount: len(rec.Assets),
			CreatedAt:   rec.CreatedAt,
		})
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"campaigns": out})
}

func (s *server) handleDownloadReel(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.loadCampaign(w, r)
	if !ok {
		return
	}
	if rec.ReelKey == "" || containsPathTraversal(rec.ReelKey) {
		httpError(w, http.StatusNotFound, "Reel not found or not yet generated")
		return
	}

	local := filepath.Join(rec.Dir, rec.ReelKey)
	if _, err := os.Stat(local); err == nil {
		w.Header().Set("Content-Type", "video/mp4")
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s_reel.mp4"`, rec.ID))
		http.ServeFile(w, r, local)
		return
	}
	if s.bucket != nil {
		url, err := s.bucket.PresignedURL(r.Context(), s3util.AssetKey(rec.ID, rec.ReelKey))
		if err == nil {
			http.Redirect(w, r, url, http.StatusFound)
			return
		}
		log.Warn().Err(err).Str("campaign_id", rec.ID).Msg("Failed to presign reel")
	}
	httpError(w, http.StatusNotFound, "Reel not found or not yet generated")
}
