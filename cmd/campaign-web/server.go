package main

import (
	"context"
	"net/http"
	"time"

	"github.com/fpang/prachar/internal/campaign"
	"github.com/fpang/prachar/internal/gateway"
	"github.com/fpang/prachar/internal/publish"
	"github.com/fpang/prachar/internal/reel"
	"github.com/fpang/prachar/internal/store"
)

const (
	apiVersion     = "1.0.0"
	maxUploadBytes = 64 << 20
	maxImages      = 10
	reelFile       = "reel.mp4"
)

type campaignPublisher interface {
	PublishCampaign(ctx context.Context, req gateway.Request, platforms []campaign.Platform) *publish.Report
	Platforms() []campaign.Platform
}

type assetStore interface {
	PutFile(ctx context.Context, key, localPath, contentType string) error
	PresignedURL(ctx context.Context, key string) (string, error)
}

type imageEnhancer interface {
	EnhanceFiles(ctx context.Context, paths []string) []string
}

type publishNotifier interface {
	PublishCompleted(ctx context.Context, report *publish.Report) error
}

type renderFunc func(ctx context.Context, images []string, output string, opts reel.Options) error

// server holds the collaborators of the HTTP handlers. bucket, enhancer,
// notifier and webhook are optional.
type server struct {
	store        store.CampaignStore
	publisher    campaignPublisher
	bucket       assetStore
	enhancer     imageEnhancer
	notifier     publishNotifier
	render       renderFunc
	webhook      http.Handler
	campaignsDir string
	now          func() time.Time
}

func (s *server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /upload-campaign", s.handleUpload)
	mux.HandleFunc("POST /create-reel/{id}", s.handleCreateReel)
	mux.HandleFunc("POST /publish/{id}", s.handlePublish)
	mux.HandleFunc("GET /campaign/{id}", s.handleGetCampaign)
	mux.HandleFunc("GET /campaigns", s.handleListCampaigns)
	mux.HandleFunc("GET /download/{id}/reel", s.handleDownloadReel)
	if s.webhook != nil {
		mux.Handle("/webhook/instagram", s.webhook)
	}
	return mux
}

func (s *server) clock() time.Time {
	if s.now != nil {
		return s.now()
	}
	return time.Now().UTC()
}
