package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/fpang/prachar/internal/campaign"
	"github.com/fpang/prachar/internal/gateway"
	"github.com/fpang/prachar/internal/publish"
	"github.com/fpang/prachar/internal/store"
)

// PublishEvent is the Lambda input.
type PublishEvent struct {
	CampaignID string   `json:"campaignId"`
	Platforms  []string `json:"platforms,omitempty"`
}

// PublishResult is the Lambda output: the report plus the stored status.
type PublishResult struct {
	CampaignID string                       `json:"campaignId"`
	Status     campaign.Status              `json:"status"`
	Report     *publish.Report              `json:"report"`
	Errors     map[campaign.Platform]string `json:"errors,omitempty"`
}

type campaignPublisher interface {
	PublishCampaign(ctx context.Context, req gateway.Request, platforms []campaign.Platform) *publish.Report
}

type publishNotifier interface {
	PublishCompleted(ctx context.Context, report *publish.Report) error
}

type handler struct {
	store     store.CampaignStore
	publisher campaignPublisher
	notifier  publishNotifier
	// assetURL signs a stored asset. Nil when no media bucket is configured.
	assetURL func(ctx context.Context, campaignID, asset string) (string, error)
}

var errNoBucket = errors.New("media bucket not configured")

func (h *handler) handle(ctx context.Context, event PublishEvent) (*PublishResult, error) {
	logger := log.With().Str("campaignId", event.CampaignID).Logger()
	logger.Info().Strs("platforms", event.Platforms).Msg("Publish Lambda invoked")

	if strings.TrimSpace(event.CampaignID) == "" {
		return nil, fmt.Errorf("campaignId is required")
	}
	platforms := make([]campaign.Platform, 0, len(event.Platforms))
	for _, name := range event.Platforms {
		p, err := campaign.ParsePlatform(name)
		if err != nil {
			return nil, err
		}
		platforms = append(platforms, p)
	}

	rec, err := h.store.GetCampaign(ctx, event.CampaignID)
	if err != nil {
		return nil, fmt.Errorf("load campaign %s: %w", event.CampaignID, err)
	}
	if rec == nil {
		return nil, fmt.Errorf("campaign %s: %w", event.CampaignID, store.ErrNotFound)
	}

	req, err := gateway.RequestFromRemoteAssets(ctx, &rec.Document, func(ctx context.Context, asset string) (string, error) {
		if h.assetURL == nil {
			return "", errNoBucket
		}
		return h.assetURL(ctx, rec.ID, asset)
	})
	if err != nil {
		logger.Warn().Err(err).Msg("No usable media for campaign")
		req = gateway.Request{Metadata: rec.Metadata()}
	}

	// Duplicate deliveries of the same event must not post twice.
	if err := store.ClaimForPublish(ctx, h.store, rec.ID); err != nil {
		if errors.Is(err, store.ErrConflict) {
			logger.Warn().Err(err).Msg("Campaign not publishable, skipping")
		}
		return nil, fmt.Errorf("claim campaign: %w", err)
	}
	report := h.publisher.PublishCampaign(ctx, req, platforms)

	status := report.State.CampaignStatus()
	if err := h.store.PutPublishReport(ctx, report); err != nil {
		logger.Error().Err(err).Msg("Failed to store publish report")
	}
	errs := report.Errors()
	if err := h.store.UpdateCampaign(ctx, rec.ID, store.Update{Status: status, Error: report.ErrorSummary()}); err != nil {
		logger.Error().Err(err).Msg("Failed to update campaign status")
	}
	if h.notifier != nil {
		if err := h.notifier.PublishCompleted(ctx, report); err != nil {
			logger.Warn().Err(err).Msg("Failed to emit publish event")
		}
	}

	logger.Info().Str("state", string(report.State)).Int("failures", len(errs)).Msg("Publish complete")
	return &PublishResult{CampaignID: rec.ID, Status: status, Report: report, Errors: errs}, nil
}
