package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/fpang/prachar/internal/campaign"
	"github.com/fpang/prachar/internal/caption"
	"github.com/fpang/prachar/internal/gateway"
	"github.com/fpang/prachar/internal/lambdaboot"
	"github.com/fpang/prachar/internal/publish"
	"github.com/fpang/prachar/internal/s3util"
	"github.com/fpang/prachar/internal/store"
)

var (
	platformFlags  []string
	sequentialFlag bool
	dryRunFlag     bool
	metricsFlag    bool
)

var publishCmd = &cobra.Command{
	Use:   "publish <campaign-dir>",
	Short: "Publish a campaign directory",
	Args:  cobra.ExactArgs(1),
	RunE:  runPublish,
}

var publishStoredCmd = &cobra.Command{
	Use:   "publish-stored <campaign-id>",
	Short: "Publish a campaign from the campaign table",
	Args:  cobra.ExactArgs(1),
	RunE:  runPublishStored,
}

var captionCmd = &cobra.Command{
	Use:   "caption <campaign-dir>",
	Short: "Print the caption each platform would receive",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		doc, err := campaign.LoadDir(args[0])
		if err != nil {
			return err
		}
		printCaptions(doc.Metadata())
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{publishCmd, publishStoredCmd} {
		c.Flags().StringSliceVar(&platformFlags, "platforms", nil, "Comma-separated platforms to publish to (default: all configured)")
		c.Flags().BoolVar(&sequentialFlag, "sequential", false, "Publish platforms one after another")
		c.Flags().BoolVar(&metricsFlag, "metrics", false, "Write EMF metric lines to stdout")
	}
	publishCmd.Flags().BoolVar(&dryRunFlag, "dry-run", false, "Resolve media and print captions without publishing")
}

func parsePlatforms(names []string) ([]campaign.Platform, error) {
	out := make([]campaign.Platform, 0, len(names))
	for _, n := range names {
		p, err := campaign.ParsePlatform(n)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func printCaptions(meta campaign.Metadata) {
	for _, p := range campaign.AllPlatforms {
		fmt.Println("============================================")
		fmt.Printf("%s caption\n", p)
		fmt.Println("============================================")
		fmt.Println(caption.Build(meta, p))
		fmt.Println()
	}
}

func gatewayOptions() gateway.Options {
	opts := gateway.Options{Sequential: sequentialFlag}
	if metricsFlag {
		opts.Metrics = os.Stdout
	}
	return opts
}

func runPublish(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	dir := args[0]
	platforms, err := parsePlatforms(platformFlags)
	if err != nil {
		return err
	}

	doc, err := campaign.LoadDir(dir)
	if err != nil {
		return err
	}
	req, err := gateway.RequestFromDocument(doc, dir)
	if err != nil {
		return err
	}

	log.Info().
		Str("campaign_id", req.Metadata.ID).
		Int("media", len(req.Media)).
		Str("head", req.Media[0].Name()).
		Msg("Campaign resolved")

	if dryRunFlag {
		for i, ref := range req.Media {
			fmt.Printf("%2d. %s\n", i+1, ref)
		}
		fmt.Println()
		printCaptions(req.Metadata)
		return nil
	}

	e := loadEnv(ctx)
	gw := lambdaboot.BuildGateway(e.cfg, e.bucket, gatewayOptions())
	return reportOutcome(gw.PublishCampaign(ctx, req, platforms))
}

func runPublishStored(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	platforms, err := parsePlatforms(platformFlags)
	if err != nil {
		return err
	}

	e := loadEnv(ctx)
	st := lambdaboot.InitStore(e.clients, e.awsOK, e.cfg.CampaignTable)
	rec, err := st.GetCampaign(ctx, args[0])
	if err != nil {
		return err
	}
	if rec == nil {
		return fmt.Errorf("campaign %s: %w", args[0], store.ErrNotFound)
	}

	req, err := storedRequest(ctx, rec, e.bucket)
	if err != nil {
		return err
	}

	gw := lambdaboot.BuildGateway(e.cfg, e.bucket, gatewayOptions())
	emitter := lambdaboot.InitEmitter(e.clients, e.awsOK, e.cfg.EventBus)
	report, err := publishClaimed(ctx, st, gw, emitter, rec.ID, req, platforms)
	if err != nil {
		return err
	}
	return reportOutcome(report)
}

type campaignPublisher interface {
	PublishCampaign(ctx context.Context, req gateway.Request, platforms []campaign.Platform) *publish.Report
}

type publishNotifier interface {
	PublishCompleted(ctx context.Context, report *publish.Report) error
}

// publishClaimed claims a stored campaign, publishes it and records the
// outcome. A campaign that is already publishing or published is left alone
// and reported as store.ErrConflict.
func publishClaimed(ctx context.Context, st store.CampaignStore, pub campaignPublisher, notifier publishNotifier, id string, req gateway.Request, platforms []campaign.Platform) (*publish.Report, error) {
	if err := store.ClaimForPublish(ctx, st, id); err != nil {
		return nil, err
	}
	report := pub.PublishCampaign(ctx, req, platforms)
	if err := st.PutPublishReport(ctx, report); err != nil {
		log.Error().Err(err).Msg("Failed to store publish report")
	}
	if err := st.UpdateCampaign(ctx, id, store.Update{
		Status: report.State.CampaignStatus(),
		Error:  report.ErrorSummary(),
	}); err != nil {
		log.Error().Err(err).Msg("Failed to update campaign status")
	}
	if err := notifier.PublishCompleted(ctx, report); err != nil {
		log.Warn().Err(err).Msg("Failed to emit publish event")
	}
	return report, nil
}

// storedRequest prefers the campaign's local directory and falls back to
// presigned bucket URLs.
func storedRequest(ctx context.Context, rec *campaign.Record, bucket *s3util.Bucket) (gateway.Request, error) {
	if rec.Dir != "" {
		if _, err := os.Stat(rec.Dir); err == nil {
			return gateway.RequestFromDocument(&rec.Document, rec.Dir)
		}
	}
	return gateway.RequestFromRemoteAssets(ctx, &rec.Document, func(ctx context.Context, asset string) (string, error) {
		if bucket == nil {
			return "", fmt.Errorf("no local directory and no media bucket for %s", asset)
		}
		return bucket.PresignedURL(ctx, s3util.AssetKey(rec.ID, asset))
	})
}

func reportOutcome(report *publish.Report) error {
	printJSON(report)
	if report.State == publish.StatePublished {
		return nil
	}
	return fmt.Errorf("publish %s: %s", report.State, report.ErrorSummary())
}
