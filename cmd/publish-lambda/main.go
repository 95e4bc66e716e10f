// Package main provides a Lambda entry point that publishes a stored campaign.
//
// The event names a campaign and, optionally, the platforms to publish to.
// Assets are read from the media bucket through presigned URLs, so the
// function needs no local disk or ffmpeg. Per-platform failures are returned
// in the report, not as a Lambda error, so a partial success is never retried
// as a whole.
package main

import (
	"context"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/rs/zerolog/log"

	"github.com/fpang/prachar/internal/gateway"
	"github.com/fpang/prachar/internal/lambdaboot"
	"github.com/fpang/prachar/internal/logging"
	"github.com/fpang/prachar/internal/s3util"
)

var coldStart = true

var h *handler

func init() {
	initStart := time.Now()
	logging.Init()
	ctx := context.Background()

	clients, awsOK := lambdaboot.InitAWS(ctx)
	cfg := lambdaboot.LoadConfig(ctx, clients, awsOK)
	bucket := lambdaboot.InitBucket(clients, awsOK, cfg.MediaBucket)
	gw := lambdaboot.BuildGateway(cfg, bucket, gateway.Options{Metrics: os.Stdout})

	h = &handler{
		store:     lambdaboot.InitStore(clients, awsOK, cfg.CampaignTable),
		publisher: gw,
		notifier:  lambdaboot.InitEmitter(clients, awsOK, cfg.EventBus),
	}
	if bucket != nil {
		h.assetURL = func(ctx context.Context, campaignID, asset string) (string, error) {
			return bucket.PresignedURL(ctx, s3util.AssetKey(campaignID, asset))
		}
	}

	lambdaboot.StartupLog("publish-lambda", initStart, cfg).
		Log()
}

func main() {
	lambda.Start(func(ctx context.Context, event PublishEvent) (*PublishResult, error) {
		if coldStart {
			coldStart = false
			log.Info().Str("function", "publish-lambda").Msg("Cold start, first invocation")
		}
		return h.handle(ctx, event)
	})
}
