// Command campaign-web serves the campaign workflow API: upload a campaign,
// render its reel, publish it, and inspect the results. It runs as a local
// HTTP server or, under AWS Lambda, behind an API Gateway v2 proxy.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/awslabs/aws-lambda-go-api-proxy/httpadapter"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/fpang/prachar/internal/enhance"
	"github.com/fpang/prachar/internal/gateway"
	"github.com/fpang/prachar/internal/lambdaboot"
	"github.com/fpang/prachar/internal/logging"
	"github.com/fpang/prachar/internal/reel"
	"github.com/fpang/prachar/internal/webhook"
)

// Set via -ldflags at build time.
var (
	commitHash string
	buildTime  string
)

var (
	portFlag       int
	sequentialFlag bool
)

var rootCmd = &cobra.Command{
	Use:   "campaign-web",
	Short: "Campaign upload, reel, and publish API",
	Long: `Campaign Web serves the artisan campaign workflow over HTTP.

Examples:
  campaign-web
  campaign-web --port 9090
  campaign-web --sequential`,
	SilenceUsage: true,
	RunE:         runMain,
}

func init() {
	rootCmd.Flags().IntVar(&portFlag, "port", 8080, "Port to listen on")
	rootCmd.Flags().BoolVar(&sequentialFlag, "sequential", false, "Publish platforms one after another")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runMain(cmd *cobra.Command, args []string) error {
	initStart := time.Now()
	logging.Init()
	ctx := context.Background()

	clients, awsOK := lambdaboot.InitAWS(ctx)
	cfg := lambdaboot.LoadConfig(ctx, clients, awsOK)
	bucket := lambdaboot.InitBucket(clients, awsOK, cfg.MediaBucket)

	srv := &server{
		store:        lambdaboot.InitStore(clients, awsOK, cfg.CampaignTable),
		publisher:    lambdaboot.BuildGateway(cfg, bucket, gateway.Options{Sequential: sequentialFlag, Metrics: os.Stdout}),
		campaignsDir: cfg.CampaignsDir,
		render:       reel.Render,
	}
	if bucket != nil {
		srv.bucket = bucket
	}
	if cfg.RequireGemini() == nil {
		e, err := enhance.NewEnhancer(ctx, cfg.GeminiAPIKey)
		if err != nil {
			log.Warn().Err(err).Msg("Image enhancement disabled")
		} else {
			srv.enhancer = e
		}
	}
	emitter := lambdaboot.InitEmitter(clients, awsOK, cfg.EventBus)
	srv.notifier = emitter
	if cfg.RequireWebhook() == nil {
		srv.webhook = webhook.NewHandler(cfg.WebhookVerifyToken, cfg.InstagramAppSecret, func(ctx context.Context, events []webhook.Event) error {
			webhook.LogSink(ctx, events)
			return emitter.Engagement(ctx, events)
		})
	}
	if err := os.MkdirAll(cfg.CampaignsDir, 0o755); err != nil {
		return fmt.Errorf("create campaigns dir: %w", err)
	}

	lambdaboot.StartupLog("campaign-web", initStart, cfg).
		CommitHash(commitHash).
		BuildTime(buildTime).
		Feature("reel", reel.CheckFFmpegAvailable() == nil).
		Feature("webhook", srv.webhook != nil).
		Log()

	handler := withLogging(withCORS(srv.routes()))

	if os.Getenv("AWS_LAMBDA_FUNCTION_NAME") != "" {
		adapter := httpadapter.NewV2(handler)
		lambda.Start(adapter.ProxyWithContext)
		return nil
	}
	return serve(handler, portFlag)
}

func serve(handler http.Handler, port int) error {
	httpSrv := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      handler,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 15 * time.Minute, // reel rendering and publish retries run inline
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info().Msg("Shutting down...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		httpSrv.Shutdown(ctx)
	}()

	log.Info().Int("port", port).Msg("Starting web server")
	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}
