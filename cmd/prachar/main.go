// Command prachar publishes artisan campaigns from the command line and
// exposes the supporting tools: reel rendering, image enhancement, Instagram
// insights, media URL checks and token exchange.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/fpang/prachar/internal/config"
	"github.com/fpang/prachar/internal/lambdaboot"
	"github.com/fpang/prachar/internal/logging"
	"github.com/fpang/prachar/internal/s3util"
)

var rootCmd = &cobra.Command{
	Use:   "prachar",
	Short: "Publish artisan campaigns to Telegram and Instagram",
	Long: `Prachar turns a campaign directory (metadata.json plus assets/) into a
Telegram thread and an Instagram post or carousel.

Examples:
  prachar publish ./campaigns/scarf-01
  prachar publish ./campaigns/scarf-01 --platforms telegram --dry-run
  prachar publish-stored 3f9a1c2e
  prachar reel ./campaigns/scarf-01 --enhance
  prachar insights 17895695668004550`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.Init()
	},
}

func init() {
	rootCmd.AddCommand(publishCmd, publishStoredCmd, captionCmd, reelCmd, enhanceCmd,
		insightsCmd, validateURLCmd, instagramTokenCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// env is the configuration and optional AWS collaborators shared by subcommands.
type env struct {
	cfg     *config.Config
	clients lambdaboot.AWSClients
	awsOK   bool
	bucket  *s3util.Bucket
}

func loadEnv(ctx context.Context) *env {
	clients, awsOK := lambdaboot.InitAWS(ctx)
	cfg := lambdaboot.LoadConfig(ctx, clients, awsOK)
	return &env{
		cfg:     cfg,
		clients: clients,
		awsOK:   awsOK,
		bucket:  lambdaboot.InitBucket(clients, awsOK, cfg.MediaBucket),
	}
}

func printJSON(v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		log.Error().Err(err).Msg("Failed to encode output")
		return
	}
	fmt.Println(string(data))
}
