package main

import (
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/fpang/prachar/internal/campaign"
	"github.com/fpang/prachar/internal/config"
	"github.com/fpang/prachar/internal/enhance"
	"github.com/fpang/prachar/internal/instagram"
	"github.com/fpang/prachar/internal/media"
	"github.com/fpang/prachar/internal/reel"
)

var (
	reelEnhanceFlag bool
	reelSecondsFlag float64
	reelOutputFlag  string
	enhanceModel    string
	metricNames     []string
	validateKind    string
)

var reelCmd = &cobra.Command{
	Use:   "reel <campaign-dir>",
	Short: "Render a 9:16 slideshow reel from the campaign images",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		dir := args[0]
		if err := reel.CheckFFmpegAvailable(); err != nil {
			return err
		}
		doc, err := campaign.LoadDir(dir)
		if err != nil {
			return err
		}
		refs, err := media.Resolve(dir, doc.Assets, doc.HeadIndex, media.ResolveOptions{ImagesOnly: true})
		if err != nil {
			return err
		}
		images := make([]string, len(refs))
		for i, r := range refs {
			images[i] = r.Path()
		}

		if reelEnhanceFlag {
			e := loadEnv(ctx)
			enh, err := newEnhancer(cmd, e.cfg)
			if err != nil {
				return err
			}
			images = enh.EnhanceFiles(ctx, images)
		}

		output := reelOutputFlag
		if output == "" {
			output = filepath.Join(dir, "reel.mp4")
		}
		start := time.Now()
		if err := reel.Render(ctx, images, output, reel.Options{SecondsPerImage: reelSecondsFlag}); err != nil {
			return err
		}
		log.Info().Str("output", output).Int("images", len(images)).Dur("duration", time.Since(start)).Msg("Reel rendered")
		fmt.Println(output)
		return nil
	},
}

var enhanceCmd = &cobra.Command{
	Use:   "enhance <image>...",
	Short: "Write enhanced_ copies of images with Gemini",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		enh, err := newEnhancer(cmd, loadEnv(ctx).cfg)
		if err != nil {
			return err
		}
		for i, out := range enh.EnhanceFiles(ctx, args) {
			status := "enhanced"
			if out == args[i] {
				status = "unchanged"
			}
			fmt.Printf("%s -> %s (%s)\n", args[i], out, status)
		}
		return nil
	},
}

func newEnhancer(cmd *cobra.Command, cfg *config.Config) (*enhance.Enhancer, error) {
	if err := cfg.RequireGemini(); err != nil {
		return nil, err
	}
	enh, err := enhance.NewEnhancer(cmd.Context(), cfg.GeminiAPIKey)
	if err != nil {
		return nil, err
	}
	if enhanceModel != "" {
		enh = enh.WithModel(enhanceModel)
	}
	return enh, nil
}

var insightsCmd = &cobra.Command{
	Use:   "insights <media-id>",
	Short: "Print performance metrics for a published Instagram media",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cfg := loadEnv(ctx).cfg
		if err := cfg.RequireInstagram(); err != nil {
			return err
		}
		values, err := instagramClient(cfg).Insights(ctx, args[0], metricNames)
		if err != nil {
			return err
		}
		names := make([]string, 0, len(values))
		for n := range values {
			names = append(names, n)
		}
		sort.Strings(names)
		for _, n := range names {
			fmt.Printf("%-16s %d\n", n, values[n])
		}
		return nil
	},
}

var validateURLCmd = &cobra.Command{
	Use:   "validate-url <url>",
	Short: "Check that Instagram can fetch a media URL",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind := media.Kind(validateKind)
		if kind != media.KindImage && kind != media.KindVideo {
			return fmt.Errorf("unknown kind %q, want image or video", validateKind)
		}
		c := instagram.NewClient(instagram.Credentials{})
		if !c.ValidateMediaURL(cmd.Context(), args[0], kind) {
			return fmt.Errorf("%s is not a valid %s URL for Instagram", args[0], kind)
		}
		fmt.Println("ok")
		return nil
	},
}

var instagramTokenCmd = &cobra.Command{
	Use:   "instagram-token <short-lived-token>",
	Short: "Exchange a short-lived Instagram user token for a long-lived one",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cfg := loadEnv(ctx).cfg
		if err := cfg.RequireInstagramApp(); err != nil {
			return err
		}
		res, err := instagramClient(cfg).ExchangeLongLivedToken(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Println(res.AccessToken)
		if res.ExpiresIn > 0 {
			fmt.Printf("expires %s\n", time.Now().Add(time.Duration(res.ExpiresIn)*time.Second).Format(time.RFC3339))
		}
		fmt.Printf("store it in SSM as %s\n", cfg.SSMParam("instagram-access-token"))
		return nil
	},
}

func instagramClient(cfg *config.Config) *instagram.Client {
	return instagram.NewClient(instagram.Credentials{
		AccessToken: cfg.InstagramAccessToken,
		UserID:      cfg.InstagramUserID,
		AppID:       cfg.InstagramAppID,
		AppSecret:   cfg.InstagramAppSecret,
	})
}

func init() {
	reelCmd.Flags().BoolVar(&reelEnhanceFlag, "enhance", false, "Enhance images with Gemini before rendering")
	reelCmd.Flags().Float64Var(&reelSecondsFlag, "seconds", reel.DefaultSecondsPerImage, "Seconds each image is shown")
	reelCmd.Flags().StringVar(&reelOutputFlag, "out", "", "Output path (default: <campaign-dir>/reel.mp4)")
	for _, c := range []*cobra.Command{reelCmd, enhanceCmd} {
		c.Flags().StringVar(&enhanceModel, "model", enhance.DefaultModel, "Gemini image model")
	}
	insightsCmd.Flags().StringSliceVar(&metricNames, "metric", nil, "Metrics to fetch (default: all)")
	validateURLCmd.Flags().StringVar(&validateKind, "kind", string(media.KindImage), "Media kind: image or video")
}
