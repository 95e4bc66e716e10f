// Package lambdaboot provides the shared startup composition for the web
// service, the CLI, and the publish Lambda: AWS clients, configuration,
// storage, and the publishing gateway.
package lambdaboot

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/rs/zerolog/log"

	"github.com/fpang/prachar/internal/campaign"
	"github.com/fpang/prachar/internal/config"
	"github.com/fpang/prachar/internal/events"
	"github.com/fpang/prachar/internal/gateway"
	"github.com/fpang/prachar/internal/instagram"
	"github.com/fpang/prachar/internal/logging"
	"github.com/fpang/prachar/internal/s3util"
	"github.com/fpang/prachar/internal/store"
	"github.com/fpang/prachar/internal/telegram"
)

// AWSClients holds the core AWS SDK clients.
type AWSClients struct {
	Config aws.Config
	SSM    *ssm.Client
}

// InitAWS loads the default AWS config. ok is false when no config could be
// loaded, in which case the caller runs without AWS services.
func InitAWS(ctx context.Context) (clients AWSClients, ok bool) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("AWS config not available, running without AWS services")
		return AWSClients{}, false
	}
	log.Debug().Str("region", cfg.Region).Msg("AWS config loaded")
	return AWSClients{Config: cfg, SSM: ssm.NewFromConfig(cfg)}, true
}

// LoadConfig loads configuration, filling missing secrets from SSM when
// AWS is available.
func LoadConfig(ctx context.Context, clients AWSClients, awsOK bool) *config.Config {
	var getter config.ParameterGetter
	if awsOK {
		getter = clients.SSM
	}
	cfg, err := config.Load(ctx, getter)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	return cfg
}

// InitStore returns a DynamoDB store when a table is configured, otherwise
// an in-memory store.
func InitStore(clients AWSClients, awsOK bool, table string) store.CampaignStore {
	if table == "" || !awsOK {
		log.Warn().Str("envVar", config.EnvCampaignTable).Msg("DynamoDB table not set, using in-memory campaign store")
		return store.NewMemoryStore()
	}
	return store.NewDynamoStore(dynamodb.NewFromConfig(clients.Config), table)
}

// InitBucket returns the media bucket, or nil when none is configured.
func InitBucket(clients AWSClients, awsOK bool, bucket string) *s3util.Bucket {
	if bucket == "" || !awsOK {
		log.Warn().Str("envVar", config.EnvMediaBucket).Msg("Media bucket not set, local media cannot be published to Instagram")
		return nil
	}
	return s3util.NewBucket(s3.NewFromConfig(clients.Config), bucket)
}

// InitEmitter returns an EventBridge emitter when a bus is configured. The
// nil result is a valid emitter that discards events.
func InitEmitter(clients AWSClients, awsOK bool, bus string) *events.Emitter {
	if bus == "" || !awsOK {
		log.Debug().Str("envVar", config.EnvEventBus).Msg("Event bus not set, publish events disabled")
		return nil
	}
	return events.NewEmitter(eventbridge.NewFromConfig(clients.Config), bus)
}

// BuildGateway registers a publisher for every platform whose credentials
// are present. Requests for other platforms fail with ConfigurationMissing.
func BuildGateway(cfg *config.Config, bucket *s3util.Bucket, opts gateway.Options) *gateway.Gateway {
	targets := make(map[campaign.Platform]gateway.Target)

	if err := cfg.RequireTelegram(); err == nil {
		pub := telegram.NewPublisher(telegram.NewClient(cfg.TelegramBotToken))
		targets[campaign.PlatformTelegram] = gateway.TelegramTarget(pub, cfg.TelegramChannelID)
	} else {
		log.Warn().Err(err).Msg("Telegram publishing disabled")
	}

	if err := cfg.RequireInstagram(); err == nil {
		client := instagram.NewClient(instagram.Credentials{
			AccessToken: cfg.InstagramAccessToken,
			UserID:      cfg.InstagramUserID,
			AppID:       cfg.InstagramAppID,
			AppSecret:   cfg.InstagramAppSecret,
		})
		pubOpts := []instagram.PublisherOption{
			instagram.WithURLValidation(cfg.InstagramValidateURLs),
			instagram.WithReelOptions(instagram.ReelOptions{
				ThumbOffsetMs: cfg.InstagramThumbOffsetMs,
				LocationID:    cfg.InstagramLocationID,
			}),
		}
		if bucket != nil {
			pubOpts = append(pubOpts, instagram.WithURLSigner(bucket))
		}
		targets[campaign.PlatformInstagram] = gateway.InstagramTarget(instagram.NewPublisher(client, pubOpts...))
		log.Info().Str("userId", cfg.InstagramUserID).Bool("validateUrls", cfg.InstagramValidateURLs).Msg("Instagram publisher initialized")
	} else {
		log.Warn().Err(err).Msg("Instagram publishing disabled")
	}

	opts.Sequential = opts.Sequential || !cfg.PublishConcurrent
	if opts.Breaker == (gateway.BreakerConfig{}) {
		opts.Breaker = gateway.DefaultBreakerConfig
	}
	return gateway.New(targets, opts)
}

// StartupLog summarizes cfg for the named service.
func StartupLog(name string, initStart time.Time, cfg *config.Config) *logging.StartupLogger {
	sl := logging.NewStartupLogger(name).
		InitDuration(time.Since(initStart)).
		Feature("telegram", cfg.RequireTelegram() == nil).
		Feature("instagram", cfg.RequireInstagram() == nil).
		Feature("enhance", cfg.RequireGemini() == nil).
		Feature("concurrentPublish", cfg.PublishConcurrent).
		Feature("instagramUrlValidation", cfg.InstagramValidateURLs).
		Config("campaignsDir", cfg.CampaignsDir).
		Config("ssmPrefix", cfg.SSMPrefix)
	if cfg.CampaignTable != "" {
		sl.DynamoTable("campaigns", cfg.CampaignTable)
	}
	if cfg.MediaBucket != "" {
		sl.S3Bucket("media", cfg.MediaBucket)
	}
	if cfg.EventBus != "" {
		sl.Config("eventBus", cfg.EventBus)
	}
	for _, p := range cfg.SSMLoaded {
		sl.SSMParam(p, p)
	}
	return sl
}
