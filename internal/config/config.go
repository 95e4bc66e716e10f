// Package config loads service configuration from the environment, local
// .env files, and SSM Parameter Store.
package config

import (
	"context"
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/fpang/prachar/internal/publish"
)

// Environment variable names.
const (
	EnvTelegramBotToken     = "TELEGRAM_BOT_TOKEN"
	EnvTelegramChannelID    = "TELEGRAM_CHANNEL_ID"
	EnvInstagramAccessToken = "INSTAGRAM_ACCESS_TOKEN"
	EnvInstagramUserID      = "INSTAGRAM_USER_ID"
	EnvInstagramAppID       = "INSTAGRAM_APP_ID"
	EnvInstagramAppSecret   = "INSTAGRAM_APP_SECRET"
	EnvWebhookVerifyToken   = "INSTAGRAM_WEBHOOK_VERIFY_TOKEN"
	EnvInstagramValidate    = "INSTAGRAM_VALIDATE_URLS"
	EnvInstagramThumbOffset = "INSTAGRAM_THUMB_OFFSET_MS"
	EnvInstagramLocationID  = "INSTAGRAM_LOCATION_ID"
	EnvGeminiAPIKey         = "GEMINI_API_KEY"
	EnvCampaignTable        = "CAMPAIGN_TABLE_NAME"
	EnvMediaBucket          = "MEDIA_BUCKET_NAME"
	EnvEventBus             = "EVENT_BUS_NAME"
	EnvCampaignsDir         = "CAMPAIGNS_DIR"
	EnvAWSRegion            = "AWS_REGION"
	EnvPublishConcurrent    = "PUBLISH_CONCURRENT"
	EnvSSMPrefix            = "SSM_PREFIX"
)

// Defaults.
const (
	DefaultCampaignsDir = "campaigns"
	DefaultSSMPrefix    = "/prachar/prod"
)

// DotEnvFiles are loaded in order when present. Variables already in the
// environment are never overridden.
var DotEnvFiles = []string{".env.local", ".env"}

// Config is the resolved service configuration.
type Config struct {
	TelegramBotToken  string
	TelegramChannelID string

	InstagramAccessToken string
	InstagramUserID      string
	InstagramAppID       string
	InstagramAppSecret   string
	// WebhookVerifyToken must match the verify token set in the Meta app dashboard.
	WebhookVerifyToken string
	// InstagramValidateURLs probes media URLs with HEAD before creating containers.
	InstagramValidateURLs  bool
	InstagramThumbOffsetMs int
	InstagramLocationID    string

	GeminiAPIKey string

	CampaignTable     string
	MediaBucket       string
	EventBus          string
	CampaignsDir      string
	AWSRegion         string
	PublishConcurrent bool
	SSMPrefix         string

	// SSMLoaded lists the parameter paths that filled a value.
	SSMLoaded []string
}

// ParameterGetter is the subset of the SSM client used for secret fallback.
type ParameterGetter interface {
	GetParameter(ctx context.Context, in *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// Load reads .env files, then the environment. When ssmClient is non-nil,
// secrets still missing are read from {SSM_PREFIX}/<name>.
func Load(ctx context.Context, ssmClient ParameterGetter) (*Config, error) {
	for _, f := range DotEnvFiles {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return nil, err
		}
		log.Debug().Str("file", f).Msg("Loaded environment file")
	}

	cfg := FromEnv(os.Getenv)
	if ssmClient != nil {
		cfg.fillFromSSM(ctx, ssmClient)
	}
	return cfg, nil
}

// FromEnv builds a Config from a lookup function such as os.Getenv.
func FromEnv(getenv func(string) string) *Config {
	get := func(k string) string { return strings.TrimSpace(getenv(k)) }
	cfg := &Config{
		TelegramBotToken:     get(EnvTelegramBotToken),
		TelegramChannelID:    get(EnvTelegramChannelID),
		InstagramAccessToken: get(EnvInstagramAccessToken),
		InstagramUserID:      get(EnvInstagramUserID),
		InstagramAppID:       get(EnvInstagramAppID),
		InstagramAppSecret:   get(EnvInstagramAppSecret),
		WebhookVerifyToken:   get(EnvWebhookVerifyToken),
		InstagramLocationID:  get(EnvInstagramLocationID),
		GeminiAPIKey:         get(EnvGeminiAPIKey),
		CampaignTable:        get(EnvCampaignTable),
		MediaBucket:          get(EnvMediaBucket),
		EventBus:             get(EnvEventBus),
		CampaignsDir:         get(EnvCampaignsDir),
		AWSRegion:            get(EnvAWSRegion),
		SSMPrefix:            get(EnvSSMPrefix),
		PublishConcurrent:    true,
	}
	if cfg.CampaignsDir == "" {
		cfg.CampaignsDir = DefaultCampaignsDir
	}
	if cfg.SSMPrefix == "" {
		cfg.SSMPrefix = DefaultSSMPrefix
	}
	cfg.SSMPrefix = strings.TrimRight(cfg.SSMPrefix, "/")
	if v := get(EnvPublishConcurrent); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.PublishConcurrent = b
		} else {
			log.Warn().Str("value", v).Msg("Invalid PUBLISH_CONCURRENT, keeping default")
		}
	}
	if v := get(EnvInstagramValidate); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.InstagramValidateURLs = b
		} else {
			log.Warn().Str("value", v).Msg("Invalid INSTAGRAM_VALIDATE_URLS, keeping default")
		}
	}
	if v := get(EnvInstagramThumbOffset); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.InstagramThumbOffsetMs = n
		} else {
			log.Warn().Str("value", v).Msg("Invalid INSTAGRAM_THUMB_OFFSET_MS, ignoring")
		}
	}
	return cfg
}

// SSMParam returns the full parameter path for name under the configured prefix.
func (c *Config) SSMParam(name string) string {
	return c.SSMPrefix + "/" + name
}

func (c *Config) fillFromSSM(ctx context.Context, client ParameterGetter) {
	secrets := []struct {
		name    string
		target  *string
		decrypt bool
	}{
		{"telegram-bot-token", &c.TelegramBotToken, true},
		{"telegram-channel-id", &c.TelegramChannelID, false},
		{"instagram-access-token", &c.InstagramAccessToken, true},
		{"instagram-user-id", &c.InstagramUserID, false},
		{"instagram-app-secret", &c.InstagramAppSecret, true},
		{"instagram-webhook-verify-token", &c.WebhookVerifyToken, true},
		{"gemini-api-key", &c.GeminiAPIKey, true},
	}
	for _, s := range secrets {
		if *s.target != "" {
			continue
		}
		param := c.SSMParam(s.name)
		start := time.Now()
		out, err := client.GetParameter(ctx, &ssm.GetParameterInput{
			Name:           &param,
			WithDecryption: aws.Bool(s.decrypt),
		})
		if err != nil || out.Parameter == nil || out.Parameter.Value == nil {
			log.Debug().Err(err).Str("param", param).Msg("SSM parameter not available")
			continue
		}
		*s.target = *out.Parameter.Value
		c.SSMLoaded = append(c.SSMLoaded, param)
		log.Debug().Str("param", param).Dur("elapsed", time.Since(start)).Msg("Loaded parameter from SSM")
	}
}

// RequireTelegram reports the missing Telegram settings.
func (c *Config) RequireTelegram() error {
	return require(map[string]string{
		EnvTelegramBotToken:  c.TelegramBotToken,
		EnvTelegramChannelID: c.TelegramChannelID,
	}, EnvTelegramBotToken, EnvTelegramChannelID)
}

// RequireInstagram reports the missing Instagram publishing settings.
func (c *Config) RequireInstagram() error {
	return require(map[string]string{
		EnvInstagramAccessToken: c.InstagramAccessToken,
		EnvInstagramUserID:      c.InstagramUserID,
	}, EnvInstagramAccessToken, EnvInstagramUserID)
}

// RequireInstagramApp reports the missing settings for token exchange.
func (c *Config) RequireInstagramApp() error {
	return require(map[string]string{
		EnvInstagramAppID:     c.InstagramAppID,
		EnvInstagramAppSecret: c.InstagramAppSecret,
	}, EnvInstagramAppID, EnvInstagramAppSecret)
}

// RequireWebhook reports the missing settings for receiving Instagram webhooks.
func (c *Config) RequireWebhook() error {
	return require(map[string]string{
		EnvWebhookVerifyToken: c.WebhookVerifyToken,
		EnvInstagramAppSecret: c.InstagramAppSecret,
	}, EnvWebhookVerifyToken, EnvInstagramAppSecret)
}

// RequireGemini reports a missing Gemini API key.
func (c *Config) RequireGemini() error {
	return require(map[string]string{EnvGeminiAPIKey: c.GeminiAPIKey}, EnvGeminiAPIKey)
}

func require(values map[string]string, order ...string) error {
	var missing []string
	for _, k := range order {
		if values[k] == "" {
			missing = append(missing, k)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return publish.Errorf(publish.KindConfigurationMissing, "missing %s", strings.Join(missing, ", "))
}

// IsMissing reports whether err is a configuration-missing error.
func IsMissing(err error) bool {
	return errors.Is(err, publish.ErrConfigurationMissing)
}
