package telegram

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/fpang/prachar/internal/campaign"
	"github.com/fpang/prachar/internal/media"
	"github.com/fpang/prachar/internal/publish"
	"github.com/fpang/prachar/internal/retry"
)

// DefaultSendInterval paces successive sends to stay under channel rate limits.
const DefaultSendInterval = 600 * time.Millisecond

// DefaultPolicy retries connection-level failures of a single send.
var DefaultPolicy = retry.Policy{
	BaseDelay:   2 * time.Second,
	Multiplier:  2,
	MaxDelay:    10 * time.Second,
	MaxAttempts: 3,
}

// Sender sends a single media message. *Client implements it.
type Sender interface {
	SendMedia(ctx context.Context, chatID string, ref media.Ref, opts SendOptions) (int64, error)
}

// Publisher posts an ordered media sequence as a head message plus replies.
type Publisher struct {
	sender Sender
	pacer  *rate.Limiter
	policy retry.Policy
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithSendInterval sets the pacing between sends. Zero disables pacing.
func WithSendInterval(d time.Duration) Option {
	return func(p *Publisher) {
		if d <= 0 {
			p.pacer = rate.NewLimiter(rate.Inf, 1)
			return
		}
		p.pacer = rate.NewLimiter(rate.Every(d), 1)
	}
}

// WithPolicy sets the per-send retry policy.
func WithPolicy(policy retry.Policy) Option {
	return func(p *Publisher) { p.policy = policy }
}

// NewPublisher creates a Publisher over sender.
func NewPublisher(sender Sender, opts ...Option) *Publisher {
	p := &Publisher{
		sender: sender,
		pacer:  rate.NewLimiter(rate.Every(DefaultSendInterval), 1),
		policy: DefaultPolicy,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Publish sends refs[0] with caption to channel, then every further ref with
// no caption as a reply to the head. The first failed send aborts the thread;
// the result still carries every message id produced before it.
func (p *Publisher) Publish(ctx context.Context, channel, caption string, refs []media.Ref) (result publish.Result) {
	start := time.Now()
	result.Platform = campaign.PlatformTelegram
	defer func() { result.DurationMs = time.Since(start).Milliseconds() }()

	if channel == "" {
		result.Fail(publish.Errorf(publish.KindConfigurationMissing, "telegram channel id is not set"))
		return result
	}
	if len(refs) == 0 {
		result.Fail(publish.Errorf(publish.KindNoUsableMedia, "no media to send"))
		return result
	}

	headID, err := p.send(ctx, channel, refs[0], SendOptions{Caption: caption})
	if err != nil {
		log.Error().Err(err).Str("chat_id", channel).Msg("Telegram head send failed")
		result.Fail(err)
		return result
	}
	result.HeadMessageID = headID
	log.Info().Str("chat_id", channel).Int64("message_id", headID).Str("media", refs[0].Name()).Msg("Telegram head posted")

	for i, ref := range refs[1:] {
		replyID, err := p.send(ctx, channel, ref, SendOptions{ReplyTo: headID})
		if err != nil {
			log.Error().Err(err).Str("chat_id", channel).Int("index", i+1).Int64("reply_to", headID).
				Msg("Telegram reply send failed, aborting thread")
			result.Fail(err)
			return result
		}
		result.ReplyMessageIDs = append(result.ReplyMessageIDs, replyID)
		log.Debug().Int64("message_id", replyID).Int64("reply_to", headID).Msg("Telegram reply posted")
	}

	result.Success = true
	log.Info().Str("chat_id", channel).Int64("head", headID).Int("replies", len(result.ReplyMessageIDs)).
		Msg("Telegram thread published")
	return result
}

func (p *Publisher) send(ctx context.Context, channel string, ref media.Ref, opts SendOptions) (int64, error) {
	var id int64
	err := retry.Do(ctx, p.policy, "telegram.send", func(ctx context.Context, attempt int) (bool, error) {
		if err := p.pacer.Wait(ctx); err != nil {
			return false, err
		}
		var err error
		id, err = p.sender.SendMedia(ctx, channel, ref, opts)
		return publish.IsKind(err, publish.KindNetworkFailure), err
	})
	return id, err
}
