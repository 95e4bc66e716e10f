package gateway

import (
	"context"

	"github.com/fpang/prachar/internal/campaign"
	"github.com/fpang/prachar/internal/caption"
	"github.com/fpang/prachar/internal/instagram"
	"github.com/fpang/prachar/internal/media"
	"github.com/fpang/prachar/internal/publish"
	"github.com/fpang/prachar/internal/telegram"
)

// Request is one campaign publish as seen by a platform target.
type Request struct {
	Metadata campaign.Metadata
	Media    []media.Ref
}

// Target publishes a campaign to one platform. Implementations return
// failures inside the Result instead of panicking or returning errors.
type Target interface {
	Publish(ctx context.Context, req Request) publish.Result
}

// TargetFunc adapts a function to Target.
type TargetFunc func(ctx context.Context, req Request) publish.Result

func (f TargetFunc) Publish(ctx context.Context, req Request) publish.Result {
	return f(ctx, req)
}

// TelegramTarget posts to channel with the Telegram HTML caption.
func TelegramTarget(p *telegram.Publisher, channel string) Target {
	return TargetFunc(func(ctx context.Context, req Request) publish.Result {
		return p.Publish(ctx, channel, caption.Build(req.Metadata, campaign.PlatformTelegram), req.Media)
	})
}

// InstagramTarget posts with the Instagram plain-text caption.
func InstagramTarget(p *instagram.Publisher) Target {
	return TargetFunc(func(ctx context.Context, req Request) publish.Result {
		return p.Publish(ctx, caption.Build(req.Metadata, campaign.PlatformInstagram), req.Media)
	})
}
