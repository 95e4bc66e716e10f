package instagram

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fpang/prachar/internal/campaign"
	"github.com/fpang/prachar/internal/media"
	"github.com/fpang/prachar/internal/publish"
	"github.com/fpang/prachar/internal/retry"
)

// DefaultPublishPolicy waits a 5s grace period after container creation,
// then retries a not-ready publish at 10s, 20s, 40s, 60s: five attempts.
var DefaultPublishPolicy = retry.Policy{
	InitialWait: 5 * time.Second,
	BaseDelay:   10 * time.Second,
	Multiplier:  2,
	MaxDelay:    60 * time.Second,
	MaxAttempts: 5,
}

// DefaultCreatePolicy retries container creation on network failures only.
var DefaultCreatePolicy = retry.Policy{
	BaseDelay:   2 * time.Second,
	Multiplier:  2,
	MaxDelay:    10 * time.Second,
	MaxAttempts: 3,
}

// URLSigner turns local or inline media into a URL Instagram can fetch.
type URLSigner interface {
	PublicURL(ctx context.Context, ref media.Ref) (string, error)
}

// ReelOptions are optional reel container fields.
type ReelOptions struct {
	ThumbOffsetMs int
	LocationID    string
}

// Publisher posts a campaign as a single image, a reel, or a carousel.
type Publisher struct {
	client        *Client
	signer        URLSigner
	publishPolicy retry.Policy
	createPolicy  retry.Policy
	validateURLs  bool
	reel          ReelOptions
}

// PublisherOption configures a Publisher.
type PublisherOption func(*Publisher)

// WithURLSigner enables publishing local and inline media.
func WithURLSigner(s URLSigner) PublisherOption {
	return func(p *Publisher) { p.signer = s }
}

// WithPublishPolicy sets the not-ready publish retry policy.
func WithPublishPolicy(policy retry.Policy) PublisherOption {
	return func(p *Publisher) { p.publishPolicy = policy }
}

// WithCreatePolicy sets the container creation retry policy.
func WithCreatePolicy(policy retry.Policy) PublisherOption {
	return func(p *Publisher) { p.createPolicy = policy }
}

// WithURLValidation probes every media URL before creating containers and
// aborts when one fails.
func WithURLValidation(enabled bool) PublisherOption {
	return func(p *Publisher) { p.validateURLs = enabled }
}

// WithReelOptions sets thumbnail offset and location for reels.
func WithReelOptions(o ReelOptions) PublisherOption {
	return func(p *Publisher) { p.reel = o }
}

// NewPublisher creates a Publisher over client.
func NewPublisher(client *Client, opts ...PublisherOption) *Publisher {
	p := &Publisher{
		client:        client,
		publishPolicy: DefaultPublishPolicy,
		createPolicy:  DefaultCreatePolicy,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Publish posts refs with caption. One ref becomes an IMAGE or REELS post;
// more become a CAROUSEL whose container carries the caption while the
// children carry none. More than MaxCarouselItems refs fail with
// TooManyItems before any network call.
func (p *Publisher) Publish(ctx context.Context, caption string, refs []media.Ref) (result publish.Result) {
	start := time.Now()
	result.Platform = campaign.PlatformInstagram
	defer func() { result.DurationMs = time.Since(start).Milliseconds() }()

	switch {
	case len(refs) == 0:
		result.Fail(publish.Errorf(publish.KindNoUsableMedia, "no media to publish"))
		return result
	case len(refs) > MaxCarouselItems:
		result.Fail(publish.Errorf(publish.KindTooManyItems, "carousel supports at most %d items, got %d", MaxCarouselItems, len(refs)))
		return result
	}

	urls, err := p.mediaURLs(ctx, refs)
	if err != nil {
		result.Fail(err)
		return result
	}

	var publishID string
	if len(refs) == 1 {
		req := p.singleRequest(refs[0], urls[0], caption)
		result.MediaType = req.MediaType
		id, err := p.createContainer(ctx, req)
		if err != nil {
			result.Fail(err)
			return result
		}
		result.ContainerIDs = []string{id}
		publishID = id
	} else {
		result.MediaType = MediaTypeCarousel
		for i, ref := range refs {
			childType := MediaTypeImage
			if ref.IsVideo() {
				childType = MediaTypeVideo
			}
			id, err := p.createContainer(ctx, ContainerRequest{MediaType: childType, MediaURL: urls[i], IsCarouselItem: true})
			if err != nil {
				log.Error().Err(err).Int("index", i).Msg("Carousel child container failed")
				result.Fail(err)
				return result
			}
			result.ContainerIDs = append(result.ContainerIDs, id)
		}
		id, err := p.createContainer(ctx, ContainerRequest{
			MediaType:  MediaTypeCarousel,
			Children:   result.ContainerIDs,
			Caption:    caption,
			LocationID: p.reel.LocationID,
		})
		if err != nil {
			result.Fail(err)
			return result
		}
		result.CarouselID = id
		publishID = id
	}

	mediaID, err := p.publishWhenReady(ctx, publishID)
	if err != nil {
		result.Fail(err)
		return result
	}
	result.MediaID = mediaID
	result.Success = true
	return result
}

func (p *Publisher) singleRequest(ref media.Ref, mediaURL, caption string) ContainerRequest {
	if ref.IsVideo() {
		return ContainerRequest{
			MediaType:     MediaTypeReels,
			MediaURL:      mediaURL,
			Caption:       caption,
			ShareToFeed:   true,
			ThumbOffsetMs: p.reel.ThumbOffsetMs,
			LocationID:    p.reel.LocationID,
		}
	}
	return ContainerRequest{MediaType: MediaTypeImage, MediaURL: mediaURL, Caption: caption, LocationID: p.reel.LocationID}
}

func (p *Publisher) mediaURLs(ctx context.Context, refs []media.Ref) ([]string, error) {
	urls := make([]string, len(refs))
	for i, ref := range refs {
		switch {
		case ref.Source() == media.SourceRemote:
			urls[i] = ref.URL()
		case p.signer != nil:
			u, err := p.signer.PublicURL(ctx, ref)
			if err != nil {
				return nil, publish.Wrap(publish.KindNoUsableMedia, err, "make "+ref.Name()+" public")
			}
			urls[i] = u
		default:
			return nil, publish.Errorf(publish.KindNoUsableMedia,
				"%s is %s media and no public URL uploader is configured", ref.Name(), ref.Source())
		}

		if p.validateURLs && !p.client.ValidateMediaURL(ctx, urls[i], ref.Kind()) {
			return nil, publish.Errorf(publish.KindNoUsableMedia, "media URL for %s failed validation", ref.Name())
		}
	}
	return urls, nil
}

func (p *Publisher) createContainer(ctx context.Context, req ContainerRequest) (string, error) {
	var id string
	err := retry.Do(ctx, p.createPolicy, "instagram.create", func(ctx context.Context, attempt int) (bool, error) {
		var err error
		id, err = p.client.CreateContainer(ctx, req)
		return err != nil && publish.AsError(err).Retryable(), err
	})
	return id, err
}

// publishWhenReady publishes containerID under the publish policy. Not-ready
// responses and network failures are retried; exhausting the budget on a
// not-ready container is ProcessingTimeout. A container that reports ERROR
// or EXPIRED aborts immediately.
func (p *Publisher) publishWhenReady(ctx context.Context, containerID string) (string, error) {
	var mediaID string
	err := retry.Do(ctx, p.publishPolicy, "instagram.publish", func(ctx context.Context, attempt int) (bool, error) {
		id, err := p.client.Publish(ctx, containerID)
		if err == nil {
			mediaID = id
			return false, nil
		}
		if IsMediaNotReady(err) {
			log.Info().Str("container_id", containerID).Int("attempt", attempt).Msg("Container still processing")
			status, serr := p.client.ContainerStatus(ctx, containerID)
			if serr == nil && (status == StatusError || status == StatusExpired) {
				return false, publish.Errorf(publish.KindProviderRejected, "container %s processing ended with %s", containerID, status)
			}
			return true, err
		}
		return publish.AsError(err).Retryable(), err
	})
	if err == nil {
		return mediaID, nil
	}
	if errors.Is(err, retry.ErrExhausted) && IsMediaNotReady(err) {
		return "", publish.Wrap(publish.KindProcessingTimeout, err,
			"container "+containerID+" did not finish processing")
	}
	return "", err
}
