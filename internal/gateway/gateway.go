// Package gateway turns one normalized campaign into independent publishes on
// each requested platform and aggregates the outcomes. A failing platform
// never aborts or hides another platform's result, and concurrent publishes
// of the same campaign collapse into one.
package gateway

import (
	"context"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker/v2"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/fpang/prachar/internal/campaign"
	"github.com/fpang/prachar/internal/metrics"
	"github.com/fpang/prachar/internal/publish"
)

// MetricsNamespace is the CloudWatch namespace of publish metrics.
const MetricsNamespace = "Prachar/Publish"

// Options configures a Gateway.
type Options struct {
	// Sequential publishes platforms one after another in request order.
	Sequential bool
	// Breaker configures per-platform circuit breakers.
	Breaker BreakerConfig
	// Metrics receives one EMF line per platform result. Nil disables metrics.
	Metrics io.Writer
}

// Gateway publishes campaigns to the registered platform targets.
type Gateway struct {
	targets  map[campaign.Platform]Target
	breakers map[campaign.Platform]*gobreaker.CircuitBreaker[publish.Result]
	opts     Options
	flight   singleflight.Group
}

// New creates a Gateway over targets. Platforms without a target report
// ConfigurationMissing when requested.
func New(targets map[campaign.Platform]Target, opts Options) *Gateway {
	g := &Gateway{
		targets:  make(map[campaign.Platform]Target, len(targets)),
		breakers: make(map[campaign.Platform]*gobreaker.CircuitBreaker[publish.Result], len(targets)),
		opts:     opts,
	}
	for p, t := range targets {
		g.targets[p] = t
		g.breakers[p] = newBreaker(p, opts.Breaker)
	}
	return g
}

// Platforms lists the configured platforms in default order.
func (g *Gateway) Platforms() []campaign.Platform {
	var out []campaign.Platform
	for _, p := range campaign.AllPlatforms {
		if _, ok := g.targets[p]; ok {
			out = append(out, p)
		}
	}
	return out
}

// PublishCampaign publishes req to every platform in platforms (all
// configured platforms when empty) and returns one result per platform.
//
// Overlapping calls for the same campaign id and platform set share a single
// execution under the first caller's context. Only that caller gets a report
// with Shared unset; joiners get a copy with Shared set and must not persist it.
func (g *Gateway) PublishCampaign(ctx context.Context, req Request, platforms []campaign.Platform) *publish.Report {
	platforms = dedupe(platforms)
	if len(platforms) == 0 {
		platforms = g.Platforms()
	}

	if req.Metadata.ID == "" {
		return g.run(ctx, req, platforms)
	}

	key := flightKey(req.Metadata.ID, platforms)
	leader := false
	v, _, _ := g.flight.Do(key, func() (any, error) {
		leader = true
		return g.run(ctx, req, platforms), nil
	})
	report := *v.(*publish.Report)
	if !leader {
		log.Warn().Str("campaign_id", req.Metadata.ID).Interface("platforms", platforms).Msg("Concurrent publish for campaign joined an in-flight attempt")
		report.Shared = true
	}
	return &report
}

// flightKey identifies an attempt by campaign and the order-independent
// platform set.
func flightKey(id string, platforms []campaign.Platform) string {
	names := make([]string, len(platforms))
	for i, p := range platforms {
		names[i] = string(p)
	}
	sort.Strings(names)
	return id + "|" + strings.Join(names, ",")
}

func (g *Gateway) run(ctx context.Context, req Request, platforms []campaign.Platform) *publish.Report {
	report := &publish.Report{
		CampaignID: req.Metadata.ID,
		State:      publish.StatePending,
		Results:    make(map[campaign.Platform]publish.Result, len(platforms)),
		StartedAt:  time.Now().UTC(),
	}
	g.transition(report, publish.StatePublishing)
	logger := log.With().Str("campaign_id", report.CampaignID).Logger()
	logger.Info().Int("media", len(req.Media)).Interface("platforms", platforms).Msg("Publishing campaign")

	var mu sync.Mutex
	record := func(r publish.Result) {
		mu.Lock()
		report.Results[r.Platform] = r
		mu.Unlock()
		g.emit(report.CampaignID, r)
	}

	if g.opts.Sequential {
		for _, p := range platforms {
			record(g.publishOne(ctx, p, req))
		}
	} else {
		var eg errgroup.Group
		for _, p := range platforms {
			eg.Go(func() error {
				record(g.publishOne(ctx, p, req))
				return nil
			})
		}
		_ = eg.Wait()
	}

	report.FinishedAt = time.Now().UTC()
	g.transition(report, publish.Outcome(report.Results))

	level := zerolog.InfoLevel
	if report.State != publish.StatePublished {
		level = zerolog.WarnLevel
	}
	logger.WithLevel(level).Interface("errors", report.Errors()).Str("state", string(report.State)).Dur("duration", report.FinishedAt.Sub(report.StartedAt)).Msg("Campaign publish finished")
	return report
}

// publishOne runs a single platform, converting a missing target, empty media,
// or a panic into a failed result.
func (g *Gateway) publishOne(ctx context.Context, p campaign.Platform, req Request) publish.Result {
	target, ok := g.targets[p]
	if !ok {
		return publish.Failed(p, publish.Errorf(publish.KindConfigurationMissing, "%s is not configured", p))
	}
	if len(req.Media) == 0 {
		return publish.Failed(p, publish.Errorf(publish.KindNoUsableMedia, "campaign has no media"))
	}

	result := throughBreaker(g.breakers[p], p, func() (r publish.Result) {
		defer func() {
			if rec := recover(); rec != nil {
				log.Error().Str("platform", string(p)).Interface("panic", rec).Msg("Platform publisher panicked")
				r = publish.Failed(p, publish.Errorf(publish.KindProviderRejected, "publisher panic: %v", rec))
			}
		}()
		return target.Publish(ctx, req)
	})
	result.Platform = p
	return result
}

func (g *Gateway) transition(report *publish.Report, next publish.State) {
	state, err := report.State.Transition(next)
	if err != nil {
		log.Error().Err(err).Str("campaign_id", report.CampaignID).Msg("Unexpected publish state transition")
		state = next
	}
	report.State = state
}

func (g *Gateway) emit(campaignID string, r publish.Result) {
	if g.opts.Metrics == nil {
		return
	}
	rec := metrics.NewWithWriter(g.opts.Metrics, MetricsNamespace).
		Dimension("Platform", string(r.Platform)).
		Metric("PublishDurationMs", float64(r.DurationMs), metrics.UnitMilliseconds).
		Property("campaignId", campaignID)
	if r.Success {
		rec.Count("PublishSuccess")
	} else {
		rec.Count("PublishFailure")
		if r.Error != nil {
			rec.Property("errorKind", string(r.Error.Kind))
		}
	}
	rec.Flush()
}

func dedupe(platforms []campaign.Platform) []campaign.Platform {
	seen := make(map[campaign.Platform]bool, len(platforms))
	out := make([]campaign.Platform, 0, len(platforms))
	for _, p := range platforms {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	return out
}
