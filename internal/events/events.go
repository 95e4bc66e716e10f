// Package events emits publish outcomes and Instagram engagement to an
// EventBridge bus so downstream consumers (notifications, analytics) can
// react without polling the campaign table.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	eventbridgetypes "github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"github.com/rs/zerolog/log"

	"github.com/fpang/prachar/internal/campaign"
	"github.com/fpang/prachar/internal/publish"
	"github.com/fpang/prachar/internal/webhook"
)

const (
	Source = "prachar"

	DetailTypePublishCompleted = "CampaignPublishCompleted"
	DetailTypeEngagement       = "InstagramEngagement"
)

// maxEntriesPerCall is the PutEvents batch limit.
const maxEntriesPerCall = 10

// PutEventsAPI is the subset of the EventBridge client used here.
type PutEventsAPI interface {
	PutEvents(ctx context.Context, in *eventbridge.PutEventsInput, optFns ...func(*eventbridge.Options)) (*eventbridge.PutEventsOutput, error)
}

// Emitter writes events to one bus. A nil *Emitter discards everything.
type Emitter struct {
	client PutEventsAPI
	bus    string
}

// NewEmitter returns an emitter for bus. An empty bus means the account's
// default bus.
func NewEmitter(client PutEventsAPI, bus string) *Emitter {
	return &Emitter{client: client, bus: bus}
}

// PlatformOutcome is the per-platform part of PublishCompleted.
type PlatformOutcome struct {
	Success       bool   `json:"success"`
	HeadMessageID int64  `json:"headMessageId,omitempty"`
	MediaID       string `json:"mediaId,omitempty"`
	ErrorKind     string `json:"errorKind,omitempty"`
	Error         string `json:"error,omitempty"`
}

// PublishCompleted is the detail of a CampaignPublishCompleted event.
type PublishCompleted struct {
	CampaignID string                                `json:"campaignId"`
	State      publish.State                         `json:"state"`
	Platforms  map[campaign.Platform]PlatformOutcome `json:"platforms"`
	StartedAt  time.Time                             `json:"startedAt"`
	FinishedAt time.Time                             `json:"finishedAt"`
}

func publishCompleted(report *publish.Report) PublishCompleted {
	out := PublishCompleted{
		CampaignID: report.CampaignID,
		State:      report.State,
		Platforms:  make(map[campaign.Platform]PlatformOutcome, len(report.Results)),
		StartedAt:  report.StartedAt,
		FinishedAt: report.FinishedAt,
	}
	for p, r := range report.Results {
		o := PlatformOutcome{Success: r.Success, HeadMessageID: r.HeadMessageID, MediaID: r.MediaID}
		if r.Error != nil {
			o.ErrorKind = string(r.Error.Kind)
			o.Error = r.Error.Error()
		}
		out.Platforms[p] = o
	}
	return out
}

// PublishCompleted emits the outcome of one publish attempt.
func (e *Emitter) PublishCompleted(ctx context.Context, report *publish.Report) error {
	if e == nil || report == nil {
		return nil
	}
	entry, err := e.entry(DetailTypePublishCompleted, publishCompleted(report))
	if err != nil {
		return err
	}
	return e.put(ctx, []eventbridgetypes.PutEventsRequestEntry{entry})
}

// Engagement emits one event per webhook change. It satisfies webhook.Sink.
func (e *Emitter) Engagement(ctx context.Context, events []webhook.Event) error {
	if e == nil || len(events) == 0 {
		return nil
	}
	entries := make([]eventbridgetypes.PutEventsRequestEntry, 0, len(events))
	for _, ev := range events {
		entry, err := e.entry(DetailTypeEngagement, ev)
		if err != nil {
			return err
		}
		entries = append(entries, entry)
	}
	return e.put(ctx, entries)
}

func (e *Emitter) entry(detailType string, detail any) (eventbridgetypes.PutEventsRequestEntry, error) {
	data, err := json.Marshal(detail)
	if err != nil {
		return eventbridgetypes.PutEventsRequestEntry{}, fmt.Errorf("marshal %s: %w", detailType, err)
	}
	entry := eventbridgetypes.PutEventsRequestEntry{
		Source:     aws.String(Source),
		DetailType: aws.String(detailType),
		Detail:     aws.String(string(data)),
	}
	if e.bus != "" {
		entry.EventBusName = aws.String(e.bus)
	}
	return entry, nil
}

func (e *Emitter) put(ctx context.Context, entries []eventbridgetypes.PutEventsRequestEntry) error {
	for start := 0; start < len(entries); start += maxEntriesPerCall {
		batch := entries[start:min(start+maxEntriesPerCall, len(entries))]
		result, err := e.client.PutEvents(ctx, &eventbridge.PutEventsInput{Entries: batch})
		if err != nil {
			log.Error().Err(err).Int("entries", len(batch)).Msg("EventBridge PutEvents failed")
			return fmt.Errorf("PutEvents: %w", err)
		}
		if result.FailedEntryCount == 0 {
			continue
		}
		for i, entry := range result.Entries {
			if entry.ErrorCode != nil || entry.ErrorMessage != nil {
				log.Error().
					Int("index", start+i).
					Str("errorCode", aws.ToString(entry.ErrorCode)).
					Str("errorMessage", aws.ToString(entry.ErrorMessage)).
					Msg("EventBridge PutEvents entry failed")
				return fmt.Errorf("PutEvents entry %d failed: %s - %s", start+i, aws.ToString(entry.ErrorCode), aws.ToString(entry.ErrorMessage))
			}
		}
	}
	log.Debug().Int("entries", len(entries)).Msg("Events emitted to EventBridge")
	return nil
}
