package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	eventbridgetypes "github.com/aws/aws-sdk-go-v2/service/eventbridge/types"

	"github.com/fpang/prachar/internal/campaign"
	"github.com/fpang/prachar/internal/publish"
	"github.com/fpang/prachar/internal/webhook"
)

type fakeBus struct {
	calls    []*eventbridge.PutEventsInput
	err      error
	failLast bool
}

func (f *fakeBus) PutEvents(ctx context.Context, in *eventbridge.PutEventsInput, _ ...func(*eventbridge.Options)) (*eventbridge.PutEventsOutput, error) {
	f.calls = append(f.calls, in)
	if f.err != nil {
		return nil, f.err
	}
	out := &eventbridge.PutEventsOutput{Entries: make([]eventbridgetypes.PutEventsResultEntry, len(in.Entries))}
	if f.failLast {
		out.FailedEntryCount = 1
		out.Entries[len(out.Entries)-1].ErrorCode = aws.String("ThrottlingException")
	}
	return out, nil
}

func TestPublishCompleted(t *testing.T) {
	bus := &fakeBus{}
	e := NewEmitter(bus, "prachar-bus")
	report := &publish.Report{
		CampaignID: "c1",
		State:      publish.StatePartiallyPublished,
		Results: map[campaign.Platform]publish.Result{
			campaign.PlatformTelegram:  {Platform: campaign.PlatformTelegram, Success: true, HeadMessageID: 501},
			campaign.PlatformInstagram: publish.Failed(campaign.PlatformInstagram, publish.Errorf(publish.KindProcessingTimeout, "not ready")),
		},
	}

	if err := e.PublishCompleted(context.Background(), report); err != nil {
		t.Fatalf("PublishCompleted: %v", err)
	}
	if len(bus.calls) != 1 || len(bus.calls[0].Entries) != 1 {
		t.Fatalf("calls = %+v", bus.calls)
	}
	entry := bus.calls[0].Entries[0]
	if aws.ToString(entry.Source) != Source || aws.ToString(entry.DetailType) != DetailTypePublishCompleted {
		t.Errorf("entry = %s/%s", aws.ToString(entry.Source), aws.ToString(entry.DetailType))
	}
	if aws.ToString(entry.EventBusName) != "prachar-bus" {
		t.Errorf("EventBusName = %q, want prachar-bus", aws.ToString(entry.EventBusName))
	}

	var detail PublishCompleted
	if err := json.Unmarshal([]byte(aws.ToString(entry.Detail)), &detail); err != nil {
		t.Fatal(err)
	}
	if detail.CampaignID != "c1" || detail.State != publish.StatePartiallyPublished {
		t.Errorf("detail = %+v", detail)
	}
	if got := detail.Platforms[campaign.PlatformTelegram]; !got.Success || got.HeadMessageID != 501 {
		t.Errorf("telegram = %+v", got)
	}
	if got := detail.Platforms[campaign.PlatformInstagram]; got.Success || got.ErrorKind != string(publish.KindProcessingTimeout) {
		t.Errorf("instagram = %+v", got)
	}
}

func TestEngagement_Batches(t *testing.T) {
	bus := &fakeBus{}
	e := NewEmitter(bus, "")
	events := make([]webhook.Event, 23)
	for i := range events {
		events[i] = webhook.Event{Field: "comments", CommentID: fmt.Sprint(i)}
	}

	if err := e.Engagement(context.Background(), events); err != nil {
		t.Fatalf("Engagement: %v", err)
	}
	if len(bus.calls) != 3 {
		t.Fatalf("PutEvents calls = %d, want 3", len(bus.calls))
	}
	for i, want := range []int{10, 10, 3} {
		if got := len(bus.calls[i].Entries); got != want {
			t.Errorf("batch %d = %d entries, want %d", i, got, want)
		}
	}
	if bus.calls[0].Entries[0].EventBusName != nil {
		t.Error("EventBusName should be unset for the default bus")
	}
}

func TestEmitter_Failures(t *testing.T) {
	report := &publish.Report{CampaignID: "c1", State: publish.StateFailed}

	e := NewEmitter(&fakeBus{err: errors.New("no route")}, "")
	if err := e.PublishCompleted(context.Background(), report); err == nil {
		t.Error("PublishCompleted error = nil, want transport error")
	}

	e = NewEmitter(&fakeBus{failLast: true}, "")
	if err := e.PublishCompleted(context.Background(), report); err == nil {
		t.Error("PublishCompleted error = nil, want failed entry error")
	}
}

func TestNilEmitter(t *testing.T) {
	var e *Emitter
	if err := e.PublishCompleted(context.Background(), &publish.Report{}); err != nil {
		t.Errorf("nil PublishCompleted = %v", err)
	}
	if err := e.Engagement(context.Background(), []webhook.Event{{}}); err != nil {
		t.Errorf("nil Engagement = %v", err)
	}
	var _ webhook.Sink = e.Engagement
}
