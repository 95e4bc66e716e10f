package main

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/fpang/prachar/internal/campaign"
	"github.com/fpang/prachar/internal/gateway"
	"github.com/fpang/prachar/internal/publish"
	"github.com/fpang/prachar/internal/store"
)

type recordingPublisher struct {
	req       gateway.Request
	platforms []campaign.Platform
	results   map[campaign.Platform]publish.Result
	calls     int
}

func (p *recordingPublisher) PublishCampaign(ctx context.Context, req gateway.Request, platforms []campaign.Platform) *publish.Report {
	p.calls++
	p.req = req
	p.platforms = platforms
	return &publish.Report{
		CampaignID: req.Metadata.ID,
		State:      publish.Outcome(p.results),
		Results:    p.results,
	}
}

type recordingNotifier struct {
	reports []*publish.Report
}

func (n *recordingNotifier) PublishCompleted(ctx context.Context, report *publish.Report) error {
	n.reports = append(n.reports, report)
	return nil
}

func seed(t *testing.T, s store.CampaignStore) {
	t.Helper()
	err := s.PutCampaign(context.Background(), &campaign.Record{
		Document: campaign.Document{
			StandardMetadata: campaign.StandardMetadata{ID: "c1", TitleEN: "Scarf"},
			Assets:           []string{"assets/img1.jpg", "assets/img2.jpg"},
		},
		Status: campaign.StatusReady,
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestHandle_PartialPublish(t *testing.T) {
	s := store.NewMemoryStore()
	seed(t, s)
	pub := &recordingPublisher{results: map[campaign.Platform]publish.Result{
		campaign.PlatformTelegram:  {Platform: campaign.PlatformTelegram, Success: true, HeadMessageID: 7},
		campaign.PlatformInstagram: publish.Failed(campaign.PlatformInstagram, publish.Errorf(publish.KindProviderRejected, "bad url")),
	}}
	notifier := &recordingNotifier{}
	h := &handler{
		store:     s,
		publisher: pub,
		notifier:  notifier,
		assetURL: func(ctx context.Context, id, asset string) (string, error) {
			return "https://bucket.example/campaigns/" + id + "/" + asset, nil
		},
	}

	out, err := h.handle(context.Background(), PublishEvent{CampaignID: "c1", Platforms: []string{"telegram", "instagram"}})
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if out.Status != campaign.StatusPartiallyPublished {
		t.Errorf("Status = %q, want %q", out.Status, campaign.StatusPartiallyPublished)
	}
	if len(pub.req.Media) != 2 || !strings.Contains(pub.req.Media[0].URL(), "campaigns/c1/assets/img1.jpg") {
		t.Errorf("media = %v", pub.req.Media)
	}
	if len(pub.platforms) != 2 {
		t.Errorf("platforms = %v", pub.platforms)
	}
	if _, ok := out.Errors[campaign.PlatformInstagram]; !ok {
		t.Errorf("Errors = %v, want instagram entry", out.Errors)
	}

	rec, _ := s.GetCampaign(context.Background(), "c1")
	if rec.Status != campaign.StatusPartiallyPublished || !strings.HasPrefix(rec.Error, "instagram:") {
		t.Errorf("stored = %q/%q", rec.Status, rec.Error)
	}
	reports, _ := s.ListPublishReports(context.Background(), "c1")
	if len(reports) != 1 {
		t.Errorf("reports = %d, want 1", len(reports))
	}
	if len(notifier.reports) != 1 || notifier.reports[0].CampaignID != "c1" {
		t.Errorf("notified reports = %+v", notifier.reports)
	}
}

func TestHandle_NoBucketStillReports(t *testing.T) {
	s := store.NewMemoryStore()
	seed(t, s)
	pub := &recordingPublisher{results: map[campaign.Platform]publish.Result{
		campaign.PlatformTelegram: publish.Failed(campaign.PlatformTelegram, publish.Errorf(publish.KindNoUsableMedia, "no media")),
	}}
	h := &handler{store: s, publisher: pub}

	out, err := h.handle(context.Background(), PublishEvent{CampaignID: "c1"})
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(pub.req.Media) != 0 || pub.req.Metadata.ID != "c1" {
		t.Errorf("request = %+v", pub.req)
	}
	if out.Status != campaign.StatusFailed {
		t.Errorf("Status = %q, want %q", out.Status, campaign.StatusFailed)
	}
}

func TestHandle_InvalidEvents(t *testing.T) {
	s := store.NewMemoryStore()
	seed(t, s)
	h := &handler{store: s, publisher: &recordingPublisher{}}

	tests := []struct {
		name  string
		event PublishEvent
	}{
		{"missing id", PublishEvent{}},
		{"unknown platform", PublishEvent{CampaignID: "c1", Platforms: []string{"fax"}}},
		{"unknown campaign", PublishEvent{CampaignID: "nope"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := h.handle(context.Background(), tt.event); err == nil {
				t.Error("handle() error = nil, want error")
			}
		})
	}

	if _, err := h.handle(context.Background(), PublishEvent{CampaignID: "nope"}); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestHandle_DuplicateDeliveryPublishesOnce(t *testing.T) {
	s := store.NewMemoryStore()
	seed(t, s)
	pub := &recordingPublisher{results: map[campaign.Platform]publish.Result{
		campaign.PlatformTelegram: {Platform: campaign.PlatformTelegram, Success: true, HeadMessageID: 7},
	}}
	notifier := &recordingNotifier{}
	h := &handler{store: s, publisher: pub, notifier: notifier}
	event := PublishEvent{CampaignID: "c1", Platforms: []string{"telegram"}}

	out, err := h.handle(context.Background(), event)
	if err != nil || out.Status != campaign.StatusPublished {
		t.Fatalf("first delivery = %+v, %v", out, err)
	}

	_, err = h.handle(context.Background(), event)
	if !errors.Is(err, store.ErrConflict) {
		t.Errorf("second delivery err = %v, want ErrConflict", err)
	}
	if pub.calls != 1 || len(notifier.reports) != 1 {
		t.Errorf("publisher calls = %d, events = %d; want 1, 1", pub.calls, len(notifier.reports))
	}
	rec, _ := s.GetCampaign(context.Background(), "c1")
	if rec.Status != campaign.StatusPublished {
		t.Errorf("status = %s, want published", rec.Status)
	}
}

func TestHandle_InFlightCampaignRejected(t *testing.T) {
	s := store.NewMemoryStore()
	seed(t, s)
	s.UpdateCampaign(context.Background(), "c1", store.Update{Status: campaign.StatusPublishing})
	pub := &recordingPublisher{}
	h := &handler{store: s, publisher: pub}

	if _, err := h.handle(context.Background(), PublishEvent{CampaignID: "c1"}); !errors.Is(err, store.ErrConflict) {
		t.Errorf("err = %v, want ErrConflict", err)
	}
	if pub.calls != 0 {
		t.Errorf("publisher calls = %d, want 0", pub.calls)
	}
}
