package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fpang/prachar/internal/campaign"
	"github.com/fpang/prachar/internal/gateway"
	"github.com/fpang/prachar/internal/publish"
	"github.com/fpang/prachar/internal/store"
)

func TestParsePlatforms(t *testing.T) {
	got, err := parsePlatforms([]string{"Telegram", "instagram"})
	if err != nil {
		t.Fatalf("parsePlatforms: %v", err)
	}
	if len(got) != 2 || got[0] != campaign.PlatformTelegram || got[1] != campaign.PlatformInstagram {
		t.Errorf("parsePlatforms = %v", got)
	}
	if _, err := parsePlatforms([]string{"fax"}); err == nil {
		t.Error("parsePlatforms(fax) error = nil, want error")
	}
}

func TestStoredRequest_LocalDir(t *testing.T) {
	dir := t.TempDir()
	os.MkdirAll(filepath.Join(dir, campaign.AssetsDir), 0o755)
	os.WriteFile(filepath.Join(dir, campaign.AssetsDir, "a.jpg"), []byte("a"), 0o644)

	rec := &campaign.Record{Document: campaign.Document{StandardMetadata: campaign.StandardMetadata{ID: "c1"}}, Dir: dir}
	req, err := storedRequest(context.Background(), rec, nil)
	if err != nil {
		t.Fatalf("storedRequest: %v", err)
	}
	if len(req.Media) != 1 || req.Media[0].Name() != "a.jpg" {
		t.Errorf("media = %v", req.Media)
	}
}

func TestStoredRequest_NoDirNoBucket(t *testing.T) {
	rec := &campaign.Record{Document: campaign.Document{
		StandardMetadata: campaign.StandardMetadata{ID: "c1"},
		Assets:           []string{"assets/a.jpg"},
	}, Dir: filepath.Join(t.TempDir(), "gone")}
	_, err := storedRequest(context.Background(), rec, nil)
	if !publish.IsKind(err, publish.KindNoUsableMedia) {
		t.Errorf("err = %v, want NoUsableMedia", err)
	}
}

func TestReportOutcome(t *testing.T) {
	ok := &publish.Report{State: publish.StatePublished, Results: map[campaign.Platform]publish.Result{
		campaign.PlatformTelegram: {Platform: campaign.PlatformTelegram, Success: true},
	}}
	if err := reportOutcome(ok); err != nil {
		t.Errorf("reportOutcome(published) = %v, want nil", err)
	}

	partial := &publish.Report{State: publish.StatePartiallyPublished, Results: map[campaign.Platform]publish.Result{
		campaign.PlatformTelegram:  {Platform: campaign.PlatformTelegram, Success: true},
		campaign.PlatformInstagram: publish.Failed(campaign.PlatformInstagram, publish.Errorf(publish.KindProcessingTimeout, "container not ready")),
	}}
	err := reportOutcome(partial)
	if err == nil || !strings.Contains(err.Error(), "instagram:") || !strings.Contains(err.Error(), "partially_published") {
		t.Errorf("reportOutcome(partial) = %v", err)
	}
}

type countingPublisher struct {
	calls  int
	report publish.Report
}

func (c *countingPublisher) PublishCampaign(ctx context.Context, req gateway.Request, platforms []campaign.Platform) *publish.Report {
	c.calls++
	r := c.report
	return &r
}

type countingNotifier struct{ events int }

func (c *countingNotifier) PublishCompleted(ctx context.Context, report *publish.Report) error {
	c.events++
	return nil
}

func TestPublishClaimed(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	st.PutCampaign(ctx, &campaign.Record{
		Document: campaign.Document{StandardMetadata: campaign.StandardMetadata{ID: "c1"}},
		Status:   campaign.StatusReady,
	})
	pub := &countingPublisher{report: publish.Report{
		CampaignID: "c1",
		State:      publish.StatePartiallyPublished,
		Results: map[campaign.Platform]publish.Result{
			campaign.PlatformTelegram:  {Platform: campaign.PlatformTelegram, Success: true},
			campaign.PlatformInstagram: publish.Failed(campaign.PlatformInstagram, publish.Errorf(publish.KindNetworkFailure, "reset")),
		},
	}}
	notifier := &countingNotifier{}

	if _, err := publishClaimed(ctx, st, pub, notifier, "c1", gateway.Request{}, nil); err != nil {
		t.Fatalf("publishClaimed: %v", err)
	}
	rec, _ := st.GetCampaign(ctx, "c1")
	if rec.Status != campaign.StatusPartiallyPublished {
		t.Errorf("status = %s, want partially_published", rec.Status)
	}
	if !strings.HasPrefix(rec.Error, "instagram: NetworkFailure") {
		t.Errorf("stored error = %q", rec.Error)
	}
	if reports, _ := st.ListPublishReports(ctx, "c1"); len(reports) != 1 || notifier.events != 1 {
		t.Errorf("reports = %d events = %d", len(reports), notifier.events)
	}

	st.UpdateCampaign(ctx, "c1", store.Update{Status: campaign.StatusPublished})
	_, err := publishClaimed(ctx, st, pub, notifier, "c1", gateway.Request{}, nil)
	if !errors.Is(err, store.ErrConflict) {
		t.Errorf("republish err = %v, want ErrConflict", err)
	}
	if pub.calls != 1 {
		t.Errorf("publisher calls = %d, want 1", pub.calls)
	}
}
