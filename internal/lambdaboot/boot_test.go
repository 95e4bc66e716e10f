package lambdaboot

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/fpang/prachar/internal/campaign"
	"github.com/fpang/prachar/internal/config"
	"github.com/fpang/prachar/internal/gateway"
	"github.com/fpang/prachar/internal/media"
	"github.com/fpang/prachar/internal/publish"
	"github.com/fpang/prachar/internal/store"
)

func TestBuildGateway_RegistersConfiguredPlatforms(t *testing.T) {
	cfg := config.FromEnv(func(k string) string {
		return map[string]string{
			config.EnvTelegramBotToken:  "123:abc",
			config.EnvTelegramChannelID: "@prachar",
		}[k]
	})

	g := BuildGateway(cfg, nil, gateway.Options{})

	platforms := g.Platforms()
	if len(platforms) != 1 || platforms[0] != campaign.PlatformTelegram {
		t.Fatalf("Platforms = %v, want [telegram]", platforms)
	}

	// Instagram is not configured: its result fails without any network call.
	report := g.PublishCampaign(context.Background(), gateway.Request{
		Metadata: campaign.Metadata{ID: "c1"},
		Media:    []media.Ref{media.RemoteURL("https://cdn.example.com/a.jpg", media.KindImage)},
	}, []campaign.Platform{campaign.PlatformInstagram})

	r := report.Results[campaign.PlatformInstagram]
	if r.Error == nil || r.Error.Kind != publish.KindConfigurationMissing {
		t.Errorf("instagram result = %+v, want ConfigurationMissing", r)
	}
}

func TestInitStore_FallsBackToMemory(t *testing.T) {
	s := InitStore(AWSClients{}, false, "prachar-campaigns")
	if _, ok := s.(*store.MemoryStore); !ok {
		t.Errorf("expected MemoryStore without AWS, got %T", s)
	}
	if b := InitBucket(AWSClients{}, false, "media"); b != nil {
		t.Error("expected no bucket without AWS")
	}
}

func TestBuildGateway_InstagramURLValidation(t *testing.T) {
	mediaHost := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer mediaHost.Close()

	cfg := config.FromEnv(func(k string) string {
		return map[string]string{
			config.EnvInstagramAccessToken: "ig-token",
			config.EnvInstagramUserID:      "17841",
			config.EnvInstagramValidate:    "true",
		}[k]
	})
	g := BuildGateway(cfg, nil, gateway.Options{})

	// The failed HEAD check stops the publish before any Graph API call.
	report := g.PublishCampaign(context.Background(), gateway.Request{
		Metadata: campaign.Metadata{ID: "c1"},
		Media:    []media.Ref{media.RemoteURL(mediaHost.URL+"/a.jpg", media.KindImage)},
	}, []campaign.Platform{campaign.PlatformInstagram})

	r := report.Results[campaign.PlatformInstagram]
	if r.Error == nil || r.Error.Kind != publish.KindNoUsableMedia || !strings.Contains(r.Error.Message, "validation") {
		t.Errorf("instagram result = %+v, want NoUsableMedia from URL validation", r.Error)
	}
}
