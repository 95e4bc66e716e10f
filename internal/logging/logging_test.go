package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"", zerolog.InfoLevel},
		{"debug", zerolog.DebugLevel},
		{"WARN", zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{" error ", zerolog.ErrorLevel},
		{"trace", zerolog.TraceLevel},
		{"bogus", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestInitWith_JSON(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.InfoLevel)
	var buf bytes.Buffer
	InitWith(&buf, "warn", "json")

	log.Info().Msg("hidden")
	log.Warn().Str("campaign_id", "c1").Msg("shown")

	out := strings.TrimSpace(buf.String())
	if strings.Contains(out, "hidden") {
		t.Error("info event should be filtered at warn level")
	}
	var evt map[string]any
	if err := json.Unmarshal([]byte(out), &evt); err != nil {
		t.Fatalf("expected a JSON line, got %q: %v", out, err)
	}
	if evt["campaign_id"] != "c1" || evt["message"] != "shown" {
		t.Errorf("event = %v", evt)
	}
}

func TestStartupLogger(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.InfoLevel)
	var buf bytes.Buffer
	InitWith(&buf, "info", "json")

	NewStartupLogger("campaign-web").
		Feature("telegram", true).
		Feature("instagram", false).
		DynamoTable("campaigns", "prachar-campaigns").
		SSMParam("telegramToken", "/prachar/prod/telegram-bot-token").
		Config("campaignsDir", "campaigns").
		Log()

	var evt struct {
		Service   map[string]any    `json:"service"`
		Features  map[string]bool   `json:"features"`
		Config    map[string]string `json:"config"`
		Resources struct {
			DynamoTables map[string]string `json:"dynamoTables"`
			SSMParams    map[string]string `json:"ssmParams"`
		} `json:"resources"`
	}
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &evt); err != nil {
		t.Fatalf("decode: %v (%s)", err, buf.String())
	}
	if evt.Service["name"] != "campaign-web" {
		t.Errorf("service = %v", evt.Service)
	}
	if !evt.Features["telegram"] || evt.Features["instagram"] {
		t.Errorf("features = %v", evt.Features)
	}
	if evt.Resources.DynamoTables["campaigns"] != "prachar-campaigns" {
		t.Errorf("tables = %v", evt.Resources.DynamoTables)
	}
	if evt.Config["campaignsDir"] != "campaigns" {
		t.Errorf("config = %v", evt.Config)
	}
}
