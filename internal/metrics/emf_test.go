package metrics

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestNew_AutoDimension(t *testing.T) {
	initOnce.Do(func() {})
	functionName = "PublishFunction"
	defer func() { functionName = "" }()

	r := New("Prachar/Publish")
	if r.namespace != "Prachar/Publish" {
		t.Errorf("expected namespace Prachar/Publish, got %s", r.namespace)
	}
	if r.dimensions["FunctionName"] != "PublishFunction" {
		t.Errorf("expected FunctionName dimension PublishFunction, got %s", r.dimensions["FunctionName"])
	}
}

func TestRecorder_FlushOutput(t *testing.T) {
	initOnce.Do(func() {})
	functionName = ""

	var buf bytes.Buffer
	rec := NewWithWriter(&buf, "Prachar/Publish")
	rec.now = func() time.Time { return time.UnixMilli(1700000000000) }
	rec.Dimension("Platform", "telegram")
	rec.Metric("PublishDurationMs", 812, UnitMilliseconds)
	rec.Count("PublishSuccess")
	rec.Property("campaignId", "abc12345")
	rec.Flush()

	output := buf.String()
	if strings.Count(output, "\n") != 1 {
		t.Fatalf("expected a single line, got %q", output)
	}

	var doc struct {
		AWS struct {
			Timestamp         int64
			CloudWatchMetrics []struct {
				Namespace  string
				Dimensions [][]string
				Metrics    []metricDef
			}
		} `json:"_aws"`
		Platform          string
		PublishDurationMs float64
		PublishSuccess    float64
		CampaignID        string `json:"campaignId"`
	}
	if err := json.Unmarshal([]byte(output), &doc); err != nil {
		t.Fatalf("failed to parse EMF output as JSON: %v\nOutput: %s", err, output)
	}

	if doc.AWS.Timestamp != 1700000000000 {
		t.Errorf("timestamp = %d", doc.AWS.Timestamp)
	}
	cw := doc.AWS.CloudWatchMetrics
	if len(cw) != 1 || cw[0].Namespace != "Prachar/Publish" {
		t.Fatalf("unexpected CloudWatchMetrics: %+v", cw)
	}
	if len(cw[0].Dimensions) != 1 || len(cw[0].Dimensions[0]) != 1 || cw[0].Dimensions[0][0] != "Platform" {
		t.Errorf("dimensions = %v", cw[0].Dimensions)
	}
	if len(cw[0].Metrics) != 2 || cw[0].Metrics[0].Name != "PublishDurationMs" || cw[0].Metrics[1].Unit != UnitCount {
		t.Errorf("metrics = %+v", cw[0].Metrics)
	}
	if doc.Platform != "telegram" || doc.PublishDurationMs != 812 || doc.PublishSuccess != 1 || doc.CampaignID != "abc12345" {
		t.Errorf("top-level fields = %+v", doc)
	}
}

func TestRecorder_FlushEmpty(t *testing.T) {
	var buf bytes.Buffer
	NewWithWriter(&buf, "X").Property("k", "v").Flush()
	if buf.Len() != 0 {
		t.Errorf("expected no output without metrics, got %q", buf.String())
	}
}
