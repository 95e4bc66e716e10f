package instagram

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

// DefaultInsightMetrics are the media insight metrics fetched by default.
var DefaultInsightMetrics = []string{
	"likes", "comments", "shares", "saves", "reach", "impressions", "plays", "profile_visits",
}

type insightsResponse struct {
	Data []struct {
		Name   string `json:"name"`
		Period string `json:"period"`
		Values []struct {
			Value int64 `json:"value"`
		} `json:"values"`
		TotalValue *struct {
			Value int64 `json:"value"`
		} `json:"total_value,omitempty"`
	} `json:"data"`
	Error *GraphError `json:"error,omitempty"`
}

// Insights fetches performance metrics for a published media id and
// returns metric name to value. Nil metrics means DefaultInsightMetrics.
func (c *Client) Insights(ctx context.Context, mediaID string, metrics []string) (map[string]int64, error) {
	if len(metrics) == 0 {
		metrics = DefaultInsightMetrics
	}
	var resp insightsResponse
	query := url.Values{"metric": {strings.Join(metrics, ",")}}
	if err := c.getJSON(ctx, fmt.Sprintf("/%s/insights", mediaID), query, &resp); err != nil {
		return nil, fmt.Errorf("insights for %s: %w", mediaID, err)
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("insights for %s: %w", mediaID, classify(0, resp.Error))
	}

	out := make(map[string]int64, len(resp.Data))
	for _, d := range resp.Data {
		switch {
		case d.TotalValue != nil:
			out[d.Name] = d.TotalValue.Value
		case len(d.Values) > 0:
			out[d.Name] = d.Values[len(d.Values)-1].Value
		}
	}
	return out, nil
}
