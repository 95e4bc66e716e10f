package instagram

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fpang/prachar/internal/media"
)

const (
	validateTimeout = 10 * time.Second

	// MaxReelBytes and MaxImageBytes are Instagram's published upload ceilings.
	MaxReelBytes  = 1000 << 20
	MaxImageBytes = 30 << 20
)

var (
	reelContentTypes  = []string{"video/mp4", "video/quicktime", "video/mov"}
	imageContentTypes = []string{"image/jpeg", "image/jpg", "image/png", "image/webp"}
)

// ValidateMediaURL probes mediaURL with a HEAD request and reports whether
// it answers 2xx with a content type allowed for kind and a size within
// Instagram's ceiling. An absent Content-Length is accepted. It never fails;
// callers decide whether to abort.
func (c *Client) ValidateMediaURL(ctx context.Context, mediaURL string, kind media.Kind) bool {
	ctx, cancel := context.WithTimeout(ctx, validateTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, mediaURL, nil)
	if err != nil {
		log.Warn().Err(err).Msg("Media URL is malformed")
		return false
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Warn().Err(err).Msg("Media URL probe failed")
		return false
	}
	resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		log.Warn().Int("statusCode", resp.StatusCode).Msg("Media URL not reachable")
		return false
	}

	allowed, limit := imageContentTypes, int64(MaxImageBytes)
	if kind == media.KindVideo {
		allowed, limit = reelContentTypes, int64(MaxReelBytes)
	}

	contentType := strings.ToLower(strings.TrimSpace(strings.Split(resp.Header.Get("Content-Type"), ";")[0]))
	if !contains(allowed, contentType) {
		log.Warn().Str("contentType", contentType).Str("kind", string(kind)).Msg("Media URL has unsupported content type")
		return false
	}
	if resp.ContentLength > limit {
		log.Warn().Int64("bytes", resp.ContentLength).Int64("limit", limit).Msg("Media exceeds Instagram size limit")
		return false
	}
	return true
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
