package publish

import (
	"strings"
	"time"

	"github.com/fpang/prachar/internal/campaign"
)

// Result is the outcome of one platform publish. It is always returned as
// data; failures are carried in Error, never raised.
type Result struct {
	Platform campaign.Platform `json:"platform" dynamodbav:"platform"`
	Success  bool              `json:"success" dynamodbav:"success"`

	// Telegram: the caption-bearing head message and its threaded replies.
	HeadMessageID   int64   `json:"headMessageId,omitempty" dynamodbav:"headMessageId,omitempty"`
	ReplyMessageIDs []int64 `json:"replyMessageIds,omitempty" dynamodbav:"replyMessageIds,omitempty"`

	// Instagram: per-item containers, the carousel container, and the published media.
	ContainerIDs []string `json:"containerIds,omitempty" dynamodbav:"containerIds,omitempty"`
	CarouselID   string   `json:"carouselId,omitempty" dynamodbav:"carouselId,omitempty"`
	MediaID      string   `json:"mediaId,omitempty" dynamodbav:"mediaId,omitempty"`
	MediaType    string   `json:"mediaType,omitempty" dynamodbav:"mediaType,omitempty"`

	Error      *Error `json:"error,omitempty" dynamodbav:"error,omitempty"`
	DurationMs int64  `json:"durationMs" dynamodbav:"durationMs"`
}

// Failed returns a failed result for platform carrying err.
func Failed(platform campaign.Platform, err error) Result {
	return Result{Platform: platform, Error: AsError(err)}
}

// Fail marks r as failed with err, keeping any ids already produced.
func (r *Result) Fail(err error) {
	r.Success = false
	r.Error = AsError(err)
}

// Report aggregates every platform result of one publish attempt.
type Report struct {
	CampaignID string                       `json:"campaignId" dynamodbav:"campaignId"`
	State      State                        `json:"state" dynamodbav:"state"`
	Results    map[campaign.Platform]Result `json:"results" dynamodbav:"-"`
	StartedAt  time.Time                    `json:"startedAt" dynamodbav:"startedAt"`
	FinishedAt time.Time                    `json:"finishedAt" dynamodbav:"finishedAt"`
	// Shared is set when the report came from a concurrent attempt for the same campaign.
	Shared bool `json:"shared,omitempty" dynamodbav:"-"`
}

// Errors returns the per-platform error strings of failed results.
func (r *Report) Errors() map[campaign.Platform]string {
	out := make(map[campaign.Platform]string)
	for p, res := range r.Results {
		if !res.Success && res.Error != nil {
			out[p] = res.Error.Error()
		}
	}
	return out
}

// ErrorSummary joins the failed platforms' errors in default platform order
// as "platform: error" pairs separated by "; ". It is empty when no platform
// failed.
func (r *Report) ErrorSummary() string {
	errs := r.Errors()
	parts := make([]string, 0, len(errs))
	for _, p := range campaign.AllPlatforms {
		if e, ok := errs[p]; ok {
			parts = append(parts, string(p)+": "+e)
		}
	}
	return strings.Join(parts, "; ")
}
