package publish

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/fpang/prachar/internal/campaign"
)

func TestErrorIs(t *testing.T) {
	err := fmt.Errorf("instagram: %w", Errorf(KindTooManyItems, "11 items"))

	if !errors.Is(err, ErrTooManyItems) {
		t.Error("expected errors.Is to match TooManyItems sentinel")
	}
	if errors.Is(err, ErrNoUsableMedia) {
		t.Error("did not expect NoUsableMedia to match")
	}
	if !IsKind(err, KindTooManyItems) {
		t.Error("IsKind should see through wrapping")
	}
}

func TestErrorString(t *testing.T) {
	cause := errors.New("dial tcp: timeout")
	err := Wrap(KindNetworkFailure, cause, "send photo")
	if got, want := err.Error(), "NetworkFailure: send photo: dial tcp: timeout"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if !errors.Is(err, cause) {
		t.Error("Unwrap should expose the cause")
	}
	if !err.Retryable() {
		t.Error("network failures are retryable")
	}
}

func TestAsError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"classified", Errorf(KindProcessingTimeout, "x"), KindProcessingTimeout},
		{"canceled", context.Canceled, KindNetworkFailure},
		{"deadline", fmt.Errorf("wrap: %w", context.DeadlineExceeded), KindNetworkFailure},
		{"plain", errors.New("boom"), KindProviderRejected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := AsError(tt.err).Kind; got != tt.want {
				t.Errorf("AsError kind = %s, want %s", got, tt.want)
			}
		})
	}
	if AsError(nil) != nil {
		t.Error("AsError(nil) should be nil")
	}
}

func TestOutcome(t *testing.T) {
	ok := Result{Success: true}
	bad := Result{Error: ErrNetworkFailure}
	tests := []struct {
		name    string
		results map[campaign.Platform]Result
		want    State
	}{
		{"all ok", map[campaign.Platform]Result{"telegram": ok, "instagram": ok}, StatePublished},
		{"mixed", map[campaign.Platform]Result{"telegram": bad, "instagram": ok}, StatePartiallyPublished},
		{"all failed", map[campaign.Platform]Result{"telegram": bad}, StateFailed},
		{"empty", map[campaign.Platform]Result{}, StateFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Outcome(tt.results); got != tt.want {
				t.Errorf("Outcome = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestStateTransition(t *testing.T) {
	s, err := StatePending.Transition(StatePublishing)
	if err != nil || s != StatePublishing {
		t.Fatalf("pending -> publishing: %v, %v", s, err)
	}
	if _, err := s.Transition(StatePartiallyPublished); err != nil {
		t.Errorf("publishing -> partially_published should be valid: %v", err)
	}
	if _, err := StatePublished.Transition(StatePublishing); err == nil {
		t.Error("terminal states must not transition")
	}
	if _, err := StatePending.Transition(StatePublished); err == nil {
		t.Error("pending cannot jump to a terminal state")
	}
}

func TestReportErrors(t *testing.T) {
	r := Report{Results: map[campaign.Platform]Result{
		campaign.PlatformTelegram:  Failed(campaign.PlatformTelegram, Errorf(KindProviderRejected, "chat not found")),
		campaign.PlatformInstagram: {Platform: campaign.PlatformInstagram, Success: true},
	}}
	errs := r.Errors()
	if len(errs) != 1 {
		t.Fatalf("expected 1 error, got %d", len(errs))
	}
	if got := errs[campaign.PlatformTelegram]; got != "ProviderRejected: chat not found" {
		t.Errorf("telegram error = %q", got)
	}
}

type temporaryCause struct{ temporary bool }

func (c temporaryCause) Error() string   { return "container busy" }
func (c temporaryCause) Temporary() bool { return c.temporary }

func TestRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want bool
	}{
		{"network", Errorf(KindNetworkFailure, "reset"), true},
		{"temporary cause", Wrap(KindProviderRejected, temporaryCause{true}, "publish"), true},
		{"wrapped temporary cause", Wrap(KindProviderRejected, fmt.Errorf("graph: %w", temporaryCause{true}), "publish"), true},
		{"permanent cause", Wrap(KindProviderRejected, temporaryCause{false}, "publish"), false},
		{"rejected", Errorf(KindProviderRejected, "bad url"), false},
		{"too many", Errorf(KindTooManyItems, "11"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Retryable(); got != tt.want {
				t.Errorf("Retryable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestReportErrorSummary(t *testing.T) {
	report := &Report{Results: map[campaign.Platform]Result{
		campaign.PlatformInstagram: Failed(campaign.PlatformInstagram, Errorf(KindTooManyItems, "11 items")),
		campaign.PlatformTelegram:  Failed(campaign.PlatformTelegram, Errorf(KindNetworkFailure, "reset")),
	}}
	want := "telegram: NetworkFailure: reset; instagram: TooManyItems: 11 items"
	if got := report.ErrorSummary(); got != want {
		t.Errorf("ErrorSummary() = %q, want %q", got, want)
	}

	ok := &Report{Results: map[campaign.Platform]Result{
		campaign.PlatformTelegram: {Platform: campaign.PlatformTelegram, Success: true},
	}}
	if got := ok.ErrorSummary(); got != "" {
		t.Errorf("ErrorSummary() = %q, want empty", got)
	}
}
