package publish

import (
	"fmt"

	"github.com/fpang/prachar/internal/campaign"
)

// State is the lifecycle of one campaign publish attempt:
// Pending -> Publishing -> {PartiallyPublished, Published, Failed}.
type State string

const (
	StatePending            State = "pending"
	StatePublishing         State = "publishing"
	StatePartiallyPublished State = "partially_published"
	StatePublished          State = "published"
	StateFailed             State = "failed"
)

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	switch s {
	case StatePublished, StatePartiallyPublished, StateFailed:
		return true
	}
	return false
}

// Transition validates a state change.
func (s State) Transition(next State) (State, error) {
	valid := false
	switch s {
	case StatePending:
		valid = next == StatePublishing
	case StatePublishing:
		valid = next.Terminal()
	}
	if !valid {
		return s, fmt.Errorf("invalid publish state transition %s -> %s", s, next)
	}
	return next, nil
}

// Outcome derives the terminal state from the collected results.
func Outcome(results map[campaign.Platform]Result) State {
	ok, failed := 0, 0
	for _, r := range results {
		if r.Success {
			ok++
		} else {
			failed++
		}
	}
	switch {
	case ok > 0 && failed == 0:
		return StatePublished
	case ok > 0:
		return StatePartiallyPublished
	default:
		return StateFailed
	}
}

// CampaignStatus maps a terminal attempt state to the stored campaign status.
func (s State) CampaignStatus() campaign.Status {
	switch s {
	case StatePublished:
		return campaign.StatusPublished
	case StatePartiallyPublished:
		return campaign.StatusPartiallyPublished
	case StateFailed:
		return campaign.StatusFailed
	default:
		return campaign.StatusPublishing
	}
}
