// Package store persists campaign records and their publish reports.
//
// The DynamoDB implementation uses a single-table design where every record
// for a campaign shares the partition key CAMPAIGN#{id}. The campaign itself
// lives at SK = META; each publish attempt is appended at SK = PUBLISH#{time}.
package store

import (
	"context"
	"errors"

	"github.com/fpang/prachar/internal/campaign"
	"github.com/fpang/prachar/internal/publish"
)

// ErrNotFound is returned by updates addressed to a campaign that does not exist.
var ErrNotFound = errors.New("campaign not found")

// ErrConflict is returned by a conditional update when the campaign is not in
// one of the expected statuses.
var ErrConflict = errors.New("campaign status conflict")

// PublishableStatuses are the statuses a campaign may be published from.
// Publishing and processing campaigns are busy; published ones are done.
var PublishableStatuses = []campaign.Status{
	campaign.StatusUploaded,
	campaign.StatusReady,
	campaign.StatusPartiallyPublished,
	campaign.StatusFailed,
	campaign.StatusError,
}

// Update is a partial update of a campaign record. Empty fields are left unchanged,
// except Error which is always written so a successful step clears a previous failure.
type Update struct {
	Status  campaign.Status
	ReelKey string
	Error   string
	// IfStatus makes the update conditional on the current status being one
	// of these. The check and write are atomic.
	IfStatus []campaign.Status
}

// CampaignStore defines the persistence interface for campaigns.
// Each method is safe for concurrent use.
//
// Get methods return (nil, nil) when the record does not exist.
// Put methods perform full-item replacement.
type CampaignStore interface {
	// PutCampaign creates or replaces a campaign record. CreatedAt is set
	// when zero; UpdatedAt is always refreshed.
	PutCampaign(ctx context.Context, rec *campaign.Record) error

	// GetCampaign retrieves a campaign by id with a single keyed lookup.
	GetCampaign(ctx context.Context, id string) (*campaign.Record, error)

	// ListCampaigns returns every campaign, newest first.
	ListCampaigns(ctx context.Context) ([]*campaign.Record, error)

	// UpdateCampaign applies u without overwriting other fields.
	// Returns ErrNotFound when the campaign does not exist.
	UpdateCampaign(ctx context.Context, id string, u Update) error

	// PutPublishReport appends the report of one publish attempt.
	PutPublishReport(ctx context.Context, report *publish.Report) error

	// ListPublishReports returns the campaign's publish reports, newest first.
	ListPublishReports(ctx context.Context, id string) ([]*publish.Report, error)
}

// ClaimForPublish atomically moves a publishable campaign to publishing.
// It returns ErrConflict when another attempt holds the campaign or it was
// already published, and ErrNotFound when it does not exist.
func ClaimForPublish(ctx context.Context, s CampaignStore, id string) error {
	return s.UpdateCampaign(ctx, id, Update{
		Status:   campaign.StatusPublishing,
		IfStatus: PublishableStatuses,
	})
}
