package store

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/fpang/prachar/internal/campaign"
	"github.com/fpang/prachar/internal/publish"
)

// MemoryStore is an in-process CampaignStore for local runs and tests.
// Records are copied on the way in and out.
type MemoryStore struct {
	mu        sync.RWMutex
	campaigns map[string]campaign.Record
	reports   map[string][]publish.Report
	now       func() time.Time
}

var _ CampaignStore = (*MemoryStore)(nil)

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		campaigns: make(map[string]campaign.Record),
		reports:   make(map[string][]publish.Report),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (m *MemoryStore) PutCampaign(ctx context.Context, rec *campaign.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now
	m.campaigns[rec.ID] = *rec
	return nil
}

func (m *MemoryStore) GetCampaign(ctx context.Context, id string) (*campaign.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.campaigns[id]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (m *MemoryStore) ListCampaigns(ctx context.Context) ([]*campaign.Record, error) {
	m.mu.RLock()
	out := make([]*campaign.Record, 0, len(m.campaigns))
	for _, rec := range m.campaigns {
		rec := rec
		out = append(out, &rec)
	}
	m.mu.RUnlock()

	// Map order is random; break CreatedAt ties by id.
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	sortNewestFirst(out)
	return out, nil
}

func (m *MemoryStore) UpdateCampaign(ctx context.Context, id string, u Update) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.campaigns[id]
	if !ok {
		return ErrNotFound
	}
	if len(u.IfStatus) > 0 && !slices.Contains(u.IfStatus, rec.Status) {
		return fmt.Errorf("campaign %s is %s: %w", id, rec.Status, ErrConflict)
	}
	if u.Status != "" {
		rec.Status = u.Status
	}
	if u.ReelKey != "" {
		rec.ReelKey = u.ReelKey
	}
	rec.Error = u.Error
	rec.UpdatedAt = m.now()
	m.campaigns[id] = rec
	return nil
}

func (m *MemoryStore) PutPublishReport(ctx context.Context, report *publish.Report) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := *report
	r.Results = make(map[campaign.Platform]publish.Result, len(report.Results))
	for p, res := range report.Results {
		r.Results[p] = res
	}
	m.reports[report.CampaignID] = append(m.reports[report.CampaignID], r)
	return nil
}

func (m *MemoryStore) ListPublishReports(ctx context.Context, id string) ([]*publish.Report, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	stored := m.reports[id]
	out := make([]*publish.Report, 0, len(stored))
	for i := len(stored) - 1; i >= 0; i-- {
		r := stored[i]
		out = append(out, &r)
	}
	return out, nil
}
