// Package store persists lead records and TTL-cached registry lookups. It is
// both the pipeline's system of record and its dedup layer.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/caracol-labs/salesmachine/internal/model"
)

// ErrNotFound is returned when no lead exists for a domain.
var ErrNotFound = eris.New("store: lead not found")

// ErrInvalidTransition is returned when a status change violates the
// state machine's transition table.
var ErrInvalidTransition = eris.New("store: invalid status transition")

// LeadPatch is a merge-upsert: nil field groups are left untouched so stage
// handlers only write the fields they own.
type LeadPatch struct {
	Domain string

	OriginQuery *string
	RequesterID *string

	Fingerprint *model.Fingerprint
	Profile     *model.CompanyProfile
	Contacts    []model.Contact
	Registry    *model.RegistryRecord
	Copies      *model.CopySet

	PreliminaryScore *int
	FinalScore       *int
}

// ListFilter selects leads for listing.
type ListFilter struct {
	Status model.Status
	Query  string
	Limit  int
	Offset int
}

// Store defines the persistence interface for the lead pipeline.
type Store interface {
	// Leads
	CreateLead(ctx context.Context, domain, originQuery, requesterID string) (*model.Lead, error)
	GetLead(ctx context.Context, domain string) (*model.Lead, error)
	UpdateLead(ctx context.Context, patch LeadPatch) error
	TransitionStatus(ctx context.Context, domain string, next model.Status) error
	ResetLead(ctx context.Context, domain string) error
	IsFresh(ctx context.Context, domain string, window time.Duration) (bool, error)
	ListLeads(ctx context.Context, filter ListFilter) ([]model.Lead, error)
	PurgeLeads(ctx context.Context, olderThan time.Time) (int, error)

	// Registry lookup cache
	GetRegistryCache(ctx context.Context, taxID string) ([]byte, error)
	SetRegistryCache(ctx context.Context, taxID string, payload []byte, ttl time.Duration) error
	DeleteExpiredRegistryCache(ctx context.Context) (int, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// isFresh applies the freshness rule shared by both backends: a lead counts
// as fresh when its creation time falls inside the window. Comparison is
// done in UTC; a zero timestamp means not fresh (eligible to reprocess).
func isFresh(createdAt time.Time, now time.Time, window time.Duration) bool {
	if createdAt.IsZero() {
		return false
	}
	return now.UTC().Sub(createdAt.UTC()) <= window
}
