// Package store defines the persistence interface for funnel pages, captured
// leads, provider credentials, and integration mappings.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a specific record is not found.
var ErrNotFound = errors.New("record not found")

// FunnelPage is a lead-magnet landing page owned by one user.
type FunnelPage struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Name      string
	Slug      string
	CreatedAt time.Time
}

// Lead is one captured visitor on a funnel page.
type Lead struct {
	ID           uuid.UUID
	FunnelPageID uuid.UUID
	Email        string
	Name         string
	CreatedAt    time.Time
}

// UserIntegration is one user's stored credential for a provider. APIKey is
// returned decrypted; it is encrypted at rest.
type UserIntegration struct {
	UserID    uuid.UUID
	Provider  string
	APIKey    string
	Metadata  map[string]string
	UpdatedAt time.Time
}

// IntegrationMapping binds a funnel page to one destination list (and
// optionally a tag) on a provider.
type IntegrationMapping struct {
	ID           uuid.UUID
	FunnelPageID uuid.UUID
	Provider     string
	ListID       string
	TagID        string
	UserID       uuid.UUID
	IsActive     bool
	CreatedAt    time.Time
}

// CreateLeadParams contains parameters for recording a captured lead.
type CreateLeadParams struct {
	FunnelPageID uuid.UUID
	Email        string
	Name         string
}

// UpsertUserIntegrationParams contains parameters for storing a credential.
type UpsertUserIntegrationParams struct {
	UserID   uuid.UUID
	Provider string
	APIKey   string
	Metadata map[string]string
}

// CreateIntegrationMappingParams contains parameters for creating a mapping.
type CreateIntegrationMappingParams struct {
	FunnelPageID uuid.UUID
	Provider     string
	ListID       string
	TagID        string
	UserID       uuid.UUID
}

// Store is the persistence interface. Implementations must return
// ErrNotFound (possibly wrapped) for missing single records.
type Store interface {
	// Funnel pages
	GetFunnelPageByID(ctx context.Context, id uuid.UUID) (*FunnelPage, error)
	GetFunnelPageBySlug(ctx context.Context, slug string) (*FunnelPage, error)

	// Leads
	CreateLead(ctx context.Context, arg CreateLeadParams) (*Lead, error)

	// Provider credentials
	UpsertUserIntegration(ctx context.Context, arg UpsertUserIntegrationParams) error
	GetUserIntegration(ctx context.Context, userID uuid.UUID, provider string) (*UserIntegration, error)
	DeleteUserIntegration(ctx context.Context, userID uuid.UUID, provider string) error

	// Integration mappings
	CreateIntegrationMapping(ctx context.Context, arg CreateIntegrationMappingParams) (*IntegrationMapping, error)
	DeactivateIntegrationMapping(ctx context.Context, id uuid.UUID, funnelPageID uuid.UUID) error
	ListActiveIntegrationMappings(ctx context.Context, funnelPageID uuid.UUID) ([]IntegrationMapping, error)
}
