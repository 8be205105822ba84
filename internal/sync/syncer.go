// Package sync fans a captured lead out to every active email marketing
// integration of its funnel page.
package sync

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/magnetlab/magnetlab/internal/connectors"
	"github.com/magnetlab/magnetlab/internal/connectors/configstore"
	"github.com/magnetlab/magnetlab/internal/connectors/registry"
	"github.com/magnetlab/magnetlab/internal/metrics"
	"github.com/magnetlab/magnetlab/internal/store"
)

const defaultWorkers = 4

// Lead is the captured contact handed to the syncer.
type Lead struct {
	Email string
	Name  string
}

// Store is the slice of persistence the syncer needs.
type Store interface {
	ListActiveIntegrationMappings(ctx context.Context, funnelPageID uuid.UUID) ([]store.IntegrationMapping, error)
	GetUserIntegration(ctx context.Context, userID uuid.UUID, provider string) (*store.UserIntegration, error)
}

// ProviderFactory builds a provider client from stored credentials.
type ProviderFactory func(kind string, creds configstore.Credentials) (registry.Provider, error)

// LeadSyncer pushes captured leads into the owners' email marketing tools.
type LeadSyncer struct {
	store       Store
	newProvider ProviderFactory
	workers     int
}

// NewLeadSyncer creates a syncer using the default provider factory.
func NewLeadSyncer(s Store, workers int) *LeadSyncer {
	return NewLeadSyncerWithFactory(s, connectors.New, workers)
}

// NewLeadSyncerWithFactory creates a syncer with a custom provider factory.
func NewLeadSyncerWithFactory(s Store, factory ProviderFactory, workers int) *LeadSyncer {
	if workers < 1 {
		workers = defaultWorkers
	}
	return &LeadSyncer{store: s, newProvider: factory, workers: workers}
}

// SyncLead subscribes the lead to every active integration mapping of the
// funnel page. Mappings run concurrently and are isolated from one another;
// every outcome terminates in a log line and a metric, never in an error to
// the caller. Mappings whose credential is gone are skipped silently: the
// user may have revoked access without deactivating the mapping row.
func (s *LeadSyncer) SyncLead(ctx context.Context, funnelPageID uuid.UUID, lead Lead) {
	mappings, err := s.store.ListActiveIntegrationMappings(ctx, funnelPageID)
	if err != nil {
		slog.Error("lead sync: loading integration mappings failed", "funnel_page_id", funnelPageID, "err", err)
		metrics.LeadSyncRunsTotal.WithLabelValues("error").Inc()
		return
	}
	if len(mappings) == 0 {
		return
	}

	results := ForEachSettled(ctx, mappings, s.workers, func(ctx context.Context, mapping store.IntegrationMapping) error {
		return s.syncMapping(ctx, mapping, lead)
	})

	outcome := "ok"
	for _, res := range results {
		if res.Err != nil {
			slog.Error("lead sync: mapping failed",
				"provider", res.Item.Provider,
				"funnel_page_id", funnelPageID,
				"email", lead.Email,
				"err", res.Err)
			outcome = "partial"
		}
	}
	metrics.LeadSyncRunsTotal.WithLabelValues(outcome).Inc()
}

func (s *LeadSyncer) syncMapping(ctx context.Context, mapping store.IntegrationMapping, lead Lead) error {
	integ, err := s.store.GetUserIntegration(ctx, mapping.UserID, mapping.Provider)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			slog.Debug("lead sync: no credential stored, skipping mapping",
				"provider", mapping.Provider, "user_id", mapping.UserID)
			return nil
		}
		return err
	}
	if strings.TrimSpace(integ.APIKey) == "" {
		slog.Debug("lead sync: credential has no api key, skipping mapping",
			"provider", mapping.Provider, "user_id", mapping.UserID)
		return nil
	}

	provider, err := s.newProvider(mapping.Provider, configstore.Credentials{
		APIKey:   integ.APIKey,
		Metadata: integ.Metadata,
	})
	if err != nil {
		return err
	}

	start := time.Now()
	result := provider.Subscribe(ctx, registry.SubscribeParams{
		ListID:    mapping.ListID,
		Email:     lead.Email,
		FirstName: firstName(lead.Name),
		TagID:     mapping.TagID,
	})
	metrics.SubscribeDuration.WithLabelValues(mapping.Provider).Observe(time.Since(start).Seconds())

	switch {
	case !result.Success:
		metrics.SubscribeTotal.WithLabelValues(mapping.Provider, "failure").Inc()
		slog.Error("lead sync: subscribe failed",
			"provider", mapping.Provider, "email", lead.Email, "list_id", mapping.ListID, "error", result.Error)
	case result.Error != "":
		metrics.SubscribeTotal.WithLabelValues(mapping.Provider, "partial").Inc()
		slog.Warn("lead sync: subscribed with warning",
			"provider", mapping.Provider, "email", lead.Email, "list_id", mapping.ListID, "warning", result.Error)
	default:
		metrics.SubscribeTotal.WithLabelValues(mapping.Provider, "success").Inc()
		slog.Info("lead sync: subscribed",
			"provider", mapping.Provider, "email", lead.Email, "list_id", mapping.ListID)
	}
	return nil
}

// firstName extracts the first whitespace-separated token of a full name.
func firstName(name string) string {
	fields := strings.Fields(name)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
