// Package handlers contains HTTP handler logic split by domain.
package handlers

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v5"

	"github.com/magnetlab/magnetlab/internal/config"
	"github.com/magnetlab/magnetlab/internal/connectors"
	"github.com/magnetlab/magnetlab/internal/connectors/configstore"
	"github.com/magnetlab/magnetlab/internal/connectors/registry"
	"github.com/magnetlab/magnetlab/internal/store"
	syncer "github.com/magnetlab/magnetlab/internal/sync"
)

// HeaderUserID identifies the acting user on admin routes.
const HeaderUserID = "X-User-ID"

// LeadSyncRunner pushes one captured lead to its funnel's integrations.
type LeadSyncRunner interface {
	SyncLead(ctx context.Context, funnelPageID uuid.UUID, lead syncer.Lead)
}

// ProviderFactory builds a provider client from stored credentials.
type ProviderFactory func(kind string, creds configstore.Credentials) (registry.Provider, error)

// Handlers groups all HTTP handlers and shared dependencies.
type Handlers struct {
	Cfg         config.Config
	Store       store.Store
	Syncer      LeadSyncRunner
	Registry    *registry.Registry
	NewProvider ProviderFactory
}

func (h *Handlers) providerFactory() ProviderFactory {
	if h.NewProvider != nil {
		return h.NewProvider
	}
	return connectors.New
}

// RequireAPIToken rejects requests without the configured bearer token.
// When no token is configured the admin API is disabled outright.
func (h *Handlers) RequireAPIToken(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c *echo.Context) error {
		if h.Cfg.APIToken == "" {
			return echo.NewHTTPError(http.StatusForbidden, "admin API is disabled: no API token configured")
		}
		auth := c.Request().Header.Get(echo.HeaderAuthorization)
		token, ok := strings.CutPrefix(auth, "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(h.Cfg.APIToken)) != 1 {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid or missing API token")
		}
		return next(c)
	}
}

func (h *Handlers) userID(c *echo.Context) (uuid.UUID, error) {
	raw := strings.TrimSpace(c.Request().Header.Get(HeaderUserID))
	if raw == "" {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, HeaderUserID+" header is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, HeaderUserID+" header is not a valid UUID")
	}
	return id, nil
}

// HandleHealthz returns a simple health check response.
func (h *Handlers) HandleHealthz(c *echo.Context) error {
	return c.String(http.StatusOK, "ok")
}
