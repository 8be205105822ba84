package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v5"

	"github.com/magnetlab/magnetlab/internal/connectors/configstore"
	"github.com/magnetlab/magnetlab/internal/connectors/registry"
	"github.com/magnetlab/magnetlab/internal/store"
)

type upsertIntegrationRequest struct {
	APIKey   string            `json:"api_key"`
	Metadata map[string]string `json:"metadata"`
}

type connectionTestResponse struct {
	Success bool `json:"success"`
}

// HandleUpsertIntegration validates submitted credentials against the live
// vendor API and stores them encrypted on success.
func (h *Handlers) HandleUpsertIntegration(c *echo.Context) error {
	userID, err := h.userID(c)
	if err != nil {
		return err
	}
	kind := c.Param("provider")
	if !configstore.IsKind(kind) {
		return echo.NewHTTPError(http.StatusNotFound, "unknown provider: "+kind)
	}

	var req upsertIntegrationRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	req.APIKey = strings.TrimSpace(req.APIKey)
	if req.APIKey == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "api_key is required")
	}

	creds := configstore.Credentials{APIKey: req.APIKey, Metadata: req.Metadata}
	provider, err := h.providerFactory()(kind, creds)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if !provider.ValidateCredentials(c.Request().Context()) {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "credential validation failed against the provider API")
	}

	if err := h.Store.UpsertUserIntegration(c.Request().Context(), store.UpsertUserIntegrationParams{
		UserID:   userID,
		Provider: kind,
		APIKey:   req.APIKey,
		Metadata: req.Metadata,
	}); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// HandleDeleteIntegration removes a stored credential.
func (h *Handlers) HandleDeleteIntegration(c *echo.Context) error {
	userID, err := h.userID(c)
	if err != nil {
		return err
	}
	kind := c.Param("provider")
	if !configstore.IsKind(kind) {
		return echo.NewHTTPError(http.StatusNotFound, "unknown provider: "+kind)
	}
	if err := h.Store.DeleteUserIntegration(c.Request().Context(), userID, kind); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "no credential stored for "+kind)
		}
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// HandleTestIntegration runs a live connection test with the stored credential.
func (h *Handlers) HandleTestIntegration(c *echo.Context) error {
	provider, err := h.storedProvider(c)
	if err != nil {
		return err
	}
	ok := provider.ValidateCredentials(c.Request().Context())
	return c.JSON(http.StatusOK, connectionTestResponse{Success: ok})
}

// HandleProviderLists fetches the audiences, groups, or forms available on
// the connected account. Vendor errors propagate here so the caller can see
// what the provider reported.
func (h *Handlers) HandleProviderLists(c *echo.Context) error {
	provider, err := h.storedProvider(c)
	if err != nil {
		return err
	}
	lists, err := provider.Lists(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	if lists == nil {
		lists = []registry.List{}
	}
	return c.JSON(http.StatusOK, lists)
}

// HandleProviderTags fetches the tags available on the connected account.
func (h *Handlers) HandleProviderTags(c *echo.Context) error {
	provider, err := h.storedProvider(c)
	if err != nil {
		return err
	}
	tags, err := provider.Tags(c.Request().Context(), strings.TrimSpace(c.QueryParam("list_id")))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	if tags == nil {
		tags = []registry.Tag{}
	}
	return c.JSON(http.StatusOK, tags)
}

func (h *Handlers) storedProvider(c *echo.Context) (registry.Provider, error) {
	userID, err := h.userID(c)
	if err != nil {
		return nil, err
	}
	kind := c.Param("provider")
	if !configstore.IsKind(kind) {
		return nil, echo.NewHTTPError(http.StatusNotFound, "unknown provider: "+kind)
	}
	integ, err := h.Store.GetUserIntegration(c.Request().Context(), userID, kind)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, echo.NewHTTPError(http.StatusNotFound, "no credential stored for "+kind)
		}
		return nil, err
	}
	provider, err := h.providerFactory()(kind, configstore.Credentials{
		APIKey:   integ.APIKey,
		Metadata: integ.Metadata,
	})
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return provider, nil
}
