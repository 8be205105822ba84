package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v5"

	"github.com/magnetlab/magnetlab/internal/connectors/configstore"
	"github.com/magnetlab/magnetlab/internal/store"
)

type createMappingRequest struct {
	Provider string `json:"provider"`
	ListID   string `json:"list_id"`
	TagID    string `json:"tag_id"`
}

type mappingResponse struct {
	ID           string `json:"id"`
	FunnelPageID string `json:"funnel_page_id"`
	Provider     string `json:"provider"`
	ListID       string `json:"list_id"`
	TagID        string `json:"tag_id,omitempty"`
	IsActive     bool   `json:"is_active"`
}

// HandleCreateMapping connects a funnel page to a destination list on one of
// the owner's integrations.
func (h *Handlers) HandleCreateMapping(c *echo.Context) error {
	userID, err := h.userID(c)
	if err != nil {
		return err
	}
	pageID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "funnel page id is not a valid UUID")
	}
	page, err := h.Store.GetFunnelPageByID(c.Request().Context(), pageID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "funnel page not found")
		}
		return err
	}

	var req createMappingRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	req.Provider = strings.TrimSpace(req.Provider)
	req.ListID = strings.TrimSpace(req.ListID)
	req.TagID = strings.TrimSpace(req.TagID)
	if !configstore.IsKind(req.Provider) {
		return echo.NewHTTPError(http.StatusBadRequest, "unknown provider: "+req.Provider)
	}
	if req.ListID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "list_id is required")
	}

	// The credential must exist before a mapping can reference it.
	if _, err := h.Store.GetUserIntegration(c.Request().Context(), userID, req.Provider); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return echo.NewHTTPError(http.StatusConflict, "no credential stored for "+req.Provider)
		}
		return err
	}

	mapping, err := h.Store.CreateIntegrationMapping(c.Request().Context(), store.CreateIntegrationMappingParams{
		FunnelPageID: page.ID,
		Provider:     req.Provider,
		ListID:       req.ListID,
		TagID:        req.TagID,
		UserID:       userID,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, mappingResponse{
		ID:           mapping.ID.String(),
		FunnelPageID: mapping.FunnelPageID.String(),
		Provider:     mapping.Provider,
		ListID:       mapping.ListID,
		TagID:        mapping.TagID,
		IsActive:     mapping.IsActive,
	})
}

// HandleDeactivateMapping disables a mapping without deleting its history.
func (h *Handlers) HandleDeactivateMapping(c *echo.Context) error {
	if _, err := h.userID(c); err != nil {
		return err
	}
	pageID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "funnel page id is not a valid UUID")
	}
	mappingID, err := uuid.Parse(c.Param("mappingID"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "mapping id is not a valid UUID")
	}
	if err := h.Store.DeactivateIntegrationMapping(c.Request().Context(), mappingID, pageID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "mapping not found")
		}
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
