package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/mail"
	"strings"

	"github.com/labstack/echo/v5"

	"github.com/magnetlab/magnetlab/internal/metrics"
	"github.com/magnetlab/magnetlab/internal/store"
	syncer "github.com/magnetlab/magnetlab/internal/sync"
)

type captureLeadRequest struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

type captureLeadResponse struct {
	ID string `json:"id"`
}

// HandleCaptureLead records a lead submitted on a public funnel page and
// kicks off provider sync in the background. The response does not wait
// for any provider call.
func (h *Handlers) HandleCaptureLead(c *echo.Context) error {
	slug := strings.TrimSpace(c.Param("slug"))
	page, err := h.Store.GetFunnelPageBySlug(c.Request().Context(), slug)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "funnel page not found")
		}
		return err
	}

	var req captureLeadRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	req.Email = strings.TrimSpace(req.Email)
	req.Name = strings.TrimSpace(req.Name)
	if req.Email == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "email is required")
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "email is not valid")
	}

	lead, err := h.Store.CreateLead(c.Request().Context(), store.CreateLeadParams{
		FunnelPageID: page.ID,
		Email:        req.Email,
		Name:         req.Name,
	})
	if err != nil {
		return err
	}
	metrics.LeadsCapturedTotal.WithLabelValues(page.Slug).Inc()

	// Sync runs detached from the request lifecycle. The capture is already
	// durable, so a provider outage must not surface to the visitor.
	bg := context.WithoutCancel(c.Request().Context())
	go func() {
		defer func() {
			if r := recover(); r != nil {
				slog.Error("lead sync panicked", "funnel_page_id", page.ID, "panic", r)
			}
		}()
		h.Syncer.SyncLead(bg, page.ID, syncer.Lead{Email: lead.Email, Name: lead.Name})
	}()

	return c.JSON(http.StatusAccepted, captureLeadResponse{ID: lead.ID.String()})
}
