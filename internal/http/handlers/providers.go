package handlers

import (
	"net/http"

	"github.com/labstack/echo/v5"
)

type providerInfo struct {
	Kind         string `json:"kind"`
	DisplayName  string `json:"display_name"`
	ListNoun     string `json:"list_noun"`
	SupportsTags bool   `json:"supports_tags"`
}

// HandleListProviders returns the supported email marketing providers.
func (h *Handlers) HandleListProviders(c *echo.Context) error {
	defs := h.Registry.All()
	out := make([]providerInfo, 0, len(defs))
	for _, def := range defs {
		out = append(out, providerInfo{
			Kind:         def.Kind(),
			DisplayName:  def.DisplayName(),
			ListNoun:     def.ListNoun(),
			SupportsTags: def.SupportsTags(),
		})
	}
	return c.JSON(http.StatusOK, out)
}
