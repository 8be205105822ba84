// Package httpapp wires the echo server and its routes.
package httpapp

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v5"

	"github.com/magnetlab/magnetlab/internal/config"
	"github.com/magnetlab/magnetlab/internal/connectors/registry"
	"github.com/magnetlab/magnetlab/internal/http/handlers"
	"github.com/magnetlab/magnetlab/internal/store"
)

// EchoServer is the HTTP server wrapper.
type EchoServer struct {
	h   *handlers.Handlers
	e   *echo.Echo
	srv *http.Server
}

// NewEchoServer creates a new HTTP server.
func NewEchoServer(cfg config.Config, st store.Store, syncer handlers.LeadSyncRunner, reg *registry.Registry) (*EchoServer, error) {
	h := &handlers.Handlers{Cfg: cfg, Store: st, Syncer: syncer, Registry: reg}
	es := &EchoServer{h: h, e: echo.New()}
	es.e.HTTPErrorHandler = jsonErrorHandler
	es.registerRoutes()
	return es, nil
}

func (es *EchoServer) registerRoutes() {
	es.e.GET("/healthz", es.h.HandleHealthz)

	es.e.POST("/api/funnels/:slug/leads", es.h.HandleCaptureLead)

	admin := es.e.Group("/api", es.h.RequireAPIToken)
	admin.GET("/providers", es.h.HandleListProviders)
	admin.PUT("/integrations/:provider", es.h.HandleUpsertIntegration)
	admin.DELETE("/integrations/:provider", es.h.HandleDeleteIntegration)
	admin.POST("/integrations/:provider/test", es.h.HandleTestIntegration)
	admin.GET("/integrations/:provider/lists", es.h.HandleProviderLists)
	admin.GET("/integrations/:provider/tags", es.h.HandleProviderTags)
	admin.POST("/funnels/:id/integrations", es.h.HandleCreateMapping)
	admin.DELETE("/funnels/:id/integrations/:mappingID", es.h.HandleDeactivateMapping)
}

// Echo exposes the underlying echo instance for tests.
func (es *EchoServer) Echo() *echo.Echo {
	return es.e
}

// Start starts the HTTP server.
func (es *EchoServer) Start(addr string) error {
	es.srv = &http.Server{Addr: addr, Handler: es.e}
	return es.srv.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server.
func (es *EchoServer) Shutdown(ctx context.Context) error {
	if es.srv == nil {
		return nil
	}
	return es.srv.Shutdown(ctx)
}

// jsonErrorHandler renders every error as {"error": ...}. Unexpected errors
// are logged and collapsed to a generic 500 message.
func jsonErrorHandler(c *echo.Context, err error) {
	if resp, err := echo.UnwrapResponse(c.Response()); err == nil && resp.Committed {
		return
	}

	code := http.StatusInternalServerError
	msg := "internal server error"
	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
		if he.Message != "" {
			msg = he.Message
		} else {
			msg = http.StatusText(code)
		}
	} else {
		slog.Error("request failed", "method", c.Request().Method, "path", c.Request().URL.Path, "err", err)
	}

	if c.Request().Method == http.MethodHead {
		if err := c.NoContent(code); err != nil {
			slog.Error("writing error response failed", "err", err)
		}
		return
	}
	if err := c.JSON(code, map[string]string{"error": msg}); err != nil {
		slog.Error("writing error response failed", "err", err)
	}
}
