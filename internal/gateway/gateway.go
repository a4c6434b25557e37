// Package gateway implements the WebSocket Gateway of spec section 4.3: a
// stateless edge that verifies capability tokens, consumes their one-time
// identifiers, resolves routing, and proxies a bidirectional stream to the
// workload pod's terminal server.
package gateway

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/arakoodev/k8s-cli-agents/internal/capability"
	"github.com/arakoodev/k8s-cli-agents/internal/config"
	"github.com/arakoodev/k8s-cli-agents/internal/store"
)

// Gateway is the sandbox-gateway service, per spec section 4.3. It never touches
// the Controller's private key material, only its published key set, so it can run
// in a different trust domain and scale independently of the Controller.
type Gateway struct {
	cfg   *config.GatewayConfig
	store store.Store
	keys  capability.KeySource
	log   *log.Entry

	echo *echo.Echo
}

// New builds a Gateway and wires its echo instance.
func New(cfg *config.GatewayConfig, st store.Store, keys capability.KeySource) *Gateway {
	gw := &Gateway{
		cfg:   cfg,
		store: st,
		keys:  keys,
		log:   log.WithField("component", "gateway"),
	}
	gw.setupEcho()
	return gw
}

func (gw *Gateway) setupEcho() {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())

	e.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	e.GET("/ws/:sessionId", gw.handleWebSocket)

	gw.echo = e
}

// Run starts the HTTP server and blocks until ctx is cancelled, mirroring
// Controller.Run's bounded graceful shutdown.
func (gw *Gateway) Run(ctx context.Context) error {
	errc := make(chan error, 1)
	go func() {
		if err := gw.echo.Start(gw.cfg.BindAddr); err != nil && err != http.ErrServerClosed {
			errc <- err
			return
		}
		errc <- nil
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return gw.echo.Shutdown(shutdownCtx)
	}
}
