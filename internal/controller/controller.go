// Package controller implements the Session Controller of spec section 4.1:
// admission, capability minting, and orchestrator job submission with
// deterministic pod-IP discovery.
package controller

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/arakoodev/k8s-cli-agents/internal/apierror"
	"github.com/arakoodev/k8s-cli-agents/internal/capability"
	"github.com/arakoodev/k8s-cli-agents/internal/config"
	"github.com/arakoodev/k8s-cli-agents/internal/orchestrator"
	"github.com/arakoodev/k8s-cli-agents/internal/store"
)

// Controller is the sandbox-controller service, per spec section 4.1. It holds no
// per-request state beyond the shared store and the in-memory signing key
// material, so it is horizontally scalable, matching spec section 4.1's "State:
// none beyond the shared store... horizontally scalable."
type Controller struct {
	cfg          *config.ControllerConfig
	store        store.Store
	orchestrator orchestrator.Client
	signer       *capability.Signer
	auth         Authenticator
	log          *log.Entry

	echo *echo.Echo

	admissionTotal   *prometheus.CounterVec
	discoveryLatency prometheus.Histogram
}

// New builds a Controller and wires its echo instance, grounded on teacher's
// internal/core.go Master.Run setup (middleware.Recover, middleware.RequestID,
// a configured CORS policy, a custom HTTPErrorHandler).
func New(
	cfg *config.ControllerConfig,
	st store.Store,
	orch orchestrator.Client,
	signer *capability.Signer,
	auth Authenticator,
) *Controller {
	ctl := &Controller{
		cfg:          cfg,
		store:        st,
		orchestrator: orch,
		signer:       signer,
		auth:         auth,
		log:          log.WithField("component", "controller"),
		admissionTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wscli_controller_admission_total",
			Help: "Count of createSession admission outcomes by result.",
		}, []string{"result"}),
		discoveryLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "wscli_controller_pod_discovery_seconds",
			Help:    "Time spent discovering a session's pod IP.",
			Buckets: prometheus.DefBuckets,
		}),
	}
	prometheus.MustRegister(ctl.admissionTotal, ctl.discoveryLatency)
	ctl.setupEcho()
	return ctl
}

func (ctl *Controller) setupEcho() {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: ctl.cfg.AllowedOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost},
	}))
	e.HTTPErrorHandler = ctl.errorHandler

	e.GET("/healthz", ctl.getHealthz)
	e.GET("/readyz", ctl.getReadyz)
	e.GET(wellKnownJWKSPath, ctl.getPublicKeySet)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := e.Group("/api", Middleware(ctl.auth), rateLimitMiddleware(ctl.cfg.SessionRateLimit))
	api.POST("/sessions", ctl.createSession)
	api.GET("/sessions/:id", ctl.getSession)

	ctl.echo = e
}

// errorHandler implements spec section 7's propagation policy: a categorized
// *apierror.Error renders its mapped status and reason; anything else is logged
// with a request correlation id and collapsed to a generic 500, never echoing the
// underlying cause to the client.
func (ctl *Controller) errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	requestID := c.Response().Header().Get(echo.HeaderXRequestID)

	if apiErr, ok := apierror.As(err); ok {
		ctl.log.WithError(err).WithField("request_id", requestID).
			WithField("kind", apiErr.Kind).Warn("request rejected")
		_ = c.JSON(apierror.StatusCode(apiErr.Kind), map[string]string{"error": apiErr.Reason})
		return
	}

	if he, ok := err.(*echo.HTTPError); ok {
		_ = c.JSON(he.Code, map[string]interface{}{"error": he.Message})
		return
	}

	ctl.log.WithError(err).WithField("request_id", requestID).Error("unexpected error")
	_ = c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal error"})
}

func (ctl *Controller) getHealthz(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := ctl.store.Ping(ctx); err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok", "database": "connected"})
}

func (ctl *Controller) getReadyz(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := ctl.store.Ping(ctx); err != nil {
		return c.String(http.StatusServiceUnavailable, "not ready")
	}
	if err := ctl.orchestrator.Ping(ctx); err != nil {
		return c.String(http.StatusServiceUnavailable, "not ready")
	}
	return c.String(http.StatusOK, "ready")
}

// Run starts the HTTP server and blocks until ctx is cancelled, at which point it
// performs a bounded graceful shutdown, per spec section 6's exit-code contract.
func (ctl *Controller) Run(ctx context.Context) error {
	errc := make(chan error, 1)
	go func() {
		if err := ctl.echo.Start(ctl.cfg.BindAddr); err != nil && err != http.ErrServerClosed {
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
		return ctl.echo.Shutdown(shutdownCtx)
	}
}
