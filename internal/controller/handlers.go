package controller

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/arakoodev/k8s-cli-agents/internal/apierror"
	"github.com/arakoodev/k8s-cli-agents/internal/orchestrator"
	"github.com/arakoodev/k8s-cli-agents/internal/store"
	"github.com/arakoodev/k8s-cli-agents/pkg/model"
)

// jobNamePrefixLen is the number of sessionId characters folded into the
// orchestrator job name, per spec section 4.1: `jobName = "wscli-" +
// first-13-chars-of-sessionId`.
const jobNamePrefixLen = 13

// createSessionResponse is the body of a successful createSession, per spec
// section 6's Controller HTTP surface.
type createSessionResponse struct {
	SessionID string `json:"sessionId"`
	WsURL     string `json:"wsUrl"`
	Token     string `json:"token"`
}

// createSession implements spec section 4.1's createSession operation end to end:
// admission, session-row insert, orchestrator submit, pod-IP discovery,
// pod-binding update, token mint, and tokenId insert -- in that order, matching
// spec section 5's Controller ordering guarantee.
func (ctl *Controller) createSession(c echo.Context) error {
	var req createSessionRequest
	if err := c.Bind(&req); err != nil {
		return apierror.New(apierror.KindValidation, "malformed request body")
	}
	if err := ctl.validateCreateSession(req); err != nil {
		ctl.admissionTotal.WithLabelValues("rejected").Inc()
		return err
	}

	ownerID := ownerIDFrom(c)
	ctx := c.Request().Context()

	sessionID := uuid.New().String()
	jobName := "wscli-" + sessionID[:jobNamePrefixLen]
	now := time.Now().UTC()
	expiresAt := now.Add(time.Duration(ctl.cfg.SessionExpirySeconds) * time.Second)

	if err := ctl.store.InsertSession(ctx, model.Session{
		SessionID: sessionID,
		OwnerID:   ownerID,
		JobName:   jobName,
		CreatedAt: now,
		ExpiresAt: expiresAt,
	}); err != nil {
		ctl.admissionTotal.WithLabelValues("store_error").Inc()
		return apierror.Wrap(apierror.KindInternal, err, "unable to record session")
	}

	if err := ctl.orchestrator.SubmitJob(ctx, orchestrator.JobSpec{
		JobName:                 jobName,
		SessionID:               sessionID,
		Namespace:               ctl.cfg.Namespace,
		Image:                   ctl.cfg.RunnerImage,
		CodeURL:                 req.CodeURL,
		CodeChecksum:            req.CodeChecksum,
		Command:                 req.Command,
		Prompt:                  req.Prompt,
		TTLSecondsAfterFinished: ctl.cfg.JobTTLSeconds,
		ActiveDeadlineSeconds:   ctl.cfg.JobActiveDeadlineSeconds,
	}); err != nil {
		ctl.admissionTotal.WithLabelValues("orchestrator_error").Inc()
		return apierror.Wrap(apierror.KindOrchestratorFailed, err, "unable to submit workload job")
	}

	discoveryStart := time.Now()
	timeout := time.Duration(ctl.cfg.PodDiscoveryTimeoutSecs) * time.Second
	podIP, podName, err := ctl.orchestrator.DiscoverPodIP(ctx, ctl.cfg.Namespace, sessionID, timeout)
	ctl.discoveryLatency.Observe(time.Since(discoveryStart).Seconds())
	if err != nil {
		ctl.admissionTotal.WithLabelValues("discovery_timeout").Inc()
		return apierror.Wrap(apierror.KindDiscoveryTimeout, err, "pod IP not observed for session "+sessionID)
	}

	if err := ctl.store.UpdateSessionPod(ctx, sessionID, podIP, podName); err != nil {
		ctl.admissionTotal.WithLabelValues("store_error").Inc()
		return apierror.Wrap(apierror.KindStoreFailure, err, "unable to record discovered pod")
	}

	ttl := time.Duration(ctl.cfg.SessionExpirySeconds) * time.Second
	tokenID, token, err := ctl.signer.Mint(ownerID, sessionID, model.AttachAudience, ttl)
	if err != nil {
		ctl.admissionTotal.WithLabelValues("mint_error").Inc()
		return apierror.Wrap(apierror.KindInternal, err, "unable to mint capability token")
	}

	if err := ctl.store.InsertTokenID(ctx, tokenID, sessionID, now.Add(ttl)); err != nil {
		ctl.admissionTotal.WithLabelValues("store_error").Inc()
		return apierror.Wrap(apierror.KindStoreFailure, err, "unable to record token id")
	}

	ctl.admissionTotal.WithLabelValues("accepted").Inc()
	return c.JSON(http.StatusOK, createSessionResponse{
		SessionID: sessionID,
		WsURL:     ctl.wsURL(sessionID),
		Token:     token,
	})
}

func (ctl *Controller) wsURL(sessionID string) string {
	path := "/ws/" + sessionID
	base := strings.TrimSuffix(ctl.cfg.GatewayPublicURL, "/")
	if base == "" {
		return path
	}
	return base + path
}

// getSession implements spec section 4.1's getSession operation.
func (ctl *Controller) getSession(c echo.Context) error {
	sessionID := c.Param("id")
	if err := validateSessionID(sessionID); err != nil {
		return err
	}

	row, err := ctl.store.GetSession(c.Request().Context(), sessionID)
	if err == store.ErrNotFound {
		return apierror.New(apierror.KindNotFound, "session not found")
	}
	if err != nil {
		return apierror.Wrap(apierror.KindStoreFailure, err, "unable to read session")
	}

	if row.OwnerID != ownerIDFrom(c) {
		return apierror.New(apierror.KindForbidden, "caller does not own this session")
	}

	return c.JSON(http.StatusOK, row)
}
