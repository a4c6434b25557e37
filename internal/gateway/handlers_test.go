package gateway

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arakoodev/k8s-cli-agents/internal/capability"
	"github.com/arakoodev/k8s-cli-agents/internal/config"
	"github.com/arakoodev/k8s-cli-agents/internal/store/storetest"
	"github.com/arakoodev/k8s-cli-agents/pkg/model"
)

func TestExtractTokenSubprotocolForm(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/ws/x", nil)
	req.Header.Set("Sec-WebSocket-Protocol", "bearer,abc.def.ghi")

	token, ok := extractToken(req)
	require.True(t, ok)
	assert.Equal(t, "abc.def.ghi", token)
}

func TestExtractTokenSeparateFieldsForm(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/ws/x", nil)
	req.Header.Set("Sec-WebSocket-Protocol", "bearer, abc.def.ghi")

	token, ok := extractToken(req)
	require.True(t, ok)
	assert.Equal(t, "abc.def.ghi", token)
}

func TestExtractTokenQueryFallback(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/ws/x?token=qqq", nil)
	token, ok := extractToken(req)
	require.True(t, ok)
	assert.Equal(t, "qqq", token)
}

func TestExtractTokenMissing(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/ws/x", nil)
	_, ok := extractToken(req)
	assert.False(t, ok)
}

// newTestGateway builds a Gateway wired to a fake store and a fixed key pair,
// the same construction style used for the Controller's newTestController.
func newTestGateway(t *testing.T) (*Gateway, *storetest.Fake, *capability.Signer) {
	t.Helper()

	cfg := config.DefaultGatewayConfig()
	cfg.UpstreamConnectMs = 5000

	st := storetest.New()
	kp, err := capability.GenerateKeyPair()
	require.NoError(t, err)
	signer := capability.NewSigner(kp, kp)
	keys := capability.NewStaticKeySource([]*capability.KeyPair{kp})

	gw := &Gateway{
		cfg:   cfg,
		store: st,
		keys:  keys,
		log:   log.WithField("component", "gateway-test"),
	}
	gw.setupEcho()
	return gw, st, signer
}

// startEchoUpstream runs a minimal WebSocket server that echoes every binary
// frame it receives, standing in for the workload pod's terminal server.
func startEchoUpstream(t *testing.T) (addr string, port int, closeFn func()) {
	t.Helper()
	up := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			msg, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if err := conn.WriteMessage(msg, data); err != nil {
				return
			}
		}
	}))

	return srv.Listener.Addr().String(), srv.Listener.Addr().(*net.TCPAddr).Port, srv.Close
}

func seedSession(t *testing.T, st *storetest.Fake, signer *capability.Signer, sessionID, ownerID, podIP string) string {
	t.Helper()
	require.NoError(t, st.InsertSession(context.Background(), model.Session{
		SessionID: sessionID,
		OwnerID:   ownerID,
		JobName:   "wscli-" + sessionID[:8],
		CreatedAt: time.Now(),
		ExpiresAt: time.Now().Add(time.Hour),
	}))
	require.NoError(t, st.UpdateSessionPod(context.Background(), sessionID, podIP, "wscli-run-1"))

	tokenID, token, err := signer.Mint(ownerID, sessionID, model.AttachAudience, time.Hour)
	require.NoError(t, err)
	require.NoError(t, st.InsertTokenID(context.Background(), tokenID, sessionID, time.Now().Add(time.Hour)))
	return token
}

// TestProxyHappyPathEchoesBytes mirrors spec section 4.3's PROXYING state: a
// valid attach upgrades, splices to the upstream terminal, and the token id is
// consumed exactly once.
func TestProxyHappyPathEchoesBytes(t *testing.T) {
	gw, st, signer := newTestGateway(t)

	_, port, closeUpstream := startEchoUpstream(t)
	defer closeUpstream()
	gw.cfg.PodTerminalPort = port

	sessionID := "11111111-1111-4111-8111-111111111111"
	token := seedSession(t, st, signer, sessionID, "owner-1", "127.0.0.1")

	srv := httptest.NewServer(gw.echo)
	defer srv.Close()

	wsURL := "ws" + srv.URL[len("http"):] + "/ws/" + sessionID
	dialer := websocket.Dialer{Subprotocols: []string{"bearer," + token}}
	conn, _, err := dialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, []byte("hello")))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	assert.Zero(t, st.TokenCount(), "the only seeded token id must have been consumed by the attach")
}

// TestUpgradeDestroyedOnSessionMismatch mirrors spec section 8's S3: a token
// minted for one session cannot attach to a different session id.
func TestUpgradeDestroyedOnSessionMismatch(t *testing.T) {
	gw, st, signer := newTestGateway(t)

	_, port, closeUpstream := startEchoUpstream(t)
	defer closeUpstream()
	gw.cfg.PodTerminalPort = port

	sessionA := "11111111-1111-4111-8111-111111111111"
	sessionB := "22222222-2222-4222-8222-222222222222"
	tokenForA := seedSession(t, st, signer, sessionA, "owner-1", "127.0.0.1")
	_ = seedSession(t, st, signer, sessionB, "owner-1", "127.0.0.1")

	srv := httptest.NewServer(gw.echo)
	defer srv.Close()

	wsURL := "ws" + srv.URL[len("http"):] + "/ws/" + sessionB
	dialer := websocket.Dialer{Subprotocols: []string{"bearer," + tokenForA}}
	_, _, err := dialer.Dial(wsURL, nil)
	assert.Error(t, err, "a token bound to a different session must never upgrade")
}

// TestUpgradeDestroyedOnReplay mirrors spec section 8's S2: a token id can
// attach exactly once.
func TestUpgradeDestroyedOnReplay(t *testing.T) {
	gw, st, signer := newTestGateway(t)

	_, port, closeUpstream := startEchoUpstream(t)
	defer closeUpstream()
	gw.cfg.PodTerminalPort = port

	sessionID := "11111111-1111-4111-8111-111111111111"
	token := seedSession(t, st, signer, sessionID, "owner-1", "127.0.0.1")

	srv := httptest.NewServer(gw.echo)
	defer srv.Close()
	wsURL := "ws" + srv.URL[len("http"):] + "/ws/" + sessionID

	dialer := websocket.Dialer{Subprotocols: []string{"bearer," + token}}
	conn, _, err := dialer.Dial(wsURL, nil)
	require.NoError(t, err)
	conn.Close()

	_, _, err = dialer.Dial(wsURL, nil)
	assert.Error(t, err, "replaying an already-consumed token id must never upgrade")
}

func TestUpgradeDestroyedOnInvalidSessionShape(t *testing.T) {
	gw, _, _ := newTestGateway(t)
	srv := httptest.NewServer(gw.echo)
	defer srv.Close()

	wsURL := "ws" + srv.URL[len("http"):] + "/ws/not-a-valid-session-id"
	dialer := websocket.Dialer{Subprotocols: []string{"bearer,whatever"}}
	_, _, err := dialer.Dial(wsURL, nil)
	assert.Error(t, err)
}
