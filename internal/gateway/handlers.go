package gateway

import (
	"net/http"
	"regexp"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/arakoodev/k8s-cli-agents/internal/capability"
	"github.com/arakoodev/k8s-cli-agents/pkg/model"
)

var sessionIDRe = regexp.MustCompile(`^[0-9a-f-]{36}$`)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleWebSocket implements spec section 4.3's entire upgrade protocol: for a
// plain GET it serves the terminal client page; for an upgrade request it runs
// the RECEIVED_UPGRADE state machine through to PROXYING, destroying the
// connection outright on any failed step.
func (gw *Gateway) handleWebSocket(c echo.Context) error {
	sessionID := c.Param("sessionId")
	if !sessionIDRe.MatchString(sessionID) {
		return gw.destroy(c, "invalid session id shape")
	}

	if !websocket.IsWebSocketUpgrade(c.Request()) {
		return gw.servePage(c, sessionID)
	}

	token, ok := extractToken(c.Request())
	if !ok {
		return gw.destroy(c, "missing attach token")
	}

	claims, err := capability.Verify(token, model.AttachAudience, gw.keys)
	if err != nil {
		return gw.destroy(c, "token failed verification: "+err.Error())
	}

	if claims.SessionBinding != sessionID {
		return gw.destroy(c, "token session binding mismatch")
	}

	ctx := c.Request().Context()
	consumed, err := gw.store.ConsumeTokenID(ctx, claims.TokenID)
	if err != nil {
		return gw.destroy(c, "error consuming token id")
	}
	if !consumed {
		return gw.destroy(c, "token id already consumed or unknown")
	}

	row, err := gw.store.GetSession(ctx, sessionID)
	if err != nil {
		return gw.destroy(c, "error reading session")
	}
	if !row.HasPod() {
		return gw.destroy(c, "session has no routable pod")
	}

	return gw.proxy(c, *row.PodIP)
}

// extractToken implements spec section 4.3 step 2: prefer the subprotocol header
// in the form "bearer,<token>", else fall back to a ?token= query parameter.
func extractToken(r *http.Request) (string, bool) {
	if proto := r.Header.Get("Sec-WebSocket-Protocol"); proto != "" {
		for _, part := range strings.Split(proto, ",") {
			part = strings.TrimSpace(part)
			if strings.HasPrefix(part, "bearer,") {
				return strings.TrimPrefix(part, "bearer,"), true
			}
		}
		// The header is split on commas above, so a "bearer,<token>" element and
		// separate "bearer", "<token>" offers both arrive here as adjacent fields.
		fields := strings.Split(proto, ",")
		for i, f := range fields {
			if strings.TrimSpace(f) == "bearer" && i+1 < len(fields) {
				return strings.TrimSpace(fields[i+1]), true
			}
		}
	}
	if token := r.URL.Query().Get("token"); token != "" {
		return token, true
	}
	return "", false
}

// destroy implements spec section 4.3's DESTROYED terminal state: the
// connection is closed with no HTTP body, opaque to the client, and the failure
// reason is logged but never surfaced.
func (gw *Gateway) destroy(c echo.Context, reason string) error {
	gw.log.WithField("path", c.Request().URL.Path).Warn("destroying upgrade attempt: " + reason)

	hj, ok := c.Response().Writer.(http.Hijacker)
	if !ok {
		return echo.NewHTTPError(http.StatusBadRequest)
	}
	conn, _, err := hj.Hijack()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest)
	}
	return conn.Close()
}
