package gateway

import (
	_ "embed"
	"net/http"

	"github.com/labstack/echo/v4"
)

//go:embed page.html
var terminalPageHTML []byte

// servePage implements spec section 4.3's non-upgrade GET /ws/{sessionId}: a
// minimal terminal client page that opens a WebSocket to the same URL, passing on
// the page's own ?token= query parameter as the WebSocket URL's ?token= parameter.
// Caching is disabled since the page is session-specific and single-use.
func (gw *Gateway) servePage(c echo.Context, sessionID string) error {
	c.Response().Header().Set(echo.HeaderCacheControl, "no-store")
	return c.HTMLBlob(http.StatusOK, terminalPageHTML)
}
