package gateway

import (
	"bytes"
	"fmt"
	"io"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

// websocketReadWriter exposes an io.ReadWriter over a WebSocket connection that
// writes binary frames and reads both binary and text frames, grounded on
// teacher's internal/proxy/tcp.go of the same name -- the adapter that lets asyncCopy treat a WebSocket like any other stream.
type websocketReadWriter struct {
	ws  *websocket.Conn
	buf *bytes.Buffer
}

func (w *websocketReadWriter) Read(buf []byte) (int, error) {
	if w.buf.Len() > 0 {
		return w.buf.Read(buf)
	}
	for {
		msg, data, err := w.ws.ReadMessage()
		switch {
		case err != nil:
			return 0, fmt.Errorf("error reading message from websocket: %w", err)
		case msg == websocket.CloseMessage:
			return 0, io.EOF
		case msg == websocket.BinaryMessage || msg == websocket.TextMessage:
			if len(data) > 0 {
				w.buf.Write(data)
				return w.buf.Read(buf)
			}
		}
	}
}

func (w *websocketReadWriter) Write(buf []byte) (int, error) {
	if err := w.ws.WriteMessage(websocket.BinaryMessage, buf); err != nil {
		return 0, fmt.Errorf("error writing websocket binary message: %w", err)
	}
	return len(buf), nil
}

func asyncRun(f func() error) chan error {
	errs := make(chan error, 1)
	go func() {
		defer close(errs)
		errs <- f()
	}()
	return errs
}

func asyncCopy(dst io.Writer, src io.Reader) chan error {
	return asyncRun(func() error {
		if _, err := io.Copy(dst, src); err != nil && err != io.EOF {
			return err
		}
		return nil
	})
}

// proxy implements spec section 4.3 step 7: it dials the pod's terminal server,
// completes the browser-side upgrade, and splices bytes bidirectionally until
// either side closes. This is the inverse shape of teacher's
// newSingleHostReverseTCPOverWebSocketProxy (browser WS in, pod WS out, rather
// than browser WS in, raw TCP out), reusing the same websocketReadWriter +
// asyncCopy fan-out/fan-in.
func (gw *Gateway) proxy(c echo.Context, podIP string) error {
	upstreamURL := fmt.Sprintf("ws://%s:%d/", podIP, gw.cfg.PodTerminalPort)

	dialer := &websocket.Dialer{
		HandshakeTimeout: time.Duration(gw.cfg.UpstreamConnectMs) * time.Millisecond,
	}
	upstream, resp, err := dialer.Dial(upstreamURL, nil)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
		}
		return gw.destroy(c, errors.Wrapf(err, "error dialing pod terminal at %s", upstreamURL).Error())
	}
	defer upstream.Close()

	downstream, err := upgrader.Upgrade(c.Response().Writer, c.Request(), nil)
	if err != nil {
		return gw.destroy(c, errors.Wrap(err, "error upgrading browser connection").Error())
	}
	defer downstream.Close()

	downRW := &websocketReadWriter{ws: downstream, buf: new(bytes.Buffer)}
	upRW := &websocketReadWriter{ws: upstream, buf: new(bytes.Buffer)}

	toUpstream := asyncCopy(upRW, downRW)
	toDownstream := asyncCopy(downRW, upRW)

	// Return as soon as either direction ends; the deferred Closes then end the
	// other direction's copy.
	select {
	case err := <-toUpstream:
		if err != nil {
			gw.log.WithError(err).Debug("error copying browser bytes to pod")
		}
	case err := <-toDownstream:
		if err != nil {
			gw.log.WithError(err).Debug("error copying pod bytes to browser")
		}
	}
	return nil
}
