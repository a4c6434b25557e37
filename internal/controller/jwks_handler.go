package controller

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// wellKnownJWKSPath matches the fixed path capability.KeySetFetcher targets.
const wellKnownJWKSPath = "/.well-known/jwks.json"

// getPublicKeySet implements spec section 4.1's getPublicKeySet operation.
func (ctl *Controller) getPublicKeySet(c echo.Context) error {
	bs, err := ctl.signer.PublicKeySet()
	if err != nil {
		ctl.log.WithError(err).Error("error rendering public key set")
		return echo.NewHTTPError(http.StatusInternalServerError)
	}
	return c.Blob(http.StatusOK, echo.MIMEApplicationJSON, bs)
}
