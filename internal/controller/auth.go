package controller

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/labstack/echo/v4"

	"github.com/arakoodev/k8s-cli-agents/internal/apierror"
	"github.com/arakoodev/k8s-cli-agents/internal/config"
)

// callerKey is the echo.Context key an Authenticator stores the resolved owner id
// under, the same "resolve identity in middleware, read it back in the handler"
// shape as teacher's user.ProcessAuthentication storing a *model.User on context.
const callerKey = "wscli.ownerId"

// Authenticator resolves the caller identity behind a request, per spec section
// 9's two-tier auth design: one of two admission strategies selected by
// callerAuthMode, producing an opaque ownerId the rest of the system treats as a
// caller identifier.
type Authenticator interface {
	Authenticate(c echo.Context) (ownerID string, err error)
}

// Middleware adapts an Authenticator into echo middleware the way teacher's
// user.Service.ProcessAuthentication does: parse the Authorization header, resolve
// an identity, store it on the context, or fail the request with AuthMissing /
// AuthInvalid.
func Middleware(a Authenticator) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ownerID, err := a.Authenticate(c)
			if err != nil {
				return err
			}
			c.Set(callerKey, ownerID)
			return next(c)
		}
	}
}

// ownerIDFrom reads the identity Middleware resolved for this request.
func ownerIDFrom(c echo.Context) string {
	ownerID, _ := c.Get(callerKey).(string)
	return ownerID
}

func bearerToken(c echo.Context) (string, error) {
	authRaw := c.Request().Header.Get(echo.HeaderAuthorization)
	if authRaw == "" {
		return "", apierror.New(apierror.KindAuthMissing, "missing authorization header")
	}
	if !strings.HasPrefix(authRaw, "Bearer ") {
		return "", apierror.New(apierror.KindAuthInvalid, "authorization header must be a bearer token")
	}
	return strings.TrimPrefix(authRaw, "Bearer "), nil
}

// APIKeyAuthenticator implements Authenticator by comparing the bearer token
// against a static, configured set of keys, each mapped to an owner id.
type APIKeyAuthenticator struct {
	keys map[string]string
}

// NewAPIKeyAuthenticator builds an APIKeyAuthenticator from config.APIKeyConfig.
func NewAPIKeyAuthenticator(cfg config.APIKeyConfig) *APIKeyAuthenticator {
	return &APIKeyAuthenticator{keys: cfg.Keys}
}

// Authenticate implements Authenticator.
func (a *APIKeyAuthenticator) Authenticate(c echo.Context) (string, error) {
	token, err := bearerToken(c)
	if err != nil {
		return "", err
	}
	for key, ownerID := range a.keys {
		if subtle.ConstantTimeCompare([]byte(key), []byte(token)) == 1 {
			return ownerID, nil
		}
	}
	return "", apierror.New(apierror.KindAuthInvalid, "unrecognized api key")
}

// OIDCAuthenticator implements Authenticator by verifying the bearer token as an
// OIDC ID token against the configured issuer, grounded on teacher's internal/oidc
// package, which performs the analogous verification for its own SSO login flow.
// The owner id is the token's subject claim.
type OIDCAuthenticator struct {
	verifier *oidc.IDTokenVerifier
}

// NewOIDCAuthenticator builds an OIDCAuthenticator against the configured issuer.
// It performs discovery eagerly so misconfiguration fails at startup, not on the
// first request.
func NewOIDCAuthenticator(ctx context.Context, cfg config.OIDCConfig) (*OIDCAuthenticator, error) {
	provider, err := oidc.NewProvider(ctx, cfg.IssuerURL)
	if err != nil {
		return nil, err
	}
	verifier := provider.Verifier(&oidc.Config{ClientID: cfg.ClientID})
	return &OIDCAuthenticator{verifier: verifier}, nil
}

// Authenticate implements Authenticator.
func (a *OIDCAuthenticator) Authenticate(c echo.Context) (string, error) {
	token, err := bearerToken(c)
	if err != nil {
		return "", err
	}
	idToken, err := a.verifier.Verify(c.Request().Context(), token)
	if err != nil {
		return "", apierror.Wrap(apierror.KindAuthInvalid, err, "identity token failed verification")
	}
	if idToken.Subject == "" {
		return "", apierror.New(apierror.KindAuthInvalid, "identity token carries no subject")
	}
	return idToken.Subject, nil
}

// NewAuthenticator builds the Authenticator selected by cfg.CallerAuthMode.
func NewAuthenticator(ctx context.Context, cfg *config.ControllerConfig) (Authenticator, error) {
	switch cfg.CallerAuthMode {
	case config.CallerAuthAPIKey:
		return NewAPIKeyAuthenticator(cfg.APIKey), nil
	case config.CallerAuthIdentityProvider:
		return NewOIDCAuthenticator(ctx, cfg.OIDC)
	default:
		return nil, echo.NewHTTPError(http.StatusInternalServerError, "unrecognized caller auth mode")
	}
}
