package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func validControllerConfig() *ControllerConfig {
	cfg := DefaultControllerConfig()
	cfg.APIKey.Keys = map[string]string{"test-key": "owner-1"}
	return cfg
}

func TestControllerConfigDefaultsValidate(t *testing.T) {
	cfg := validControllerConfig()
	assert.Empty(t, cfg.Validate())
}

func TestSessionExpiryBoundary(t *testing.T) {
	cfg := validControllerConfig()
	cfg.SessionExpirySeconds = 900
	assert.Empty(t, cfg.Validate())

	cfg.SessionExpirySeconds = 901
	assert.NotEmpty(t, cfg.Validate())

	cfg.SessionExpirySeconds = 0
	assert.NotEmpty(t, cfg.Validate())
}

func TestPodDiscoveryTimeoutBoundary(t *testing.T) {
	cfg := validControllerConfig()
	cfg.PodDiscoveryTimeoutSecs = 5
	assert.Empty(t, cfg.Validate())

	cfg.PodDiscoveryTimeoutSecs = 4
	assert.NotEmpty(t, cfg.Validate())
}

func TestAPIKeyModeRequiresKeys(t *testing.T) {
	cfg := DefaultControllerConfig()
	cfg.CallerAuthMode = CallerAuthAPIKey
	assert.NotEmpty(t, cfg.Validate())

	cfg.APIKey.Keys = map[string]string{"k": "owner"}
	assert.Empty(t, cfg.Validate())
}

func TestIdentityProviderModeRequiresIssuerURL(t *testing.T) {
	cfg := DefaultControllerConfig()
	cfg.CallerAuthMode = CallerAuthIdentityProvider
	assert.NotEmpty(t, cfg.Validate())

	cfg.OIDC.IssuerURL = "https://issuer.example.com"
	assert.Empty(t, cfg.Validate())
}

func TestUnrecognizedAuthModeRejected(t *testing.T) {
	cfg := DefaultControllerConfig()
	cfg.CallerAuthMode = "not-a-real-mode"
	assert.NotEmpty(t, cfg.Validate())
}

func TestResolveLowercasesAndTrimsCodeDomains(t *testing.T) {
	cfg := DefaultControllerConfig()
	cfg.AllowedCodeDomains = []string{" GitHub.com ", "Raw.GitHubUserContent.com"}
	require := assert.New(t)
	require.NoError(cfg.Resolve())
	require.Equal([]string{"github.com", "raw.githubusercontent.com"}, cfg.AllowedCodeDomains)
}
