package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func validGatewayConfig() *GatewayConfig {
	cfg := DefaultGatewayConfig()
	cfg.ControllerBaseURL = "https://controller.internal"
	return cfg
}

func TestGatewayConfigDefaultsValidate(t *testing.T) {
	cfg := validGatewayConfig()
	assert.Empty(t, cfg.Validate())
}

func TestGatewayRequiresControllerBaseURL(t *testing.T) {
	cfg := validGatewayConfig()
	cfg.ControllerBaseURL = ""
	assert.NotEmpty(t, cfg.Validate())
}

func TestUpstreamConnectMsBoundary(t *testing.T) {
	cfg := validGatewayConfig()

	cfg.UpstreamConnectMs = 5000
	assert.Empty(t, cfg.Validate())

	cfg.UpstreamConnectMs = 30000
	assert.Empty(t, cfg.Validate())

	cfg.UpstreamConnectMs = 4999
	assert.NotEmpty(t, cfg.Validate())

	cfg.UpstreamConnectMs = 30001
	assert.NotEmpty(t, cfg.Validate())
}

func TestPodTerminalPortMustBePositive(t *testing.T) {
	cfg := validGatewayConfig()
	cfg.PodTerminalPort = 0
	assert.NotEmpty(t, cfg.Validate())
}
