package config

import (
	"fmt"

	"github.com/arakoodev/k8s-cli-agents/pkg/check"
	"github.com/arakoodev/k8s-cli-agents/pkg/logger"
)

// GatewayConfig is the top-level configuration of sandbox-gateway.
type GatewayConfig struct {
	ConfigFile string `json:"-"`

	BindAddr string        `json:"bind_addr"`
	Log      logger.Config `json:"log"`
	DB       DBConfig      `json:"db"`

	ControllerBaseURL    string `json:"controller_base_url"`
	KeySetCacheTTLMs     int    `json:"keyset_cache_ttl_ms"`
	UpstreamConnectMs    int    `json:"upstream_connect_timeout_ms"`
	PodTerminalPort      int    `json:"pod_terminal_port"`
}

// DefaultGatewayConfig returns the default Gateway configuration.
func DefaultGatewayConfig() *GatewayConfig {
	return &GatewayConfig{
		BindAddr:          ":8081",
		Log:               *logger.DefaultConfig(),
		DB:                *DefaultDBConfig(),
		KeySetCacheTTLMs:  300000,
		UpstreamConnectMs: 10000,
		PodTerminalPort:   7681,
	}
}

// Validate implements check.Validatable.
func (c GatewayConfig) Validate() []error {
	var errs []error
	if c.ControllerBaseURL == "" {
		errs = append(errs, fmt.Errorf("controller_base_url must not be empty"))
	}
	if c.UpstreamConnectMs < 5000 || c.UpstreamConnectMs > 30000 {
		errs = append(errs, fmt.Errorf("upstream_connect_timeout_ms must be in [5000, 30000]"))
	}
	if c.PodTerminalPort <= 0 {
		errs = append(errs, fmt.Errorf("pod_terminal_port must be positive"))
	}
	return errs
}

// ValidateAllGateway runs pkg/check's reflective validator over the gateway config tree.
func ValidateAllGateway(c *GatewayConfig) error {
	return check.Validate(c)
}
