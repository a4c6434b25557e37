package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/arakoodev/k8s-cli-agents/pkg/check"
	"github.com/arakoodev/k8s-cli-agents/pkg/logger"
)

// RateLimitConfig mirrors spec section 6's sessionRateLimit option.
type RateLimitConfig struct {
	WindowMs int      `json:"window_ms"`
	Max      int      `json:"max"`
	SkipPath []string `json:"skip_paths"`
}

// Validate implements check.Validatable.
func (c RateLimitConfig) Validate() []error {
	var errs []error
	if c.WindowMs <= 0 {
		errs = append(errs, fmt.Errorf("session_rate_limit.window_ms must be positive"))
	}
	if c.Max <= 0 {
		errs = append(errs, fmt.Errorf("session_rate_limit.max must be positive"))
	}
	return errs
}

// Window returns WindowMs as a time.Duration.
func (c RateLimitConfig) Window() time.Duration {
	return time.Duration(c.WindowMs) * time.Millisecond
}

// CallerAuthMode selects how the Controller authenticates callers, per spec
// section 9's open question.
type CallerAuthMode string

// The two caller authentication strategies the source showed in parallel.
const (
	CallerAuthAPIKey          CallerAuthMode = "api-key"
	CallerAuthIdentityProvider CallerAuthMode = "identity-token-from-external-provider"
)

// OIDCConfig configures the identity-token-from-external-provider admission strategy.
type OIDCConfig struct {
	IssuerURL string `json:"issuer_url"`
	ClientID  string `json:"client_id"`
}

// APIKeyConfig configures the api-key admission strategy: a set of static bearer
// keys, each mapped to the owner id that will be recorded on sessions it creates.
type APIKeyConfig struct {
	Keys map[string]string `json:"keys"` // bearer key -> owner id
}

// ControllerConfig is the top-level configuration of sandbox-controller, loaded the
// way the teacher's cmd/determined-master/root.go loads master.yaml: viper merges
// flags, env vars, and a YAML file, and the merged map is unmarshalled into this
// struct with ghodss/yaml.
type ControllerConfig struct {
	ConfigFile string `json:"-"`

	BindAddr string       `json:"bind_addr"`
	Log      logger.Config `json:"log"`
	DB       DBConfig     `json:"db"`

	Namespace                string   `json:"namespace"`
	RunnerImage              string   `json:"runner_image"`
	JobTTLSeconds            int      `json:"job_ttl_seconds"`
	JobActiveDeadlineSeconds int      `json:"job_active_deadline_seconds"`
	SessionExpirySeconds     int      `json:"session_expiry_seconds"`
	PodDiscoveryTimeoutSecs  int      `json:"pod_discovery_timeout_seconds"`
	AllowedOrigins           []string `json:"allowed_origins"`
	AllowedCodeDomains       []string `json:"allowed_code_domains"`
	GatewayPublicURL         string   `json:"gateway_public_url"`

	SessionRateLimit RateLimitConfig `json:"session_rate_limit"`

	CallerAuthMode CallerAuthMode `json:"caller_auth_mode"`
	APIKey         APIKeyConfig   `json:"api_key"`
	OIDC           OIDCConfig     `json:"oidc"`

	KeyMaterial string `json:"key_material"`
}

// DefaultControllerConfig returns the default Controller configuration.
func DefaultControllerConfig() *ControllerConfig {
	return &ControllerConfig{
		BindAddr:                 ":8080",
		Log:                      *logger.DefaultConfig(),
		DB:                       *DefaultDBConfig(),
		Namespace:                "ws-cli",
		JobTTLSeconds:            300,
		JobActiveDeadlineSeconds: 3600,
		SessionExpirySeconds:     600,
		PodDiscoveryTimeoutSecs:  30,
		SessionRateLimit: RateLimitConfig{
			WindowMs: 60000,
			Max:      30,
			SkipPath: []string{"/healthz", "/readyz", "/.well-known/jwks.json", "/metrics"},
		},
		CallerAuthMode: CallerAuthAPIKey,
		KeyMaterial:    "/etc/wscli/controller-signing-key.pem",
	}
}

// Validate implements check.Validatable, and is driven recursively via pkg/check.
func (c ControllerConfig) Validate() []error {
	var errs []error
	if c.SessionExpirySeconds <= 0 || c.SessionExpirySeconds > 900 {
		errs = append(errs, fmt.Errorf("session_expiry_seconds must be in (0, 900]"))
	}
	if c.PodDiscoveryTimeoutSecs < 5 {
		errs = append(errs, fmt.Errorf("pod_discovery_timeout_seconds must be >= 5"))
	}
	switch c.CallerAuthMode {
	case CallerAuthAPIKey:
		if len(c.APIKey.Keys) == 0 {
			errs = append(errs, fmt.Errorf("api_key.keys must be non-empty when caller_auth_mode is api-key"))
		}
	case CallerAuthIdentityProvider:
		if c.OIDC.IssuerURL == "" {
			errs = append(errs, fmt.Errorf("oidc.issuer_url is required when caller_auth_mode is %s",
				CallerAuthIdentityProvider))
		}
	default:
		errs = append(errs, fmt.Errorf("unrecognized caller_auth_mode %q", c.CallerAuthMode))
	}
	if c.Namespace == "" {
		errs = append(errs, fmt.Errorf("namespace must not be empty"))
	}
	return errs
}

// Resolve normalizes derived fields after unmarshalling, matching teacher's
// Config.Resolve step in cmd/determined-master/root.go's load path.
func (c *ControllerConfig) Resolve() error {
	for i, d := range c.AllowedCodeDomains {
		c.AllowedCodeDomains[i] = strings.ToLower(strings.TrimSpace(d))
	}
	return nil
}

// ValidateAll runs pkg/check's reflective validator over the whole config tree.
func ValidateAll(c *ControllerConfig) error {
	return check.Validate(c)
}
