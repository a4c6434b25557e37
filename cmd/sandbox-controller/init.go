package main

import (
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/arakoodev/k8s-cli-agents/internal/config"
	"github.com/arakoodev/k8s-cli-agents/version"
)

var v *viper.Viper

// viperKeyDelimiter lets config keys contain "." (e.g. api_key.keys map entries)
// without viper mistaking them for nested objects, the same tradeoff teacher's
// cmd/determined-master/init.go documents for its own double-dot delimiter.
const viperKeyDelimiter = ".."

//nolint:gochecknoinit
func init() {
	rootCmd.Version = version.Version
	registerConfig()
	rootCmd.AddCommand(newRotateKeyCmd())
}

type configKey []string

func (c configKey) EnvName() string {
	return "WSCLI_CONTROLLER_" + strings.ReplaceAll(strings.ToUpper(c.FlagName()), "-", "_")
}

func (c configKey) AccessPath() string {
	return strings.ReplaceAll(strings.Join(c, viperKeyDelimiter), "-", "_")
}

func (c configKey) FlagName() string {
	return strings.Join(c, "-")
}

func registerString(flags *pflag.FlagSet, name configKey, value string, usage string) {
	flags.String(name.FlagName(), value, usage)
	_ = v.BindEnv(name.AccessPath(), name.EnvName())
	_ = v.BindPFlag(name.AccessPath(), flags.Lookup(name.FlagName()))
	v.SetDefault(name.AccessPath(), value)
}

func registerInt(flags *pflag.FlagSet, name configKey, value int, usage string) {
	flags.Int(name.FlagName(), value, usage)
	_ = v.BindEnv(name.AccessPath(), name.EnvName())
	_ = v.BindPFlag(name.AccessPath(), flags.Lookup(name.FlagName()))
	v.SetDefault(name.AccessPath(), value)
}

func registerConfig() {
	v = viper.NewWithOptions(viper.KeyDelimiter(viperKeyDelimiter))
	v.SetTypeByDefaultValue(true)

	defaults := config.DefaultControllerConfig()
	// Persistent, not local: rotate-key shares every config flag (config-file,
	// key-material, log.level, ...) with the server subcommand rather than
	// redeclaring its own.
	flags := rootCmd.PersistentFlags()
	name := func(components ...string) configKey { return components }

	registerString(flags, name("config-file"), "", "location of config file")

	registerString(flags, name("bind-addr"), defaults.BindAddr, "address to bind the HTTP server on")
	registerString(flags, name("log", "level"), defaults.Log.Level, "log level")

	registerString(flags, name("db", "user"), defaults.DB.User, "database username")
	registerString(flags, name("db", "password"), defaults.DB.Password, "database password")
	registerString(flags, name("db", "host"), defaults.DB.Host, "database host")
	registerString(flags, name("db", "port"), defaults.DB.Port, "database port")
	registerString(flags, name("db", "name"), defaults.DB.Name, "database name")

	registerString(flags, name("namespace"), defaults.Namespace, "orchestrator namespace for jobs")
	registerString(flags, name("runner-image"), defaults.RunnerImage, "container image used by submitted jobs")
	registerInt(flags, name("job-ttl-seconds"), defaults.JobTTLSeconds, "job TTL after finish")
	registerInt(flags, name("job-active-deadline-seconds"), defaults.JobActiveDeadlineSeconds, "job active deadline")
	registerInt(flags, name("session-expiry-seconds"), defaults.SessionExpirySeconds, "session TTL")
	registerInt(flags, name("pod-discovery-timeout-seconds"), defaults.PodDiscoveryTimeoutSecs, "pod-IP discovery deadline")
	registerString(flags, name("gateway-public-url"), defaults.GatewayPublicURL, "public base URL of the gateway")

	registerString(flags, name("caller-auth-mode"), string(defaults.CallerAuthMode), "api-key or identity-token-from-external-provider")
	registerString(flags, name("oidc", "issuer-url"), defaults.OIDC.IssuerURL, "OIDC issuer URL")
	registerString(flags, name("oidc", "client-id"), defaults.OIDC.ClientID, "OIDC client id")

	registerString(flags, name("key-material"), defaults.KeyMaterial, "path to the capability signing key")
}
