package main

import (
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/arakoodev/k8s-cli-agents/internal/config"
	"github.com/arakoodev/k8s-cli-agents/version"
)

var v *viper.Viper

const viperKeyDelimiter = ".."

//nolint:gochecknoinit
func init() {
	rootCmd.Version = version.Version
	registerConfig()
}

type configKey []string

func (c configKey) EnvName() string {
	return "WSCLI_GATEWAY_" + strings.ReplaceAll(strings.ToUpper(c.FlagName()), "-", "_")
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

	defaults := config.DefaultGatewayConfig()
	flags := rootCmd.Flags()
	name := func(components ...string) configKey { return components }

	registerString(flags, name("config-file"), "", "location of config file")

	registerString(flags, name("bind-addr"), defaults.BindAddr, "address to bind the HTTP server on")
	registerString(flags, name("log", "level"), defaults.Log.Level, "log level")

	registerString(flags, name("db", "user"), defaults.DB.User, "database username")
	registerString(flags, name("db", "password"), defaults.DB.Password, "database password")
	registerString(flags, name("db", "host"), defaults.DB.Host, "database host")
	registerString(flags, name("db", "port"), defaults.DB.Port, "database port")
	registerString(flags, name("db", "name"), defaults.DB.Name, "database name")

	registerString(flags, name("controller-base-url"), defaults.ControllerBaseURL, "base URL of the controller's published key set")
	registerInt(flags, name("keyset-cache-ttl-ms"), defaults.KeySetCacheTTLMs, "public key set cache TTL")
	registerInt(flags, name("upstream-connect-timeout-ms"), defaults.UpstreamConnectMs, "pod terminal connect timeout")
	registerInt(flags, name("pod-terminal-port"), defaults.PodTerminalPort, "pod terminal server port")
}
