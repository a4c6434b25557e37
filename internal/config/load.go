package config

import (
	"encoding/json"
	"os"

	"github.com/ghodss/yaml"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// Load reads configPath (when non-empty; a missing file is an error) into vip, merges it with any settings already
// present in vip (flags and env vars bound by the caller), and unmarshals the merged
// map into dst via JSON round-tripping through ghodss/yaml -- the same two-step dance
// teacher's cmd/determined-master/root.go performs so that viper's loose
// map[string]interface{} becomes a strictly typed, DisallowUnknownFields struct.
func Load(vip *viper.Viper, configPath string, dst interface{}) error {
	if configPath != "" {
		bs, err := os.ReadFile(configPath) // #nosec G304 -- operator-supplied config path
		if err != nil {
			if os.IsNotExist(err) {
				return errors.Wrapf(err, "config file %s does not exist", configPath)
			}
			return errors.Wrap(err, "error reading configuration file")
		}
		var configMap map[string]interface{}
		if err := yaml.Unmarshal(bs, &configMap); err != nil {
			return errors.Wrap(err, "error unmarshaling yaml configuration file")
		}
		if err := vip.MergeConfigMap(configMap); err != nil {
			return errors.Wrap(err, "error merging configuration into viper")
		}
	}

	bs, err := json.Marshal(vip.AllSettings())
	if err != nil {
		return errors.Wrap(err, "cannot marshal configuration map into json")
	}
	if err := yaml.Unmarshal(bs, dst, yaml.DisallowUnknownFields); err != nil {
		return errors.Wrap(err, "cannot unmarshal configuration")
	}
	return nil
}
