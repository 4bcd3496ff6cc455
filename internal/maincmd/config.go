package maincmd

import (
	"os"

	"github.com/caarlos0/env/v6"
	"gopkg.in/yaml.v3"
)

// defaultConfigFile is looked up in the working directory when no
// --config flag is given.
const defaultConfigFile = "glacier.yaml"

// limits holds the tunable resource bounds of the compiler and the
// machine. Zero values keep the built-in defaults.
type limits struct {
	MaxStack     int `yaml:"max_stack" env:"GLACIER_MAX_STACK"`
	MaxConstants int `yaml:"max_constants" env:"GLACIER_MAX_CONSTANTS"`
	MaxScopes    int `yaml:"max_scopes" env:"GLACIER_MAX_SCOPES"`
	GCThreshold  int `yaml:"gc_threshold" env:"GLACIER_GC_THRESHOLD"`
}

// loadLimits reads the YAML limits file, then applies the environment
// variable overrides. A missing default file is not an error; a missing
// explicitly-requested file is.
func loadLimits(path string) (*limits, error) {
	explicit := path != ""
	if !explicit {
		path = defaultConfigFile
	}

	var lim limits
	b, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(b, &lim); err != nil {
			return nil, err
		}
	case os.IsNotExist(err) && !explicit:
	default:
		return nil, err
	}

	if err := env.Parse(&lim); err != nil {
		return nil, err
	}
	return &lim, nil
}
