// config.go — TOML configuration for hosts and the CLI
//
// A config file carries the declared build-environment variables and the
// evaluation feature switches, so a toolchain invocation can be reproduced
// from a checked-in file instead of a flag soup:
//
//	[defines]
//	"app.flavor" = "beta"
//	"app.port"   = "8080"
//
//	[features]
//	report-unselected-branch = true
//
// Every define value is a string; the fromEnvironment intrinsics do their own
// parsing, exactly as they would for -D command-line definitions.
package consteval

import (
	"os"

	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"
)

// Config is the on-disk evaluation configuration.
type Config struct {
	Defines  map[string]string `toml:"defines"`
	Features FeatureConfig     `toml:"features"`
}

// FeatureConfig mirrors Features with TOML field names.
type FeatureConfig struct {
	ReportUnselectedBranch bool `toml:"report-unselected-branch"`
}

// LoadConfig reads and decodes a TOML config file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading config %s", path)
	}
	return ParseConfig(data)
}

// ParseConfig decodes TOML config bytes.
func ParseConfig(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(err, "decoding config")
	}
	if cfg.Defines == nil {
		cfg.Defines = map[string]string{}
	}
	return cfg, nil
}

// EvalFeatures converts the decoded feature switches to evaluator Features.
func (c *Config) EvalFeatures() Features {
	return Features{ReportUnselectedBranch: c.Features.ReportUnselectedBranch}
}
