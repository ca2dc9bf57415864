package tb

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/hwbench/strobe/sim"
)

// Config carries the per-run knobs of a bench. Values come from, in order of
// increasing precedence: built-in defaults, a YAML file, and STROBE_*
// environment variables (optionally loaded from a .env file).
type Config struct {
	// Seed feeds the bench random source. Equal seeds give equal runs.
	Seed int64 `yaml:"seed"`

	// MaxCycles bounds the run; exceeding it is a fatal error.
	MaxCycles sim.Cycle `yaml:"max_cycles"`

	// ResetCycles is the number of cycles reset stays asserted at startup.
	ResetCycles int `yaml:"reset_cycles"`

	// ResetActiveLow selects an active-low reset signal.
	ResetActiveLow bool `yaml:"reset_active_low"`

	// AcceptTimeout is the default accept budget of blocking drivers.
	AcceptTimeout sim.Cycle `yaml:"accept_timeout"`

	// RecordPath, when set, names the SQLite file run results are written to.
	RecordPath string `yaml:"record_path"`

	// StatusPort, when positive, serves live run status over HTTP.
	StatusPort int `yaml:"status_port"`

	// Params holds free-form integer parameters for testcases.
	Params map[string]int `yaml:"params"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	return Config{
		Seed:          1,
		MaxCycles:     200000,
		ResetCycles:   2,
		AcceptTimeout: 1000,
	}
}

// LoadConfig builds a Config from defaults, the given YAML file (skipped if
// path is empty), and STROBE_* environment variables.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("tb: read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("tb: parse config %s: %w", path, err)
		}
	}

	// A .env next to the working directory is a convenience, not a
	// requirement.
	_ = godotenv.Load()

	if err := cfg.applyEnv(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("STROBE_SEED"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("tb: STROBE_SEED: %w", err)
		}
		c.Seed = n
	}
	if v := os.Getenv("STROBE_MAX_CYCLES"); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("tb: STROBE_MAX_CYCLES: %w", err)
		}
		c.MaxCycles = sim.Cycle(n)
	}
	if v := os.Getenv("STROBE_RESET_CYCLES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("tb: STROBE_RESET_CYCLES: %w", err)
		}
		c.ResetCycles = n
	}
	if v := os.Getenv("STROBE_RECORD_PATH"); v != "" {
		c.RecordPath = v
	}
	if v := os.Getenv("STROBE_STATUS_PORT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("tb: STROBE_STATUS_PORT: %w", err)
		}
		c.StatusPort = n
	}
	return nil
}

// Param returns the named testcase parameter, or def when unset.
func (c Config) Param(name string, def int) int {
	if v, found := c.Params[name]; found {
		return v
	}
	return def
}
