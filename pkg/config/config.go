package config

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"github.com/travigo/railops/pkg/ctdf"
	"github.com/travigo/railops/pkg/util"
	"gopkg.in/yaml.v3"
)

type TerminalPolicy string

const (
	TerminalPolicyHold   TerminalPolicy = "hold"
	TerminalPolicyRemove TerminalPolicy = "remove"
)

type BusyPolicy string

const (
	BusyPolicyReject     BusyPolicy = "reject"
	BusyPolicyLatestWins BusyPolicy = "latest-wins"
)

type Config struct {
	TickDuration time.Duration `yaml:"-"`
	TickInterval time.Duration `yaml:"-"`

	Simulation Simulation `yaml:"simulation"`
	Conflicts  Conflicts  `yaml:"conflicts"`
	Optimizer  Optimizer  `yaml:"optimizer"`
	Priority   Priority   `yaml:"priority"`

	// Queue finished optimization results for the next tick without a manual apply
	AutoApply bool `yaml:"auto_apply"`
}

type Simulation struct {
	StarvationThreshold     int            `yaml:"starvation_threshold"`
	DelayedThresholdMinutes float64        `yaml:"delayed_threshold_minutes"`
	TerminalPolicy          TerminalPolicy `yaml:"terminal_policy"`
	Workers                 int            `yaml:"workers"`
}

type Conflicts struct {
	StarvationTicks        int `yaml:"starvation_ticks"`
	PlatformLookaheadTicks int `yaml:"platform_lookahead_ticks"`
}

type Optimizer struct {
	Budget        time.Duration         `yaml:"-"`
	HorizonTicks  int                   `yaml:"horizon_ticks"`
	MaxIterations int                   `yaml:"max_iterations"`
	Seed          int64                 `yaml:"seed"`
	BusyPolicy    BusyPolicy            `yaml:"busy_policy"`
	Objectives    ctdf.ObjectiveWeights `yaml:"objectives"`
}

type Priority struct {
	Classes map[ctdf.TrainType]int `yaml:"classes"`

	// Optional expr-lang expression evaluated per train, overrides Classes when set
	Expression string `yaml:"expression"`
}

// file mirrors Config with the duration fields as ISO8601 strings
type file struct {
	TickDuration string `yaml:"tick_duration"`
	TickInterval string `yaml:"tick_interval"`

	Simulation Simulation `yaml:"simulation"`
	Conflicts  Conflicts  `yaml:"conflicts"`
	Optimizer  struct {
		Optimizer `yaml:",inline"`
		Budget    string `yaml:"budget"`
	} `yaml:"optimizer"`
	Priority  Priority `yaml:"priority"`
	AutoApply bool     `yaml:"auto_apply"`
}

func Default() Config {
	return Config{
		TickDuration: time.Minute,
		TickInterval: time.Second,

		Simulation: Simulation{
			StarvationThreshold:     3,
			DelayedThresholdMinutes: 5,
			TerminalPolicy:          TerminalPolicyHold,
		},
		Conflicts: Conflicts{
			StarvationTicks:        3,
			PlatformLookaheadTicks: 5,
		},
		Optimizer: Optimizer{
			Budget:        2 * time.Second,
			HorizonTicks:  20,
			MaxIterations: 400,
			Seed:          1,
			BusyPolicy:    BusyPolicyReject,
			Objectives:    ctdf.DefaultObjectiveWeights(),
		},
		Priority: Priority{
			Classes: map[ctdf.TrainType]int{
				ctdf.TrainTypeHighSpeed: 3,
				ctdf.TrainTypeRegional:  2,
				ctdf.TrainTypeFreight:   1,
			},
		},
	}
}

// Load reads a YAML config file over the defaults, an empty path returns defaults. Environment
// overrides are applied last.
func Load(path string) (Config, error) {
	config := Default()

	if path != "" {
		contents, err := os.ReadFile(path)
		if err != nil {
			return config, err
		}

		if err := config.decode(contents); err != nil {
			return config, fmt.Errorf("config %s: %w", path, err)
		}
	}

	config.ApplyEnvironment(util.GetEnvironmentVariables())

	return config, config.Validate()
}

func (c *Config) decode(contents []byte) error {
	var parsed file
	parsed.Simulation = c.Simulation
	parsed.Conflicts = c.Conflicts
	parsed.Optimizer.Optimizer = c.Optimizer
	parsed.Priority = c.Priority
	parsed.AutoApply = c.AutoApply

	decoder := yaml.NewDecoder(bytes.NewReader(contents))
	decoder.KnownFields(true)
	if err := decoder.Decode(&parsed); err != nil {
		return err
	}

	c.Simulation = parsed.Simulation
	c.Conflicts = parsed.Conflicts
	c.Optimizer = parsed.Optimizer.Optimizer
	c.Priority = parsed.Priority
	c.AutoApply = parsed.AutoApply

	var err error
	if parsed.TickDuration != "" {
		if c.TickDuration, err = util.ParseDuration(parsed.TickDuration); err != nil {
			return fmt.Errorf("tick_duration: %w", err)
		}
	}
	if parsed.TickInterval != "" {
		if c.TickInterval, err = util.ParseDuration(parsed.TickInterval); err != nil {
			return fmt.Errorf("tick_interval: %w", err)
		}
	}
	if parsed.Optimizer.Budget != "" {
		if c.Optimizer.Budget, err = util.ParseDuration(parsed.Optimizer.Budget); err != nil {
			return fmt.Errorf("optimizer.budget: %w", err)
		}
	}

	return nil
}

func (c *Config) ApplyEnvironment(env map[string]string) {
	c.TickDuration = util.GetEnvDuration(env, "RAILOPS_TICK_DURATION", c.TickDuration)
	c.TickInterval = util.GetEnvDuration(env, "RAILOPS_TICK_INTERVAL", c.TickInterval)

	c.Simulation.StarvationThreshold = util.GetEnvInt(env, "RAILOPS_STARVATION_THRESHOLD", c.Simulation.StarvationThreshold)
	if policy := env["RAILOPS_TERMINAL_POLICY"]; policy != "" {
		c.Simulation.TerminalPolicy = TerminalPolicy(policy)
	}

	c.Conflicts.StarvationTicks = util.GetEnvInt(env, "RAILOPS_STARVATION_TICKS", c.Conflicts.StarvationTicks)
	c.Conflicts.PlatformLookaheadTicks = util.GetEnvInt(env, "RAILOPS_PLATFORM_LOOKAHEAD_TICKS", c.Conflicts.PlatformLookaheadTicks)

	c.Optimizer.Budget = util.GetEnvDuration(env, "RAILOPS_OPTIMIZER_BUDGET", c.Optimizer.Budget)
	c.Optimizer.HorizonTicks = util.GetEnvInt(env, "RAILOPS_OPTIMIZER_HORIZON_TICKS", c.Optimizer.HorizonTicks)
	if policy := env["RAILOPS_OPTIMIZER_BUSY_POLICY"]; policy != "" {
		c.Optimizer.BusyPolicy = BusyPolicy(policy)
	}

	if env["RAILOPS_AUTO_APPLY"] == "YES" {
		c.AutoApply = true
	}
}

func (c *Config) Validate() error {
	if c.TickDuration <= 0 {
		return fmt.Errorf("tick duration must be positive")
	}

	switch c.Simulation.TerminalPolicy {
	case TerminalPolicyHold, TerminalPolicyRemove:
	default:
		return fmt.Errorf("unknown terminal policy %q", c.Simulation.TerminalPolicy)
	}

	switch c.Optimizer.BusyPolicy {
	case BusyPolicyReject, BusyPolicyLatestWins:
	default:
		return fmt.Errorf("unknown optimizer busy policy %q", c.Optimizer.BusyPolicy)
	}

	if c.Simulation.StarvationThreshold < 1 || c.Conflicts.StarvationTicks < 1 {
		return fmt.Errorf("starvation thresholds must be at least 1")
	}

	if c.Optimizer.Budget <= 0 || c.Optimizer.HorizonTicks < 1 {
		return fmt.Errorf("optimizer budget and horizon must be positive")
	}

	return nil
}
