// Package config holds the settings of the agraph tool: checkpoint policy,
// RNG seed, the demo model size and its training loop.
//
// Library packages never read configuration; they take functional options.
// Only cmd/agraph loads a Config and translates it into those options.
package config

import (
	"github.com/pkg/errors"
)

// Checkpoint policies.
const (
	PolicyNone   = "none"
	PolicyEveryN = "every_n"
	PolicyDepth  = "depth"
)

// Optimizers.
const (
	OptimizerSGD  = "sgd"
	OptimizerAdam = "adam"
)

// Config is the root configuration.
type Config struct {
	Seed       uint64     `koanf:"seed"`
	Checkpoint Checkpoint `koanf:"checkpoint"`
	Model      Model      `koanf:"model"`
	Train      Train      `koanf:"train"`
}

// Checkpoint selects the automatic checkpoint policy and manager behaviour.
type Checkpoint struct {
	Policy         string `koanf:"policy"`
	Every          int    `koanf:"every"`
	Depth          int    `koanf:"depth"`
	SaveRNG        bool   `koanf:"save_rng"`
	EvictLeaves    bool   `koanf:"evict_leaves"`
	StrictVersions bool   `koanf:"strict_versions"`
}

// Model sizes the demo MLP.
type Model struct {
	Layers  int     `koanf:"layers"`
	Width   int     `koanf:"width"`
	Batch   int     `koanf:"batch"`
	Dropout float64 `koanf:"dropout"`
}

// Train configures the demo training loop.
type Train struct {
	Steps     int     `koanf:"steps"`
	Optimizer string  `koanf:"optimizer"`
	LR        float64 `koanf:"lr"`
	Momentum  float64 `koanf:"momentum"`
}

// Defaults returns the configuration used when no source sets a key.
func Defaults() map[string]any {
	return map[string]any{
		"seed":                       2024,
		"checkpoint.policy":          PolicyEveryN,
		"checkpoint.every":           2,
		"checkpoint.depth":           4,
		"checkpoint.save_rng":        true,
		"checkpoint.evict_leaves":    false,
		"checkpoint.strict_versions": false,
		"model.layers":               4,
		"model.width":                16,
		"model.batch":                8,
		"model.dropout":              0.1,
		"train.steps":                1,
		"train.optimizer":            OptimizerSGD,
		"train.lr":                   0.05,
		"train.momentum":             0.9,
	}
}

// Validate reports the first inconsistent setting.
func (c *Config) Validate() error {
	switch c.Checkpoint.Policy {
	case PolicyNone:
	case PolicyEveryN:
		if c.Checkpoint.Every <= 0 {
			return errors.Errorf("checkpoint.every must be positive, got %d", c.Checkpoint.Every)
		}
	case PolicyDepth:
		if c.Checkpoint.Depth <= 0 {
			return errors.Errorf("checkpoint.depth must be positive, got %d", c.Checkpoint.Depth)
		}
	default:
		return errors.Errorf("unknown checkpoint.policy %q (want %s, %s or %s)",
			c.Checkpoint.Policy, PolicyNone, PolicyEveryN, PolicyDepth)
	}
	if c.Model.Layers <= 0 || c.Model.Width <= 0 || c.Model.Batch <= 0 {
		return errors.Errorf("model sizes must be positive: layers=%d width=%d batch=%d",
			c.Model.Layers, c.Model.Width, c.Model.Batch)
	}
	if c.Model.Dropout < 0 || c.Model.Dropout >= 1 {
		return errors.Errorf("model.dropout must be in [0, 1), got %g", c.Model.Dropout)
	}
	if c.Train.Steps <= 0 {
		return errors.Errorf("train.steps must be positive, got %d", c.Train.Steps)
	}
	if c.Train.Optimizer != OptimizerSGD && c.Train.Optimizer != OptimizerAdam {
		return errors.Errorf("unknown train.optimizer %q (want %s or %s)",
			c.Train.Optimizer, OptimizerSGD, OptimizerAdam)
	}
	if c.Train.LR <= 0 {
		return errors.Errorf("train.lr must be positive, got %g", c.Train.LR)
	}
	return nil
}
