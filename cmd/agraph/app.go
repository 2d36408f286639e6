package main

import (
	"flag"
	"fmt"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v2"
	"k8s.io/klog/v2"

	"github.com/born-ml/agraph/internal/config"
)

// Build information, set via ldflags.
var (
	Version = "dev"
	Commit  = "unknown"
)

// App creates the CLI application.
func App() *cli.App {
	return &cli.App{
		Name:    "agraph",
		Usage:   "autodiff graph engine with activation checkpointing",
		Version: fmt.Sprintf("%s (commit: %s)", Version, Commit),
		Flags:   globalFlags(),
		Before:  initLogging,
		Commands: []*cli.Command{
			runCommand(),
			verifyCommand(),
			versionCommand(),
		},
	}
}

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "YAML configuration file",
			EnvVars: []string{"AGRAPH_CONFIG"},
		},
		&cli.StringFlag{
			Name:  "policy",
			Usage: "checkpoint policy: none, every_n or depth",
		},
		&cli.IntFlag{
			Name:  "every",
			Usage: "checkpoint every n-th node (every_n policy)",
		},
		&cli.IntFlag{
			Name:  "depth",
			Usage: "checkpoint nodes at depth multiples (depth policy)",
		},
		&cli.IntFlag{
			Name:  "steps",
			Usage: "training steps",
		},
		&cli.Uint64Flag{
			Name:  "seed",
			Usage: "graph RNG seed",
		},
		&cli.IntFlag{
			Name:  "verbosity",
			Usage: "klog verbosity level",
		},
	}
}

// initLogging routes the verbosity flag into klog's own flag set.
func initLogging(c *cli.Context) error {
	fs := flag.NewFlagSet("klog", flag.ContinueOnError)
	klog.InitFlags(fs)
	return fs.Set("v", strconv.Itoa(c.Int("verbosity")))
}

// loadConfig merges defaults, the config file, AGRAPH_* variables and flags.
func loadConfig(c *cli.Context) (*config.Config, error) {
	l := config.NewLoader(config.WithConfigFile(c.String("config")))
	if err := l.Load(); err != nil {
		return nil, err
	}
	overrides := make(map[string]any)
	if c.IsSet("policy") {
		overrides["checkpoint.policy"] = c.String("policy")
	}
	if c.IsSet("every") {
		overrides["checkpoint.every"] = c.Int("every")
	}
	if c.IsSet("depth") {
		overrides["checkpoint.depth"] = c.Int("depth")
	}
	if c.IsSet("steps") {
		overrides["train.steps"] = c.Int("steps")
	}
	if c.IsSet("seed") {
		overrides["seed"] = c.Uint64("seed")
	}
	if err := l.LoadMap(overrides); err != nil {
		return nil, err
	}
	return l.Config()
}

func runCommand() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "train the demo MLP and report memory and recompute cost per step",
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			reg := prometheus.NewRegistry()
			res, err := train(cfg, reg)
			if err != nil {
				return err
			}

			w := c.App.Writer
			fmt.Fprintf(w, "policy: %s, optimizer: %s\n", cfg.Checkpoint.Policy, cfg.Train.Optimizer)
			for i, s := range res.steps {
				fmt.Fprintf(w, "step %d: loss %.6f, %d nodes, %d checkpoints, activations %s, evicted %s\n",
					i+1, s.loss, s.nodes, s.marked, humanize.Bytes(s.activations), s.evicted)
			}
			fmt.Fprintf(w, "evaluations: %s\n", humanize.Comma(int64(res.evaluations)))
			return printMetrics(c, reg)
		},
	}
}

// printMetrics writes every gathered counter.
func printMetrics(c *cli.Context, reg *prometheus.Registry) error {
	families, err := reg.Gather()
	if err != nil {
		return errors.Wrap(err, "gather metrics")
	}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			fmt.Fprintf(c.App.Writer, "%s %g\n", mf.GetName(), m.GetCounter().GetValue())
		}
	}
	return nil
}

func verifyCommand() *cli.Command {
	return &cli.Command{
		Name:  "verify",
		Usage: "check that checkpointing leaves gradients bit-identical",
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			plain := *cfg
			plain.Checkpoint.Policy = config.PolicyNone
			want, err := train(&plain, nil)
			if err != nil {
				return errors.WithMessage(err, "baseline")
			}
			got, err := train(cfg, nil)
			if err != nil {
				return errors.WithMessage(err, "checkpointed")
			}

			for i := range want.grads {
				if want.grads[i] != got.grads[i] {
					return cli.Exit(fmt.Sprintf("gradient of w%d differs: %016x != %016x", i, got.grads[i], want.grads[i]), 1)
				}
				if want.weights[i] != got.weights[i] {
					return cli.Exit(fmt.Sprintf("w%d differs after training: %016x != %016x", i, got.weights[i], want.weights[i]), 1)
				}
			}
			fmt.Fprintf(c.App.Writer, "ok: %d gradients and weights bit-identical after %d steps with %s policy (%d extra evaluations)\n",
				len(want.grads), cfg.Train.Steps, cfg.Checkpoint.Policy, got.evaluations-want.evaluations)
			return nil
		},
	}
}

func versionCommand() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "print the version",
		Action: func(c *cli.Context) error {
			fmt.Fprintf(c.App.Writer, "agraph %s\n", c.App.Version)
			return nil
		},
	}
}
