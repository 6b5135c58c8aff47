// Package cli is weave's driver: it parses the command-line flag surface
// with github.com/urfave/cli/v2, selects a mode (run / dry-run / list /
// clean), and maps the result onto a fixed set of exit codes.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"weave/internal/dag"
	"weave/internal/engine"
	"weave/internal/logging"
	"weave/internal/shell"
)

// Exit codes for the driver.
const (
	ExitSuccess       = 0
	ExitTargetFailure = 1
	ExitUsageError    = 2
	ExitGraphError    = 3
)

// IO bundles the streams a driver invocation reads/writes, letting tests
// capture the dry-run plan and targets listing without touching the real
// process streams.
type IO struct {
	Stdout io.Writer
	Stderr io.Writer
}

// Run parses args (excluding argv[0]) against eng's registry and executes
// the selected mode rooted at workDir, writing to stdio's streams. It never
// calls os.Exit; the caller (cmd/weave) translates the returned code.
func Run(ctx context.Context, eng *engine.Engine, workDir string, args []string, stdio IO) int {
	exitCode := ExitSuccess
	app := newApp(eng, workDir, stdio, &exitCode)

	if err := app.RunContext(ctx, append([]string{"weave"}, args...)); err != nil {
		var exit cli.ExitCoder
		if errors.As(err, &exit) {
			return exit.ExitCode()
		}
		fmt.Fprintln(stdio.Stderr, err)
		if exitCode == ExitSuccess {
			exitCode = ExitUsageError
		}
	}
	return exitCode
}

func newApp(eng *engine.Engine, workDir string, stdio IO, exitCode *int) *cli.App {
	cfg := eng.Config()

	return &cli.App{
		Name:                   "weave",
		Usage:                  "bring a requested set of build targets up to date",
		UseShortOptionHandling: true,
		Writer:                 stdio.Stdout,
		ErrWriter:              stdio.Stderr,
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "j", Aliases: []string{"jobs"}, Value: cfg.NJobs, Usage: "global parallelism bound J"},
			&cli.IntFlag{Name: "n-serial", Value: cfg.NSerial, Usage: "per-serial-class bound S"},
			&cli.BoolFlag{Name: "dry-run", Aliases: []string{"n"}, Usage: "print the plan, do not execute"},
			&cli.BoolFlag{Name: "keep-going", Aliases: []string{"k"}, Value: *cfg.KeepGoing, Usage: "continue past failures"},
			&cli.BoolFlag{Name: "targets", Aliases: []string{"t"}, Usage: "list registered targets with descriptions"},
			&cli.StringFlag{Name: "use_hash", Usage: "override the default freshness policy: true or false"},
			&cli.StringFlag{Name: "log", Value: "info", Usage: "log verbosity"},
		},
		Action: func(c *cli.Context) error {
			return runMain(c, eng, workDir, exitCode)
		},
		Commands: []*cli.Command{
			{
				Name:  "clean",
				Usage: "unlink the file outputs of the resolved subgraph",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "purge-digests", Usage: "also remove the persisted digest store"},
				},
				Action: func(c *cli.Context) error {
					return runClean(c, eng, workDir, exitCode)
				},
			},
		},
	}
}

func runMain(c *cli.Context, eng *engine.Engine, workDir string, exitCode *int) error {
	logger, err := logging.New(c.String("log"))
	if err != nil {
		*exitCode = ExitUsageError
		return fmt.Errorf("bad argument: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	reg := eng.Registry()
	goals := c.Args().Slice()

	if c.Bool("targets") {
		for _, t := range reg.List() {
			fmt.Fprintf(c.App.Writer, "%s\t%s\n", t.Name, t.Desc)
		}
		return nil
	}

	useHash, err := parseUseHash(c.String("use_hash"))
	if err != nil {
		*exitCode = ExitUsageError
		return err
	}

	graph, err := dag.Resolve(reg, goals)
	if err != nil {
		*exitCode = graphExitCode(err)
		return err
	}

	if useHash != nil {
		graph.ApplyUseHashOverride(*useHash)
	}

	if c.Bool("dry-run") {
		if err := dag.PrintPlan(c.App.Writer, graph); err != nil {
			*exitCode = ExitUsageError
			return err
		}
		return nil
	}

	store, err := dag.LoadDigestStore(workDir)
	if err != nil {
		*exitCode = ExitUsageError
		return err
	}
	oracle := dag.NewOracle(store)
	sh := shell.New(workDir)

	runCtx, cancel := signal.NotifyContext(c.Context, os.Interrupt)
	defer cancel()

	exec := dag.NewExecutor(oracle, sh, c.Int("j"), c.Int("n-serial"), c.Bool("keep-going"))
	result, err := exec.Run(runCtx, graph)
	if err != nil {
		*exitCode = ExitUsageError
		return err
	}

	if result.Err != nil {
		logger.Error("build failed", zap.Error(result.Err))
		*exitCode = ExitTargetFailure
		return result.Err
	}

	return nil
}

func runClean(c *cli.Context, eng *engine.Engine, workDir string, exitCode *int) error {
	reg := eng.Registry()
	goals := c.Args().Slice()

	graph, err := dag.Resolve(reg, goals)
	if err != nil {
		*exitCode = graphExitCode(err)
		return err
	}

	if err := dag.Clean(graph); err != nil {
		*exitCode = ExitUsageError
		return err
	}

	if c.Bool("purge-digests") {
		if err := os.Remove(filepath.Join(workDir, dag.DigestStorePath)); err != nil && !os.IsNotExist(err) {
			*exitCode = ExitUsageError
			return err
		}
	}

	return nil
}

func graphExitCode(err error) int {
	var cycle *dag.CycleError
	var missing *dag.MissingInputError
	var unknown *dag.UnknownGoalError
	if errors.As(err, &cycle) || errors.As(err, &missing) || errors.As(err, &unknown) {
		return ExitGraphError
	}
	return ExitUsageError
}

// parseUseHash parses the --use_hash flag's value. An empty string means the
// flag was not supplied, returning a nil override; otherwise it returns the
// parsed policy, applied by the caller to every file target in the resolved
// graph that carries no explicit per-target override
// (Graph.ApplyUseHashOverride).
func parseUseHash(v string) (*bool, error) {
	switch v {
	case "":
		return nil, nil
	case "True", "true":
		use := true
		return &use, nil
	case "False", "false":
		use := false
		return &use, nil
	default:
		return nil, fmt.Errorf("bad argument: --use_hash must be True or False, got %q", v)
	}
}
