// Command weave is a thin embedding of the engine: it registers this
// repository's own build targets and hands off to the driver. A host
// program typically looks like this file — construct an engine, register
// targets, call cli.Run.
package main

import (
	"context"
	"fmt"
	"os"

	"weave/internal/cli"
	"weave/internal/core"
	"weave/internal/engine"
)

func main() {
	eng := engine.New(engine.Config{
		UseHash:   false,
		NJobs:     1,
		NSerial:   1,
		KeepGoing: engine.BoolPtr(true),
	})

	if err := registerTargets(eng); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.ExitUsageError)
	}

	workDir, err := os.Getwd()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.ExitUsageError)
	}

	code := cli.Run(context.Background(), eng, workDir, os.Args[1:], cli.IO{Stdout: os.Stdout, Stderr: os.Stderr})
	os.Exit(code)
}

// registerTargets is this repository's own build description, expressed
// against the engine it defines — the engine builds itself.
func registerTargets(eng *engine.Engine) error {
	if err := eng.File(
		[]string{"dist/weave"},
		[]string{"go.mod", "cmd/weave/main.go"},
		core.ActionFunc(func(ctx context.Context, job core.JobContext) error {
			return engine.Sh(ctx, job, "mkdir -p dist && go build -o dist/weave ./cmd/weave")
		}),
		engine.Desc("build the weave binary"),
	); err != nil {
		return err
	}

	if err := eng.File(
		[]string{"dist/weave.test"},
		[]string{"go.mod"},
		core.ActionFunc(func(ctx context.Context, job core.JobContext) error {
			return engine.Sh(ctx, job, "mkdir -p dist && go vet ./... && go test ./... && touch dist/weave.test")
		}),
		engine.Desc("run vet and the test suite"),
		engine.Serial(),
	); err != nil {
		return err
	}

	return eng.Phony("all", []string{"dist/weave", "dist/weave.test"}, engine.PhonyDesc("build and test"))
}
