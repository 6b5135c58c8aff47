package cli_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"weave/internal/cli"
	"weave/internal/core"
	"weave/internal/engine"
)

func touchTarget(eng *engine.Engine, out string, inputs []string) error {
	return eng.File([]string{out}, inputs, core.ActionFunc(func(ctx context.Context, job core.JobContext) error {
		return os.WriteFile(job.Outputs[0], []byte("x"), 0o644)
	}))
}

func TestRun_DryRunDoesNotExecute(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "out")

	eng := engine.New(engine.Config{NJobs: 1, NSerial: 1, KeepGoing: engine.BoolPtr(true)})
	require.NoError(t, touchTarget(eng, out, nil))
	require.NoError(t, eng.Phony("all", []string{out}))

	var stdout, stderr bytes.Buffer
	code := cli.Run(context.Background(), eng, dir, []string{"--dry-run"}, cli.IO{Stdout: &stdout, Stderr: &stderr})

	assert.Equal(t, cli.ExitSuccess, code)
	assert.Contains(t, stdout.String(), "all\n\t"+out)
	_, statErr := os.Stat(out)
	assert.True(t, os.IsNotExist(statErr))
}

func TestRun_TargetsListing(t *testing.T) {
	dir := t.TempDir()
	eng := engine.New(engine.Config{})
	require.NoError(t, touchTarget(eng, filepath.Join(dir, "out"), nil))

	var stdout, stderr bytes.Buffer
	code := cli.Run(context.Background(), eng, dir, []string{"--targets"}, cli.IO{Stdout: &stdout, Stderr: &stderr})

	assert.Equal(t, cli.ExitSuccess, code)
	assert.Contains(t, stdout.String(), "(no description)")
}

func TestRun_ExecutesAndExitsZeroOnSuccess(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "out")
	eng := engine.New(engine.Config{NJobs: 1, NSerial: 1, KeepGoing: engine.BoolPtr(true)})
	require.NoError(t, touchTarget(eng, out, nil))

	var stdout, stderr bytes.Buffer
	code := cli.Run(context.Background(), eng, dir, []string{out}, cli.IO{Stdout: &stdout, Stderr: &stderr})

	assert.Equal(t, cli.ExitSuccess, code)
	_, err := os.Stat(out)
	assert.NoError(t, err)
}

func TestRun_CycleExitsThree(t *testing.T) {
	dir := t.TempDir()
	eng := engine.New(engine.Config{})
	noop := core.ActionFunc(func(ctx context.Context, job core.JobContext) error { return nil })
	require.NoError(t, eng.File([]string{"a"}, []string{"b"}, noop))
	require.NoError(t, eng.File([]string{"b"}, []string{"a"}, noop))

	var stdout, stderr bytes.Buffer
	code := cli.Run(context.Background(), eng, dir, []string{"a"}, cli.IO{Stdout: &stdout, Stderr: &stderr})

	assert.Equal(t, cli.ExitGraphError, code)
}

func TestRun_UseHashFlagOverridesEngineDefault(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in")
	out := filepath.Join(dir, "out")
	require.NoError(t, os.WriteFile(in, []byte("stable contents"), 0o644))

	// Engine default is mtime-based (UseHash: false), so touching in without
	// changing its bytes would normally force a rebuild.
	eng := engine.New(engine.Config{NJobs: 1, NSerial: 1, KeepGoing: engine.BoolPtr(true), UseHash: false})
	var runs int
	require.NoError(t, eng.File([]string{out}, []string{in}, core.ActionFunc(func(ctx context.Context, job core.JobContext) error {
		runs++
		return os.WriteFile(out, []byte("built"), 0o644)
	})))
	require.NoError(t, eng.Phony("all", []string{out}))

	run := func() int {
		var stdout, stderr bytes.Buffer
		return cli.Run(context.Background(), eng, dir, []string{"--use_hash", "true"}, cli.IO{Stdout: &stdout, Stderr: &stderr})
	}

	require.Equal(t, cli.ExitSuccess, run())
	require.Equal(t, 1, runs)

	future := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(in, future, future))

	require.Equal(t, cli.ExitSuccess, run())
	assert.Equal(t, 1, runs, "--use_hash true should keep the target fresh across a touch-only mtime bump")
}

func TestRun_UseHashFlagRejectsMalformedValue(t *testing.T) {
	dir := t.TempDir()
	eng := engine.New(engine.Config{})

	var stdout, stderr bytes.Buffer
	code := cli.Run(context.Background(), eng, dir, []string{"--use_hash", "maybe"}, cli.IO{Stdout: &stdout, Stderr: &stderr})

	assert.Equal(t, cli.ExitUsageError, code)
}

func TestRun_ActionFailureExitsOne(t *testing.T) {
	dir := t.TempDir()
	eng := engine.New(engine.Config{NJobs: 1, NSerial: 1, KeepGoing: engine.BoolPtr(true)})
	failing := filepath.Join(dir, "failing")
	require.NoError(t, eng.File([]string{failing}, nil, core.ActionFunc(func(ctx context.Context, job core.JobContext) error {
		return errors.New("shell command failed")
	})))

	var stdout, stderr bytes.Buffer
	code := cli.Run(context.Background(), eng, dir, []string{failing}, cli.IO{Stdout: &stdout, Stderr: &stderr})

	assert.Equal(t, cli.ExitTargetFailure, code)
}
