// Package shell adapts command strings to an external shell process. The
// engine never interprets commands itself; it only dispatches them here
// and inspects the resulting filesystem state.
package shell

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// Shell runs command strings under the externally configured interpreter,
// honoring $SHELL and $SHELLOPTS. No other environment variable is
// consulted.
type Shell struct {
	// Dir is the working directory commands run in.
	Dir string
	// Stdout/Stderr, when non-nil, receive the child process's output.
	// A nil writer discards it.
	Stdout, Stderr *os.File
}

// New creates a Shell rooted at dir.
func New(dir string) *Shell {
	return &Shell{Dir: dir, Stdout: os.Stdout, Stderr: os.Stderr}
}

// Run executes cmd under $SHELL (default /bin/sh), with $SHELLOPTS passed
// as additional option flags via `-o`. A non-zero exit fails the containing
// action.
func (s *Shell) Run(ctx context.Context, cmd string) error {
	interp := os.Getenv("SHELL")
	if interp == "" {
		interp = "/bin/sh"
	}

	args := []string{}
	if opts := os.Getenv("SHELLOPTS"); opts != "" {
		for _, o := range strings.Split(opts, ":") {
			if o == "" {
				continue
			}
			args = append(args, "-o", o)
		}
	}
	args = append(args, "-c", cmd)

	c := exec.CommandContext(ctx, interp, args...)
	c.Dir = s.Dir
	if s.Stdout != nil {
		c.Stdout = s.Stdout
	}
	if s.Stderr != nil {
		c.Stderr = s.Stderr
	}
	if err := c.Run(); err != nil {
		return fmt.Errorf("sh %q: %w", cmd, err)
	}
	return nil
}

// Rm unlinks every path, ignoring absence. It never fails on a missing
// file; it only fails when removal is attempted and blocked for another
// reason (e.g. a non-empty directory without permission).
func Rm(paths []string) error {
	for _, p := range paths {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("rm %q: %w", p, err)
		}
	}
	return nil
}
