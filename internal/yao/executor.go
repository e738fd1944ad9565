package yao

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"

	"github.com/hashicorp/go-hclog"
	"golang.org/x/sync/errgroup"
)

// ProcSpec describes one external process: what to run, with which arguments,
// environment and working directory. It is never rendered into a shell string.
type ProcSpec struct {
	Program string
	Args    []string
	Env     []string // appended to the inherited environment
	Dir     string
	// Terminal attaches the process directly to our stdin/stdout/stderr
	// instead of relaying its output (editors, pagers).
	Terminal bool
}

// Elevated returns a spec that runs the original program and arguments,
// token for token, as arguments of elevator.
func (s ProcSpec) Elevated(elevator string) ProcSpec {
	args := make([]string, 0, len(s.Args)+1)
	args = append(args, s.Program)
	args = append(args, s.Args...)
	out := s
	out.Program = elevator
	out.Args = args
	out.Env = append([]string(nil), s.Env...)
	return out
}

// String renders the command line for display.
func (s ProcSpec) String() string {
	return shellQuote(append([]string{s.Program}, s.Args...))
}

// ExitError reports a process that ran and exited non-zero.
type ExitError struct {
	Spec ProcSpec
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("%s exited with status %d", e.Spec.Program, e.Code)
}

// exitCode returns the exit status carried by err, or -1.
func exitCode(err error) int {
	var ee *ExitError
	if errors.As(err, &ee) {
		return ee.Code
	}
	return -1
}

// Executor implements ProcessRunner on os/exec.
type Executor struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
	log    hclog.Logger
}

// NewExecutor returns an Executor bound to the process's own standard streams.
func NewExecutor(log hclog.Logger) *Executor {
	return &Executor{
		Stdin:  os.Stdin,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
		log:    log,
	}
}

func (e *Executor) command(ctx context.Context, spec ProcSpec, cancelable bool) *exec.Cmd {
	var cmd *exec.Cmd
	if cancelable {
		cmd = exec.CommandContext(ctx, spec.Program, spec.Args...)
	} else {
		cmd = exec.Command(spec.Program, spec.Args...)
	}
	cmd.Dir = spec.Dir
	if len(spec.Env) > 0 {
		cmd.Env = append(os.Environ(), spec.Env...)
	}
	return cmd
}

func (e *Executor) trace(spec ProcSpec) {
	if spec.Dir != "" {
		e.log.Debug("$ "+spec.String(), "dir", spec.Dir)
		return
	}
	e.log.Debug("$ " + spec.String())
}

// Run starts the process and relays its stdout and stderr while it runs.
// Both relays finish before Wait is called, so nothing the process wrote is
// lost or reported after its exit status. Streaming runs are not cancelled by
// ctx once started.
func (e *Executor) Run(ctx context.Context, spec ProcSpec) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.trace(spec)
	cmd := e.command(ctx, spec, false)

	if spec.Terminal {
		cmd.Stdin = os.Stdin
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
		return e.wait(spec, cmd.Run())
	}

	cmd.Stdin = e.Stdin
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to open stdout of %s: %w", spec.Program, err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("failed to open stderr of %s: %w", spec.Program, err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start %s: %w", spec.Program, err)
	}

	var g errgroup.Group
	g.Go(func() error { return relay(e.Stdout, stdout) })
	g.Go(func() error { return relay(e.Stderr, stderr) })
	relayErr := g.Wait()

	if err := e.wait(spec, cmd.Wait()); err != nil {
		return err
	}
	if relayErr != nil {
		return fmt.Errorf("failed to relay output of %s: %w", spec.Program, relayErr)
	}
	return nil
}

// relay copies src to dst. If dst fails, src is still drained to EOF so the
// process never blocks on a full pipe.
func relay(dst io.Writer, src io.Reader) error {
	_, err := io.Copy(dst, src)
	if err != nil {
		_, _ = io.Copy(io.Discard, src)
	}
	return err
}

// Output runs the process and returns what it wrote to stdout.
func (e *Executor) Output(ctx context.Context, spec ProcSpec) ([]byte, error) {
	e.trace(spec)
	cmd := e.command(ctx, spec, true)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = e.Stderr
	if err := e.wait(spec, cmd.Run()); err != nil {
		return out.Bytes(), err
	}
	return out.Bytes(), nil
}

// Probe runs the process with all output discarded.
func (e *Executor) Probe(ctx context.Context, spec ProcSpec) (bool, error) {
	e.trace(spec)
	cmd := e.command(ctx, spec, true)
	cmd.Stdout = io.Discard
	cmd.Stderr = io.Discard
	err := e.wait(spec, cmd.Run())
	if err == nil {
		return true, nil
	}
	var ee *ExitError
	if errors.As(err, &ee) {
		return false, nil
	}
	return false, err
}

func (e *Executor) wait(spec ProcSpec, err error) error {
	if err == nil {
		return nil
	}
	var ee *exec.ExitError
	if errors.As(err, &ee) {
		return &ExitError{Spec: spec, Code: ee.ExitCode()}
	}
	return fmt.Errorf("failed to run %s: %w", spec.Program, err)
}
