// Package toolchain provides narrow interfaces over the external build
// toolchain: "ensure this tool is present" and "run this build command".
// Installers are assumed idempotent and side-effect-isolated per build
// environment; they are never retried here — a failed install fails the job.
package toolchain

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"time"
)

// Command describes one build sub-step to execute.
type Command struct {
	Dir  string   // working directory, normally the job's environment
	Name string   // executable name
	Args []string // arguments
	Env  []string // extra environment entries (KEY=VALUE), appended to the process env
}

// String renders the command for diagnostics.
func (c Command) String() string {
	out := c.Name
	for _, a := range c.Args {
		out += " " + a
	}
	return out
}

// Result captures the outcome of one command.
type Result struct {
	Output   string // combined stdout+stderr, preserved verbatim for diagnostics
	ExitCode int
	Duration time.Duration
}

// Installer ensures a build tool is available in an environment.
type Installer interface {
	// EnsureInstalled makes the named tool available, returning an error if
	// it cannot be. Implementations must be idempotent.
	EnsureInstalled(ctx context.Context, envDir, tool string) error
}

// Runner executes build commands.
type Runner interface {
	// Run executes the command. A non-zero exit is returned as an error;
	// the Result is valid in both cases and carries captured output.
	Run(ctx context.Context, cmd Command) (Result, error)
}

// passthroughEnv lists the parent variables a build may see. Everything
// else is withheld so job output cannot depend on ambient operator state.
var passthroughEnv = []string{
	"PATH", "HOME", "TMPDIR", "USER", "LANG",
	"CARGO_HOME", "RUSTUP_HOME",
}

func isolatedEnv(extra []string) []string {
	env := make([]string, 0, len(passthroughEnv)+len(extra))
	for _, key := range passthroughEnv {
		if v, ok := os.LookupEnv(key); ok {
			env = append(env, key+"="+v)
		}
	}
	return append(env, extra...)
}

// ExecRunner runs commands via os/exec.
type ExecRunner struct{}

// NewExecRunner returns a Runner backed by os/exec.
func NewExecRunner() *ExecRunner { return &ExecRunner{} }

// Run implements Runner.
func (r *ExecRunner) Run(ctx context.Context, cmd Command) (Result, error) {
	start := time.Now()

	c := exec.CommandContext(ctx, cmd.Name, cmd.Args...)
	c.Dir = cmd.Dir
	c.Env = isolatedEnv(cmd.Env)

	var buf bytes.Buffer
	c.Stdout = &buf
	c.Stderr = &buf

	err := c.Run()
	res := Result{
		Output:   buf.String(),
		ExitCode: -1,
		Duration: time.Since(start),
	}
	if c.ProcessState != nil {
		res.ExitCode = c.ProcessState.ExitCode()
	}
	if ctx.Err() != nil {
		return res, ctx.Err()
	}
	if err != nil {
		return res, fmt.Errorf("command %q failed: %w", cmd.String(), err)
	}
	return res, nil
}

// ExecInstaller ensures tools by probing for them and invoking an install
// command when missing. The install command template is configuration-owned;
// the zero value only probes.
type ExecInstaller struct {
	runner Runner
}

// NewExecInstaller returns an Installer that probes with "<tool> --version".
func NewExecInstaller(runner Runner) *ExecInstaller {
	if runner == nil {
		runner = NewExecRunner()
	}
	return &ExecInstaller{runner: runner}
}

// EnsureInstalled implements Installer by probing the tool.
func (i *ExecInstaller) EnsureInstalled(ctx context.Context, envDir, tool string) error {
	_, err := i.runner.Run(ctx, Command{Dir: envDir, Name: tool, Args: []string{"--version"}})
	if err != nil {
		return fmt.Errorf("toolchain %q unavailable: %w", tool, err)
	}
	return nil
}
