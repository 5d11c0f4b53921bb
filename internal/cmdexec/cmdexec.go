package cmdexec

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"runtime"
)

// Result is the outcome of a command that ran to completion.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

func (r Result) OK() bool { return r.ExitCode == 0 }

// Runner abstracts external command execution. An error means the command
// could not be started or was interrupted; a non-zero exit is reported in
// Result.
type Runner interface {
	Run(ctx context.Context, command string) (Result, error)
}

type RunnerFunc func(ctx context.Context, command string) (Result, error)

func (f RunnerFunc) Run(ctx context.Context, command string) (Result, error) { return f(ctx, command) }

// ShellRunner dispatches command text through the platform shell.
type ShellRunner struct {
	goos string
}

func NewShellRunner() *ShellRunner { return &ShellRunner{goos: runtime.GOOS} }

func (s *ShellRunner) Run(ctx context.Context, command string) (Result, error) {
	name, args := shellFor(s.goos)
	cmd := exec.CommandContext(ctx, name, append(args, command)...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	res := Result{Stdout: stdout.String(), Stderr: stderr.String()}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && ctx.Err() == nil {
		res.ExitCode = exitErr.ExitCode()
		return res, nil
	}
	if err != nil {
		res.ExitCode = -1
		return res, err
	}
	return res, nil
}

func shellFor(goos string) (string, []string) {
	if goos == "windows" {
		return "cmd", []string{"/C"}
	}
	return "sh", []string{"-c"}
}
