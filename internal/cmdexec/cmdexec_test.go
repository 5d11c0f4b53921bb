package cmdexec

import (
	"context"
	"runtime"
	"testing"
)

func TestShellFor(t *testing.T) {
	if name, args := shellFor("windows"); name != "cmd" || len(args) != 1 || args[0] != "/C" {
		t.Fatalf("windows shell = %s %v", name, args)
	}
	if name, args := shellFor("linux"); name != "sh" || args[0] != "-c" {
		t.Fatalf("linux shell = %s %v", name, args)
	}
}

func TestShellRunnerReportsExitCode(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses sh")
	}
	r := NewShellRunner()
	res, err := r.Run(context.Background(), "echo out; echo err 1>&2; exit 3")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.ExitCode != 3 || res.OK() {
		t.Fatalf("exit code = %d", res.ExitCode)
	}
	if res.Stdout != "out\n" || res.Stderr != "err\n" {
		t.Fatalf("stdout=%q stderr=%q", res.Stdout, res.Stderr)
	}

	res, err = r.Run(context.Background(), "true")
	if err != nil || !res.OK() {
		t.Fatalf("true: %+v %v", res, err)
	}
}

func TestShellRunnerCancelledContext(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses sh")
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewShellRunner().Run(ctx, "sleep 5"); err == nil {
		t.Fatal("expected error for cancelled context")
	}
}
