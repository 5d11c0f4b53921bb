package remote

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"hostpilot/internal/cmdexec"
	"hostpilot/internal/db"
	"hostpilot/internal/models"
	"hostpilot/internal/telemetry"
	"hostpilot/internal/wol"
)

const (
	LocalTarget       = "local"
	MinScheduleMinute = 1
	MaxScheduleMinute = 1440

	errHostUnreachable = "Host unreachable"
)

// Store is the operation log and target table the executor records into.
type Store interface {
	Append(ctx context.Context, op models.RemoteOperation) error
	Settle(ctx context.Context, op models.RemoteOperation) error
	Target(ctx context.Context, name string) (models.RemoteTarget, error)
}

type Options struct {
	WakeOnLANEnabled     bool
	SystemControlEnabled bool
	// Platform selects local commands; empty means unmapped.
	Platform string
}

type Executor struct {
	store    Store
	commands *CommandTable
	runner   cmdexec.Runner
	waker    wol.Sender
	metrics  *telemetry.Metrics
	log      *slog.Logger
	opts     Options

	now   func() time.Time
	newID func() string
}

func NewExecutor(store Store, commands *CommandTable, runner cmdexec.Runner, waker wol.Sender, metrics *telemetry.Metrics, logger *slog.Logger, opts Options) *Executor {
	return &Executor{
		store:    store,
		commands: commands,
		runner:   runner,
		waker:    waker,
		metrics:  metrics,
		log:      logger,
		opts:     opts,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// pending is an operation between its request and its settlement.
type pending struct {
	e     *Executor
	op    models.RemoteOperation
	start time.Time
}

func (e *Executor) begin(ctx context.Context, target string, kind models.OperationKind) *pending {
	now := e.now()
	p := &pending{e: e, start: now, op: models.RemoteOperation{
		ID:        e.newID(),
		Target:    target,
		Kind:      kind,
		Status:    models.StatusPending,
		Timestamp: now.UTC(),
	}}
	if err := e.store.Append(context.WithoutCancel(ctx), p.op); err != nil {
		e.log.Error("append operation", "err", err, "id", p.op.ID, "kind", kind)
	}
	return p
}

func (p *pending) succeed(ctx context.Context) models.RemoteOperation {
	return p.settle(ctx, models.StatusSuccess, "")
}

func (p *pending) fail(ctx context.Context, format string, args ...any) models.RemoteOperation {
	return p.settle(ctx, models.StatusFailed, fmt.Sprintf(format, args...))
}

func (p *pending) settle(ctx context.Context, status models.OperationStatus, errText string) models.RemoteOperation {
	d := p.e.now().Sub(p.start).Milliseconds()
	if d < 0 {
		d = 0
	}
	p.op.Status = status
	p.op.Error = errText
	p.op.DurationMillis = &d
	// the request context may be gone by now; the log entry must still settle
	if err := p.e.store.Settle(context.WithoutCancel(ctx), p.op); err != nil {
		p.e.log.Error("settle operation", "err", err, "id", p.op.ID)
	}
	p.e.metrics.RecordOperation(ctx, p.op)
	level := slog.LevelInfo
	if status == models.StatusFailed {
		level = slog.LevelWarn
	}
	p.e.log.Log(ctx, level, "remote operation settled",
		"id", p.op.ID, "kind", p.op.Kind, "target", p.op.Target,
		"status", p.op.Status, "duration_ms", d, "error", errText)
	return p.op
}

func (e *Executor) Wake(ctx context.Context, targetName string) models.RemoteOperation {
	p := e.begin(ctx, targetName, models.OpWake)
	if !e.opts.WakeOnLANEnabled {
		return p.fail(ctx, "Wake-on-LAN is disabled")
	}
	target, err := e.lookup(ctx, targetName)
	if err != nil {
		return p.fail(ctx, "%v", err)
	}
	if target.MAC == "" {
		return p.fail(ctx, "target %q has no MAC address", target.Name)
	}
	p.op.Command = fmt.Sprintf("wake %s via %s", target.MAC, broadcastLabel(target.IP))
	if err := e.waker.Send(ctx, target.MAC, target.IP, target.Port); err != nil {
		return p.fail(ctx, "send wake packet: %v", err)
	}
	return p.succeed(ctx)
}

func (e *Executor) Shutdown(ctx context.Context) models.RemoteOperation {
	return e.systemAction(ctx, models.OpShutdown, ActionShutdown, CommandArgs{})
}

func (e *Executor) Restart(ctx context.Context) models.RemoteOperation {
	return e.systemAction(ctx, models.OpRestart, ActionRestart, CommandArgs{})
}

func (e *Executor) ScheduleShutdown(ctx context.Context, delayMinutes int) models.RemoteOperation {
	p := e.begin(ctx, LocalTarget, models.OpScheduleShutdown)
	if !e.opts.SystemControlEnabled {
		return p.fail(ctx, "system control is disabled")
	}
	if delayMinutes < MinScheduleMinute || delayMinutes > MaxScheduleMinute {
		return p.fail(ctx, "delay must be between %d and %d minutes, got %d", MinScheduleMinute, MaxScheduleMinute, delayMinutes)
	}
	return e.runLocal(ctx, p, ActionScheduleShutdown, CommandArgs{Minutes: delayMinutes})
}

func (e *Executor) CancelScheduledShutdown(ctx context.Context) models.RemoteOperation {
	return e.systemAction(ctx, models.OpCancelShutdown, ActionCancelShutdown, CommandArgs{})
}

func (e *Executor) systemAction(ctx context.Context, kind models.OperationKind, action Action, args CommandArgs) models.RemoteOperation {
	p := e.begin(ctx, LocalTarget, kind)
	if !e.opts.SystemControlEnabled {
		return p.fail(ctx, "system control is disabled")
	}
	return e.runLocal(ctx, p, action, args)
}

func (e *Executor) runLocal(ctx context.Context, p *pending, action Action, args CommandArgs) models.RemoteOperation {
	cmd, ok := e.commands.Render(e.opts.Platform, action, args)
	if !ok {
		return p.fail(ctx, "unsupported platform %q for %s", e.opts.Platform, action)
	}
	p.op.Command = cmd
	res, err := e.runner.Run(ctx, cmd)
	if err != nil {
		return p.fail(ctx, "run %q: %v", cmd, err)
	}
	if !res.OK() {
		return p.fail(ctx, "command exited with code %d: %s", res.ExitCode, firstLine(res.Stderr, res.Stdout))
	}
	return p.succeed(ctx)
}

func (e *Executor) Ping(ctx context.Context, targetName string) models.RemoteOperation {
	p := e.begin(ctx, targetName, models.OpPing)
	target, err := e.lookup(ctx, targetName)
	if err != nil {
		return p.fail(ctx, "%v", err)
	}
	if !safeHost(target.IP) {
		return p.fail(ctx, "target %q has no usable address", target.Name)
	}
	cmd, ok := e.commands.Render(e.opts.Platform, ActionPing, CommandArgs{Host: target.IP})
	if !ok {
		return p.fail(ctx, "unsupported platform %q for %s", e.opts.Platform, ActionPing)
	}
	p.op.Command = cmd
	res, err := e.runner.Run(ctx, cmd)
	if err != nil || !res.OK() {
		e.log.Debug("ping failed", "target", target.Name, "err", err, "exit_code", res.ExitCode)
		return p.fail(ctx, errHostUnreachable)
	}
	return p.succeed(ctx)
}

func (e *Executor) lookup(ctx context.Context, name string) (models.RemoteTarget, error) {
	t, err := e.store.Target(ctx, name)
	if errors.Is(err, db.ErrTargetNotFound) {
		return t, fmt.Errorf("target %q not found", name)
	}
	if err != nil {
		return t, fmt.Errorf("lookup target %q: %w", name, err)
	}
	return t, nil
}

func broadcastLabel(ip string) string {
	if ip == "" {
		return "broadcast"
	}
	return ip
}

func firstLine(candidates ...string) string {
	for _, c := range candidates {
		if s := strings.TrimSpace(c); s != "" {
			if i := strings.IndexByte(s, '\n'); i >= 0 {
				return strings.TrimSpace(s[:i])
			}
			return s
		}
	}
	return "no output"
}
