package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"hostpilot/internal/cmdexec"
	"hostpilot/internal/collector"
	"hostpilot/internal/config"
	"hostpilot/internal/db"
	"hostpilot/internal/mcp"
	"hostpilot/internal/models"
	"hostpilot/internal/monitor"
	"hostpilot/internal/notifier"
	"hostpilot/internal/remote"
	"hostpilot/internal/retention"
	"hostpilot/internal/sinks"
	"hostpilot/internal/telemetry"
	"hostpilot/internal/web"
	"hostpilot/internal/wol"
)

const Version = "0.1.0"

type closer interface{ Close() }

type App struct {
	cfg config.Config
	log *slog.Logger

	sqldb   *sql.DB
	repo    *db.Repository
	metrics *telemetry.Metrics

	monitor   *monitor.Monitor
	executor  *remote.Executor
	retention *retention.Service
	mcp       *mcp.Server
	web       *web.Server
	closers   []closer

	httpSrv *http.Server
}

func New(cfg config.Config, logger *slog.Logger) (*App, error) {
	sqldb, err := db.Open(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.Migrate(sqldb); err != nil {
		_ = sqldb.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	repo := db.NewRepository(sqldb)

	if t := cfg.DefaultTarget; t.Name != "" {
		target := models.RemoteTarget{Name: t.Name, IP: t.IP, MAC: t.MAC, Platform: t.Platform, Port: t.Port}
		if err := repo.UpsertTarget(context.Background(), target); err != nil {
			_ = sqldb.Close()
			return nil, fmt.Errorf("register default target: %w", err)
		}
	}

	commands, err := remote.NewCommandTable(remote.DefaultCommands)
	if err != nil {
		_ = sqldb.Close()
		return nil, fmt.Errorf("command table: %w", err)
	}

	metrics, err := telemetry.New(telemetry.Config{
		ServiceName:  "hostpilot",
		ExporterType: telemetry.ParseExporterType(cfg.MetricsExporter),
	})
	if err != nil {
		_ = sqldb.Close()
		return nil, fmt.Errorf("telemetry: %w", err)
	}

	a := &App{cfg: cfg, log: logger, sqldb: sqldb, repo: repo, metrics: metrics}

	probe := collector.NewHostProbe(cfg.DiskPath, cfg.DetailedMetrics)
	a.monitor = monitor.New(probe, metrics, logger.With("module", "monitor"), monitor.Options{
		Interval:      cfg.MonitorInterval,
		AlertsEnabled: cfg.AlertsEnabled,
	}, a.buildSinks(logger.With("module", "sinks"))...)

	a.executor = remote.NewExecutor(repo, commands, cmdexec.NewShellRunner(), wol.UDPSender{}, metrics,
		logger.With("module", "remote"), remote.Options{
			WakeOnLANEnabled:     cfg.WakeOnLANEnabled,
			SystemControlEnabled: cfg.SystemControlEnabled,
			Platform:             cfg.Platform,
		})
	a.retention = retention.NewService(repo, cfg.OperationsMax, cfg.OperationsRetention, logger.With("module", "retention"))
	a.mcp = mcp.NewServer(mcp.Implementation{Name: "hostpilot", Version: Version}, a.monitor, a.executor, repo, logger.With("module", "mcp"))
	a.web = web.NewServer(a.mcp, a.monitor, repo, sqldb, logger.With("module", "http"))
	a.httpSrv = &http.Server{
		Addr:              cfg.Addr,
		Handler:           a.web.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return a, nil
}

// buildSinks connects the optional exporters. A sink that cannot be set up
// is logged and left out.
func (a *App) buildSinks(logger *slog.Logger) []monitor.Sink {
	var out []monitor.Sink
	if a.cfg.InfluxDB.Enabled() {
		i := a.cfg.InfluxDB
		s, err := sinks.NewInflux(context.Background(), sinks.InfluxConfig{URL: i.URL, Token: i.Token, Org: i.Org, Bucket: i.Bucket})
		if err != nil {
			logger.Warn("influxdb sink disabled", "err", err)
		} else {
			out = append(out, s)
			a.closers = append(a.closers, s)
		}
	}
	if a.cfg.KafkaBrokers != "" {
		s, err := sinks.NewKafka(a.cfg.KafkaBrokers, a.cfg.KafkaAlertTopic)
		if err != nil {
			logger.Warn("kafka sink disabled", "err", err)
		} else {
			out = append(out, s)
			a.closers = append(a.closers, s)
		}
	}
	if a.cfg.TelegramBotToken != "" && a.cfg.TelegramChatID != "" {
		bot, err := notifier.NewTelegramBot(a.cfg.TelegramBotToken)
		if err == nil {
			var t *notifier.Telegram
			if t, err = notifier.NewTelegram(bot, a.cfg.TelegramChatID, notifier.TelegramOptions{}); err == nil {
				out = append(out, t)
			}
		}
		if err != nil {
			logger.Warn("telegram notifier disabled", "err", err)
		}
	}
	for _, s := range out {
		logger.Info("sink enabled", "sink", s.Name())
	}
	return out
}

func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		a.log.Info("http server listening", "addr", a.cfg.Addr)
		if err := a.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	if a.cfg.MonitorAutoStart {
		a.monitor.Start(ctx)
	}

	every := a.cfg.RetentionInterval
	if every <= 0 {
		every = time.Hour
	}
	retentionTicker := time.NewTicker(every)
	defer retentionTicker.Stop()
	a.retention.Run(ctx)

	for {
		select {
		case <-ctx.Done():
			return a.shutdown(nil)
		case err := <-errCh:
			return a.shutdown(fmt.Errorf("http server: %w", err))
		case <-retentionTicker.C:
			a.retention.Run(ctx)
		}
	}
}

func (a *App) shutdown(cause error) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	errs := []error{cause}
	if err := a.httpSrv.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("http shutdown: %w", err))
	}
	a.monitor.Stop()
	for _, c := range a.closers {
		c.Close()
	}
	if err := a.metrics.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("telemetry shutdown: %w", err))
	}
	if err := a.sqldb.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close db: %w", err))
	}
	return errors.Join(errs...)
}
