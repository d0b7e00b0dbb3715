package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/vitrinhq/vitrin/internal/analytics"
	"github.com/vitrinhq/vitrin/internal/apiserver"
	"github.com/vitrinhq/vitrin/internal/auth"
	"github.com/vitrinhq/vitrin/internal/common/config"
	"github.com/vitrinhq/vitrin/internal/geo"
	"github.com/vitrinhq/vitrin/internal/i18n"
	"github.com/vitrinhq/vitrin/internal/presence"
	"github.com/vitrinhq/vitrin/internal/storage"
	"github.com/vitrinhq/vitrin/internal/storage/notifier"
	"github.com/vitrinhq/vitrin/pkg/logger"
	"github.com/vitrinhq/vitrin/pkg/metrics"
	"github.com/vitrinhq/vitrin/pkg/trace"
	"github.com/vitrinhq/vitrin/pkg/version"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// app holds what every command needs
type app struct {
	cfg      *config.VitrinConfig
	logger   *zap.Logger
	store    storage.Store
	notifier notifier.Notifier
	engine   *presence.Engine
	metrics  *metrics.Metrics // nil unless enabled and serving
}

func bootstrap(ctx context.Context, serving bool) (*app, error) {
	cfg, cfgPath, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration %s: %w", cfgPath, err)
	}
	lg, err := initLogger(cfg)
	if err != nil {
		return nil, err
	}
	lg.Info("loaded configuration", zap.String("path", cfgPath))

	store, err := storage.NewStore(ctx, lg, &cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	ntf, err := notifier.NewNotifier(ctx, lg, &cfg.Notifier)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to initialize notifier: %w", err)
	}
	var m *metrics.Metrics
	if serving && cfg.Metrics.Enabled {
		m = metrics.New(cfg.Metrics)
	}
	engine, err := newEngine(lg, cfg, store, ntf, m)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	return &app{cfg: cfg, logger: lg, store: store, notifier: ntf, engine: engine, metrics: m}, nil
}

func (a *app) close() {
	a.engine.Close()
	if err := a.store.Close(); err != nil {
		a.logger.Warn("failed to close storage", zap.Error(err))
	}
	_ = a.logger.Sync()
}

func initLogger(cfg *config.VitrinConfig) (*zap.Logger, error) {
	lg, err := logger.NewLogger(&cfg.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return lg, nil
}

func newEngine(lg *zap.Logger, cfg *config.VitrinConfig, store storage.Store, ntf notifier.Notifier, m *metrics.Metrics) (*presence.Engine, error) {
	opts := []presence.Option{
		presence.WithStaleAfter(cfg.Presence.StaleAfter),
		presence.WithCleanupDelay(cfg.Presence.CleanupDelay),
		presence.WithWorkers(cfg.Presence.CleanupWorkers),
	}
	if m != nil {
		opts = append(opts, presence.WithObserver(m))
	}
	return presence.New(lg, store, ntf, geo.NewService(lg, &cfg.Presence.Enrichment), opts...)
}

func runServe(ctx context.Context) error {
	a, err := bootstrap(ctx, true)
	if err != nil {
		return err
	}
	defer a.close()
	lg := a.logger
	lg.Info("starting vitrin", zap.String("version", version.Get()))

	shutdownTracing, err := trace.InitTracing(ctx, &a.cfg.Tracing, lg)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			lg.Warn("failed to flush traces", zap.Error(err))
		}
	}()

	if err := i18n.InitTranslator(a.cfg.I18n.DefaultLang, a.cfg.I18n.Path); err != nil {
		return fmt.Errorf("failed to initialize translations: %w", err)
	}

	if a.cfg.Presence.SweepInterval > 0 {
		sweeper := presence.NewSweeper(a.engine, lg, a.cfg.Presence.SweepInterval)
		sweeper.Start(ctx)
		defer sweeper.Stop()
	}

	reporter, err := analytics.NewService(lg, a.engine, &a.cfg.Analytics)
	if err != nil {
		return err
	}
	admin, err := auth.NewAdmin(lg, &a.cfg.Admin)
	if err != nil {
		return fmt.Errorf("failed to initialize admin auth: %w", err)
	}

	if a.cfg.Logger.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	srv, err := apiserver.NewServer(lg, a.cfg, apiserver.Deps{
		Presence: a.engine,
		Reporter: reporter,
		Admin:    admin,
		Metrics:  a.metrics,
	})
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	lg.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		lg.Error("failed to shutdown server", zap.Error(err))
		return err
	}
	return nil
}

func runCleanup(ctx context.Context, out io.Writer, all bool) error {
	a, err := bootstrap(ctx, false)
	if err != nil {
		return err
	}
	defer a.close()

	var n int
	if all {
		n = a.engine.ForceCleanupAll(ctx)
	} else {
		n = a.engine.CleanupStale(ctx)
	}
	_, err = fmt.Fprintf(out, "ended %d visitor sessions\n", n)
	return err
}

func runReport(ctx context.Context, out io.Writer, rawRange string, asJSON bool) error {
	r, err := analytics.ParseRange(rawRange)
	if err != nil {
		return err
	}
	a, err := bootstrap(ctx, false)
	if err != nil {
		return err
	}
	defer a.close()

	svc, err := analytics.NewService(a.logger, a.engine, &a.cfg.Analytics)
	if err != nil {
		return err
	}
	rep, err := svc.Report(ctx, r)
	if err != nil {
		return err
	}
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	}
	return printReport(out, rep)
}

func printReport(out io.Writer, rep *analytics.Report) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "range\t%s (%s - %s)\n", rep.Range, rep.From.Format(time.DateTime), rep.To.Format(time.DateTime))
	fmt.Fprintf(w, "visits\t%d\n", rep.Total)
	fmt.Fprintf(w, "desktop / mobile\t%d / %d\n", rep.Desktop, rep.Mobile)
	fmt.Fprintf(w, "direct\t%d\n", rep.Direct)
	fmt.Fprintf(w, "unique ips\t%d\n", rep.UniqueIPs)
	fmt.Fprintf(w, "avg duration\t%s\n", time.Duration(rep.AvgDuration*float64(time.Second)).Round(time.Second))
	for _, section := range []struct {
		name string
		rows []analytics.Count
	}{
		{"top pages", rep.TopPages},
		{"cities", rep.Cities},
		{"countries", rep.Countries},
		{"os", rep.OS},
		{"browsers", rep.Browsers},
	} {
		fmt.Fprintf(w, "\n%s\t\n", section.name)
		for _, c := range section.rows {
			fmt.Fprintf(w, "  %s\t%d\n", c.Label, c.Count)
		}
	}
	return w.Flush()
}
