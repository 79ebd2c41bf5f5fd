package main

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	logpkg "twin-data/common/logger"
	"twin-data/internal/app"
	"twin-data/internal/config"
	httpapi "twin-data/internal/http"
	"twin-data/internal/journal"
	"twin-data/internal/lab"
	"twin-data/internal/mapping"
	"twin-data/internal/metrics"
	"twin-data/internal/registry"
	"twin-data/internal/service"
)

func main() {
	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 初始化日志
	log, err := logpkg.NewLogger(cfg.Log.Level, cfg.Log.Format, "twin-data")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	zap.ReplaceGlobals(log)

	log.Info("Starting twin-data service", zap.String("backend", cfg.StorageBackend))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := metrics.New()
	backend, err := app.OpenBackend(ctx, cfg, m, log)
	if err != nil {
		log.Fatal("Failed to open storage backend", zap.Error(err))
	}
	defer backend.Close()

	cat, err := app.LoadCatalog(cfg)
	if err != nil {
		log.Fatal("Failed to load parameter catalog", zap.Error(err))
	}

	rnd := rand.New(rand.NewSource(time.Now().UnixNano()))
	reg, err := registry.New(ctx, backend.KV, app.AutomaticSensors(cfg, time.Now(), rnd, log), log,
		registry.WithNotifier(backend.Notifier),
	)
	if err != nil {
		log.Fatal("Failed to load sensor registry", zap.Error(err))
	}
	defer reg.Close()

	rows := mapping.New(ctx, backend.KV, reg, log, mapping.WithNotifier(backend.Notifier))
	defer rows.Close()

	loc, err := cfg.Location()
	if err != nil {
		log.Fatal("Invalid timezone", zap.String("timezone", cfg.Timezone), zap.Error(err))
	}
	j := journal.New(backend.KV, reg, rows, log, journal.WithLocation(loc))
	labs := lab.NewService(backend.KV, rows, log)

	m.RegisterGauge("sensors_automatic", "Automatic sensors", func() float64 { return float64(len(reg.Automatic())) })
	m.RegisterGauge("sensors_manual", "Manual sensors", func() float64 { return float64(len(reg.Manual())) })
	m.RegisterGauge("mapping_rows", "Mapping rows", func() float64 { return float64(len(rows.Rows())) })

	router := httpapi.NewRouter(m, log)
	router.RegisterCatalogRoutes(httpapi.NewCatalogHandler(cat, log))
	router.RegisterMappingRoutes(httpapi.NewMappingHandler(rows, cat, log))
	router.RegisterSensorRoutes(httpapi.NewSensorHandler(reg, log))
	router.RegisterJournalRoutes(httpapi.NewJournalHandler(j, m, log))
	router.RegisterChartRoutes(httpapi.NewChartHandler(reg, log))
	router.RegisterExportRoutes(httpapi.NewExportHandler(reg, j, log))
	router.RegisterLabRoutes(httpapi.NewLabHandler(labs, log))

	checks := make(map[string]httpapi.Pinger, len(backend.Checks))
	for name, fn := range backend.Checks {
		checks[name] = fn
	}
	router.RegisterDoctorRoutes(httpapi.NewDoctorHandler(checks, log))

	srv := service.NewServer(cfg.HTTP.Addr, router, log)

	errChan := make(chan error, 2)
	go func() {
		if err := backend.Run(ctx); err != nil {
			errChan <- fmt.Errorf("change notifier: %w", err)
		}
	}()
	go func() {
		if err := srv.Start(); err != nil {
			errChan <- err
		}
	}()

	// 监听系统信号
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		log.Info("Received signal, shutting down", zap.String("signal", sig.String()))
	case err := <-errChan:
		log.Error("Service error", zap.Error(err))
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		log.Error("Error stopping HTTP server", zap.Error(err))
	}

	log.Info("Service stopped")
}
