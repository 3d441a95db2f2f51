package main

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"motion/internal/adapters/store/localfs"
	"motion/internal/config"
	"motion/internal/httpapi"
	"motion/internal/metrics"
	"motion/internal/pkg/logger"
	"motion/internal/pkg/shutdown"
	"motion/internal/render/engine"
	"motion/internal/render/job"
	"motion/internal/render/pipeline"
	"motion/internal/render/workspace"
)

func main() {
	cfg := config.Load()

	log := logger.New(logger.Config{
		Level:       cfg.LogLevel,
		Format:      cfg.LogFormat,
		ServiceName: "motion-api",
	})

	log.Info("starting motion renderer",
		"version", "0.1.0",
		"env", cfg.Env,
	)

	if err := cfg.EnsureDirs(); err != nil {
		log.LogFatal("failed to prepare directories", err)
	}
	log.Info("directories ready",
		"output_dir", cfg.OutputDir,
		"work_dir", cfg.WorkDir,
	)

	shutdownMgr := shutdown.NewManager(log, 30*time.Second)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry)

	store := localfs.New(cfg.OutputDir)
	workspaces := workspace.NewManager(cfg.WorkDir, log)
	eng := engine.NewRemotionCLI(cfg.EngineCommand, cfg.EngineArgs, log)
	driver := pipeline.NewDriver(eng, log)

	coordinator := job.NewCoordinator(job.Deps{
		Workspaces:    workspaces,
		Driver:        driver,
		Store:         store,
		OutputDir:     cfg.OutputDir,
		MaxConcurrent: cfg.MaxConcurrentRenders,
		Metrics:       m,
		Log:           log,
	})

	router := httpapi.NewRouter(httpapi.Deps{
		Coordinator:  coordinator,
		Store:        store,
		Gatherer:     registry,
		ExposeStacks: !cfg.IsProduction(),
		Log:          log,
	})

	server := &http.Server{
		Addr:         "0.0.0.0:" + cfg.Port,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	shutdownMgr.Register("http-server", func(ctx context.Context) error {
		log.Info("shutting down HTTP server")
		return server.Shutdown(ctx)
	})

	go func() {
		log.Info("HTTP server listening",
			"addr", server.Addr,
			"port", cfg.Port,
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.LogFatal("HTTP server failed", err)
		}
	}()

	shutdownMgr.Wait()
}
