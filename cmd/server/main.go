package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mdobak/go-xerrors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/Brownie44l1/leafgrade/internal/batch"
	"github.com/Brownie44l1/leafgrade/internal/config"
	"github.com/Brownie44l1/leafgrade/internal/handlers"
	"github.com/Brownie44l1/leafgrade/internal/history"
	"github.com/Brownie44l1/leafgrade/internal/logging"
	"github.com/Brownie44l1/leafgrade/internal/metrics"
	"github.com/Brownie44l1/leafgrade/internal/model"
	"github.com/Brownie44l1/leafgrade/internal/preprocess"
)

func fail(msg string, err error) int {
	slog.Error(msg, slog.Any("error", xerrors.WithStackTrace(err, 1)))
	return 1
}

func main() {
	os.Exit(run())
}

// run returns the exit status once its deferred cleanup has run.
func run() int {
	cfg := config.Load()

	logCloser := logging.Init(logging.Options{
		Format: cfg.Log.Format,
		Level:  logging.ParseLevel(cfg.Log.Level),
		File:   cfg.Log.File,
	})
	defer logCloser.Close()

	if err := cfg.Validate(); err != nil {
		return fail("invalid configuration", err)
	}

	pre, err := preprocess.New(cfg.Preprocess.ImageSize, cfg.Preprocess.MinSide, cfg.Preprocess.ResizeKernel)
	if err != nil {
		return fail("failed to configure preprocessing", err)
	}

	slog.Info("loading model", slog.String("path", cfg.Artifacts.ModelPath))

	bundle, err := model.Load(model.Paths{
		Model:   cfg.Artifacts.ModelPath,
		Scaler:  cfg.Artifacts.ScalerPath,
		Encoder: cfg.Artifacts.EncoderPath,
		ORTLib:  cfg.Artifacts.ORTLibPath,
	}, pre.FeatureCount())
	if err != nil {
		return fail("failed to load model artifacts", err)
	}
	defer model.ShutdownRuntime()
	defer bundle.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	store, err := history.Open(ctx, cfg.History.Backend, cfg.History.Path, cfg.History.DatabaseURL)
	cancel()
	if err != nil {
		return fail("failed to open prediction history", err)
	}
	defer store.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	runner := batch.New(pre, bundle, store,
		batch.WithWorkers(cfg.Server.BatchWorkers),
		batch.WithMetrics(m),
	)

	if os.Getenv(gin.EnvGinMode) == "" && cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	handler := handlers.NewHandler(runner, store, handlers.ModelInfo{
		Classes:   bundle.Classes(),
		ImageSize: pre.Size(),
		Kernel:    cfg.Preprocess.ResizeKernel,
	}, cfg.Server.MaxUploadMB<<20)
	router := handlers.NewRouter(handler, m, reg)

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	slog.Info("server starting",
		slog.String("port", cfg.Server.Port),
		slog.Any("classes", bundle.Classes()),
		slog.String("history", cfg.History.Backend),
	)
	slog.Info("endpoints",
		slog.String("GET /predict", "upload form"),
		slog.String("POST /api/v1/predict", "multipart 'images' prediction"),
		slog.String("POST /api/v1/predict/export", "text summary download"),
		slog.String("GET /api/v1/history", "prediction log"),
	)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	if err := serve(srv, quit, 10*time.Second); err != nil {
		return fail("server failed", err)
	}
	return 0
}

// serve runs srv until it fails or a signal arrives on quit, then shuts it
// down within grace. Listen errors are returned, never fatal.
func serve(srv *http.Server, quit <-chan os.Signal, grace time.Duration) error {
	serveErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return err
	case sig := <-quit:
		slog.Info("shutting down", slog.Any("signal", sig))
	}

	ctx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
