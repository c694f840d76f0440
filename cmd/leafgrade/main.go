// Command leafgrade classifies leaf photos from the command line using the
// same artifacts and pipeline as the server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/mdobak/go-xerrors"

	"github.com/Brownie44l1/leafgrade/internal/batch"
	"github.com/Brownie44l1/leafgrade/internal/config"
	"github.com/Brownie44l1/leafgrade/internal/history"
	"github.com/Brownie44l1/leafgrade/internal/logging"
	"github.com/Brownie44l1/leafgrade/internal/model"
	"github.com/Brownie44l1/leafgrade/internal/preprocess"
)

func usage() {
	fmt.Fprintf(flag.CommandLine.Output(), "usage: leafgrade [-log] [-export out.txt] image ...\n")
	flag.PrintDefaults()
}

func main() {
	appendLog := flag.Bool("log", false, "append results to the prediction history")
	exportPath := flag.String("export", "", "write the text summary to this file")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	cfg := config.Load()
	logCloser := logging.Init(logging.Options{
		Format: cfg.Log.Format,
		Level:  logging.ParseLevel(cfg.Log.Level),
		File:   cfg.Log.File,
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, cfg, *appendLog, *exportPath, flag.Args())
	cancel()
	logCloser.Close()
	os.Exit(code)
}

func run(ctx context.Context, cfg config.Config, appendLog bool, exportPath string, paths []string) int {
	if err := cfg.Validate(); err != nil {
		return fail("invalid configuration", err)
	}

	pre, err := preprocess.New(cfg.Preprocess.ImageSize, cfg.Preprocess.MinSide, cfg.Preprocess.ResizeKernel)
	if err != nil {
		return fail("failed to configure preprocessing", err)
	}

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

	var store history.Store = discard{}
	if appendLog {
		store, err = history.Open(ctx, cfg.History.Backend, cfg.History.Path, cfg.History.DatabaseURL)
		if err != nil {
			return fail("failed to open prediction history", err)
		}
		defer store.Close()
	}

	c := &cli{
		runner: batch.New(pre, bundle, store, batch.WithWorkers(cfg.Server.BatchWorkers)),
		stdout: os.Stdout,
		stderr: os.Stderr,
	}
	return c.classify(ctx, paths, exportPath)
}

func fail(msg string, err error) int {
	slog.Error(msg, slog.Any("error", xerrors.WithStackTrace(err, 1)))
	return 1
}

// discard drops records when -log is not set.
type discard struct{}

func (discard) Append(context.Context, []history.Record) error { return nil }
func (discard) List(context.Context) ([]history.Record, error) { return nil, nil }
func (discard) Close() error                                   { return nil }
