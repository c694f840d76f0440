package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds all leafgrade configuration.
type Config struct {
	Server     ServerConfig
	Artifacts  ArtifactConfig
	Preprocess PreprocessConfig
	History    HistoryConfig
	Log        LogConfig
}

// ServerConfig holds HTTP settings.
type ServerConfig struct {
	Port         string
	MaxUploadMB  int64
	BatchWorkers int
}

// ArtifactConfig points at the three trained artifacts.
type ArtifactConfig struct {
	ModelPath   string // .onnx or .json
	ScalerPath  string
	EncoderPath string
	ORTLibPath  string // onnxruntime shared library; empty = runtime default
}

// PreprocessConfig holds image normalization settings.
type PreprocessConfig struct {
	ImageSize    int
	MinSide      int
	ResizeKernel string // "nearest", "bilinear", "bicubic", "lanczos3", "catmullrom"
}

// HistoryConfig selects where prediction records are appended.
type HistoryConfig struct {
	Backend     string // "csv" or "postgres"
	Path        string
	DatabaseURL string
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string
	Format string // "text" or "json"
	File   string
}

// Load reads configuration from environment variables with sensible defaults.
// In development (RUN_TIME_ENV empty or "dev") a .env file is read first.
func Load() Config {
	if env := os.Getenv("RUN_TIME_ENV"); env == "" || env == "dev" {
		if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
			slog.Warn("could not load .env file", slog.Any("error", err))
		}
	}

	return Config{
		Server: ServerConfig{
			Port:         getenv("LEAFGRADE_PORT", getenv("PORT", "8080")),
			MaxUploadMB:  int64(getenvInt("LEAFGRADE_MAX_UPLOAD_MB", 32)),
			BatchWorkers: getenvInt("LEAFGRADE_BATCH_WORKERS", 1),
		},
		Artifacts: ArtifactConfig{
			ModelPath:   getenv("LEAFGRADE_MODEL_PATH", "models/model.onnx"),
			ScalerPath:  getenv("LEAFGRADE_SCALER_PATH", "models/scaler.json"),
			EncoderPath: getenv("LEAFGRADE_ENCODER_PATH", "models/encoder.json"),
			ORTLibPath:  os.Getenv("LEAFGRADE_ORT_LIB"),
		},
		Preprocess: PreprocessConfig{
			ImageSize:    getenvInt("LEAFGRADE_IMAGE_SIZE", 64),
			MinSide:      getenvInt("LEAFGRADE_MIN_SIDE", 50),
			ResizeKernel: getenv("LEAFGRADE_RESIZE_KERNEL", "bilinear"),
		},
		History: HistoryConfig{
			Backend:     getenv("LEAFGRADE_HISTORY_BACKEND", "csv"),
			Path:        getenv("LEAFGRADE_HISTORY_PATH", "riwayat_prediksi.csv"),
			DatabaseURL: os.Getenv("LEAFGRADE_DATABASE_URL"),
		},
		Log: LogConfig{
			Level:  getenv("LEAFGRADE_LOG_LEVEL", "info"),
			Format: getenv("LEAFGRADE_LOG_FORMAT", "text"),
			File:   os.Getenv("LEAFGRADE_LOG_FILE"),
		},
	}
}

// Validate reports the first setting that cannot work.
func (c Config) Validate() error {
	if c.Preprocess.ImageSize <= 0 {
		return fmt.Errorf("config: image size must be positive, got %d", c.Preprocess.ImageSize)
	}
	if c.Preprocess.MinSide < 0 {
		return fmt.Errorf("config: min side must not be negative, got %d", c.Preprocess.MinSide)
	}
	if c.Server.BatchWorkers <= 0 {
		return fmt.Errorf("config: batch workers must be positive, got %d", c.Server.BatchWorkers)
	}
	if c.Server.MaxUploadMB <= 0 {
		return fmt.Errorf("config: max upload must be positive, got %d MB", c.Server.MaxUploadMB)
	}
	switch c.History.Backend {
	case "csv":
		if c.History.Path == "" {
			return fmt.Errorf("config: csv history backend needs LEAFGRADE_HISTORY_PATH")
		}
	case "postgres":
		if c.History.DatabaseURL == "" {
			return fmt.Errorf("config: postgres history backend needs LEAFGRADE_DATABASE_URL")
		}
	default:
		return fmt.Errorf("config: unknown history backend %q", c.History.Backend)
	}
	return nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
