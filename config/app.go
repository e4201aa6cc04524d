package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Pipeline holds the tunables of the capture-to-artifact pipeline.
type Pipeline struct {
	UploadDir    string // per-session chunk payloads
	ProcessedDir string // assembled + enhanced artifacts

	DenoiseURL     string        // external enhancement service endpoint
	DenoiseTimeout time.Duration // bound on one enhancement call

	WorkerCount int
}

func LoadPipeline() Pipeline {
	p := Pipeline{
		UploadDir:      getenv("UPLOAD_DIR", filepath.Join("data", "uploads")),
		ProcessedDir:   getenv("PROCESSED_DIR", filepath.Join("data", "processed")),
		DenoiseURL:     getenv("DENOISE_SERVER", "http://localhost:5000/denoise"),
		DenoiseTimeout: getdur("DENOISE_TIMEOUT", 300*time.Second),
		WorkerCount:    getint("PROCESSING_WORKERS", 5),
	}
	return p
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getint(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}

func getdur(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return def
}
