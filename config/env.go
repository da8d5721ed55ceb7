package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	apperrors "imagededup/errors"
	"imagededup/types"
)

const envPrefix = "IMAGEDEDUP_"

// ApplyEnv overrides parameters from IMAGEDEDUP_* environment variables.
// Unset variables leave the current value in place.
func ApplyEnv(p *AnalysisParams) error {
	p.DHashThreshold = parseIntOrDefault(envPrefix+"DHASH_THRESHOLD", p.DHashThreshold)
	p.PHashThreshold = parseIntOrDefault(envPrefix+"PHASH_THRESHOLD", p.PHashThreshold)
	p.AHashThreshold = parseIntOrDefault(envPrefix+"AHASH_THRESHOLD", p.AHashThreshold)
	p.DetectPureColor = parseBoolOrDefault(envPrefix+"DETECT_PURE_COLOR", p.DetectPureColor)
	p.PureColorStdThreshold = parseFloatOrDefault(envPrefix+"PURE_COLOR_STD_THRESHOLD", p.PureColorStdThreshold)
	p.DetectRotation = parseBoolOrDefault(envPrefix+"DETECT_ROTATION", p.DetectRotation)
	p.RecursiveScan = parseBoolOrDefault(envPrefix+"RECURSIVE", p.RecursiveScan)
	p.WorkingSize = parseIntOrDefault(envPrefix+"WORKING_SIZE", p.WorkingSize)
	p.Workers = parseIntOrDefault(envPrefix+"WORKERS", p.Workers)
	p.Provider = getEnvOrDefault(envPrefix+"PROVIDER", p.Provider)

	if v := os.Getenv(envPrefix + "ANGLES"); v != "" {
		angles, err := ParseIntList(v)
		if err != nil {
			return apperrors.NewInvalidParameterError(envPrefix+"ANGLES", err)
		}
		p.Angles = angles
	}
	if v := os.Getenv(envPrefix + "SCALES"); v != "" {
		scales, err := ParseFloatList(v)
		if err != nil {
			return apperrors.NewInvalidParameterError(envPrefix+"SCALES", err)
		}
		p.Scales = scales
	}
	if v := os.Getenv(envPrefix + "HASH_SIZES"); v != "" {
		sizes, err := ParseIntList(v)
		if err != nil {
			return apperrors.NewInvalidParameterError(envPrefix+"HASH_SIZES", err)
		}
		p.HashSizes = sizes
	}
	if v := os.Getenv(envPrefix + "ALGORITHMS"); v != "" {
		p.Algorithms = ParseAlgorithmList(v)
	}
	return nil
}

// ParseIntList parses a comma-separated list such as "0,90,180,270"
func ParseIntList(s string) ([]int, error) {
	var out []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		v, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("invalid integer %q: %w", part, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// ParseFloatList parses a comma-separated list such as "0.75,1.0,1.25"
func ParseFloatList(s string) ([]float64, error) {
	var out []float64
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		v, err := strconv.ParseFloat(part, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q: %w", part, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// ParseAlgorithmList parses "dhash,phash". Validation happens in Validate.
func ParseAlgorithmList(s string) []types.Algorithm {
	var out []types.Algorithm
	for _, part := range strings.Split(s, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part != "" {
			out = append(out, types.Algorithm(part))
		}
	}
	return out
}

// ServerConfig configures the HTTP analyze surface
type ServerConfig struct {
	Host               string
	Port               string
	RequestTimeout     time.Duration
	MaxRequestBodySize int64
	// AllowedRoots restricts the folders and files a request may analyze
	AllowedRoots []string
}

func (c *ServerConfig) ServerAddress() string {
	return net.JoinHostPort(strings.TrimSpace(c.Host), strings.TrimSpace(c.Port))
}

// LoadServerConfigFromEnv reads the server settings
func LoadServerConfigFromEnv() (*ServerConfig, error) {
	cfg := &ServerConfig{
		Host:               getEnvOrDefault("HOST", "127.0.0.1"),
		Port:               getEnvOrDefault("PORT", "8080"),
		RequestTimeout:     parseDurationOrDefault("REQUEST_TIMEOUT", 5*time.Minute),
		MaxRequestBodySize: int64(parseIntOrDefault("MAX_REQUEST_BODY_SIZE", 1024*1024)),
	}

	if roots := os.Getenv(envPrefix + "ALLOWED_ROOTS"); roots != "" {
		for _, r := range filepath.SplitList(roots) {
			if abs, err := filepath.Abs(r); err == nil {
				cfg.AllowedRoots = append(cfg.AllowedRoots, abs)
			}
		}
	}

	p, err := strconv.Atoi(strings.TrimSpace(cfg.Port))
	if err != nil || p < 1 || p > 65535 {
		return nil, fmt.Errorf("invalid PORT: %q", cfg.Port)
	}
	if cfg.MaxRequestBodySize <= 0 {
		return nil, fmt.Errorf("MAX_REQUEST_BODY_SIZE must be > 0 (got %d)", cfg.MaxRequestBodySize)
	}
	if len(cfg.AllowedRoots) == 0 {
		return nil, fmt.Errorf("%sALLOWED_ROOTS must list at least one directory", envPrefix)
	}
	return cfg, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(strings.TrimSpace(value)); err == nil && duration > 0 {
			return duration
		}
	}
	return defaultValue
}

func parseIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func parseFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func parseBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
			return b
		}
	}
	return defaultValue
}
