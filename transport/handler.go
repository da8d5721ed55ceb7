package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"imagededup/analyzer"
	"imagededup/config"
	apperrors "imagededup/errors"
	"imagededup/logging"
	"imagededup/scanner"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// AnalyzerFactory builds an analyzer for one request's parameters
type AnalyzerFactory func(params config.AnalysisParams) (*analyzer.Analyzer, error)

// AnalyzeRequest selects the files of one analysis. Exactly one of Paths
// and Folder must be set. Params overrides fields of the server defaults.
type AnalyzeRequest struct {
	Paths     []string        `json:"paths,omitempty"`
	Folder    string          `json:"folder,omitempty"`
	Recursive *bool           `json:"recursive,omitempty"`
	Params    json.RawMessage `json:"params,omitempty"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// NewHandler returns the gin engine serving /health and /analyze
func NewHandler(defaults config.AnalysisParams, factory AnalyzerFactory, cfg *config.ServerConfig) http.Handler {
	r := gin.New()

	r.Use(
		gin.Recovery(),
		requestLogger(),
		requestSizeLimiter(cfg.MaxRequestBodySize),
	)

	r.GET("/health", healthCheck)
	r.POST("/analyze", analyzeImages(defaults, factory, cfg))

	return r
}

func analyzeImages(defaults config.AnalysisParams, factory AnalyzerFactory, cfg *config.ServerConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), cfg.RequestTimeout)
		defer cancel()

		var req AnalyzeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, http.StatusBadRequest, "invalid request format", err)
			return
		}

		params := defaults.Clone()
		if len(req.Params) > 0 {
			if err := json.Unmarshal(req.Params, &params); err != nil {
				respondError(c, http.StatusBadRequest, "invalid params", err)
				return
			}
		}
		if req.Recursive != nil {
			params.RecursiveScan = *req.Recursive
		}

		src, err := buildSource(req, params.RecursiveScan, cfg.AllowedRoots)
		if err != nil {
			respondError(c, apperrors.GetStatusCode(err), "invalid request", err)
			return
		}

		a, err := factory(params)
		if err != nil {
			respondError(c, apperrors.GetStatusCode(err), "invalid analysis parameters", err)
			return
		}

		report, err := a.Run(ctx, src)
		if err != nil && !errors.Is(err, context.DeadlineExceeded) {
			respondError(c, determineStatusCode(err), "analysis failed", err)
			return
		}

		logging.WithFields(logrus.Fields{
			"groups":      report.Summary.DuplicateGroups,
			"images":      report.Summary.TotalImages,
			"interrupted": report.Summary.Interrupted,
			"provider":    a.Provider(),
		}).Info("Analysis request completed")

		c.JSON(http.StatusOK, report)
	}
}

// buildSource validates the requested locations against the allowed roots
func buildSource(req AnalyzeRequest, recursive bool, roots []string) (scanner.Source, error) {
	switch {
	case req.Folder != "" && len(req.Paths) > 0:
		return nil, apperrors.NewInvalidParameterError("set either folder or paths, not both", nil)
	case req.Folder != "":
		folder, err := allowedPath(req.Folder, roots)
		if err != nil {
			return nil, err
		}
		return scanner.NewFileSource(folder, recursive), nil
	case len(req.Paths) > 0:
		paths := make(scanner.StaticSource, 0, len(req.Paths))
		for _, p := range req.Paths {
			abs, err := allowedPath(p, roots)
			if err != nil {
				return nil, err
			}
			paths = append(paths, abs)
		}
		return paths, nil
	default:
		return nil, apperrors.NewInvalidParameterError("folder or paths is required", nil)
	}
}

func allowedPath(path string, roots []string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", apperrors.NewInvalidParameterError("invalid path", err).WithPath(path)
	}
	for _, root := range roots {
		rel, err := filepath.Rel(root, abs)
		if err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return abs, nil
		}
	}
	e := apperrors.NewInvalidParameterError("path is outside the allowed roots", nil).WithPath(path)
	e.StatusCode = http.StatusForbidden
	return "", e
}

func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "available",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// Middleware and helper functions
func requestSizeLimiter(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logging.WithFields(logrus.Fields{
			"method":      c.Request.Method,
			"path":        c.Request.URL.Path,
			"status":      c.Writer.Status(),
			"ip":          c.ClientIP(),
			"duration_ms": time.Since(start).Milliseconds(),
		}).Debug("Request handled")
	}
}

func determineStatusCode(err error) int {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, code int, message string, err error) {
	logging.WithError(err).WithFields(logrus.Fields{
		"status_code": code,
		"message":     message,
		"path":        c.Request.URL.Path,
		"method":      c.Request.Method,
		"ip":          c.ClientIP(),
	}).Error("Request failed")

	c.AbortWithStatusJSON(code, ErrorResponse{
		Error:   http.StatusText(code),
		Message: fmt.Sprintf("%s: %v", message, err),
	})
}
