package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/aescanero/dago-cel/internal/eval/cel"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// canaryExpression is evaluated by health checks to prove the evaluator works
const canaryExpression = "1 + 1"

// Pinger checks the Redis connection
type Pinger interface {
	Ping(ctx context.Context) *redis.StatusCmd
}

// HealthServer serves /health and /ready for the evaluation worker
type HealthServer struct {
	port      int
	pinger    Pinger
	evaluator *cel.Evaluator
	logger    *zap.Logger
	server    *http.Server
}

// NewHealthServer creates a health server. Without an evaluator the worker
// is reported as not ready.
func NewHealthServer(port int, pinger Pinger, evaluator *cel.Evaluator, logger *zap.Logger) *HealthServer {
	return &HealthServer{
		port:      port,
		pinger:    pinger,
		evaluator: evaluator,
		logger:    logger,
	}
}

// HealthResponse is the body of both endpoints
type HealthResponse struct {
	Status   string            `json:"status"`
	Mode     string            `json:"mode,omitempty"`
	Programs int               `json:"programs"`
	Checks   map[string]string `json:"checks,omitempty"`
}

// Handler returns the health endpoints
func (hs *HealthServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", hs.serve("healthy", "unhealthy"))
	mux.HandleFunc("/ready", hs.serve("ready", "not ready"))
	return mux
}

// Start listens on the configured port in the background
func (hs *HealthServer) Start() error {
	hs.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", hs.port),
		Handler:           hs.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	hs.logger.Info("starting health server", zap.Int("port", hs.port))
	go func() {
		if err := hs.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			hs.logger.Error("health server error", zap.Error(err))
		}
	}()
	return nil
}

// Stop shuts the server down, waiting up to five seconds
func (hs *HealthServer) Stop() error {
	if hs.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	hs.logger.Info("stopping health server")
	return hs.server.Shutdown(ctx)
}

func (hs *HealthServer) serve(up, down string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		resp := HealthResponse{Status: up, Checks: hs.check(ctx)}
		if hs.evaluator != nil {
			resp.Mode = hs.evaluator.Mode().String()
			resp.Programs = hs.evaluator.CacheSize()
		}

		code := http.StatusOK
		for _, result := range resp.Checks {
			if result != "healthy" {
				resp.Status, code = down, http.StatusServiceUnavailable
				break
			}
		}
		hs.respondJSON(w, code, resp)
	}
}

// check runs the redis and evaluator checks
func (hs *HealthServer) check(ctx context.Context) map[string]string {
	checks := map[string]string{"redis": "healthy", "evaluator": "healthy"}

	if err := hs.pinger.Ping(ctx).Err(); err != nil {
		checks["redis"] = fmt.Sprintf("unhealthy: %v", err)
	}

	if hs.evaluator == nil {
		checks["evaluator"] = "unhealthy: no evaluator configured"
	} else if got, err := hs.evaluator.Evaluate(ctx, canaryExpression, nil); err != nil {
		checks["evaluator"] = fmt.Sprintf("unhealthy: %v", err)
	} else if got != int64(2) {
		checks["evaluator"] = fmt.Sprintf("unhealthy: %s = %v", canaryExpression, got)
	}

	for name, result := range checks {
		if result != "healthy" {
			hs.logger.Warn("health check failed", zap.String("check", name), zap.String("result", result))
		}
	}
	return checks
}

func (hs *HealthServer) respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		hs.logger.Error("failed to encode response", zap.Error(err))
	}
}
