package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"time"

	"github.com/gorilla/mux"

	"github.com/wonny/paperflow/internal/api/handlers"
	"github.com/wonny/paperflow/pkg/logger"
)

// healthTimeout bounds each backend ping in GET /health
const healthTimeout = 2 * time.Second

// Pinger is a backend checked by GET /health. *database.DB and *redis.Client satisfy it.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Routes bundles everything the router serves
type Routes struct {
	Audit    *handlers.AuditHandler
	Validate *handlers.ValidateHandler
	Hub      *Hub
	Limiter  Limiter
	Backends map[string]Pinger
}

// NewRouter creates and configures the HTTP router
// ⭐ SSOT: 라우팅 설정은 이 함수에서만
func NewRouter(routes Routes, log *logger.Logger) http.Handler {
	r := mux.NewRouter()

	// Health check
	r.HandleFunc("/health", healthCheckHandler(routes.Backends)).Methods("GET")

	// Audit stream
	if routes.Hub != nil {
		r.HandleFunc("/ws/audit", routes.Hub.ServeWS).Methods("GET")
	}

	api := r.PathPrefix("/api").Subrouter()
	if routes.Limiter != nil {
		api.Use(rateLimitMiddleware(routes.Limiter, log))
	}

	// Audit endpoints
	api.HandleFunc("/audit", routes.Audit.GetAudit).Methods("GET")
	api.HandleFunc("/audit/markdown", routes.Audit.GetMarkdown).Methods("GET")
	api.HandleFunc("/audit/text", routes.Audit.GetText).Methods("GET")
	api.HandleFunc("/audit/history", routes.Audit.GetHistory).Methods("GET")

	// Stage endpoints
	api.HandleFunc("/stages", routes.Audit.GetStages).Methods("GET")
	api.HandleFunc("/stages/compare", routes.Audit.CompareStages).Methods("GET")

	// Validation
	api.HandleFunc("/validate", routes.Validate.Validate).Methods("POST")

	// Apply middleware
	r.Use(loggingMiddleware(log))
	r.Use(recoveryMiddleware(log))

	return r
}

// healthCheckHandler reports server health. Any failing backend turns the answer into 503.
func healthCheckHandler(backends map[string]Pinger) http.HandlerFunc {
	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	sort.Strings(names)

	return func(w http.ResponseWriter, r *http.Request) {
		body := map[string]interface{}{
			"status":  "ok",
			"service": "paperflow-api",
		}
		code := http.StatusOK

		if len(names) > 0 {
			checks := make(map[string]string, len(names))
			for _, name := range names {
				ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
				err := backends[name].Ping(ctx)
				cancel()

				if err != nil {
					checks[name] = err.Error()
					body["status"] = "degraded"
					code = http.StatusServiceUnavailable
					continue
				}
				checks[name] = "ok"
			}
			body["checks"] = checks
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		json.NewEncoder(w).Encode(body)
	}
}
