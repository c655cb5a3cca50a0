package handlers

import (
	"context"
	"fmt"
	"net/http"

	gorillahandlers "github.com/gorilla/handlers"
	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"ecovision/pkg/logging"
)

// RequestIDHeader carries the request id in and out of the API
const RequestIDHeader = "X-Request-ID"

// RouterConfig holds the options for NewRouter
type RouterConfig struct {
	// AllowedOrigins defaults to "*" when empty.
	AllowedOrigins []string
	// Metrics is mounted at /metrics when set.
	Metrics http.Handler
}

// NewRouter assembles the API: climate routes, docs, metrics, request ids,
// CORS and panic recovery.
func NewRouter(h *ClimateHandler, cfg RouterConfig, logger *logging.StructuredLogger) http.Handler {
	router := mux.NewRouter()
	router.Use(requestIDMiddleware)

	h.RegisterRoutes(router)
	router.HandleFunc(docsSpecPath, OpenAPISpec).Methods(http.MethodGet)
	router.HandleFunc(docsUIPath, SwaggerUI).Methods(http.MethodGet)
	if cfg.Metrics != nil {
		router.Handle("/metrics", cfg.Metrics).Methods(http.MethodGet)
	}

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	cors := gorillahandlers.CORS(
		gorillahandlers.AllowedOrigins(origins),
		gorillahandlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
		gorillahandlers.AllowedHeaders([]string{"Content-Type", "Authorization", RequestIDHeader}),
		gorillahandlers.ExposedHeaders([]string{RequestIDHeader}),
	)
	recovery := gorillahandlers.RecoveryHandler(
		gorillahandlers.RecoveryLogger(recoveryLogger{logger: logger}),
		gorillahandlers.PrintRecoveryStack(false),
	)

	return recovery(cors(router))
}

// requestIDMiddleware propagates X-Request-ID, minting one when absent
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(logging.WithRequestID(r.Context(), id)))
	})
}

type recoveryLogger struct {
	logger *logging.StructuredLogger
}

func (l recoveryLogger) Println(v ...interface{}) {
	l.logger.Error(context.Background(), "[PANIC_RECOVERED] Handler panicked", logging.Fields{
		"panic": fmt.Sprint(v...),
	}, nil)
}
