package httpx

import (
	"log/slog"
	"net/http"

	"github.com/vidforge/vidforge/internal/service"
)

// RouterServices holds the services needed by the HTTP router.
type RouterServices struct {
	Jobs   *service.JobService
	Logger *slog.Logger
}

// NewRouter creates and configures the HTTP router.
func NewRouter(services RouterServices) http.Handler {
	mux := http.NewServeMux()

	jobHandlers := &JobHandlers{Svc: services.Jobs}
	healthHandlers := &HealthHandlers{Svc: services.Jobs}

	mux.HandleFunc("POST /generate-video", jobHandlers.SubmitJob)
	mux.HandleFunc("GET /jobs", jobHandlers.ListJobs)
	mux.HandleFunc("GET /jobs/{id}", jobHandlers.GetJob)
	mux.HandleFunc("GET /jobs/{id}/result", jobHandlers.GetResult)
	mux.HandleFunc("GET /stats", jobHandlers.Stats)
	mux.HandleFunc("GET /health", healthHandlers.Health)
	mux.HandleFunc("HEAD /health", healthHandlers.Health)

	logger := services.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var handler http.Handler = mux
	handler = Logging(logger)(handler)
	handler = Recover(logger)(handler)
	return handler
}
