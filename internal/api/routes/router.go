package routes

import (
	"net/http"

	"github.com/sorincom/analize-new/internal/api/handlers"
	"github.com/sorincom/analize-new/internal/api/middleware"
	"github.com/sorincom/analize-new/internal/infrastructure/observability"
)

// Router holds all route handlers
type Router struct {
	mux *http.ServeMux

	ingestionHandler *handlers.IngestionHandler
	documentHandler  *handlers.DocumentHandler
	userHandler      *handlers.UserHandler
	timelineHandler  *handlers.TimelineHandler
	catalogHandler   *handlers.CatalogHandler

	metrics *observability.Metrics
}

// NewRouter creates a new router
func NewRouter(
	ingestionHandler *handlers.IngestionHandler,
	documentHandler *handlers.DocumentHandler,
	userHandler *handlers.UserHandler,
	timelineHandler *handlers.TimelineHandler,
	catalogHandler *handlers.CatalogHandler,
	metrics *observability.Metrics,
) *Router {
	return &Router{
		mux:              http.NewServeMux(),
		ingestionHandler: ingestionHandler,
		documentHandler:  documentHandler,
		userHandler:      userHandler,
		timelineHandler:  timelineHandler,
		catalogHandler:   catalogHandler,
		metrics:          metrics,
	}
}

// SetupRoutes configures all application routes
func (r *Router) SetupRoutes() http.Handler {
	// Health check endpoint
	r.mux.HandleFunc("GET /health", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			return
		}
	})

	// Ingestion
	r.mux.HandleFunc("POST /api/documents/{id}/process", r.ingestionHandler.ProcessDocument)

	// Document registry
	r.mux.HandleFunc("POST /api/users/{id}/documents", r.documentHandler.RegisterDocument)
	r.mux.HandleFunc("GET /api/users/{id}/documents", r.documentHandler.ListUserDocuments)
	r.mux.HandleFunc("GET /api/documents/{id}", r.documentHandler.GetDocument)

	// Users
	r.mux.HandleFunc("POST /api/users", r.userHandler.CreateUser)
	r.mux.HandleFunc("GET /api/users", r.userHandler.ListUsers)
	r.mux.HandleFunc("GET /api/users/{id}", r.userHandler.GetUser)

	// Timeline reads
	r.mux.HandleFunc("GET /api/users/{id}/results", r.timelineHandler.ListUserResults)
	r.mux.HandleFunc("GET /api/users/{id}/results/{testTypeId}", r.timelineHandler.ListUserTestTypeResults)

	// Catalog reads
	r.mux.HandleFunc("GET /api/labs", r.catalogHandler.ListLabs)
	r.mux.HandleFunc("GET /api/labs/{id}", r.catalogHandler.GetLab)
	r.mux.HandleFunc("GET /api/test-types", r.catalogHandler.ListTestTypes)
	r.mux.HandleFunc("GET /api/test-types/{id}", r.catalogHandler.GetTestType)
	r.mux.HandleFunc("GET /api/test-types/{id}/aliases", r.catalogHandler.ListTestTypeAliases)

	// Apply middleware chain
	var handler http.Handler = r.mux
	handler = middleware.LoggingMiddleware(r.metrics)(handler)
	handler = middleware.CORSMiddleware(handler)

	return handler
}
