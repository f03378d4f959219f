package handler

import (
	"net/http"

	"exam-parser/internal/domain"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
)

// NewRouter creates a new HTTP router with all routes configured
func NewRouter(parseHandler *ParseHandler, logger domain.Logger) http.Handler {
	router := mux.NewRouter()
	router.Use(LoggingMiddleware(logger))

	router.HandleFunc("/health", parseHandler.Health).Methods(http.MethodGet)
	router.HandleFunc("/parse-docs", parseHandler.ParseDocs).Methods(http.MethodPost)

	// Configure CORS
	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodOptions,
		},
		AllowedHeaders: []string{
			"Accept",
			"Content-Type",
		},
		MaxAge: 300, // Maximum value not ignored by any of major browsers
	})

	return c.Handler(router)
}
