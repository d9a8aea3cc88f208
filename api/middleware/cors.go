package middleware

import (
	"net/http"

	"github.com/go-chi/cors"
)

// CORS allows the register UI origin plus local development hosts.
func CORS(uiOrigin string) func(http.Handler) http.Handler {
	origins := []string{
		"http://localhost:5173",
		"http://localhost:3000",
	}
	if uiOrigin != "" {
		origins = append(origins, uiOrigin)
	}
	return cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
		MaxAge:           300,
	}).Handler
}
