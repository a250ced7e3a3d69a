package router

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/ricbatera/credentials-fullstack/internal/api/handlers"
	appmiddleware "github.com/ricbatera/credentials-fullstack/internal/api/middleware"
)

// RouterConfig defines the strict dependencies required to build the API routing tree.
type RouterConfig struct {
	AllowedOrigins     []string
	CredentialHandler  *handlers.CredentialHandler
	ConsumerKeyHandler *handlers.ConsumerKeyHandler
	Logger             *slog.Logger
}

// NewRouter constructs the Chi multiplexer, attaches global middleware, and wires all endpoints.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// =========================================================================
	// 1. Global Gateway Middleware Pipeline
	// =========================================================================

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(appmiddleware.StructuredLogger(cfg.Logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(60 * time.Second))

	// 🛡️ Limit all incoming JSON requests to 1 Megabyte max (OOM Protection)
	r.Use(appmiddleware.MaxBytes(1_048_576))

	// 🛡️ In-memory token bucket rate limiting
	r.Use(appmiddleware.NewRateLimiter().Handler)

	// Strict CORS Configuration
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// =========================================================================
	// 2. API Routing Tree
	// =========================================================================

	r.Route("/api", func(r chi.Router) {

		// ---------------------------------------------------------------------
		// Portal Credentials
		// ---------------------------------------------------------------------
		r.Route("/credentials", func(r chi.Router) {
			r.Get("/", cfg.CredentialHandler.List)
			r.Post("/", cfg.CredentialHandler.Create)
			r.Get("/search", cfg.CredentialHandler.Search)
			r.Get("/cnpj/{cnpj}", cfg.CredentialHandler.GetByCNPJ)

			// Distribution endpoints. The consumer identifier must map to a
			// valid registered key before any payload is produced.
			r.Get("/encrypted/{consumerIdentifier}", cfg.CredentialHandler.ListEncrypted)
			r.Post("/encrypt-password/{consumerIdentifier}", cfg.CredentialHandler.EncryptPassword)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", cfg.CredentialHandler.GetByID)
				r.Put("/", cfg.CredentialHandler.Update)
				r.Delete("/", cfg.CredentialHandler.Delete)
				r.Post("/verify-password", cfg.CredentialHandler.VerifyPassword)
				r.Get("/encrypted/{consumerIdentifier}", cfg.CredentialHandler.GetEncrypted)
			})
		})

		// ---------------------------------------------------------------------
		// Consumer Public Key Registry
		// ---------------------------------------------------------------------
		r.Route("/consumer-keys", func(r chi.Router) {
			r.Get("/", cfg.ConsumerKeyHandler.List)
			r.Post("/", cfg.ConsumerKeyHandler.Register)
			r.Get("/valid", cfg.ConsumerKeyHandler.ListValid)

			// Robot-facing projection; authorized by the
			// X-Consumer-Identifier header, not a path segment.
			r.Get("/credentials", cfg.CredentialHandler.BasicCredentials)

			r.Route("/consumer/{consumerIdentifier}", func(r chi.Router) {
				r.Get("/", cfg.ConsumerKeyHandler.GetByIdentifier)
				r.Delete("/", cfg.ConsumerKeyHandler.DeactivateByIdentifier)
				r.Get("/valid", cfg.ConsumerKeyHandler.HasValidKey)
			})

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", cfg.ConsumerKeyHandler.GetByID)
				r.Put("/", cfg.ConsumerKeyHandler.Update)
				r.Delete("/", cfg.ConsumerKeyHandler.Deactivate)
			})
		})
	})

	r.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("pong"))
	})

	return r
}
