// Package backendstub is a development backend for the console. It
// serves the invoke contract over HTTP with YAML files as its database,
// so the console can run end to end without the production fleet
// services.
package backendstub

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/cors"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/fleetdeck/fleetdeck/internal/config"
	"github.com/fleetdeck/fleetdeck/internal/transport"
	"github.com/fleetdeck/fleetdeck/pkg/cerr"
	"github.com/fleetdeck/fleetdeck/pkg/clog"
	"github.com/fleetdeck/fleetdeck/pkg/storage"
)

type Server struct {
	server  *http.Server
	env     *config.Env
	handler *Handler
}

func NewServer(env *config.Env, store storage.Storage) *Server {
	return &Server{
		env:     env,
		handler: NewHandler(store),
	}
}

// ListenAndServe starts the HTTP server. The provided context is the base
// context for all incoming requests, so cancelling it on shutdown also
// cancels in-flight handlers.
func (s *Server) ListenAndServe(ctx context.Context) error {
	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		r.Use(clog.SlogChiMiddleware())
		r.Post("/invoke/{operation}", s.invoke)
		r.NotFound(func(w http.ResponseWriter, req *http.Request) {
			cerr.WriteJSONError(req.Context(), w, cerr.NewError(cerr.NotFound, "not found", nil))
		})
	})

	mux := http.NewServeMux()
	mux.Handle("/health", &healthChecker{})
	mux.Handle("/api/", r)

	addr := net.JoinHostPort(s.env.HTTPHost, s.env.HTTPPort)
	slog.Info("starting stub backend", "addr", addr)

	s.server = &http.Server{
		Addr: addr,
		Handler: h2c.NewHandler(cors.New(cors.Options{
			AllowedOrigins:   []string{"*"},
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders:   []string{"*"},
			AllowCredentials: true,
		}).Handler(s.apiKeyMiddleware(mux)), &http2.Server{}),
		BaseContext: func(_ net.Listener) context.Context { return ctx },
	}

	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Handler exposes the operation handler so background loops like the
// scheduler can share the server's repositories.
func (s *Server) Handler() *Handler {
	return s.handler
}

type healthChecker struct{}

func (hc *healthChecker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (s *Server) apiKeyMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Health stays open; everything else needs the key when one is set.
		if r.URL.Path == "/health" || s.env.APIKey == "" {
			next.ServeHTTP(w, r)
			return
		}
		apiKey := r.Header.Get("X-API-Key")
		if apiKey == "" {
			apiKey = r.Header.Get("Authorization")
			if len(apiKey) > 7 && apiKey[:7] == "Bearer " {
				apiKey = apiKey[7:]
			}
		}
		if apiKey != s.env.APIKey {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// invoke runs one operation and wraps the outcome in the response
// envelope. Domain failures ride inside a success=false envelope; only
// malformed requests get a non-200.
func (s *Server) invoke(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	operation := chi.URLParam(r, "operation")
	clog.AddAttribute(ctx, "operation", operation)

	params, err := io.ReadAll(r.Body)
	if err != nil {
		cerr.WriteJSONError(ctx, w, cerr.Extract(ctx, cerr.NewError(cerr.InvalidArgument, "failed to read request body", err)))
		return
	}

	result, err := s.handler.Invoke(ctx, operation, params)
	if err != nil {
		cErr := cerr.Extract(ctx, err)
		cerr.WriteJSON(ctx, w, transport.Envelope{
			Success: false,
			Error: &transport.APIError{
				Code:    cErr.Code.String(),
				Message: cErr.Msg,
			},
		})
		return
	}

	data, err := json.Marshal(result)
	if err != nil {
		cerr.WriteJSONError(ctx, w, cerr.Extract(ctx, cerr.NewError(cerr.Internal, "encode response", err)))
		return
	}
	cerr.WriteJSON(ctx, w, transport.Envelope{Success: true, Data: data})
}
