package router

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"github.com/actuallystonmai/streamfront/internal/handler"
	"github.com/actuallystonmai/streamfront/internal/proxy"
)

type Options struct {
	AllowedOrigins []string
	RequestTimeout time.Duration
}

func Setup(h *handler.Handler, p *proxy.Proxy, opts Options) http.Handler {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 30 * time.Second
	}
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(splitCORS(opts.AllowedOrigins))

	// Edge proxies. The download relay streams, so it has no request timeout.
	r.Route("/api", func(r chi.Router) {
		r.Get("/download", p.Download)
		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(opts.RequestTimeout))
			r.Post("/shorten", p.Shorten)
			r.Get("/video-info", p.VideoInfo)
		})
	})

	// Long-lived viewer socket
	r.Get("/viewers/{contentID}", h.WatchViewers)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(opts.RequestTimeout))

		r.Post("/sessions", h.CreateSession)
		r.Route("/sessions/{sessionID}", func(r chi.Router) {
			r.Get("/lists", h.GetSnapshot)
			r.Post("/playback", h.RecordPlayback)
			r.Route("/lists/{kind}", func(r chi.Router) {
				r.Get("/", h.GetList)
				r.Put("/", h.UpsertEntry)
				r.Delete("/", h.ClearList)
				r.Get("/{type}/{id}", h.GetEntry)
				r.Delete("/{type}/{id}", h.RemoveEntry)
			})
		})

		r.Get("/viewers/{contentID}/count", h.GetViewerCount)
		r.Get("/client-config", h.GetClientConfig)
		r.Get("/health", h.Health)
	})

	return r
}

// splitCORS gives the edge proxies their permissive headers and the session
// API the configured origin policy.
func splitCORS(origins []string) func(http.Handler) http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins:       origins,
		AllowedMethods:       []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:       []string{"*"},
		MaxAge:               600,
		OptionsSuccessStatus: http.StatusOK,
	})
	return func(next http.Handler) http.Handler {
		api := c.Handler(next)
		edge := proxy.CORS(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if strings.HasPrefix(r.URL.Path, "/api/") {
				edge.ServeHTTP(w, r)
				return
			}
			api.ServeHTTP(w, r)
		})
	}
}
