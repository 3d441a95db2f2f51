package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"motion/internal/httpapi/handlers"
	"motion/internal/pkg/logger"
	"motion/internal/pkg/middleware"
	"motion/internal/ports"
)

type Deps struct {
	Coordinator  handlers.Coordinator
	Store        ports.ObjectStore
	Gatherer     prometheus.Gatherer
	ExposeStacks bool
	Log          *logger.Logger
}

func NewRouter(d Deps) http.Handler {
	log := d.Log
	if log == nil {
		log = logger.NewDefault()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logging(log))
	r.Use(middleware.Recovery(log))

	h := handlers.New(handlers.Deps{
		Coordinator:  d.Coordinator,
		Store:        d.Store,
		ExposeStacks: d.ExposeStacks,
		Log:          log,
	})

	r.Get("/", h.Status)
	r.Post("/render", h.Render)
	r.Get("/download/{filename}", h.Download)

	if d.Gatherer != nil {
		r.Get("/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}).ServeHTTP)
	}

	return r
}
