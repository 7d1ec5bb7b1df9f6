package controller

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/hlog"

	"personify/pkg/arguments"
	"personify/pkg/logging"
	"personify/pkg/service"
)

// Controller is the HTTP front door. All state is request-independent; the
// services it holds are safe for concurrent use.
type Controller struct {
	args      *arguments.Arguments
	repo      *service.RepositoryService
	storage   *service.StorageService
	recommend *service.RecommendService
	messaging *service.MessagingService
	workflow  *service.WorkflowService
	alert     *service.AlertService

	registry *prometheus.Registry
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

// New is constructor of Controller
func New(args *arguments.Arguments) (*Controller, error) {
	repo, err := args.RepositoryService()
	if err != nil {
		return nil, err
	}
	storage, err := args.StorageService()
	if err != nil {
		return nil, err
	}
	recommend, err := args.RecommendService()
	if err != nil {
		return nil, err
	}
	messaging, err := args.MessagingService()
	if err != nil {
		return nil, err
	}
	workflow, err := args.WorkflowService()
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "personify_http_requests_total",
		Help: "HTTP requests by method, route and status code.",
	}, []string{"method", "route", "status"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "personify_http_request_duration_seconds",
		Help:    "HTTP request latency by route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})
	registry.MustRegister(requests, latency)

	return &Controller{
		args:      args,
		repo:      repo,
		storage:   storage,
		recommend: recommend,
		messaging: messaging,
		workflow:  workflow,
		alert:     args.AlertService(),
		registry:  registry,
		requests:  requests,
		latency:   latency,
	}, nil
}

// Router builds the HTTP handler tree.
func (x *Controller) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", headerAPIKey, headerTenantID},
		MaxAge:         300,
	}))
	r.Use(hlog.NewHandler(logging.Logger))
	r.Use(hlog.RequestIDHandler("request_id", "X-Request-Id"))
	r.Use(hlog.AccessHandler(func(req *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(req).Info().
			Str("method", req.Method).
			Str("path", req.URL.Path).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("request")
	}))
	r.Use(x.measure)

	r.Get("/health", x.handleHealth)
	r.Method("GET", "/internal/metrics", promhttp.HandlerFor(x.registry, promhttp.HandlerOpts{}))

	r.Group(func(r chi.Router) {
		r.Use(x.authenticate)

		r.Post("/upload", x.handleUpload)
		r.Post("/train", x.handleTrain)
		r.Get("/recommendations", x.handleRecommendations)
		r.Post("/campaign", x.handleCampaign)
		r.Get("/status", x.handleStatus)
		r.Get("/metrics", x.handleMetrics)

		r.Put("/profiles/{user_id}", x.handlePutProfile)
		r.Get("/profiles/{user_id}", x.handleGetProfile)
		r.Patch("/profiles/{user_id}", x.handlePatchProfile)
		r.Get("/profiles", x.handleListProfiles)

		r.Post("/events", x.handleTrackEvent)
	})

	return r
}
