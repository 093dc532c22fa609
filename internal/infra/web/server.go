package web

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"hotorbot/internal/domain/ports/repository"
	"hotorbot/internal/usecase"
)

// Pinger is anything the health check can probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Server struct {
	interview usecase.InterviewUseCase
	queue     usecase.Enqueuer
	jobs      repository.JobRepository
	pingers   []Pinger
	adminKey  string
	audio     *http.Client
	log       *zerolog.Logger
}

func NewServer(
	interview usecase.InterviewUseCase,
	queue usecase.Enqueuer,
	jobs repository.JobRepository,
	pingers []Pinger,
	adminKey string,
	logger *zerolog.Logger,
) *Server {
	l := logger.With().Str("component", "WebServer").Logger()
	return &Server{
		interview: interview,
		queue:     queue,
		jobs:      jobs,
		pingers:   pingers,
		adminKey:  adminKey,
		audio:     &http.Client{Timeout: 60 * time.Second},
		log:       &l,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(TraceID)
	r.Use(RequestLog(s.log))
	r.Use(Recover(s.log))

	r.Get("/healthz", s.handleHealthz)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Post("/interview/turn", s.handleInterviewTurn)
		r.Group(func(r chi.Router) {
			r.Use(s.adminOnly)
			r.Post("/jobs", s.handleEnqueueJob)
			r.Get("/jobs/{jobID}", s.handleGetJob)
		})
	})
	return r
}
