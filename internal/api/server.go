package api

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/BartekS5/dailyetl/internal/etl"
)

// Status exposes what the scheduler knows about its runs.
type Status interface {
	LastRun() *etl.RunReport
	NextRun() time.Time
}

// Server serves health, metrics and the last run report.
type Server struct {
	addr       string
	workflow   string
	status     Status
	gatherer   prometheus.Gatherer
	router     http.Handler
	httpServer *http.Server
}

func NewServer(addr, workflow string, status Status, gatherer prometheus.Gatherer) *Server {
	s := &Server{
		addr:     addr,
		workflow: workflow,
		status:   status,
		gatherer: gatherer,
	}
	s.router = s.setupRouter()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:         s.addr,
		Handler:      s.router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
