// Package api serves the read side over HTTP.
//
// Routes:
//
//	GET /health          → store row counts and last run state
//	GET /vacancies       → joined vacancies, newest first (?region=&limit=&offset=)
//	GET /vacancies/:id   → one stored vacancy
//	GET /runs/last       → last tracked pipeline run
package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ned0ra/diplom/internal/model"
	"github.com/ned0ra/diplom/internal/runstate"
	"github.com/ned0ra/diplom/internal/store"
)

const version = "1.0.0"

// MaxListLimit caps the page size of GET /vacancies.
const MaxListLimit = 1000

// Server is the HTTP read API.
type Server struct {
	router  *gin.Engine
	srv     *http.Server
	reader  store.Reader
	tracker *runstate.Tracker
	log     *zap.Logger
}

// NewServer builds the router. tracker may be nil when no runs are tracked.
func NewServer(addr string, reader store.Reader, tracker *runstate.Tracker, log *zap.Logger) (*Server, error) {
	if log == nil {
		log = zap.NewNop()
	}
	router := gin.New()
	if err := router.SetTrustedProxies(nil); err != nil {
		return nil, err
	}
	router.Use(gin.Recovery(), requestLogger(log))

	s := &Server{
		router:  router,
		reader:  reader,
		tracker: tracker,
		log:     log,
	}
	s.routes()
	s.srv = &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	return s, nil
}

// Handler returns the router, for tests.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes() {
	s.router.GET("/health", s.health)
	s.router.GET("/vacancies", s.listVacancies)
	s.router.GET("/vacancies/:id", s.getVacancy)
	s.router.GET("/runs/last", s.lastRun)
}

// Run listens until Shutdown is called.
func (s *Server) Run() error {
	s.log.Info("http listening", zap.String("addr", s.srv.Addr))
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the listener and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) health(c *gin.Context) {
	counts, err := s.reader.Counts(c.Request.Context())
	if err != nil {
		s.log.Error("health: counts", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": "store unreachable"})
		return
	}
	body := gin.H{
		"status":  "ok",
		"service": "vacancy-sync",
		"version": version,
		"counts":  counts,
	}
	if run, ok := s.lastTracked(); ok {
		body["last_run"] = gin.H{"id": run.ID, "state": run.State}
	}
	c.JSON(http.StatusOK, body)
}

func (s *Server) listVacancies(c *gin.Context) {
	limit, err := intQuery(c, "limit")
	if err != nil || limit < 0 || limit > MaxListLimit {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be an integer between 0 and " + strconv.Itoa(MaxListLimit)})
		return
	}
	offset, err := intQuery(c, "offset")
	if err != nil || offset < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "offset must be a non-negative integer"})
		return
	}

	views, err := s.reader.ListVacancies(c.Request.Context(), store.ListOptions{
		RegionCode: c.Query("region"),
		Limit:      limit,
		Offset:     offset,
	})
	if err != nil {
		s.log.Error("list vacancies", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
		return
	}

	out := make([]model.VacancyView, 0, len(views))
	for _, v := range views {
		out = append(out, v.Normalized())
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) getVacancy(c *gin.Context) {
	v, err := s.reader.GetVacancy(c.Request.Context(), c.Param("id"))
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "vacancy not found"})
		return
	}
	if err != nil {
		s.log.Error("get vacancy", zap.String("id", c.Param("id")), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
		return
	}
	c.JSON(http.StatusOK, v)
}

func (s *Server) lastRun(c *gin.Context) {
	run, ok := s.lastTracked()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no run yet"})
		return
	}
	c.JSON(http.StatusOK, run)
}

func (s *Server) lastTracked() (runstate.Run, bool) {
	if s.tracker == nil {
		return runstate.Run{}, false
	}
	return s.tracker.Last()
}

func intQuery(c *gin.Context, key string) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}

func requestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("took", time.Since(start)),
		)
	}
}
