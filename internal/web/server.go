// Package web serves the read-only HTTP surface: health, metrics, and
// the consolidated event listing the frontend renders.
package web

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"techcal/internal/model"
	"techcal/internal/store"
)

const dateLayout = "2006-01-02"

// defaultRangeDays bounds /api/events when the caller omits ?to=.
const defaultRangeDays = 60

// RunReporter reports the most recent pipeline run. Satisfied by
// pipeline.Pipeline.
type RunReporter interface {
	LastSummary() *model.RunSummary
}

// Server exposes the read-only API over a gin engine.
type Server struct {
	store  store.EventStore
	pipe   RunReporter
	loc    *time.Location
	log    *logrus.Entry
	engine *gin.Engine
}

// NewServer wires routes onto a fresh gin engine. gatherer may be nil
// to disable the /metrics endpoint.
func NewServer(st store.EventStore, pipe RunReporter, loc *time.Location, gatherer prometheus.Gatherer, log *logrus.Entry) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		store:  st,
		pipe:   pipe,
		loc:    loc,
		log:    log,
		engine: gin.New(),
	}
	s.engine.Use(gin.Recovery(), s.requestLogger())
	s.registerRoutes(gatherer)
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.WithField("listen", "http://"+addr).Info("starting HTTP server")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Server) registerRoutes(gatherer prometheus.Gatherer) {
	s.engine.GET("/healthz", s.handleHealth)
	if gatherer != nil {
		s.engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	api := s.engine.Group("/api")
	api.GET("/events", s.handleEvents)
	api.GET("/summary", s.handleSummary)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// handleEvents lists active events in an inclusive date range. Defaults
// to [today, today+60d] in the configured zone.
func (s *Server) handleEvents(c *gin.Context) {
	today := time.Now().In(s.loc)

	from := today.Format(dateLayout)
	to := today.AddDate(0, 0, defaultRangeDays).Format(dateLayout)
	if v := c.Query("from"); v != "" {
		from = v
	}
	if v := c.Query("to"); v != "" {
		to = v
	}
	for _, d := range []string{from, to} {
		if _, err := time.Parse(dateLayout, d); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "dates must be YYYY-MM-DD"})
			return
		}
	}
	if from > to {
		c.JSON(http.StatusBadRequest, gin.H{"error": "from is after to"})
		return
	}

	events, err := s.store.QueryRange(c.Request.Context(), from, to)
	if err != nil {
		s.log.WithError(err).Error("event range query failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"from":   from,
		"to":     to,
		"count":  len(events),
		"events": events,
	})
}

// handleSummary reports the most recent pipeline run, or 404 before the
// first run completes.
func (s *Server) handleSummary(c *gin.Context) {
	sum := s.pipe.LastSummary()
	if sum == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no completed run yet"})
		return
	}
	c.JSON(http.StatusOK, sum)
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.WithFields(logrus.Fields{
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"status":  c.Writer.Status(),
			"elapsed": time.Since(start).String(),
		}).Debug("http request")
	}
}
