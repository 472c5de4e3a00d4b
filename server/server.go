package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"nlpservice/analyzer"
	"nlpservice/broker"
	"nlpservice/config"
	"nlpservice/metrics"
	"nlpservice/queue"
	"nlpservice/store"
	"nlpservice/worker"
)

// Deps are the collaborators the HTTP layer needs.
type Deps struct {
	Config   config.Config
	Log      *slog.Logger
	Broker   *broker.Client
	Queue    *queue.TaskQueue
	Results  *queue.ResultsPublisher
	Store    *store.JobStore
	Analyzer analyzer.Analyzer
	Worker   *worker.Processor
	Metrics  *metrics.Metrics
	Registry *prometheus.Registry
	Features analyzer.Features
}

// Server is the HTTP surface of the service: synchronous processing, job
// submission and status, health, stats, admin, Prometheus metrics, and
// the WebSocket update feed.
type Server struct {
	cfg      config.Config
	log      *slog.Logger
	echo     *echo.Echo
	broker   *broker.Client
	queue    *queue.TaskQueue
	results  *queue.ResultsPublisher
	store    *store.JobStore
	analyzer analyzer.Analyzer
	worker   *worker.Processor
	metrics  *metrics.Metrics
	feats    analyzer.Features
	ws       *WSManager
	upgrader websocket.Upgrader
	startAt  time.Time
}

// New assembles the server and its routes.
func New(deps Deps) *Server {
	s := &Server{
		cfg:      deps.Config,
		log:      deps.Log,
		broker:   deps.Broker,
		queue:    deps.Queue,
		results:  deps.Results,
		store:    deps.Store,
		analyzer: deps.Analyzer,
		worker:   deps.Worker,
		metrics:  deps.Metrics,
		feats:    deps.Features,
		ws:       NewWSManager(deps.Log),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		startAt: time.Now(),
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: deps.Config.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderContentType},
	}))
	e.Use(s.requestLogger())

	e.GET("/", s.handleRoot)
	e.GET("/health", s.handleHealth)
	e.GET("/ws", s.handleWebSocket)
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{})))

	api := e.Group("/api/v1")
	api.POST("/process", s.handleProcess)
	api.POST("/process/batch", s.handleProcessBatch)
	api.POST("/jobs/submit", s.handleSubmitJob)
	api.GET("/jobs/:job_id", s.handleJobStatus)
	api.GET("/stats", s.handleStats)
	api.POST("/admin/clear-queue", s.handleClearQueue)
	api.POST("/documents/extract", s.handleExtractDocument)

	s.echo = e
	return s
}

// Start runs the WebSocket manager, the update pump, and the HTTP
// listener. It blocks until the listener stops.
func (s *Server) Start(addr string) error {
	s.ws.Start()
	go s.pumpUpdates()

	s.log.Info("http server listening", "addr", addr)
	return s.echo.Start(addr)
}

// Shutdown stops the HTTP listener gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// pumpUpdates forwards worker status notifications to the WebSocket feed.
func (s *Server) pumpUpdates() {
	for update := range s.worker.Updates() {
		s.ws.BroadcastJobUpdate(update)
	}
}

func (s *Server) requestLogger() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod: true,
		LogURI:    true,
		LogStatus: true,
		LogError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []any{"method", v.Method, "uri", v.URI, "status", v.Status}
			if v.Error != nil {
				attrs = append(attrs, "error", v.Error)
			}
			s.log.Info("request", attrs...)
			return nil
		},
	})
}

// handleWebSocket upgrades the connection and subscribes it to the job
// update feed.
func (s *Server) handleWebSocket(c echo.Context) error {
	conn, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		s.log.Error("websocket upgrade failed", "error", err)
		return nil
	}

	s.ws.RegisterClient(conn)

	// Reads are only consumed to detect disconnects.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				s.ws.UnregisterClient(conn)
				return
			}
		}
	}()

	return nil
}
