// Package api is the HTTP backend that REST gateways talk to.
package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/tchayre/logsti/internal/charts"
	"github.com/tchayre/logsti/internal/export"
	"github.com/tchayre/logsti/internal/gateway"
	"github.com/tchayre/logsti/internal/middleware"
	"github.com/tchayre/logsti/internal/models"
	"github.com/tchayre/logsti/internal/realtime"
	"github.com/tchayre/logsti/internal/version"
)

// Server serves the resources of a gateway over HTTP. Writes go through
// the gateway, so every successful write is announced on its broker.
type Server struct {
	gw          gateway.Gateway
	hub         *realtime.Hub
	exporter    *export.Exporter
	backup      *export.Backup
	chartGauges *charts.Metrics
	registry    *prometheus.Registry
	metricsPath string
	corsOrigins []string
	loc         *time.Location
	log         zerolog.Logger
}

// Option configures a Server.
type Option func(*Server)

func WithLogger(log zerolog.Logger) Option {
	return func(s *Server) { s.log = log }
}

// WithHub serves the realtime websocket at /api/realtime.
func WithHub(hub *realtime.Hub) Option {
	return func(s *Server) { s.hub = hub }
}

// WithBackup enables the /api/backups endpoints.
func WithBackup(b *export.Backup) Option {
	return func(s *Server) { s.backup = b }
}

// WithLocation sets the zone of export ranges, backups and chart months.
func WithLocation(loc *time.Location) Option {
	return func(s *Server) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// WithRegistry collects metrics on reg instead of a private registry.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(s *Server) { s.registry = reg }
}

// WithMetricsPath serves metrics at path; empty disables the endpoint.
func WithMetricsPath(path string) Option {
	return func(s *Server) { s.metricsPath = path }
}

func WithCORSOrigins(origins []string) Option {
	return func(s *Server) { s.corsOrigins = origins }
}

// NewServer creates a server over gw.
func NewServer(gw gateway.Gateway, opts ...Option) *Server {
	s := &Server{
		gw:          gw,
		metricsPath: "/metrics",
		corsOrigins: []string{"*"},
		loc:         time.UTC,
		log:         zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.registry == nil {
		s.registry = prometheus.NewRegistry()
	}
	s.exporter = export.NewExporter("", export.WithLocation(s.loc), export.WithLogger(s.log))
	return s
}

// Router builds the gin engine. Call it once per server.
func (s *Server) Router() *gin.Engine {
	httpMetrics := middleware.NewHTTPMetrics(s.registry)
	s.chartGauges = charts.NewMetrics(s.registry)

	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestID(), middleware.Logger(s.log), httpMetrics.Handler(), middleware.CORS(s.corsOrigins))

	api := r.Group("/api")
	api.GET("/health", s.handleHealth)
	api.GET("/version", func(c *gin.Context) { c.JSON(200, version.GetInfo()) })

	tickets := api.Group("/" + models.TicketsTable)
	tickets.GET("", s.handleListTickets)
	tickets.POST("", s.handleCreateTicket)
	tickets.PUT("/:id", s.handleUpdateTicket)
	tickets.PATCH("/:id", s.handleUpdateTicket)
	tickets.DELETE("/:id", s.handleDeleteTicket)

	for _, kind := range models.ReferenceKinds {
		h := referenceHandlers{s: s, kind: kind}
		g := api.Group("/" + kind.Table())
		g.GET("", h.list)
		g.POST("", h.create)
		g.PUT("/:id", h.update)
		g.PATCH("/:id", h.update)
		g.DELETE("/:id", h.delete)
	}

	api.GET("/export", s.handleExport)
	api.GET("/charts", s.handleCharts)
	api.GET("/backups", s.handleListBackups)
	api.POST("/backups/:year/:month", s.handleCreateBackup)
	api.GET("/backups/:year/:month", s.handleGetBackup)

	if s.hub != nil {
		api.GET("/realtime", s.hub.HandleWebSocket)
	}
	if s.metricsPath != "" {
		r.GET(s.metricsPath, gin.WrapH(promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})))
	}
	return r
}

// Registry is where the server's collectors are registered.
func (s *Server) Registry() *prometheus.Registry { return s.registry }
