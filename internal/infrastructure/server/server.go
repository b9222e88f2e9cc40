package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	httpHandlers "github.com/studyplanner/core/internal/adapters/http"
	"github.com/studyplanner/core/internal/adapters/repository"
	"github.com/studyplanner/core/internal/application/services"
	"github.com/studyplanner/core/internal/infrastructure/config"
	"github.com/studyplanner/core/internal/infrastructure/datastore"
	"github.com/studyplanner/core/internal/infrastructure/logger"
	"github.com/studyplanner/core/internal/infrastructure/validation"
	"github.com/studyplanner/core/internal/ports"
)

const timetableFeedPath = "/api/timetable/ws"

// Server represents the HTTP server
type Server struct {
	echo     *echo.Echo
	config   *config.Config
	logger   *logger.Logger
	store    *datastore.Store
	hub      *httpHandlers.Hub
	registry *prometheus.Registry
	started  time.Time
}

// Options carries the collaborators the server is built from
type Options struct {
	// Registry receives the HTTP metrics. When nil and metrics are enabled a new one is created.
	Registry *prometheus.Registry
	Clock    ports.Clock
	IDs      ports.IDGenerator
}

// New creates a new server instance wired to store
func New(cfg *config.Config, store *datastore.Store, appLogger *logger.Logger, opts Options) (*Server, error) {
	e := echo.New()

	v, err := validation.New()
	if err != nil {
		return nil, fmt.Errorf("failed to register validations: %w", err)
	}
	e.Validator = v

	// Configure Echo
	e.HideBanner = true
	e.HidePort = true

	// Custom error handler
	e.HTTPErrorHandler = customErrorHandler(appLogger)

	clock := opts.Clock
	if clock == nil {
		clock = services.RealClock{}
	}
	ids := opts.IDs
	if ids == nil {
		ids = services.UUIDGenerator{}
	}

	hub := httpHandlers.NewHub(websocketOrigins(cfg.Security.CORSAllowedOrigins), appLogger)

	// Initialize repositories
	taskRepo := repository.NewTaskRepository(store, appLogger)
	subjectRepo := repository.NewSubjectRepository(store, appLogger)
	eventRepo := repository.NewEventRepository(store, appLogger)
	assessmentRepo := repository.NewAssessmentRepository(store, appLogger)
	chatRepo := repository.NewChatRepository(store, appLogger)
	timetableRepo := repository.NewTimetableRepository(store, appLogger)

	// Initialize services
	taskService := services.NewTaskService(taskRepo, clock, ids, appLogger)
	subjectService := services.NewSubjectService(subjectRepo, clock, ids, appLogger)
	eventService := services.NewEventService(eventRepo, clock, ids, appLogger)
	assessmentService := services.NewAssessmentService(assessmentRepo, clock, ids, appLogger)
	chatService := services.NewChatService(chatRepo, taskService, subjectService, eventService, v, clock, ids, appLogger)
	timetableService := services.NewTimetableService(timetableRepo, hub, clock, ids, appLogger)
	studyPlanService := services.NewStudyPlanService(taskRepo, cfg.Planner, clock, appLogger)

	server := &Server{
		echo:     e,
		config:   cfg,
		logger:   appLogger,
		store:    store,
		hub:      hub,
		registry: opts.Registry,
		started:  clock.Now(),
	}

	hub.Start()

	// Setup middleware
	server.setupMiddleware()

	// Setup metrics
	if cfg.Metrics.Enabled {
		server.setupMetrics()
	}

	// Setup routes
	server.setupRoutes(routeHandlers{
		tasks:       httpHandlers.NewTaskHandler(taskService, appLogger),
		subjects:    httpHandlers.NewSubjectHandler(subjectService, appLogger),
		events:      httpHandlers.NewEventHandler(eventService, appLogger),
		assessments: httpHandlers.NewAssessmentHandler(assessmentService, appLogger),
		chat:        httpHandlers.NewChatHandler(chatService, appLogger),
		timetable:   httpHandlers.NewTimetableHandler(timetableService, appLogger),
		studyPlan:   httpHandlers.NewStudyPlanHandler(studyPlanService, appLogger),
	})

	return server, nil
}

type routeHandlers struct {
	tasks       *httpHandlers.TaskHandler
	subjects    *httpHandlers.SubjectHandler
	events      *httpHandlers.EventHandler
	assessments *httpHandlers.AssessmentHandler
	chat        *httpHandlers.ChatHandler
	timetable   *httpHandlers.TimetableHandler
	studyPlan   *httpHandlers.StudyPlanHandler
}

// setupMiddleware configures middleware
func (s *Server) setupMiddleware() {
	// Recovery middleware
	s.echo.Use(middleware.Recover())

	// Request ID middleware
	s.echo.Use(middleware.RequestID())

	// Logger middleware
	s.echo.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:       true,
		LogStatus:    true,
		LogMethod:    true,
		LogLatency:   true,
		LogError:     true,
		LogRemoteIP:  true,
		LogUserAgent: true,
		LogRequestID: true,
		LogValuesFunc: func(c echo.Context, values middleware.RequestLoggerValues) error {
			log := s.logger.WithRequestID(values.RequestID)
			if values.Error != nil {
				log.WithError(values.Error).Warnw("HTTP request failed", "method", values.Method, "uri", values.URI, "status", values.Status)
				return nil
			}
			log.LogHTTPRequest(values.Method, values.URI, values.UserAgent, values.RemoteIP, values.Status,
				float64(values.Latency.Nanoseconds())/1000000)
			return nil
		},
	}))

	// CORS middleware
	s.echo.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: splitOrigins(s.config.Security.CORSAllowedOrigins),
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
		AllowMethods: []string{echo.GET, echo.HEAD, echo.PUT, echo.PATCH, echo.POST, echo.DELETE},
	}))

	// Rate limiting middleware
	if s.config.Security.RateLimitRequests > 0 {
		window := s.config.Security.RateLimitWindow
		if window <= 0 {
			window = time.Minute
		}
		perSecond := rate.Limit(float64(s.config.Security.RateLimitRequests) / window.Seconds())
		s.echo.Use(middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
			Store: middleware.NewRateLimiterMemoryStoreWithConfig(
				middleware.RateLimiterMemoryStoreConfig{Rate: perSecond, Burst: s.config.Security.RateLimitRequests, ExpiresIn: window},
			),
			IdentifierExtractor: func(ctx echo.Context) (string, error) {
				return ctx.RealIP(), nil
			},
			ErrorHandler: func(context echo.Context, err error) error {
				return context.JSON(http.StatusForbidden, ports.ErrorResponse{Message: "rate limit exceeded"})
			},
			DenyHandler: func(context echo.Context, identifier string, err error) error {
				return context.JSON(http.StatusTooManyRequests, ports.ErrorResponse{Message: "rate limit exceeded", Retryable: true})
			},
		}))
	}

	// Security headers
	s.echo.Use(middleware.SecureWithConfig(middleware.SecureConfig{
		XSSProtection:      "1; mode=block",
		ContentTypeNosniff: "nosniff",
		XFrameOptions:      "DENY",
		HSTSMaxAge:         31536000,
	}))

	// Body limit
	if s.config.Security.BodyLimit != "" {
		s.echo.Use(middleware.BodyLimit(s.config.Security.BodyLimit))
	}

	// Timeout middleware; the websocket feed is long-lived
	if s.config.Server.RequestTimeout > 0 {
		s.echo.Use(middleware.TimeoutWithConfig(middleware.TimeoutConfig{
			Skipper: func(c echo.Context) bool {
				return c.Request().URL.Path == timetableFeedPath
			},
			ErrorMessage: `{"message":"request timed out","retryable":true}`,
			Timeout:      s.config.Server.RequestTimeout,
		}))
	}
}

// setupRoutes configures all routes
func (s *Server) setupRoutes(h routeHandlers) {
	// Health check routes
	s.echo.GET("/health", s.healthCheck)
	s.echo.GET("/health/detailed", s.detailedHealthCheck)
	s.echo.GET("/ready", s.readinessCheck)

	api := s.echo.Group("/api")
	api.GET("", s.apiIndex)
	api.GET("/health", s.healthCheck)

	taskGroup := api.Group("/tasks")
	taskGroup.GET("", h.tasks.ListTasks)
	taskGroup.POST("", h.tasks.CreateTask)
	taskGroup.GET("/:id", h.tasks.GetTask)
	taskGroup.PUT("/:id", h.tasks.UpdateTask)
	taskGroup.PATCH("/:id", h.tasks.UpdateTask)
	taskGroup.POST("/:id/complete", h.tasks.CompleteTask)
	taskGroup.DELETE("/:id", h.tasks.DeleteTask)

	subjectGroup := api.Group("/subjects")
	subjectGroup.GET("", h.subjects.ListSubjects)
	subjectGroup.POST("", h.subjects.CreateSubject)
	subjectGroup.GET("/:id", h.subjects.GetSubject)
	subjectGroup.PUT("/:id", h.subjects.UpdateSubject)
	subjectGroup.DELETE("/:id", h.subjects.DeleteSubject)

	eventGroup := api.Group("/events")
	eventGroup.GET("", h.events.ListEvents)
	eventGroup.POST("", h.events.CreateEvent)
	eventGroup.GET("/:id", h.events.GetEvent)
	eventGroup.DELETE("/:id", h.events.DeleteEvent)

	assessmentGroup := api.Group("/assessments")
	assessmentGroup.GET("", h.assessments.ListAssessments)
	assessmentGroup.POST("", h.assessments.CreateAssessment)
	assessmentGroup.GET("/:id", h.assessments.GetAssessment)
	assessmentGroup.PUT("/:id", h.assessments.UpdateAssessment)
	assessmentGroup.DELETE("/:id", h.assessments.DeleteAssessment)

	chatGroup := api.Group("/chat")
	chatGroup.POST("/session", h.chat.CreateSession)
	chatGroup.GET("/history/:sessionId", h.chat.GetSession)
	chatGroup.POST("/history/:sessionId/messages", h.chat.AppendMessage)
	chatGroup.DELETE("/history/:sessionId", h.chat.DeleteSession)
	chatGroup.POST("/intents", h.chat.ExecuteIntent)

	timetableGroup := api.Group("/timetable")
	timetableGroup.GET("", h.timetable.GetTimetable)
	timetableGroup.PUT("", h.timetable.SaveTimetable)
	timetableGroup.GET("/ws", s.hub.Handle)

	api.GET("/study-plan", h.studyPlan.GetStudyPlan)
}

// setupMetrics configures Prometheus metrics
func (s *Server) setupMetrics() {
	if s.registry == nil {
		s.registry = prometheus.NewRegistry()
	}

	requestsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	s.registry.MustRegister(requestsTotal, requestDuration)

	s.echo.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)

			status := c.Response().Status
			if he, ok := err.(*echo.HTTPError); ok {
				status = he.Code
			}

			requestsTotal.WithLabelValues(
				c.Request().Method,
				c.Path(),
				fmt.Sprintf("%d", status),
			).Inc()

			requestDuration.WithLabelValues(
				c.Request().Method,
				c.Path(),
			).Observe(time.Since(start).Seconds())

			return err
		}
	})

	metricsHandler := promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})
	s.echo.GET("/metrics", echo.WrapHandler(metricsHandler))
}

// Health check handlers
func (s *Server) healthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) detailedHealthCheck(c echo.Context) error {
	status := "ok"
	checks := make(map[string]interface{})

	if err := s.store.HealthCheck(); err != nil {
		status = "error"
		checks["store"] = map[string]interface{}{
			"status": "error",
			"error":  err.Error(),
		}
	} else {
		checks["store"] = map[string]interface{}{
			"status": "ok",
			"stats":  s.store.Stats(),
		}
	}

	checks["timetable_feed"] = map[string]interface{}{
		"status":  "ok",
		"clients": s.hub.ClientCount(),
	}

	response := map[string]interface{}{
		"status": status,
		"time":   time.Now().UTC().Format(time.RFC3339),
		"uptime": time.Since(s.started).Round(time.Second).String(),
		"checks": checks,
		"version": map[string]string{
			"app": s.config.App.Version,
		},
	}

	if status == "ok" {
		return c.JSON(http.StatusOK, response)
	}
	return c.JSON(http.StatusServiceUnavailable, response)
}

func (s *Server) readinessCheck(c echo.Context) error {
	if err := s.store.HealthCheck(); err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{
			"status": "not_ready",
			"reason": "store_not_ready",
		})
	}

	return c.JSON(http.StatusOK, map[string]string{
		"status": "ready",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) apiIndex(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"name":    s.config.App.Name,
		"version": s.config.App.Version,
		"endpoints": []string{
			"/api/tasks",
			"/api/subjects",
			"/api/events",
			"/api/assessments",
			"/api/chat",
			"/api/timetable",
			"/api/study-plan",
		},
	})
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Hub returns the timetable change feed
func (s *Server) Hub() *httpHandlers.Hub {
	return s.hub
}

// Start starts the HTTP server
func (s *Server) Start() error {
	srv := &http.Server{
		Addr:         s.config.Server.Addr(),
		ReadTimeout:  s.config.Server.ReadTimeout,
		WriteTimeout: s.config.Server.WriteTimeout,
		IdleTimeout:  s.config.Server.IdleTimeout,
	}

	s.logger.Infow("Starting server", "address", srv.Addr, "data_dir", s.store.DataDir())
	return s.echo.StartServer(srv)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server")
	s.hub.Stop()
	return s.echo.Shutdown(ctx)
}

func splitOrigins(raw string) []string {
	var out []string
	for _, o := range strings.Split(raw, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}

// websocketOrigins turns CORS origins into host patterns for the websocket handshake.
func websocketOrigins(raw string) []string {
	var out []string
	for _, o := range splitOrigins(raw) {
		o = strings.TrimPrefix(o, "https://")
		o = strings.TrimPrefix(o, "http://")
		out = append(out, o)
	}
	return out
}
