// Package router provides HTTP routing, middleware configuration, and server setup for the web application
package router

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"log"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/compress"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/helmet"
	"github.com/gofiber/fiber/v3/middleware/limiter"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/gofiber/fiber/v3/middleware/requestid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
	"github.com/zapflowbr/zapflow/app/dto"
	"github.com/zapflowbr/zapflow/app/handlers"
	"github.com/zapflowbr/zapflow/app/middleware"
	"github.com/zapflowbr/zapflow/utils"
)

// Router interface for HTTP routing
type Router interface {
	SetupRoutes()
	Start(address string) error
	GetApp() *fiber.App
}

// FiberRouter implements Router using Fiber v3
type FiberRouter struct {
	app             *fiber.App
	authMiddleware  *middleware.AuthMiddleware
	campaignHandler handlers.CampaignHandlerInterface
	publicHandler   handlers.PublicHandlerInterface
	contactHandler  handlers.ContactHandlerInterface
	adminHandler    handlers.AdminHandlerInterface
	allowedOrigins  []string
}

// NewFiberRouter creates a new Fiber router
func NewFiberRouter(
	authMiddleware *middleware.AuthMiddleware,
	campaignHandler handlers.CampaignHandlerInterface,
	publicHandler handlers.PublicHandlerInterface,
	contactHandler handlers.ContactHandlerInterface,
	adminHandler handlers.AdminHandlerInterface,
	allowedOrigins []string,
) Router {
	app := fiber.New(fiber.Config{
		AppName:      "ZapFlow API",
		ServerHeader: "ZapFlow",
		ErrorHandler: errorHandler,
		BodyLimit:    16 * 1024 * 1024, // uploads of contact spreadsheets
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
		JSONEncoder:  json.Marshal,
		JSONDecoder:  json.Unmarshal,
	})

	return &FiberRouter{
		app:             app,
		authMiddleware:  authMiddleware,
		campaignHandler: campaignHandler,
		publicHandler:   publicHandler,
		contactHandler:  contactHandler,
		adminHandler:    adminHandler,
		allowedOrigins:  allowedOrigins,
	}
}

// SetupRoutes configures all application routes
func (r *FiberRouter) SetupRoutes() {
	log.Println("Setting up routes...")

	// Global middleware
	r.setupMiddleware()

	// Health check and metrics (no auth, no rate limiting)
	r.app.Get("/healthz", r.healthCheck)
	r.app.Get("/metrics", metricsHandler())

	// API routes
	api := r.app.Group("/api/v1")
	api.Get("/health", r.healthCheck)

	// Apply general rate limiting to all API routes
	api.Use(limiter.New(limiter.Config{
		Max:        2000,            // Maximum 2000 requests
		Expiration: 1 * time.Minute, // Per minute
		KeyGenerator: func(c fiber.Ctx) string {
			return c.IP() // Rate limit by IP
		},
		LimitReached: func(c fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(dto.APIResponse{
				Success: false,
				Message: "Too many requests. Please try again later.",
				Error: dto.ErrorDetail{
					Code: "RATE_LIMIT_EXCEEDED",
				},
			})
		},
		Next: func(c fiber.Ctx) bool {
			// Skip rate limiting for health checks
			return c.Path() == "/api/v1/health"
		},
	}))

	// All business endpoints require authentication
	api.Use(r.authMiddleware.Authenticate())

	// Campaign endpoints
	campaigns := api.Group("/campaigns")
	campaigns.Post("/", r.campaignHandler.CreateCampaign)
	campaigns.Get("/", r.campaignHandler.ListCampaigns)
	campaigns.Get("/:uuid", r.campaignHandler.GetCampaign)
	campaigns.Post("/:uuid/cancel", r.campaignHandler.CancelCampaign)
	campaigns.Post("/:uuid/pause", r.campaignHandler.PauseCampaign)
	campaigns.Post("/:uuid/resume", r.campaignHandler.ResumeCampaign)
	campaigns.Get("/:uuid/messages", r.campaignHandler.ListCampaignMessages)

	// Public (audience) endpoints
	publics := api.Group("/publics")
	publics.Post("/labels", r.publicHandler.CreateLabelPublic)
	publics.Post("/simplified", r.publicHandler.CreateSimplifiedPublic)
	publics.Post("/custom", r.publicHandler.CreateCustomPublic)
	publics.Get("/", r.publicHandler.ListPublics)
	publics.Get("/:uuid", r.publicHandler.GetPublic)
	publics.Post("/:uuid/cancel", r.publicHandler.CancelPublic)
	publics.Get("/:uuid/recipients", r.publicHandler.ListRecipients)

	// Contact endpoints
	contacts := api.Group("/contacts")
	contacts.Get("/", r.contactHandler.ListContacts)
	contacts.Get("/export", r.contactHandler.ExportContacts)
	contacts.Post("/import", r.contactHandler.ImportContacts)
	contacts.Post("/import/test", r.contactHandler.ImportContactsDryRun)
	contacts.Delete("/:id", r.contactHandler.DeleteContact)

	// Number endpoints
	api.Get("/numbers", r.contactHandler.ListNumbers)

	// Operational endpoints
	admin := api.Group("/admin")
	admin.Get("/queues/:queue/dead-letters", r.adminHandler.ListDeadLetters)

	// Not found handler
	r.app.Use(r.notFoundHandler)

	log.Println("Routes configured successfully")
}

// setupMiddleware configures global middleware
func (r *FiberRouter) setupMiddleware() {
	// Request ID middleware - must be first
	r.app.Use(requestid.New(requestid.Config{
		Header: "X-Request-ID",
		Generator: func() string {
			return generateRequestID()
		},
	}))

	// Security headers middleware
	r.app.Use(helmet.New(helmet.Config{
		XSSProtection:         "1; mode=block",
		ContentTypeNosniff:    "nosniff",
		XFrameOptions:         "DENY",
		HSTSMaxAge:            31536000, // 1 year
		ReferrerPolicy:        "strict-origin-when-cross-origin",
		XDNSPrefetchControl:   "off",
		XDownloadOptions:      "noopen",
		XPermittedCrossDomain: "none",
	}))

	// CORS middleware
	r.app.Use(cors.New(cors.Config{
		AllowOrigins: r.allowedOrigins,
		AllowMethods: []string{
			"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS",
		},
		AllowHeaders: []string{
			"Origin",
			"Content-Type",
			"Accept",
			"Authorization",
			"X-Requested-With",
			"X-Request-ID",
			"Cache-Control",
		},
		ExposeHeaders: []string{
			"X-Request-ID",
			"Content-Disposition",
		},
		AllowCredentials: true,
		MaxAge:           utils.CORSMaxAge,
	}))

	// Compression middleware for performance
	r.app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))

	// Prometheus request metrics
	r.app.Use(middleware.Metrics())

	// Structured request logging
	r.app.Use(logger.New(logger.Config{
		Format:     `{"time":"${time}","pid":"${pid}","request_id":"${locals:requestid}","level":"info","method":"${method}","path":"${path}","protocol":"${protocol}","ip":"${ip}","user_agent":"${ua}","status":${status},"latency":"${latency}","bytes_in":${bytesReceived},"bytes_out":${bytesSent},"referer":"${referer}"}` + "\n",
		TimeFormat: time.RFC3339,
		TimeZone:   "UTC",
		Next: func(c fiber.Ctx) bool {
			// Skip logging for health checks and metrics scrapes
			return c.Path() == "/healthz" || c.Path() == "/metrics" || c.Path() == "/api/v1/health"
		},
	}))

	// Recovery middleware with custom error handling
	r.app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
		StackTraceHandler: func(c fiber.Ctx, e interface{}) {
			// Log panic with request context
			log.Printf(`{"time":"%s","level":"error","request_id":"%s","event":"panic","error":"%v","path":"%s","method":"%s","ip":"%s"}`,
				utils.UTCNow().Format(time.RFC3339),
				c.Locals("requestid"),
				e,
				c.Path(),
				c.Method(),
				c.IP(),
			)
		},
	}))
}

// Start starts the HTTP server
func (r *FiberRouter) Start(address string) error {
	log.Printf("Starting server on %s", address)
	return r.app.Listen(address)
}

// GetApp returns the Fiber app instance
func (r *FiberRouter) GetApp() *fiber.App {
	return r.app
}

// Health check endpoint
func (r *FiberRouter) healthCheck(c fiber.Ctx) error {
	return c.JSON(dto.APIResponse{
		Success: true,
		Message: "Service is healthy",
		Data: fiber.Map{
			"status":    "ok",
			"timestamp": utils.UTCNow().Unix(),
			"version":   "1.0.0",
			"service":   "zapflow-api",
		},
	})
}

// metricsHandler exposes the Prometheus registry through Fiber
func metricsHandler() fiber.Handler {
	h := fasthttpadaptor.NewFastHTTPHandler(promhttp.Handler())
	return func(c fiber.Ctx) error {
		h(c.RequestCtx())
		return nil
	}
}

// Not found handler
func (r *FiberRouter) notFoundHandler(c fiber.Ctx) error {
	requestID := c.Locals("requestid")

	return c.Status(fiber.StatusNotFound).JSON(dto.APIResponse{
		Success: false,
		Message: "The requested resource was not found",
		Error: dto.ErrorDetail{
			Code: "NOT_FOUND",
			Details: fiber.Map{
				"path":       c.Path(),
				"method":     c.Method(),
				"request_id": requestID,
			},
		},
	})
}

// Global error handler
func errorHandler(c fiber.Ctx, err error) error {
	// Default error code
	code := fiber.StatusInternalServerError

	// Retrieve the custom status code if it's a fiber.*Error
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
	}

	// Log the error
	log.Printf("Error %d: %v", code, err)

	// Get RequestID for tracing
	requestID := c.Locals("requestid")

	// Return JSON error response
	return c.Status(code).JSON(dto.APIResponse{
		Success: false,
		Message: "An internal server error occurred",
		Error: dto.ErrorDetail{
			Code: "INTERNAL_ERROR",
			Details: fiber.Map{
				"timestamp":  utils.UTCNow().Unix(),
				"request_id": requestID,
			},
		},
	})
}

// generateRequestID creates a unique request ID
func generateRequestID() string {
	bytes := make([]byte, 8)
	rand.Read(bytes)
	return hex.EncodeToString(bytes)
}
