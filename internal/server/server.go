package server

import (
	"log"

	"ai-notetaking-editor/internal/config"
	"ai-notetaking-editor/internal/controller"
	"ai-notetaking-editor/internal/pkg/serverutils"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
)

// Server is the development backend the HTTP gateway client talks to.
type Server struct {
	app *fiber.App
	cfg *config.Config
}

func New(cfg *config.Config, gatewayController controller.IGatewayController) *Server {
	app := fiber.New(fiber.Config{
		BodyLimit: 10 * 1024 * 1024, // 10MB
	})

	app.Use(cors.New(cors.Config{
		AllowOrigins:  "*",
		AllowHeaders:  "Origin, Content-Type, Accept, Authorization, X-Request-ID",
		AllowMethods:  "GET, POST, PUT, OPTIONS",
		ExposeHeaders: "Content-Length, Content-Type",
	}))

	// OpenTelemetry tracing middleware (traces all HTTP requests)
	app.Use(otelfiber.Middleware())

	app.Use(serverutils.ErrorHandlerMiddleware())

	api := app.Group("/api")
	gatewayController.RegisterRoutes(api, serverutils.NewJwtMiddleware(cfg.MockAPI.JWTSecret))

	return &Server{
		app: app,
		cfg: cfg,
	}
}

func (s *Server) GetApp() *fiber.App {
	return s.app
}

func (s *Server) Run() error {
	log.Printf("Mock gateway is running on http://localhost:%s", s.cfg.MockAPI.Port)
	return s.app.Listen(":" + s.cfg.MockAPI.Port)
}

func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
