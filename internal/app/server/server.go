package server

import (
	"context"
	"errors"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/sifan077/linkbot/internal/http/handler"
	"github.com/sifan077/linkbot/internal/http/middleware"
	httpUtil "github.com/sifan077/linkbot/internal/http/util"
	"go.uber.org/zap"
)

const serviceName = "linkbot"

// Dependencies bundles infrastructure dependencies required by the HTTP server.
// Every client is optional; missing ones are left out of /health.
type Dependencies struct {
	Logger   *zap.Logger
	Postgres *pgxpool.Pool
	Redis    *redis.Client
	NATS     *nats.Conn

	// Webhook is served only when OnUpdate is set.
	WebhookPath string
	Signer      *httpUtil.WebhookSigner
	OnUpdate    func(update tgbotapi.Update) bool
}

// Server wraps the Fiber application and its dependencies.
type Server struct {
	app  *fiber.App
	deps Dependencies
}

// New creates a new HTTP server instance with health and webhook routes.
func New(deps Dependencies) *Server {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	app := fiber.New(fiber.Config{
		AppName:               serviceName,
		DisableStartupMessage: true,
	})
	app.Use(
		middleware.RequestID(),
		middleware.Recovery(deps.Logger),
		middleware.Logger(deps.Logger),
	)

	s := &Server{
		app:  app,
		deps: deps,
	}

	s.registerRoutes()
	return s
}

// App exposes the Fiber application, for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen starts the Fiber server on the given address.
func (s *Server) Listen(addr string) error {
	return s.app.Listen(addr)
}

// Shutdown gracefully stops the Fiber server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) registerRoutes() {
	handler.NewHealthHandler(handler.HealthDeps{
		Logger:  s.deps.Logger,
		Service: serviceName,
		Checks:  s.healthChecks(),
	}).Register(s.app)

	if s.deps.OnUpdate != nil {
		handler.NewWebhookHandler(handler.WebhookDeps{
			Logger:   s.deps.Logger,
			Path:     s.deps.WebhookPath,
			Signer:   s.deps.Signer,
			OnUpdate: s.deps.OnUpdate,
		}).Register(s.app)
	}
}

func (s *Server) healthChecks() map[string]handler.HealthCheck {
	checks := make(map[string]handler.HealthCheck)
	if s.deps.Postgres != nil {
		checks["postgres"] = s.deps.Postgres.Ping
	}
	if s.deps.Redis != nil {
		checks["redis"] = func(ctx context.Context) error {
			return s.deps.Redis.Ping(ctx).Err()
		}
	}
	if s.deps.NATS != nil {
		checks["nats"] = func(context.Context) error {
			if !s.deps.NATS.IsConnected() {
				return errors.New("nats " + s.deps.NATS.Status().String())
			}
			return nil
		}
	}
	return checks
}
