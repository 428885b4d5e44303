package configserver

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/m-mizutani/docchat/pkg/model"
	"github.com/m-mizutani/docchat/pkg/repository"
	"github.com/m-mizutani/docchat/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

// ConfigPath is the route serving the persisted application configuration
const ConfigPath = "/api/config"

// Server exposes a repository over HTTP so that adapter.ConfigClient (or a
// browser) can read and write the active store name
type Server struct {
	app  *fiber.App
	repo repository.Repository
}

func New(repo repository.Repository) *Server {
	app := fiber.New(fiber.Config{
		BodyLimit:             1024 * 1024,
		DisableStartupMessage: true,
	})

	s := &Server{
		app:  app,
		repo: repo,
	}

	app.Get(ConfigPath, s.getConfig)
	app.Post(ConfigPath, s.putConfig)
	app.All(ConfigPath, methodNotAllowed)

	return s
}

func (s *Server) App() *fiber.App {
	return s.app
}

// Run serves until Shutdown is called or the listener fails
func (s *Server) Run(addr string) error {
	logging.Default().Info("config server is running", "addr", addr, "path", ConfigPath)
	if err := s.app.Listen(addr); err != nil {
		return goerr.Wrap(err, "failed to run config server", goerr.V("addr", addr))
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.app.ShutdownWithContext(ctx); err != nil {
		return goerr.Wrap(err, "failed to shutdown config server")
	}
	return nil
}

func (s *Server) getConfig(c *fiber.Ctx) error {
	ctx := c.UserContext()

	cfg, err := s.repo.GetConfig(ctx)
	if err != nil {
		logging.From(ctx).Error("failed to read config", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to read config."})
	}
	return c.JSON(cfg)
}

func (s *Server) putConfig(c *fiber.Ctx) error {
	ctx := c.UserContext()
	started := time.Now()

	cfg := &model.AppConfig{}
	if body := c.Body(); len(body) > 0 {
		if err := json.Unmarshal(body, cfg); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid JSON payload."})
		}
	}

	if err := s.repo.PutConfig(ctx, cfg); err != nil {
		logging.From(ctx).Error("failed to write config", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to write config."})
	}

	logging.From(ctx).Debug("config updated", "store", cfg.RAGStoreName, "elapsed", time.Since(started))
	return c.JSON(cfg)
}

func methodNotAllowed(c *fiber.Ctx) error {
	return c.Status(fiber.StatusMethodNotAllowed).JSON(fiber.Map{"error": "Method not allowed."})
}
