package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/open-rover/simnode/domain/robot"
	"github.com/open-rover/simnode/pkg/api"
	"github.com/open-rover/simnode/pkg/config"
	customlog "github.com/open-rover/simnode/pkg/log"
	"github.com/open-rover/simnode/pkg/processing"
	"github.com/open-rover/simnode/pkg/zeromq"
	"github.com/open-rover/simnode/services"
)

func main() {
	configDir := flag.String("config-dir", "config", "directory containing simnode_config.yaml")
	flag.Parse()

	bootstrapCfg, err := config.LoadBootstrapConfig(*configDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load bootstrap configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := customlog.NewLogrusLogger(bootstrapCfg.Logging.Level, bootstrapCfg.Logging.LogPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	log.Infof("Simnode starting")

	// Operational configuration: robot constants and topic mappings.
	roverConfigPath := filepath.Join(bootstrapCfg.Data.Directory, bootstrapCfg.Data.RobotConfigFilename)
	configService, err := services.NewRoverConfigService(roverConfigPath, log)
	if err != nil {
		log.Fatalf("Failed to create config service: %v", err)
	}
	cfg := configService.GetCurrentConfig()
	if cfg == nil {
		log.Fatalf("No operational configuration available at %s", roverConfigPath)
	}

	registry := processing.NewTopicRegistry(log)
	registry.LoadFromConfig(cfg)

	zmqService, err := zeromq.NewService(bootstrapCfg, log)
	if err != nil {
		log.Fatalf("Failed to create ZeroMQ service: %v", err)
	}
	configService.SetNotifier(zeromq.NewConfigPublisher(zmqService, configService, log))

	robotService := robot.NewService(cfg, zmqService, registry, log)
	robotService.RegisterBusHandlers(zmqService)

	if err := zmqService.Start(); err != nil {
		log.Fatalf("Failed to start ZeroMQ service: %v", err)
	}
	if err := robotService.Start(); err != nil {
		log.Fatalf("Failed to start robot service: %v", err)
	}

	app := fiber.New(fiber.Config{
		AppName:      "Simnode",
		ErrorHandler: customErrorHandler,
	})
	app.Use(logger.New())
	app.Use(recover.New())

	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "online",
			"service": "simnode",
		})
	})
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "healthy"})
	})

	hub := api.NewTelemetryHub(log)
	robotService.SetSnapshotSink(hub)
	api.RegisterRobotRoutes(app, robotService, hub, log)
	api.RegisterConfigRoutes(app, configService, log)

	go func() {
		addr := fmt.Sprintf(":%d", bootstrapCfg.Server.HTTPPort)
		log.Infof("HTTP server starting on %s", addr)
		if err := app.Listen(addr); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Infof("Shutting down...")

	// Stop the tick loop before the transport it publishes on.
	robotService.Stop()
	zmqService.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Errorf("Server forced to shutdown: %v", err)
	}

	log.Infof("Simnode exited properly")
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
	}
	return c.Status(code).JSON(fiber.Map{
		"error": err.Error(),
	})
}
