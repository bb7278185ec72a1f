package api

import (
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"

	"github.com/open-rover/simnode/domain/robot"
	customlog "github.com/open-rover/simnode/pkg/log"
)

// RegisterRobotRoutes registers the robot API and WebSocket endpoints
// with the Fiber app.
func RegisterRobotRoutes(app *fiber.App, svc *robot.Service, hub *TelemetryHub, logger customlog.Logger) {
	robotGroup := app.Group("/api/v1/robot")
	robotGroup.Get("/status", svc.GetStatusHandler)
	robotGroup.Get("/pose", svc.GetPoseHandler)
	robotGroup.Post("/goal", svc.SetGoalHandler)
	robotGroup.Post("/tilt", svc.SetTiltHandler)

	// WebSocket upgrade middleware
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/telemetry", websocket.New(func(conn *websocket.Conn) {
		TelemetryWebSocketHandler(conn, hub, logger)
	}))

	app.Get("/ws/control", websocket.New(func(conn *websocket.Conn) {
		ControlWebSocketHandler(conn, svc, logger)
	}))

	logger.Infof("Registered robot API endpoints under /api/v1/robot")
}
