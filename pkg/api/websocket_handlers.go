package api

import (
	"encoding/json"
	"errors"
	"syscall"

	"github.com/gofiber/contrib/websocket"

	"github.com/open-rover/simnode/domain/robot"
	customlog "github.com/open-rover/simnode/pkg/log"
	"github.com/open-rover/simnode/pkg/messages"
	"github.com/open-rover/simnode/pkg/motion"
)

// TelemetryWebSocketHandler streams per-tick telemetry to the client.
// The connection is held open until the client closes it; inbound
// frames are ignored.
func TelemetryWebSocketHandler(conn *websocket.Conn, hub *TelemetryHub, logger customlog.Logger) {
	hub.register(conn)
	defer hub.unregister(conn)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Errorf("Telemetry WS read error: %v", err)
			}
			break
		}
	}
}

// ControlWebSocketHandler accepts goal updates as JSON text frames.
func ControlWebSocketHandler(conn *websocket.Conn, svc *robot.Service, logger customlog.Logger) {
	logger.Infof("Control WebSocket connected: %s", conn.RemoteAddr())
	var (
		mt  int
		msg []byte
		err error
	)
	for {
		if mt, msg, err = conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Errorf("Control WS read error: %v", err)
			} else if err != websocket.ErrCloseSent && !errors.Is(err, syscall.EPIPE) && !errors.Is(err, syscall.ECONNRESET) {
				logger.Infof("Control WS connection closed: %v", err)
			}
			break
		}

		if mt != websocket.TextMessage {
			logger.Infof("Ignoring non-text Control WS message type: %d", mt)
			continue
		}

		var goal messages.GoalMsg
		if err := json.Unmarshal(msg, &goal); err != nil {
			logger.Warnf("Failed to unmarshal goal from WS: %v. Message: %s", err, string(msg))
			continue
		}

		if err := svc.UpdateGoal(motion.GoalPose{X: goal.X, Y: goal.Y}); err != nil {
			logger.Warnf("Goal from WS rejected: %v", err)
			continue
		}
		logger.Debugf("Goal updated via WS: (%.3f, %.3f)", goal.X, goal.Y)
	}
	logger.Infof("Control WebSocket disconnected: %s", conn.RemoteAddr())
}
