// Package robot wires the motion loop to the message bus and the HTTP
// API: it owns the frame tree, the command tracker, the kinematic model,
// and the tick scheduler, and emits each tick's snapshot bundle.
package robot

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/open-rover/simnode/pkg/config"
	message "github.com/open-rover/simnode/pkg/flatbuffers/rover/message"
	"github.com/open-rover/simnode/pkg/frames"
	"github.com/open-rover/simnode/pkg/geometry"
	customlog "github.com/open-rover/simnode/pkg/log"
	"github.com/open-rover/simnode/pkg/messages"
	"github.com/open-rover/simnode/pkg/motion"
	"github.com/open-rover/simnode/pkg/processing"
)

// Bus topics used by the node.
const (
	TopicJointStates = "rover.joint_states"
	TopicOdom        = "rover.odom"
	TopicCmdVel      = "rover.cmd_vel"
	TopicTF          = "rover.tf"
	TopicTFStatic    = "rover.tf_static"

	TopicGoal = "rover.cmd.goal"
	TopicPose = "rover.obs.pose"
	TopicTilt = "rover.cmd.tilt"
)

// Joint names in the published joint state, in order.
var jointNames = []string{"wheel_axle", "swivel", "tip"}

// BusPublisher is the outbound edge of the service.
type BusPublisher interface {
	PublishEnvelope(topic string, contentType message.ContentType, timestampNs int64, payload []byte) error
}

// SnapshotSink receives the marshaled telemetry document of each tick.
type SnapshotSink interface {
	Broadcast(payload []byte)
}

// Telemetry is the combined per-tick document sent to WebSocket clients.
type Telemetry struct {
	Stamp     time.Time             `json:"stamp"`
	Pose      geometry.Pose2D       `json:"pose"`
	Goal      motion.GoalPose       `json:"goal"`
	WheelPos  float64               `json:"wheel_pos"`
	TiltPos   float64               `json:"tilt_pos"`
	Twist     messages.TwistMsg     `json:"twist"`
	Transform messages.TransformMsg `json:"transform"`
}

// Service runs the robot simulation loop and publishes its outputs.
type Service struct {
	cfg       *config.Config
	bus       BusPublisher
	registry  *processing.TopicRegistry
	logger    customlog.Logger
	sessionID string
	startedAt time.Time

	tree      *frames.Tree
	tracker   *motion.Tracker
	model     *motion.Model
	scheduler *motion.Scheduler

	// mu guards the sink and the retained snapshot. The model itself is
	// only ever touched by the tick goroutine; HTTP reads are served
	// from lastSnap.
	mu       sync.RWMutex
	sink     SnapshotSink
	lastSnap motion.Snapshot
}

// NewService builds the loop components from the operational config.
func NewService(cfg *config.Config, bus BusPublisher, registry *processing.TopicRegistry, logger customlog.Logger) *Service {
	goal := cfg.WorkingGoal()

	s := &Service{
		cfg:       cfg,
		bus:       bus,
		registry:  registry,
		logger:    logger,
		sessionID: uuid.NewString(),
		tree:      frames.NewTree(),
		tracker:   motion.NewTracker(motion.GoalPose{X: goal.X, Y: goal.Y}),
	}

	s.model = motion.NewModel(motion.Params{
		WheelRadius: cfg.Robot.WheelRadius,
		WheelOmega:  cfg.Robot.WheelOmega,
		SwivelOmega: cfg.Robot.SwivelOmega,
		DT:          1.0 / cfg.Robot.FrequencyHz,
	}, geometry.Pose2D{})

	s.scheduler = motion.NewScheduler(s.model, s.tracker, s.tree, s, logger)
	s.lastSnap = motion.Snapshot{
		State: s.model.State(),
		Goal:  s.tracker.Goal(),
	}
	return s
}

// SetSnapshotSink installs the telemetry sink. May be nil.
func (s *Service) SetSnapshotSink(sink SnapshotSink) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sink = sink
}

// Start fixes the static offset, broadcasts the world->odom transform
// exactly once, and starts the tick loop.
func (s *Service) Start() error {
	s.startedAt = time.Now()

	off := s.cfg.Robot.StaticOffset
	if err := s.tree.SetStaticOffset(frames.FrameOffset{DX: off.DX, DY: off.DY, DZ: off.DZ}); err != nil {
		return err
	}

	now := time.Now()
	static, _ := s.tree.StaticTransform(now)
	if err := s.publishTransform(TopicTFStatic, static, now); err != nil {
		return err
	}
	s.logger.Infof("Static transform: %s->%s (%.2f, %.2f, %.2f)",
		frames.FrameWorld, frames.FrameOdom, off.DX, off.DY, off.DZ)

	return s.scheduler.Start()
}

// Stop halts the tick loop, letting any in-flight tick complete.
func (s *Service) Stop() {
	s.scheduler.Stop()
}

// SchedulerState returns the current loop state.
func (s *Service) SchedulerState() motion.State {
	return s.scheduler.State()
}

// RegisterBusHandlers subscribes the inbound command topics.
func (s *Service) RegisterBusHandlers(registrar interface {
	RegisterHandlerFunc(topic string, handler func(topic string, payload []byte) error)
}) {
	registrar.RegisterHandlerFunc(TopicGoal, s.handleGoalCommand)
	registrar.RegisterHandlerFunc(TopicPose, s.handlePoseObservation)
	registrar.RegisterHandlerFunc(TopicTilt, s.handleTiltCommand)
}

func (s *Service) handleGoalCommand(topic string, payload []byte) error {
	var msg messages.GoalMsg
	if err := json.Unmarshal(payload, &msg); err != nil {
		s.logger.Warnf("Malformed goal command: %v", err)
		return err
	}
	if err := s.tracker.UpdateGoal(motion.GoalPose{X: msg.X, Y: msg.Y}); err != nil {
		s.logger.Warnf("Goal command rejected: %v", err)
		return err
	}
	s.registry.UpdateTopicStats(topic, time.Now().UnixNano())
	s.logger.Debugf("Goal updated: (%.3f, %.3f)", msg.X, msg.Y)
	return nil
}

func (s *Service) handlePoseObservation(topic string, payload []byte) error {
	var msg messages.PoseMsg
	if err := json.Unmarshal(payload, &msg); err != nil {
		s.logger.Warnf("Malformed pose observation: %v", err)
		return err
	}
	if err := s.tracker.ObservePose(geometry.Pose2D{X: msg.X, Y: msg.Y, Theta: msg.Theta}); err != nil {
		s.logger.Warnf("Pose observation rejected: %v", err)
		return err
	}
	s.registry.UpdateTopicStats(topic, time.Now().UnixNano())
	return nil
}

func (s *Service) handleTiltCommand(topic string, payload []byte) error {
	var msg messages.TiltMsg
	if err := json.Unmarshal(payload, &msg); err != nil {
		s.logger.Warnf("Malformed tilt command: %v", err)
		return err
	}
	if err := s.tracker.UpdateTilt(msg.TiltAngle); err != nil {
		s.logger.Warnf("Tilt command rejected: %v", err)
		return err
	}
	s.registry.UpdateTopicStats(topic, time.Now().UnixNano())
	return nil
}

// UpdateGoal applies a goal update arriving over HTTP or WebSocket.
func (s *Service) UpdateGoal(g motion.GoalPose) error {
	return s.tracker.UpdateGoal(g)
}

// UpdateTilt applies a tilt update arriving over HTTP.
func (s *Service) UpdateTilt(angle float64) error {
	return s.tracker.UpdateTilt(angle)
}

// EmitSnapshot publishes the four outputs of one tick as a bundle. All
// messages are built from the same snapshot; a publish error is logged
// and never aborts the tick.
func (s *Service) EmitSnapshot(snap motion.Snapshot) {
	st := snap.State
	tsNs := snap.Stamp.UnixNano()

	joint := messages.JointStateMsg{
		Header:   messages.Header{Stamp: snap.Stamp},
		Name:     jointNames,
		Position: []float64{st.WheelPos, st.Pose.Theta, st.TiltPos},
	}
	s.publishJSON(TopicJointStates, joint, tsNs)

	twist := messages.Twist(st.Vel.VX, st.Vel.VY, st.Vel.Omega)

	odom := messages.OdometryMsg{
		Header:       messages.Header{Stamp: snap.Stamp, FrameID: frames.FrameOdom},
		ChildFrameID: frames.FrameBase,
		Pose: messages.PoseWithOrientation{
			Position:    geometry.Vector3{X: st.Pose.X, Y: st.Pose.Y, Z: 0},
			Orientation: snap.Transform.Transform.Rotation,
		},
		Twist: twist,
	}
	s.publishJSON(TopicOdom, odom, tsNs)

	s.publishJSON(TopicCmdVel, twist, tsNs)

	tf := transformMsg(snap.Transform)
	s.publishJSON(TopicTF, tf, tsNs)

	s.mu.Lock()
	s.lastSnap = snap
	sink := s.sink
	s.mu.Unlock()

	if sink != nil {
		telemetry := Telemetry{
			Stamp:     snap.Stamp,
			Pose:      st.Pose,
			Goal:      snap.Goal,
			WheelPos:  st.WheelPos,
			TiltPos:   st.TiltPos,
			Twist:     twist,
			Transform: tf,
		}
		data, err := json.Marshal(telemetry)
		if err != nil {
			s.logger.Errorf("Failed to marshal telemetry: %v", err)
			return
		}
		sink.Broadcast(data)
	}
}

// latestSnapshot returns the most recent tick's snapshot bundle.
func (s *Service) latestSnapshot() motion.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastSnap
}

func (s *Service) publishJSON(topic string, v interface{}, tsNs int64) {
	data, err := json.Marshal(v)
	if err != nil {
		s.logger.Errorf("Failed to marshal message for topic '%s': %v", topic, err)
		return
	}
	if err := s.bus.PublishEnvelope(topic, message.ContentTypeJSON_SNAPSHOT, tsNs, data); err != nil {
		s.logger.Errorf("Failed to publish message for topic '%s': %v", topic, err)
		return
	}
	s.registry.UpdateTopicStats(topic, tsNs)
}

func (s *Service) publishTransform(topic string, tf frames.Stamped, stamp time.Time) error {
	data, err := json.Marshal(transformMsg(tf))
	if err != nil {
		return err
	}
	if err := s.bus.PublishEnvelope(topic, message.ContentTypeJSON_SNAPSHOT, stamp.UnixNano(), data); err != nil {
		return err
	}
	s.registry.UpdateTopicStats(topic, stamp.UnixNano())
	return nil
}

func transformMsg(tf frames.Stamped) messages.TransformMsg {
	return messages.TransformMsg{
		Header:       messages.Header{Stamp: tf.Stamp, FrameID: tf.FrameID},
		ChildFrameID: tf.ChildID,
		Transform:    tf.Transform,
	}
}

// --- HTTP handlers ---

// GetStatusHandler reports the loop state and current tracked values.
// Pose comes from the last emitted snapshot, never from the model the
// tick goroutine is stepping.
func (s *Service) GetStatusHandler(c *fiber.Ctx) error {
	snap := s.latestSnapshot()
	goal := s.tracker.Goal()
	observed, observedValid := s.tracker.ObservedPose()

	status := fiber.Map{
		"robot_id":   s.cfg.RobotID,
		"session_id": s.sessionID,
		"state":      s.scheduler.State().String(),
		"uptime_s":   time.Since(s.startedAt).Seconds(),
		"pose":       snap.State.Pose,
		"goal":       goal,
		"tilt":       s.tracker.Tilt(),
		"topics":     s.registry.GetTopicStats(),
	}
	if observedValid {
		status["observed_pose"] = observed
	}
	return c.JSON(status)
}

// GetPoseHandler reports the pose and velocity of the last tick.
func (s *Service) GetPoseHandler(c *fiber.Ctx) error {
	snap := s.latestSnapshot()
	st := snap.State
	return c.JSON(fiber.Map{
		"pose":  st.Pose,
		"twist": messages.Twist(st.Vel.VX, st.Vel.VY, st.Vel.Omega),
	})
}

// SetGoalHandler accepts a goal update via POST.
func (s *Service) SetGoalHandler(c *fiber.Ctx) error {
	var msg messages.GoalMsg
	if err := c.BodyParser(&msg); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	if err := s.tracker.UpdateGoal(motion.GoalPose{X: msg.X, Y: msg.Y}); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return c.JSON(fiber.Map{"status": "goal updated", "goal": msg})
}

// SetTiltHandler accepts a tilt update via POST.
func (s *Service) SetTiltHandler(c *fiber.Ctx) error {
	var msg messages.TiltMsg
	if err := c.BodyParser(&msg); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	if err := s.tracker.UpdateTilt(msg.TiltAngle); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return c.JSON(fiber.Map{"status": "tilt updated", "tilt": msg.TiltAngle})
}
