package robot

import (
	"encoding/json"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/open-rover/simnode/pkg/config"
	message "github.com/open-rover/simnode/pkg/flatbuffers/rover/message"
	"github.com/open-rover/simnode/pkg/frames"
	"github.com/open-rover/simnode/pkg/geometry"
	customlog "github.com/open-rover/simnode/pkg/log"
	"github.com/open-rover/simnode/pkg/messages"
	"github.com/open-rover/simnode/pkg/motion"
	"github.com/open-rover/simnode/pkg/processing"
)

type publishedMsg struct {
	topic       string
	contentType message.ContentType
	timestampNs int64
	payload     []byte
}

// fakeBus captures everything published on it.
type fakeBus struct {
	mu   sync.Mutex
	msgs []publishedMsg
}

func (b *fakeBus) PublishEnvelope(topic string, contentType message.ContentType, timestampNs int64, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.msgs = append(b.msgs, publishedMsg{topic, contentType, timestampNs, append([]byte(nil), payload...)})
	return nil
}

func (b *fakeBus) byTopic(topic string) []publishedMsg {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []publishedMsg
	for _, m := range b.msgs {
		if m.topic == topic {
			out = append(out, m)
		}
	}
	return out
}

type fakeRegistrar struct {
	handlers map[string]func(topic string, payload []byte) error
}

func (r *fakeRegistrar) RegisterHandlerFunc(topic string, handler func(topic string, payload []byte) error) {
	if r.handlers == nil {
		r.handlers = make(map[string]func(topic string, payload []byte) error)
	}
	r.handlers[topic] = handler
}

func testConfig() *config.Config {
	return &config.Config{
		Version:  "1.0",
		ConfigID: "test-config",
		RobotID:  "test-rover",
		Robot: config.RobotConfig{
			FrequencyHz:  100,
			WheelRadius:  0.3236,
			WheelOmega:   0.8,
			SwivelOmega:  0,
			StaticOffset: config.OffsetConfig{DX: 5.55, DY: 5.55},
			GoalWorld:    config.PointConfig{X: 9, Y: 7},
		},
	}
}

func newTestService(t *testing.T) (*Service, *fakeBus) {
	t.Helper()

	logger, err := customlog.NewLogrusLogger("error", "")
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}

	bus := &fakeBus{}
	registry := processing.NewTopicRegistry(logger)
	cfg := testConfig()
	registry.LoadFromConfig(cfg)

	return NewService(cfg, bus, registry, logger), bus
}

func TestServiceSeedsGoalFromConfig(t *testing.T) {
	svc, _ := newTestService(t)

	goal := svc.tracker.Goal()
	if math.Abs(goal.X-3.45) > 1e-12 || math.Abs(goal.Y-1.45) > 1e-12 {
		t.Errorf("Expected working-frame goal (3.45, 1.45), got %+v", goal)
	}
}

func TestServiceStartPublishesStaticTransformOnce(t *testing.T) {
	svc, bus := newTestService(t)

	if err := svc.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer svc.Stop()

	statics := bus.byTopic(TopicTFStatic)
	if len(statics) != 1 {
		t.Fatalf("Expected exactly 1 static transform publication, got %d", len(statics))
	}

	var tf messages.TransformMsg
	if err := json.Unmarshal(statics[0].payload, &tf); err != nil {
		t.Fatalf("Failed to unmarshal static transform: %v", err)
	}
	if tf.Header.FrameID != frames.FrameWorld || tf.ChildFrameID != frames.FrameOdom {
		t.Errorf("Expected world->odom static transform, got %s->%s", tf.Header.FrameID, tf.ChildFrameID)
	}
	if tf.Transform.Translation.X != 5.55 || tf.Transform.Translation.Y != 5.55 {
		t.Errorf("Unexpected static translation %+v", tf.Transform.Translation)
	}
	if tf.Transform.Rotation != geometry.Identity() {
		t.Errorf("Expected identity rotation on static transform, got %+v", tf.Transform.Rotation)
	}

	if svc.SchedulerState() != motion.Running {
		t.Errorf("Expected scheduler RUNNING after Start, got %s", svc.SchedulerState())
	}
}

func TestServiceEmitSnapshotPublishesBundle(t *testing.T) {
	svc, bus := newTestService(t)

	stamp := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	snap := motion.Snapshot{
		Stamp: stamp,
		State: motion.RobotState{
			Pose:     geometry.Pose2D{X: 1.5, Y: 0.5, Theta: 0.4},
			WheelPos: 2.0,
			TiltPos:  0.1,
			Vel:      geometry.Velocity{VX: 0.2, VY: 0.1},
		},
		Goal: motion.GoalPose{X: 3.45, Y: 1.45},
		Transform: frames.Stamped{
			Stamp:   stamp,
			FrameID: frames.FrameOdom,
			ChildID: frames.FrameBase,
			Transform: geometry.Transform{
				Translation: geometry.Vector3{X: 1.5, Y: 0.5},
				Rotation:    geometry.YawQuaternion(0.4),
			},
		},
	}

	svc.EmitSnapshot(snap)

	for _, topic := range []string{TopicJointStates, TopicOdom, TopicCmdVel, TopicTF} {
		msgs := bus.byTopic(topic)
		if len(msgs) != 1 {
			t.Fatalf("Expected 1 message on %s, got %d", topic, len(msgs))
		}
		if msgs[0].timestampNs != stamp.UnixNano() {
			t.Errorf("Topic %s: expected envelope timestamp %d, got %d", topic, stamp.UnixNano(), msgs[0].timestampNs)
		}
		if msgs[0].contentType != message.ContentTypeJSON_SNAPSHOT {
			t.Errorf("Topic %s: expected JSON_SNAPSHOT content type, got %v", topic, msgs[0].contentType)
		}
	}

	var joint messages.JointStateMsg
	if err := json.Unmarshal(bus.byTopic(TopicJointStates)[0].payload, &joint); err != nil {
		t.Fatalf("Failed to unmarshal joint state: %v", err)
	}
	if len(joint.Name) != 3 || joint.Name[0] != "wheel_axle" || joint.Name[1] != "swivel" || joint.Name[2] != "tip" {
		t.Errorf("Unexpected joint names %v", joint.Name)
	}
	if joint.Position[0] != 2.0 || joint.Position[1] != 0.4 || joint.Position[2] != 0.1 {
		t.Errorf("Unexpected joint positions %v", joint.Position)
	}

	var odom messages.OdometryMsg
	if err := json.Unmarshal(bus.byTopic(TopicOdom)[0].payload, &odom); err != nil {
		t.Fatalf("Failed to unmarshal odometry: %v", err)
	}
	if odom.Header.FrameID != frames.FrameOdom || odom.ChildFrameID != frames.FrameBase {
		t.Errorf("Expected odom->base_link odometry, got %s->%s", odom.Header.FrameID, odom.ChildFrameID)
	}
	if odom.Pose.Position.X != 1.5 || odom.Pose.Position.Y != 0.5 {
		t.Errorf("Unexpected odometry position %+v", odom.Pose.Position)
	}
	if odom.Pose.Orientation != snap.Transform.Transform.Rotation {
		t.Errorf("Expected odometry orientation to match the tick transform, got %+v", odom.Pose.Orientation)
	}
	if odom.Twist.Linear.X != 0.2 || odom.Twist.Linear.Y != 0.1 {
		t.Errorf("Unexpected odometry twist %+v", odom.Twist)
	}

	var twist messages.TwistMsg
	if err := json.Unmarshal(bus.byTopic(TopicCmdVel)[0].payload, &twist); err != nil {
		t.Fatalf("Failed to unmarshal cmd_vel: %v", err)
	}
	if twist != odom.Twist {
		t.Errorf("Expected cmd_vel to match odometry twist, got %+v vs %+v", twist, odom.Twist)
	}

	var tf messages.TransformMsg
	if err := json.Unmarshal(bus.byTopic(TopicTF)[0].payload, &tf); err != nil {
		t.Fatalf("Failed to unmarshal transform: %v", err)
	}
	if tf.Transform.Translation.X != 1.5 || tf.Transform.Translation.Y != 0.5 {
		t.Errorf("Unexpected dynamic transform translation %+v", tf.Transform.Translation)
	}
}

func TestServiceBusHandlers(t *testing.T) {
	svc, _ := newTestService(t)

	reg := &fakeRegistrar{}
	svc.RegisterBusHandlers(reg)

	for _, topic := range []string{TopicGoal, TopicPose, TopicTilt} {
		if _, ok := reg.handlers[topic]; !ok {
			t.Fatalf("Expected handler registered for %s", topic)
		}
	}

	// Goal command
	if err := reg.handlers[TopicGoal](TopicGoal, []byte(`{"x": 2.0, "y": 4.0}`)); err != nil {
		t.Fatalf("Goal handler failed: %v", err)
	}
	if goal := svc.tracker.Goal(); goal.X != 2.0 || goal.Y != 4.0 {
		t.Errorf("Expected goal (2, 4) after command, got %+v", goal)
	}

	// Tilt command
	if err := reg.handlers[TopicTilt](TopicTilt, []byte(`{"tilt_angle": 0.25}`)); err != nil {
		t.Fatalf("Tilt handler failed: %v", err)
	}
	if svc.tracker.Tilt() != 0.25 {
		t.Errorf("Expected tilt 0.25 after command, got %v", svc.tracker.Tilt())
	}

	// Pose observation
	if err := reg.handlers[TopicPose](TopicPose, []byte(`{"x": 1.0, "y": 2.0, "theta": 0.5}`)); err != nil {
		t.Fatalf("Pose handler failed: %v", err)
	}
	observed, ok := svc.tracker.ObservedPose()
	if !ok || observed.X != 1.0 || observed.Y != 2.0 || observed.Theta != 0.5 {
		t.Errorf("Expected observed pose (1, 2, 0.5), got %+v (ok=%v)", observed, ok)
	}

	// Malformed payloads are rejected and leave state untouched.
	if err := reg.handlers[TopicGoal](TopicGoal, []byte(`not json`)); err == nil {
		t.Errorf("Expected error for malformed goal payload")
	}
	if goal := svc.tracker.Goal(); goal.X != 2.0 || goal.Y != 4.0 {
		t.Errorf("Expected goal unchanged after malformed payload, got %+v", goal)
	}
}

// HTTP reads must never touch the model while the tick goroutine steps
// it; they are served from the retained snapshot. Run with -race.
func TestServiceStatusReadsDuringTicks(t *testing.T) {
	svc, _ := newTestService(t)

	if err := svc.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer svc.Stop()

	deadline := time.Now().Add(500 * time.Millisecond)
	for time.Now().Before(deadline) {
		snap := svc.latestSnapshot()

		// Each read observes one whole post-tick bundle: the transform
		// must describe the same state as the pose it was built from.
		if !snap.Stamp.IsZero() {
			if snap.Transform.Transform.Translation.X != snap.State.Pose.X ||
				snap.Transform.Transform.Translation.Y != snap.State.Pose.Y {
				t.Fatalf("Torn snapshot: transform %+v vs pose %+v",
					snap.Transform.Transform.Translation, snap.State.Pose)
			}
		}
	}
}

func TestServiceSnapshotSeededBeforeFirstTick(t *testing.T) {
	svc, _ := newTestService(t)

	snap := svc.latestSnapshot()
	if snap.State.Pose.X != 0 || snap.State.Pose.Y != 0 {
		t.Errorf("Expected initial pose at origin, got %+v", snap.State.Pose)
	}
	if math.Abs(snap.Goal.X-3.45) > 1e-12 || math.Abs(snap.Goal.Y-1.45) > 1e-12 {
		t.Errorf("Expected seeded goal (3.45, 1.45), got %+v", snap.Goal)
	}
}

type captureSink struct {
	mu       sync.Mutex
	payloads [][]byte
}

func (s *captureSink) Broadcast(payload []byte) {
	s.mu.Lock()
	s.payloads = append(s.payloads, append([]byte(nil), payload...))
	s.mu.Unlock()
}

func TestServiceTelemetrySink(t *testing.T) {
	svc, _ := newTestService(t)

	sink := &captureSink{}
	svc.SetSnapshotSink(sink)

	stamp := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	snap := motion.Snapshot{
		Stamp: stamp,
		State: motion.RobotState{
			Pose:     geometry.Pose2D{X: 1.5, Y: 0.5, Theta: 0.4},
			WheelPos: 2.0,
			TiltPos:  0.1,
		},
		Goal: motion.GoalPose{X: 3.45, Y: 1.45},
	}
	svc.EmitSnapshot(snap)

	sink.mu.Lock()
	defer sink.mu.Unlock()
	if len(sink.payloads) != 1 {
		t.Fatalf("Expected 1 telemetry broadcast, got %d", len(sink.payloads))
	}

	var telemetry Telemetry
	if err := json.Unmarshal(sink.payloads[0], &telemetry); err != nil {
		t.Fatalf("Failed to unmarshal telemetry: %v", err)
	}
	if telemetry.Pose != snap.State.Pose {
		t.Errorf("Expected telemetry pose %+v, got %+v", snap.State.Pose, telemetry.Pose)
	}
	if telemetry.Goal != snap.Goal {
		t.Errorf("Expected telemetry goal %+v, got %+v", snap.Goal, telemetry.Goal)
	}
	if telemetry.WheelPos != 2.0 || telemetry.TiltPos != 0.1 {
		t.Errorf("Unexpected telemetry joints: wheel %v tilt %v", telemetry.WheelPos, telemetry.TiltPos)
	}
}

func TestServiceStopIsIdempotent(t *testing.T) {
	svc, _ := newTestService(t)

	if err := svc.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	svc.Stop()
	svc.Stop()

	if svc.SchedulerState() != motion.Stopped {
		t.Errorf("Expected scheduler STOPPED, got %s", svc.SchedulerState())
	}
}
