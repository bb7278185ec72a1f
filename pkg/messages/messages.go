// Package messages defines the JSON wire structures carried as payloads
// on the message bus and over the WebSocket endpoints.
package messages

import (
	"time"

	"github.com/open-rover/simnode/pkg/geometry"
)

// Header carries the timing and frame information for stamped messages.
type Header struct {
	Stamp   time.Time `json:"stamp"`
	FrameID string    `json:"frame_id,omitempty"`
}

// JointStateMsg is a named joint position snapshot.
type JointStateMsg struct {
	Header   Header    `json:"header"`
	Name     []string  `json:"name"`
	Position []float64 `json:"position"`
}

// TwistMsg is a linear/angular velocity command.
type TwistMsg struct {
	Linear  geometry.Vector3 `json:"linear"`
	Angular geometry.Vector3 `json:"angular"`
}

// PoseWithOrientation is a 3D position with an orientation quaternion.
type PoseWithOrientation struct {
	Position    geometry.Vector3    `json:"position"`
	Orientation geometry.Quaternion `json:"orientation"`
}

// OdometryMsg is the per-tick odometry snapshot.
type OdometryMsg struct {
	Header       Header              `json:"header"`
	ChildFrameID string              `json:"child_frame_id"`
	Pose         PoseWithOrientation `json:"pose"`
	Twist        TwistMsg            `json:"twist"`
}

// TransformMsg is a stamped transform between two frames.
type TransformMsg struct {
	Header       Header             `json:"header"`
	ChildFrameID string             `json:"child_frame_id"`
	Transform    geometry.Transform `json:"transform"`
}

// GoalMsg is an inbound goal position in the working frame.
type GoalMsg struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// PoseMsg is an inbound externally observed pose sample.
type PoseMsg struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Theta float64 `json:"theta"`
}

// TiltMsg is an inbound tilt command applied to the tip joint.
type TiltMsg struct {
	TiltAngle float64 `json:"tilt_angle"`
}

// Twist builds a TwistMsg from planar velocity components: linear x/y
// plus angular z.
func Twist(vx, vy, omega float64) TwistMsg {
	return TwistMsg{
		Linear:  geometry.Vector3{X: vx, Y: vy},
		Angular: geometry.Vector3{Z: omega},
	}
}
