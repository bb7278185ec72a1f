// Package geometry holds the planar pose and transform math used by the
// motion loop and the frame tree.
package geometry

import "math"

// Pose2D is a planar position and heading in meters/radians.
type Pose2D struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Theta float64 `json:"theta"`
}

// Velocity is a world-aligned linear velocity plus angular rate.
type Velocity struct {
	VX    float64 `json:"vx"`
	VY    float64 `json:"vy"`
	Omega float64 `json:"omega"`
}

// Vector3 is a standard 3D vector.
type Vector3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Quaternion is an orientation in (w, x, y, z) order.
type Quaternion struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
	W float64 `json:"w"`
}

// Identity returns the identity quaternion.
func Identity() Quaternion {
	return Quaternion{X: 0, Y: 0, Z: 0, W: 1}
}

// Transform is a translation plus rotation between two frames.
type Transform struct {
	Translation Vector3    `json:"translation"`
	Rotation    Quaternion `json:"rotation"`
}

// AngleAxisToQuaternion converts a rotation by angle (radians) about the
// given unit axis into a quaternion: q = (cos(a/2), sin(a/2)·v).
// A zero angle yields exactly the identity quaternion for any axis.
func AngleAxisToQuaternion(angle float64, axis Vector3) Quaternion {
	half := angle / 2
	s := math.Sin(half)
	return Quaternion{
		X: s * axis.X,
		Y: s * axis.Y,
		Z: s * axis.Z,
		W: math.Cos(half),
	}
}

// YawQuaternion rotates about the vertical (+Z) axis by angle radians.
func YawQuaternion(angle float64) Quaternion {
	return AngleAxisToQuaternion(angle, Vector3{Z: 1})
}

// NormalizeAngle wraps an angle into (-pi, pi].
func NormalizeAngle(a float64) float64 {
	a = math.Mod(a, 2*math.Pi)
	if a > math.Pi {
		a -= 2 * math.Pi
	} else if a <= -math.Pi {
		a += 2 * math.Pi
	}
	return a
}

// IsFinite reports whether v is neither NaN nor infinite.
func IsFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
