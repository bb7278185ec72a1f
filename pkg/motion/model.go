// Package motion implements the goal-seeking motion loop: the kinematic
// model that advances the robot state each tick, the tracker holding the
// latest externally supplied commands, and the scheduler that drives them.
package motion

import (
	"math"

	"github.com/open-rover/simnode/pkg/geometry"
)

// GoalPose is a target position in the working (odom) frame.
type GoalPose struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Params are the fixed kinematic constants, bound at construction.
type Params struct {
	WheelRadius float64 // meters
	WheelOmega  float64 // wheel angular rate, rad/s
	SwivelOmega float64 // swivel angular rate, rad/s
	DT          float64 // integration step, seconds
}

// RobotState is the aggregate state owned by the model. Everything else
// reads copies of it.
type RobotState struct {
	Pose     geometry.Pose2D
	WheelPos float64
	TiltPos  float64
	Vel      geometry.Velocity
}

// Model advances the robot state by one fixed step per tick. It is the
// single writer of its RobotState and is not safe for concurrent use.
type Model struct {
	params Params
	state  RobotState
}

// NewModel creates a model at the given initial pose. The initial
// velocity follows from the initial heading and the wheel constants.
func NewModel(params Params, initial geometry.Pose2D) *Model {
	m := &Model{params: params}
	m.state.Pose = initial
	m.state.Vel = geometry.Velocity{
		VX:    params.WheelRadius * params.WheelOmega * math.Cos(initial.Theta),
		VY:    params.WheelRadius * params.WheelOmega * math.Sin(initial.Theta),
		Omega: params.SwivelOmega,
	}
	return m
}

// Step advances the state by one tick toward goal. Position integrates
// the velocity computed at the previous heading before the heading is
// refreshed, so the bearing lags the position update by one step.
// A goal coinciding with the current position yields heading 0.
func (m *Model) Step(goal GoalPose, tilt float64) {
	p := m.params
	s := &m.state

	s.Pose.X += s.Vel.VX * p.DT
	s.Pose.Y += s.Vel.VY * p.DT

	s.WheelPos += p.WheelOmega * p.DT

	s.Pose.Theta = math.Atan2(goal.Y-s.Pose.Y, goal.X-s.Pose.X)
	s.Vel.VX = p.WheelRadius * p.WheelOmega * math.Cos(s.Pose.Theta)
	s.Vel.VY = p.WheelRadius * p.WheelOmega * math.Sin(s.Pose.Theta)
	s.Vel.Omega = p.SwivelOmega

	s.TiltPos = tilt
}

// State returns a copy of the current robot state.
func (m *Model) State() RobotState {
	return m.state
}

// Params returns the model's fixed constants.
func (m *Model) Params() Params {
	return m.params
}
