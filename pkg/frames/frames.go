// Package frames maintains the coordinate-frame hierarchy for the robot:
// a static world->odom offset set once at startup and the dynamic
// odom->base_link transform rebuilt every tick.
package frames

import (
	"errors"
	"sync"
	"time"

	"github.com/open-rover/simnode/pkg/geometry"
)

// Frame ids used on the wire.
const (
	FrameWorld = "world"
	FrameOdom  = "odom"
	FrameBase  = "base_link"
)

// ErrOffsetAlreadySet is returned when the static offset is set twice.
var ErrOffsetAlreadySet = errors.New("static world->odom offset already set")

// FrameOffset is the fixed translation from world to odom.
type FrameOffset struct {
	DX float64 `json:"dx" yaml:"dx"`
	DY float64 `json:"dy" yaml:"dy"`
	DZ float64 `json:"dz" yaml:"dz"`
}

// Stamped is a transform tagged with its parent/child frames and the
// caller-supplied timestamp.
type Stamped struct {
	Stamp     time.Time          `json:"stamp"`
	FrameID   string             `json:"frame_id"`
	ChildID   string             `json:"child_frame_id"`
	Transform geometry.Transform `json:"transform"`
}

// Tree holds the static world->odom transform once it has been set.
// The dynamic odom->base_link transform is a pure construction and is
// never retained.
type Tree struct {
	mu        sync.RWMutex
	offset    FrameOffset
	offsetSet bool
}

// NewTree creates an empty frame tree.
func NewTree() *Tree {
	return &Tree{}
}

// SetStaticOffset fixes the world->odom translation. It may be called
// exactly once; the offset is immutable afterwards.
func (t *Tree) SetStaticOffset(offset FrameOffset) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.offsetSet {
		return ErrOffsetAlreadySet
	}
	t.offset = offset
	t.offsetSet = true
	return nil
}

// StaticTransform returns the world->odom transform with identity
// rotation, stamped with the given time. ok is false until
// SetStaticOffset has been called.
func (t *Tree) StaticTransform(stamp time.Time) (Stamped, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if !t.offsetSet {
		return Stamped{}, false
	}
	return Stamped{
		Stamp:   stamp,
		FrameID: FrameWorld,
		ChildID: FrameOdom,
		Transform: geometry.Transform{
			Translation: geometry.Vector3{X: t.offset.DX, Y: t.offset.DY, Z: t.offset.DZ},
			Rotation:    geometry.Identity(),
		},
	}, true
}

// Offset returns the static offset and whether it has been set.
func (t *Tree) Offset() (FrameOffset, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.offset, t.offsetSet
}

// OdomToBase builds the odom->base_link transform for the given pose.
// Translation is (x, y, 0); rotation is about the vertical axis by the
// caller-supplied angle, so a caller wanting an unrotated frame passes 0.
// Pure: no state is read or written.
func (t *Tree) OdomToBase(pose geometry.Pose2D, angle float64, stamp time.Time) Stamped {
	return Stamped{
		Stamp:   stamp,
		FrameID: FrameOdom,
		ChildID: FrameBase,
		Transform: geometry.Transform{
			Translation: geometry.Vector3{X: pose.X, Y: pose.Y, Z: 0},
			Rotation:    geometry.YawQuaternion(angle),
		},
	}
}
