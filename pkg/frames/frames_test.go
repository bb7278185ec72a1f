package frames

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/open-rover/simnode/pkg/geometry"
)

func TestSetStaticOffsetOnce(t *testing.T) {
	tree := NewTree()

	if _, ok := tree.Offset(); ok {
		t.Errorf("Expected no offset before SetStaticOffset")
	}
	if _, ok := tree.StaticTransform(time.Now()); ok {
		t.Errorf("Expected no static transform before SetStaticOffset")
	}

	offset := FrameOffset{DX: 5.55, DY: 5.55, DZ: 0}
	if err := tree.SetStaticOffset(offset); err != nil {
		t.Fatalf("SetStaticOffset failed: %v", err)
	}

	got, ok := tree.Offset()
	if !ok {
		t.Fatalf("Expected offset to be set")
	}
	if got != offset {
		t.Errorf("Expected offset %+v, got %+v", offset, got)
	}

	err := tree.SetStaticOffset(FrameOffset{DX: 1})
	if !errors.Is(err, ErrOffsetAlreadySet) {
		t.Errorf("Expected ErrOffsetAlreadySet on second set, got %v", err)
	}

	// The first offset must survive the rejected second set.
	got, _ = tree.Offset()
	if got != offset {
		t.Errorf("Expected original offset to be retained, got %+v", got)
	}
}

func TestStaticTransform(t *testing.T) {
	tree := NewTree()
	if err := tree.SetStaticOffset(FrameOffset{DX: 5.55, DY: 5.55}); err != nil {
		t.Fatalf("SetStaticOffset failed: %v", err)
	}

	stamp := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	tf, ok := tree.StaticTransform(stamp)
	if !ok {
		t.Fatalf("Expected static transform after SetStaticOffset")
	}

	if tf.FrameID != FrameWorld || tf.ChildID != FrameOdom {
		t.Errorf("Expected world->odom frames, got %s->%s", tf.FrameID, tf.ChildID)
	}
	if !tf.Stamp.Equal(stamp) {
		t.Errorf("Expected stamp %v, got %v", stamp, tf.Stamp)
	}
	if tf.Transform.Translation.X != 5.55 || tf.Transform.Translation.Y != 5.55 || tf.Transform.Translation.Z != 0 {
		t.Errorf("Unexpected translation %+v", tf.Transform.Translation)
	}
	if tf.Transform.Rotation != geometry.Identity() {
		t.Errorf("Expected identity rotation on static transform, got %+v", tf.Transform.Rotation)
	}
}

func TestOdomToBase(t *testing.T) {
	tree := NewTree()
	stamp := time.Now()
	pose := geometry.Pose2D{X: 1.5, Y: -2.25, Theta: 0.6847}

	tf := tree.OdomToBase(pose, pose.Theta, stamp)

	if tf.FrameID != FrameOdom || tf.ChildID != FrameBase {
		t.Errorf("Expected odom->base_link frames, got %s->%s", tf.FrameID, tf.ChildID)
	}
	if tf.Transform.Translation.X != pose.X || tf.Transform.Translation.Y != pose.Y {
		t.Errorf("Expected translation (%v, %v), got %+v", pose.X, pose.Y, tf.Transform.Translation)
	}
	if tf.Transform.Translation.Z != 0 {
		t.Errorf("Expected planar transform with z=0, got %v", tf.Transform.Translation.Z)
	}

	want := geometry.YawQuaternion(pose.Theta)
	if math.Abs(tf.Transform.Rotation.Z-want.Z) > 1e-12 || math.Abs(tf.Transform.Rotation.W-want.W) > 1e-12 {
		t.Errorf("Expected yaw rotation %+v, got %+v", want, tf.Transform.Rotation)
	}
}

func TestOdomToBaseZeroAngle(t *testing.T) {
	tree := NewTree()
	tf := tree.OdomToBase(geometry.Pose2D{X: 3, Y: 4, Theta: 1.2}, 0, time.Now())

	if tf.Transform.Rotation != geometry.Identity() {
		t.Errorf("Expected identity rotation for zero angle, got %+v", tf.Transform.Rotation)
	}
}
