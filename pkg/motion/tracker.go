package motion

import (
	"errors"
	"sync"

	"github.com/open-rover/simnode/pkg/geometry"
)

// ErrNotFinite is returned when an update carries NaN or infinite values.
// The previous value is retained.
var ErrNotFinite = errors.New("update rejected: value is not finite")

// Tracker holds the most recently received goal, tilt command, and
// observed external pose. Updates are last-write-wins overwrites; each
// field has one writer (its handler) and one reader (the tick), and the
// lock guarantees the tick never sees a torn value.
type Tracker struct {
	mu            sync.RWMutex
	goal          GoalPose
	tilt          float64
	observed      geometry.Pose2D
	observedValid bool
}

// NewTracker creates a tracker seeded with the default goal.
func NewTracker(defaultGoal GoalPose) *Tracker {
	return &Tracker{goal: defaultGoal}
}

// UpdateGoal replaces the current goal. Non-finite coordinates are
// rejected and the previous goal is kept.
func (t *Tracker) UpdateGoal(g GoalPose) error {
	if !geometry.IsFinite(g.X) || !geometry.IsFinite(g.Y) {
		return ErrNotFinite
	}
	t.mu.Lock()
	t.goal = g
	t.mu.Unlock()
	return nil
}

// UpdateTilt replaces the current tilt angle.
func (t *Tracker) UpdateTilt(angle float64) error {
	if !geometry.IsFinite(angle) {
		return ErrNotFinite
	}
	t.mu.Lock()
	t.tilt = angle
	t.mu.Unlock()
	return nil
}

// ObservePose stores an externally observed pose sample. The control
// law does not consult it; it is surfaced on the status API only.
func (t *Tracker) ObservePose(p geometry.Pose2D) error {
	if !geometry.IsFinite(p.X) || !geometry.IsFinite(p.Y) || !geometry.IsFinite(p.Theta) {
		return ErrNotFinite
	}
	t.mu.Lock()
	t.observed = p
	t.observedValid = true
	t.mu.Unlock()
	return nil
}

// Goal returns the current goal.
func (t *Tracker) Goal() GoalPose {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.goal
}

// Tilt returns the current tilt angle.
func (t *Tracker) Tilt() float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.tilt
}

// ObservedPose returns the last observed external pose, if any.
func (t *Tracker) ObservedPose() (geometry.Pose2D, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.observed, t.observedValid
}

// Snapshot reads the goal and tilt together under one lock, giving the
// tick a single consistent view of the command state.
func (t *Tracker) Snapshot() (GoalPose, float64) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.goal, t.tilt
}
