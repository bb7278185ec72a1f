package motion

import (
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/open-rover/simnode/pkg/geometry"
)

func TestTrackerDefaults(t *testing.T) {
	def := GoalPose{X: 3.45, Y: 1.45}
	tr := NewTracker(def)

	if tr.Goal() != def {
		t.Errorf("Expected default goal %+v, got %+v", def, tr.Goal())
	}
	if tr.Tilt() != 0 {
		t.Errorf("Expected default tilt 0, got %v", tr.Tilt())
	}
	if _, ok := tr.ObservedPose(); ok {
		t.Errorf("Expected no observed pose before first observation")
	}
}

func TestTrackerLastWriteWins(t *testing.T) {
	tr := NewTracker(GoalPose{})

	for i := 1; i <= 5; i++ {
		if err := tr.UpdateGoal(GoalPose{X: float64(i), Y: float64(-i)}); err != nil {
			t.Fatalf("UpdateGoal failed: %v", err)
		}
	}
	if got := tr.Goal(); got.X != 5 || got.Y != -5 {
		t.Errorf("Expected last goal (5, -5), got %+v", got)
	}

	if err := tr.UpdateTilt(0.3); err != nil {
		t.Fatalf("UpdateTilt failed: %v", err)
	}
	if err := tr.UpdateTilt(-0.2); err != nil {
		t.Fatalf("UpdateTilt failed: %v", err)
	}
	if tr.Tilt() != -0.2 {
		t.Errorf("Expected last tilt -0.2, got %v", tr.Tilt())
	}
}

func TestTrackerRejectsNonFinite(t *testing.T) {
	tr := NewTracker(GoalPose{X: 1, Y: 2})

	cases := []GoalPose{
		{X: math.NaN(), Y: 0},
		{X: 0, Y: math.NaN()},
		{X: math.Inf(1), Y: 0},
		{X: 0, Y: math.Inf(-1)},
	}
	for _, g := range cases {
		if err := tr.UpdateGoal(g); !errors.Is(err, ErrNotFinite) {
			t.Errorf("Expected ErrNotFinite for goal %+v, got %v", g, err)
		}
	}
	if got := tr.Goal(); got.X != 1 || got.Y != 2 {
		t.Errorf("Expected previous goal to be retained after rejected updates, got %+v", got)
	}

	if err := tr.UpdateTilt(math.NaN()); !errors.Is(err, ErrNotFinite) {
		t.Errorf("Expected ErrNotFinite for NaN tilt, got %v", err)
	}
	if err := tr.ObservePose(geometry.Pose2D{Theta: math.Inf(1)}); !errors.Is(err, ErrNotFinite) {
		t.Errorf("Expected ErrNotFinite for infinite observed theta, got %v", err)
	}
	if _, ok := tr.ObservedPose(); ok {
		t.Errorf("Expected rejected observation to leave no observed pose")
	}
}

func TestTrackerObservePose(t *testing.T) {
	tr := NewTracker(GoalPose{})

	p := geometry.Pose2D{X: 4.2, Y: -0.5, Theta: 1.1}
	if err := tr.ObservePose(p); err != nil {
		t.Fatalf("ObservePose failed: %v", err)
	}

	got, ok := tr.ObservedPose()
	if !ok {
		t.Fatalf("Expected observed pose after ObservePose")
	}
	if got != p {
		t.Errorf("Expected observed pose %+v, got %+v", p, got)
	}
}

// Goals written concurrently must always be read whole: a snapshot may
// hold any written goal, never a mix of two.
func TestTrackerNoTornReads(t *testing.T) {
	tr := NewTracker(GoalPose{})

	var wg sync.WaitGroup
	stop := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		i := 0
		for {
			select {
			case <-stop:
				return
			default:
			}
			v := float64(i % 100)
			_ = tr.UpdateGoal(GoalPose{X: v, Y: -v})
			i++
		}
	}()

	for i := 0; i < 10000; i++ {
		goal, _ := tr.Snapshot()
		if goal.X != -goal.Y {
			t.Fatalf("Torn read: got goal %+v", goal)
		}
	}

	close(stop)
	wg.Wait()
}
