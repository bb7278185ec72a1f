package motion

import (
	"errors"
	"sync"
	"time"

	"github.com/open-rover/simnode/pkg/frames"
	customlog "github.com/open-rover/simnode/pkg/log"
)

// State is the scheduler lifecycle state.
type State int

const (
	Idle State = iota
	Running
	Stopped
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case Idle:
		return "IDLE"
	case Running:
		return "RUNNING"
	case Stopped:
		return "STOPPED"
	}
	return "UNKNOWN"
}

var (
	// ErrNotIdle is returned when Start is called on a scheduler that
	// has already started or stopped.
	ErrNotIdle = errors.New("scheduler is not idle")
)

// Snapshot is the consistent output bundle of one tick. All fields are
// derived from the same post-step robot state.
type Snapshot struct {
	Stamp     time.Time
	State     RobotState
	Goal      GoalPose
	Transform frames.Stamped
}

// Emitter receives the per-tick snapshot bundle. Implementations must
// treat one call as one atomic bundle.
type Emitter interface {
	EmitSnapshot(snap Snapshot)
}

// Scheduler drives the model once per fixed interval while Running.
// Idle -> Running on Start; Running -> Stopped on Stop (terminal). Stop
// is safe at any point, including mid-tick: the in-flight tick finishes
// before the transition completes.
type Scheduler struct {
	mu      sync.Mutex
	state   State
	model   *Model
	tracker *Tracker
	tree    *frames.Tree
	emitter Emitter
	logger  customlog.Logger

	interval time.Duration
	stop     chan struct{}
	done     chan struct{}
}

// NewScheduler wires the loop components together. The interval derives
// from the model's DT.
func NewScheduler(model *Model, tracker *Tracker, tree *frames.Tree, emitter Emitter, logger customlog.Logger) *Scheduler {
	return &Scheduler{
		state:    Idle,
		model:    model,
		tracker:  tracker,
		tree:     tree,
		emitter:  emitter,
		logger:   logger,
		interval: time.Duration(model.Params().DT * float64(time.Second)),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start transitions Idle -> Running and launches the tick loop.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Idle {
		return ErrNotIdle
	}
	s.state = Running
	s.logger.Infof("Scheduler running at %v per tick", s.interval)

	go s.run()
	return nil
}

// Stop transitions to Stopped and waits for the in-flight tick, if any,
// to complete. Safe to call more than once and from any state.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	prev := s.state
	if prev == Stopped {
		s.mu.Unlock()
		return
	}
	s.state = Stopped
	s.mu.Unlock()

	if prev == Running {
		close(s.stop)
		<-s.done
	}
	s.logger.Infof("Scheduler stopped")
}

// State returns the current lifecycle state.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Scheduler) run() {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case now := <-ticker.C:
			s.tick(now)
		}
	}
}

// tick performs one motion/frame update and emits the snapshot bundle.
// Every output is derived from the state after this tick's Step.
func (s *Scheduler) tick(stamp time.Time) {
	goal, tilt := s.tracker.Snapshot()
	s.model.Step(goal, tilt)
	st := s.model.State()

	tf := s.tree.OdomToBase(st.Pose, st.Pose.Theta, stamp)

	s.emitter.EmitSnapshot(Snapshot{
		Stamp:     stamp,
		State:     st,
		Goal:      goal,
		Transform: tf,
	})
}
