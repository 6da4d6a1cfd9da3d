package leader

import (
	"os"
	"sync"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/uber-go/atomic"
	"github.com/uber-go/tally"

	"github.com/razinbouzar/druid/common/backoff"
	"github.com/razinbouzar/druid/common/lifecycle"
)

// selectorState tracks the single-shot lifecycle of a selector.
type selectorState int

const (
	stateNotStarted selectorState = iota
	stateStarting
	stateRunning
	stateStopping
	stateStopped
)

var (
	// ErrAlreadyStarted is returned by RegisterListener when the
	// selector lifecycle has already left its initial state. A selector
	// cannot be registered twice, nor restarted after it stops.
	ErrAlreadyStarted = errors.New("selector already started")
	// ErrNotRunning is returned by UnregisterListener when the selector
	// was never registered or has already been stopped.
	ErrNotRunning = errors.New("selector is not running")
)

// selector drives the local leadership state machine for one role. All
// state-mutating work that reaches the listener is serialized through a
// single-worker executor; the leadership flag and term are written only
// from there and read lock-free everywhere else.
type selector struct {
	sync.Mutex

	role    string
	client  Client
	metrics selectorMetrics
	policy  backoff.RetryPolicy

	state    selectorState
	listener Listener
	exec     *serialExecutor
	monitor  lifecycle.LifeCycle

	// latch is the currently installed handle. gen tags it so an
	// in-flight callback from a superseded handle can be recognized
	// and dropped instead of overwriting newer state.
	latch Latch
	gen   uint64

	leader atomic.Bool
	term   atomic.Int64
	zombie atomic.Bool
}

// NewSelector creates a new Selector for the given role. The initial
// latch is created here but the election is not joined until
// RegisterListener; GetCurrentLeader works either way.
func NewSelector(
	cfg ElectionConfig,
	client Client,
	parent tally.Scope,
	role string) (Selector, error) {

	if role == "" {
		return nil, errors.New("a role to run the election for is required")
	}
	cfg = cfg.normalize()

	hostname, err := os.Hostname()
	if err != nil {
		log.WithError(err).Fatal("failed to get hostname")
	}

	s := &selector{
		role:    role,
		client:  client,
		metrics: newSelectorMetrics(parent.SubScope("election"), hostname),
		policy:  backoff.NewJitteredPolicy(cfg.BackoffMin, cfg.BackoffMax),
		monitor: lifecycle.NewLifeCycle(),
	}

	s.Lock()
	s.latch, err = s.newWiredLatchLocked()
	s.Unlock()
	if err != nil {
		return nil, errors.Wrap(err, "creating initial latch")
	}

	s.monitor.Start()
	go s.watchConnection()

	return s, nil
}

// RegisterListener installs the listener and joins the election. Only
// one registration attempt may proceed at a time; a concurrent or
// repeated call gets ErrAlreadyStarted. A failed registration is
// terminal: the selector moves straight to stopped.
func (s *selector) RegisterListener(l Listener) error {
	if l == nil {
		return errors.New("listener is required")
	}

	s.Lock()
	if s.state != stateNotStarted {
		s.Unlock()
		return ErrAlreadyStarted
	}
	s.state = stateStarting
	s.listener = l
	s.exec = newSerialExecutor()
	s.exec.Start()
	latch := s.latch
	s.Unlock()

	// The latch may notify synchronously once started; never hold the
	// selector mutex across the join.
	if err := latch.Start(); err != nil {
		s.Lock()
		s.state = stateStopped
		s.Unlock()
		s.exec.Stop()
		s.monitor.Stop()
		s.metrics.Error.Inc(1)
		return errors.Wrap(err, "joining election")
	}

	s.Lock()
	s.state = stateRunning
	s.Unlock()
	s.metrics.Start.Inc(1)
	s.metrics.Running.Update(1)
	log.WithField("role", s.role).Info("Joined election")
	return nil
}

// UnregisterListener leaves the election. The latch close is best
// effort and queued-but-undelivered callbacks are discarded.
func (s *selector) UnregisterListener() error {
	s.Lock()
	if s.state != stateRunning {
		s.Unlock()
		return ErrNotRunning
	}
	s.state = stateStopping
	latch := s.latch
	s.Unlock()

	closeLatch(latch, s.role)
	s.exec.Stop()
	s.monitor.Stop()

	s.Lock()
	s.state = stateStopped
	s.Unlock()

	s.leader.Store(false)
	s.metrics.IsLeader.Update(0)
	s.metrics.Stop.Inc(1)
	s.metrics.Running.Update(0)
	log.WithField("role", s.role).Info("Left election")
	return nil
}

// IsLeader returns whether this process currently believes itself to
// be the leader.
func (s *selector) IsLeader() bool {
	return s.leader.Load()
}

// LocalTerm returns the local leadership generation counter.
func (s *selector) LocalTerm() int {
	return int(s.term.Load())
}

// GetCurrentLeader asks the current latch who the coordination service
// recognizes as leader. A query failure is surfaced rather than
// reported as "no leader"; the two are not the same thing.
func (s *selector) GetCurrentLeader() (string, error) {
	s.Lock()
	latch := s.latch
	s.Unlock()

	p, err := latch.Leader()
	if err != nil {
		s.metrics.Error.Inc(1)
		return "", errors.Wrap(err, "querying current leader")
	}
	if !p.Leader {
		return "", nil
	}
	return p.ID, nil
}

// rankHandler forwards rank-change callbacks from one latch generation
// into the selector. It carries the generation it was wired for so
// deliveries from a superseded latch can be filtered out.
type rankHandler struct {
	s   *selector
	gen uint64
}

func (h *rankHandler) IsLeader()  { h.s.enqueueRankChange(h.gen, true) }
func (h *rankHandler) NotLeader() { h.s.enqueueRankChange(h.gen, false) }

// newWiredLatchLocked creates a fresh latch whose callbacks are tagged
// with the next generation. Caller must hold s.Mutex.
func (s *selector) newWiredLatchLocked() (Latch, error) {
	s.gen++
	return s.client.NewLatch(&rankHandler{s: s, gen: s.gen})
}

// replaceLatch atomically installs a freshly wired latch and closes
// the superseded one. The replacement is returned unstarted.
func (s *selector) replaceLatch() (Latch, uint64, error) {
	s.Lock()
	old := s.latch
	nl, err := s.newWiredLatchLocked()
	if err != nil {
		s.Unlock()
		return nil, 0, err
	}
	s.latch = nl
	gen := s.gen
	s.Unlock()

	s.metrics.LatchReplaced.Inc(1)
	closeLatch(old, s.role)
	return nl, gen, nil
}

// staleGen reports whether gen no longer identifies the installed
// latch, counting the dropped notification if so.
func (s *selector) staleGen(gen uint64) bool {
	s.Lock()
	defer s.Unlock()
	if gen != s.gen {
		s.metrics.StaleNotifications.Inc(1)
		log.WithFields(log.Fields{"role": s.role, "generation": gen}).
			Debug("Dropping rank change from superseded latch")
		return true
	}
	return false
}

// enqueueRankChange hands a rank-change notification to the serial
// executor. Latch goroutines must never touch leadership state
// directly.
func (s *selector) enqueueRankChange(gen uint64, elected bool) {
	s.Lock()
	exec := s.exec
	s.Unlock()
	if exec == nil {
		// no listener registered yet, nothing can act on this
		return
	}
	exec.Enqueue(func() {
		if elected {
			s.becomeLeader(gen)
		} else {
			s.stopBeingLeader(gen)
		}
	})
}

// becomeLeader handles a "you are now highest-ranked" notification.
// Runs on the executor worker, serialized with every other callback.
func (s *selector) becomeLeader(gen uint64) {
	if s.staleGen(gen) {
		return
	}
	if s.leader.Load() {
		s.metrics.DuplicateNotifications.Inc(1)
		log.WithField("role", s.role).
			Warn("Asked to become leader but already the leader, ignoring")
		return
	}

	s.leader.Store(true)
	term := s.term.Inc()
	s.metrics.GainedLeadership.Inc(1)
	s.metrics.IsLeader.Update(1)
	s.metrics.Term.Update(float64(term))
	log.WithFields(log.Fields{"role": s.role, "term": term}).
		Info("Leadership gained")

	err := s.listener.BecomeLeader()
	if err == nil {
		return
	}

	// Failed leadership assumption: step down and rejoin with a fresh
	// latch so another candidate is preferred.
	s.metrics.BecomeLeaderFailures.Inc(1)
	log.WithFields(log.Fields{"role": s.role, "term": term}).WithError(err).
		Error("BecomeLeader callback failed, relinquishing leadership")

	s.leader.Store(false)
	s.metrics.IsLeader.Update(0)

	replacement, rgen, err := s.replaceLatch()
	if err != nil {
		s.becomeZombie(errors.Wrap(err, "creating replacement latch"))
		return
	}

	// Blocking the executor worker here is intentional: no other
	// callback may be processed while recovery is pending.
	time.Sleep(backoff.NewRetrier(s.policy).NextBackOff())

	s.Lock()
	superseded := rgen != s.gen || s.state != stateRunning
	s.Unlock()
	if superseded {
		// a session reset or unregister won the race while we slept
		closeLatch(replacement, s.role)
		return
	}

	if err := replacement.Start(); err != nil {
		s.becomeZombie(errors.Wrap(err, "restarting replacement latch"))
	}
}

// stopBeingLeader handles a "you are no longer highest-ranked"
// notification. Runs on the executor worker.
func (s *selector) stopBeingLeader(gen uint64) {
	if s.staleGen(gen) {
		return
	}
	if !s.leader.Load() {
		s.metrics.DuplicateNotifications.Inc(1)
		log.WithField("role", s.role).
			Warn("Asked to stop being leader but not the leader, ignoring")
		return
	}

	s.leader.Store(false)
	s.metrics.LostLeadership.Inc(1)
	s.metrics.IsLeader.Update(0)
	log.WithField("role", s.role).Info("Leadership lost")

	if err := s.listener.StopBeingLeader(); err != nil {
		// leadership is already gone at the coordination service;
		// a local cleanup failure does not warrant re-election
		s.metrics.StopBeingLeaderFailures.Inc(1)
		log.WithFields(log.Fields{"role": s.role, "alert": true}).WithError(err).
			Error("StopBeingLeader callback failed")
	}
}

// watchConnection reacts to session-level degradation. SUSPENDED and
// LOST invalidate every rank decision made under the old session, so
// the latch is replaced synchronously here rather than deferred to the
// executor.
func (s *selector) watchConnection() {
	stopCh := s.monitor.StopCh()
	defer s.monitor.StopComplete()

	events := s.client.ConnectionEvents()
	for {
		select {
		case <-stopCh:
			return
		case state, ok := <-events:
			if !ok {
				return
			}
			switch state {
			case Suspended, Lost:
				s.handleSessionReset(state)
			case Reconnected:
				// the replacement installed on Suspended/Lost resumes
				// under the restored session, nothing to do
			}
		}
	}
}

func (s *selector) handleSessionReset(state ConnectionState) {
	s.Lock()
	running := s.state == stateRunning
	s.Unlock()
	if !running || s.zombie.Load() {
		return
	}

	s.metrics.SessionResets.Inc(1)
	log.WithFields(log.Fields{"role": s.role, "state": state.String()}).
		Warn("Coordination session no longer trustworthy, replacing latch")

	replacement, _, err := s.replaceLatch()
	if err != nil {
		s.becomeZombie(errors.Wrap(err, "creating replacement latch after session reset"))
		return
	}
	if err := replacement.Start(); err != nil {
		s.becomeZombie(errors.Wrap(err, "restarting latch after session reset"))
	}
}

// becomeZombie drops the selector out of the election permanently.
// Nothing short of restarting the process brings it back; this is the
// explicit last resort, loud enough for an operator to notice.
func (s *selector) becomeZombie(err error) {
	s.zombie.Store(true)
	s.metrics.Zombie.Update(1)
	log.WithFields(log.Fields{"role": s.role, "alert": true}).WithError(err).
		Error("Unable to rejoin the election, out of candidacy until the process restarts")
}

// closeLatch closes a latch best-effort. Close failures are logged,
// never propagated; closing a stale handle must not block recreation.
func closeLatch(l Latch, role string) {
	if l == nil {
		return
	}
	if err := l.Close(); err != nil {
		log.WithField("role", role).WithError(err).
			Warn("Failed to close superseded latch, continuing with the new one")
	}
}
