package leader

import (
	"sync"
	"time"

	"github.com/docker/leadership"
	"github.com/docker/libkv/store"
	"github.com/docker/libkv/store/zookeeper"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/uber-go/tally"
)

// Observer watches the election for a role from the outside: it never
// campaigns, it only reports who the leader is. Useful for followers
// that need to locate the leader to proxy requests to it.
type Observer interface {
	CurrentLeader() (string, error)
	Start() error
	Stop()
}

type observer struct {
	sync.Mutex
	metrics  observerMetrics
	follower *leadership.Follower
	role     string
	callback func(string) error
	leader   string
	running  bool
	stopChan chan struct{}
}

// NewObserver creates a new Observer that will watch leadership for
// `role` and call newLeaderCallback whenever it changes hands.
func NewObserver(
	cfg ElectionConfig,
	scope tally.Scope,
	role string,
	newLeaderCallback func(string) error) (Observer, error) {

	log.WithField("role", role).Debug("Creating new observer of election")
	cfg = cfg.normalize()
	client, err := zookeeper.New(
		cfg.ZKServers,
		&store.Config{ConnectionTimeout: cfg.ConnectionTimeout},
	)
	if err != nil {
		return nil, err
	}
	obs := observer{
		role:     role,
		metrics:  newObserverMetrics(scope, role),
		callback: newLeaderCallback,
		follower: leadership.NewFollower(client, electionKey(cfg.Root, role)),
		stopChan: make(chan struct{}),
	}
	return &obs, nil
}

// Start begins observing the election in a background goroutine. When
// a new leader is detected, the callback is invoked.
func (o *observer) Start() error {
	o.Lock()
	defer o.Unlock()
	if o.running {
		return errors.New("already observing election, cannot Start again")
	}
	o.running = true
	o.metrics.Start.Inc(1)
	o.metrics.Running.Update(1)

	log.WithField("role", o.role).Info("Watching for leadership changes")
	go o.observe()
	return nil
}

// Stop cancels the observation and terminates the background
// goroutine.
func (o *observer) Stop() {
	o.Lock()
	defer o.Unlock()
	if o.running {
		o.running = false
		close(o.stopChan)
		o.follower.Stop()
		o.metrics.Stop.Inc(1)
		o.metrics.Running.Update(0)
	}
}

// CurrentLeader returns the most recently observed leader. It returns
// an error if the observer is not running.
func (o *observer) CurrentLeader() (string, error) {
	o.Lock()
	defer o.Unlock()
	if o.running {
		return o.leader, nil
	}
	return "", errors.New("observer is not running")
}

// observe repeatedly calls waitForEvent, retrying when errors are
// encountered, until stopped.
func (o *observer) observe() {
	for o.isRunning() {
		err := o.waitForEvent()
		if err != nil {
			log.WithField("role", o.role).WithError(err).
				Error("Failure observing election, retrying")
		}
		select {
		case <-o.stopChan:
			return
		case <-time.After(campaignRetry):
		}
	}
}

func (o *observer) isRunning() bool {
	o.Lock()
	defer o.Unlock()
	return o.running
}

// waitForEvent blocks until a leadership change or an error is
// received from the follower. It returns on error so the caller can
// retry the watch.
func (o *observer) waitForEvent() error {
	leaderCh, errCh := o.follower.FollowElection()
	for {
		select {
		case <-o.stopChan:
			return nil
		case leader, ok := <-leaderCh:
			if !ok {
				return nil
			}
			o.Lock()
			if leader == o.leader {
				o.Unlock()
				continue
			}
			log.WithFields(log.Fields{"role": o.role, "leader": leader}).
				Info("New leader detected")
			o.metrics.LeaderChanged.Inc(1)
			o.leader = leader
			err := o.callback(leader)
			o.Unlock()
			if err != nil {
				log.WithFields(log.Fields{"role": o.role, "error": err}).
					Error("NewLeaderCallback failed")
			}
		case err := <-errCh:
			o.metrics.Error.Inc(1)
			return err
		}
	}
}
