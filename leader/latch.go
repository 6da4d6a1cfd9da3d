package leader

import (
	"path"
	"strings"
	"sync"
	"time"

	"github.com/docker/leadership"
	"github.com/docker/libkv/store"
	"github.com/docker/libkv/store/zookeeper"
	"github.com/pkg/errors"
	"github.com/samuel/go-zookeeper/zk"
	log "github.com/sirupsen/logrus"

	"github.com/razinbouzar/druid/common/lifecycle"
)

const (
	// campaignRetry is how long to wait before restarting campaigning
	// for leadership on connection error
	campaignRetry = 1 * time.Second
	// connEventBuffer keeps a slow consumer from blocking the session
	// event pump; overflow is dropped with a warning
	connEventBuffer = 16
)

// zkClient implements Client on a ZooKeeper ensemble. The election
// itself rides on a kv lock; connection-state notifications come from
// the raw session event stream.
type zkClient struct {
	kv     store.Store
	conn   *zk.Conn
	key    string
	id     string
	ttl    time.Duration
	states chan ConnectionState
}

// NewZKClient connects to the configured ensemble and returns a Client
// bound to the election path for role and the given candidate
// identity.
func NewZKClient(cfg ElectionConfig, role string, id string) (Client, error) {
	cfg = cfg.normalize()

	kv, err := zookeeper.New(
		cfg.ZKServers,
		&store.Config{ConnectionTimeout: cfg.ConnectionTimeout},
	)
	if err != nil {
		return nil, errors.Wrap(err, "connecting election store")
	}

	conn, events, err := zk.Connect(cfg.ZKServers, cfg.SessionTimeout)
	if err != nil {
		kv.Close()
		return nil, errors.Wrap(err, "connecting session watcher")
	}

	c := &zkClient{
		kv:     kv,
		conn:   conn,
		key:    electionKey(cfg.Root, role),
		id:     id,
		ttl:    cfg.SessionTimeout,
		states: make(chan ConnectionState, connEventBuffer),
	}
	go c.pumpSessionEvents(events)
	return c, nil
}

// electionKey returns the kv key of the leader node for a role.
// NOTE: remember, there cannot be a leading / for libkv
func electionKey(rootPath string, role string) string {
	return strings.TrimPrefix(path.Join(rootPath, role, "leader"), "/")
}

func (c *zkClient) NewLatch(l LatchListener) (Latch, error) {
	if l == nil {
		return nil, errors.New("latch listener is required")
	}
	return &zkLatch{
		candidate: leadership.NewCandidate(c.kv, c.key, c.id, c.ttl),
		kv:        c.kv,
		key:       c.key,
		listener:  l,
		lc:        lifecycle.NewLifeCycle(),
	}, nil
}

func (c *zkClient) ConnectionEvents() <-chan ConnectionState {
	return c.states
}

// Close tears down both connections. The session event channel closes
// once the underlying zk connection drains.
func (c *zkClient) Close() {
	c.conn.Close()
	c.kv.Close()
}

// pumpSessionEvents translates raw zk session events into the coarse
// states the connection-state monitor understands.
func (c *zkClient) pumpSessionEvents(events <-chan zk.Event) {
	hadSession := false
	for ev := range events {
		if ev.Type != zk.EventSession {
			continue
		}

		var state ConnectionState
		switch ev.State {
		case zk.StateHasSession:
			if hadSession {
				state = Reconnected
			} else {
				state = Connected
				hadSession = true
			}
		case zk.StateDisconnected:
			state = Suspended
		case zk.StateExpired:
			state = Lost
		default:
			continue
		}

		select {
		case c.states <- state:
		default:
			log.WithField("state", state.String()).
				Warn("Dropping connection event, consumer too slow")
		}
	}
	close(c.states)
}

// zkLatch is one disposable election handle. It campaigns through a kv
// lock and forwards only true rank transitions to its listener.
type zkLatch struct {
	sync.Mutex
	candidate *leadership.Candidate
	kv        store.Store
	key       string
	listener  LatchListener
	lc        lifecycle.LifeCycle
	started   bool
	closed    bool
}

// Start joins the election. Campaigning itself is asynchronous; Start
// only fails if this latch was already started or closed.
func (l *zkLatch) Start() error {
	l.Lock()
	defer l.Unlock()
	if l.closed {
		return errors.New("latch is closed")
	}
	if l.started {
		return errors.New("latch already started")
	}
	l.started = true
	l.lc.Start()
	go l.campaign()
	return nil
}

// Close takes this latch out of the election. Safe to call on a latch
// that was never started, and idempotent.
func (l *zkLatch) Close() error {
	l.Lock()
	if l.closed {
		l.Unlock()
		return nil
	}
	l.closed = true
	started := l.started
	l.Unlock()

	if !started {
		return nil
	}

	l.lc.Stop()
	l.candidate.Stop()
	// resign asynchronously to avoid deadlocking
	go l.candidate.Resign()
	return nil
}

// Leader reads the election key. A missing or empty key means no
// leader is currently recognized, which is not an error.
func (l *zkLatch) Leader() (Participant, error) {
	pair, err := l.kv.Get(l.key)
	if err == store.ErrKeyNotFound {
		return Participant{}, nil
	}
	if err != nil {
		return Participant{}, errors.Wrap(err, "reading election key")
	}
	if pair == nil || len(pair.Value) == 0 {
		return Participant{}, nil
	}
	return Participant{ID: string(pair.Value), Leader: true}, nil
}

// campaign runs the election loop until the latch is closed, retrying
// on connection errors. The underlying lock re-announces the current
// rank whenever the loop restarts, so transitions are deduplicated
// before they reach the listener.
func (l *zkLatch) campaign() {
	stopCh := l.lc.StopCh()
	defer l.lc.StopComplete()

	elected := false

campaign:
	for {
		electionCh, errCh := l.candidate.RunForElection()
		for {
			select {
			case <-stopCh:
				return
			case isElected, ok := <-electionCh:
				if !ok {
					return
				}
				if isElected == elected {
					continue
				}
				elected = isElected
				if isElected {
					l.listener.IsLeader()
				} else {
					l.listener.NotLeader()
				}
			case err := <-errCh:
				if err == nil {
					// shutdown signal from the candidate
					return
				}
				log.WithField("key", l.key).WithError(err).
					Error("Error campaigning in election, retrying")
				select {
				case <-stopCh:
					return
				case <-time.After(campaignRetry):
				}
				continue campaign
			}
		}
	}
}
