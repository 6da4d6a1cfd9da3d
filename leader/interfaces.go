package leader

// Listener is the pair of callbacks an application registers with a
// Selector to be told when this process gains or loses leadership.
type Listener interface {
	// BecomeLeader is invoked when this process becomes the leader for
	// the role. Returning an error is treated as a failed leadership
	// assumption: the selector steps down, replaces its latch and
	// rejoins the election after a randomized backoff.
	BecomeLeader() error
	// StopBeingLeader is invoked when this process is no longer the
	// leader. Errors are logged only; leadership is already gone at the
	// coordination service, so there is nothing left to recover.
	StopBeingLeader() error
}

// Selector runs the leadership election for one role and drives a
// registered Listener. A Selector is single-shot: it is registered at
// most once and once unregistered it stays stopped.
type Selector interface {
	// RegisterListener installs the listener and joins the election.
	// It blocks until the join has been issued, not until leadership
	// is decided.
	RegisterListener(l Listener) error
	// UnregisterListener leaves the election and shuts down callback
	// delivery, discarding callbacks that have not yet been delivered.
	UnregisterListener() error
	// IsLeader reports whether this process currently believes itself
	// to be the leader. Never blocks.
	IsLeader() bool
	// LocalTerm returns the local generation counter, incremented each
	// time this process assumes leadership. It is not a global epoch.
	LocalTerm() int
	// GetCurrentLeader returns the candidate identity the coordination
	// service currently recognizes as leader, or "" when none is
	// recognized. The error is non-nil only when the query itself
	// fails; the two cases are not equivalent.
	GetCurrentLeader() (string, error)
}

// Participant is a candidate as seen by the coordination service.
type Participant struct {
	ID     string
	Leader bool
}

// LatchListener receives rank-change notifications from a Latch. The
// latch may invoke these from its own goroutines; implementations are
// expected to do their own serialization.
type LatchListener interface {
	// IsLeader is invoked when this candidate becomes highest-ranked.
	IsLeader()
	// NotLeader is invoked when this candidate is no longer
	// highest-ranked.
	NotLeader()
}

// Latch is one disposable election handle bound to a path and a
// candidate identity. A superseded latch is closed and must not affect
// state owned by its replacement.
type Latch interface {
	// Start joins the election. It fails if the join cannot be issued
	// or if the latch was already started or closed.
	Start() error
	// Close leaves the election. Close failures are logged by callers,
	// never propagated.
	Close() error
	// Leader returns the participant currently recognized as leader. A
	// zero Participant with a nil error means no leader is recognized.
	Leader() (Participant, error)
}

// ConnectionState is the coarse session state of the coordination
// client, as seen by the connection-state monitor.
type ConnectionState int

const (
	// Connected is emitted when the session is first established.
	Connected ConnectionState = iota
	// Suspended means the connection dropped; the session may still be
	// alive on the server side but cannot be trusted.
	Suspended
	// Lost means the session expired and every ephemeral registration
	// made under it is gone.
	Lost
	// Reconnected means the connection was re-established after a
	// Suspended or Lost.
	Reconnected
)

func (s ConnectionState) String() string {
	switch s {
	case Connected:
		return "connected"
	case Suspended:
		return "suspended"
	case Lost:
		return "lost"
	case Reconnected:
		return "reconnected"
	default:
		return "unknown"
	}
}

// Client is the coordination-service client a Selector builds latches
// from. A client is bound to one election path and candidate identity.
type Client interface {
	// NewLatch returns a fresh, unstarted latch delivering rank changes
	// to l.
	NewLatch(l LatchListener) (Latch, error)
	// ConnectionEvents is the stream of session-state transitions. The
	// channel is closed when the client is closed.
	ConnectionEvents() <-chan ConnectionState
	// Close tears down the client's connections.
	Close()
}
