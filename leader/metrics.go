package leader

import (
	"github.com/uber-go/tally"
)

type selectorMetrics struct {
	Start                   tally.Counter
	Stop                    tally.Counter
	GainedLeadership        tally.Counter
	LostLeadership          tally.Counter
	BecomeLeaderFailures    tally.Counter
	StopBeingLeaderFailures tally.Counter
	LatchReplaced           tally.Counter
	SessionResets           tally.Counter
	DuplicateNotifications  tally.Counter
	StaleNotifications      tally.Counter
	Error                   tally.Counter
	IsLeader                tally.Gauge
	Term                    tally.Gauge
	Running                 tally.Gauge
	Zombie                  tally.Gauge
}

type observerMetrics struct {
	Start         tally.Counter
	Stop          tally.Counter
	LeaderChanged tally.Counter
	Running       tally.Gauge
	Error         tally.Counter
}

func newSelectorMetrics(scope tally.Scope, hostname string) selectorMetrics {
	s := scope.Tagged(map[string]string{"hostname": hostname})

	return selectorMetrics{
		Start:                   s.Counter("start"),
		Stop:                    s.Counter("stop"),
		GainedLeadership:        s.Counter("gained_leadership"),
		LostLeadership:          s.Counter("lost_leadership"),
		BecomeLeaderFailures:    s.Counter("become_leader_failures"),
		StopBeingLeaderFailures: s.Counter("stop_being_leader_failures"),
		LatchReplaced:           s.Counter("latch_replaced"),
		SessionResets:           s.Counter("session_resets"),
		DuplicateNotifications:  s.Counter("duplicate_notifications"),
		StaleNotifications:      s.Counter("stale_notifications"),
		Error:                   s.Counter("error"),
		IsLeader:                s.Gauge("is_leader"),
		Term:                    s.Gauge("term"),
		Running:                 s.Gauge("running"),
		Zombie:                  s.Gauge("zombie"),
	}
}

func newObserverMetrics(scope tally.Scope, role string) observerMetrics {
	s := scope.Tagged(map[string]string{"role": role})

	return observerMetrics{
		Start:         s.Counter("start"),
		Stop:          s.Counter("stop"),
		LeaderChanged: s.Counter("leader_changed"),
		Running:       s.Gauge("running"),
		Error:         s.Counter("error"),
	}
}
