package leader

import "time"

const (
	// defaultSessionTimeout is the zookeeper session ttl; an ephemeral
	// election node outlives a disconnect for at most this long.
	defaultSessionTimeout = 15 * time.Second
	// defaultConnTimeout bounds the initial connect to the ensemble.
	defaultConnTimeout = 1 * time.Second
	// Window for the cooperative backoff before rejoining the election
	// after a failed BecomeLeader callback, so that other candidates
	// are preferentially chosen next.
	defaultBackoffMin = 1 * time.Second
	defaultBackoffMax = 5 * time.Second
)

// ElectionConfig is config related to leader election of this service.
type ElectionConfig struct {
	// A comma separated list of ZK servers to use for leader election
	ZKServers []string `yaml:"zk_servers"`
	// The root path in ZK to use for role leader election. This will
	// be something like /druid/YOURCLUSTERHERE
	Root string `yaml:"root"`
	// Session ttl for the zookeeper connection
	SessionTimeout time.Duration `yaml:"session_timeout"`
	// How long to wait for the initial connection to the ensemble
	ConnectionTimeout time.Duration `yaml:"connection_timeout"`
	// Bounds of the randomized wait before rejoining the election when
	// a BecomeLeader callback fails
	BackoffMin time.Duration `yaml:"backoff_min"`
	BackoffMax time.Duration `yaml:"backoff_max"`
}

// normalize fills in defaults for unset durations.
func (c ElectionConfig) normalize() ElectionConfig {
	if c.SessionTimeout <= 0 {
		c.SessionTimeout = defaultSessionTimeout
	}
	if c.ConnectionTimeout <= 0 {
		c.ConnectionTimeout = defaultConnTimeout
	}
	if c.BackoffMin <= 0 {
		c.BackoffMin = defaultBackoffMin
	}
	if c.BackoffMax <= c.BackoffMin {
		c.BackoffMax = c.BackoffMin + (defaultBackoffMax - defaultBackoffMin)
	}
	return c
}
