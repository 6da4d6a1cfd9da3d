package leader

import (
	"testing"
	"time"

	"github.com/docker/leadership"
	"github.com/docker/libkv/store"
	libkvmock "github.com/docker/libkv/store/mock"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/uber-go/tally"
)

func TestObserver(t *testing.T) {
	// the zkservers are replaced with the mock libkv client
	key := electionKey("/druid/fake", "coordinator")
	events := make(chan string)

	kv, err := libkvmock.New([]string{}, nil)
	assert.NoError(t, err)
	assert.NotNil(t, kv)

	mockStore := kv.(*libkvmock.Mock)
	kvCh := make(chan *store.KVPair)
	var mockKVCh <-chan *store.KVPair = kvCh
	mockStore.On("Watch", key, mock.Anything).Return(mockKVCh, nil)

	o := observer{
		role:     "coordinator",
		metrics:  newObserverMetrics(tally.NoopScope, "coordinator"),
		follower: leadership.NewFollower(mockStore, key),
		stopChan: make(chan struct{}),
		callback: func(leader string) error {
			log.Infof("NewLeaderCallback called with %s", leader)
			events <- "new_leader:" + leader
			return nil
		},
	}

	// simulate leader updates, with duplicates
	go func() {
		updates := []string{"leader1", "leader2", "leader2", "leader3", "leader3", "leader1", "leader2"}
		for _, u := range updates {
			kvCh <- &store.KVPair{Key: key, Value: []byte(u)}
			// a bit of delay between leader changes, to sidestep
			// nondeterministic ordering when they land "at the same time"
			time.Sleep(10 * time.Millisecond)
		}
	}()

	_, err = o.CurrentLeader()
	assert.Error(t, err)

	assert.NoError(t, o.Start())

	// we expect to be notified of leadership changes in order, without dupes
	expected := []string{"leader1", "leader2", "leader3", "leader1", "leader2"}
	for _, ex := range expected {
		assert.Equal(t, "new_leader:"+ex, <-events)
		leader, err := o.CurrentLeader()
		assert.NoError(t, err)
		assert.Equal(t, ex, leader)
	}

	o.Stop()

	// once stopped, leadership can no longer be observed
	_, err = o.CurrentLeader()
	assert.Error(t, err)
}

func TestObserverDoubleStart(t *testing.T) {
	key := electionKey("/druid/fake", "coordinator")

	kv, err := libkvmock.New([]string{}, nil)
	assert.NoError(t, err)
	mockStore := kv.(*libkvmock.Mock)
	kvCh := make(chan *store.KVPair)
	var mockKVCh <-chan *store.KVPair = kvCh
	mockStore.On("Watch", key, mock.Anything).Return(mockKVCh, nil)

	o := observer{
		role:     "coordinator",
		metrics:  newObserverMetrics(tally.NoopScope, "coordinator"),
		follower: leadership.NewFollower(mockStore, key),
		stopChan: make(chan struct{}),
		callback: func(string) error { return nil },
	}

	assert.NoError(t, o.Start())
	assert.Error(t, o.Start())
	o.Stop()
	close(kvCh)
}
