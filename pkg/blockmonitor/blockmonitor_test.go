package blockmonitor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStateString(t *testing.T) {
	cases := []struct {
		s    State
		want string
	}{
		{Disconnected, "disconnected"},
		{ConnectingWS, "connectingWS"},
		{StreamingWS, "streamingWS"},
		{PollingHTTP, "pollingHTTP"},
		{State(99), "unknown"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, c.s.String())
	}
}

func TestStaleThresholdFloorsAtThirtySeconds(t *testing.T) {
	m := New(1, nil, WithExpectedBlockTime(1*time.Second))
	assert.Equal(t, 30*time.Second, m.staleThreshold())

	m2 := New(1, nil, WithExpectedBlockTime(10*time.Second))
	assert.Equal(t, 100*time.Second, m2.staleThreshold())
}

func TestPollIntervalFloorsAtOneSecond(t *testing.T) {
	m := New(1, nil, WithExpectedBlockTime(500*time.Millisecond))
	assert.Equal(t, time.Second, m.pollInterval())

	m2 := New(1, nil, WithExpectedBlockTime(10*time.Second))
	assert.Equal(t, 5*time.Second, m2.pollInterval())
}

func TestEmitOnlyAdvancesOnIncreasingBlockNumber(t *testing.T) {
	m := New(1, nil)
	m.emit(10)
	m.emit(5) // stale, must be dropped
	m.emit(11)

	got := []uint64{<-m.Blocks(), <-m.Blocks()}
	assert.Equal(t, []uint64{10, 11}, got)
}

func TestEmitDropsOldestOnFullBuffer(t *testing.T) {
	m := New(1, nil)
	for b := uint64(1); b <= uint64(cap(m.blocks)+5); b++ {
		m.emit(b)
	}
	// the channel never blocks the producer even when the consumer never drains
	assert.LessOrEqual(t, len(m.blocks), cap(m.blocks))
}

func TestSetStateAndStateAreConsistent(t *testing.T) {
	m := New(1, nil)
	assert.Equal(t, Disconnected, m.State())
	m.setState(StreamingWS)
	assert.Equal(t, StreamingWS, m.State())
}
