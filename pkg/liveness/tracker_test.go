package liveness

import (
	"testing"
	"time"

	"github.com/edgeorchestra/orchestrator/pkg/clock"
	"github.com/edgeorchestra/orchestrator/pkg/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIngestRejectsNonIncreasingSequence(t *testing.T) {
	fc := clock.NewFake(time.Unix(0, 0))
	tr := New(fc, time.Second)

	require.True(t, tr.Ingest("d1", 5, protocol.Metrics{}))
	require.False(t, tr.Ingest("d1", 5, protocol.Metrics{}), "equal sequence must be rejected")
	require.False(t, tr.Ingest("d1", 3, protocol.Metrics{}), "backwards sequence must be rejected")
	require.True(t, tr.Ingest("d1", 6, protocol.Metrics{}))
}

func TestIsLiveAfterTTLExpires(t *testing.T) {
	fc := clock.NewFake(time.Unix(0, 0))
	tr := New(fc, time.Second)

	tr.Ingest("d1", 1, protocol.Metrics{})
	assert.True(t, tr.IsLive("d1"))

	fc.Advance(3 * time.Second)
	assert.False(t, tr.IsLive("d1"), "TTL is 3x heartbeat interval")
}

func TestCommandQueueFIFOAndPop(t *testing.T) {
	fc := clock.NewFake(time.Unix(0, 0))
	tr := New(fc, time.Second)

	tr.PushCommand("d1", protocol.Command{Type: protocol.CommandAck})
	tr.PushCommand("d1", protocol.Command{Type: protocol.CommandStartTraining})

	cmd, ok := tr.PopCommand("d1")
	require.True(t, ok)
	assert.Equal(t, protocol.CommandAck, cmd.Type)

	cmd, ok = tr.PopCommand("d1")
	require.True(t, ok)
	assert.Equal(t, protocol.CommandStartTraining, cmd.Type)

	_, ok = tr.PopCommand("d1")
	assert.False(t, ok)
}

func TestCommandQueueOverflowDropsOldest(t *testing.T) {
	fc := clock.NewFake(time.Unix(0, 0))
	tr := New(fc, time.Second)

	for i := 0; i < commandQueueCapacity+5; i++ {
		tr.PushCommand("d1", protocol.Command{Type: protocol.CommandUpdateInterval, Parameters: map[string]string{"n": string(rune('a' + i%26))}})
	}

	count := 0
	for {
		if _, ok := tr.PopCommand("d1"); !ok {
			break
		}
		count++
	}
	assert.Equal(t, commandQueueCapacity, count)
}

func TestEvictRemovesLiveKey(t *testing.T) {
	fc := clock.NewFake(time.Unix(0, 0))
	tr := New(fc, time.Second)

	tr.Ingest("d1", 1, protocol.Metrics{})
	require.True(t, tr.IsLive("d1"))

	tr.Evict("d1")
	assert.False(t, tr.IsLive("d1"))
}
