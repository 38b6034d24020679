package memlog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/casualjim/loom/durable"
)

func TestHost_FreshLogIsLive(t *testing.T) {
	host := New()
	assert.True(t, host.IsLive())
}

func TestHost_AttachedReplaysThenGoesLive(t *testing.T) {
	log := NewLog()
	live := Attach(log)
	live.Begin("ns", "a", durable.ReadRemote).Persist([]byte(`1`), []byte(`{"ok":1}`))
	live.Begin("ns", "b", durable.ReadRemote).Persist([]byte(`2`), []byte(`{"ok":2}`))

	host := Attach(log)
	assert.False(t, host.IsLive())

	raw, err := host.Begin("ns", "a", durable.ReadRemote).Replay()
	require.NoError(t, err)
	assert.Equal(t, `{"ok":1}`, string(raw))
	assert.False(t, host.IsLive())

	raw, err = host.Begin("ns", "b", durable.ReadRemote).Replay()
	require.NoError(t, err)
	assert.Equal(t, `{"ok":2}`, string(raw))
	assert.True(t, host.IsLive(), "live once the recorded tail is consumed")
}

func TestHost_ReplayValidatesIdentity(t *testing.T) {
	log := NewLog()
	live := Attach(log)
	live.Begin("ns", "a", durable.ReadRemote).Persist(nil, []byte(`{"ok":1}`))

	host := Attach(log)
	_, err := host.Begin("ns", "a", durable.WriteRemote).Replay()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "replay mismatch")
}

func TestHost_PersistNothingNests(t *testing.T) {
	host := New()
	host.WithPersistenceLevel(durable.PersistNothing, func() {
		host.Begin("ns", "hidden", durable.ReadRemote).Persist(nil, []byte(`{"ok":1}`))
		host.WithPersistenceLevel(durable.PersistNothing, func() {
			host.Begin("ns", "deeper", durable.ReadRemote).Persist(nil, []byte(`{"ok":2}`))
		})
		host.Begin("ns", "still-hidden", durable.ReadRemote).Persist(nil, []byte(`{"ok":3}`))
	})
	host.Begin("ns", "visible", durable.ReadRemote).Persist(nil, []byte(`{"ok":4}`))

	entries := host.Log().Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "visible", entries[0].Name)
}
