package relay

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRegistry(t *testing.T) {
	t.Run("register and lookup", func(t *testing.T) {
		reg := NewRegistry()
		server, _ := newSocketPair(t)
		ch := NewChannel(1, server)
		defer ch.Close()

		reg.Register(1, ch)

		assert.Same(t, ch, reg.Lookup(1))
		assert.True(t, reg.IsOnline(1))
		assert.False(t, reg.IsOnline(2))
		assert.Equal(t, 1, reg.Count())
	})

	t.Run("registering again closes the replaced channel", func(t *testing.T) {
		reg := NewRegistry()
		serverA, _ := newSocketPair(t)
		serverB, _ := newSocketPair(t)
		chA := NewChannel(1, serverA)
		chB := NewChannel(1, serverB)
		defer chB.Close()

		reg.Register(1, chA)
		reg.Register(1, chB)

		assert.Same(t, chB, reg.Lookup(1))
		select {
		case <-chA.Done():
		case <-time.After(time.Second):
			t.Fatal("replaced channel should be closed")
		}
	})

	t.Run("stale unregister is a no-op", func(t *testing.T) {
		reg := NewRegistry()
		serverA, _ := newSocketPair(t)
		serverB, _ := newSocketPair(t)
		chA := NewChannel(1, serverA)
		chB := NewChannel(1, serverB)
		defer chB.Close()

		reg.Register(1, chA)
		reg.Register(1, chB)

		// The replaced channel's teardown must not evict the newer one.
		assert.False(t, reg.Unregister(1, chA))
		assert.Same(t, chB, reg.Lookup(1))
		assert.True(t, reg.IsOnline(1))
	})

	t.Run("unregister removes the live channel", func(t *testing.T) {
		reg := NewRegistry()
		server, _ := newSocketPair(t)
		ch := NewChannel(1, server)
		defer ch.Close()

		reg.Register(1, ch)

		assert.True(t, reg.Unregister(1, ch))
		assert.Nil(t, reg.Lookup(1))
		assert.False(t, reg.IsOnline(1))
		assert.Equal(t, 0, reg.Count())
	})
}
