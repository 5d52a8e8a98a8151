package relay

import (
	"sync"
)

// Registry is the live map from device identity to its single open
// channel. It is the only truly shared mutable state in the broker, and
// every read-modify-write on it runs under one lock.
type Registry struct {
	mu       sync.Mutex
	channels map[int64]*Channel
}

func NewRegistry() *Registry {
	return &Registry{channels: make(map[int64]*Channel)}
}

// Register installs ch as the live channel for a device. Any previously
// registered channel is closed, so at most one channel per device is
// ever live.
func (r *Registry) Register(deviceID int64, ch *Channel) {
	r.mu.Lock()
	old := r.channels[deviceID]
	r.channels[deviceID] = ch
	r.mu.Unlock()

	if old != nil && old != ch {
		old.Close()
	}
}

// Unregister removes the device's entry only if it still points at ch,
// so a stale teardown never evicts a newer channel. Reports whether the
// entry was removed.
func (r *Registry) Unregister(deviceID int64, ch *Channel) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.channels[deviceID] != ch {
		return false
	}
	delete(r.channels, deviceID)
	return true
}

// Lookup returns the live channel for a device, or nil.
func (r *Registry) Lookup(deviceID int64) *Channel {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.channels[deviceID]
}

// IsOnline reports whether the device currently has a live channel.
func (r *Registry) IsOnline(deviceID int64) bool {
	return r.Lookup(deviceID) != nil
}

// Count returns the number of live channels.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.channels)
}
