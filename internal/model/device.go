package model

import (
	"time"
)

type Device struct {
	ID         int64      `db:"id" json:"id"`
	AccountID  string     `db:"account_id" json:"account_id"`
	Name       string     `db:"name" json:"name"`
	Role       DeviceRole `db:"role" json:"role"`
	LastSeenAt *time.Time `db:"last_seen_at" json:"last_seen_at,omitempty"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
}

type CreateDeviceParams struct {
	AccountID string
	Name      string
	Role      DeviceRole
}

// DeviceStatus is a device record with its connection state attached.
// Online status is derived from the live registry, never persisted.
type DeviceStatus struct {
	Device
	IsOnline bool `json:"is_online"`
}
