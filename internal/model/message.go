package model

import (
	"encoding/json"
	"time"
)

// MessageLogEntry is the immutable audit record of a routed or queued frame.
type MessageLogEntry struct {
	ID           int64           `db:"id" json:"id"`
	FromDeviceID int64           `db:"from_device_id" json:"from_device_id"`
	ToDeviceID   int64           `db:"to_device_id" json:"to_device_id"`
	Kind         MessageKind     `db:"kind" json:"kind"`
	Payload      json.RawMessage `db:"payload" json:"payload"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
}

type CreateMessageLogParams struct {
	FromDeviceID int64
	ToDeviceID   int64
	Kind         MessageKind
	Payload      json.RawMessage
}

// QueuedCommand is a command frame held for a device that had no live
// channel at submission time. Replayed in submission order on reconnect.
type QueuedCommand struct {
	ID             int64           `db:"id" json:"id"`
	TargetDeviceID int64           `db:"target_device_id" json:"target_device_id"`
	FromDeviceID   int64           `db:"from_device_id" json:"from_device_id"`
	Payload        json.RawMessage `db:"payload" json:"payload"`
	DeliveredAt    *time.Time      `db:"delivered_at" json:"delivered_at,omitempty"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
}

type CreateQueuedCommandParams struct {
	TargetDeviceID int64
	FromDeviceID   int64
	Payload        json.RawMessage
}
