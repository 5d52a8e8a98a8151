package model

import (
	"time"
)

type PairingCode struct {
	Code         string     `db:"code" json:"code"`
	HostDeviceID int64      `db:"host_device_id" json:"host_device_id"`
	AccountID    string     `db:"account_id" json:"account_id"`
	ExpiresAt    time.Time  `db:"expires_at" json:"expires_at"`
	UsedAt       *time.Time `db:"used_at" json:"used_at,omitempty"`
	UsedBy       *int64     `db:"used_by" json:"used_by,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
}

type CreatePairingCodeParams struct {
	Code         string
	HostDeviceID int64
	AccountID    string
	ExpiresAt    time.Time
}

type Pairing struct {
	ID             int64     `db:"id" json:"id"`
	HostDeviceID   int64     `db:"host_device_id" json:"host_device_id"`
	ClientDeviceID int64     `db:"client_device_id" json:"client_device_id"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}
