package model

import (
	"time"
)

type Account struct {
	ID           string    `db:"id" json:"id"`
	Username     string    `db:"username" json:"username"`
	PasswordHash string    `db:"password_hash" json:"-"`
	ExternalID   *string   `db:"external_id" json:"external_id,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

type CreateAccountParams struct {
	ID           string
	Username     string
	PasswordHash string
	ExternalID   *string
}
