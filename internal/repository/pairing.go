package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/phonelink/broker-server-go/internal/database"
	"github.com/phonelink/broker-server-go/internal/model"
)

type PairingCodeRepository interface {
	FindByCode(ctx context.Context, code string) (*model.PairingCode, error)
	Create(ctx context.Context, params model.CreatePairingCodeParams) (*model.PairingCode, error)
	// MarkUsed consumes the code if it is still unused. Returns false when
	// another confirmation already consumed it.
	MarkUsed(ctx context.Context, code string, usedBy int64) (bool, error)
	// InvalidateForHost removes all unused codes for a host device.
	InvalidateForHost(ctx context.Context, hostDeviceID int64) (int64, error)
	DeleteExpired(ctx context.Context) (int64, error)
	// WithTx returns a new repository that uses the given transaction
	WithTx(tx *sqlx.Tx) PairingCodeRepository
}

type pairingCodeRepo struct {
	db database.DBTX
}

func NewPairingCodeRepository(db *sqlx.DB) PairingCodeRepository {
	return &pairingCodeRepo{db: db}
}

func (r *pairingCodeRepo) WithTx(tx *sqlx.Tx) PairingCodeRepository {
	return &pairingCodeRepo{db: tx}
}

func (r *pairingCodeRepo) FindByCode(ctx context.Context, code string) (*model.PairingCode, error) {
	var pc model.PairingCode
	err := r.db.GetContext(ctx, &pc, `
		SELECT * FROM pairing_codes WHERE code = $1
	`, code)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &pc, nil
}

func (r *pairingCodeRepo) Create(ctx context.Context, params model.CreatePairingCodeParams) (*model.PairingCode, error) {
	var pc model.PairingCode
	err := r.db.GetContext(ctx, &pc, `
		INSERT INTO pairing_codes (code, host_device_id, account_id, expires_at)
		VALUES ($1, $2, $3, $4)
		RETURNING *
	`, params.Code, params.HostDeviceID, params.AccountID, params.ExpiresAt)
	if err != nil {
		return nil, err
	}
	return &pc, nil
}

func (r *pairingCodeRepo) MarkUsed(ctx context.Context, code string, usedBy int64) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE pairing_codes SET
			used_at = $2,
			used_by = $3
		WHERE code = $1 AND used_at IS NULL
	`, code, time.Now(), usedBy)
	if err != nil {
		return false, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

func (r *pairingCodeRepo) InvalidateForHost(ctx context.Context, hostDeviceID int64) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM pairing_codes
		WHERE host_device_id = $1 AND used_at IS NULL
	`, hostDeviceID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (r *pairingCodeRepo) DeleteExpired(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM pairing_codes
		WHERE used_at IS NULL AND expires_at < NOW()
	`)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// Pairing Repository

type PairingRepository interface {
	Find(ctx context.Context, hostDeviceID, clientDeviceID int64) (*model.Pairing, error)
	// FindPeerIDs returns the ids of every device paired with the given one,
	// regardless of which side of the pairing it is on.
	FindPeerIDs(ctx context.Context, deviceID int64) ([]int64, error)
	Create(ctx context.Context, hostDeviceID, clientDeviceID int64) (*model.Pairing, error)
	// WithTx returns a new repository that uses the given transaction
	WithTx(tx *sqlx.Tx) PairingRepository
}

type pairingRepo struct {
	db database.DBTX
}

func NewPairingRepository(db *sqlx.DB) PairingRepository {
	return &pairingRepo{db: db}
}

func (r *pairingRepo) WithTx(tx *sqlx.Tx) PairingRepository {
	return &pairingRepo{db: tx}
}

func (r *pairingRepo) Find(ctx context.Context, hostDeviceID, clientDeviceID int64) (*model.Pairing, error) {
	var p model.Pairing
	err := r.db.GetContext(ctx, &p, `
		SELECT * FROM pairings
		WHERE host_device_id = $1 AND client_device_id = $2
	`, hostDeviceID, clientDeviceID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *pairingRepo) FindPeerIDs(ctx context.Context, deviceID int64) ([]int64, error) {
	var peers []int64
	err := r.db.SelectContext(ctx, &peers, `
		SELECT client_device_id FROM pairings WHERE host_device_id = $1
		UNION
		SELECT host_device_id FROM pairings WHERE client_device_id = $1
		ORDER BY 1
	`, deviceID)
	return peers, err
}

func (r *pairingRepo) Create(ctx context.Context, hostDeviceID, clientDeviceID int64) (*model.Pairing, error) {
	var p model.Pairing
	err := r.db.GetContext(ctx, &p, `
		INSERT INTO pairings (host_device_id, client_device_id)
		VALUES ($1, $2)
		RETURNING *
	`, hostDeviceID, clientDeviceID)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
