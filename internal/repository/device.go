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

type DeviceRepository interface {
	FindByID(ctx context.Context, id int64) (*model.Device, error)
	FindByAccountID(ctx context.Context, accountID string) ([]model.Device, error)
	Create(ctx context.Context, params model.CreateDeviceParams) (*model.Device, error)
	UpdateLastSeen(ctx context.Context, id int64, seenAt time.Time) error
}

type deviceRepo struct {
	db database.DBTX
}

func NewDeviceRepository(db *sqlx.DB) DeviceRepository {
	return &deviceRepo{db: db}
}

func (r *deviceRepo) FindByID(ctx context.Context, id int64) (*model.Device, error) {
	var device model.Device
	err := r.db.GetContext(ctx, &device, `
		SELECT * FROM devices WHERE id = $1
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &device, nil
}

func (r *deviceRepo) FindByAccountID(ctx context.Context, accountID string) ([]model.Device, error) {
	var devices []model.Device
	err := r.db.SelectContext(ctx, &devices, `
		SELECT * FROM devices
		WHERE account_id = $1
		ORDER BY id
	`, accountID)
	return devices, err
}

func (r *deviceRepo) Create(ctx context.Context, params model.CreateDeviceParams) (*model.Device, error) {
	var device model.Device
	err := r.db.GetContext(ctx, &device, `
		INSERT INTO devices (account_id, name, role)
		VALUES ($1, $2, $3)
		RETURNING *
	`, params.AccountID, params.Name, params.Role)
	if err != nil {
		return nil, err
	}
	return &device, nil
}

func (r *deviceRepo) UpdateLastSeen(ctx context.Context, id int64, seenAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE devices SET last_seen_at = $2 WHERE id = $1
	`, id, seenAt)
	return err
}
