package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/phonelink/broker-server-go/internal/database"
	"github.com/phonelink/broker-server-go/internal/model"
)

type QueuedCommandRepository interface {
	Create(ctx context.Context, params model.CreateQueuedCommandParams) (*model.QueuedCommand, error)
	// FindPendingByTarget returns undelivered commands for a device in
	// submission order.
	FindPendingByTarget(ctx context.Context, targetDeviceID int64) ([]model.QueuedCommand, error)
	// MarkDelivered claims a queued command. Returns false when another
	// replay already delivered it.
	MarkDelivered(ctx context.Context, id int64) (bool, error)
	DeleteDelivered(ctx context.Context, cutoff time.Time) (int64, error)
}

type queuedCommandRepo struct {
	db database.DBTX
}

func NewQueuedCommandRepository(db *sqlx.DB) QueuedCommandRepository {
	return &queuedCommandRepo{db: db}
}

func (r *queuedCommandRepo) Create(ctx context.Context, params model.CreateQueuedCommandParams) (*model.QueuedCommand, error) {
	var qc model.QueuedCommand
	err := r.db.GetContext(ctx, &qc, `
		INSERT INTO queued_commands (target_device_id, from_device_id, payload)
		VALUES ($1, $2, $3)
		RETURNING *
	`, params.TargetDeviceID, params.FromDeviceID, params.Payload)
	if err != nil {
		return nil, err
	}
	return &qc, nil
}

func (r *queuedCommandRepo) FindPendingByTarget(ctx context.Context, targetDeviceID int64) ([]model.QueuedCommand, error) {
	var cmds []model.QueuedCommand
	err := r.db.SelectContext(ctx, &cmds, `
		SELECT * FROM queued_commands
		WHERE target_device_id = $1 AND delivered_at IS NULL
		ORDER BY id ASC
	`, targetDeviceID)
	return cmds, err
}

func (r *queuedCommandRepo) MarkDelivered(ctx context.Context, id int64) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE queued_commands SET delivered_at = $2
		WHERE id = $1 AND delivered_at IS NULL
	`, id, time.Now())
	if err != nil {
		return false, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

func (r *queuedCommandRepo) DeleteDelivered(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM queued_commands
		WHERE delivered_at IS NOT NULL AND delivered_at < $1
	`, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
