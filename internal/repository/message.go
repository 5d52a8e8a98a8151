package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/phonelink/broker-server-go/internal/database"
	"github.com/phonelink/broker-server-go/internal/model"
)

type MessageLogRepository interface {
	Create(ctx context.Context, params model.CreateMessageLogParams) (*model.MessageLogEntry, error)
	FindByDevice(ctx context.Context, deviceID int64, limit, offset int) ([]model.MessageLogEntry, error)
	FindByDeviceAndKind(ctx context.Context, deviceID int64, kind model.MessageKind, limit, offset int) ([]model.MessageLogEntry, error)
	CountByDevice(ctx context.Context, deviceID int64) (int, error)
	CountByDeviceAndKind(ctx context.Context, deviceID int64, kind model.MessageKind) (int, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type messageLogRepo struct {
	db database.DBTX
}

func NewMessageLogRepository(db *sqlx.DB) MessageLogRepository {
	return &messageLogRepo{db: db}
}

func (r *messageLogRepo) Create(ctx context.Context, params model.CreateMessageLogParams) (*model.MessageLogEntry, error) {
	var entry model.MessageLogEntry
	err := r.db.GetContext(ctx, &entry, `
		INSERT INTO message_log (from_device_id, to_device_id, kind, payload)
		VALUES ($1, $2, $3, $4)
		RETURNING *
	`, params.FromDeviceID, params.ToDeviceID, params.Kind, params.Payload)
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *messageLogRepo) FindByDevice(ctx context.Context, deviceID int64, limit, offset int) ([]model.MessageLogEntry, error) {
	var entries []model.MessageLogEntry
	err := r.db.SelectContext(ctx, &entries, `
		SELECT * FROM message_log
		WHERE from_device_id = $1 OR to_device_id = $1
		ORDER BY id DESC
		LIMIT $2 OFFSET $3
	`, deviceID, limit, offset)
	return entries, err
}

func (r *messageLogRepo) FindByDeviceAndKind(ctx context.Context, deviceID int64, kind model.MessageKind, limit, offset int) ([]model.MessageLogEntry, error) {
	var entries []model.MessageLogEntry
	err := r.db.SelectContext(ctx, &entries, `
		SELECT * FROM message_log
		WHERE (from_device_id = $1 OR to_device_id = $1) AND kind = $2
		ORDER BY id DESC
		LIMIT $3 OFFSET $4
	`, deviceID, kind, limit, offset)
	return entries, err
}

func (r *messageLogRepo) CountByDevice(ctx context.Context, deviceID int64) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM message_log
		WHERE from_device_id = $1 OR to_device_id = $1
	`, deviceID)
	return count, err
}

func (r *messageLogRepo) CountByDeviceAndKind(ctx context.Context, deviceID int64, kind model.MessageKind) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM message_log
		WHERE (from_device_id = $1 OR to_device_id = $1) AND kind = $2
	`, deviceID, kind)
	return count, err
}

func (r *messageLogRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM message_log WHERE created_at < $1
	`, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
