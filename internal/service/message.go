package service

import (
	"context"
	"fmt"

	apperrors "github.com/phonelink/broker-server-go/internal/errors"
	"github.com/phonelink/broker-server-go/internal/model"
	"github.com/phonelink/broker-server-go/internal/repository"
	"github.com/phonelink/broker-server-go/internal/util"
)

var messageKinds = []string{
	string(model.MessageKindCommand),
	string(model.MessageKindEvent),
	string(model.MessageKindWebRTC),
}

type HistoryResult struct {
	Messages []model.MessageLogEntry `json:"messages"`
	Total    int                     `json:"total"`
	Limit    int                     `json:"limit"`
	Offset   int                     `json:"offset"`
}

// MessageService serves the relayed-frame history of a device.
type MessageService struct {
	messageRepo repository.MessageLogRepository
	deviceRepo  repository.DeviceRepository
}

func NewMessageService(
	messageRepo repository.MessageLogRepository,
	deviceRepo repository.DeviceRepository,
) *MessageService {
	return &MessageService{
		messageRepo: messageRepo,
		deviceRepo:  deviceRepo,
	}
}

// History lists log entries where the device was sender or receiver,
// newest first. An empty kind means no filter.
func (s *MessageService) History(ctx context.Context, accountID string, deviceID int64, kind string, limit, offset int) (*HistoryResult, error) {
	device, err := s.deviceRepo.FindByID(ctx, deviceID)
	if err != nil {
		return nil, fmt.Errorf("find device: %w", err)
	}
	if device == nil || device.AccountID != accountID {
		return nil, apperrors.NotFound("Device")
	}

	if !util.IsValidEnum(kind, messageKinds) {
		return nil, apperrors.InvalidInput("kind", "must be one of command, event, webrtc")
	}

	var (
		messages []model.MessageLogEntry
		total    int
	)

	if kind == "" {
		messages, err = s.messageRepo.FindByDevice(ctx, deviceID, limit, offset)
		if err != nil {
			return nil, fmt.Errorf("list messages: %w", err)
		}
		total, err = s.messageRepo.CountByDevice(ctx, deviceID)
	} else {
		messages, err = s.messageRepo.FindByDeviceAndKind(ctx, deviceID, model.MessageKind(kind), limit, offset)
		if err != nil {
			return nil, fmt.Errorf("list messages: %w", err)
		}
		total, err = s.messageRepo.CountByDeviceAndKind(ctx, deviceID, model.MessageKind(kind))
	}
	if err != nil {
		return nil, fmt.Errorf("count messages: %w", err)
	}

	return &HistoryResult{
		Messages: messages,
		Total:    total,
		Limit:    limit,
		Offset:   offset,
	}, nil
}
