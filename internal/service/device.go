package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	apperrors "github.com/phonelink/broker-server-go/internal/errors"
	"github.com/phonelink/broker-server-go/internal/model"
	"github.com/phonelink/broker-server-go/internal/repository"
)

const maxDeviceNameLen = 100

// Presence answers whether a device currently holds a live channel.
// The connection registry implements it.
type Presence interface {
	IsOnline(deviceID int64) bool
}

type DeviceService struct {
	deviceRepo repository.DeviceRepository
	presence   Presence
}

func NewDeviceService(deviceRepo repository.DeviceRepository, presence Presence) *DeviceService {
	return &DeviceService{
		deviceRepo: deviceRepo,
		presence:   presence,
	}
}

func (s *DeviceService) CreateDevice(ctx context.Context, accountID, name string, role model.DeviceRole) (*model.Device, error) {
	name = strings.TrimSpace(name)

	if name == "" {
		return nil, apperrors.MissingRequired("name")
	}
	if len(name) > maxDeviceNameLen {
		return nil, apperrors.InvalidInput("name", fmt.Sprintf("must be at most %d characters", maxDeviceNameLen))
	}

	if !role.Valid() {
		return nil, apperrors.InvalidInput("role", "must be host or client")
	}

	device, err := s.deviceRepo.Create(ctx, model.CreateDeviceParams{
		AccountID: accountID,
		Name:      name,
		Role:      role,
	})
	if err != nil {
		return nil, fmt.Errorf("create device: %w", err)
	}

	log.Info().
		Int64("deviceId", device.ID).
		Str("accountId", accountID).
		Str("role", string(role)).
		Msg("device created")

	return device, nil
}

// ListDevices returns the account's devices decorated with their live
// connection state.
func (s *DeviceService) ListDevices(ctx context.Context, accountID string) ([]model.DeviceStatus, error) {
	devices, err := s.deviceRepo.FindByAccountID(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}

	statuses := make([]model.DeviceStatus, 0, len(devices))
	for _, d := range devices {
		statuses = append(statuses, model.DeviceStatus{
			Device:   d,
			IsOnline: s.presence.IsOnline(d.ID),
		})
	}

	return statuses, nil
}

// GetOwnedDevice loads a device and checks it belongs to the account.
// Foreign devices are indistinguishable from missing ones.
func (s *DeviceService) GetOwnedDevice(ctx context.Context, accountID string, deviceID int64) (*model.Device, error) {
	device, err := s.deviceRepo.FindByID(ctx, deviceID)
	if err != nil {
		return nil, fmt.Errorf("find device: %w", err)
	}

	if device == nil || device.AccountID != accountID {
		return nil, apperrors.NotFound("Device")
	}

	return device, nil
}
