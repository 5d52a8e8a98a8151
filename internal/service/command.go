package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	apperrors "github.com/phonelink/broker-server-go/internal/errors"
	"github.com/phonelink/broker-server-go/internal/model"
	"github.com/phonelink/broker-server-go/internal/relay"
	"github.com/phonelink/broker-server-go/internal/repository"
	"github.com/phonelink/broker-server-go/internal/util"
)

const (
	maxDestinationLen = 32
	maxSMSBodyLen     = 2000
)

const (
	CommandStatusSent   = "sent"
	CommandStatusQueued = "queued"
)

// CommandRouter submits a command frame for delivery, queuing it when the
// target has no live channel. *relay.Router implements it.
type CommandRouter interface {
	SubmitCommand(ctx context.Context, fromDeviceID, targetDeviceID int64, payload json.RawMessage) (bool, error)
}

type CommandResult struct {
	Status    string `json:"status"`
	RequestID string `json:"request_id"`
}

// CommandService turns REST calls into command frames addressed to a host
// device and hands them to the router.
type CommandService struct {
	deviceRepo repository.DeviceRepository
	pairRepo   repository.PairingRepository
	router     CommandRouter
}

func NewCommandService(
	deviceRepo repository.DeviceRepository,
	pairRepo repository.PairingRepository,
	router CommandRouter,
) *CommandService {
	return &CommandService{
		deviceRepo: deviceRepo,
		pairRepo:   pairRepo,
		router:     router,
	}
}

func (s *CommandService) SendSMS(ctx context.Context, accountID string, hostDeviceID int64, sim int, to, body string) (*CommandResult, error) {
	to = strings.TrimSpace(to)

	if err := validateSim(sim); err != nil {
		return nil, err
	}
	if err := validateDestination(to); err != nil {
		return nil, err
	}
	if body == "" {
		return nil, apperrors.MissingRequired("body")
	}
	if len(body) > maxSMSBodyLen {
		return nil, apperrors.InvalidInput("body", fmt.Sprintf("must be at most %d characters", maxSMSBodyLen))
	}

	return s.submit(ctx, accountID, hostDeviceID, model.CommandSendSMS, sim, to, body)
}

func (s *CommandService) PlaceCall(ctx context.Context, accountID string, hostDeviceID int64, sim int, to string) (*CommandResult, error) {
	to = strings.TrimSpace(to)

	if err := validateSim(sim); err != nil {
		return nil, err
	}
	if err := validateDestination(to); err != nil {
		return nil, err
	}

	return s.submit(ctx, accountID, hostDeviceID, model.CommandPlaceCall, sim, to, "")
}

func (s *CommandService) EndCall(ctx context.Context, accountID string, hostDeviceID int64) (*CommandResult, error) {
	return s.submit(ctx, accountID, hostDeviceID, model.CommandEndCall, 0, "", "")
}

func (s *CommandService) GetSims(ctx context.Context, accountID string, hostDeviceID int64) (*CommandResult, error) {
	return s.submit(ctx, accountID, hostDeviceID, model.CommandGetSims, 0, "", "")
}

// submit resolves the sending client device, encodes the frame and routes
// it. The caller does not have to own the host: owning a client device
// paired with it is what grants access.
func (s *CommandService) submit(ctx context.Context, accountID string, hostDeviceID int64, cmd model.CommandName, sim int, to, body string) (*CommandResult, error) {
	host, err := s.deviceRepo.FindByID(ctx, hostDeviceID)
	if err != nil {
		return nil, fmt.Errorf("find host device: %w", err)
	}
	if host == nil {
		return nil, apperrors.NotFound("Device")
	}
	if host.Role != model.DeviceRoleHost {
		return nil, apperrors.InvalidInput("host_device_id", "must be a host device")
	}

	fromID, err := s.resolveSender(ctx, accountID, hostDeviceID)
	if err != nil {
		return nil, err
	}

	reqID := uuid.NewString()
	payload, err := relay.Encode(relay.NewCommand(cmd, sim, to, body, reqID))
	if err != nil {
		return nil, fmt.Errorf("encode command: %w", err)
	}

	delivered, err := s.router.SubmitCommand(ctx, fromID, hostDeviceID, payload)
	if err != nil {
		return nil, fmt.Errorf("submit command: %w", err)
	}

	status := CommandStatusQueued
	if delivered {
		status = CommandStatusSent
	}

	log.Info().
		Str("cmd", string(cmd)).
		Int64("fromDeviceId", fromID).
		Int64("hostDeviceId", hostDeviceID).
		Str("reqId", reqID).
		Str("status", status).
		Msg("command submitted")

	return &CommandResult{Status: status, RequestID: reqID}, nil
}

// resolveSender picks the account's client device paired with the host.
// With several paired clients under one account the lowest id wins.
func (s *CommandService) resolveSender(ctx context.Context, accountID string, hostDeviceID int64) (int64, error) {
	peers, err := s.pairRepo.FindPeerIDs(ctx, hostDeviceID)
	if err != nil {
		return 0, fmt.Errorf("find peers: %w", err)
	}

	peerSet := make(map[int64]bool, len(peers))
	for _, p := range peers {
		peerSet[p] = true
	}

	devices, err := s.deviceRepo.FindByAccountID(ctx, accountID)
	if err != nil {
		return 0, fmt.Errorf("find account devices: %w", err)
	}

	for _, d := range devices {
		if d.Role == model.DeviceRoleClient && peerSet[d.ID] {
			return d.ID, nil
		}
	}

	return 0, apperrors.NotFound("Paired client device")
}

func validateSim(sim int) error {
	if sim != 1 && sim != 2 {
		return apperrors.InvalidInput("sim", "must be 1 or 2")
	}
	return nil
}

func validateDestination(to string) error {
	if to == "" {
		return apperrors.MissingRequired("to")
	}
	if len(to) > maxDestinationLen {
		return apperrors.InvalidInput("to", fmt.Sprintf("must be at most %d characters", maxDestinationLen))
	}
	if !util.IsValidPhoneNumber(to) {
		return apperrors.InvalidInput("to", "must be digits with an optional leading +")
	}
	return nil
}
