package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"github.com/phonelink/broker-server-go/internal/config"
	"github.com/phonelink/broker-server-go/internal/database"
	apperrors "github.com/phonelink/broker-server-go/internal/errors"
	"github.com/phonelink/broker-server-go/internal/model"
	"github.com/phonelink/broker-server-go/internal/repository"
	"github.com/phonelink/broker-server-go/internal/util"
)

// Sentinels for the confirm transaction. They never leave the service.
var (
	errCodeConsumed = errors.New("pairing code already consumed")
	errPairExists   = errors.New("pairing already exists")
)

// TxRunner runs a function inside one database transaction. *database.DB
// implements it.
type TxRunner interface {
	WithTx(ctx context.Context, fn database.TxFunc) error
}

type GenerateCodeResult struct {
	Code      string `json:"code"`
	ExpiresIn int    `json:"expires_in"`
}

type ConfirmResult struct {
	Status       model.PairingStatus `json:"status"`
	HostDeviceID int64               `json:"host_device_id"`
}

type PairingService struct {
	db          TxRunner
	deviceRepo  repository.DeviceRepository
	codeRepo    repository.PairingCodeRepository
	pairRepo    repository.PairingRepository
	rateLimiter Limiter
}

func NewPairingService(
	db TxRunner,
	deviceRepo repository.DeviceRepository,
	codeRepo repository.PairingCodeRepository,
	pairRepo repository.PairingRepository,
	rateLimiter Limiter,
) *PairingService {
	return &PairingService{
		db:          db,
		deviceRepo:  deviceRepo,
		codeRepo:    codeRepo,
		pairRepo:    pairRepo,
		rateLimiter: rateLimiter,
	}
}

// GenerateCode issues a fresh pairing code for a host device owned by the
// account. Any unused code for that host is invalidated in the same
// transaction, so at most one code per host is ever redeemable.
func (s *PairingService) GenerateCode(ctx context.Context, accountID string, hostDeviceID int64) (*GenerateCodeResult, error) {
	device, err := s.deviceRepo.FindByID(ctx, hostDeviceID)
	if err != nil {
		return nil, fmt.Errorf("find host device: %w", err)
	}
	if device == nil || device.AccountID != accountID {
		return nil, apperrors.NotFound("Device")
	}
	if device.Role != model.DeviceRoleHost {
		return nil, apperrors.InvalidInput("host_device_id", "must be a host device")
	}

	var code string
	for attempts := 0; attempts < 10; attempts++ {
		code = util.GeneratePairingCode()
		existing, _ := s.codeRepo.FindByCode(ctx, code)
		if existing == nil {
			break
		}
	}

	expiresAt := time.Now().Add(config.PairingCodeTTL)

	err = s.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		codes := s.codeRepo.WithTx(tx)

		if _, err := codes.InvalidateForHost(ctx, hostDeviceID); err != nil {
			return fmt.Errorf("invalidate prior codes: %w", err)
		}

		_, err := codes.Create(ctx, model.CreatePairingCodeParams{
			Code:         code,
			HostDeviceID: hostDeviceID,
			AccountID:    accountID,
			ExpiresAt:    expiresAt,
		})
		if err != nil {
			return fmt.Errorf("create pairing code: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("code", util.MaskCode(code)).
		Int64("hostDeviceId", hostDeviceID).
		Str("accountId", accountID).
		Time("expiresAt", expiresAt).
		Msg("pairing code created")

	return &GenerateCodeResult{
		Code:      code,
		ExpiresIn: int(config.PairingCodeTTL.Seconds()),
	}, nil
}

// Confirm redeems a pairing code for a client device. The code must
// belong to the confirming account; the client device itself may belong
// to another account, a validated code is the only cross-account path.
// Re-confirming an established pair answers already_paired without
// touching the code.
func (s *PairingService) Confirm(ctx context.Context, accountID, code string, clientDeviceID int64) (*ConfirmResult, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, apperrors.MissingRequired("code")
	}

	key := fmt.Sprintf("confirm:%s", code)
	allowed, resetAt := s.rateLimiter.CheckLimit(ctx, key, config.AuthAttemptLimit, config.AuthAttemptWindow)
	if !allowed {
		log.Warn().
			Str("code", util.MaskCode(code)).
			Time("resetAt", resetAt).
			Msg("pairing confirmation rate limit exceeded")
		return nil, apperrors.RateLimitedUntil(resetAt)
	}

	pc, err := s.codeRepo.FindByCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("find pairing code: %w", err)
	}
	if pc == nil {
		log.Warn().Str("code", util.MaskCode(code)).Msg("unknown pairing code")
		return nil, apperrors.InvalidPairingCode()
	}

	// A code must never pair devices across two different accounts. The
	// mismatch answer leaves the code untouched.
	if pc.AccountID != accountID {
		log.Warn().
			Str("code", util.MaskCode(code)).
			Str("accountId", accountID).
			Msg("pairing code account mismatch")
		return nil, apperrors.AccountMismatch()
	}

	client, err := s.deviceRepo.FindByID(ctx, clientDeviceID)
	if err != nil {
		return nil, fmt.Errorf("find client device: %w", err)
	}
	if client == nil {
		return nil, apperrors.NotFound("Device")
	}
	if client.Role != model.DeviceRoleClient {
		return nil, apperrors.InvalidInput("client_device_id", "must be a client device")
	}

	// Idempotent re-confirmation: an established pair wins over any code
	// state, including expiry.
	existing, err := s.pairRepo.Find(ctx, pc.HostDeviceID, clientDeviceID)
	if err != nil {
		return nil, fmt.Errorf("find pairing: %w", err)
	}
	if existing != nil {
		return &ConfirmResult{
			Status:       model.PairingStatusAlreadyPaired,
			HostDeviceID: pc.HostDeviceID,
		}, nil
	}

	if time.Now().After(pc.ExpiresAt) {
		log.Warn().Str("code", util.MaskCode(code)).Msg("expired pairing code")
		return nil, apperrors.InvalidPairingCode()
	}
	if pc.UsedAt != nil {
		return nil, apperrors.InvalidPairingCode()
	}

	// Consuming the code and creating the pair is atomic: of two
	// concurrent confirmations at most one commits, the other rolls back
	// with its sentinel.
	err = s.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		claimed, err := s.codeRepo.WithTx(tx).MarkUsed(ctx, code, clientDeviceID)
		if err != nil {
			return fmt.Errorf("consume pairing code: %w", err)
		}
		if !claimed {
			return errCodeConsumed
		}

		if _, err := s.pairRepo.WithTx(tx).Create(ctx, pc.HostDeviceID, clientDeviceID); err != nil {
			if database.IsUniqueViolation(err) {
				return errPairExists
			}
			return fmt.Errorf("create pairing: %w", err)
		}
		return nil
	})

	switch {
	case errors.Is(err, errCodeConsumed):
		// Lost the race. If the winner paired this same client the retry
		// is idempotent, otherwise the code is simply gone.
		pair, findErr := s.pairRepo.Find(ctx, pc.HostDeviceID, clientDeviceID)
		if findErr == nil && pair != nil {
			return &ConfirmResult{
				Status:       model.PairingStatusAlreadyPaired,
				HostDeviceID: pc.HostDeviceID,
			}, nil
		}
		return nil, apperrors.InvalidPairingCode()
	case errors.Is(err, errPairExists):
		return &ConfirmResult{
			Status:       model.PairingStatusAlreadyPaired,
			HostDeviceID: pc.HostDeviceID,
		}, nil
	case err != nil:
		return nil, err
	}

	log.Info().
		Str("code", util.MaskCode(code)).
		Int64("hostDeviceId", pc.HostDeviceID).
		Int64("clientDeviceId", clientDeviceID).
		Msg("pairing confirmed")

	return &ConfirmResult{
		Status:       model.PairingStatusPaired,
		HostDeviceID: pc.HostDeviceID,
	}, nil
}
