package handler

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/phonelink/broker-server-go/internal/database"
	"github.com/phonelink/broker-server-go/internal/model"
	"github.com/phonelink/broker-server-go/internal/repository"
	"github.com/phonelink/broker-server-go/internal/service"
)

type mockPairingCodeRepo struct {
	mock.Mock
}

func (m *mockPairingCodeRepo) FindByCode(ctx context.Context, code string) (*model.PairingCode, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PairingCode), args.Error(1)
}

func (m *mockPairingCodeRepo) Create(ctx context.Context, params model.CreatePairingCodeParams) (*model.PairingCode, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PairingCode), args.Error(1)
}

func (m *mockPairingCodeRepo) MarkUsed(ctx context.Context, code string, usedBy int64) (bool, error) {
	args := m.Called(ctx, code, usedBy)
	return args.Bool(0), args.Error(1)
}

func (m *mockPairingCodeRepo) InvalidateForHost(ctx context.Context, hostDeviceID int64) (int64, error) {
	args := m.Called(ctx, hostDeviceID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockPairingCodeRepo) DeleteExpired(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockPairingCodeRepo) WithTx(tx *sqlx.Tx) repository.PairingCodeRepository {
	return m
}

type mockPairingRepo struct {
	mock.Mock
}

func (m *mockPairingRepo) Find(ctx context.Context, hostDeviceID, clientDeviceID int64) (*model.Pairing, error) {
	args := m.Called(ctx, hostDeviceID, clientDeviceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Pairing), args.Error(1)
}

func (m *mockPairingRepo) FindPeerIDs(ctx context.Context, deviceID int64) ([]int64, error) {
	args := m.Called(ctx, deviceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]int64), args.Error(1)
}

func (m *mockPairingRepo) Create(ctx context.Context, hostDeviceID, clientDeviceID int64) (*model.Pairing, error) {
	args := m.Called(ctx, hostDeviceID, clientDeviceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Pairing), args.Error(1)
}

func (m *mockPairingRepo) WithTx(tx *sqlx.Tx) repository.PairingRepository {
	return m
}

type stubTxRunner struct{}

func (stubTxRunner) WithTx(_ context.Context, fn database.TxFunc) error {
	return fn(nil)
}

func newPairingHandler(devices *mockDeviceRepo, codes *mockPairingCodeRepo, pairs *mockPairingRepo) *PairingHandler {
	svc := service.NewPairingService(stubTxRunner{}, devices, codes, pairs, allowAllLimiter{})
	return NewPairingHandler(svc)
}

func TestGenerateCodeHandler(t *testing.T) {
	t.Run("returns a code with its ttl", func(t *testing.T) {
		devices := new(mockDeviceRepo)
		codes := new(mockPairingCodeRepo)
		pairs := new(mockPairingRepo)

		devices.On("FindByID", mock.Anything, int64(10)).Return(
			&model.Device{ID: 10, AccountID: "acct-1", Role: model.DeviceRoleHost}, nil)
		codes.On("FindByCode", mock.Anything, mock.Anything).Return(nil, nil)
		codes.On("InvalidateForHost", mock.Anything, int64(10)).Return(int64(0), nil)
		codes.On("Create", mock.Anything, mock.Anything).Return(&model.PairingCode{}, nil)

		handler := newPairingHandler(devices, codes, pairs)

		req := httptest.NewRequest(http.MethodPost, "/pair?host_device_id=10", nil)
		req = req.WithContext(withClaims(req.Context(), "acct-1"))
		rec := httptest.NewRecorder()

		handler.GenerateCode(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"code":`)
		assert.Contains(t, rec.Body.String(), `"expires_in":300`)
	})

	t.Run("requires the host device id", func(t *testing.T) {
		handler := newPairingHandler(new(mockDeviceRepo), new(mockPairingCodeRepo), new(mockPairingRepo))

		req := httptest.NewRequest(http.MethodPost, "/pair", nil)
		req = req.WithContext(withClaims(req.Context(), "acct-1"))
		rec := httptest.NewRecorder()

		handler.GenerateCode(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "MISSING_REQUIRED")
	})

	t.Run("returns 404 for a device of another account", func(t *testing.T) {
		devices := new(mockDeviceRepo)
		devices.On("FindByID", mock.Anything, int64(10)).Return(
			&model.Device{ID: 10, AccountID: "acct-2", Role: model.DeviceRoleHost}, nil)

		handler := newPairingHandler(devices, new(mockPairingCodeRepo), new(mockPairingRepo))

		req := httptest.NewRequest(http.MethodPost, "/pair?host_device_id=10", nil)
		req = req.WithContext(withClaims(req.Context(), "acct-1"))
		rec := httptest.NewRecorder()

		handler.GenerateCode(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestConfirmHandler(t *testing.T) {
	code := func() *model.PairingCode {
		return &model.PairingCode{
			Code:         "481730",
			HostDeviceID: 10,
			AccountID:    "acct-1",
			ExpiresAt:    time.Now().Add(5 * time.Minute),
		}
	}

	t.Run("pairs and reports the host", func(t *testing.T) {
		devices := new(mockDeviceRepo)
		codes := new(mockPairingCodeRepo)
		pairs := new(mockPairingRepo)

		codes.On("FindByCode", mock.Anything, "481730").Return(code(), nil)
		devices.On("FindByID", mock.Anything, int64(20)).Return(
			&model.Device{ID: 20, AccountID: "acct-1", Role: model.DeviceRoleClient}, nil)
		pairs.On("Find", mock.Anything, int64(10), int64(20)).Return(nil, nil)
		codes.On("MarkUsed", mock.Anything, "481730", int64(20)).Return(true, nil)
		pairs.On("Create", mock.Anything, int64(10), int64(20)).Return(&model.Pairing{ID: 1}, nil)

		handler := newPairingHandler(devices, codes, pairs)

		body := bytes.NewBufferString(`{"code": "481730", "client_device_id": 20}`)
		req := httptest.NewRequest(http.MethodPost, "/pair/confirm", body)
		req = req.WithContext(withClaims(req.Context(), "acct-1"))
		rec := httptest.NewRecorder()

		handler.Confirm(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"status":"paired"`)
		assert.Contains(t, rec.Body.String(), `"host_device_id":10`)
	})

	t.Run("returns 403 for a code of another account", func(t *testing.T) {
		codes := new(mockPairingCodeRepo)
		codes.On("FindByCode", mock.Anything, "481730").Return(code(), nil)

		handler := newPairingHandler(new(mockDeviceRepo), codes, new(mockPairingRepo))

		body := bytes.NewBufferString(`{"code": "481730", "client_device_id": 20}`)
		req := httptest.NewRequest(http.MethodPost, "/pair/confirm", body)
		req = req.WithContext(withClaims(req.Context(), "acct-2"))
		rec := httptest.NewRecorder()

		handler.Confirm(rec, req)

		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Contains(t, rec.Body.String(), "FORBIDDEN")
	})

	t.Run("returns 400 for an unknown code", func(t *testing.T) {
		codes := new(mockPairingCodeRepo)
		codes.On("FindByCode", mock.Anything, "000000").Return(nil, nil)

		handler := newPairingHandler(new(mockDeviceRepo), codes, new(mockPairingRepo))

		body := bytes.NewBufferString(`{"code": "000000", "client_device_id": 20}`)
		req := httptest.NewRequest(http.MethodPost, "/pair/confirm", body)
		req = req.WithContext(withClaims(req.Context(), "acct-1"))
		rec := httptest.NewRecorder()

		handler.Confirm(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "INVALID_PAIRING_CODE")
	})
}
