package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/phonelink/broker-server-go/internal/model"
	"github.com/phonelink/broker-server-go/internal/service"
)

type mockMessageLogRepo struct {
	mock.Mock
}

func (m *mockMessageLogRepo) Create(ctx context.Context, params model.CreateMessageLogParams) (*model.MessageLogEntry, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.MessageLogEntry), args.Error(1)
}

func (m *mockMessageLogRepo) FindByDevice(ctx context.Context, deviceID int64, limit, offset int) ([]model.MessageLogEntry, error) {
	args := m.Called(ctx, deviceID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.MessageLogEntry), args.Error(1)
}

func (m *mockMessageLogRepo) FindByDeviceAndKind(ctx context.Context, deviceID int64, kind model.MessageKind, limit, offset int) ([]model.MessageLogEntry, error) {
	args := m.Called(ctx, deviceID, kind, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.MessageLogEntry), args.Error(1)
}

func (m *mockMessageLogRepo) CountByDevice(ctx context.Context, deviceID int64) (int, error) {
	args := m.Called(ctx, deviceID)
	return args.Int(0), args.Error(1)
}

func (m *mockMessageLogRepo) CountByDeviceAndKind(ctx context.Context, deviceID int64, kind model.MessageKind) (int, error) {
	args := m.Called(ctx, deviceID, kind)
	return args.Int(0), args.Error(1)
}

func (m *mockMessageLogRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	args := m.Called(ctx, cutoff)
	return args.Get(0).(int64), args.Error(1)
}

func newHistoryHandler(messages *mockMessageLogRepo, devices *mockDeviceRepo) *HistoryHandler {
	return NewHistoryHandler(service.NewMessageService(messages, devices))
}

func TestGetHistoryHandler(t *testing.T) {
	t.Run("lists messages with the total count", func(t *testing.T) {
		devices := new(mockDeviceRepo)
		messages := new(mockMessageLogRepo)

		devices.On("FindByID", mock.Anything, int64(10)).Return(
			&model.Device{ID: 10, AccountID: "acct-1", Role: model.DeviceRoleHost}, nil)
		messages.On("FindByDevice", mock.Anything, int64(10), 50, 0).Return([]model.MessageLogEntry{
			{ID: 2, Kind: model.MessageKindEvent},
			{ID: 1, Kind: model.MessageKindCommand},
		}, nil)
		messages.On("CountByDevice", mock.Anything, int64(10)).Return(7, nil)

		handler := newHistoryHandler(messages, devices)

		req := httptest.NewRequest(http.MethodGet, "/history?device_id=10", nil)
		req = req.WithContext(withClaims(req.Context(), "acct-1"))
		rec := httptest.NewRecorder()

		handler.GetHistory(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"total":7`)
		assert.Contains(t, rec.Body.String(), `"kind":"event"`)
	})

	t.Run("filters by kind", func(t *testing.T) {
		devices := new(mockDeviceRepo)
		messages := new(mockMessageLogRepo)

		devices.On("FindByID", mock.Anything, int64(10)).Return(
			&model.Device{ID: 10, AccountID: "acct-1", Role: model.DeviceRoleHost}, nil)
		messages.On("FindByDeviceAndKind", mock.Anything, int64(10), model.MessageKindCommand, 50, 0).
			Return([]model.MessageLogEntry{{ID: 1, Kind: model.MessageKindCommand}}, nil)
		messages.On("CountByDeviceAndKind", mock.Anything, int64(10), model.MessageKindCommand).Return(1, nil)

		handler := newHistoryHandler(messages, devices)

		req := httptest.NewRequest(http.MethodGet, "/history?device_id=10&kind=command", nil)
		req = req.WithContext(withClaims(req.Context(), "acct-1"))
		rec := httptest.NewRecorder()

		handler.GetHistory(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"total":1`)
	})

	t.Run("requires the device id", func(t *testing.T) {
		handler := newHistoryHandler(new(mockMessageLogRepo), new(mockDeviceRepo))

		req := httptest.NewRequest(http.MethodGet, "/history", nil)
		req = req.WithContext(withClaims(req.Context(), "acct-1"))
		rec := httptest.NewRecorder()

		handler.GetHistory(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "MISSING_REQUIRED")
	})

	t.Run("hides devices of other accounts", func(t *testing.T) {
		devices := new(mockDeviceRepo)
		devices.On("FindByID", mock.Anything, int64(10)).Return(
			&model.Device{ID: 10, AccountID: "acct-2", Role: model.DeviceRoleHost}, nil)

		handler := newHistoryHandler(new(mockMessageLogRepo), devices)

		req := httptest.NewRequest(http.MethodGet, "/history?device_id=10", nil)
		req = req.WithContext(withClaims(req.Context(), "acct-1"))
		rec := httptest.NewRecorder()

		handler.GetHistory(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}
