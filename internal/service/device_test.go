package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apperrors "github.com/phonelink/broker-server-go/internal/errors"
	"github.com/phonelink/broker-server-go/internal/model"
)

type mockDeviceRepo struct {
	mock.Mock
}

func (m *mockDeviceRepo) FindByID(ctx context.Context, id int64) (*model.Device, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Device), args.Error(1)
}

func (m *mockDeviceRepo) FindByAccountID(ctx context.Context, accountID string) ([]model.Device, error) {
	args := m.Called(ctx, accountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Device), args.Error(1)
}

func (m *mockDeviceRepo) Create(ctx context.Context, params model.CreateDeviceParams) (*model.Device, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Device), args.Error(1)
}

func (m *mockDeviceRepo) UpdateLastSeen(ctx context.Context, id int64, seenAt time.Time) error {
	args := m.Called(ctx, id, seenAt)
	return args.Error(0)
}

type stubPresence struct {
	online map[int64]bool
}

func (s *stubPresence) IsOnline(deviceID int64) bool {
	return s.online[deviceID]
}

func TestCreateDevice(t *testing.T) {
	ctx := context.Background()

	t.Run("creates a device", func(t *testing.T) {
		repo := new(mockDeviceRepo)
		svc := NewDeviceService(repo, &stubPresence{})

		repo.On("Create", ctx, model.CreateDeviceParams{
			AccountID: "acct-1",
			Name:      "My Phone",
			Role:      model.DeviceRoleHost,
		}).Return(&model.Device{ID: 1, AccountID: "acct-1", Name: "My Phone", Role: model.DeviceRoleHost}, nil)

		device, err := svc.CreateDevice(ctx, "acct-1", "  My Phone  ", model.DeviceRoleHost)
		require.NoError(t, err)
		assert.Equal(t, int64(1), device.ID)
		repo.AssertExpectations(t)
	})

	t.Run("validates input", func(t *testing.T) {
		repo := new(mockDeviceRepo)
		svc := NewDeviceService(repo, &stubPresence{})

		tests := []struct {
			name     string
			devName  string
			role     model.DeviceRole
			wantCode apperrors.ErrorCode
		}{
			{"empty name", "", model.DeviceRoleHost, apperrors.ErrCodeMissingRequired},
			{"name too long", strings.Repeat("n", 101), model.DeviceRoleHost, apperrors.ErrCodeInvalidInput},
			{"unknown role", "My Phone", model.DeviceRole("admin"), apperrors.ErrCodeInvalidInput},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := svc.CreateDevice(ctx, "acct-1", tt.devName, tt.role)
				assert.Equal(t, tt.wantCode, apperrors.GetCode(err))
			})
		}
		repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})
}

func TestListDevices(t *testing.T) {
	ctx := context.Background()

	repo := new(mockDeviceRepo)
	svc := NewDeviceService(repo, &stubPresence{online: map[int64]bool{1: true}})

	repo.On("FindByAccountID", ctx, "acct-1").Return([]model.Device{
		{ID: 1, AccountID: "acct-1", Role: model.DeviceRoleHost},
		{ID: 2, AccountID: "acct-1", Role: model.DeviceRoleClient},
	}, nil)

	statuses, err := svc.ListDevices(ctx, "acct-1")
	require.NoError(t, err)
	require.Len(t, statuses, 2)
	assert.True(t, statuses[0].IsOnline)
	assert.False(t, statuses[1].IsOnline)
}

func TestGetOwnedDevice(t *testing.T) {
	ctx := context.Background()

	t.Run("returns an owned device", func(t *testing.T) {
		repo := new(mockDeviceRepo)
		svc := NewDeviceService(repo, &stubPresence{})

		repo.On("FindByID", ctx, int64(1)).Return(&model.Device{ID: 1, AccountID: "acct-1"}, nil)

		device, err := svc.GetOwnedDevice(ctx, "acct-1", 1)
		require.NoError(t, err)
		assert.Equal(t, int64(1), device.ID)
	})

	t.Run("hides devices of other accounts", func(t *testing.T) {
		repo := new(mockDeviceRepo)
		svc := NewDeviceService(repo, &stubPresence{})

		repo.On("FindByID", ctx, int64(1)).Return(&model.Device{ID: 1, AccountID: "acct-2"}, nil)

		_, err := svc.GetOwnedDevice(ctx, "acct-1", 1)
		assert.Equal(t, apperrors.ErrCodeNotFound, apperrors.GetCode(err))
	})

	t.Run("reports missing devices", func(t *testing.T) {
		repo := new(mockDeviceRepo)
		svc := NewDeviceService(repo, &stubPresence{})

		repo.On("FindByID", ctx, int64(404)).Return(nil, nil)

		_, err := svc.GetOwnedDevice(ctx, "acct-1", 404)
		assert.Equal(t, apperrors.ErrCodeNotFound, apperrors.GetCode(err))
	})
}
