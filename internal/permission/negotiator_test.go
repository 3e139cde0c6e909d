package permission_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/tinywideclouds/go-push-subscription/internal/permission"
	"github.com/tinywideclouds/go-push-subscription/pkg/push"
)

type mockNotifications struct {
	mock.Mock
}

func (m *mockNotifications) Permission() push.PermissionState {
	return m.Called().Get(0).(push.PermissionState)
}

func (m *mockNotifications) RequestPermission(ctx context.Context) (push.PermissionState, error) {
	args := m.Called(ctx)
	return args.Get(0).(push.PermissionState), args.Error(1)
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNegotiator_Request(t *testing.T) {
	ctx := context.Background()

	t.Run("Denied never reaches the browser", func(t *testing.T) {
		notifications := new(mockNotifications)
		notifications.On("Permission").Return(push.PermissionDenied)

		state, err := permission.NewNegotiator(notifications, newTestLogger()).Request(ctx)

		require.Error(t, err)
		assert.ErrorIs(t, err, push.ErrPermissionAlreadyDenied)
		assert.Equal(t, push.PermissionDenied, state)
		notifications.AssertNotCalled(t, "RequestPermission", mock.Anything)
	})

	t.Run("Granted short-circuits", func(t *testing.T) {
		notifications := new(mockNotifications)
		notifications.On("Permission").Return(push.PermissionGranted)

		state, err := permission.NewNegotiator(notifications, newTestLogger()).Request(ctx)

		require.NoError(t, err)
		assert.Equal(t, push.PermissionGranted, state)
		notifications.AssertNotCalled(t, "RequestPermission", mock.Anything)
	})

	t.Run("Default prompts exactly once", func(t *testing.T) {
		notifications := new(mockNotifications)
		notifications.On("Permission").Return(push.PermissionDefault)
		notifications.On("RequestPermission", ctx).Return(push.PermissionGranted, nil).Once()

		state, err := permission.NewNegotiator(notifications, newTestLogger()).Request(ctx)

		require.NoError(t, err)
		assert.Equal(t, push.PermissionGranted, state)
		notifications.AssertNumberOfCalls(t, "RequestPermission", 1)
	})

	t.Run("Unrecognised answer maps to default", func(t *testing.T) {
		notifications := new(mockNotifications)
		notifications.On("Permission").Return(push.PermissionDefault)
		notifications.On("RequestPermission", ctx).Return(push.PermissionState("dismissed"), nil)

		state, err := permission.NewNegotiator(notifications, newTestLogger()).Request(ctx)

		require.NoError(t, err)
		assert.Equal(t, push.PermissionDefault, state)
	})

	t.Run("Prompt failure is reported as dismissed", func(t *testing.T) {
		notifications := new(mockNotifications)
		notifications.On("Permission").Return(push.PermissionDefault)
		notifications.On("RequestPermission", ctx).Return(push.PermissionDefault, errors.New("prompt blocked"))

		_, err := permission.NewNegotiator(notifications, newTestLogger()).Request(ctx)

		assert.Equal(t, push.KindPermissionDismissed, push.KindOf(err))
	})
}
