package registration_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tinywideclouds/go-push-subscription/internal/platform/fake"
	"github.com/tinywideclouds/go-push-subscription/internal/registration"
	"github.com/tinywideclouds/go-push-subscription/pkg/push"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestAgent_EnsureRegistered(t *testing.T) {
	ctx := context.Background()

	t.Run("Idempotent - registers once", func(t *testing.T) {
		p := fake.NewDesktopChrome()
		agent := registration.NewAgent(p, "", "", newTestLogger())

		first, err := agent.EnsureRegistered(ctx)
		require.NoError(t, err)
		second, err := agent.EnsureRegistered(ctx)
		require.NoError(t, err)

		assert.Same(t, first, second)
		assert.Equal(t, 1, p.RegisterCalls)
		assert.Equal(t, "/", first.Scope())
		assert.Equal(t, "/sw.js", first.(*fake.Registration).Script())
	})

	t.Run("Adopts existing registration", func(t *testing.T) {
		p := fake.NewDesktopChrome()
		p.Seed("/")
		agent := registration.NewAgent(p, "/sw.js", "/", newTestLogger())

		_, err := agent.EnsureRegistered(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, p.RegisterCalls)
	})

	t.Run("Script failure is a RegistrationError", func(t *testing.T) {
		p := fake.NewDesktopChrome()
		p.RegisterErr = errors.New("SecurityError: script 404")
		agent := registration.NewAgent(p, "/sw.js", "/", newTestLogger())

		_, err := agent.EnsureRegistered(ctx)
		require.Error(t, err)
		assert.ErrorIs(t, err, push.ErrRegistrationError)
		assert.Contains(t, err.Error(), "script 404")
	})
}

func TestAgent_LiveSubscription(t *testing.T) {
	ctx := context.Background()

	t.Run("No registration is not an error", func(t *testing.T) {
		p := fake.NewDesktopChrome()
		agent := registration.NewAgent(p, "/sw.js", "/", newTestLogger())

		sub, err := agent.LiveSubscription(ctx)
		require.NoError(t, err)
		assert.Nil(t, sub)
		assert.Equal(t, 0, p.RegisterCalls, "reconciliation must not register")
	})

	t.Run("Registration without subscription", func(t *testing.T) {
		p := fake.NewDesktopChrome()
		agent := registration.NewAgent(p, "/sw.js", "/", newTestLogger())
		_, err := agent.EnsureRegistered(ctx)
		require.NoError(t, err)

		sub, err := agent.LiveSubscription(ctx)
		require.NoError(t, err)
		assert.Nil(t, sub)
	})

	t.Run("Finds subscription from a previous session", func(t *testing.T) {
		p := fake.NewDesktopChrome()
		seeded := p.Seed("/")
		agent := registration.NewAgent(p, "/sw.js", "/", newTestLogger())

		sub, err := agent.LiveSubscription(ctx)
		require.NoError(t, err)
		require.NotNil(t, sub)
		assert.Equal(t, seeded.Endpoint(), sub.Endpoint())
	})

	t.Run("Registration lookup failure is typed", func(t *testing.T) {
		p := fake.NewDesktopChrome()
		p.LookupErr = errors.New("InvalidStateError: document is not fully active")
		agent := registration.NewAgent(p, "/sw.js", "/", newTestLogger())

		sub, err := agent.LiveSubscription(ctx)
		require.Error(t, err)
		assert.Nil(t, sub)
		assert.ErrorIs(t, err, push.ErrReconcileFailed)
		assert.True(t, push.KindOf(err).Retryable())
		assert.Contains(t, err.Error(), "not fully active")
	})

	t.Run("Subscription read failure is typed", func(t *testing.T) {
		p := fake.NewDesktopChrome()
		p.Seed("/")
		p.ReadErr = errors.New("AbortError")
		agent := registration.NewAgent(p, "/sw.js", "/", newTestLogger())

		_, err := agent.LiveSubscription(ctx)
		assert.ErrorIs(t, err, push.ErrReconcileFailed)
	})
}
