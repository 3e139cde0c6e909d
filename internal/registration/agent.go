// Package registration installs and looks up the service worker that
// receives push events.
package registration

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/tinywideclouds/go-push-subscription/pkg/push"
)

const (
	DefaultScriptURL = "/sw.js"
	DefaultScope     = "/"

	opEnsure = "registration.EnsureRegistered"
	opLive   = "registration.LiveSubscription"
)

type Agent struct {
	workers   push.ServiceWorkers
	scriptURL string
	scope     string
	logger    *slog.Logger

	mu           sync.Mutex
	registration push.Registration
}

func NewAgent(workers push.ServiceWorkers, scriptURL, scope string, logger *slog.Logger) *Agent {
	if scriptURL == "" {
		scriptURL = DefaultScriptURL
	}
	if scope == "" {
		scope = DefaultScope
	}
	return &Agent{
		workers:   workers,
		scriptURL: scriptURL,
		scope:     scope,
		logger:    logger.With("component", "RegistrationAgent", "scope", scope),
	}
}

// EnsureRegistered returns the registration for the configured scope,
// registering the script only if nothing is registered yet. Failures are
// reported as RegistrationError and not retried here.
func (a *Agent) EnsureRegistered(ctx context.Context) (push.Registration, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.registration != nil {
		return a.registration, nil
	}

	existing, err := a.workers.GetRegistration(ctx, a.scope)
	if err != nil {
		a.logger.Warn("Registration lookup failed; registering anew", "err", err)
	}
	if existing != nil {
		a.registration = existing
		return existing, nil
	}

	reg, err := a.workers.Register(ctx, a.scriptURL, a.scope)
	if err != nil {
		a.logger.Error("Service worker registration failed", "script", a.scriptURL, "err", err)
		return nil, &push.Error{
			Kind:   push.KindRegistrationError,
			Op:     opEnsure,
			Detail: a.scriptURL,
			Err:    err,
		}
	}
	if reg == nil {
		return nil, &push.Error{
			Kind:   push.KindRegistrationError,
			Op:     opEnsure,
			Detail: a.scriptURL,
			Err:    fmt.Errorf("platform returned no registration"),
		}
	}
	a.logger.Info("Service worker registered", "script", a.scriptURL)
	a.registration = reg
	return reg, nil
}

// LiveSubscription asks the browser what it currently holds. It never
// registers anything, so it is safe on page load; nil, nil means there is no
// subscription. Lookup failures are ReconcileFailed.
func (a *Agent) LiveSubscription(ctx context.Context) (push.LiveSubscription, error) {
	reg, err := a.current(ctx)
	if err != nil {
		return nil, &push.Error{Kind: push.KindReconcileFailed, Op: opLive, Detail: "registration lookup", Err: err}
	}
	if reg == nil {
		return nil, nil
	}
	sub, err := reg.Subscription(ctx)
	if err != nil {
		return nil, &push.Error{Kind: push.KindReconcileFailed, Op: opLive, Detail: "subscription lookup", Err: err}
	}
	return sub, nil
}

func (a *Agent) current(ctx context.Context) (push.Registration, error) {
	a.mu.Lock()
	reg := a.registration
	a.mu.Unlock()
	if reg != nil {
		return reg, nil
	}

	reg, err := a.workers.GetRegistration(ctx, a.scope)
	if err != nil {
		return nil, err
	}
	if reg == nil {
		return nil, nil
	}

	a.mu.Lock()
	if a.registration == nil {
		a.registration = reg
	}
	reg = a.registration
	a.mu.Unlock()
	return reg, nil
}
