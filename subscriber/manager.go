// Package subscriber drives the push subscription lifecycle of one device:
// it reconciles with what the browser holds on mount and implements the two
// user verbs, Subscribe and Unsubscribe.
package subscriber

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/tinywideclouds/go-push-subscription/internal/capability"
	"github.com/tinywideclouds/go-push-subscription/internal/keycodec"
	"github.com/tinywideclouds/go-push-subscription/internal/permission"
	"github.com/tinywideclouds/go-push-subscription/internal/registration"
	"github.com/tinywideclouds/go-push-subscription/pkg/push"
	"github.com/tinywideclouds/go-push-subscription/subscriber/config"
)

const (
	opSubscribe   = "subscriber.Subscribe"
	opUnsubscribe = "subscriber.Unsubscribe"
)

// Outcome is what a verb left behind. State is always the manager's state
// after the call, including when an error is returned.
type Outcome struct {
	State push.State
	// SyncWarning is set when the local action succeeded but the backend
	// could not be told.
	SyncWarning error
}

// Snapshot is the read-only view the UI renders from.
type Snapshot struct {
	Capability push.CapabilityState
	Permission push.PermissionState
	State      push.State
}

type Manager struct {
	vapidKey   string
	detector   *capability.Detector
	negotiator *permission.Negotiator
	agent      *registration.Agent
	backend    push.BackendSync
	logger     *slog.Logger

	// ops is held for reading by reconciliation and for writing by the two
	// verbs, so a read never observes a half-finished mutation.
	ops    sync.RWMutex
	flight singleflight.Group

	mu         sync.Mutex
	state      push.State
	capability push.CapabilityState
	mounted    bool
}

// New assembles a manager over the platform boundary.
func New(cfg *config.Config, platform push.Platform, backend push.BackendSync, logger *slog.Logger) *Manager {
	return &Manager{
		vapidKey:   cfg.VapidPublicKey,
		detector:   capability.NewDetector(platform, cfg.StorageProbeTimeout, logger),
		negotiator: permission.NewNegotiator(platform, logger),
		agent:      registration.NewAgent(platform, cfg.ServiceWorkerPath, cfg.ServiceWorkerScope, logger),
		backend:    backend,
		logger:     logger.With("component", "SubscriptionManager"),
		state:      push.StateUnknown,
	}
}

// Mount runs capability detection and the first reconciliation. Detection
// never fails; a reconciliation error leaves the state Unknown.
func (m *Manager) Mount(ctx context.Context) (Snapshot, error) {
	cs := m.detector.Detect(ctx)
	m.mu.Lock()
	m.capability = cs
	m.mounted = true
	m.mu.Unlock()

	if !cs.Supported() {
		m.fire(eventFoundNone)
		return m.Snapshot(), nil
	}

	_, err := m.Reconcile(ctx)
	return m.Snapshot(), err
}

// Reconcile re-derives the state from the browser. It may run alongside
// other reconciliations but waits for an in-flight verb.
func (m *Manager) Reconcile(ctx context.Context) (push.State, error) {
	m.ops.RLock()
	defer m.ops.RUnlock()
	return m.reconcile(ctx)
}

func (m *Manager) reconcile(ctx context.Context) (push.State, error) {
	live, err := m.agent.LiveSubscription(ctx)
	if err != nil {
		m.logger.Warn("Reconciliation failed", "err", err)
		return m.State(), err
	}
	if live == nil {
		return m.fire(eventFoundNone), nil
	}
	return m.fire(eventFoundLive), nil
}

// Subscribe enables push on this device. Concurrent calls share one run.
// Calling it while already subscribed re-sends the record to the backend and
// has no browser side effect, so it also retries an earlier BackendSyncFailed.
//
// The shared run is detached from any single caller's cancellation: a caller
// whose ctx is done gets ctx.Err() back while the run finishes for the others.
func (m *Manager) Subscribe(ctx context.Context) (Outcome, error) {
	return m.join(ctx, "subscribe", m.subscribe)
}

// Unsubscribe disables push on this device. With no live subscription it is
// a no-op success. A backend failure is reported as Outcome.SyncWarning and
// does not stop the local unsubscribe.
func (m *Manager) Unsubscribe(ctx context.Context) (Outcome, error) {
	return m.join(ctx, "unsubscribe", m.unsubscribe)
}

func (m *Manager) join(ctx context.Context, verb string, run func(context.Context) (Outcome, error)) (Outcome, error) {
	shared := context.WithoutCancel(ctx)
	ch := m.flight.DoChan(verb, func() (interface{}, error) {
		return run(shared)
	})
	select {
	case res := <-ch:
		if res.Shared {
			m.logger.Debug("Call coalesced into in-flight run", "verb", verb)
		}
		return res.Val.(Outcome), res.Err
	case <-ctx.Done():
		return m.outcome(nil), ctx.Err()
	}
}

func (m *Manager) subscribe(ctx context.Context) (Outcome, error) {
	m.ops.Lock()
	defer m.ops.Unlock()

	cs := m.capabilityState(ctx)
	if !cs.Supported() {
		kind := push.KindUnsupported
		if cs.Reason == push.ReasonPrivateMode {
			kind = push.KindPrivateModeDetected
		}
		return m.fail(&push.Error{Kind: kind, Op: opSubscribe, Detail: cs.Reason})
	}
	if m.negotiator.Current() == push.PermissionDenied {
		return m.fail(push.NewError(push.KindPermissionAlreadyDenied, opSubscribe, nil))
	}

	// The cached state may be stale: the browser can drop a subscription
	// at any time, so ask it again.
	live, err := m.agent.LiveSubscription(ctx)
	switch {
	case err != nil:
		m.logger.Warn("Pre-subscribe reconciliation failed; continuing", "err", err)
	case live == nil:
		m.fire(eventFoundNone)
	default:
		record, err := keycodec.EncodeSubscription(live)
		if err == nil {
			m.fire(eventFoundLive)
			m.logger.Debug("Already subscribed; re-sending record")
			return m.sync(ctx, record)
		}
		m.logger.Warn("Discarding live subscription without keys", "err", err)
		if _, uerr := live.Unsubscribe(ctx); uerr != nil {
			m.fire(eventFoundLive)
			return m.fail(&push.Error{Kind: push.KindBrowserUnsubscribeFailed, Op: opSubscribe, Detail: uerr.Error(), Err: uerr})
		}
		m.fire(eventFoundNone)
	}

	// 1. Key
	key, err := keycodec.DecodeVapidKey(m.vapidKey)
	if err != nil {
		return m.fail(err)
	}

	// 2. Service worker
	reg, err := m.agent.EnsureRegistered(ctx)
	if err != nil {
		return m.fail(err)
	}

	// 3. Platform guard, before the one-shot prompt is spent
	if cs.Reason == push.ReasonIOSNonStandalone {
		return m.fail(&push.Error{Kind: push.KindPlatformRequiresInstall, Op: opSubscribe, Detail: cs.Reason})
	}

	// 4. Permission
	perm, err := m.negotiator.Request(ctx)
	if err != nil {
		return m.fail(err)
	}
	switch perm {
	case push.PermissionGranted:
	case push.PermissionDenied:
		return m.fail(push.NewError(push.KindPermissionDenied, opSubscribe, nil))
	default:
		return m.fail(push.NewError(push.KindPermissionDismissed, opSubscribe, nil))
	}

	// 5. Browser subscribe
	live, err = reg.Subscribe(ctx, key)
	if err != nil {
		return m.fail(&push.Error{Kind: push.KindBrowserSubscribeFailed, Op: opSubscribe, Detail: err.Error(), Err: err})
	}

	// 6. Encode
	record, err := keycodec.EncodeSubscription(live)
	if err != nil {
		// A subscription without keys can never be delivered to.
		if _, uerr := live.Unsubscribe(ctx); uerr != nil {
			m.logger.Warn("Failed to discard keyless subscription", "err", uerr)
		}
		return m.fail(err)
	}

	// 7. Backend. The browser already holds a live subscription, so a sync
	// failure does not roll it back.
	if m.State() == push.StateUnsubscribed {
		m.fire(eventSubscribed)
	} else {
		// Reconciliation failed earlier; the browser answer is now known.
		m.fire(eventFoundLive)
	}
	return m.sync(ctx, record)
}

// sync tells the backend about a live subscription. The local state is
// already Subscribed and stays so whatever the backend answers.
func (m *Manager) sync(ctx context.Context, record push.SubscriptionRecord) (Outcome, error) {
	if err := m.backend.Save(ctx, record); err != nil {
		syncErr := asSyncError(opSubscribe, err)
		m.logger.Warn("Subscribed locally but backend sync failed", "endpoint", record.Endpoint, "err", syncErr)
		return m.outcome(nil), syncErr
	}
	m.logger.Info("Subscribed", "endpoint", record.Endpoint)
	return m.outcome(nil), nil
}

func (m *Manager) unsubscribe(ctx context.Context) (Outcome, error) {
	m.ops.Lock()
	defer m.ops.Unlock()

	if cs := m.capabilityState(ctx); !cs.Supported() {
		m.fire(eventFoundNone)
		return m.outcome(nil), nil
	}

	live, err := m.agent.LiveSubscription(ctx)
	if err != nil {
		return m.fail(&push.Error{Kind: push.KindBrowserUnsubscribeFailed, Op: opUnsubscribe, Err: err})
	}
	if live == nil {
		m.fire(eventFoundNone)
		return m.outcome(nil), nil
	}
	m.fire(eventFoundLive)
	endpoint := live.Endpoint()

	// Tell the backend first, while the endpoint is still known to be valid.
	var warning error
	if err := m.backend.Remove(ctx, endpoint); err != nil {
		warning = asSyncError(opUnsubscribe, err)
		m.logger.Warn("Backend unsubscribe failed; continuing with local unsubscribe", "endpoint", endpoint, "err", warning)
	}

	if _, err := live.Unsubscribe(ctx); err != nil {
		out, ferr := m.fail(&push.Error{Kind: push.KindBrowserUnsubscribeFailed, Op: opUnsubscribe, Detail: err.Error(), Err: err})
		out.SyncWarning = warning
		return out, ferr
	}

	m.fire(eventUnsubscribed)
	m.logger.Info("Unsubscribed", "endpoint", endpoint)
	return m.outcome(warning), nil
}

// State is the current subscription state.
func (m *Manager) State() push.State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Snapshot returns everything the UI needs in one read.
func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	perm := push.PermissionDefault
	if m.mounted && m.capability.Reason != push.ReasonBasicAPIMissing {
		perm = m.negotiator.Current()
	}
	return Snapshot{Capability: m.capability, Permission: perm, State: m.state}
}

func (m *Manager) capabilityState(ctx context.Context) push.CapabilityState {
	cs := m.detector.Detect(ctx)
	m.mu.Lock()
	m.capability = cs
	m.mounted = true
	m.mu.Unlock()
	return cs
}

func (m *Manager) fire(e event) push.State {
	m.mu.Lock()
	defer m.mu.Unlock()
	to, err := next(m.state, e)
	if err != nil {
		m.logger.Error("State machine rejected event", "state", m.state, "event", e.String(), "err", err)
		return m.state
	}
	if to != m.state {
		m.logger.Debug("State transition", "from", m.state, "to", to, "event", e.String())
	}
	m.state = to
	return to
}

func (m *Manager) outcome(warning error) Outcome {
	return Outcome{State: m.State(), SyncWarning: warning}
}

func (m *Manager) fail(err error) (Outcome, error) {
	kind := push.KindOf(err)
	if kind.Deployment() {
		m.logger.Error("Push deployment misconfigured", "kind", kind.String(), "err", err)
	} else {
		m.logger.Info("Push operation failed", "kind", kind.String(), "err", err)
	}
	return m.outcome(nil), err
}

func asSyncError(op string, err error) error {
	var typed *push.Error
	if errors.As(err, &typed) && typed.Kind == push.KindBackendSyncFailed {
		return err
	}
	return &push.Error{Kind: push.KindBackendSyncFailed, Op: op, Err: err}
}
