// Package fake provides a scriptable in-memory Platform. It stands in for the
// browser in tests and records every side effect so tests can assert what
// was (and was not) asked of the user.
package fake

import (
	"context"
	"errors"
	"sync"

	"github.com/tinywideclouds/go-push-subscription/pkg/push"
)

// Common user agents.
const (
	UADesktopChrome  = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36"
	UADesktopFirefox = "Mozilla/5.0 (X11; Linux x86_64; rv:127.0) Gecko/20100101 Firefox/127.0"
	UADesktopSafari  = "Mozilla/5.0 (Macintosh; Intel Mac OS X 14_5) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.5 Safari/605.1.15"
	UAIPhoneSafari   = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_5 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.5 Mobile/15E148 Safari/604.1"
	UAIPhoneSim      = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_5 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.5 Mobile/15E148 Safari/604.1 Simulator"
)

// Platform implements push.Platform.
type Platform struct {
	mu sync.Mutex

	ServiceWorker bool
	PushManager   bool
	Notification  bool
	UA            string
	NavPlatform   string
	TouchPoints   int
	Standalone    bool
	StorageErr    error
	// StorageHang makes ProbeStorage block until its context is done.
	StorageHang bool

	// PermissionValue is the current permission; PromptAnswer is what the
	// user will pick when prompted.
	PermissionValue push.PermissionState
	PromptAnswer    push.PermissionState
	PromptErr       error

	RegisterErr error
	// LookupErr fails GetRegistration; ReadErr fails reading the live
	// subscription from a registration.
	LookupErr    error
	ReadErr      error
	SubscribeErr error
	// SubscribeGate, when set, blocks Subscribe until it is closed.
	SubscribeGate chan struct{}
	// OmitKeys makes Subscribe return a subscription without key material.
	OmitKeys bool
	// UnsubscribeErr fails the browser-side unsubscribe.
	UnsubscribeErr error

	Endpoint string

	registration *Registration

	PromptCalls    int
	RegisterCalls  int
	SubscribeCalls int
	ProbeCalls     int
}

// NewDesktopChrome is a fully capable desktop browser with default permission.
func NewDesktopChrome() *Platform {
	return &Platform{
		ServiceWorker:   true,
		PushManager:     true,
		Notification:    true,
		UA:              UADesktopChrome,
		NavPlatform:     "Win32",
		PermissionValue: push.PermissionDefault,
		PromptAnswer:    push.PermissionGranted,
		Endpoint:        "https://fcm.googleapis.com/fcm/send/fake-endpoint",
	}
}

// NewIOSSafari is Safari on an iPhone, running in the browser (not installed).
func NewIOSSafari() *Platform {
	p := NewDesktopChrome()
	p.UA = UAIPhoneSafari
	p.NavPlatform = "iPhone"
	p.TouchPoints = 5
	p.Endpoint = "https://web.push.apple.com/fake-endpoint"
	return p
}

func (p *Platform) HasServiceWorker() bool { p.mu.Lock(); defer p.mu.Unlock(); return p.ServiceWorker }
func (p *Platform) HasPushManager() bool   { p.mu.Lock(); defer p.mu.Unlock(); return p.PushManager }
func (p *Platform) HasNotification() bool  { p.mu.Lock(); defer p.mu.Unlock(); return p.Notification }
func (p *Platform) UserAgent() string      { p.mu.Lock(); defer p.mu.Unlock(); return p.UA }
func (p *Platform) Platform() string       { p.mu.Lock(); defer p.mu.Unlock(); return p.NavPlatform }
func (p *Platform) MaxTouchPoints() int    { p.mu.Lock(); defer p.mu.Unlock(); return p.TouchPoints }
func (p *Platform) IsStandalone() bool     { p.mu.Lock(); defer p.mu.Unlock(); return p.Standalone }

func (p *Platform) ProbeStorage(ctx context.Context) error {
	p.mu.Lock()
	p.ProbeCalls++
	hang, err := p.StorageHang, p.StorageErr
	p.mu.Unlock()
	if hang {
		<-ctx.Done()
		return ctx.Err()
	}
	return err
}

func (p *Platform) Permission() push.PermissionState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.PermissionValue
}

func (p *Platform) RequestPermission(ctx context.Context) (push.PermissionState, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.PromptCalls++
	if p.PromptErr != nil {
		return push.PermissionDefault, p.PromptErr
	}
	p.PermissionValue = p.PromptAnswer
	return p.PromptAnswer, nil
}

func (p *Platform) Register(ctx context.Context, scriptURL, scope string) (push.Registration, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.RegisterCalls++
	if p.RegisterErr != nil {
		return nil, p.RegisterErr
	}
	if p.registration == nil {
		p.registration = &Registration{platform: p, scope: scope, script: scriptURL}
	}
	return p.registration, nil
}

func (p *Platform) GetRegistration(ctx context.Context, scope string) (push.Registration, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.LookupErr != nil {
		return nil, p.LookupErr
	}
	if p.registration == nil {
		return nil, nil
	}
	return p.registration, nil
}

// LiveCount returns how many browser-side subscriptions currently exist.
func (p *Platform) LiveCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.registration == nil {
		return 0
	}
	return len(p.registration.live)
}

// SubscribeCount is SubscribeCalls read under the platform lock, for tests
// that poll while a Subscribe is in flight.
func (p *Platform) SubscribeCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.SubscribeCalls
}

// Revoke drops the live subscription without telling the app, the way a
// user clearing site data would.
func (p *Platform) Revoke() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.registration != nil {
		p.registration.live = nil
	}
}

// Seed installs a registration holding a live subscription from a previous
// session.
func (p *Platform) Seed(scope string) *Subscription {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.registration == nil {
		p.registration = &Registration{platform: p, scope: scope}
	}
	sub := p.newSubscriptionLocked()
	p.registration.live = append(p.registration.live, sub)
	return sub
}

func (p *Platform) newSubscriptionLocked() *Subscription {
	sub := &Subscription{platform: p, endpoint: p.Endpoint}
	if !p.OmitKeys {
		sub.p256dh = append([]byte{0x04}, make([]byte, 64)...)
		sub.auth = []byte("0123456789abcdef")
	}
	return sub
}

// Registration implements push.Registration.
type Registration struct {
	platform *Platform
	scope    string
	script   string
	live     []*Subscription
	// LastKey is the application server key of the most recent Subscribe.
	LastKey []byte
}

func (r *Registration) Scope() string { return r.scope }

// Script returns the service worker script URL the registration was made with.
func (r *Registration) Script() string { return r.script }

func (r *Registration) Subscription(ctx context.Context) (push.LiveSubscription, error) {
	r.platform.mu.Lock()
	defer r.platform.mu.Unlock()
	if r.platform.ReadErr != nil {
		return nil, r.platform.ReadErr
	}
	if len(r.live) == 0 {
		return nil, nil
	}
	return r.live[0], nil
}

func (r *Registration) Subscribe(ctx context.Context, key []byte) (push.LiveSubscription, error) {
	p := r.platform
	p.mu.Lock()
	p.SubscribeCalls++
	gate := p.SubscribeGate
	p.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.SubscribeErr != nil {
		return nil, p.SubscribeErr
	}
	if len(key) != 65 {
		return nil, errors.New("InvalidAccessError: applicationServerKey is not valid")
	}
	r.LastKey = key
	sub := p.newSubscriptionLocked()
	r.live = append(r.live, sub)
	return sub, nil
}

// Subscription implements push.LiveSubscription.
type Subscription struct {
	platform *Platform
	endpoint string
	p256dh   []byte
	auth     []byte
}

func (s *Subscription) Endpoint() string { return s.endpoint }

func (s *Subscription) Key(name string) []byte {
	switch name {
	case "p256dh":
		return s.p256dh
	case "auth":
		return s.auth
	}
	return nil
}

func (s *Subscription) Unsubscribe(ctx context.Context) (bool, error) {
	p := s.platform
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.UnsubscribeErr != nil {
		return false, p.UnsubscribeErr
	}
	reg := p.registration
	if reg == nil {
		return false, nil
	}
	for i, live := range reg.live {
		if live == s {
			reg.live = append(reg.live[:i], reg.live[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}
