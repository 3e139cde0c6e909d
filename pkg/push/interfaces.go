// --- File: pkg/push/interfaces.go ---
package push

import (
	"context"

	urn "github.com/tinywideclouds/go-platform/pkg/net/v1"
)

// Environment exposes the read-only runtime facts the capability detector
// needs. Nothing outside the detector should consult it.
type Environment interface {
	HasServiceWorker() bool
	HasPushManager() bool
	HasNotification() bool
	UserAgent() string
	// Platform is the raw navigator platform string, e.g. "MacIntel".
	Platform() string
	MaxTouchPoints() int
	// IsStandalone reports whether the app runs as an installed PWA.
	IsStandalone() bool
	// ProbeStorage touches persistent storage. Private browsing on the
	// Safari family makes it fail or hang.
	ProbeStorage(ctx context.Context) error
}

// Notifications wraps the browser's notification permission primitive.
type Notifications interface {
	Permission() PermissionState
	// RequestPermission shows at most one prompt and blocks until the user
	// answers or ctx is done.
	RequestPermission(ctx context.Context) (PermissionState, error)
}

// ServiceWorkers is the service worker container of the page.
type ServiceWorkers interface {
	Register(ctx context.Context, scriptURL, scope string) (Registration, error)
	// GetRegistration returns nil, nil when nothing is registered for scope.
	GetRegistration(ctx context.Context, scope string) (Registration, error)
}

// Registration is a live service worker registration.
type Registration interface {
	Scope() string
	// Subscription returns nil, nil when the push manager holds nothing.
	Subscription(ctx context.Context) (LiveSubscription, error)
	Subscribe(ctx context.Context, applicationServerKey []byte) (LiveSubscription, error)
}

// LiveSubscription is the browser-held push credential.
type LiveSubscription interface {
	Endpoint() string
	// Key returns the raw key named "p256dh" or "auth", or nil if the
	// browser did not populate it.
	Key(name string) []byte
	Unsubscribe(ctx context.Context) (bool, error)
}

// Platform is the full browser boundary.
type Platform interface {
	Environment
	Notifications
	ServiceWorkers
}

// BackendSync persists or retracts this device's record server side.
type BackendSync interface {
	// Save is an idempotent upsert keyed by endpoint.
	Save(ctx context.Context, record SubscriptionRecord) error
	// Remove is an idempotent delete; unknown endpoints are not an error.
	Remove(ctx context.Context, endpoint string) error
}

// SubscriptionStore is the server-side persistence behind BackendSync. An
// endpoint belongs to at most one user: saving it under another user moves
// it, so a shared device only ever notifies whoever enabled it last.
type SubscriptionStore interface {
	Save(ctx context.Context, user urn.URN, record SubscriptionRecord) error
	// Remove deletes endpoint if user owns it. Unknown endpoints, or ones
	// since claimed by another user, are not an error.
	Remove(ctx context.Context, user urn.URN, endpoint string) error
	List(ctx context.Context, user urn.URN) ([]SubscriptionRecord, error)
	// Owner returns the user holding endpoint; ok is false if nobody does.
	Owner(ctx context.Context, endpoint string) (user urn.URN, ok bool, err error)
}
