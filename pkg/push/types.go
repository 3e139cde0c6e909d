// Package push contains the public domain models and contracts for the
// push subscription lifecycle: what the platform can do, what the user has
// allowed, and what the browser currently holds.
package push

// Capability is the coarse verdict of the capability detector.
type Capability int

const (
	Unsupported Capability = iota
	Supported
)

func (c Capability) String() string {
	if c == Supported {
		return "supported"
	}
	return "unsupported"
}

// Diagnostic reasons attached to a CapabilityState.
const (
	ReasonBasicAPIMissing  = "basic-api-missing"
	ReasonPrivateMode      = "private-mode"
	ReasonIOSNonStandalone = "ios-non-standalone"
	ReasonIOSSimulator     = "ios-simulator"
)

// CapabilityState is computed once per session and never changes afterwards.
// A Supported state may still carry a Reason; the attempt is allowed but the
// UI should warn up front.
type CapabilityState struct {
	Capability Capability
	Reason     string
}

func (c CapabilityState) Supported() bool {
	return c.Capability == Supported
}

// PermissionState mirrors the browser's notification permission.
type PermissionState string

const (
	PermissionDefault PermissionState = "default"
	PermissionGranted PermissionState = "granted"
	PermissionDenied  PermissionState = "denied"
)

// ParsePermission maps a raw platform value onto PermissionState. Anything
// the platform reports that is not granted or denied (including a dismissed
// prompt) is treated as default.
func ParsePermission(raw string) PermissionState {
	switch PermissionState(raw) {
	case PermissionGranted:
		return PermissionGranted
	case PermissionDenied:
		return PermissionDenied
	default:
		return PermissionDefault
	}
}

// State is the subscription manager's view of this device.
type State string

const (
	StateUnknown      State = "unknown"
	StateUnsubscribed State = "unsubscribed"
	StateSubscribed   State = "subscribed"
)

// Keys holds the raw key material of a push subscription.
type Keys struct {
	P256dh []byte `json:"p256dh" firestore:"p256dh"`
	Auth   []byte `json:"auth" firestore:"auth"`
}

// SubscriptionRecord is always derived from a live browser subscription;
// the client never invents one.
type SubscriptionRecord struct {
	Endpoint string `json:"endpoint" firestore:"endpoint"`
	Keys     Keys   `json:"keys" firestore:"keys"`
}

// Complete reports whether the record carries everything a push service
// needs to encrypt a message for this device.
func (r SubscriptionRecord) Complete() bool {
	return r.Endpoint != "" && len(r.Keys.P256dh) > 0 && len(r.Keys.Auth) > 0
}
