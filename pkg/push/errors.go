package push

import (
	"errors"
	"fmt"
)

// Kind classifies every failure the subscription lifecycle can report.
type Kind int

const (
	KindUnknown Kind = iota
	KindUnsupported
	KindPrivateModeDetected
	KindPlatformRequiresInstall
	KindPermissionAlreadyDenied
	KindPermissionDenied
	KindPermissionDismissed
	KindInvalidVapidKey
	KindRegistrationError
	KindBrowserSubscribeFailed
	KindMissingSubscriptionKeys
	KindBackendSyncFailed
	KindBrowserUnsubscribeFailed
	// KindReconcileFailed means the browser could not be asked what it holds.
	KindReconcileFailed
)

var kindNames = map[Kind]string{
	KindUnknown:                  "Unknown",
	KindUnsupported:              "Unsupported",
	KindPrivateModeDetected:      "PrivateModeDetected",
	KindPlatformRequiresInstall:  "PlatformRequiresInstall",
	KindPermissionAlreadyDenied:  "PermissionAlreadyDenied",
	KindPermissionDenied:         "PermissionDenied",
	KindPermissionDismissed:      "PermissionDismissed",
	KindInvalidVapidKey:          "InvalidVapidKey",
	KindRegistrationError:        "RegistrationError",
	KindBrowserSubscribeFailed:   "BrowserSubscribeFailed",
	KindMissingSubscriptionKeys:  "MissingSubscriptionKeys",
	KindBackendSyncFailed:        "BackendSyncFailed",
	KindBrowserUnsubscribeFailed: "BrowserUnsubscribeFailed",
	KindReconcileFailed:          "ReconcileFailed",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Retryable reports whether re-invoking the same verb can succeed without
// the user changing anything outside the app.
func (k Kind) Retryable() bool {
	switch k {
	case KindBrowserSubscribeFailed, KindBackendSyncFailed, KindBrowserUnsubscribeFailed, KindPermissionDismissed, KindReconcileFailed:
		return true
	}
	return false
}

// Terminal kinds must never lead to another permission prompt.
func (k Kind) Terminal() bool {
	return k == KindPermissionAlreadyDenied || k == KindPermissionDenied
}

// Deployment kinds are configuration problems the user cannot fix.
func (k Kind) Deployment() bool {
	return k == KindInvalidVapidKey || k == KindRegistrationError
}

// Error is the typed failure returned across the component boundary.
type Error struct {
	Kind   Kind
	Op     string
	Detail string
	Err    error
}

func (e *Error) Error() string {
	msg := e.Op + ": " + e.Kind.String()
	if e.Detail != "" {
		msg += " (" + e.Detail + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error by Kind so callers can use errors.Is with the
// sentinel values below.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Op == "" && t.Kind == e.Kind
}

// NewError builds a typed error.
func NewError(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Sentinels for errors.Is comparisons.
var (
	ErrUnsupported              = &Error{Kind: KindUnsupported}
	ErrPrivateModeDetected      = &Error{Kind: KindPrivateModeDetected}
	ErrPlatformRequiresInstall  = &Error{Kind: KindPlatformRequiresInstall}
	ErrPermissionAlreadyDenied  = &Error{Kind: KindPermissionAlreadyDenied}
	ErrPermissionDenied         = &Error{Kind: KindPermissionDenied}
	ErrPermissionDismissed      = &Error{Kind: KindPermissionDismissed}
	ErrInvalidVapidKey          = &Error{Kind: KindInvalidVapidKey}
	ErrRegistrationError        = &Error{Kind: KindRegistrationError}
	ErrBrowserSubscribeFailed   = &Error{Kind: KindBrowserSubscribeFailed}
	ErrMissingSubscriptionKeys  = &Error{Kind: KindMissingSubscriptionKeys}
	ErrBackendSyncFailed        = &Error{Kind: KindBackendSyncFailed}
	ErrBrowserUnsubscribeFailed = &Error{Kind: KindBrowserUnsubscribeFailed}
	ErrReconcileFailed          = &Error{Kind: KindReconcileFailed}
)

// KindOf extracts the Kind from any error in the chain, or KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
