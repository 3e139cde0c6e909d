// Package permission wraps the browser's notification permission primitive.
package permission

import (
	"context"
	"log/slog"

	"github.com/tinywideclouds/go-push-subscription/pkg/push"
)

const opRequest = "permission.Request"

type Negotiator struct {
	notifications push.Notifications
	logger        *slog.Logger
}

func NewNegotiator(notifications push.Notifications, logger *slog.Logger) *Negotiator {
	return &Negotiator{
		notifications: notifications,
		logger:        logger.With("component", "PermissionNegotiator"),
	}
}

// Current reads the permission without prompting.
func (n *Negotiator) Current() push.PermissionState {
	return push.ParsePermission(string(n.notifications.Permission()))
}

// Request shows the browser prompt at most once. A denied permission is
// sticky: it fails with PermissionAlreadyDenied and never reaches the
// browser. An already granted permission returns without prompting.
//
// There is no timeout; the call waits on the user. Cancelling ctx releases
// the caller but cannot withdraw a prompt the browser is already showing.
func (n *Negotiator) Request(ctx context.Context) (push.PermissionState, error) {
	switch n.Current() {
	case push.PermissionDenied:
		n.logger.Info("Permission previously denied; not prompting")
		return push.PermissionDenied, push.NewError(push.KindPermissionAlreadyDenied, opRequest, nil)
	case push.PermissionGranted:
		return push.PermissionGranted, nil
	}

	n.logger.Debug("Prompting for notification permission")
	state, err := n.notifications.RequestPermission(ctx)
	if err != nil {
		n.logger.Warn("Permission prompt failed", "err", err)
		return push.PermissionDefault, push.NewError(push.KindPermissionDismissed, opRequest, err)
	}
	state = push.ParsePermission(string(state))
	n.logger.Info("Permission prompt answered", "permission", state)
	return state, nil
}
