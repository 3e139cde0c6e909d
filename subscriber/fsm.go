package subscriber

import (
	"fmt"

	"github.com/tinywideclouds/go-push-subscription/pkg/push"
)

type event int

const (
	// eventFoundLive and eventFoundNone come from reconciliation: the browser
	// was asked what it holds.
	eventFoundLive event = iota
	eventFoundNone
	eventSubscribed
	eventUnsubscribed
)

func (e event) String() string {
	switch e {
	case eventFoundLive:
		return "found-live"
	case eventFoundNone:
		return "found-none"
	case eventSubscribed:
		return "subscribed"
	case eventUnsubscribed:
		return "unsubscribed"
	}
	return fmt.Sprintf("event(%d)", int(e))
}

// transitions is the complete table. Anything absent is a programming error:
// in particular there is no Subscribed -> Subscribed re-subscribe edge and no
// user action out of Unknown.
var transitions = map[push.State]map[event]push.State{
	push.StateUnknown: {
		eventFoundLive: push.StateSubscribed,
		eventFoundNone: push.StateUnsubscribed,
	},
	push.StateUnsubscribed: {
		eventFoundLive:  push.StateSubscribed,
		eventFoundNone:  push.StateUnsubscribed,
		eventSubscribed: push.StateSubscribed,
	},
	push.StateSubscribed: {
		eventFoundLive:    push.StateSubscribed,
		eventFoundNone:    push.StateUnsubscribed,
		eventUnsubscribed: push.StateUnsubscribed,
	},
}

func next(from push.State, e event) (push.State, error) {
	to, ok := transitions[from][e]
	if !ok {
		return from, fmt.Errorf("invalid transition from %s on %s", from, e)
	}
	return to, nil
}
