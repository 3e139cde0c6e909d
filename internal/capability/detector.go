// Package capability decides once per session whether push notifications can
// work on the current runtime.
package capability

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/tinywideclouds/go-push-subscription/pkg/push"
)

// DefaultProbeTimeout bounds the private-mode storage probe.
const DefaultProbeTimeout = 500 * time.Millisecond

type Detector struct {
	env          push.Environment
	probeTimeout time.Duration
	logger       *slog.Logger

	once  sync.Once
	state push.CapabilityState
}

func NewDetector(env push.Environment, probeTimeout time.Duration, logger *slog.Logger) *Detector {
	if probeTimeout <= 0 {
		probeTimeout = DefaultProbeTimeout
	}
	return &Detector{
		env:          env,
		probeTimeout: probeTimeout,
		logger:       logger.With("component", "CapabilityDetector"),
	}
}

// Detect computes the capability state on first call and returns the cached
// value afterwards. It never fails: every probe problem degrades to
// Unsupported with a reason.
func (d *Detector) Detect(ctx context.Context) push.CapabilityState {
	d.once.Do(func() {
		d.state = d.detect(ctx)
		d.logger.Info("Capability detected",
			"capability", d.state.Capability.String(),
			"reason", d.state.Reason,
		)
	})
	return d.state
}

func (d *Detector) detect(ctx context.Context) push.CapabilityState {
	if !d.env.HasServiceWorker() || !d.env.HasPushManager() || !d.env.HasNotification() {
		return push.CapabilityState{Capability: push.Unsupported, Reason: push.ReasonBasicAPIMissing}
	}

	t := readTraits(d.env)
	state := push.CapabilityState{Capability: push.Supported}
	for _, q := range quirks {
		if !q.applies(ctx, d, d.env, t) {
			continue
		}
		if q.blocking {
			return push.CapabilityState{Capability: push.Unsupported, Reason: q.reason}
		}
		if state.Reason == "" {
			state.Reason = q.reason
		}
	}
	return state
}

// storageBlocked runs the probe off the caller's goroutine so a probe that
// ignores its context still cannot hang detection. The result is cached for
// the session, so only the probe timeout may bound it, never the caller.
func (d *Detector) storageBlocked(ctx context.Context, env push.Environment) bool {
	probeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.probeTimeout)
	defer cancel()

	result := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				result <- fmt.Errorf("storage probe panicked: %v", r)
			}
		}()
		result <- env.ProbeStorage(probeCtx)
	}()

	select {
	case err := <-result:
		if err != nil {
			d.logger.Debug("Storage probe failed", "err", err)
			return true
		}
		return false
	case <-probeCtx.Done():
		d.logger.Debug("Storage probe timed out", "timeout", d.probeTimeout)
		return true
	}
}
