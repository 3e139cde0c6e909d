package capability

import (
	"context"
	"strings"

	"github.com/tinywideclouds/go-push-subscription/pkg/push"
)

// traits are the user-agent derived facts every quirk predicate reads.
type traits struct {
	ios       bool
	safari    bool
	simulator bool
}

func readTraits(env push.Environment) traits {
	ua := env.UserAgent()
	platform := env.Platform()

	ios := strings.Contains(ua, "iPhone") || strings.Contains(ua, "iPad") || strings.Contains(ua, "iPod")
	// iPadOS reports itself as a Mac; touch support gives it away.
	if !ios && platform == "MacIntel" && env.MaxTouchPoints() > 1 {
		ios = true
	}

	safari := strings.Contains(ua, "Safari")
	for _, other := range []string{"Chrome", "Chromium", "CriOS", "FxiOS", "EdgiOS", "Edg/", "Android"} {
		if strings.Contains(ua, other) {
			safari = false
			break
		}
	}

	simulator := strings.Contains(ua, "Simulator") || strings.Contains(platform, "Simulator")

	return traits{ios: ios, safari: safari, simulator: simulator}
}

// quirk is one known-broken sub-case. A blocking quirk turns the verdict into
// Unsupported; a non-blocking one only attaches a diagnostic.
type quirk struct {
	reason   string
	blocking bool
	applies  func(ctx context.Context, d *Detector, env push.Environment, t traits) bool
}

// quirks are evaluated in order. The first blocking match ends evaluation,
// and only the first non-blocking match contributes a diagnostic.
var quirks = []quirk{
	{
		reason:   push.ReasonPrivateMode,
		blocking: true,
		applies: func(ctx context.Context, d *Detector, env push.Environment, t traits) bool {
			if !t.ios && !t.safari {
				return false
			}
			return d.storageBlocked(ctx, env)
		},
	},
	{
		reason: push.ReasonIOSSimulator,
		applies: func(_ context.Context, _ *Detector, _ push.Environment, t traits) bool {
			return t.ios && t.simulator
		},
	},
	{
		reason: push.ReasonIOSNonStandalone,
		applies: func(_ context.Context, _ *Detector, env push.Environment, t traits) bool {
			return t.ios && !env.IsStandalone()
		},
	},
}
