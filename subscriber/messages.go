package subscriber

import (
	"github.com/tinywideclouds/go-push-subscription/pkg/push"
)

var messages = map[push.Kind]string{
	push.KindUnsupported:              "This browser does not support push notifications.",
	push.KindPrivateModeDetected:      "Notifications are not available in a private window. Open the app in a normal window to enable them.",
	push.KindPlatformRequiresInstall:  "On iPhone and iPad, add the app to your Home Screen and open it from there to enable notifications.",
	push.KindPermissionAlreadyDenied:  "Notifications are blocked for this site. Allow them in your browser or system settings, then try again.",
	push.KindPermissionDenied:         "Notifications are blocked for this site. Allow them in your browser or system settings, then try again.",
	push.KindPermissionDismissed:      "Notification permission was not granted. Click enable again to choose.",
	push.KindInvalidVapidKey:          "Notifications are not available right now. Please contact support.",
	push.KindRegistrationError:        "Notifications are not available right now. Please contact support.",
	push.KindMissingSubscriptionKeys:  "Your browser returned an incomplete subscription. Please try again.",
	push.KindBrowserSubscribeFailed:   "Your browser could not enable notifications. Please try again in a moment.",
	push.KindBackendSyncFailed:        "Notifications are enabled on this device, but we could not save the setting. Please try again.",
	push.KindBrowserUnsubscribeFailed: "Your browser could not disable notifications. Please try again.",
	push.KindReconcileFailed:          "We could not check whether notifications are on for this device. Reload the page to try again.",
}

var diagnostics = map[string]string{
	push.ReasonBasicAPIMissing:  "This browser does not support push notifications.",
	push.ReasonPrivateMode:      "Notifications are not available in a private window.",
	push.ReasonIOSNonStandalone: "On iPhone and iPad, notifications only work when the app is opened from the Home Screen.",
	push.ReasonIOSSimulator:     "Running in the iOS Simulator; push delivery may not work.",
}

// Describe turns a lifecycle error into text for the settings toggle. A nil
// error yields the capability warning, if any, so the UI can show it before
// the user tries.
func Describe(err error, cs push.CapabilityState) string {
	if err == nil {
		return diagnostics[cs.Reason]
	}
	if msg, ok := messages[push.KindOf(err)]; ok {
		return msg
	}
	return "Something went wrong with notifications. Please try again."
}
