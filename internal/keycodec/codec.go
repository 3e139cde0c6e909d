// Package keycodec converts key material between the forms used by the
// server configuration, the browser push API and the sync backend.
package keycodec

import (
	"encoding/base64"
	"fmt"
	"strings"
	"unicode"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/tinywideclouds/go-push-subscription/pkg/push"
)

// VapidKeyLength is the size of an uncompressed P-256 point.
const VapidKeyLength = 65

const (
	opDecodeVapid = "keycodec.DecodeVapidKey"
	opEncode      = "keycodec.EncodeSubscription"
)

// DecodeVapidKey turns the configured URL-safe base64 public key into the
// 65 raw bytes the browser subscribe call expects. It fails with
// InvalidVapidKey for an absent, undecodable or wrongly sized key so the
// problem is caught before the browser is involved.
func DecodeVapidKey(encoded string) ([]byte, error) {
	if strings.TrimSpace(encoded) == "" {
		return nil, &push.Error{Kind: push.KindInvalidVapidKey, Op: opDecodeVapid, Detail: "key not configured"}
	}

	raw, err := DecodeKey(encoded)
	if err != nil {
		return nil, &push.Error{Kind: push.KindInvalidVapidKey, Op: opDecodeVapid, Detail: "not base64", Err: err}
	}
	if len(raw) != VapidKeyLength || raw[0] != 0x04 {
		return nil, &push.Error{
			Kind:   push.KindInvalidVapidKey,
			Op:     opDecodeVapid,
			Detail: fmt.Sprintf("decoded to %d bytes, want %d-byte uncompressed point", len(raw), VapidKeyLength),
		}
	}
	return raw, nil
}

// DecodeKey accepts standard or URL-safe base64, padded or not, with any
// stray whitespace.
func DecodeKey(encoded string) ([]byte, error) {
	s := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, encoded)

	s = strings.NewReplacer("-", "+", "_", "/").Replace(s)
	s = strings.TrimRight(s, "=")
	if rem := len(s) % 4; rem != 0 {
		s += strings.Repeat("=", 4-rem)
	}
	return base64.StdEncoding.DecodeString(s)
}

// EncodeSubscription extracts the key material of a live subscription. The
// browser is not contractually bound to populate both keys, so their absence
// is a checked MissingSubscriptionKeys failure.
func EncodeSubscription(sub push.LiveSubscription) (push.SubscriptionRecord, error) {
	if sub == nil {
		return push.SubscriptionRecord{}, &push.Error{Kind: push.KindMissingSubscriptionKeys, Op: opEncode, Detail: "no subscription"}
	}
	record := push.SubscriptionRecord{
		Endpoint: sub.Endpoint(),
		Keys: push.Keys{
			P256dh: sub.Key("p256dh"),
			Auth:   sub.Key("auth"),
		},
	}

	var missing []string
	if len(record.Keys.P256dh) == 0 {
		missing = append(missing, "p256dh")
	}
	if len(record.Keys.Auth) == 0 {
		missing = append(missing, "auth")
	}
	if record.Endpoint == "" {
		missing = append(missing, "endpoint")
	}
	if len(missing) > 0 {
		return push.SubscriptionRecord{}, &push.Error{
			Kind:   push.KindMissingSubscriptionKeys,
			Op:     opEncode,
			Detail: strings.Join(missing, ","),
		}
	}
	return record, nil
}

// Payload is the body the sync backend expects: each key base64-encoded on
// its own.
func Payload(record push.SubscriptionRecord) webpush.Subscription {
	return webpush.Subscription{
		Endpoint: record.Endpoint,
		Keys: webpush.Keys{
			P256dh: base64.StdEncoding.EncodeToString(record.Keys.P256dh),
			Auth:   base64.StdEncoding.EncodeToString(record.Keys.Auth),
		},
	}
}

// RecordFromPayload reverses Payload.
func RecordFromPayload(sub webpush.Subscription) (push.SubscriptionRecord, error) {
	p256dh, err := DecodeKey(sub.Keys.P256dh)
	if err != nil {
		return push.SubscriptionRecord{}, fmt.Errorf("invalid p256dh key: %w", err)
	}
	auth, err := DecodeKey(sub.Keys.Auth)
	if err != nil {
		return push.SubscriptionRecord{}, fmt.Errorf("invalid auth key: %w", err)
	}
	return push.SubscriptionRecord{
		Endpoint: sub.Endpoint,
		Keys:     push.Keys{P256dh: p256dh, Auth: auth},
	}, nil
}
