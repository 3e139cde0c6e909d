//go:build js && wasm

package browser

import (
	"context"
	"syscall/js"

	"github.com/tinywideclouds/go-push-subscription/pkg/push"
)

type registration struct {
	v js.Value
}

func (r *registration) Scope() string {
	return r.v.Get("scope").String()
}

func (r *registration) pushManager() js.Value {
	return r.v.Get("pushManager")
}

func (r *registration) Subscription(ctx context.Context) (push.LiveSubscription, error) {
	v, err := callAwait(ctx, r.pushManager(), "getSubscription")
	if err != nil {
		return nil, err
	}
	if !present(v) {
		return nil, nil
	}
	return &subscription{v: v}, nil
}

func (r *registration) Subscribe(ctx context.Context, applicationServerKey []byte) (push.LiveSubscription, error) {
	key := js.Global().Get("Uint8Array").New(len(applicationServerKey))
	js.CopyBytesToJS(key, applicationServerKey)

	opts := js.Global().Get("Object").New()
	opts.Set("userVisibleOnly", true)
	opts.Set("applicationServerKey", key)

	v, err := callAwait(ctx, r.pushManager(), "subscribe", opts)
	if err != nil {
		return nil, err
	}
	return &subscription{v: v}, nil
}

type subscription struct {
	v js.Value
}

func (s *subscription) Endpoint() string {
	e := s.v.Get("endpoint")
	if !present(e) {
		return ""
	}
	return e.String()
}

func (s *subscription) Key(name string) []byte {
	if s.v.Get("getKey").Type() != js.TypeFunction {
		return nil
	}
	buf, err := call(s.v, "getKey", name)
	if err != nil || !present(buf) {
		return nil
	}
	view := js.Global().Get("Uint8Array").New(buf)
	n := view.Get("length").Int()
	if n == 0 {
		return nil
	}
	out := make([]byte, n)
	js.CopyBytesToGo(out, view)
	return out
}

func (s *subscription) Unsubscribe(ctx context.Context) (bool, error) {
	v, err := callAwait(ctx, s.v, "unsubscribe")
	if err != nil {
		return false, err
	}
	return v.Truthy(), nil
}
