//go:build js && wasm

// Package browser binds the push lifecycle to the real browser APIs through
// syscall/js.
package browser

import (
	"context"
	"errors"
	"syscall/js"

	"github.com/tinywideclouds/go-push-subscription/pkg/push"
)

const probeDatabase = "__push_storage_probe"

type Platform struct {
	window    js.Value
	navigator js.Value
}

var _ push.Platform = (*Platform)(nil)

func New() *Platform {
	g := js.Global()
	return &Platform{window: g, navigator: g.Get("navigator")}
}

// --- Environment ---

func (p *Platform) HasServiceWorker() bool {
	return present(p.navigator) && present(p.navigator.Get("serviceWorker"))
}

func (p *Platform) HasPushManager() bool {
	return present(p.window.Get("PushManager"))
}

func (p *Platform) HasNotification() bool {
	return present(p.window.Get("Notification"))
}

func (p *Platform) UserAgent() string {
	return p.navigator.Get("userAgent").String()
}

func (p *Platform) Platform() string {
	v := p.navigator.Get("platform")
	if !present(v) {
		return ""
	}
	return v.String()
}

func (p *Platform) MaxTouchPoints() int {
	v := p.navigator.Get("maxTouchPoints")
	if v.Type() != js.TypeNumber {
		return 0
	}
	return v.Int()
}

func (p *Platform) IsStandalone() bool {
	if s := p.navigator.Get("standalone"); s.Type() == js.TypeBoolean && s.Bool() {
		return true
	}
	if p.window.Get("matchMedia").Type() != js.TypeFunction {
		return false
	}
	mq, err := call(p.window, "matchMedia", "(display-mode: standalone)")
	if err != nil {
		return false
	}
	return mq.Get("matches").Truthy()
}

// ProbeStorage writes to localStorage and opens an IndexedDB database. Safari
// private windows throw on the first or never settle the second.
func (p *Platform) ProbeStorage(ctx context.Context) error {
	if ls := p.window.Get("localStorage"); present(ls) {
		if _, err := call(ls, "setItem", probeDatabase, "1"); err != nil {
			return err
		}
		_, _ = call(ls, "removeItem", probeDatabase)
	}

	idb := p.window.Get("indexedDB")
	if !present(idb) {
		return errors.New("indexedDB unavailable")
	}
	req, err := call(idb, "open", probeDatabase)
	if err != nil {
		return err
	}

	result := make(chan error, 1)
	onSuccess := js.FuncOf(func(this js.Value, args []js.Value) any {
		_, _ = call(req.Get("result"), "close")
		_, _ = call(idb, "deleteDatabase", probeDatabase)
		result <- nil
		return nil
	})
	onError := js.FuncOf(func(this js.Value, args []js.Value) any {
		result <- jsError(req.Get("error"))
		return nil
	})
	req.Set("onsuccess", onSuccess)
	req.Set("onerror", onError)

	select {
	case err := <-result:
		onSuccess.Release()
		onError.Release()
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// --- Notifications ---

func (p *Platform) Permission() push.PermissionState {
	n := p.window.Get("Notification")
	if !present(n) {
		return push.PermissionDefault
	}
	return push.ParsePermission(n.Get("permission").String())
}

// RequestPermission supports both the promise form and the legacy callback
// form that older Safari uses.
func (p *Platform) RequestPermission(ctx context.Context) (push.PermissionState, error) {
	n := p.window.Get("Notification")
	if !present(n) {
		return push.PermissionDefault, errors.New("Notification API unavailable")
	}

	answered := make(chan string, 1)
	cb := js.FuncOf(func(this js.Value, args []js.Value) any {
		if len(args) > 0 {
			select {
			case answered <- args[0].String():
			default:
			}
		}
		return nil
	})
	defer cb.Release()

	ret, err := call(n, "requestPermission", cb)
	if err != nil {
		return push.PermissionDefault, err
	}
	if present(ret) {
		v, err := Await(ctx, ret)
		if err != nil {
			return push.PermissionDefault, err
		}
		return push.ParsePermission(v.String()), nil
	}

	select {
	case raw := <-answered:
		return push.ParsePermission(raw), nil
	case <-ctx.Done():
		return push.PermissionDefault, ctx.Err()
	}
}

// --- ServiceWorkers ---

func (p *Platform) container() js.Value {
	return p.navigator.Get("serviceWorker")
}

func (p *Platform) Register(ctx context.Context, scriptURL, scope string) (push.Registration, error) {
	opts := js.Global().Get("Object").New()
	opts.Set("scope", scope)
	v, err := callAwait(ctx, p.container(), "register", scriptURL, opts)
	if err != nil {
		return nil, err
	}
	return &registration{v: v}, nil
}

func (p *Platform) GetRegistration(ctx context.Context, scope string) (push.Registration, error) {
	v, err := callAwait(ctx, p.container(), "getRegistration", scope)
	if err != nil {
		return nil, err
	}
	if !present(v) {
		return nil, nil
	}
	return &registration{v: v}, nil
}
