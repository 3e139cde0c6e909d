//go:build js && wasm

package browser

import (
	"context"
	"fmt"
	"syscall/js"
)

// JSError is a rejected promise or thrown exception, reduced to the DOMException
// name and message.
type JSError struct {
	Name    string
	Message string
}

func (e *JSError) Error() string {
	if e.Name == "" {
		return e.Message
	}
	return e.Name + ": " + e.Message
}

func jsError(v js.Value) error {
	if v.Type() == js.TypeObject {
		return &JSError{Name: v.Get("name").String(), Message: v.Get("message").String()}
	}
	return &JSError{Message: v.String()}
}

// Await blocks until p settles or ctx is done. A non-thenable value is
// returned as is.
func Await(ctx context.Context, p js.Value) (js.Value, error) {
	if p.Type() != js.TypeObject || p.Get("then").Type() != js.TypeFunction {
		return p, nil
	}

	type settled struct {
		val js.Value
		err error
	}
	done := make(chan settled, 1)

	onResolve := js.FuncOf(func(this js.Value, args []js.Value) any {
		v := js.Undefined()
		if len(args) > 0 {
			v = args[0]
		}
		done <- settled{val: v}
		return nil
	})
	onReject := js.FuncOf(func(this js.Value, args []js.Value) any {
		var err error = &JSError{Message: "promise rejected"}
		if len(args) > 0 {
			err = jsError(args[0])
		}
		done <- settled{err: err}
		return nil
	})

	p.Call("then", onResolve, onReject)

	select {
	case s := <-done:
		onResolve.Release()
		onReject.Release()
		return s.val, s.err
	case <-ctx.Done():
		// The callbacks stay alive: the promise may still settle and the
		// buffered channel absorbs it.
		return js.Undefined(), ctx.Err()
	}
}

// call invokes a method and turns a thrown exception into an error.
func call(v js.Value, method string, args ...any) (result js.Value, err error) {
	defer func() {
		if r := recover(); r != nil {
			if jerr, ok := r.(js.Error); ok {
				err = jsError(jerr.Value)
				return
			}
			err = fmt.Errorf("%s: %v", method, r)
		}
	}()
	return v.Call(method, args...), nil
}

func callAwait(ctx context.Context, v js.Value, method string, args ...any) (js.Value, error) {
	p, err := call(v, method, args...)
	if err != nil {
		return js.Undefined(), err
	}
	return Await(ctx, p)
}

func present(v js.Value) bool {
	return !v.IsUndefined() && !v.IsNull()
}
