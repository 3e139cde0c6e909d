//go:build js && wasm

// Command pushclient is the WebAssembly build of the subscription manager.
// It installs globalThis.pushClient for the settings page toggles:
// mount, subscribe and unsubscribe return Promises; state and snapshot are
// synchronous reads.
//
// If globalThis.pushAuthToken is a function, its (possibly promised) return
// value is sent as the bearer token on every sync call.
package main

import (
	"context"
	_ "embed"
	"log/slog"
	"os"
	"syscall/js"

	"gopkg.in/yaml.v3"

	"github.com/tinywideclouds/go-push-subscription/internal/platform/browser"
	"github.com/tinywideclouds/go-push-subscription/internal/syncclient"
	"github.com/tinywideclouds/go-push-subscription/pkg/push"
	"github.com/tinywideclouds/go-push-subscription/subscriber"
	"github.com/tinywideclouds/go-push-subscription/subscriber/config"
)

//go:embed local.yaml
var configFile []byte

func main() {
	logLevel := slog.LevelInfo
	if os.Getenv("LOG_LEVEL") == "debug" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})).With("service", "push-client")

	var yamlCfg config.YamlConfig
	if err := yaml.Unmarshal(configFile, &yamlCfg); err != nil {
		logger.Error("Failed to unmarshal embedded yaml config", "err", err)
		os.Exit(1)
	}
	baseCfg, err := config.NewConfigFromYaml(&yamlCfg, logger)
	if err != nil {
		logger.Error("Config mapping failed", "err", err)
		os.Exit(1)
	}
	if v := js.Global().Get("PUSH_VAPID_PUBLIC_KEY"); v.Type() == js.TypeString {
		baseCfg.VapidPublicKey = v.String()
	}
	cfg, err := config.UpdateConfigWithEnvOverrides(baseCfg, logger)
	if err != nil {
		logger.Error("Config failed", "err", err)
		os.Exit(1)
	}

	backend := syncclient.NewClient(cfg.APIBaseURL, cfg.SyncTimeout, logger,
		syncclient.WithTokenSource(pageToken))
	manager := subscriber.New(cfg, browser.New(), backend, logger)

	api := js.Global().Get("Object").New()
	api.Set("mount", promised(func(ctx context.Context) any {
		snap, err := manager.Mount(ctx)
		return snapshotValue(snap, err)
	}))
	api.Set("subscribe", promised(func(ctx context.Context) any {
		out, err := manager.Subscribe(ctx)
		return outcomeValue(out, err, manager.Snapshot())
	}))
	api.Set("unsubscribe", promised(func(ctx context.Context) any {
		out, err := manager.Unsubscribe(ctx)
		return outcomeValue(out, err, manager.Snapshot())
	}))
	api.Set("snapshot", js.FuncOf(func(this js.Value, args []js.Value) any {
		return snapshotValue(manager.Snapshot(), nil)
	}))
	api.Set("state", js.FuncOf(func(this js.Value, args []js.Value) any {
		return string(manager.State())
	}))
	js.Global().Set("pushClient", api)

	logger.Info("Push client ready", "api_base_url", cfg.APIBaseURL)
	select {}
}

func pageToken(ctx context.Context) (string, error) {
	fn := js.Global().Get("pushAuthToken")
	if fn.Type() != js.TypeFunction {
		return "", nil
	}
	v, err := browser.Await(ctx, fn.Invoke())
	if err != nil {
		return "", err
	}
	if v.Type() != js.TypeString {
		return "", nil
	}
	return v.String(), nil
}

// promised exposes fn as a JS function returning a Promise. fn runs on its
// own goroutine since blocking inside a js.Func deadlocks the event loop.
func promised(fn func(ctx context.Context) any) js.Func {
	return js.FuncOf(func(this js.Value, args []js.Value) any {
		executor := js.FuncOf(func(this js.Value, settle []js.Value) any {
			resolve := settle[0]
			go func() {
				resolve.Invoke(fn(context.Background()))
			}()
			return nil
		})
		defer executor.Release()
		return js.Global().Get("Promise").New(executor)
	})
}

func snapshotValue(snap subscriber.Snapshot, err error) map[string]any {
	v := map[string]any{
		"supported":  snap.Capability.Supported(),
		"reason":     snap.Capability.Reason,
		"permission": string(snap.Permission),
		"state":      string(snap.State),
		"message":    subscriber.Describe(err, snap.Capability),
	}
	if err != nil {
		v["error"] = push.KindOf(err).String()
	}
	return v
}

func outcomeValue(out subscriber.Outcome, err error, snap subscriber.Snapshot) map[string]any {
	v := snapshotValue(snap, err)
	v["state"] = string(out.State)
	if out.SyncWarning != nil {
		v["warning"] = push.KindOf(out.SyncWarning).String()
		v["warningMessage"] = subscriber.Describe(out.SyncWarning, snap.Capability)
	}
	return v
}
