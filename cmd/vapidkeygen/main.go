// Command vapidkeygen prints a fresh VAPID key pair. The public half goes
// into VAPID_PUBLIC_KEY for both the client and the sync endpoint; the
// private half belongs to whatever sends the reminders.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/SherClockHolmes/webpush-go"

	"github.com/tinywideclouds/go-push-subscription/internal/keycodec"
)

func main() {
	envFormat := flag.Bool("env", false, "print as KEY=value lines")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	privateKey, publicKey, err := webpush.GenerateVAPIDKeys()
	if err != nil {
		logger.Error("Key generation failed", "err", err)
		os.Exit(1)
	}

	// Round-trip through the same decoder the client uses before handing
	// the key out.
	if _, err := keycodec.DecodeVapidKey(publicKey); err != nil {
		logger.Error("Generated public key does not decode", "err", err)
		os.Exit(1)
	}

	if *envFormat {
		fmt.Printf("VAPID_PUBLIC_KEY=%s\nVAPID_PRIVATE_KEY=%s\n", publicKey, privateKey)
		return
	}
	fmt.Printf("public:  %s\nprivate: %s\n", publicKey, privateKey)
}
