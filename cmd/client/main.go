// Command netcode-client dials the authoritative server and drives the
// netcode engine. Keyboard input acquisition
// and rendering are external collaborators out of scope here; this
// binary drives the engine headlessly and logs connection/view state,
// serving as the demo harness the real renderer would replace.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	flag "github.com/spf13/pflag"

	"netcode/client"
	"netcode/logging"
	"netcode/transport"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("netcode-client", flag.ContinueOnError)
	serverAddr := fs.String("server", "127.0.0.1:8080", "server host:port")
	fakePingMs := fs.Uint32("fake-ping", 0, "artificial round-trip delay in ms, half applied in each direction; 0 disables")
	logFormat := fs.String("log-format", "text", "log format: text|json")

	if err := fs.Parse(args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	logLevel := os.Getenv("LOG_LEVEL")
	logging.Set(logging.New(*logFormat, logging.ParseLevel(logLevel), os.Stderr))

	tr, err := transport.Dial(*serverAddr)
	if err != nil {
		logging.L().Error("dial_failed", "server", *serverAddr, "error", err)
		return 1
	}
	defer tr.Close()

	if *fakePingMs > 0 {
		tr.SetFakeDelay(time.Duration(*fakePingMs/2) * time.Millisecond)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	eng := client.NewEngine(tr, client.DefaultConfig())
	now := time.Now()
	eng.Connect(now)

	const frameHz = 60
	ticker := time.NewTicker(time.Second / frameHz)
	defer ticker.Stop()

	logging.L().Info("client_connecting", "server", *serverAddr, "fake_ping_ms", *fakePingMs)

	lastLoggedState := eng.State()
	for {
		select {
		case <-ctx.Done():
			eng.Disconnect()
			logging.L().Info("client_shutdown_clean")
			return 0
		case now := <-ticker.C:
			eng.Update(now, float32(1.0/frameHz), client.InputIntent{})
			if st := eng.State(); st != lastLoggedState {
				logging.L().Info("client_state_changed", "state", st.String())
				lastLoggedState = st
				if st == client.Disconnected {
					return 1
				}
			}
		}
	}
}
