// Command netcode-server runs the authoritative tick loop over UDP.
// Flag names are contractual, matching the documented server CLI surface.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	flag "github.com/spf13/pflag"

	"netcode/logging"
	"netcode/server"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("netcode-server", flag.ContinueOnError)
	host := fs.String("host", "127.0.0.1", "bind IP")
	port := fs.Uint16("port", 8080, "UDP port")
	tickRate := fs.Uint32("tick-rate", server.DefaultTickHz, "simulation tick rate in Hz, valid 20..128")
	maxClients := fs.Uint32("max-clients", server.DefaultMaxClients, "maximum simultaneous clients, max 256")
	metricsAddr := fs.String("metrics-addr", "", "Prometheus metrics HTTP listen address (e.g. :9100); empty disables")
	logFormat := fs.String("log-format", "text", "log format: text|json")

	if err := fs.Parse(args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	logLevel := os.Getenv("LOG_LEVEL")
	logging.Set(logging.New(*logFormat, logging.ParseLevel(logLevel), os.Stderr))

	cfg := server.Config{
		BindAddr:    fmt.Sprintf("%s:%d", *host, *port),
		TickHz:      int(*tickRate),
		MaxClients:  int(*maxClients),
		MetricsAddr: *metricsAddr,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	start := time.Now()
	logging.L().Info("server_starting", "bind", cfg.BindAddr, "tick_hz", cfg.TickHz, "max_clients", cfg.MaxClients)

	if err := server.Run(ctx, cfg); err != nil {
		logging.L().Error("server_exit_error", "error", err, "uptime", time.Since(start))
		return 1
	}

	logging.L().Info("server_shutdown_clean", "uptime", time.Since(start))
	return 0
}
