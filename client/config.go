// Package client implements the netcode engine: local prediction,
// pending-input buffering, snapshot-driven reconciliation, and
// remote-player interpolation. The engine owns the
// predicted world and pending-input queue exclusively; a renderer only
// ever reads the immutable FrameView returned by View.
package client

import "time"

// Config holds the engine's tunables and feature toggles.
type Config struct {
	TickHz int // must match the server's tick rate for reconciliation replay Δt

	PredictionOn     bool
	ReconciliationOn bool
	InterpolationOn  bool

	MaxConnectRetries     int
	ConnectResendInterval time.Duration
	SnapshotTimeout       time.Duration
	InterpDelay           time.Duration
}

const (
	DefaultTickHz                = 60
	DefaultMaxConnectRetries     = 5
	DefaultConnectResendInterval = time.Second
	DefaultSnapshotTimeout       = 2 * time.Second
	DefaultInterpDelay           = 100 * time.Millisecond
)

// DefaultConfig returns the documented defaults with every feature toggle on.
func DefaultConfig() Config {
	return Config{
		TickHz:                DefaultTickHz,
		PredictionOn:          true,
		ReconciliationOn:      true,
		InterpolationOn:       true,
		MaxConnectRetries:     DefaultMaxConnectRetries,
		ConnectResendInterval: DefaultConnectResendInterval,
		SnapshotTimeout:       DefaultSnapshotTimeout,
		InterpDelay:           DefaultInterpDelay,
	}
}

func (c Config) withDefaults() Config {
	if c.TickHz == 0 {
		c.TickHz = DefaultTickHz
	}
	if c.MaxConnectRetries == 0 {
		c.MaxConnectRetries = DefaultMaxConnectRetries
	}
	if c.ConnectResendInterval == 0 {
		c.ConnectResendInterval = DefaultConnectResendInterval
	}
	if c.SnapshotTimeout == 0 {
		c.SnapshotTimeout = DefaultSnapshotTimeout
	}
	if c.InterpDelay == 0 {
		c.InterpDelay = DefaultInterpDelay
	}
	return c
}

// ConnState is the client's connect/reconnect state machine position.
type ConnState int

const (
	Disconnected ConnState = iota
	Connecting
	Connected
)

func (s ConnState) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "disconnected"
	}
}

// InputIntent is the renderer's per-frame sampled input.
type InputIntent struct {
	Left, Right, Jump bool
}
