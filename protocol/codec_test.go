package protocol

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestRoundTrip checks decode(encode(m)) == m for every variant,
// including boundary values (max u32, empty player list, 256 players).
func TestRoundTrip(t *testing.T) {
	cases := []Message{
		Connect{ClientVersion: 1},
		Connect{ClientVersion: math.MaxUint32},
		Connected{ClientID: math.MaxUint32},
		Input{Sequence: 1, ClientTimestampMs: math.MaxUint64, Left: true, Right: false, Jump: true},
		Input{Sequence: 0},
		GameState{Tick: 1, ServerTimeMs: 123, LastProcessed: []Ack{}, Players: []PlayerState{}},
		Disconnect{},
		Disconnected{Reason: ""},
		Disconnected{Reason: "full"},
	}

	for _, m := range cases {
		got, err := Decode(Encode(m))
		require.NoError(t, err)
		assert.Equal(t, m, got)
	}
}

func TestRoundTripGameStateWith256Players(t *testing.T) {
	players := make([]PlayerState, 256)
	acks := make([]Ack, 256)
	for i := range players {
		players[i] = PlayerState{ClientID: uint32(i), X: float32(i), Y: -float32(i), VX: 1.5, VY: -1.5}
		acks[i] = Ack{ClientID: uint32(i), Sequence: uint32(i * 2)}
	}

	gs := GameState{Tick: math.MaxUint32, ServerTimeMs: math.MaxUint64, LastProcessed: acks, Players: players}

	got, err := Decode(Encode(gs))
	require.NoError(t, err)
	assert.Equal(t, gs, got)
}

func TestDecodeRejectsUnknownTag(t *testing.T) {
	_, err := Decode([]byte{255, 0, 0, 0, 0})
	require.ErrorIs(t, err, ErrMalformedPacket)
}

func TestDecodeRejectsShortRead(t *testing.T) {
	_, err := Decode([]byte{byte(TagConnect), 1, 2})
	require.ErrorIs(t, err, ErrMalformedPacket)
}

func TestDecodeRejectsEmptyPacket(t *testing.T) {
	_, err := Decode(nil)
	require.ErrorIs(t, err, ErrMalformedPacket)
}

func TestDecodeRejectsOversizePayload(t *testing.T) {
	_, err := Decode(make([]byte, MTU+1))
	require.ErrorIs(t, err, ErrMalformedPacket)
}

func TestDecodeRejectsOversizeStringLength(t *testing.T) {
	buf := Encode(Disconnected{Reason: "hi"})
	// Tamper the length prefix to exceed the MTU budget.
	buf[1] = 0xff
	buf[2] = 0xff
	buf[3] = 0xff
	buf[4] = 0x7f
	_, err := Decode(buf)
	require.Error(t, err)
}
