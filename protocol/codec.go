// Package protocol implements the closed set of wire messages exchanged
// between client and server, and their binary (de)serialization. The
// wire layout is a single-byte tag prefix followed by the variant's
// fields in declaration order, each field fixed-width little-endian;
// strings are u32-length-prefixed. encode is total; decode fails with
// ErrMalformedPacket on an unknown tag, a short read, or a string length
// exceeding the MTU budget.
package protocol

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// MTU is the maximum size of a single encoded message.
const MTU = 1200

// ErrMalformedPacket is returned by Decode for any packet that cannot be
// safely interpreted: unknown tag, truncated read, or oversize string.
var ErrMalformedPacket = errors.New("protocol: malformed packet")

// Tag identifies which variant follows the prefix byte.
type Tag uint8

const (
	TagConnect Tag = iota
	TagConnected
	TagInput
	TagGameState
	TagDisconnect
	TagDisconnected
)

// Message is implemented by every wire variant.
type Message interface {
	tag() Tag
}

// Connect requests a new session. Protocol version 1; the server may
// refuse a mismatched ClientVersion by silently dropping the packet.
type Connect struct {
	ClientVersion uint32
}

// Connected is the server's acceptance reply, carrying the assigned
// client_id.
type Connected struct {
	ClientID uint32
}

// Input is one client's input sample for one client-tick.
type Input struct {
	Sequence          uint32
	ClientTimestampMs uint64
	Left              bool
	Right             bool
	Jump              bool
}

// Ack pairs a client_id with the newest sequence folded into a tick's
// simulation, as carried in a GameState's last_processed map.
type Ack struct {
	ClientID uint32
	Sequence uint32
}

// PlayerState is one live player's state as broadcast in a snapshot.
type PlayerState struct {
	ClientID uint32
	X, Y     float32
	VX, VY   float32
}

// GameState is the authoritative snapshot produced once per server tick.
type GameState struct {
	Tick          uint32
	ServerTimeMs  uint64
	LastProcessed []Ack
	Players       []PlayerState
}

// Disconnect is an explicit client-initiated session end.
type Disconnect struct{}

// Disconnected is the server's notice that a session has ended, with a
// human-readable reason (e.g. "full", "timeout").
type Disconnected struct {
	Reason string
}

func (Connect) tag() Tag      { return TagConnect }
func (Connected) tag() Tag    { return TagConnected }
func (Input) tag() Tag        { return TagInput }
func (GameState) tag() Tag    { return TagGameState }
func (Disconnect) tag() Tag   { return TagDisconnect }
func (Disconnected) tag() Tag { return TagDisconnected }

// Encode serializes m to its wire representation. Encode is total: it
// never fails for any well-formed Message value constructible in Go.
func Encode(m Message) []byte {
	buf := new(bytes.Buffer)
	buf.WriteByte(byte(m.tag()))

	switch v := m.(type) {
	case Connect:
		writeU32(buf, v.ClientVersion)
	case Connected:
		writeU32(buf, v.ClientID)
	case Input:
		writeU32(buf, v.Sequence)
		writeU64(buf, v.ClientTimestampMs)
		writeBool(buf, v.Left)
		writeBool(buf, v.Right)
		writeBool(buf, v.Jump)
	case GameState:
		writeU32(buf, v.Tick)
		writeU64(buf, v.ServerTimeMs)
		writeU32(buf, uint32(len(v.LastProcessed)))
		for _, a := range v.LastProcessed {
			writeU32(buf, a.ClientID)
			writeU32(buf, a.Sequence)
		}
		writeU32(buf, uint32(len(v.Players)))
		for _, p := range v.Players {
			writeU32(buf, p.ClientID)
			writeF32(buf, p.X)
			writeF32(buf, p.Y)
			writeF32(buf, p.VX)
			writeF32(buf, p.VY)
		}
	case Disconnect:
		// no fields
	case Disconnected:
		writeString(buf, v.Reason)
	default:
		panic(fmt.Sprintf("protocol: unhandled message type %T", m))
	}

	return buf.Bytes()
}

// Decode parses a wire packet into its concrete Message. It returns
// ErrMalformedPacket (wrapped with context) for any unknown tag, short
// read, or string field longer than the MTU budget.
func Decode(data []byte) (Message, error) {
	if len(data) > MTU {
		return nil, fmt.Errorf("%w: payload %d bytes exceeds MTU %d", ErrMalformedPacket, len(data), MTU)
	}
	if len(data) < 1 {
		return nil, fmt.Errorf("%w: empty packet", ErrMalformedPacket)
	}

	r := bytes.NewReader(data[1:])
	switch Tag(data[0]) {
	case TagConnect:
		v, err := readU32(r)
		if err != nil {
			return nil, malformed(err)
		}
		return Connect{ClientVersion: v}, nil

	case TagConnected:
		v, err := readU32(r)
		if err != nil {
			return nil, malformed(err)
		}
		return Connected{ClientID: v}, nil

	case TagInput:
		seq, err := readU32(r)
		if err != nil {
			return nil, malformed(err)
		}
		ts, err := readU64(r)
		if err != nil {
			return nil, malformed(err)
		}
		left, err := readBool(r)
		if err != nil {
			return nil, malformed(err)
		}
		right, err := readBool(r)
		if err != nil {
			return nil, malformed(err)
		}
		jump, err := readBool(r)
		if err != nil {
			return nil, malformed(err)
		}
		return Input{Sequence: seq, ClientTimestampMs: ts, Left: left, Right: right, Jump: jump}, nil

	case TagGameState:
		tick, err := readU32(r)
		if err != nil {
			return nil, malformed(err)
		}
		st, err := readU64(r)
		if err != nil {
			return nil, malformed(err)
		}
		ackCount, err := readU32(r)
		if err != nil {
			return nil, malformed(err)
		}
		acks := make([]Ack, 0, ackCount)
		for i := uint32(0); i < ackCount; i++ {
			cid, err := readU32(r)
			if err != nil {
				return nil, malformed(err)
			}
			seq, err := readU32(r)
			if err != nil {
				return nil, malformed(err)
			}
			acks = append(acks, Ack{ClientID: cid, Sequence: seq})
		}
		playerCount, err := readU32(r)
		if err != nil {
			return nil, malformed(err)
		}
		players := make([]PlayerState, 0, playerCount)
		for i := uint32(0); i < playerCount; i++ {
			cid, err := readU32(r)
			if err != nil {
				return nil, malformed(err)
			}
			x, err := readF32(r)
			if err != nil {
				return nil, malformed(err)
			}
			y, err := readF32(r)
			if err != nil {
				return nil, malformed(err)
			}
			vx, err := readF32(r)
			if err != nil {
				return nil, malformed(err)
			}
			vy, err := readF32(r)
			if err != nil {
				return nil, malformed(err)
			}
			players = append(players, PlayerState{ClientID: cid, X: x, Y: y, VX: vx, VY: vy})
		}
		return GameState{Tick: tick, ServerTimeMs: st, LastProcessed: acks, Players: players}, nil

	case TagDisconnect:
		return Disconnect{}, nil

	case TagDisconnected:
		s, err := readString(r)
		if err != nil {
			return nil, malformed(err)
		}
		return Disconnected{Reason: s}, nil

	default:
		return nil, fmt.Errorf("%w: unknown tag %d", ErrMalformedPacket, data[0])
	}
}

func malformed(err error) error {
	return fmt.Errorf("%w: %v", ErrMalformedPacket, err)
}

func writeU32(buf *bytes.Buffer, v uint32) { _ = binary.Write(buf, binary.LittleEndian, v) }
func writeU64(buf *bytes.Buffer, v uint64) { _ = binary.Write(buf, binary.LittleEndian, v) }
func writeF32(buf *bytes.Buffer, v float32) { _ = binary.Write(buf, binary.LittleEndian, v) }

func writeBool(buf *bytes.Buffer, b bool) {
	if b {
		buf.WriteByte(1)
	} else {
		buf.WriteByte(0)
	}
}

func writeString(buf *bytes.Buffer, s string) {
	writeU32(buf, uint32(len(s)))
	buf.WriteString(s)
}

func readU32(r *bytes.Reader) (uint32, error) {
	var v uint32
	err := binary.Read(r, binary.LittleEndian, &v)
	return v, err
}

func readU64(r *bytes.Reader) (uint64, error) {
	var v uint64
	err := binary.Read(r, binary.LittleEndian, &v)
	return v, err
}

func readF32(r *bytes.Reader) (float32, error) {
	var v float32
	err := binary.Read(r, binary.LittleEndian, &v)
	return v, err
}

func readBool(r *bytes.Reader) (bool, error) {
	b, err := r.ReadByte()
	if err != nil {
		return false, err
	}
	return b != 0, nil
}

func readString(r *bytes.Reader) (string, error) {
	n, err := readU32(r)
	if err != nil {
		return "", err
	}
	if n > MTU {
		return "", fmt.Errorf("string length %d exceeds MTU budget", n)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}
