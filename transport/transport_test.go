package transport

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendRecvLoopback(t *testing.T) {
	server, err := Listen("127.0.0.1:0")
	require.NoError(t, err)
	defer server.Close()

	client, err := Dial(server.LocalAddr().String())
	require.NoError(t, err)
	defer client.Close()

	client.Send(nil, []byte("hello"))

	var got []Packet
	require.Eventually(t, func() bool {
		got = append(got, server.Recv()...)
		return len(got) == 1
	}, time.Second, 5*time.Millisecond)

	assert.Equal(t, "hello", string(got[0].Data))

	server.Send(got[0].Addr, []byte("world"))

	var reply []Packet
	require.Eventually(t, func() bool {
		reply = append(reply, client.Recv()...)
		return len(reply) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, "world", string(reply[0].Data))
}

func TestSendOversizePayloadPanics(t *testing.T) {
	server, err := Listen("127.0.0.1:0")
	require.NoError(t, err)
	defer server.Close()

	assert.Panics(t, func() {
		server.Send(nil, make([]byte, MTU+1))
	})
}

func TestFakeDelayDefersDelivery(t *testing.T) {
	server, err := Listen("127.0.0.1:0")
	require.NoError(t, err)
	defer server.Close()

	client, err := Dial(server.LocalAddr().String())
	require.NoError(t, err)
	defer client.Close()

	client.SetFakeDelay(150 * time.Millisecond)
	client.Send(nil, []byte("delayed"))

	// Shortly after sending, the server should not have it yet (outbound
	// delay means the underlying socket write hasn't even happened).
	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, server.Recv())

	var got []Packet
	require.Eventually(t, func() bool {
		got = append(got, server.Recv()...)
		return len(got) == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "delayed", string(got[0].Data))
}
