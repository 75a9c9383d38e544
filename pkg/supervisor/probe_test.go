package supervisor

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientHost(t *testing.T) {
	assert.Equal(t, "127.0.0.1", clientHost("0.0.0.0"))
	assert.Equal(t, "127.0.0.1", clientHost(""))
	assert.Equal(t, "::1", clientHost("::"))
	assert.Equal(t, "10.0.0.5", clientHost("10.0.0.5"))
}

func TestPortAvailable(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port

	assert.False(t, PortAvailable("127.0.0.1", port))
	require.NoError(t, ln.Close())
	assert.True(t, PortAvailable("127.0.0.1", port))
}

func TestFindAvailablePort(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	busy := ln.Addr().(*net.TCPAddr).Port

	port, err := FindAvailablePort("127.0.0.1", busy, 20)
	require.NoError(t, err)
	assert.NotEqual(t, busy, port)

	_, err = FindAvailablePort("127.0.0.1", busy, 1)
	assert.Error(t, err)
}

func TestLogTail(t *testing.T) {
	tail := newLogTail(3)
	assert.Empty(t, tail.last(0))

	tail.add("a")
	tail.add("b")
	assert.Equal(t, []string{"a", "b"}, tail.last(0))

	tail.add("c")
	tail.add("d")
	assert.Equal(t, []string{"b", "c", "d"}, tail.last(0))
	assert.Equal(t, []string{"c", "d"}, tail.last(2))
}
