package tnet

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestListen(t *testing.T) {
	l, err := Listen("localhost:")
	require.NoError(t, err)
	require.Equal(t, "tcp", l.Addr().Network())
	require.Regexp(t, `^127\.0\.0\.1:\d+$`, l.Addr().String())
	require.NoError(t, l.Close())
}

func TestListenOnRandomPort(t *testing.T) {
	l1 := ListenOnRandomPort()
	defer l1.Close()
	l2 := ListenOnRandomPort()
	defer l2.Close()
	require.NotEqual(t, l1.Addr().String(), l2.Addr().String())
}

func TestIsClosedConnectionError(t *testing.T) {
	l := ListenOnRandomPort()
	require.NoError(t, l.Close())
	_, err := l.Accept()
	require.True(t, IsClosedConnectionError(err))

	require.False(t, IsClosedConnectionError(nil))
	require.False(t, IsClosedConnectionError(errors.New("connection refused")))
}
