// Package tnet contains small networking helpers.
package tnet

import (
	"context"
	"net"
	"strings"

	"github.com/ridge/must/v2"
	"time"
)

var lc = net.ListenConfig{
	KeepAlive: 3 * time.Minute,
}

// Listen installs a TCP listener on the specified [address]:port with TCP
// keep-alive enabled
func Listen(address string) (net.Listener, error) {
	return lc.Listen(context.Background(), "tcp", address)
}

// ListenOnRandomPort selects a random local TCP port and installs a listener
// on it
func ListenOnRandomPort() net.Listener {
	return must.OK1(Listen("localhost:"))
}

// IsClosedConnectionError returns whether the passed error is "closed network
// connection".
//
// The underlying error is not exported from net, so it can't be matched with
// errors.Is. It happens routinely when a connection is torn down while a read
// is in flight, which is how deliberate stream closure looks from the read
// side.
func IsClosedConnectionError(err error) bool {
	return err != nil && strings.HasSuffix(err.Error(), "use of closed network connection")
}
