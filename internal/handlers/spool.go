package handlers

import (
	"net"
	"os"

	"github.com/alfmel/rsmtpd-go/internal/rsmtpd"
)

// defaultUnlink removes a spool file from disk. Handlers reference it
// through a field rather than calling os.Remove directly so tests can
// substitute a stub.
func defaultUnlink(path string) error {
	return os.Remove(path)
}

// clientAddr adapts SharedState.Client's IP/port strings to net.Addr, for
// handlers that report through internal/maillog (which, like chasquid's
// courier/queue, logs against a net.Addr rather than bare strings).
type clientAddr struct {
	ip, port string
}

func (a clientAddr) Network() string { return "tcp" }
func (a clientAddr) String() string  { return net.JoinHostPort(a.ip, a.port) }

func addrOf(shared *rsmtpd.SharedState) net.Addr {
	return clientAddr{ip: shared.Client.IP, port: shared.Client.Port}
}
