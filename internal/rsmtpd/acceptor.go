package rsmtpd

import (
	"bufio"
	"net"
	"strconv"

	"github.com/alfmel/rsmtpd-go/internal/haproxy"

	"blitiri.com.ar/go/log"
)

// SessionFactory builds a ProtocolEngine for one freshly accepted
// connection, with addr/port already known. It is supplied by the
// daemon's startup code (cmd/rsmtpd), which owns the Config,
// HandlerChainConfig and TLSManager the engine is built from.
type SessionFactory func(conn net.Conn, sock *LineSocket, shared *SharedState) *ProtocolEngine

// Acceptor binds a listening socket and spawns an independent session
// task per accepted connection (spec.md §4.7). It never blocks on a
// single session; each task owns its connection and closes it on
// return.
type Acceptor struct {
	ServerName     string
	ServerVersion  string
	MaxMessageSize int64
	TLSAvailable   bool

	// HAProxyEnabled, when set, expects every accepted connection to
	// begin with a HAProxy protocol v1 preamble identifying the real
	// client address, as when the server sits behind a TCP proxy.
	HAProxyEnabled bool

	NewSession SessionFactory
}

// Serve accepts connections from l until it returns an error (listener
// closed), spawning one goroutine per connection. Matches chasquid's
// Server.serve loop; the HAProxy preamble is read per connection in
// handle when HAProxyEnabled is set.
func (a *Acceptor) Serve(l net.Listener) error {
	for {
		conn, err := l.Accept()
		if err != nil {
			return err
		}
		go a.handle(conn)
	}
}

// ListenAndServe binds addr with address/port reuse semantics delegated
// to net.Listen ("tcp") and serves it. SO_REUSEADDR is the platform
// default for net.Listen("tcp", ...) on Unix.
func (a *Acceptor) ListenAndServe(addr string) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	log.Infof("rsmtpd listening on %s", addr)
	return a.Serve(l)
}

func (a *Acceptor) handle(conn net.Conn) {
	defer conn.Close()

	remoteAddr := conn.RemoteAddr().String()

	var br *bufio.Reader
	if a.HAProxyEnabled {
		br = bufio.NewReader(conn)
		src, _, err := haproxy.Handshake(br)
		if err != nil {
			log.Errorf("rsmtpd: HAProxy handshake failed from %s: %v", remoteAddr, err)
			return
		}
		remoteAddr = src.String()
	}

	host, port, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		host = remoteAddr
		port = ""
	}

	shared := NewSharedState(host, port, a.TLSAvailable, a.ServerVersion, a.MaxMessageSize)

	var sock *LineSocket
	if br != nil {
		sock = newLineSocketFromReader(conn, br)
	} else {
		sock = NewLineSocket(conn)
	}

	engine := a.NewSession(conn, sock, shared)
	engine.Run()
}

// FormatAddr joins a host and numeric port the way Config's address/port
// fields are combined into a net.Listen target.
func FormatAddr(address string, port int) string {
	return net.JoinHostPort(address, strconv.Itoa(port))
}
