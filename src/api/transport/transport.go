package transport

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	logs "github.com/danmuck/smplog"
	"github.com/mdlayher/vsock"
)

// Stream is an ordered, reliable, message-oriented connection to the daemon.
type Stream interface {
	Send(frame []byte) error  // write one whole message
	Receive() ([]byte, error) // block until one whole message arrives; io.EOF once the peer closed
	Close() error             // close the connection, unblocking Receive
	RemoteAddr() string       // peer address for logging
}

// Dialer opens streams by address.
type Dialer interface {
	Dial(ctx context.Context, address string) (Stream, error)
}

// Listener accepts streams; used by the development daemon and tests.
type Listener interface {
	Accept() (Stream, error)
	Close() error
	Addr() string
}

const (
	NetworkUnixPacket = "unixpacket"
	NetworkUnix       = "unix"
	NetworkTCP        = "tcp"
	NetworkVSock      = "vsock"

	DefaultAddress = "/run/fs-curator/socket"
)

// Address is a parsed transport address.
type Address struct {
	Network string
	Target  string // socket path, host:port or cid:port
}

func (a Address) String() string {
	if a.Network == NetworkUnixPacket {
		return a.Target
	}
	return a.Network + "://" + a.Target
}

// ParseAddress accepts a bare socket path or network://target.
func ParseAddress(address string) (Address, error) {
	network, target, ok := strings.Cut(address, "://")
	if !ok {
		network, target = NetworkUnixPacket, address
	}
	if target == "" {
		return Address{}, fmt.Errorf("empty transport address %q", address)
	}

	switch network {
	case NetworkUnixPacket, NetworkUnix, NetworkTCP:
	case NetworkVSock:
		if _, _, err := parseVSockTarget(target); err != nil {
			return Address{}, err
		}
	default:
		return Address{}, fmt.Errorf("unsupported transport network %q", network)
	}
	return Address{Network: network, Target: target}, nil
}

func parseVSockTarget(target string) (cid, port uint32, err error) {
	cidStr, portStr, ok := strings.Cut(target, ":")
	if !ok {
		return 0, 0, fmt.Errorf("vsock address %q is not CID:PORT", target)
	}
	c, err := strconv.ParseUint(cidStr, 10, 32)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid vsock context id %q: %w", cidStr, err)
	}
	p, err := strconv.ParseUint(portStr, 10, 32)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid vsock port %q: %w", portStr, err)
	}
	return uint32(c), uint32(p), nil
}

// NetDialer dials every supported network.
type NetDialer struct {
	Timeout time.Duration // 0 = no dial timeout beyond ctx
}

func (d NetDialer) Dial(ctx context.Context, address string) (Stream, error) {
	addr, err := ParseAddress(address)
	if err != nil {
		return nil, &ConnectionError{Address: address, Err: err}
	}
	logs.Debugf("Dial(%s)", addr)

	if d.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.Timeout)
		defer cancel()
	}

	conn, err := dialNet(ctx, addr)
	if err != nil {
		return nil, &ConnectionError{Address: address, Err: err}
	}

	if addr.Network == NetworkUnixPacket {
		return newPacketStream(conn), nil
	}
	return newFramedStream(conn), nil
}

func dialNet(ctx context.Context, addr Address) (net.Conn, error) {
	if addr.Network != NetworkVSock {
		var nd net.Dialer
		return nd.DialContext(ctx, addr.Network, addr.Target)
	}

	cid, port, err := parseVSockTarget(addr.Target)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return vsock.Dial(cid, port, nil)
}

// Listen opens a listener for address in the same forms ParseAddress takes.
func Listen(address string) (Listener, error) {
	addr, err := ParseAddress(address)
	if err != nil {
		return nil, err
	}

	var ln net.Listener
	if addr.Network == NetworkVSock {
		cid, port, perr := parseVSockTarget(addr.Target)
		if perr != nil {
			return nil, perr
		}
		ln, err = vsock.ListenContextID(cid, port, nil)
	} else {
		ln, err = net.Listen(addr.Network, addr.Target)
	}
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}
	logs.Debugf("Listen(%s)", addr)
	return &listener{ln: ln, network: addr.Network}, nil
}

type listener struct {
	ln      net.Listener
	network string
}

func (l *listener) Accept() (Stream, error) {
	conn, err := l.ln.Accept()
	if err != nil {
		return nil, err
	}
	if l.network == NetworkUnixPacket {
		return newPacketStream(conn), nil
	}
	return newFramedStream(conn), nil
}

func (l *listener) Close() error {
	return l.ln.Close()
}

// Addr returns the bound address in ParseAddress form.
func (l *listener) Addr() string {
	target := l.ln.Addr().String()
	if va, ok := l.ln.Addr().(*vsock.Addr); ok {
		target = fmt.Sprintf("%d:%d", va.ContextID, va.Port)
	}
	return Address{Network: l.network, Target: target}.String()
}
