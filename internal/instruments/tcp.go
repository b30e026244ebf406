package instruments

import (
	"bufio"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"sync"
	"time"
)

// TCPTransport is a Transport backed by a single TCP connection, framed as
// [4-byte big-endian length][payload] — the same length-prefix idiom
// internal/duplex uses for its cross-process Channel, adapted here for a
// real instrument's wire link instead of a worker subprocess's.
type TCPTransport struct {
	mu     sync.Mutex
	conn   net.Conn
	r      *bufio.Reader
	closed bool
}

// DialTCP connects to an instrument's TCP endpoint (a serial-to-Ethernet
// bridge, bench PSU with a LAN interface, etc.) and returns a ready
// Transport.
func DialTCP(ctx context.Context, addr string, timeout time.Duration) (*TCPTransport, error) {
	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial instrument at %s: %w", addr, err)
	}
	return &TCPTransport{conn: conn, r: bufio.NewReader(conn)}, nil
}

func (t *TCPTransport) Send(ctx context.Context, data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return fmt.Errorf("instrument transport closed")
	}
	if dl, ok := ctx.Deadline(); ok {
		_ = t.conn.SetWriteDeadline(dl)
	}
	var header [4]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(data)))
	if _, err := t.conn.Write(header[:]); err != nil {
		return fmt.Errorf("write frame header: %w", err)
	}
	if _, err := t.conn.Write(data); err != nil {
		return fmt.Errorf("write frame payload: %w", err)
	}
	return nil
}

func (t *TCPTransport) Recv(ctx context.Context, timeout time.Duration) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil, fmt.Errorf("instrument transport closed")
	}
	deadline := time.Now().Add(timeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(deadline) {
		deadline = dl
	}
	_ = t.conn.SetReadDeadline(deadline)

	var header [4]byte
	if _, err := io.ReadFull(t.r, header[:]); err != nil {
		return nil, fmt.Errorf("read frame header: %w", err)
	}
	size := binary.BigEndian.Uint32(header[:])
	payload := make([]byte, size)
	if _, err := io.ReadFull(t.r, payload); err != nil {
		return nil, fmt.Errorf("read frame payload: %w", err)
	}
	return payload, nil
}

func (t *TCPTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	return t.conn.Close()
}
