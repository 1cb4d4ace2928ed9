package emitter

import (
	"context"
	"fmt"
	"io"
	"net"
	"time"
)

// DefaultDialTimeout bounds one proxy connect attempt.
const DefaultDialTimeout = 10 * time.Second

// LineSender delivers encoded protocol lines to the metrics proxy.
// Params: one complete line per Send call, without trailing newline.
// Returns: send/close errors from the underlying transport.
type LineSender interface {
	Send(line string) error
	Close() error
}

type proxySender struct {
	conn net.Conn
}

// DialProxy opens a stream connection to the proxy with a bounded timeout.
// Params: ctx lifecycle context; addr proxy host:port; timeout connect bound
// (DefaultDialTimeout when <= 0).
// Returns: connected sender or dial error.
func DialProxy(ctx context.Context, addr string, timeout time.Duration) (LineSender, error) {
	if timeout <= 0 {
		timeout = DefaultDialTimeout
	}

	dialer := &net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial proxy %s: %w", addr, err)
	}

	return &proxySender{conn: conn}, nil
}

// Send writes one newline-terminated line immediately, without batching.
// Params: line encoded protocol line.
// Returns: write error from the connection.
func (s *proxySender) Send(line string) error {
	if _, err := io.WriteString(s.conn, line+"\n"); err != nil {
		return fmt.Errorf("send line: %w", err)
	}
	return nil
}

// Close closes the proxy connection.
// Params: none.
// Returns: close error from the connection.
func (s *proxySender) Close() error {
	return s.conn.Close()
}

type dryRunSender struct {
	dst io.Writer
}

// NewDryRunSender builds a sender that echoes lines as text instead of
// performing any network activity.
// Params: dst destination writer for would-be lines.
// Returns: no-op transport implementation.
func NewDryRunSender(dst io.Writer) LineSender {
	return &dryRunSender{dst: dst}
}

// Send writes one line of text to the configured writer.
// Params: line encoded protocol line.
// Returns: writer error.
func (s *dryRunSender) Send(line string) error {
	if _, err := fmt.Fprintln(s.dst, line); err != nil {
		return fmt.Errorf("write dry-run line: %w", err)
	}
	return nil
}

// Close is a no-op: dry-run mode never opens a connection.
// Params: none.
// Returns: nil.
func (s *dryRunSender) Close() error {
	return nil
}
