package gateway

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"time"
)

// conn frames requests and replies over one gateway socket.
type conn struct {
	nc          net.Conn
	ioTimeout   time.Duration
	maxAttempts int
	buf         []byte
}

func newConn(nc net.Conn, ioTimeout time.Duration, maxAttempts int) *conn {
	return &conn{nc: nc, ioTimeout: ioTimeout, maxAttempts: maxAttempts}
}

func (c *conn) send(req string) error {
	if err := c.nc.SetWriteDeadline(time.Now().Add(c.ioTimeout)); err != nil {
		return err
	}
	_, err := io.WriteString(c.nc, req+Delimiter)
	return err
}

// request writes req and waits for its reply. Keepalive acknowledgements left
// over from earlier probes are skipped.
func (c *conn) request(req string) (string, error) {
	if err := c.send(req); err != nil {
		return "", fmt.Errorf("write %q: %w", req, err)
	}
	for {
		reply, err := c.readReply()
		if err != nil {
			return "", fmt.Errorf("read reply to %q: %w", req, err)
		}
		if reply == ReplyAlive {
			continue
		}
		if err := checkReply(reply); err != nil {
			return reply, fmt.Errorf("%q: %w", req, err)
		}
		return reply, nil
	}
}

// readReply returns the next delimiter-terminated frame with the delimiter
// stripped. Each read attempt is bounded by ioTimeout.
func (c *conn) readReply() (string, error) {
	tmp := make([]byte, 256)
	for attempt := 0; ; attempt++ {
		if i := bytes.Index(c.buf, []byte(Delimiter)); i >= 0 {
			reply := string(c.buf[:i])
			c.buf = append(c.buf[:0], c.buf[i+len(Delimiter):]...)
			return reply, nil
		}
		if attempt >= c.maxAttempts {
			return "", ErrReplyTimeout
		}
		if err := c.nc.SetReadDeadline(time.Now().Add(c.ioTimeout)); err != nil {
			return "", err
		}
		n, err := c.nc.Read(tmp)
		c.buf = append(c.buf, tmp[:n]...)
		if err != nil {
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue
			}
			return "", err
		}
	}
}

func (c *conn) close() error {
	return c.nc.Close()
}
