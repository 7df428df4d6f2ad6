package transport

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"time"

	"github.com/benmeehan/whatsminer-cli/internal/constants"
	"github.com/benmeehan/whatsminer-cli/internal/models"
	"github.com/rs/zerolog"
)

// headerLength is the size of the little-endian length prefix on every frame.
const headerLength = 4

// ConnectionError reports a failed dial, write or read on the miner socket.
type ConnectionError struct {
	Op  string
	Err error
}

func (e *ConnectionError) Error() string {
	if e.Err == nil {
		return "failed to " + e.Op
	}
	return fmt.Sprintf("failed to %s: %v", e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// Timeout reports whether the underlying error was a deadline expiry.
func (e *ConnectionError) Timeout() bool {
	var netErr net.Error
	return errors.As(e.Err, &netErr) && netErr.Timeout()
}

// TCPTransport performs one framed request/response exchange per connection.
type TCPTransport struct {
	timeout         time.Duration
	maxResponseSize uint32
	logger          zerolog.Logger
}

// NewTCPTransport returns a transport that bounds every socket operation by timeout.
func NewTCPTransport(timeout time.Duration, logger zerolog.Logger) *TCPTransport {
	if timeout <= 0 {
		timeout = constants.DefaultTimeout
	}

	return &TCPTransport{
		timeout:         timeout,
		maxResponseSize: constants.MaxResponseSize,
		logger:          logger,
	}
}

// Exchange dials host:port, writes req as one frame, reads one frame back and
// closes the connection.
func (t *TCPTransport) Exchange(ctx context.Context, host string, port int, req *models.Request) (models.Response, error) {
	payload, err := req.Encode()
	if err != nil {
		return models.Response{}, fmt.Errorf("failed to encode request: %w", err)
	}

	addr := net.JoinHostPort(host, strconv.Itoa(port))
	t.logger.Debug().Str("addr", addr).Str("cmd", req.Cmd).Int("bytes", len(payload)).Msg("Connecting to miner")

	dialer := net.Dialer{Timeout: t.timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return models.Response{}, &ConnectionError{Op: "connect to " + addr, Err: err}
	}
	defer conn.Close()

	// Cancellation unblocks a pending write or read by expiring the deadline.
	stop := context.AfterFunc(ctx, func() {
		conn.SetDeadline(time.Now())
	})
	defer stop()

	if err := conn.SetWriteDeadline(time.Now().Add(t.timeout)); err != nil {
		return models.Response{}, &ConnectionError{Op: "set write deadline", Err: err}
	}
	if err := ctx.Err(); err != nil {
		return models.Response{}, &ConnectionError{Op: "send request", Err: err}
	}
	if err := WriteFrame(conn, payload); err != nil {
		return models.Response{}, canceled(ctx, err)
	}

	if err := conn.SetReadDeadline(time.Now().Add(t.timeout)); err != nil {
		return models.Response{}, &ConnectionError{Op: "set read deadline", Err: err}
	}
	if err := ctx.Err(); err != nil {
		return models.Response{}, &ConnectionError{Op: "read response length", Err: err}
	}
	body, err := ReadFrame(conn, t.maxResponseSize)
	if err != nil {
		return models.Response{}, canceled(ctx, err)
	}

	t.logger.Debug().Str("addr", addr).Int("bytes", len(body)).Msg("Received miner response")

	if len(body) == 0 {
		return models.EmptyResponse(), nil
	}
	return models.NewResponse(body), nil
}

// canceled replaces the deadline error of an interrupted operation with the
// context error, keeping the failed operation name.
func canceled(ctx context.Context, err error) error {
	ctxErr := ctx.Err()
	if ctxErr == nil {
		return err
	}

	var connErr *ConnectionError
	if errors.As(err, &connErr) {
		return &ConnectionError{Op: connErr.Op, Err: ctxErr}
	}
	return ctxErr
}

// WriteFrame writes the 4-byte little-endian length followed by payload in a single write.
func WriteFrame(w io.Writer, payload []byte) error {
	frame := make([]byte, headerLength+len(payload))
	binary.LittleEndian.PutUint32(frame[:headerLength], uint32(len(payload)))
	copy(frame[headerLength:], payload)

	if _, err := w.Write(frame); err != nil {
		return &ConnectionError{Op: "send request", Err: err}
	}
	return nil
}

// ReadFrame reads one length-prefixed frame. A zero length yields an empty body
// without further reads.
func ReadFrame(r io.Reader, maxSize uint32) ([]byte, error) {
	header := make([]byte, headerLength)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, &ConnectionError{Op: "read response length", Err: err}
	}

	length := binary.LittleEndian.Uint32(header)
	if length == 0 {
		return nil, nil
	}
	if maxSize > 0 && length > maxSize {
		return nil, &ConnectionError{Op: "read response", Err: fmt.Errorf("response too large: %d bytes", length)}
	}

	body := make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, &ConnectionError{Op: "read response", Err: err}
	}
	return body, nil
}
