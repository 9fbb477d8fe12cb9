// Package client is the websocket session with the game server.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/devnull/blitzbot/protocol"
	"github.com/gorilla/websocket"
)

// ErrClosed is returned by Receive once the server ends the session. It is
// the normal end of a game, not a failure.
var ErrClosed = errors.New("connection closed")

// Config holds connection settings.
type Config struct {
	URL            string
	ConnectTimeout time.Duration
	// WriteTimeout bounds each Send. Reads have no timeout: the server
	// paces the ticks.
	WriteTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		URL:            "ws://127.0.0.1:8765",
		ConnectTimeout: 10 * time.Second,
		WriteTimeout:   5 * time.Second,
	}
}

// Conn is one game session. Receive must not be called concurrently; Send
// is safe for concurrent use.
type Conn struct {
	ws     *websocket.Conn
	config Config
	mu     sync.Mutex
}

// Dial connects to the game server.
func Dial(ctx context.Context, config Config) (*Conn, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: config.ConnectTimeout,
	}
	ws, _, err := dialer.DialContext(ctx, config.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", config.URL, err)
	}
	return &Conn{ws: ws, config: config}, nil
}

// Register sends the handshake. A token registers for a ranked game,
// otherwise teamName is used for a local one.
func (c *Conn) Register(ctx context.Context, token, teamName string) error {
	msg := protocol.Register{Type: protocol.TypeRegister}
	if token != "" {
		msg.Token = token
	} else {
		msg.TeamName = teamName
	}
	return c.write(ctx, msg)
}

// Receive blocks until the next tick arrives. It returns the decoded message
// and its raw bytes for recording.
func (c *Conn) Receive(ctx context.Context) (*protocol.TeamGameState, []byte, error) {
	deadline, hasDeadline := ctx.Deadline()
	if err := c.ws.SetReadDeadline(deadline); err != nil {
		return nil, nil, closedOr(err)
	}

	stop := context.AfterFunc(ctx, func() {
		_ = c.ws.SetReadDeadline(time.Now())
	})
	defer stop()

	_, raw, err := c.ws.ReadMessage()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, nil, ctxErr
		}
		var netErr net.Error
		if hasDeadline && errors.As(err, &netErr) && netErr.Timeout() {
			return nil, nil, context.DeadlineExceeded
		}
		return nil, nil, closedOr(err)
	}
	msg, err := protocol.DecodeGameState(raw)
	if err != nil {
		return nil, raw, err
	}
	return msg, raw, nil
}

// Send writes a command.
func (c *Conn) Send(ctx context.Context, cmd protocol.Command) error {
	return c.write(ctx, cmd)
}

func (c *Conn) write(ctx context.Context, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	deadline, ok := ctx.Deadline()
	if !ok && c.config.WriteTimeout > 0 {
		deadline = time.Now().Add(c.config.WriteTimeout)
	}
	if err := c.ws.SetWriteDeadline(deadline); err != nil {
		return closedOr(err)
	}
	if err := c.ws.WriteMessage(websocket.TextMessage, b); err != nil {
		return closedOr(err)
	}
	return nil
}

// Close says goodbye to the server and releases the connection.
func (c *Conn) Close() error {
	c.mu.Lock()
	_ = c.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	c.mu.Unlock()
	return c.ws.Close()
}

// closedOr maps every flavour of a closed connection to ErrClosed.
func closedOr(err error) error {
	var closeErr *websocket.CloseError
	switch {
	case errors.As(err, &closeErr),
		errors.Is(err, io.EOF),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, net.ErrClosed),
		errors.Is(err, websocket.ErrCloseSent):
		return fmt.Errorf("%w: %v", ErrClosed, err)
	}
	return err
}
