// Package loginbridge gives the Cookie authenticator's interactive login
// flow a confirmation channel: a loopback-only WebSocket that the login
// page in the user's browser pings once the handshake is done, so the CLI
// doesn't have to poll. Grounded on the teacher's own coder/websocket
// dependency and its localhost-callback-server pattern for device login.
package loginbridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/coder/websocket"
)

// Bridge serves a single /confirm WebSocket endpoint on a loopback port and
// resolves WaitForConfirmation once a client connects and sends any message.
type Bridge struct {
	logger   *slog.Logger
	listener net.Listener
	server   *http.Server

	confirmed chan string
}

// New constructs an unstarted Bridge.
func New(logger *slog.Logger) *Bridge {
	if logger == nil {
		logger = slog.Default()
	}

	return &Bridge{logger: logger, confirmed: make(chan string, 1)}
}

// Start binds a loopback TCP port and begins serving. It returns the full
// ws:// URL the login page should connect and post its confirmation to.
func (b *Bridge) Start() (string, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", fmt.Errorf("loginbridge: binding loopback port: %w", err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/confirm", b.handleConfirm)

	b.listener = ln
	b.server = &http.Server{Handler: mux}

	go func() {
		if err := b.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			b.logger.Warn("login bridge server stopped", slog.String("error", err.Error()))
		}
	}()

	return fmt.Sprintf("ws://%s/confirm", ln.Addr().String()), nil
}

func (b *Bridge) handleConfirm(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: []string{"*"}})
	if err != nil {
		b.logger.Debug("login bridge accept failed", slog.String("error", err.Error()))
		return
	}
	defer conn.CloseNow()

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	_, data, err := conn.Read(ctx)
	if err != nil {
		b.logger.Debug("login bridge read failed", slog.String("error", err.Error()))
		return
	}

	select {
	case b.confirmed <- string(data):
	default:
	}

	conn.Close(websocket.StatusNormalClosure, "confirmed")
}

// WaitForConfirmation blocks until the login page pings /confirm or ctx is
// done, returning the message payload (conventionally "ok" or an email).
func (b *Bridge) WaitForConfirmation(ctx context.Context) (string, error) {
	select {
	case msg := <-b.confirmed:
		return msg, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Close shuts the loopback server down.
func (b *Bridge) Close() error {
	if b.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	return b.server.Shutdown(ctx)
}
