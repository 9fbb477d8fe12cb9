package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/devnull/blitzbot/game"
	"github.com/devnull/blitzbot/protocol"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// fakeServer registers a client, sends ticks and closes the session.
func fakeServer(t *testing.T, ticks int, received chan<- []byte) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()

		_, msg, err := conn.ReadMessage()
		if err != nil {
			t.Errorf("read register: %v", err)
			return
		}
		received <- msg

		s := &game.State{Tick: 0, Alive: true, Grid: game.Open(3, 3)}
		for i := 1; i <= ticks; i++ {
			s.Tick = i
			if err := conn.WriteJSON(protocol.FromState(s, game.Position{})); err != nil {
				t.Errorf("write tick: %v", err)
				return
			}
			_, msg, err := conn.ReadMessage()
			if err != nil {
				t.Errorf("read command: %v", err)
				return
			}
			received <- msg
		}
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "game over"))
	}))
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestSession(t *testing.T) {
	received := make(chan []byte, 8)
	srv := fakeServer(t, 2, received)
	defer srv.Close()

	ctx := context.Background()
	cfg := DefaultConfig()
	cfg.URL = wsURL(srv)
	conn, err := Dial(ctx, cfg)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.Register(ctx, "", "blitzbot"))
	var reg protocol.Register
	require.NoError(t, json.Unmarshal(<-received, &reg))
	require.Equal(t, protocol.TypeRegister, reg.Type)
	require.Equal(t, "blitzbot", reg.TeamName)
	require.Empty(t, reg.Token)

	for tick := 1; tick <= 2; tick++ {
		msg, raw, err := conn.Receive(ctx)
		require.NoError(t, err)
		require.NotEmpty(t, raw)
		require.Equal(t, tick, msg.Tick)

		action, _ := protocol.MoveAction(game.MoveRight)
		require.NoError(t, conn.Send(ctx, protocol.NewCommand(msg.Tick, &action)))

		var cmd protocol.Command
		require.NoError(t, json.Unmarshal(<-received, &cmd))
		require.Equal(t, tick, cmd.Tick)
		require.Equal(t, protocol.ActionMoveRight, cmd.Actions[0].Type)
	}

	_, _, err = conn.Receive(ctx)
	require.ErrorIs(t, err, ErrClosed)
}

func TestRegisterWithToken(t *testing.T) {
	received := make(chan []byte, 8)
	srv := fakeServer(t, 0, received)
	defer srv.Close()

	cfg := DefaultConfig()
	cfg.URL = wsURL(srv)
	conn, err := Dial(context.Background(), cfg)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.Register(context.Background(), "secret", "ignored"))
	var reg protocol.Register
	require.NoError(t, json.Unmarshal(<-received, &reg))
	require.Equal(t, "secret", reg.Token)
	require.Empty(t, reg.TeamName)
}

func TestReceiveHonoursContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		// Never send anything.
		_, _, _ = conn.ReadMessage()
	}))
	defer srv.Close()

	cfg := DefaultConfig()
	cfg.URL = wsURL(srv)
	conn, err := Dial(context.Background(), cfg)
	require.NoError(t, err)
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, _, err = conn.Receive(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestDialFailure(t *testing.T) {
	cfg := DefaultConfig()
	cfg.URL = "ws://127.0.0.1:1"
	cfg.ConnectTimeout = time.Second
	_, err := Dial(context.Background(), cfg)
	require.Error(t, err)
}
