package gateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func wsServer(t *testing.T, serve func(*websocket.Conn)) string {
	t.Helper()
	up := websocket.Upgrader{}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close()
		serve(c)
	}))
	t.Cleanup(ts.Close)
	return "ws" + strings.TrimPrefix(ts.URL, "http")
}

func TestWSDialerReadsMessages(t *testing.T) {
	url := wsServer(t, func(c *websocket.Conn) {
		_ = c.WriteMessage(websocket.TextMessage, []byte(`{"e":"trade"}`))
		_ = c.WriteMessage(websocket.TextMessage, []byte(`{"e":"kline"}`))
		_, _, _ = c.ReadMessage()
	})

	s, err := NewWSDialer(WSConfig{}).Dial(context.Background(), url+"/ws/btcusdt@trade")
	require.NoError(t, err)
	defer s.Close()

	msg, err := s.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, `{"e":"trade"}`, string(msg))
	msg, err = s.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, `{"e":"kline"}`, string(msg))
}

func TestWSDialerAnswersPing(t *testing.T) {
	pong := make(chan string, 1)
	url := wsServer(t, func(c *websocket.Conn) {
		c.SetPongHandler(func(data string) error {
			pong <- data
			return nil
		})
		_ = c.WriteControl(websocket.PingMessage, []byte("hb"), time.Now().Add(time.Second))
		_, _, _ = c.ReadMessage()
	})

	s, err := NewWSDialer(WSConfig{}).Dial(context.Background(), url)
	require.NoError(t, err)
	defer s.Close()

	go func() { _, _ = s.ReadMessage() }()
	select {
	case data := <-pong:
		assert.Equal(t, "hb", data)
	case <-time.After(2 * time.Second):
		t.Fatal("no pong received")
	}
}

func TestWSDialerCloseUnblocksRead(t *testing.T) {
	url := wsServer(t, func(c *websocket.Conn) {
		_, _, _ = c.ReadMessage()
	})

	s, err := NewWSDialer(WSConfig{PingInterval: 10 * time.Millisecond}).Dial(context.Background(), url)
	require.NoError(t, err)

	errCh := make(chan error, 1)
	go func() {
		_, err := s.ReadMessage()
		errCh <- err
	}()
	require.NoError(t, s.Close())
	_ = s.Close()

	select {
	case err := <-errCh:
		assert.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("read not unblocked by close")
	}
}

func TestWSDialerRefused(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	url := "ws" + strings.TrimPrefix(ts.URL, "http")
	defer ts.Close()

	_, err := NewWSDialer(WSConfig{HandshakeTimeout: time.Second}).Dial(context.Background(), url)
	assert.Error(t, err)
}
