package transport

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

func echoServer(t *testing.T) string {
	t.Helper()
	up := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()
		for {
			mt, data, err := ws.ReadMessage()
			if err != nil {
				return
			}
			_ = ws.WriteMessage(mt, data)
		}
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestDialWriteRead(t *testing.T) {
	conn, err := Dial(context.Background(), echoServer(t), time.Second)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, conn.WriteMessage(ctx, []byte(`{"id":1}`)))

	data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":1}`, string(data))

	require.NoError(t, conn.Close())
	assert.NoError(t, conn.Close())
}

func TestDialRefused(t *testing.T) {
	_, err := Dial(context.Background(), "ws://127.0.0.1:1/devtools/page/x", 200*time.Millisecond)
	assert.Error(t, err)
}
