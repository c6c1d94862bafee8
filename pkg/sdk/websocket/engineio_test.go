package websocket

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type received struct {
	event   string
	payload string
}

func collect() (EventHandler, <-chan received) {
	ch := make(chan received, 32)
	return func(event string, payload json.RawMessage) {
		ch <- received{event: event, payload: string(payload)}
	}, ch
}

func next(t *testing.T, ch <-chan received) received {
	t.Helper()
	select {
	case r := <-ch:
		return r
	case <-time.After(3 * time.Second):
		t.Fatal("等待事件超时")
		return received{}
	}
}

var upgrader = websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}

// newEngineServer 启动一个按脚本交互的 Socket.IO 服务端
func newEngineServer(t *testing.T, script func(conn *websocket.Conn, r *http.Request)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		script(conn, r)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func readText(t *testing.T, conn *websocket.Conn) string {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		return ""
	}
	return string(data)
}

func TestEngineIODialer_V4Session(t *testing.T) {
	queries := make(chan url.Values, 1)
	paths := make(chan string, 1)
	clientPackets := make(chan string, 4)

	srv := newEngineServer(t, func(conn *websocket.Conn, r *http.Request) {
		queries <- r.URL.Query()
		paths <- r.URL.Path
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`0{"sid":"abc","pingInterval":25000,"pingTimeout":20000}`))
		clientPackets <- readText(t, conn)
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`40{"sid":"s1"}`))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`2`))
		clientPackets <- readText(t, conn)
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`42["joined","ok"]`))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`421["order","{\"AppOrderID\":7}"]`))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`41`))
		time.Sleep(50 * time.Millisecond)
	})

	handler, events := collect()
	d := &EngineIODialer{}
	sock, err := d.Open(DialOptions{
		URL:              srv.URL,
		Path:             "/interactive/socket.io",
		Query:            url.Values{"token": {"tok"}, "userID": {"U1"}},
		EngineIOVersion:  4,
		HandshakeTimeout: time.Second,
	}, handler)
	require.NoError(t, err)
	defer sock.Close()

	assert.Equal(t, received{EventConnect, `{"sid":"s1"}`}, next(t, events))
	assert.Equal(t, received{"joined", `"ok"`}, next(t, events))
	assert.Equal(t, received{"order", `"{\"AppOrderID\":7}"`}, next(t, events))
	assert.Equal(t, received{EventDisconnect, `"io server disconnect"`}, next(t, events))

	q := <-queries
	assert.Equal(t, "tok", q.Get("token"))
	assert.Equal(t, "U1", q.Get("userID"))
	assert.Equal(t, "4", q.Get("EIO"))
	assert.Equal(t, "websocket", q.Get("transport"))
	assert.Equal(t, "/interactive/socket.io/", <-paths)

	assert.Equal(t, "40", <-clientPackets)
	assert.Equal(t, "3", <-clientPackets)
}

func TestEngineIODialer_V3ClientPing(t *testing.T) {
	pinged := make(chan string, 1)
	srv := newEngineServer(t, func(conn *websocket.Conn, _ *http.Request) {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`0{"sid":"abc","pingInterval":20,"pingTimeout":1000}`))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`40`))
		pinged <- readText(t, conn)
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`3`))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`1`))
		time.Sleep(50 * time.Millisecond)
	})

	handler, events := collect()
	sock, err := (&EngineIODialer{}).Open(DialOptions{URL: srv.URL, EngineIOVersion: 3}, handler)
	require.NoError(t, err)
	defer sock.Close()

	assert.Equal(t, EventConnect, next(t, events).event)
	assert.Equal(t, "2", <-pinged)
	assert.Equal(t, received{EventDisconnect, `"transport close"`}, next(t, events))
}

func TestEngineIODialer_ServerRejects(t *testing.T) {
	srv := newEngineServer(t, func(conn *websocket.Conn, _ *http.Request) {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`0{"sid":"abc","pingInterval":25000,"pingTimeout":20000}`))
		readText(t, conn)
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`44{"message":"Invalid Token"}`))
		readText(t, conn)
	})

	handler, events := collect()
	sock, err := (&EngineIODialer{}).Open(DialOptions{URL: srv.URL, EngineIOVersion: 4}, handler)
	require.NoError(t, err)
	defer sock.Close()

	assert.Equal(t, received{EventConnectError, `{"message":"Invalid Token"}`}, next(t, events))
	select {
	case r := <-events:
		t.Fatalf("拒绝连接后不应再有事件: %+v", r)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestEngineIODialer_DialFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	target := srv.URL
	srv.Close()

	handler, events := collect()
	sock, err := (&EngineIODialer{}).Open(DialOptions{URL: target, EngineIOVersion: 4, HandshakeTimeout: time.Second}, handler)
	require.NoError(t, err)
	defer sock.Close()

	r := next(t, events)
	assert.Equal(t, EventConnectError, r.event)
	assert.Contains(t, r.payload, "message")
}

func TestEngineIODialer_CloseIsSilent(t *testing.T) {
	gotDisconnect := make(chan string, 1)
	srv := newEngineServer(t, func(conn *websocket.Conn, _ *http.Request) {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`0{"sid":"abc","pingInterval":25000,"pingTimeout":20000}`))
		readText(t, conn)
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`40`))
		gotDisconnect <- readText(t, conn)
	})

	handler, events := collect()
	sock, err := (&EngineIODialer{}).Open(DialOptions{URL: srv.URL, EngineIOVersion: 4}, handler)
	require.NoError(t, err)

	assert.Equal(t, EventConnect, next(t, events).event)
	require.NoError(t, sock.Close())
	require.NoError(t, sock.Close())
	assert.Equal(t, "41", <-gotDisconnect)

	select {
	case r := <-events:
		t.Fatalf("主动关闭后不应再有事件: %+v", r)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestSocketURL(t *testing.T) {
	tests := []struct {
		name      string
		opts      DialOptions
		wantURL   string
		wantNS    string
		wantError string
	}{
		{
			name:    "https 转 wss",
			opts:    DialOptions{URL: "https://xts.example.com", EngineIOVersion: 4},
			wantURL: "wss://xts.example.com/interactive/socket.io/?EIO=4&transport=websocket",
		},
		{
			name:    "路径作为命名空间",
			opts:    DialOptions{URL: "http://localhost:3000/interactive", Path: "/custom", EngineIOVersion: 3},
			wantURL: "ws://localhost:3000/custom/?EIO=3&transport=websocket",
			wantNS:  "/interactive",
		},
		{
			name:    "附加查询参数",
			opts:    DialOptions{URL: "ws://h", Query: url.Values{"token": {"a b"}}, EngineIOVersion: 4},
			wantURL: "ws://h/interactive/socket.io/?EIO=4&token=a+b&transport=websocket",
		},
		{name: "不支持的协议", opts: DialOptions{URL: "ftp://h", EngineIOVersion: 4}, wantError: "不支持的 socket 协议"},
		{name: "缺少主机", opts: DialOptions{URL: "http://", EngineIOVersion: 4}, wantError: "缺少主机"},
		{name: "版本错误", opts: DialOptions{URL: "http://h", EngineIOVersion: 2}, wantError: "Engine.IO 版本"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ns, err := socketURL(tt.opts)
			if tt.wantError != "" {
				require.Error(t, err)
				assert.True(t, strings.Contains(err.Error(), tt.wantError), err.Error())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantURL, got)
			assert.Equal(t, tt.wantNS, ns)
		})
	}
}

func TestDecodeEvent(t *testing.T) {
	name, payload, err := decodeEvent(`["order",{"a":1},"extra"]`)
	require.NoError(t, err)
	assert.Equal(t, "order", name)
	assert.JSONEq(t, `{"a":1}`, string(payload))

	name, payload, err = decodeEvent(`12["logout"]`)
	require.NoError(t, err)
	assert.Equal(t, "logout", name)
	assert.Nil(t, payload)

	_, _, err = decodeEvent(`[]`)
	assert.Error(t, err)
	_, _, err = decodeEvent(`[1,2]`)
	assert.Error(t, err)
	_, _, err = decodeEvent(`nope`)
	assert.Error(t, err)
}
