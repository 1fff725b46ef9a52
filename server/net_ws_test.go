package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// newConnPair 架一个只做升级的 WS 服务端，返回（服务端侧, 客户端侧）连接
func newConnPair(t *testing.T) (*websocket.Conn, *websocket.Conn) {
	t.Helper()
	connCh := make(chan *websocket.Conn, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		connCh <- ws
	}))
	t.Cleanup(srv.Close)

	peer, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = peer.Close() })
	return <-connCh, peer
}

// 缩短心跳窗口以便在测试里观测多个完整周期
func shortKeepalive(t *testing.T) {
	t.Helper()
	oldWait, oldInterval := pongWait, pingInterval
	pongWait, pingInterval = 250*time.Millisecond, 80*time.Millisecond
	t.Cleanup(func() { pongWait, pingInterval = oldWait, oldInterval })
}

func TestKeepalivePingRefreshesReadDeadline(t *testing.T) {
	shortKeepalive(t)

	srv := httptest.NewServer(http.HandlerFunc(HandleWS))
	defer srv.Close()

	ws, _, err := websocket.DefaultDialer.Dial(
		"ws"+strings.TrimPrefix(srv.URL, "http")+"?room=keepalive-1", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer ws.Close()

	// 持续读以驱动默认 ping 处理器自动回 pong；全程不上行任何消息
	errCh := make(chan error, 1)
	go func() {
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				errCh <- err
				return
			}
		}
	}()

	// 存活时长覆盖多个读超时窗口：只回 pong 的空闲客户端不得被踢
	select {
	case err := <-errCh:
		t.Fatalf("idle but ponging client dropped: %v", err)
	case <-time.After(4 * pongWait):
	}
}

func TestKeepaliveDropsSilentClient(t *testing.T) {
	shortKeepalive(t)

	srv := httptest.NewServer(http.HandlerFunc(HandleWS))
	defer srv.Close()

	ws, _, err := websocket.DefaultDialer.Dial(
		"ws"+strings.TrimPrefix(srv.URL, "http")+"?room=keepalive-2", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer ws.Close()

	// 吞掉 ping 不回 pong，模拟对端假死
	ws.SetPingHandler(func(string) error { return nil })

	errCh := make(chan error, 1)
	go func() {
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				errCh <- err
				return
			}
		}
	}()

	select {
	case <-errCh:
		// 读超时触发，连接被服务端断开
	case <-time.After(6 * pongWait):
		t.Fatalf("silent client not dropped after read deadline expired")
	}
}

func TestSlowClientDisconnected(t *testing.T) {
	serverWS, _ := newConnPair(t)
	c := NewClientConn(serverWS, 0)
	atomic.StoreInt32(&c.state, connActive)

	// 不启动写泵，耗尽发送队列容量（循环以一次入队失败收尾）
	for c.Enqueue([]byte("snapshot")) {
	}
	for i := 0; i < slowClientLimit-1; i++ {
		if c.Enqueue([]byte("snapshot")) {
			t.Fatalf("enqueue succeeded on a full queue")
		}
	}

	if atomic.LoadInt32(&c.state) != connDisconnected {
		t.Fatalf("slow client still connected after %d consecutive full enqueues", slowClientLimit)
	}
	select {
	case <-c.done:
	default:
		t.Fatalf("done channel not closed on slow-client disconnect")
	}
	if c.Enqueue([]byte("snapshot")) {
		t.Fatalf("enqueue must report failure after disconnect")
	}
}
