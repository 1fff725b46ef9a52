package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"coinarena/protocol"
)

// newGameServer 架一个最小 WS 服务端：升级后交给 handler 扮演服务侧逻辑
func newGameServer(t *testing.T, handler func(ws *websocket.Conn)) string {
	t.Helper()
	up := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		handler(ws)
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func sendMsg(t *testing.T, ws *websocket.Conn, m protocol.Message) {
	t.Helper()
	b, err := protocol.Encode(m)
	if err != nil {
		t.Errorf("encode: %v", err)
		return
	}
	if err := ws.WriteMessage(websocket.TextMessage, b); err != nil {
		t.Errorf("write: %v", err)
	}
}

func TestDialHandshakeAndStateFlow(t *testing.T) {
	url := newGameServer(t, func(ws *websocket.Conn) {
		sendMsg(t, ws, protocol.Welcome{PlayerID: "player_7"})
		sendMsg(t, ws, protocol.State{
			Tick:    42,
			Players: []protocol.PlayerState{{ID: "player_7", X: 100, Y: 200, Score: 3}},
			Coins:   []protocol.CoinState{{ID: "c-1", X: 50, Y: 60}},
		})
		// 挂住连接，等客户端关闭
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	})

	c, err := Dial(context.Background(), url, 0, 0)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer c.Close()

	if c.PlayerID() != "player_7" {
		t.Fatalf("player id = %q, want player_7", c.PlayerID())
	}

	// 收流协程入缓冲是异步的，轮询等第一条快照归位
	deadline := time.Now().Add(2 * time.Second)
	for c.Buffer().Len() == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("state snapshot never reached the buffer")
		}
		time.Sleep(5 * time.Millisecond)
	}

	// 冷启动：直接采最老快照
	st, ok := c.Sample()
	if !ok {
		t.Fatalf("sample returned nothing after a snapshot arrived")
	}
	if st.Tick != 42 || len(st.Players) != 1 || st.Players[0].X != 100 {
		t.Fatalf("sampled state mismatch: %+v", st)
	}
}

func TestDialRejectsNonWelcomeFirstMessage(t *testing.T) {
	url := newGameServer(t, func(ws *websocket.Conn) {
		sendMsg(t, ws, protocol.State{Tick: 1, Players: []protocol.PlayerState{}, Coins: []protocol.CoinState{}})
	})

	if _, err := Dial(context.Background(), url, 0, 0); err == nil {
		t.Fatalf("dial must fail when the first message is not welcome")
	}
}

func TestSendInputReachesServer(t *testing.T) {
	got := make(chan protocol.Input, 1)
	url := newGameServer(t, func(ws *websocket.Conn) {
		sendMsg(t, ws, protocol.Welcome{PlayerID: "player_1"})
		_, payload, err := ws.ReadMessage()
		if err != nil {
			return
		}
		m, err := protocol.Decode(payload)
		if err != nil {
			t.Errorf("decode input: %v", err)
			return
		}
		if in, ok := m.(protocol.Input); ok {
			got <- in
		}
	})

	c, err := Dial(context.Background(), url, 0, 0)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer c.Close()

	if err := c.SendInput(1, 0); err != nil {
		t.Fatalf("send input: %v", err)
	}
	select {
	case in := <-got:
		if in.Direction != (protocol.Vec2{X: 1, Y: 0}) || in.Seq != 1 {
			t.Fatalf("server received %+v, want direction (1,0) seq 1", in)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("input never reached the server")
	}
}

func TestConnectionLossReportsError(t *testing.T) {
	url := newGameServer(t, func(ws *websocket.Conn) {
		sendMsg(t, ws, protocol.Welcome{PlayerID: "player_1"})
		_ = ws.Close()
	})

	c, err := Dial(context.Background(), url, 0, 0)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer c.Close()

	select {
	case <-c.Done():
	case <-time.After(2 * time.Second):
		t.Fatalf("client did not notice the broken connection")
	}
	if c.Err() == nil {
		t.Fatalf("expected a terminal error after connection loss")
	}
}
