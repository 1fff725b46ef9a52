package server

import (
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"coinarena/protocol"
)

// 连接状态机：Connecting → Active → Disconnected
const (
	connConnecting int32 = iota
	connActive
	connDisconnected
)

// 发送队列连续满载达到该次数即认定客户端过慢，断开而非拖慢世界
const slowClientLimit = 100

// 心跳参数：服务端每 pingInterval 发一次 ping，pongWait 内未收到 pong 视为连接失效
var (
	pongWait     = 60 * time.Second
	pingInterval = 25 * time.Second
)

// ClientConn 单个客户端连接的包装：读写各一协程，发送经有界队列
type ClientConn struct {
	ws        *websocket.Conn
	send      chan []byte
	done      chan struct{}
	sendDelay time.Duration // 出站模拟延迟（联调用）

	state      int32 // 连接状态机取值
	fullStreak int32 // 发送队列连续满载计数

	closeOnce sync.Once
	leaveOnce sync.Once
}

func NewClientConn(ws *websocket.Conn, sendDelay time.Duration) *ClientConn {
	return &ClientConn{
		ws:        ws,
		send:      make(chan []byte, 64),
		done:      make(chan struct{}),
		sendDelay: sendDelay,
		state:     connConnecting,
	}
}

// Enqueue 将要发送的消息压入队列（非阻塞，满则丢弃并返回 false）
// 慢客户端在连续满载后被主动断开，绝不允许其阻塞 Tick
func (c *ClientConn) Enqueue(b []byte) bool {
	if atomic.LoadInt32(&c.state) == connDisconnected {
		return false
	}
	select {
	case c.send <- b:
		atomic.StoreInt32(&c.fullStreak, 0)
		return true
	default:
		if atomic.AddInt32(&c.fullStreak, 1) >= slowClientLimit {
			c.Close()
		}
		return false
	}
}

// Close 进入 Disconnected 并关闭底层连接；多次调用只生效一次
func (c *ClientConn) Close() {
	c.closeOnce.Do(func() {
		atomic.StoreInt32(&c.state, connDisconnected)
		close(c.done)
		_ = c.ws.Close()
	})
}

// writePump 独立协程，负责从 send 队列写出到 WS，并定期发 ping 维持连接
// （对端的 pong 会刷新 readPump 的读超时，gorilla 客户端默认自动回 pong）
func (c *ClientConn) writePump() {
	defer c.Close()
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case msg := <-c.send:
			if c.sendDelay > 0 {
				time.Sleep(c.sendDelay)
			}
			_ = c.ws.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		}
	}
}

// readPump 读取并解码客户端消息，把输入意图注入房间
// 非法消息只丢弃本条，连接保持；传输错误才进入 Disconnected
func (c *ClientConn) readPump(room *Room, playerID PlayerID) {
	defer c.Close()
	// 读泵退出时，通知房间在 Tick 线程中移除该玩家（最多一次）
	defer c.leaveOnce.Do(func() { room.RequestLeave(playerID) })

	c.ws.SetReadLimit(1 << 20) // 1MB
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, payload, err := c.ws.ReadMessage()
		if err != nil {
			return
		}
		msg, err := protocol.Decode(payload)
		if err != nil {
			if errors.Is(err, protocol.ErrMalformed) {
				room.metrics.IncMalformedDropped()
				if Log != nil {
					Log.Debugf("drop malformed message from %s: %v", playerID, err)
				}
				continue
			}
			continue
		}
		in, ok := msg.(protocol.Input)
		if !ok {
			// 合法但方向不对的消息（客户端不应上行 welcome/state），丢弃
			continue
		}
		room.OnInput(Input{PlayerID: playerID, Direction: in.Direction, Seq: in.Seq})
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// 演示环境：允许所有来源（生产环境需严格限制）
		return true
	},
}

// HandleWS WebSocket 接入：?room=room-1；玩家 ID 由服务端分配
func HandleWS(w http.ResponseWriter, r *http.Request) {
	roomID := r.URL.Query().Get("room")
	if roomID == "" {
		roomID = "room-1"
	}

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		if Log != nil {
			Log.Warnf("upgrade error: %v", err)
		}
		return
	}

	rm := GetRoomManager()
	room := rm.GetOrCreateRoom(roomID)

	client := NewClientConn(ws, room.SendDelay())
	pid := room.Join(client)
	if pid == "" {
		// 房间已停止
		client.Close()
		return
	}
	atomic.StoreInt32(&client.state, connActive)

	go client.writePump()
	go client.readPump(room, pid)
}
