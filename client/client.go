package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"coinarena/protocol"
)

// Log 可选的客户端日志器；不设置时静默
var Log *zap.SugaredLogger

const handshakeTimeout = 10 * time.Second

// Client 客户端网络侧：连接、握手、收流入缓冲、上行输入
// 渲染与按键采集是外部协作者，本类型只暴露两个调用契约：
// SendInput（输入出站）与 Sample（逐帧拉取插值位置）
type Client struct {
	ws  *websocket.Conn
	buf *Buffer

	playerID string
	seq      int64

	writeMu sync.Mutex

	mu      sync.Mutex
	lastErr error

	done      chan struct{}
	closeOnce sync.Once
}

// Dial 连接服务器并完成 welcome 握手
// delay/bufSize 传 0 取默认的 100ms / 30 条
func Dial(ctx context.Context, url string, delay time.Duration, bufSize int) (*Client, error) {
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}

	// 连接后的第一条消息必须是 welcome，否则视为握手失败
	_ = ws.SetReadDeadline(time.Now().Add(handshakeTimeout))
	_, payload, err := ws.ReadMessage()
	if err != nil {
		_ = ws.Close()
		return nil, fmt.Errorf("read welcome: %w", err)
	}
	msg, err := protocol.Decode(payload)
	if err != nil {
		_ = ws.Close()
		return nil, fmt.Errorf("decode welcome: %w", err)
	}
	welcome, ok := msg.(protocol.Welcome)
	if !ok {
		_ = ws.Close()
		return nil, fmt.Errorf("%w: expected welcome, got %T", protocol.ErrMalformed, msg)
	}
	_ = ws.SetReadDeadline(time.Time{})

	c := &Client{
		ws:       ws,
		buf:      NewBuffer(delay, bufSize),
		playerID: welcome.PlayerID,
		done:     make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

// PlayerID 返回服务端分配的权威 ID
func (c *Client) PlayerID() string {
	return c.playerID
}

// Buffer 返回插值缓冲（供测试与高级用法直接访问）
func (c *Client) Buffer() *Buffer {
	return c.buf
}

// Sample 渲染端的单一拉取契约：以当前时刻取插值状态
func (c *Client) Sample() (protocol.State, bool) {
	return c.buf.Sample()
}

// SendInput 上行一次移动意图（方向向量，无需确认应答）
// 输入是边沿触发的连续状态：服务端只关心最新一条
func (c *Client) SendInput(dx, dy float64) error {
	b, err := protocol.Encode(protocol.Input{
		Direction: protocol.Vec2{X: dx, Y: dy},
		Seq:       atomic.AddInt64(&c.seq, 1),
	})
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if err := c.ws.WriteMessage(websocket.TextMessage, b); err != nil {
		c.fail(fmt.Errorf("send input: %w", err))
		return err
	}
	return nil
}

// readLoop 网络接收协程：state 入缓冲，非法消息丢弃，
// 传输错误进入终止态（不自动重连，交由外层 UI 决策）
func (c *Client) readLoop() {
	defer c.Close()
	for {
		_, payload, err := c.ws.ReadMessage()
		if err != nil {
			c.fail(fmt.Errorf("connection lost: %w", err))
			return
		}
		msg, err := protocol.Decode(payload)
		if err != nil {
			if errors.Is(err, protocol.ErrMalformed) && Log != nil {
				Log.Debugf("drop malformed message: %v", err)
			}
			continue
		}
		if st, ok := msg.(protocol.State); ok {
			c.buf.Add(st)
		}
	}
}

// Done 在连接终止后关闭
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Err 返回终止原因；正常 Close 时为 nil
func (c *Client) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Close 关闭连接；多次调用只生效一次
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.ws.Close()
	})
	return nil
}

func (c *Client) fail(err error) {
	c.mu.Lock()
	if c.lastErr == nil {
		c.lastErr = err
	}
	c.mu.Unlock()
	if Log != nil {
		Log.Warnf("%v", err)
	}
}
