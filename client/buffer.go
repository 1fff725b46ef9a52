package client

import (
	"sync"
	"time"

	"coinarena/protocol"
)

const (
	// DefaultRenderDelay 渲染时钟相对本地时钟的固定滞后
	// 用输入延迟换取两个括住快照通常可用，从而获得平滑插值
	DefaultRenderDelay = 100 * time.Millisecond
	// DefaultBufferSize 快照缓冲上限，防止网络停摆时无界增长
	DefaultBufferSize = 30
)

type bufferEntry struct {
	at    time.Time // 本地到达时刻
	state protocol.State
}

// Buffer 客户端插值缓冲：按到达时间保存最近的若干快照，
// 在任意采样时刻给出两快照之间的线性插值位置
//
// 写者（网络接收）与读者（渲染采样）各一，以独立节奏运行，
// 仅通过 Add/Sample 交互；内部由单把锁保护
//
// 确定性：相同的 (到达时刻, 快照) 序列与相同的采样时刻序列
// 产生逐位一致的输出（测试依赖此性质）
type Buffer struct {
	mu      sync.Mutex
	delay   time.Duration
	maxSize int
	entries []bufferEntry
	now     func() time.Time
}

// NewBuffer 创建插值缓冲；delay/maxSize 传 0 取默认值
func NewBuffer(delay time.Duration, maxSize int) *Buffer {
	if delay <= 0 {
		delay = DefaultRenderDelay
	}
	if maxSize <= 0 {
		maxSize = DefaultBufferSize
	}
	return &Buffer{
		delay:   delay,
		maxSize: maxSize,
		entries: make([]bufferEntry, 0, maxSize),
		now:     time.Now,
	}
}

// AddAt 记录一份在 at 时刻到达的快照
// 传输有序可靠，到达时刻单调；个别时钟回拨按上一条的时刻处理
func (b *Buffer) AddAt(at time.Time, st protocol.State) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if n := len(b.entries); n > 0 && at.Before(b.entries[n-1].at) {
		at = b.entries[n-1].at
	}
	b.entries = append(b.entries, bufferEntry{at: at, state: st})
	if len(b.entries) > b.maxSize {
		b.entries = b.entries[len(b.entries)-b.maxSize:]
	}
}

// Add 以当前本地时刻记录快照
func (b *Buffer) Add(st protocol.State) {
	b.AddAt(b.now(), st)
}

// SampleAt 在本地时刻 t 采样渲染状态；缓冲为空时返回 false
//
// 渲染时刻 rt = t - delay：
//   - rt 落在相邻两快照之间 ⇒ 按时间比例线性插值
//   - 所有快照都比 rt 新（冷启动）⇒ 原样返回最旧快照
//   - 所有快照都比 rt 旧（缓冲欠载，网络停摆）⇒ 保持最新快照不动，
//     不做速度外推，避免过冲伪影
//
// 已被消费的、严格早于下界快照的条目随采样一并淘汰
func (b *Buffer) SampleAt(t time.Time) (protocol.State, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.entries) == 0 {
		return protocol.State{}, false
	}
	rt := t.Add(-b.delay)

	// 冷启动：还没有早于渲染时刻的快照
	if rt.Before(b.entries[0].at) {
		return cloneState(b.entries[0].state), true
	}

	// 查找括住 rt 的相邻快照对
	for i := 0; i+1 < len(b.entries); i++ {
		a, c := b.entries[i], b.entries[i+1]
		if !rt.Before(a.at) && !rt.After(c.at) {
			out := interpolate(a, c, rt)
			b.entries = b.entries[i:] // 淘汰严格早于下界的条目
			return out, true
		}
	}

	// 欠载：rt 已越过最新快照，保持最后已知状态
	last := b.entries[len(b.entries)-1]
	b.entries = b.entries[len(b.entries)-1:]
	return cloneState(last.state), true
}

// Sample 以当前本地时刻采样
func (b *Buffer) Sample() (protocol.State, bool) {
	return b.SampleAt(b.now())
}

// Len 返回当前缓冲的快照数
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}

// lerp 线性插值
func lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}

// interpolate 在两快照之间按 rt 的时间占比插值
// 仅存在于新快照的实体按新快照位置出现；从新快照消失的实体
// 立即移除，不做“渐隐”插值
func interpolate(older, newer bufferEntry, rt time.Time) protocol.State {
	span := newer.at.Sub(older.at).Seconds()
	var alpha float64
	if span > 0 {
		alpha = rt.Sub(older.at).Seconds() / span
		if alpha < 0 {
			alpha = 0
		}
		if alpha > 1 {
			alpha = 1
		}
	}

	prev := make(map[string]protocol.PlayerState, len(older.state.Players))
	for _, p := range older.state.Players {
		prev[p.ID] = p
	}

	out := protocol.State{
		Tick:    newer.state.Tick,
		Players: make([]protocol.PlayerState, 0, len(newer.state.Players)),
		Coins:   make([]protocol.CoinState, len(newer.state.Coins)),
	}
	for _, p := range newer.state.Players {
		if q, ok := prev[p.ID]; ok {
			out.Players = append(out.Players, protocol.PlayerState{
				ID:    p.ID,
				X:     lerp(q.X, p.X, alpha),
				Y:     lerp(q.Y, p.Y, alpha),
				Score: p.Score, // 分数不插值，取新值
			})
		} else {
			// 新出现的玩家直接落在新快照位置
			out.Players = append(out.Players, p)
		}
	}
	// 金币不移动：存在性与位置都以新快照为准
	copy(out.Coins, newer.state.Coins)
	return out
}

// cloneState 返回快照的深拷贝，避免调用方持有缓冲内部切片
func cloneState(st protocol.State) protocol.State {
	out := protocol.State{
		Tick:    st.Tick,
		Players: make([]protocol.PlayerState, len(st.Players)),
		Coins:   make([]protocol.CoinState, len(st.Coins)),
	}
	copy(out.Players, st.Players)
	copy(out.Coins, st.Coins)
	return out
}
