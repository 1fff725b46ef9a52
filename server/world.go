package server

import "sort"

// World 世界权威状态：纯数据容器，不含 I/O 与并发原语
// 单写者约定：每个 Tick 内只有仿真（Engine.Advance）改写它
type World struct {
	Width  float64
	Height float64

	Tick    int64   // 单调递增的 Tick 计数
	SimTime float64 // 累计仿真时间（秒），与真实时钟无关

	Players map[PlayerID]*Player
	Coins   []*Coin

	// 金币重生队列：到达对应仿真时刻后生成一枚新金币
	respawnAt []float64
}

// NewWorld 创建空世界
func NewWorld(width, height float64) *World {
	return &World{
		Width:   width,
		Height:  height,
		Players: make(map[PlayerID]*Player),
	}
}

// ApplyBounds 将坐标裁剪到 [0,Width]×[0,Height]
// 越界的位移被裁剪而非拒绝：玩家沿墙滑动，不会被退回原位
func (w *World) ApplyBounds(x, y float64) (float64, float64) {
	if x < 0 {
		x = 0
	}
	if x > w.Width {
		x = w.Width
	}
	if y < 0 {
		y = 0
	}
	if y > w.Height {
		y = w.Height
	}
	return x, y
}

// PlayerIDs 返回按 ID 升序排列的玩家列表
// 拾取判定与快照构建都按此顺序遍历，保证结果可复现
func (w *World) PlayerIDs() []PlayerID {
	ids := make([]PlayerID, 0, len(w.Players))
	for id := range w.Players {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// AddPlayer 插入玩家实体（由房间在 Tick 线程内调用）
func (w *World) AddPlayer(p *Player) {
	w.Players[p.ID] = p
}

// RemovePlayer 移除玩家实体；不存在时为空操作
func (w *World) RemovePlayer(id PlayerID) {
	delete(w.Players, id)
}
