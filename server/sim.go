package server

import (
	"math"
	"math/rand"

	"github.com/google/uuid"

	"coinarena/protocol"
)

// 仿真调参（世界单位 ≈ 像素）
const (
	DefaultPlayerSpeed = 200.0 // 每秒移动距离
	PlayerRadius       = 20.0
	CoinRadius         = 10.0
	CoinReward         = 1 // 拾取一枚金币的固定得分

	coinSpawnMargin   = 50.0  // 金币生成时与边界的最小间距
	playerSpawnMargin = 100.0 // 玩家出生点与边界的最小间距
	spawnRetries      = 8     // 避免金币重叠的重试上限（尽力而为）
)

// Engine 仿真引擎：以固定步长 dt 推进世界
// rng 属于引擎状态的一部分：相同种子 + 相同世界与输入 ⇒ 输出逐位一致
type Engine struct {
	speed         float64 // 玩家速度（单位/秒），可经 admin 热更新
	spawnInterval float64 // 金币重生间隔（仿真秒）
	pickupRadius  float64
	rng           *rand.Rand
}

// NewEngine 创建引擎；seed 固定则整个仿真序列可复现
func NewEngine(speed, spawnInterval float64, seed int64) *Engine {
	return &Engine{
		speed:         speed,
		spawnInterval: spawnInterval,
		pickupRadius:  PlayerRadius + CoinRadius,
		rng:           rand.New(rand.NewSource(seed)),
	}
}

// Advance 将世界推进一个 Tick：应用输入 → 位移裁剪 → 拾取判定 → 金币重生
// 返回本 Tick 被拾取的金币数（用于指标统计）
func (e *Engine) Advance(w *World, inputs map[PlayerID]Input, dt float64) int {
	w.Tick++
	w.SimTime += dt

	ids := w.PlayerIDs()

	// 1. 速度来自最新意图并跨 Tick 持续生效；位移越界时裁剪而非拒绝
	for _, id := range ids {
		p := w.Players[id]
		if in, ok := inputs[id]; ok {
			if dx, dy, ok := sanitizeDirection(in.Direction); ok {
				p.VX = dx * e.speed
				p.VY = dy * e.speed
			}
			// 非法方向（NaN/Inf）：本 Tick 忽略该输入，保留原速度
		}
		p.X, p.Y = w.ApplyBounds(p.X+p.VX*dt, p.Y+p.VY*dt)
		e.checkBounds(w, p)
	}

	// 2. 拾取判定：金币按生成顺序、玩家按 ID 升序扫描
	//    同一 Tick 内多名玩家同时够到时，ID 最小者得分（确定性仲裁）
	collected := 0
	kept := make([]*Coin, 0, len(w.Coins))
	for _, c := range w.Coins {
		taken := false
		for _, id := range ids {
			p := w.Players[id]
			if dist2(p.X, p.Y, c.X, c.Y) <= e.pickupRadius*e.pickupRadius {
				p.Score += CoinReward
				w.respawnAt = append(w.respawnAt, w.SimTime+e.spawnInterval)
				taken = true
				collected++
				break
			}
		}
		if !taken {
			kept = append(kept, c)
		}
	}
	w.Coins = kept

	// 3. 到期的重生按仿真时间触发，与真实 Tick 抖动无关
	for len(w.respawnAt) > 0 && w.respawnAt[0] <= w.SimTime {
		w.respawnAt = w.respawnAt[1:]
		e.SpawnCoin(w)
	}
	return collected
}

// SpawnCoin 在带边距的随机位置生成一枚金币
// 尽力避开已有金币（有限次重试），不做严格保证
func (e *Engine) SpawnCoin(w *World) *Coin {
	var x, y float64
	for try := 0; try < spawnRetries; try++ {
		x = e.randRange(coinSpawnMargin, w.Width-coinSpawnMargin)
		y = e.randRange(coinSpawnMargin, w.Height-coinSpawnMargin)
		if !coinNear(w, x, y) {
			break
		}
	}
	c := &Coin{ID: e.newCoinID(), X: x, Y: y}
	w.Coins = append(w.Coins, c)
	return c
}

// SpawnInitialCoins 开局铺设若干金币
func (e *Engine) SpawnInitialCoins(w *World, n int) {
	for i := 0; i < n; i++ {
		e.SpawnCoin(w)
	}
}

// SpawnPlayer 在带边距的随机出生点创建玩家
func (e *Engine) SpawnPlayer(w *World, id PlayerID) *Player {
	p := &Player{
		ID: id,
		X:  e.randRange(playerSpawnMargin, w.Width-playerSpawnMargin),
		Y:  e.randRange(playerSpawnMargin, w.Height-playerSpawnMargin),
	}
	w.AddPlayer(p)
	return p
}

// newCoinID 从引擎自身的随机源生成 UUID，保证相同种子下 ID 序列一致
func (e *Engine) newCoinID() CoinID {
	id, err := uuid.NewRandomFromReader(e.rng)
	if err != nil {
		// math/rand 的 Read 不会失败，此分支仅为防御
		return CoinID(uuid.NewString())
	}
	return CoinID(id.String())
}

func (e *Engine) randRange(lo, hi float64) float64 {
	if hi <= lo {
		return lo
	}
	return lo + e.rng.Float64()*(hi-lo)
}

// checkBounds 不变式兜底：裁剪后位置仍非法（如 NaN 渗入）时记录并强制归位
// 世界循环绝不因单个坏输入而中断
func (e *Engine) checkBounds(w *World, p *Player) {
	bad := math.IsNaN(p.X) || math.IsNaN(p.Y) ||
		p.X < 0 || p.X > w.Width || p.Y < 0 || p.Y > w.Height
	if !bad {
		return
	}
	if Log != nil {
		Log.Warnf("simulation invariant violation: player=%s pos=(%v,%v), clamping", p.ID, p.X, p.Y)
	}
	if math.IsNaN(p.X) {
		p.X = 0
	}
	if math.IsNaN(p.Y) {
		p.Y = 0
	}
	p.VX, p.VY = 0, 0
	p.X, p.Y = w.ApplyBounds(p.X, p.Y)
}

// sanitizeDirection 清洗输入方向：NaN/Inf 整条忽略，模长超过 1 归一化
func sanitizeDirection(d protocol.Vec2) (float64, float64, bool) {
	if math.IsNaN(d.X) || math.IsNaN(d.Y) || math.IsInf(d.X, 0) || math.IsInf(d.Y, 0) {
		return 0, 0, false
	}
	mag := math.Hypot(d.X, d.Y)
	if mag > 1 {
		return d.X / mag, d.Y / mag, true
	}
	return d.X, d.Y, true
}

func dist2(x1, y1, x2, y2 float64) float64 {
	dx := x2 - x1
	dy := y2 - y1
	return dx*dx + dy*dy
}

func coinNear(w *World, x, y float64) bool {
	for _, c := range w.Coins {
		if dist2(c.X, c.Y, x, y) < (2*CoinRadius)*(2*CoinRadius) {
			return true
		}
	}
	return false
}
