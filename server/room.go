package server

import (
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"coinarena/protocol"
)

// Conn 房间对连接的最小依赖：入队发送与关闭
// 真实实现是 ClientConn；测试可用内存假实现替代
type Conn interface {
	Enqueue(b []byte) bool
	Close()
}

// joinRequest 入室请求：在 Tick 线程中分配 ID 后经 reply 返回
type joinRequest struct {
	conn  Conn
	reply chan PlayerID
}

// Room 房间世界：权威状态维护在内存，单线程 Tick 推进
// 连接 I/O 在各自协程运行，所有状态变更经通道汇入 Tick 线程
type Room struct {
	ID string

	world  *World
	engine *Engine
	dt     float64 // 固定步长 = 1/TickRate（秒）

	clients map[PlayerID]Conn

	joinChan  chan joinRequest
	leaveChan chan PlayerID
	inputChan chan Input

	// 每玩家单槽的最新意图（后写覆盖），Advance 消费后清空
	latestInputs map[PlayerID]Input
	lastSeq      map[PlayerID]int64
	inputCount   map[PlayerID]int // 本 Tick 内已接受的输入数（限流用）

	nextPlayerNum int

	// 可热更新的调参（admin 接口经 cfgMu 读写）
	cfgMu              sync.RWMutex
	speed              float64
	coinSpawnInterval  float64
	maxInputsPerTick   int
	simulateDelayMinMs int
	simulateDelayMaxMs int
	simulateDropProb   float64
	sendDelay          time.Duration // 出站广播的模拟延迟

	metrics *RoomMetrics
	tickSeq int64 // 最近完成的 Tick 序号（供 HTTP 侧原子读取）

	tickInterval  time.Duration
	tickerStarted bool
	quit          chan struct{}
}

// NewRoom 创建房间并铺设开局金币
func NewRoom(id string, cfg Config) *Room {
	r := &Room{
		ID:                id,
		world:             NewWorld(cfg.WorldWidth, cfg.WorldHeight),
		engine:            NewEngine(cfg.PlayerSpeed, cfg.CoinSpawnInterval, time.Now().UnixNano()),
		dt:                cfg.TickInterval().Seconds(),
		clients:           make(map[PlayerID]Conn),
		joinChan:          make(chan joinRequest, 16),
		leaveChan:         make(chan PlayerID, 64),
		inputChan:         make(chan Input, 256), // 足够缓冲，避免网络读阻塞影响 Tick
		latestInputs:      make(map[PlayerID]Input),
		lastSeq:           make(map[PlayerID]int64),
		inputCount:        make(map[PlayerID]int),
		nextPlayerNum:     1,
		speed:             cfg.PlayerSpeed,
		coinSpawnInterval: cfg.CoinSpawnInterval,
		maxInputsPerTick:  8,
		sendDelay:         cfg.ArtificialLatency,
		metrics:           &RoomMetrics{},
		tickInterval:      cfg.TickInterval(),
		quit:              make(chan struct{}),
	}
	r.engine.SpawnInitialCoins(r.world, cfg.InitialCoins)
	return r
}

// Join 将连接移交房间：在下一个 Tick 中进入 Active 状态并获得玩家 ID
// 阻塞直到 ID 分配完成（最多约一个 Tick 周期）
func (r *Room) Join(conn Conn) PlayerID {
	reply := make(chan PlayerID, 1)
	select {
	case r.joinChan <- joinRequest{conn: conn, reply: reply}:
	case <-r.quit:
		return ""
	}
	select {
	case pid := <-reply:
		return pid
	case <-r.quit:
		return ""
	}
}

// RequestLeave 请求在 Tick 线程中移除玩家，避免并发改动房间状态
// 房间已停止时直接返回，不让读泵协程卡在无人消费的通道上
func (r *Room) RequestLeave(pid PlayerID) {
	select {
	case r.leaveChan <- pid:
	case <-r.quit:
	}
}

// OnInput 入站输入：不立即改变世界，仅覆盖该玩家的最新意图槽
func (r *Room) OnInput(in Input) {
	r.cfgMu.RLock()
	dropProb := r.simulateDropProb
	delayMin, delayMax := r.simulateDelayMinMs, r.simulateDelayMaxMs
	r.cfgMu.RUnlock()

	// 联调用的网络扰动：按概率丢弃、按区间延迟
	if dropProb > 0 && rand.Float64() < dropProb {
		r.metrics.IncDropsSimulated()
		return
	}
	if delayMax > 0 && delayMax >= delayMin {
		d := delayMin
		if delayMax > delayMin {
			d += rand.Intn(delayMax - delayMin + 1)
		}
		time.AfterFunc(time.Duration(d)*time.Millisecond, func() { r.enqueueInput(in) })
		return
	}
	r.enqueueInput(in)
}

func (r *Room) enqueueInput(in Input) {
	// 不阻塞：输入拥塞时丢弃，保证网络读协程与 Tick 互不拖累
	select {
	case r.inputChan <- in:
	case <-r.quit:
	default:
		r.metrics.IncChanFullDiscarded()
	}
}

// BeginTick 同一 Tick 时间线的帧首工作：重置限流计数、同步热更新调参
func (r *Room) BeginTick() {
	for k := range r.inputCount {
		delete(r.inputCount, k)
	}
	r.cfgMu.RLock()
	r.engine.speed = r.speed
	r.engine.spawnInterval = r.coinSpawnInterval
	r.cfgMu.RUnlock()
}

// ProcessInputs 处理当前帧的所有入站事件（非阻塞 drain）
func (r *Room) ProcessInputs() {
	for {
		select {
		case req := <-r.joinChan:
			req.reply <- r.handleJoin(req.conn)
		case pid := <-r.leaveChan:
			r.handleLeave(pid)
		case in := <-r.inputChan:
			r.handleInput(in)
		default:
			return
		}
	}
}

// handleJoin 连接进入 Active：分配新 ID、写入世界、下发 welcome
func (r *Room) handleJoin(conn Conn) PlayerID {
	pid := PlayerID(fmt.Sprintf("player_%d", r.nextPlayerNum))
	r.nextPlayerNum++

	r.engine.SpawnPlayer(r.world, pid)
	r.clients[pid] = conn

	if b, err := protocol.Encode(protocol.Welcome{PlayerID: string(pid)}); err == nil {
		conn.Enqueue(b)
	}
	if Log != nil {
		Log.Infof("room=%s player joined: %s", r.ID, pid)
	}
	return pid
}

// handleLeave 连接进入 Disconnected：移除玩家并释放连接资源
// 重复到达的离开请求为空操作，移除最多发生一次
func (r *Room) handleLeave(pid PlayerID) {
	conn, ok := r.clients[pid]
	if !ok {
		return
	}
	delete(r.clients, pid)
	delete(r.latestInputs, pid)
	delete(r.lastSeq, pid)
	delete(r.inputCount, pid)
	r.world.RemovePlayer(pid)
	conn.Close()
	if Log != nil {
		Log.Infof("room=%s player left: %s", r.ID, pid)
	}
}

// handleInput 序列去重 + 同帧限流后覆盖最新意图槽
func (r *Room) handleInput(in Input) {
	if _, ok := r.clients[in.PlayerID]; !ok {
		return // 已断开玩家的迟到输入
	}
	if in.Seq > 0 {
		if in.Seq <= r.lastSeq[in.PlayerID] {
			r.metrics.IncOldSeqIgnored()
			return
		}
		r.lastSeq[in.PlayerID] = in.Seq
	}
	r.cfgMu.RLock()
	limit := r.maxInputsPerTick
	r.cfgMu.RUnlock()
	if limit > 0 && r.inputCount[in.PlayerID] >= limit {
		r.metrics.IncRateLimited()
		return
	}
	r.inputCount[in.PlayerID]++
	r.latestInputs[in.PlayerID] = in
	r.metrics.IncAccepted()
}

// StepWorld 以固定步长推进仿真；意图被本 Tick 消费后即丢弃
func (r *Room) StepWorld() {
	collected := r.engine.Advance(r.world, r.latestInputs, r.dt)
	if collected > 0 {
		r.metrics.AddCoinsCollected(collected)
	}
	for k := range r.latestInputs {
		delete(r.latestInputs, k)
	}
	atomic.StoreInt64(&r.tickSeq, r.world.Tick)
}

// Tick 返回最近完成的 Tick 序号（任意协程可读）
func (r *Room) Tick() int64 {
	return atomic.LoadInt64(&r.tickSeq)
}

// BuildSnapshot 构建本 Tick 的全量快照（玩家与金币均按 ID 升序）
func (r *Room) BuildSnapshot() protocol.State {
	st := protocol.State{
		Tick:    r.world.Tick,
		Players: make([]protocol.PlayerState, 0, len(r.world.Players)),
		Coins:   make([]protocol.CoinState, 0, len(r.world.Coins)),
	}
	for _, id := range r.world.PlayerIDs() {
		p := r.world.Players[id]
		st.Players = append(st.Players, protocol.PlayerState{
			ID: string(p.ID), X: p.X, Y: p.Y, Score: p.Score,
		})
	}
	for _, c := range r.world.Coins {
		st.Coins = append(st.Coins, protocol.CoinState{ID: string(c.ID), X: c.X, Y: c.Y})
	}
	sort.Slice(st.Coins, func(i, j int) bool { return st.Coins[i].ID < st.Coins[j].ID })
	return st
}

// BroadcastState 将快照广播给所有 Active 连接
// 逐连接尽力而为：单个客户端入队失败只影响它自己，绝不拖慢下一个 Tick
func (r *Room) BroadcastState() {
	b, err := protocol.Encode(r.BuildSnapshot())
	if err != nil {
		if Log != nil {
			Log.Errorf("room=%s encode snapshot: %v", r.ID, err)
		}
		return
	}
	for _, conn := range r.clients {
		if !conn.Enqueue(b) {
			r.metrics.IncBroadcastFailed()
		}
	}
}

// SendDelay 返回出站广播的模拟延迟（新连接创建时取用）
func (r *Room) SendDelay() time.Duration {
	r.cfgMu.RLock()
	defer r.cfgMu.RUnlock()
	return r.sendDelay
}

// Stop 终止 Tick 循环
func (r *Room) Stop() {
	close(r.quit)
}
