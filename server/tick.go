package server

import "time"

// StartTicker 启动房间的 Tick 循环（单线程推进世界）
// time.Ticker 在接收方过慢时会丢帧而非积压：某个 Tick 超时只会
// 让有效频率瞬时下降，不会形成无界的追赶债务
func (r *Room) StartTicker() {
	if r.tickerStarted {
		return
	}
	r.tickerStarted = true
	go func() {
		ticker := time.NewTicker(r.tickInterval)
		defer ticker.Stop()
		for {
			select {
			case <-r.quit:
				return
			case <-ticker.C:
				// 核心循环：帧首准备 → 处理输入 → 推进仿真 → 广播快照
				start := time.Now()
				r.BeginTick()
				r.ProcessInputs()
				r.StepWorld()
				r.BroadcastState()
				r.metrics.AddTick(time.Since(start).Nanoseconds())
			}
		}
	}()
}
