package server

// PlayerID 玩家唯一标识（连接建立时由服务端分配，连接存续期内不变）
type PlayerID string

// Player 世界内的玩家实体（服务端权威状态，仅由仿真在 Tick 线程中改写）
type Player struct {
	ID    PlayerID
	X     float64
	Y     float64
	VX    float64 // 由最新输入意图推导的速度，持续生效直至下一条输入到达
	VY    float64
	Score int
}
