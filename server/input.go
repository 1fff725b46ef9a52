package server

import "coinarena/protocol"

// Input 客户端输入（移动意图），由服务端在 Tick 中解释并驱动世界状态
// 意图是连续状态而非离散事件：同一玩家仅保留最新一条（后写覆盖）
type Input struct {
	PlayerID  PlayerID
	Direction protocol.Vec2
	Seq       int64 // 客户端本地序列号，用于丢弃乱序旧输入
}
