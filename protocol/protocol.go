package protocol

// 消息类型判别字段的取值（wire 层兼容面，勿随意改动）
const (
	MsgWelcome = "welcome"
	MsgInput   = "input"
	MsgState   = "state"
)

// Vec2 二维向量（客户端输入方向等）
type Vec2 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Welcome 服务端在连接建立后立即下发，告知客户端权威 ID
type Welcome struct {
	PlayerID string `json:"player_id"`
}

// Input 客户端上行的移动意图（仅最新一条有效，服务端不排队）
type Input struct {
	Direction Vec2  `json:"direction"`
	Seq       int64 `json:"seq,omitempty"` // 客户端本地序列号，用于去重
}

// PlayerState 快照中的单个玩家条目
type PlayerState struct {
	ID    string  `json:"id"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Score int     `json:"score"`
}

// CoinState 快照中的单个金币条目
type CoinState struct {
	ID string  `json:"id"`
	X  float64 `json:"x"`
	Y  float64 `json:"y"`
}

// State 每个 Tick 广播一次的全量快照（非增量）
// 玩家与金币均按 ID 升序排列，保证编码结果可复现
type State struct {
	Tick    int64         `json:"tick"`
	Players []PlayerState `json:"players"`
	Coins   []CoinState   `json:"coins"`
}

// Message 三种 wire 消息的和类型标记
type Message interface {
	kind() string
}

func (Welcome) kind() string { return MsgWelcome }
func (Input) kind() string   { return MsgInput }
func (State) kind() string   { return MsgState }
