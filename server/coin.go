package server

// CoinID 金币唯一标识（UUID 文本）
type CoinID string

// Coin 可拾取的金币。被拾取后从世界移除，并在 coinSpawnInterval
// 的仿真时间之后于随机位置重新生成
type Coin struct {
	ID CoinID
	X  float64
	Y  float64
}
