package server

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config 服务端配置，全部来自环境变量（可选 .env 文件）
// 核心代码只消费该结构体，解析留在进程边界
type Config struct {
	Host              string
	Port              int
	TickRate          int     // 每秒世界推进次数
	CoinSpawnInterval float64 // 金币重生间隔（秒）
	WorldWidth        float64
	WorldHeight       float64
	InitialCoins      int
	PlayerSpeed       float64
	ArtificialLatency time.Duration // 出站广播的模拟延迟（联调用）
}

// DefaultConfig 与原型一致的默认值
func DefaultConfig() Config {
	return Config{
		Host:              "localhost",
		Port:              8765,
		TickRate:          30,
		CoinSpawnInterval: 3.0,
		WorldWidth:        800,
		WorldHeight:       600,
		InitialCoins:      5,
		PlayerSpeed:       DefaultPlayerSpeed,
	}
}

// LoadConfig 读取 .env（存在时）与环境变量，未设置的项取默认值
func LoadConfig() Config {
	// .env 缺失不是错误：容器环境通常直接注入变量
	_ = godotenv.Load()

	cfg := DefaultConfig()
	cfg.Host = envStr("SERVER_HOST", cfg.Host)
	cfg.Port = envInt("SERVER_PORT", cfg.Port)
	cfg.TickRate = envInt("TICK_RATE", cfg.TickRate)
	cfg.CoinSpawnInterval = envFloat("COIN_SPAWN_INTERVAL", cfg.CoinSpawnInterval)
	cfg.WorldWidth = envFloat("WORLD_WIDTH", cfg.WorldWidth)
	cfg.WorldHeight = envFloat("WORLD_HEIGHT", cfg.WorldHeight)
	cfg.InitialCoins = envInt("INITIAL_COINS", cfg.InitialCoins)
	cfg.PlayerSpeed = envFloat("PLAYER_SPEED", cfg.PlayerSpeed)
	cfg.ArtificialLatency = time.Duration(envInt("ARTIFICIAL_LATENCY_MS", 0)) * time.Millisecond
	return cfg
}

// Addr 返回监听地址 host:port
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// TickInterval 返回单个 Tick 的时长
func (c Config) TickInterval() time.Duration {
	tps := c.TickRate
	if tps <= 0 {
		tps = DefaultConfig().TickRate
	}
	return time.Second / time.Duration(tps)
}

func envStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}
