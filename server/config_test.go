package server

import (
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	for _, k := range []string{
		"SERVER_HOST", "SERVER_PORT", "TICK_RATE", "COIN_SPAWN_INTERVAL",
		"WORLD_WIDTH", "WORLD_HEIGHT", "INITIAL_COINS", "PLAYER_SPEED",
		"ARTIFICIAL_LATENCY_MS",
	} {
		t.Setenv(k, "")
	}
	cfg := LoadConfig()
	if cfg.Addr() != "localhost:8765" {
		t.Fatalf("default addr = %s", cfg.Addr())
	}
	if cfg.TickRate != 30 || cfg.CoinSpawnInterval != 3.0 {
		t.Fatalf("default tick/spawn = %d/%v", cfg.TickRate, cfg.CoinSpawnInterval)
	}
	if cfg.WorldWidth != 800 || cfg.WorldHeight != 600 || cfg.InitialCoins != 5 {
		t.Fatalf("default world = %+v", cfg)
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("SERVER_HOST", "0.0.0.0")
	t.Setenv("SERVER_PORT", "9000")
	t.Setenv("TICK_RATE", "60")
	t.Setenv("COIN_SPAWN_INTERVAL", "1.5")
	t.Setenv("ARTIFICIAL_LATENCY_MS", "200")

	cfg := LoadConfig()
	if cfg.Addr() != "0.0.0.0:9000" {
		t.Fatalf("addr = %s", cfg.Addr())
	}
	if cfg.TickRate != 60 || cfg.CoinSpawnInterval != 1.5 {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if cfg.ArtificialLatency != 200*time.Millisecond {
		t.Fatalf("latency = %v", cfg.ArtificialLatency)
	}
	if cfg.TickInterval() != time.Second/60 {
		t.Fatalf("tick interval = %v", cfg.TickInterval())
	}
}

func TestLoadConfigBadValuesFallBack(t *testing.T) {
	t.Setenv("TICK_RATE", "not-a-number")
	t.Setenv("WORLD_WIDTH", "")
	cfg := LoadConfig()
	if cfg.TickRate != 30 || cfg.WorldWidth != 800 {
		t.Fatalf("bad env values must fall back to defaults: %+v", cfg)
	}
}
