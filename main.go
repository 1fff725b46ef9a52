package main

import (
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"coinarena/server"
)

// CoinArena 入口：启动 HTTP + WebSocket 服务，并初始化房间管理器
// 世界参数全部来自环境变量（可选 .env），命令行只留运维开关
func main() {
	var (
		logPath string
		debug   bool
	)
	flag.StringVar(&logPath, "log", "server.log", "log file path")
	flag.BoolVar(&debug, "debug", false, "enable debug level logging")
	flag.Parse()

	// 使用第三方 zap 日志库写入文件（带滚动）
	if err := server.InitLogger(logPath, debug); err != nil {
		panic(err)
	}
	defer server.SyncLogger()

	cfg := server.LoadConfig()
	rm := server.InitRoomManager(cfg)
	// 先预创建一个默认房间，便于快速试跑
	_ = rm.GetOrCreateRoom("room-1")

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", server.HandleWS)
	// 前后端分离：将 / 映射到 web 目录的静态资源（渲染端为外部协作者）
	mux.Handle("/", http.FileServer(http.Dir("web")))
	// 管理与监控接口
	mux.HandleFunc("/admin/config", server.HandleAdminConfig)
	mux.HandleFunc("/metrics", server.HandleMetrics)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{Addr: cfg.Addr(), Handler: mux}

	go func() {
		server.Log.Infof("CoinArena listening on %s; tick=%dHz world=%.0fx%.0f",
			cfg.Addr(), cfg.TickRate, cfg.WorldWidth, cfg.WorldHeight)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			server.Log.Fatalf("listen: %v", err)
		}
	}()

	// 优雅退出（Ctrl+C）
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	server.Log.Info("Shutting down...")
}
