package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"car-part-factory/internal/config"
	"car-part-factory/internal/event"
	"car-part-factory/internal/store"
	"car-part-factory/internal/util"
	"car-part-factory/internal/web"
)

// serve 启动 API 和 WebSocket 服务，并按配置的间隔逐天推进模拟
// 模拟结束后继续提供状态查询，直到收到停机信号
func serve(ctx context.Context, cfg *config.Config, logw io.Writer) error {
	logger := newLogger(cfg, logw)
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(util.ContextWithRunID(ctx, util.NewRunID()))
	defer cancel()

	hub := web.NewHub(logger)
	go hub.Run()
	defer hub.Stop()
	tracker := web.NewStateTracker(hub)

	journal, err := openJournal(cfg.JournalPath, logger)
	if err != nil {
		return err
	}
	if journal != nil {
		defer journal.Close()
	}

	db, err := openStore(cfg.Store)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}

	bus := event.NewBus()
	registerHandlers(bus, tracker, journal, logger)
	registerPacing(ctx, bus, time.Duration(cfg.Server.DayIntervalMs)*time.Millisecond)

	server := &http.Server{Addr: cfg.Server.Addr, Handler: newMux(hub, tracker, db, logger)}
	serverErr := make(chan error, 1)
	go func() {
		logger.Info("API 和 WebSocket 服务器启动", "addr", cfg.Server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	simDone := make(chan error, 1)
	go func() {
		_, _, err := simulate(ctx, cfg, bus, db, logger)
		simDone <- err
	}()

	return waitForShutdown(logger, cancel, server, serverErr, simDone)
}

// registerPacing 让每天的快照之间至少间隔 interval，便于前端观察
// 事件总线是同步的，所以在 DayCompleted 处理器里等待就会推迟下一天
func registerPacing(ctx context.Context, bus *event.Bus, interval time.Duration) {
	if interval <= 0 {
		return
	}
	limiter := rate.NewLimiter(rate.Every(interval), 1)
	bus.Subscribe(event.DayCompleted, func(e event.Event) {
		// ctx 取消时不再等待，剩余的天数直接跑完
		_ = limiter.Wait(ctx)
	})
}

// newMux 注册监控、WebSocket 和状态查询接口
func newMux(hub *web.Hub, st *web.StateTracker, db *store.Store, logger *slog.Logger) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/ws", hub.ServeWs)
	mux.HandleFunc("/api/state", web.StateHandler(st))
	if db != nil {
		mux.HandleFunc("GET /api/runs/{id}", func(w http.ResponseWriter, r *http.Request) {
			summary, err := db.LoadRun(r.Context(), r.PathValue("id"))
			if errors.Is(err, store.ErrRunNotFound) {
				http.Error(w, err.Error(), http.StatusNotFound)
				return
			}
			if err != nil {
				logger.Warn("读取运行历史失败", "error", err)
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(summary)
		})
	}
	return mux
}

// waitForShutdown 等待系统信号以实现优雅停机
func waitForShutdown(logger *slog.Logger, cancel context.CancelFunc, server *http.Server, serverErr <-chan error, simDone chan error) error {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	shutdown := func() {
		cancel()
		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warn("关闭 HTTP 服务器失败", "error", err)
		}
	}

	for {
		select {
		case err := <-simDone:
			simDone = nil
			if err != nil {
				logger.Error("模拟失败", "error", err)
				shutdown()
				return err
			}
			logger.Info("模拟结束，继续提供状态查询")
		case err := <-serverErr:
			logger.Error("API 服务器启动失败", "error", err)
			shutdown()
			if simDone != nil {
				<-simDone
			}
			return err
		case <-sigChan:
			logger.Info("接收到停机信号，正在优雅关闭...")
			shutdown()
			if simDone != nil {
				<-simDone
			}
			logger.Info("模拟演示结束，系统已安全退出。")
			return nil
		}
	}
}
