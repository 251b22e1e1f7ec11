package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"car-part-factory/internal/config"
	"car-part-factory/internal/engine"
	"car-part-factory/internal/event"
	"car-part-factory/internal/handlers"
	"car-part-factory/internal/persistence"
	"car-part-factory/internal/records"
	"car-part-factory/internal/report"
	"car-part-factory/internal/store"
	"car-part-factory/internal/types"
	"car-part-factory/internal/util"
	"car-part-factory/internal/web"
)

func newLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
}

// loadInputs 内联定义优先，否则读取 CSV 记录
func loadInputs(cfg *config.Config) ([]types.MachineSpec, []types.OrderSpec, error) {
	machines := cfg.Machines
	if len(machines) == 0 && cfg.Inputs.MachinesPath != "" {
		var err error
		if machines, err = records.LoadMachines(cfg.Inputs.MachinesPath); err != nil {
			return nil, nil, err
		}
	}
	orders := cfg.Orders
	if len(orders) == 0 && cfg.Inputs.OrdersPath != "" {
		var err error
		if orders, err = records.LoadOrders(cfg.Inputs.OrdersPath); err != nil {
			return nil, nil, err
		}
	}
	return machines, orders, nil
}

// openJournal 打开运行日志，并报告上次未完成的运行
func openJournal(path string, logger *slog.Logger) (*persistence.Journal, error) {
	if path == "" {
		return nil, nil
	}
	journal, err := persistence.NewJournal(path)
	if err != nil {
		return nil, fmt.Errorf("无法初始化运行日志: %w", err)
	}
	incomplete, err := journal.Incomplete()
	if err != nil {
		logger.Warn("读取运行日志失败", "error", err)
	}
	for _, runID := range incomplete {
		logger.Warn("发现未完成的运行", "incomplete_run_id", runID)
	}
	return journal, nil
}

// registerHandlers 注册所有事件处理器；nil 的组件不订阅
func registerHandlers(bus *event.Bus, tracker *web.StateTracker, journal *persistence.Journal, logger *slog.Logger) {
	deps := handlers.Deps{StateTracker: tracker, Logger: logger}
	if journal != nil {
		deps.Journal = journal
	}
	handlers.RegisterEventHandlers(bus, deps)
}

// simulate 运行一次完整模拟，求值告警规则，并在配置了数据库时保存结果
// 运行 ID 取自 ctx
func simulate(ctx context.Context, cfg *config.Config, bus *event.Bus, db *store.Store, logger *slog.Logger) (types.RunSummary, []report.Alert, error) {
	runID, _ := util.RunIDFromContext(ctx)
	logger = util.LoggerFromContext(ctx, logger)

	machines, orders, err := loadInputs(cfg)
	if err != nil {
		return types.RunSummary{}, nil, err
	}
	if len(machines) == 0 {
		logger.Warn("没有配置任何机器")
	}

	f, err := engine.New(machines, orders, engine.Options{
		RunID:      runID,
		Seed:       cfg.Simulation.Seed,
		MaxWorkers: cfg.Simulation.MaxWorkers,
		Bus:        bus,
		Logger:     logger,
	})
	if err != nil {
		return types.RunSummary{}, nil, err
	}

	logger.Info("=== 汽车零件工厂模拟开始 ===",
		"machines", len(machines), "orders", len(orders),
		"days", cfg.Simulation.Days, "minutes_per_day", cfg.Simulation.MinutesPerDay)
	if err := f.Run(cfg.Simulation.Days, cfg.Simulation.MinutesPerDay); err != nil {
		return types.RunSummary{}, nil, err
	}
	summary := f.Summary()

	alerts, err := report.EvaluateAlerts(cfg.Alerts, summary)
	if err != nil {
		return types.RunSummary{}, nil, err
	}
	for _, a := range alerts {
		logger.Warn("告警规则触发", "alert", a.Name, "machine_id", a.MachineID, "part", a.PartName)
	}

	if db != nil {
		if err := db.SaveRun(ctx, summary); err != nil {
			return types.RunSummary{}, nil, err
		}
		logger.Info("运行结果已保存")
	}
	return summary, alerts, nil
}

// openStore 在启用数据库时打开连接
func openStore(cfg config.StoreConfig) (*store.Store, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	return store.Open(cfg)
}

// runOnce 运行一次模拟并把报表写到 out，日志写到 logw
func runOnce(ctx context.Context, cfg *config.Config, out, logw io.Writer) error {
	logger := newLogger(cfg, logw)

	ctx = util.ContextWithRunID(ctx, util.NewRunID())

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
	registerHandlers(bus, nil, journal, logger)

	summary, alerts, err := simulate(ctx, cfg, bus, db, logger)
	if err != nil {
		return err
	}
	return report.Write(out, cfg.Report.Format, summary, alerts)
}
