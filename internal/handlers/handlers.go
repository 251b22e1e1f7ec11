package handlers

import (
	"log/slog"
	"strconv"
	"sync"

	"car-part-factory/internal/event"
	"car-part-factory/internal/metrics"
	"car-part-factory/internal/types"
	"car-part-factory/internal/web"
)

// Journal 是运行日志需要提供的写入方法
type Journal interface {
	Begin(runID string) error
	AppendDay(runID string, s types.DaySnapshot) error
	AppendOrder(runID string, r types.OrderResult) error
	Complete(runID string) error
}

// Deps 是各个处理器的依赖，为 nil 的依赖对应的处理器不注册
type Deps struct {
	StateTracker *web.StateTracker
	Journal      Journal
	Logger       *slog.Logger
}

// RegisterEventHandlers 将所有事件处理器注册到事件总线
// 监控、UI、持久化、日志各自订阅，互不依赖
func RegisterEventHandlers(bus *event.Bus, deps Deps) {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	registerMetrics(bus)
	if deps.StateTracker != nil {
		registerStateTracker(bus, deps.StateTracker)
	}
	if deps.Journal != nil {
		registerJournal(bus, deps.Journal, logger)
	}
	registerLogging(bus, logger)
}

// --- 指标处理器 ---
// 快照里是累计值，计数器需要增量，所以记住上一次看到的数值
func registerMetrics(bus *event.Bus) {
	var (
		mu       sync.Mutex
		produced map[int]int
		defects  map[int]int
	)
	bus.Subscribe(event.RunStarted, func(e event.Event) {
		mu.Lock()
		defer mu.Unlock()
		produced = make(map[int]int)
		defects = make(map[int]int)
		metrics.SimulatedDay.Set(0)
	})
	bus.Subscribe(event.DayCompleted, func(e event.Event) {
		mu.Lock()
		defer mu.Unlock()
		if produced == nil {
			produced, defects = make(map[int]int), make(map[int]int)
		}
		metrics.SimulatedDay.Set(float64(e.Day.Day))
		for _, m := range e.Day.Machines {
			if delta := m.TotalProduced - produced[m.MachineID]; delta > 0 {
				metrics.PartsProduced.WithLabelValues(strconv.Itoa(m.MachineID)).Add(float64(delta))
			}
			produced[m.MachineID] = m.TotalProduced
		}
		for _, p := range e.Day.Parts {
			label := strconv.Itoa(p.PartID)
			if delta := p.Defective - defects[p.PartID]; delta > 0 {
				metrics.PartsDefective.WithLabelValues(label).Add(float64(delta))
			}
			defects[p.PartID] = p.Defective
			metrics.InventoryLevel.WithLabelValues(label).Set(float64(p.Inventory))
		}
	})
	bus.Subscribe(event.OrderEvaluated, func(e event.Event) {
		metrics.OrdersTotal.WithLabelValues(e.Order.Status).Inc()
	})
	// 订单扣减之后的库存
	bus.Subscribe(event.RunCompleted, func(e event.Event) {
		for _, m := range e.Summary.Machines {
			metrics.InventoryLevel.WithLabelValues(strconv.Itoa(m.MachineID)).Set(float64(m.Inventory))
		}
	})
}

// --- Web UI 处理器 ---
func registerStateTracker(bus *event.Bus, st *web.StateTracker) {
	bus.Subscribe(event.RunStarted, func(e event.Event) {
		st.StartRun(e.RunID)
	})
	bus.Subscribe(event.DayCompleted, func(e event.Event) {
		st.UpdateDay(*e.Day)
	})
	bus.Subscribe(event.OrderEvaluated, func(e event.Event) {
		st.AddOrder(*e.Order)
	})
	bus.Subscribe(event.RunCompleted, func(e event.Event) {
		st.Finish(*e.Summary)
	})
}

// --- 运行日志处理器 ---
func registerJournal(bus *event.Bus, j Journal, logger *slog.Logger) {
	logErr := func(err error, e event.Event) {
		if err != nil {
			logger.Error("写入运行日志失败", "error", err, "run_id", e.RunID, "event", e.Type)
		}
	}
	bus.Subscribe(event.RunStarted, func(e event.Event) {
		logErr(j.Begin(e.RunID), e)
	})
	bus.Subscribe(event.DayCompleted, func(e event.Event) {
		logErr(j.AppendDay(e.RunID, *e.Day), e)
	})
	bus.Subscribe(event.OrderEvaluated, func(e event.Event) {
		logErr(j.AppendOrder(e.RunID, *e.Order), e)
	})
	bus.Subscribe(event.RunCompleted, func(e event.Event) {
		logErr(j.Complete(e.RunID), e)
	})
}

// --- 日志处理器 ---
// 记录关键业务事件
func registerLogging(bus *event.Bus, logger *slog.Logger) {
	bus.Subscribe(event.OrderEvaluated, func(e event.Event) {
		logger.Debug("订单评估完成", "run_id", e.RunID, "order_id", e.Order.OrderID, "status", e.Order.Status)
	})
	bus.Subscribe(event.RunCompleted, func(e event.Event) {
		for _, m := range e.Summary.Machines {
			logger.Info("机器产量", "run_id", e.RunID, "machine_id", m.MachineID, "part", m.PartName,
				"produced", m.TotalProduced, "defective", m.Defective, "inventory", m.Inventory)
		}
	})
}
