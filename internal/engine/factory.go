package engine

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"

	"car-part-factory/internal/event"
	"car-part-factory/internal/fsm"
	"car-part-factory/internal/machine"
	"car-part-factory/internal/types"
)

var (
	ErrAlreadyRun     = errors.New("factory has already run")
	ErrUnknownMachine = errors.New("unknown machine")
	ErrUnknownPart    = errors.New("unknown part")
	ErrUnknownOrder   = errors.New("unknown order")
)

// Options 控制工厂的运行方式
type Options struct {
	RunID      string       // 写入日志和事件
	Seed       int64        // 重量抖动的随机种子，第 i 台机器使用 Seed+i
	MaxWorkers int          // 每天同时运行的机器数，<= 1 表示串行
	Bus        *event.Bus   // 可选
	Logger     *slog.Logger // 可选
}

// Factory 编排整个模拟：按天、按机器、按分钟驱动生产，
// 每天结束时把收集箱里的零件入库，全部结束后处理订单
type Factory struct {
	machines  []*machine.PartMachine
	byID      map[int]*machine.PartMachine
	orders    *OrderBook
	inventory *Inventory
	defects   *DefectLedger
	bin       *Bin
	scheduler *Scheduler
	bus       *event.Bus
	logger    *slog.Logger
	runID     string

	ran           bool
	days          int
	minutesPerDay int
}

// New 创建工厂：按注册顺序建立机器，并为每个零件 ID 登记空库存和零次品数
func New(specs []types.MachineSpec, orders []types.OrderSpec, opts Options) (*Factory, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.RunID != "" {
		logger = logger.With("run_id", opts.RunID)
	}

	f := &Factory{
		byID:      make(map[int]*machine.PartMachine, len(specs)),
		inventory: NewInventory(),
		defects:   NewDefectLedger(),
		bin:       &Bin{},
		scheduler: NewScheduler(opts.MaxWorkers, logger),
		bus:       opts.Bus,
		logger:    logger.With("component", "factory"),
		runID:     opts.RunID,
	}

	for i, spec := range specs {
		if _, dup := f.byID[spec.ID]; dup {
			return nil, fmt.Errorf("machine %d: duplicate machine id: %w", spec.ID, machine.ErrInvalidMachine)
		}
		m, err := machine.New(spec, rand.New(rand.NewSource(opts.Seed+int64(i))))
		if err != nil {
			return nil, err
		}
		f.machines = append(f.machines, m)
		f.byID[spec.ID] = m
		f.inventory.Register(m.PartID())
		f.defects.Register(m.PartID())
	}

	book, err := NewOrderBook(orders)
	if err != nil {
		return nil, err
	}
	f.orders = book
	return f, nil
}

// Run 运行 days 天、每天 minutesPerDay 分钟，然后处理订单
// 每个工厂只能运行一次
func (f *Factory) Run(days, minutesPerDay int) error {
	if f.ran {
		return ErrAlreadyRun
	}
	if days < 0 || minutesPerDay < 0 {
		return fmt.Errorf("invalid run length: days=%d minutes_per_day=%d", days, minutesPerDay)
	}
	f.ran = true
	f.days, f.minutesPerDay = days, minutesPerDay

	f.logger.Info("开始模拟", "days", days, "minutes_per_day", minutesPerDay, "machines", len(f.machines), "orders", len(f.orders.Orders()))
	f.bus.Publish(event.Event{Type: event.RunStarted, RunID: f.runID, Days: days, Machines: len(f.machines)})

	for day := 1; day <= days; day++ {
		outputs := f.scheduler.RunDay(f.machines, minutesPerDay)
		// 按注册顺序放入收集箱，保证与串行执行完全一致
		for _, out := range outputs {
			for _, p := range out.parts {
				f.bin.Push(p)
			}
		}
		collected := f.bin.Len()
		f.drainBinIntoInventory()

		snapshot := f.snapshot(day, outputs)
		f.logger.Info("当日生产完成", "day", day, "collected", collected)
		f.bus.Publish(event.Event{Type: event.DayCompleted, RunID: f.runID, Day: &snapshot})
	}

	results, err := f.orders.Fulfill(f.inventory)
	if err != nil {
		return fmt.Errorf("order fulfillment: %w", err)
	}
	fulfilled := 0
	for i := range results {
		if results[i].Status == string(fsm.StateFulfilled) {
			fulfilled++
		}
		f.bus.Publish(event.Event{Type: event.OrderEvaluated, RunID: f.runID, Order: &results[i]})
	}
	f.logger.Info("订单处理完成", "orders", len(results), "fulfilled", fulfilled)

	summary := f.Summary()
	f.bus.Publish(event.Event{Type: event.RunCompleted, RunID: f.runID, Summary: &summary})
	return nil
}

// drainBinIntoInventory 清空收集箱：合格零件入库，次品计数
// 收集箱后进先出，所以同一天的零件入库顺序与完成顺序相反
func (f *Factory) drainBinIntoInventory() {
	for {
		p, ok := f.bin.Pop()
		if !ok {
			return
		}
		if p.Defective {
			f.defects.Inc(p.ID)
		} else {
			f.inventory.Append(p)
		}
	}
}

func (f *Factory) snapshot(day int, outputs []machineDay) types.DaySnapshot {
	s := types.DaySnapshot{Day: day}
	for i, m := range f.machines {
		state := types.MachineState{
			MachineID:     m.ID(),
			PartName:      m.Spec().PartName,
			TotalProduced: m.TotalProduced(),
		}
		if i < len(outputs) {
			state.Conveyor = outputs[i].conveyor
		}
		s.Machines = append(s.Machines, state)
	}
	for _, id := range f.inventory.PartIDs() {
		level, _ := f.inventory.Level(id)
		defects, _ := f.defects.Count(id)
		s.Parts = append(s.Parts, types.PartState{PartID: id, Inventory: level, Defective: defects})
	}
	return s
}

// Machines 返回按注册顺序排列的机器
func (f *Factory) Machines() []*machine.PartMachine {
	return f.machines
}

// Orders 返回按积压顺序排列的订单
func (f *Factory) Orders() []*Order {
	return f.orders.Orders()
}

func (f *Factory) RunID() string {
	return f.runID
}

func (f *Factory) TotalProduced(machineID int) (int, error) {
	m, ok := f.byID[machineID]
	if !ok {
		return 0, fmt.Errorf("machine %d: %w", machineID, ErrUnknownMachine)
	}
	return m.TotalProduced(), nil
}

func (f *Factory) DefectCount(partID int) (int, error) {
	c, ok := f.defects.Count(partID)
	if !ok {
		return 0, fmt.Errorf("part %d: %w", partID, ErrUnknownPart)
	}
	return c, nil
}

func (f *Factory) InventoryLevel(partID int) (int, error) {
	level, ok := f.inventory.Level(partID)
	if !ok {
		return 0, fmt.Errorf("part %d: %w", partID, ErrUnknownPart)
	}
	return level, nil
}

// InventoryParts 返回某零件当前库存的副本，最早入库的在前
func (f *Factory) InventoryParts(partID int) ([]types.CarPart, error) {
	parts, ok := f.inventory.Parts(partID)
	if !ok {
		return nil, fmt.Errorf("part %d: %w", partID, ErrUnknownPart)
	}
	return parts, nil
}

func (f *Factory) OrderStatus(orderID int) (fsm.State, error) {
	o, ok := f.orders.Get(orderID)
	if !ok {
		return "", fmt.Errorf("order %d: %w", orderID, ErrUnknownOrder)
	}
	return o.Status(), nil
}

// Summary 汇总当前状态，机器和订单保持原有顺序
func (f *Factory) Summary() types.RunSummary {
	s := types.RunSummary{RunID: f.runID, Days: f.days, MinutesPerDay: f.minutesPerDay}
	for _, m := range f.machines {
		defects, _ := f.defects.Count(m.PartID())
		level, _ := f.inventory.Level(m.PartID())
		s.Machines = append(s.Machines, types.MachineResult{
			MachineID:     m.ID(),
			PartName:      m.Spec().PartName,
			TotalProduced: m.TotalProduced(),
			Defective:     defects,
			Inventory:     level,
		})
	}
	for _, o := range f.orders.Orders() {
		s.Orders = append(s.Orders, o.result())
	}
	return s
}
