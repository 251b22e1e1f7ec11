package engine

import (
	"log/slog"
	"sync"

	"car-part-factory/internal/machine"
	"car-part-factory/internal/types"
)

// machineDay 是一台机器一天的产出
type machineDay struct {
	parts    []types.CarPart // 按离开传送带的顺序
	conveyor string          // 日终清空前的传送带占用图
}

// Scheduler 负责每天驱动所有机器
// 单台机器内的 tick 严格串行；maxWorkers > 1 时不同机器可以并发运行
type Scheduler struct {
	maxWorkers int
	logger     *slog.Logger
}

// NewScheduler 创建一个新的 Scheduler 实例
func NewScheduler(maxWorkers int, logger *slog.Logger) *Scheduler {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	return &Scheduler{
		maxWorkers: maxWorkers,
		logger:     logger.With("component", "scheduler"),
	}
}

// RunDay 让每台机器运行 minutes 分钟并清空传送带
// 返回值与 machines 顺序一一对应，与是否并发无关
func (s *Scheduler) RunDay(machines []*machine.PartMachine, minutes int) []machineDay {
	results := make([]machineDay, len(machines))
	if s.maxWorkers == 1 || len(machines) <= 1 {
		for i, m := range machines {
			results[i] = s.runMachineDay(m, minutes)
		}
		return results
	}

	// 获取 worker 凭证（控制并发数）
	workerPool := make(chan struct{}, s.maxWorkers)
	var wg sync.WaitGroup
	for i, m := range machines {
		workerPool <- struct{}{}
		wg.Add(1)
		go func(index int, pm *machine.PartMachine) {
			defer wg.Done()
			results[index] = s.runMachineDay(pm, minutes)
			<-workerPool // 释放 worker 凭证
		}(i, m)
	}
	// 所有机器完成并清空传送带之后才能入库
	wg.Wait()
	return results
}

func (s *Scheduler) runMachineDay(m *machine.PartMachine, minutes int) machineDay {
	var day machineDay
	for minute := 0; minute < minutes; minute++ {
		if p, ok := m.Tick(); ok {
			day.parts = append(day.parts, p)
		}
	}

	// 日终：把传送带上剩余的在途零件全部取出，然后再重置
	conveyor := m.Conveyor()
	day.conveyor = conveyor.Render()
	for conveyor.Len() > 0 {
		slot, _ := conveyor.PopFront()
		if p, ok := slot.Part(); ok {
			day.parts = append(day.parts, p)
		}
	}
	m.ResetConveyor()

	s.logger.Debug("机器完成当日生产", "machine_id", m.ID(), "parts", len(day.parts), "total_produced", m.TotalProduced())
	return day
}
