package web

import (
	"sync"

	"car-part-factory/internal/types"
)

// FactoryState 代表整个工厂车间的实时状态快照
type FactoryState struct {
	RunID    string               `json:"run_id"`
	Day      int                  `json:"day"`
	Finished bool                 `json:"finished"`
	Machines []types.MachineState `json:"machines"`
	Parts    []types.PartState    `json:"parts"`
	Orders   []types.OrderResult  `json:"orders"`
}

// StateTracker 负责追踪工厂的最新状态，并通知前端更新
type StateTracker struct {
	mu    sync.RWMutex
	state FactoryState
	hub   *Hub
}

// NewStateTracker 创建一个新的 StateTracker 实例，hub 可以为 nil
func NewStateTracker(hub *Hub) *StateTracker {
	return &StateTracker{hub: hub}
}

// StartRun 重置状态，开始追踪新的一次模拟
func (st *StateTracker) StartRun(runID string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.state = FactoryState{RunID: runID}
	st.broadcast()
}

// UpdateDay 用一天结束时的快照更新状态，并向所有客户端广播
func (st *StateTracker) UpdateDay(s types.DaySnapshot) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.state.Day = s.Day
	st.state.Machines = append([]types.MachineState(nil), s.Machines...)
	st.state.Parts = append([]types.PartState(nil), s.Parts...)
	st.broadcast()
}

// AddOrder 记录一个订单的评估结果
func (st *StateTracker) AddOrder(r types.OrderResult) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.state.Orders = append(st.state.Orders, r)
	st.broadcast()
}

// Finish 标记模拟结束，库存使用订单扣减之后的数值
func (st *StateTracker) Finish(summary types.RunSummary) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.state.Finished = true
	parts := make([]types.PartState, 0, len(summary.Machines))
	for _, m := range summary.Machines {
		parts = append(parts, types.PartState{PartID: m.MachineID, Inventory: m.Inventory, Defective: m.Defective})
	}
	st.state.Parts = parts
	st.broadcast()
}

// broadcast 调用方必须持有锁
func (st *StateTracker) broadcast() {
	if st.hub != nil {
		st.hub.BroadcastState(st.copyLocked())
	}
}

// GetStateSnapshot 返回当前状态的一个深拷贝副本
// 用于新客户端连接时获取一次全量数据
func (st *StateTracker) GetStateSnapshot() FactoryState {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.copyLocked()
}

func (st *StateTracker) copyLocked() FactoryState {
	s := st.state
	s.Machines = append([]types.MachineState(nil), st.state.Machines...)
	s.Parts = append([]types.PartState(nil), st.state.Parts...)
	s.Orders = append([]types.OrderResult(nil), st.state.Orders...)
	return s
}
