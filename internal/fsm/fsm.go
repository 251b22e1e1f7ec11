package fsm

import (
	"fmt"
	"sync"
)

// State 定义订单状态
type State string

// Event 定义触发状态变更的事件
type Event string

const (
	StatePending     State = "PENDING"     // 尚未评估
	StateFulfilled   State = "FULFILLED"   // 已履约，库存已扣减
	StateUnfulfilled State = "UNFULFILLED" // 库存不足，未履约
)

const (
	EventFulfill Event = "FULFILL"
	EventReject  Event = "REJECT"
)

// FSM 订单状态机
// 订单只评估一次，所以两个终态都没有出边
type FSM struct {
	mu      sync.Mutex
	current State
	// transitions 定义状态转移表: CurrentState -> Event -> NextState
	transitions map[State]map[Event]State
	// callbacks 定义进入某状态后的回调
	callbacks map[State]func(targetID int)
	TargetID  int // 关联的订单 ID
}

func NewFSM(targetID int) *FSM {
	f := &FSM{
		current:     StatePending,
		TargetID:    targetID,
		transitions: make(map[State]map[Event]State),
		callbacks:   make(map[State]func(int)),
	}
	f.initTransitions()
	return f
}

func (f *FSM) initTransitions() {
	f.addTransition(StatePending, EventFulfill, StateFulfilled)
	f.addTransition(StatePending, EventReject, StateUnfulfilled)
}

func (f *FSM) addTransition(from State, event Event, to State) {
	if _, ok := f.transitions[from]; !ok {
		f.transitions[from] = make(map[Event]State)
	}
	f.transitions[from][event] = to
}

// Current 返回当前状态
func (f *FSM) Current() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current
}

// RegisterCallback 注册进入状态时的回调
func (f *FSM) RegisterCallback(state State, callback func(targetID int)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.callbacks[state] = callback
}

// Fire 触发事件
func (f *FSM) Fire(event Event) error {
	f.mu.Lock()
	nextState, ok := f.transitions[f.current][event]
	if !ok {
		current := f.current
		f.mu.Unlock()
		return fmt.Errorf("invalid transition: cannot fire event %s from state %s", event, current)
	}
	f.current = nextState
	cb := f.callbacks[nextState]
	f.mu.Unlock()

	// 回调在锁外执行，回调中可以再读取状态
	if cb != nil {
		cb(f.TargetID)
	}
	return nil
}
