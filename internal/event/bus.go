package event

import (
	"sync"

	"car-part-factory/internal/types"
)

// EventType 定义事件的类型
type EventType string

// 定义所有业务事件类型
const (
	RunStarted     EventType = "RunStarted"     // 模拟开始
	DayCompleted   EventType = "DayCompleted"   // 一天的生产和入库完成
	OrderEvaluated EventType = "OrderEvaluated" // 一个订单评估完成
	RunCompleted   EventType = "RunCompleted"   // 整个模拟结束
)

// Event 结构体定义了事件的数据负载
// 负载都是值拷贝，处理器不能借此修改工厂状态
type Event struct {
	Type     EventType
	RunID    string
	Day      *types.DaySnapshot // 仅 DayCompleted
	Order    *types.OrderResult // 仅 OrderEvaluated
	Summary  *types.RunSummary  // 仅 RunCompleted
	Days     int                // 仅 RunStarted
	Machines int                // 仅 RunStarted
}

// Handler 是事件处理函数的签名
type Handler func(e Event)

// Bus 是一个简单的内存事件总线
type Bus struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler // 存储事件类型到多个处理函数的映射
}

// NewBus 创建一个新的事件总线实例
func NewBus() *Bus {
	return &Bus{
		handlers: make(map[EventType][]Handler),
	}
}

// Subscribe 订阅一个特定类型的事件
func (b *Bus) Subscribe(eventType EventType, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[eventType] = append(b.handlers[eventType], handler)
}

// Publish 发布一个事件
// 处理器按订阅顺序同步执行，模拟是确定性的，事件顺序也必须确定
func (b *Bus) Publish(e Event) {
	if b == nil {
		return
	}
	b.mu.RLock()
	handlers := append([]Handler(nil), b.handlers[e.Type]...)
	b.mu.RUnlock()

	for _, handler := range handlers {
		handler(e)
	}
}
