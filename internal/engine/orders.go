package engine

import (
	"fmt"

	"car-part-factory/internal/fsm"
	"car-part-factory/internal/types"
)

// Order 是订单簿中的一个订单
// 需求按输入记录的顺序保存，同一零件出现多次时保留第一次的位置、最后一次的数量
type Order struct {
	ID    int
	Name  string
	Parts []types.PartQuantity
	fsm   *fsm.FSM
}

func newOrder(spec types.OrderSpec) *Order {
	o := &Order{ID: spec.ID, Name: spec.Name, fsm: fsm.NewFSM(spec.ID)}
	index := make(map[int]int, len(spec.Parts))
	for _, pq := range spec.Parts {
		if i, ok := index[pq.PartID]; ok {
			o.Parts[i].Quantity = pq.Quantity
			continue
		}
		index[pq.PartID] = len(o.Parts)
		o.Parts = append(o.Parts, pq)
	}
	return o
}

// Status 返回订单状态，评估前为 PENDING
func (o *Order) Status() fsm.State {
	return o.fsm.Current()
}

func (o *Order) result() types.OrderResult {
	return types.OrderResult{
		OrderID: o.ID,
		Name:    o.Name,
		Status:  string(o.Status()),
		Parts:   append([]types.PartQuantity(nil), o.Parts...),
	}
}

// OrderBook 是按积压顺序排列的订单列表
type OrderBook struct {
	orders []*Order
	byID   map[int]*Order
}

// NewOrderBook 按给定顺序建立订单簿，订单 ID 必须唯一
func NewOrderBook(specs []types.OrderSpec) (*OrderBook, error) {
	b := &OrderBook{byID: make(map[int]*Order, len(specs))}
	for _, spec := range specs {
		if _, dup := b.byID[spec.ID]; dup {
			return nil, fmt.Errorf("order %d: duplicate order id", spec.ID)
		}
		o := newOrder(spec)
		b.orders = append(b.orders, o)
		b.byID[o.ID] = o
	}
	return b, nil
}

func (b *OrderBook) Orders() []*Order {
	return b.orders
}

func (b *OrderBook) Get(id int) (*Order, bool) {
	o, ok := b.byID[id]
	return o, ok
}

// IsFulfillable 检查库存能否满足订单的全部需求
// 按需求顺序检查，遇到第一个不满足的就返回 false；未知零件 ID 视为不满足
func IsFulfillable(o *Order, inv *Inventory) bool {
	for _, pq := range o.Parts {
		level, ok := inv.Level(pq.PartID)
		if !ok || level < pq.Quantity {
			return false
		}
	}
	return true
}

// Fulfill 按积压顺序逐个评估订单
// 能满足的订单从库存头部扣减，排在前面的订单优先占用库存
func (b *OrderBook) Fulfill(inv *Inventory) ([]types.OrderResult, error) {
	results := make([]types.OrderResult, 0, len(b.orders))
	for _, o := range b.orders {
		if IsFulfillable(o, inv) {
			for _, pq := range o.Parts {
				inv.TakeFront(pq.PartID, pq.Quantity)
			}
			if err := o.fsm.Fire(fsm.EventFulfill); err != nil {
				return results, fmt.Errorf("order %d: %w", o.ID, err)
			}
		} else if err := o.fsm.Fire(fsm.EventReject); err != nil {
			return results, fmt.Errorf("order %d: %w", o.ID, err)
		}
		results = append(results, o.result())
	}
	return results, nil
}
