package engine

import (
	"fmt"
	"sort"

	"car-part-factory/internal/types"
)

// Bin 是当天所有机器共用的收集箱 (后进先出)
type Bin struct {
	parts []types.CarPart
}

func (b *Bin) Push(p types.CarPart) {
	b.parts = append(b.parts, p)
}

// Pop 取出最后放入的零件；空箱返回 false
func (b *Bin) Pop() (types.CarPart, bool) {
	n := len(b.parts)
	if n == 0 {
		return types.CarPart{}, false
	}
	top := b.parts[n-1]
	b.parts = b.parts[:n-1]
	return top, true
}

func (b *Bin) Len() int {
	return len(b.parts)
}

// Inventory 按零件 ID 保存合格零件，每个列表最早入库的在前
type Inventory struct {
	stock map[int][]types.CarPart
}

func NewInventory() *Inventory {
	return &Inventory{stock: make(map[int][]types.CarPart)}
}

// Register 为零件 ID 登记一个空列表，重复登记不会清空已有库存
func (inv *Inventory) Register(partID int) {
	if _, ok := inv.stock[partID]; !ok {
		inv.stock[partID] = nil
	}
}

// Append 把合格零件放到对应列表末尾
// 零件 ID 未登记说明工厂初始化有缺陷，直接 panic
func (inv *Inventory) Append(p types.CarPart) {
	list, ok := inv.stock[p.ID]
	if !ok {
		panic(fmt.Sprintf("inventory: part %d was never registered", p.ID))
	}
	inv.stock[p.ID] = append(list, p)
}

// Level 返回库存数量；零件 ID 未登记时返回 false
func (inv *Inventory) Level(partID int) (int, bool) {
	list, ok := inv.stock[partID]
	return len(list), ok
}

// TakeFront 从列表头部 (最早入库) 取走 n 个零件
func (inv *Inventory) TakeFront(partID, n int) []types.CarPart {
	list, ok := inv.stock[partID]
	if !ok {
		panic(fmt.Sprintf("inventory: part %d was never registered", partID))
	}
	if n > len(list) {
		panic(fmt.Sprintf("inventory: part %d has %d in stock, %d requested", partID, len(list), n))
	}
	taken := append([]types.CarPart(nil), list[:n]...)
	inv.stock[partID] = append([]types.CarPart(nil), list[n:]...)
	return taken
}

// Parts 返回库存列表的副本
func (inv *Inventory) Parts(partID int) ([]types.CarPart, bool) {
	list, ok := inv.stock[partID]
	if !ok {
		return nil, false
	}
	return append([]types.CarPart(nil), list...), true
}

// PartIDs 返回已登记的零件 ID (升序)
func (inv *Inventory) PartIDs() []int {
	ids := make([]int, 0, len(inv.stock))
	for id := range inv.stock {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// DefectLedger 按零件 ID 累计次品数，只增不减
type DefectLedger struct {
	counts map[int]int
}

func NewDefectLedger() *DefectLedger {
	return &DefectLedger{counts: make(map[int]int)}
}

func (d *DefectLedger) Register(partID int) {
	if _, ok := d.counts[partID]; !ok {
		d.counts[partID] = 0
	}
}

func (d *DefectLedger) Inc(partID int) {
	if _, ok := d.counts[partID]; !ok {
		panic(fmt.Sprintf("defect ledger: part %d was never registered", partID))
	}
	d.counts[partID]++
}

func (d *DefectLedger) Count(partID int) (int, bool) {
	c, ok := d.counts[partID]
	return c, ok
}
