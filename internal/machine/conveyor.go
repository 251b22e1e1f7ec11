package machine

import (
	"strings"

	"car-part-factory/internal/types"
)

// ConveyorSlots 是传送带的固定槽位数，零件从放入到离开恰好需要这么多个 tick
const ConveyorSlots = 10

// Slot 是传送带上的一个槽位，可能为空
type Slot struct {
	part     types.CarPart
	occupied bool
}

// Empty 返回一个空槽位
func Empty() Slot {
	return Slot{}
}

// Occupied 返回一个放有零件的槽位
func Occupied(p types.CarPart) Slot {
	return Slot{part: p, occupied: true}
}

// Part 返回槽位中的零件，空槽位返回 false
func (s Slot) Part() (types.CarPart, bool) {
	return s.part, s.occupied
}

// Conveyor 是先进先出的传送带 (延时线)
type Conveyor struct {
	slots []Slot
}

// NewConveyor 创建一条装满空槽位的传送带
func NewConveyor() *Conveyor {
	c := &Conveyor{}
	c.Reset()
	return c
}

// Push 在队尾放入一个槽位
func (c *Conveyor) Push(s Slot) {
	c.slots = append(c.slots, s)
}

// PopFront 取出队首槽位；传送带为空时返回 false
func (c *Conveyor) PopFront() (Slot, bool) {
	if len(c.slots) == 0 {
		return Slot{}, false
	}
	front := c.slots[0]
	c.slots[0] = Slot{}
	c.slots = c.slots[1:]
	return front, true
}

// Len 返回当前槽位数 (包括空槽位)
func (c *Conveyor) Len() int {
	return len(c.slots)
}

// Reset 清空传送带并重新填满空槽位
func (c *Conveyor) Reset() {
	c.slots = make([]Slot, 0, ConveyorSlots+1)
	for i := 0; i < ConveyorSlots; i++ {
		c.slots = append(c.slots, Empty())
	}
}

// Render 返回传送带的占用图，零件为 |P|，空位为 _
// 队首 (即将离开的槽位) 画在最右边
func (c *Conveyor) Render() string {
	var b strings.Builder
	for i := len(c.slots) - 1; i >= 0; i-- {
		if c.slots[i].occupied {
			b.WriteString("|P|")
		} else {
			b.WriteString("_")
		}
	}
	return b.String()
}
