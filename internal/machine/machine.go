package machine

import (
	"errors"
	"fmt"
	"math/rand"

	"car-part-factory/internal/types"
)

// ErrInvalidMachine 表示机器配置不合法 (周期或次品模数小于 1)
var ErrInvalidMachine = errors.New("invalid machine configuration")

// Timer 是固定长度的循环倒计时
// 读数依次为 period-1, period-2, ..., 0, period-1, ...
type Timer struct {
	period int
	next   int
}

// NewTimer 创建一个周期为 period 的计时器
func NewTimer(period int) *Timer {
	return &Timer{period: period, next: period - 1}
}

// Tick 返回本次读数并推进计时器
func (t *Timer) Tick() int {
	reading := t.next
	t.next = (t.next - 1 + t.period) % t.period
	return reading
}

// PartMachine 是一条生产单一零件的生产线
// 每分钟调用一次 Tick，计时器归零时产出一个零件，零件经过传送带后输出
type PartMachine struct {
	spec     types.MachineSpec
	timer    *Timer
	conveyor *Conveyor
	rng      *rand.Rand
	produced int // 累计产出数量，只增不减
}

// New 根据配置创建一台机器，配置不合法时立即失败
// rng 由调用方提供，用于重量抖动；同一种子得到同样的结果
func New(spec types.MachineSpec, rng *rand.Rand) (*PartMachine, error) {
	if spec.Period < 1 {
		return nil, fmt.Errorf("machine %d: period %d: %w", spec.ID, spec.Period, ErrInvalidMachine)
	}
	if spec.DefectModulus < 1 {
		return nil, fmt.Errorf("machine %d: defect modulus %d: %w", spec.ID, spec.DefectModulus, ErrInvalidMachine)
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(int64(spec.ID)))
	}
	return &PartMachine{
		spec:     spec,
		timer:    NewTimer(spec.Period),
		conveyor: NewConveyor(),
		rng:      rng,
	}, nil
}

func (m *PartMachine) ID() int {
	return m.spec.ID
}

// PartID 返回该机器生产的零件 ID
func (m *PartMachine) PartID() int {
	return m.spec.ID
}

func (m *PartMachine) Spec() types.MachineSpec {
	return m.spec
}

// TotalProduced 返回机器累计产出数量 (包括次品，也包括仍在传送带上的零件)
func (m *PartMachine) TotalProduced() int {
	return m.produced
}

// Conveyor 返回机器的传送带，供编排器在日终清空
func (m *PartMachine) Conveyor() *Conveyor {
	return m.conveyor
}

// ResetConveyor 清空并重置传送带
// 只能在编排器取走所有在途零件之后调用
func (m *PartMachine) ResetConveyor() {
	m.conveyor.Reset()
}

// Tick 模拟一分钟
// 返回本分钟从传送带末端离开的零件，空槽位时返回 false
func (m *PartMachine) Tick() (types.CarPart, bool) {
	countdown := m.timer.Tick()

	// 次品判定使用自增之前的计数，所以每台机器的第一个零件总是次品
	defective := m.produced%m.spec.DefectModulus == 0

	if countdown == 0 {
		m.conveyor.Push(Occupied(types.CarPart{
			ID:        m.spec.ID,
			Name:      m.spec.PartName,
			Weight:    m.drawWeight(),
			Defective: defective,
			Serial:    m.produced,
		}))
		m.produced++
	} else {
		m.conveyor.Push(Empty())
	}

	slot, _ := m.conveyor.PopFront()
	return slot.Part()
}

// drawWeight 在 [标称重量-公差, 标称重量+公差] 内均匀取值
func (m *PartMachine) drawWeight() float64 {
	lo := m.spec.Weight - m.spec.Tolerance
	hi := m.spec.Weight + m.spec.Tolerance
	return lo + (hi-lo)*m.rng.Float64()
}

// String 返回 "Machine {id} Produced: {零件名} {累计产出}"
func (m *PartMachine) String() string {
	return fmt.Sprintf("Machine %d Produced: %s %d", m.spec.ID, m.spec.PartName, m.produced)
}
