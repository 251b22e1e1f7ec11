package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"car-part-factory/internal/event"
	"car-part-factory/internal/fsm"
	"car-part-factory/internal/machine"
	"car-part-factory/internal/types"
)

func bolt() types.MachineSpec {
	return types.MachineSpec{ID: 1, PartName: "bolt", Weight: 10.0, Tolerance: 0.5, Period: 2, DefectModulus: 3}
}

// fastMachine 每分钟产出一个零件，只有第 0 个是次品
func fastMachine(id int, name string) types.MachineSpec {
	return types.MachineSpec{ID: id, PartName: name, Weight: 1.0, Tolerance: 0.1, Period: 1, DefectModulus: 1000}
}

func order(id int, name string, parts ...types.PartQuantity) types.OrderSpec {
	return types.OrderSpec{ID: id, Name: name, Parts: parts}
}

func want(partID, qty int) types.PartQuantity {
	return types.PartQuantity{PartID: partID, Quantity: qty}
}

func serials(parts []types.CarPart) []int {
	out := make([]int, len(parts))
	for i, p := range parts {
		out[i] = p.Serial
	}
	return out
}

func TestRun_SingleBoltMachine(t *testing.T) {
	f, err := New([]types.MachineSpec{bolt()}, nil, Options{Seed: 1})
	require.NoError(t, err)
	require.NoError(t, f.Run(1, 20))

	// 周期 2：第 2、4、...、20 分钟产出，共 10 个 (k=0..9)
	// 次品为 k%3==0：k=0,3,6,9
	total, err := f.TotalProduced(1)
	require.NoError(t, err)
	assert.Equal(t, 10, total)

	defects, err := f.DefectCount(1)
	require.NoError(t, err)
	assert.Equal(t, 4, defects)

	level, err := f.InventoryLevel(1)
	require.NoError(t, err)
	assert.Equal(t, 6, level)

	parts, err := f.InventoryParts(1)
	require.NoError(t, err)
	// 入库顺序与完成顺序相反
	assert.Equal(t, []int{8, 7, 5, 4, 2, 1}, serials(parts))
	for _, p := range parts {
		assert.False(t, p.Defective)
		assert.InDelta(t, 10.0, p.Weight, 0.5)
	}
}

func TestRun_BinReversesEachDay(t *testing.T) {
	f, err := New([]types.MachineSpec{fastMachine(5, "nut")}, nil, Options{})
	require.NoError(t, err)
	require.NoError(t, f.Run(2, 5))

	parts, err := f.InventoryParts(5)
	require.NoError(t, err)
	// 第一天 k=0..4 (k=0 是次品)，第二天 k=5..9；每天内部倒序
	assert.Equal(t, []int{4, 3, 2, 1, 9, 8, 7, 6, 5}, serials(parts))

	defects, _ := f.DefectCount(5)
	assert.Equal(t, 1, defects)
}

func TestRun_TimerKeepsPhaseAcrossDays(t *testing.T) {
	spec := fastMachine(3, "washer")
	spec.Period = 3
	f, err := New([]types.MachineSpec{spec}, nil, Options{})
	require.NoError(t, err)
	require.NoError(t, f.Run(2, 5))

	// 第一天读数 2,1,0,2,1 -> 1 个；第二天 0,2,1,0,2 -> 2 个
	total, _ := f.TotalProduced(3)
	assert.Equal(t, 3, total)
}

func TestRun_ModulusOneMakesEverythingDefective(t *testing.T) {
	spec := fastMachine(2, "gear")
	spec.DefectModulus = 1
	f, err := New([]types.MachineSpec{spec}, nil, Options{})
	require.NoError(t, err)
	require.NoError(t, f.Run(1, 30))

	defects, _ := f.DefectCount(2)
	level, _ := f.InventoryLevel(2)
	assert.Equal(t, 30, defects)
	assert.Equal(t, 0, level)
}

func TestRun_InventoryPlusDefectsMatchesProducedEachDay(t *testing.T) {
	specs := []types.MachineSpec{
		bolt(),
		{ID: 2, PartName: "gear", Weight: 3, Tolerance: 0.2, Period: 7, DefectModulus: 2},
		{ID: 3, PartName: "axle", Weight: 20, Tolerance: 1, Period: 13, DefectModulus: 5},
	}
	bus := event.NewBus()
	days := 0
	bus.Subscribe(event.DayCompleted, func(e event.Event) {
		days++
		require.NotNil(t, e.Day)
		produced := map[int]int{}
		for _, m := range e.Day.Machines {
			produced[m.MachineID] = m.TotalProduced
		}
		for _, p := range e.Day.Parts {
			assert.Equal(t, produced[p.PartID], p.Inventory+p.Defective, "day %d part %d", e.Day.Day, p.PartID)
		}
	})

	f, err := New(specs, nil, Options{Seed: 3, Bus: bus})
	require.NoError(t, err)
	require.NoError(t, f.Run(4, 37))
	assert.Equal(t, 4, days)
}

func TestRun_ParallelMatchesSerial(t *testing.T) {
	specs := []types.MachineSpec{
		bolt(),
		{ID: 2, PartName: "gear", Weight: 3, Tolerance: 0.2, Period: 4, DefectModulus: 2},
		{ID: 3, PartName: "axle", Weight: 20, Tolerance: 1, Period: 6, DefectModulus: 5},
		{ID: 4, PartName: "spring", Weight: 0.4, Tolerance: 0.05, Period: 1, DefectModulus: 9},
	}
	orders := []types.OrderSpec{
		order(1, "first", want(1, 10), want(2, 3)),
		order(2, "second", want(4, 50)),
		order(3, "third", want(3, 1000)),
	}

	serial, err := New(specs, orders, Options{Seed: 11, MaxWorkers: 1})
	require.NoError(t, err)
	parallel, err := New(specs, orders, Options{Seed: 11, MaxWorkers: 4})
	require.NoError(t, err)

	require.NoError(t, serial.Run(3, 50))
	require.NoError(t, parallel.Run(3, 50))

	assert.Equal(t, serial.Summary(), parallel.Summary())
	for _, spec := range specs {
		a, _ := serial.InventoryParts(spec.ID)
		b, _ := parallel.InventoryParts(spec.ID)
		assert.Equal(t, a, b, "part %d", spec.ID)
	}
}

func TestRun_EarlierOrdersHaveFirstClaim(t *testing.T) {
	// 6 分钟产出 k=0..5，k=0 是次品，库存 5 个
	specs := []types.MachineSpec{fastMachine(1, "bolt")}
	orders := []types.OrderSpec{
		order(10, "A", want(1, 5)),
		order(20, "B", want(1, 5)),
	}
	f, err := New(specs, orders, Options{})
	require.NoError(t, err)
	require.NoError(t, f.Run(1, 6))

	a, err := f.OrderStatus(10)
	require.NoError(t, err)
	b, err := f.OrderStatus(20)
	require.NoError(t, err)
	assert.Equal(t, fsm.StateFulfilled, a)
	assert.Equal(t, fsm.StateUnfulfilled, b)

	level, _ := f.InventoryLevel(1)
	assert.Equal(t, 0, level)

	// B 单独存在时可以满足
	alone, err := New(specs, orders[1:], Options{})
	require.NoError(t, err)
	require.NoError(t, alone.Run(1, 6))
	status, _ := alone.OrderStatus(20)
	assert.Equal(t, fsm.StateFulfilled, status)
}

func TestRun_ConsumesOldestFirst(t *testing.T) {
	specs := []types.MachineSpec{fastMachine(5, "nut")}
	f, err := New(specs, []types.OrderSpec{order(1, "two nuts", want(5, 2))}, Options{})
	require.NoError(t, err)
	require.NoError(t, f.Run(1, 5))

	parts, _ := f.InventoryParts(5)
	assert.Equal(t, []int{2, 1}, serials(parts))
}

func TestRun_UnmetOrderLeavesInventoryUntouched(t *testing.T) {
	specs := []types.MachineSpec{fastMachine(1, "bolt"), fastMachine(2, "nut")}
	orders := []types.OrderSpec{
		order(1, "too many nuts", want(1, 2), want(2, 100)),
		order(2, "unknown part", want(99, 1)),
		order(3, "bolts", want(1, 3)),
	}
	f, err := New(specs, orders, Options{})
	require.NoError(t, err)
	require.NoError(t, f.Run(1, 6))

	s1, _ := f.OrderStatus(1)
	s2, _ := f.OrderStatus(2)
	s3, _ := f.OrderStatus(3)
	assert.Equal(t, fsm.StateUnfulfilled, s1)
	assert.Equal(t, fsm.StateUnfulfilled, s2)
	assert.Equal(t, fsm.StateFulfilled, s3)

	bolts, _ := f.InventoryLevel(1)
	nuts, _ := f.InventoryLevel(2)
	assert.Equal(t, 2, bolts)
	assert.Equal(t, 5, nuts)
}

func TestRun_PublishesOrderAndRunEvents(t *testing.T) {
	bus := event.NewBus()
	var seen []event.EventType
	var results []types.OrderResult
	var summary *types.RunSummary
	for _, et := range []event.EventType{event.RunStarted, event.DayCompleted, event.OrderEvaluated, event.RunCompleted} {
		bus.Subscribe(et, func(e event.Event) {
			seen = append(seen, e.Type)
			assert.Equal(t, "run-1", e.RunID)
			if e.Order != nil {
				results = append(results, *e.Order)
			}
			if e.Summary != nil {
				summary = e.Summary
			}
		})
	}

	f, err := New([]types.MachineSpec{bolt()}, []types.OrderSpec{order(1, "x", want(1, 1))}, Options{RunID: "run-1", Bus: bus})
	require.NoError(t, err)
	require.NoError(t, f.Run(2, 20))

	assert.Equal(t, []event.EventType{
		event.RunStarted, event.DayCompleted, event.DayCompleted, event.OrderEvaluated, event.RunCompleted,
	}, seen)
	require.Len(t, results, 1)
	assert.Equal(t, "FULFILLED", results[0].Status)
	require.NotNil(t, summary)
	assert.Equal(t, 2, summary.Days)
	assert.Equal(t, 20, summary.MinutesPerDay)
	assert.Equal(t, 20, summary.Machines[0].TotalProduced)
}

func TestRun_OnlyOnce(t *testing.T) {
	f, err := New([]types.MachineSpec{bolt()}, nil, Options{})
	require.NoError(t, err)
	require.NoError(t, f.Run(1, 10))
	assert.ErrorIs(t, f.Run(1, 10), ErrAlreadyRun)
}

func TestRun_RejectsNegativeLength(t *testing.T) {
	f, err := New([]types.MachineSpec{bolt()}, nil, Options{})
	require.NoError(t, err)
	assert.Error(t, f.Run(-1, 10))
}

func TestNew_Validation(t *testing.T) {
	_, err := New([]types.MachineSpec{bolt(), bolt()}, nil, Options{})
	assert.ErrorIs(t, err, machine.ErrInvalidMachine)

	bad := bolt()
	bad.Period = 0
	_, err = New([]types.MachineSpec{bad}, nil, Options{})
	assert.ErrorIs(t, err, machine.ErrInvalidMachine)

	_, err = New([]types.MachineSpec{bolt()}, []types.OrderSpec{order(1, "a", want(1, 1)), order(1, "b", want(1, 1))}, Options{})
	assert.Error(t, err)
}

func TestQueries_UnknownIDs(t *testing.T) {
	f, err := New([]types.MachineSpec{bolt()}, []types.OrderSpec{order(1, "x", want(1, 1))}, Options{})
	require.NoError(t, err)

	status, err := f.OrderStatus(1)
	require.NoError(t, err)
	assert.Equal(t, fsm.StatePending, status)

	_, err = f.TotalProduced(2)
	assert.ErrorIs(t, err, ErrUnknownMachine)
	_, err = f.DefectCount(2)
	assert.ErrorIs(t, err, ErrUnknownPart)
	_, err = f.InventoryLevel(2)
	assert.ErrorIs(t, err, ErrUnknownPart)
	_, err = f.InventoryParts(2)
	assert.ErrorIs(t, err, ErrUnknownPart)
	_, err = f.OrderStatus(2)
	assert.ErrorIs(t, err, ErrUnknownOrder)
}

func TestDayZeroRunStillEvaluatesOrders(t *testing.T) {
	f, err := New([]types.MachineSpec{bolt()}, []types.OrderSpec{order(1, "x", want(1, 1))}, Options{})
	require.NoError(t, err)
	require.NoError(t, f.Run(0, 20))

	status, _ := f.OrderStatus(1)
	assert.Equal(t, fsm.StateUnfulfilled, status)
}
