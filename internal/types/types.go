package types

// CarPart 表示一个从机器上产出的零件快照
// 产出后不再修改
type CarPart struct {
	ID        int     `json:"id"`        // 零件 ID，与生产它的机器 ID 相同
	Name      string  `json:"name"`      // 零件名称
	Weight    float64 `json:"weight"`    // 实际重量，在 [标称重量-公差, 标称重量+公差] 内
	Defective bool    `json:"defective"` // 是否为次品
	Serial    int     `json:"serial"`    // 该机器的第几个产出 (从 0 开始)
}

// MachineSpec 描述一条生产线的配置 (已由外部解析和校验)
type MachineSpec struct {
	ID            int     `mapstructure:"id" json:"id" yaml:"id" validate:"min=0"`
	PartName      string  `mapstructure:"part_name" json:"part_name" yaml:"part_name" validate:"required"`
	Weight        float64 `mapstructure:"weight" json:"weight" yaml:"weight"`
	Tolerance     float64 `mapstructure:"tolerance" json:"tolerance" yaml:"tolerance" validate:"min=0"`
	Period        int     `mapstructure:"period" json:"period" yaml:"period" validate:"min=1"`
	DefectModulus int     `mapstructure:"defect_modulus" json:"defect_modulus" yaml:"defect_modulus" validate:"min=1"`
}

// PartQuantity 是订单中对某个零件的需求
type PartQuantity struct {
	PartID   int `mapstructure:"part_id" json:"part_id" yaml:"part_id"`
	Quantity int `mapstructure:"quantity" json:"quantity" yaml:"quantity" validate:"min=1"`
}

// OrderSpec 描述一个订单，Parts 保持输入记录中的顺序
type OrderSpec struct {
	ID    int            `mapstructure:"id" json:"id" yaml:"id"`
	Name  string         `mapstructure:"name" json:"name" yaml:"name" validate:"required"`
	Parts []PartQuantity `mapstructure:"parts" json:"parts" yaml:"parts" validate:"required,min=1,dive"`
}

// MachineState 是某台机器在一天结束时的视图
type MachineState struct {
	MachineID     int    `json:"machine_id" yaml:"machine_id"`
	PartName      string `json:"part_name" yaml:"part_name"`
	TotalProduced int    `json:"total_produced" yaml:"total_produced"`
	Conveyor      string `json:"conveyor,omitempty" yaml:"conveyor,omitempty"` // 清空前的传送带占用情况
}

// PartState 是某个零件 ID 的库存和次品计数
type PartState struct {
	PartID    int `json:"part_id" yaml:"part_id"`
	Inventory int `json:"inventory" yaml:"inventory"`
	Defective int `json:"defective" yaml:"defective"`
}

// DaySnapshot 记录某个模拟日结束 (入库之后) 时的工厂状态
type DaySnapshot struct {
	Day      int            `json:"day" yaml:"day"`
	Machines []MachineState `json:"machines" yaml:"machines"`
	Parts    []PartState    `json:"parts" yaml:"parts"`
}

// OrderResult 是一个订单的评估结果
type OrderResult struct {
	OrderID int            `json:"order_id" yaml:"order_id"`
	Name    string         `json:"name" yaml:"name"`
	Status  string         `json:"status" yaml:"status"`
	Parts   []PartQuantity `json:"parts" yaml:"parts"`
}

// MachineResult 汇总一台机器在整个运行中的结果
type MachineResult struct {
	MachineID     int    `json:"machine_id" yaml:"machine_id"`
	PartName      string `json:"part_name" yaml:"part_name"`
	TotalProduced int    `json:"total_produced" yaml:"total_produced"`
	Defective     int    `json:"defective" yaml:"defective"`
	Inventory     int    `json:"inventory" yaml:"inventory"`
}

// RunSummary 是一次完整模拟的结果，供报表、日志、存储使用
type RunSummary struct {
	RunID         string          `json:"run_id" yaml:"run_id"`
	Days          int             `json:"days" yaml:"days"`
	MinutesPerDay int             `json:"minutes_per_day" yaml:"minutes_per_day"`
	Machines      []MachineResult `json:"machines" yaml:"machines"`
	Orders        []OrderResult   `json:"orders" yaml:"orders"`
}
