package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"car-part-factory/internal/config"
	"car-part-factory/internal/types"
)

// RunRecord 是一次模拟运行
type RunRecord struct {
	RunID         string `gorm:"primaryKey"`
	Days          int
	MinutesPerDay int
	CreatedAt     time.Time
	Machines      []MachineRecord `gorm:"foreignKey:RunID;references:RunID;constraint:OnDelete:CASCADE"`
	Orders        []OrderRecord   `gorm:"foreignKey:RunID;references:RunID;constraint:OnDelete:CASCADE"`
}

func (RunRecord) TableName() string { return "runs" }

// MachineRecord 是某次运行中一台机器的结果
type MachineRecord struct {
	ID            uint   `gorm:"primaryKey"`
	RunID         string `gorm:"index"`
	Position      int    // 注册顺序
	MachineID     int
	PartName      string
	TotalProduced int
	Defective     int
	Inventory     int
}

func (MachineRecord) TableName() string { return "machine_results" }

// OrderRecord 是某次运行中一个订单的结果
type OrderRecord struct {
	ID       uint   `gorm:"primaryKey"`
	RunID    string `gorm:"index"`
	Position int    // 积压顺序
	OrderID  int
	Name     string
	Status   string
}

func (OrderRecord) TableName() string { return "order_results" }

// ErrRunNotFound 表示数据库中没有该运行
var ErrRunNotFound = errors.New("run not found")

// NewConnection 根据配置打开 sqlite 或 postgres 连接
func NewConnection(cfg config.StoreConfig) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Type {
	case "postgres":
		if cfg.URL == "" {
			return nil, fmt.Errorf("store: postgres requires url")
		}
		dialector = postgres.Open(cfg.URL)
	case "sqlite", "":
		// 路径为空时使用内存库
		path := cfg.Path
		if path == "" {
			path = ":memory:"
		}
		dialector = sqlite.Open(path)
	default:
		return nil, fmt.Errorf("store: unsupported database type: %s", cfg.Type)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("store: failed to open database: %w", err)
	}

	// 内存库每个连接都是独立的数据库，只能保留一个连接
	if cfg.Type != "postgres" && (cfg.Path == "" || cfg.Path == ":memory:") {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("store: failed to get underlying db: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)
	}
	return db, nil
}

// AutoMigrate 创建或更新表结构
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&RunRecord{}, &MachineRecord{}, &OrderRecord{})
}

// Store 保存和读取模拟运行历史
type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Open 打开连接并迁移表结构
func Open(cfg config.StoreConfig) (*Store, error) {
	db, err := NewConnection(cfg)
	if err != nil {
		return nil, err
	}
	if err := AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("store: auto-migrate: %w", err)
	}
	return New(db), nil
}

// SaveRun 在一个事务中写入一次运行的全部结果
func (s *Store) SaveRun(ctx context.Context, summary types.RunSummary) error {
	record := RunRecord{
		RunID:         summary.RunID,
		Days:          summary.Days,
		MinutesPerDay: summary.MinutesPerDay,
	}
	for i, m := range summary.Machines {
		record.Machines = append(record.Machines, MachineRecord{
			Position:      i,
			MachineID:     m.MachineID,
			PartName:      m.PartName,
			TotalProduced: m.TotalProduced,
			Defective:     m.Defective,
			Inventory:     m.Inventory,
		})
	}
	for i, o := range summary.Orders {
		record.Orders = append(record.Orders, OrderRecord{
			Position: i,
			OrderID:  o.OrderID,
			Name:     o.Name,
			Status:   o.Status,
		})
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&record).Error; err != nil {
			return fmt.Errorf("store: save run %s: %w", summary.RunID, err)
		}
		return nil
	})
}

// LoadRun 读取一次运行，机器和订单保持原有顺序
// 订单的需求明细不入库，读出的 OrderResult.Parts 为空
func (s *Store) LoadRun(ctx context.Context, runID string) (types.RunSummary, error) {
	var record RunRecord
	err := s.db.WithContext(ctx).
		Preload("Machines", func(db *gorm.DB) *gorm.DB { return db.Order("position") }).
		Preload("Orders", func(db *gorm.DB) *gorm.DB { return db.Order("position") }).
		First(&record, "run_id = ?", runID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return types.RunSummary{}, fmt.Errorf("store: %s: %w", runID, ErrRunNotFound)
	}
	if err != nil {
		return types.RunSummary{}, fmt.Errorf("store: load run %s: %w", runID, err)
	}

	summary := types.RunSummary{RunID: record.RunID, Days: record.Days, MinutesPerDay: record.MinutesPerDay}
	for _, m := range record.Machines {
		summary.Machines = append(summary.Machines, types.MachineResult{
			MachineID:     m.MachineID,
			PartName:      m.PartName,
			TotalProduced: m.TotalProduced,
			Defective:     m.Defective,
			Inventory:     m.Inventory,
		})
	}
	for _, o := range record.Orders {
		summary.Orders = append(summary.Orders, types.OrderResult{OrderID: o.OrderID, Name: o.Name, Status: o.Status})
	}
	return summary, nil
}

// Close 关闭底层连接
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
