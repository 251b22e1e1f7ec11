package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"car-part-factory/internal/types"
)

// Config 定义应用程序的配置结构
// 使用 mapstructure 标签来映射配置文件中的字段
type Config struct {
	Simulation  SimulationConfig    `mapstructure:"simulation"`
	Inputs      InputsConfig        `mapstructure:"inputs"`
	Machines    []types.MachineSpec `mapstructure:"machines" validate:"dive"` // 内联机器定义，优先于 inputs.machines_path
	Orders      []types.OrderSpec   `mapstructure:"orders" validate:"dive"`   // 内联订单定义，优先于 inputs.orders_path
	JournalPath string              `mapstructure:"journal_path"`             // 为空则不写运行日志
	Store       StoreConfig         `mapstructure:"store"`
	Server      ServerConfig        `mapstructure:"server"`
	Report      ReportConfig        `mapstructure:"report"`
	Alerts      []AlertRule         `mapstructure:"alerts" validate:"dive"`
	LogLevel    string              `mapstructure:"log_level" validate:"oneof=debug info warn error"`
}

// SimulationConfig 控制模拟长度和随机性
type SimulationConfig struct {
	Days          int   `mapstructure:"days" validate:"min=0"`
	MinutesPerDay int   `mapstructure:"minutes_per_day" validate:"min=0"`
	Seed          int64 `mapstructure:"seed"`
	MaxWorkers    int   `mapstructure:"max_workers" validate:"min=1"` // 每天同时运行的机器数
}

// InputsConfig 指向原始 CSV 记录
type InputsConfig struct {
	MachinesPath string `mapstructure:"machines_path"`
	OrdersPath   string `mapstructure:"orders_path"`
}

// StoreConfig 控制运行历史的数据库
type StoreConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Type    string `mapstructure:"type" validate:"oneof=sqlite postgres"`
	Path    string `mapstructure:"path"` // sqlite 文件路径，空则使用内存库
	URL     string `mapstructure:"url"`  // postgres 连接串
}

// ServerConfig 是 serve 子命令使用的 HTTP 配置
type ServerConfig struct {
	Addr          string `mapstructure:"addr" validate:"required"`
	DayIntervalMs int    `mapstructure:"day_interval_ms" validate:"min=0"` // 每天快照之间的间隔
}

type ReportConfig struct {
	Format string `mapstructure:"format" validate:"oneof=text json yaml"`
}

// AlertRule 是对每台机器结果求值的 expr 规则，结果为 true 时告警
type AlertRule struct {
	Name string `mapstructure:"name" validate:"required"`
	Rule string `mapstructure:"rule" validate:"required"`
}

// LoadConfig 加载配置，优先级：环境变量 (FACTORY_ 前缀) > 配置文件 > 默认值
// configPath 为空时在当前目录和 ./configs 下查找 config.yaml，找不到文件不算错误
func LoadConfig(configPath string) (*Config, error) {
	// .env 文件不存在时忽略
	_ = godotenv.Load()

	v := viper.New()
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config") // 配置文件名称 (不带扩展名)
		v.SetConfigType("yaml")   // 配置文件类型
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
	}

	v.SetEnvPrefix("FACTORY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// 读取配置文件
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configPath != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
	}

	// 将配置解析到结构体中
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("配置不合法: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("simulation.days", 1)
	v.SetDefault("simulation.minutes_per_day", 480)
	v.SetDefault("simulation.seed", 1)
	v.SetDefault("simulation.max_workers", 1)
	v.SetDefault("inputs.machines_path", "")
	v.SetDefault("inputs.orders_path", "")
	v.SetDefault("journal_path", "")
	v.SetDefault("store.enabled", false)
	v.SetDefault("store.type", "sqlite")
	v.SetDefault("store.path", "")
	v.SetDefault("store.url", "")
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.day_interval_ms", 500)
	v.SetDefault("report.format", "text")
	v.SetDefault("log_level", "info")
}

// Validate 使用 validator 标签检查配置
func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			messages := make([]string, 0, len(verrs))
			for _, e := range verrs {
				messages = append(messages, fmt.Sprintf("field '%s' failed validation: %s (value: '%v')", e.Namespace(), e.Tag(), e.Value()))
			}
			return fmt.Errorf("validation failed:\n  %s", strings.Join(messages, "\n  "))
		}
		return err
	}
	return nil
}

// SlogLevel 把配置中的日志级别转换为 slog.Level
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
