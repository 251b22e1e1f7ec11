package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// 定义 Prometheus 监控指标
var (
	// SimulatedDay 仪表盘：最近完成的模拟日
	SimulatedDay = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "factory_simulated_day",
		Help: "The most recently completed simulated day",
	})

	// PartsProduced 计数器：各机器累计产出 (含次品)
	PartsProduced = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "factory_parts_produced_total",
		Help: "The total number of parts produced per machine",
	}, []string{"machine"})

	// PartsDefective 计数器：各零件的次品数
	PartsDefective = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "factory_parts_defective_total",
		Help: "The total number of defective parts per part id",
	}, []string{"part"})

	// InventoryLevel 仪表盘：各零件当前库存
	InventoryLevel = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "factory_inventory_level",
		Help: "Accepted parts currently in inventory per part id",
	}, []string{"part"})

	// OrdersTotal 计数器：按状态 (FULFILLED/UNFULFILLED) 分类的订单数
	OrdersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "factory_orders_total",
		Help: "The total number of evaluated orders",
	}, []string{"status"})
)
