package report

import (
	"fmt"

	"github.com/antonmedv/expr"
	"github.com/antonmedv/expr/vm"

	"car-part-factory/internal/config"
	"car-part-factory/internal/types"
)

// Alert 是一条命中的告警
type Alert struct {
	Name      string `json:"name" yaml:"name"`
	Rule      string `json:"rule" yaml:"rule"`
	MachineID int    `json:"machine_id" yaml:"machine_id"`
	PartName  string `json:"part_name" yaml:"part_name"`
}

func (a Alert) String() string {
	return fmt.Sprintf("ALERT %s: machine %d (%s) matched %q", a.Name, a.MachineID, a.PartName, a.Rule)
}

// machineEnv 是规则表达式中可用的变量
func machineEnv(m types.MachineResult) map[string]interface{} {
	rate := 0.0
	if m.TotalProduced > 0 {
		rate = float64(m.Defective) / float64(m.TotalProduced)
	}
	return map[string]interface{}{
		"machine_id":  m.MachineID,
		"part_name":   m.PartName,
		"produced":    m.TotalProduced,
		"defective":   m.Defective,
		"inventory":   m.Inventory,
		"defect_rate": rate,
	}
}

// EvaluateAlerts 对每台机器依次求值所有规则，返回命中的告警
// 规则必须返回布尔值，编译失败直接返回错误
func EvaluateAlerts(rules []config.AlertRule, summary types.RunSummary) ([]Alert, error) {
	if len(rules) == 0 {
		return nil, nil
	}
	programs := make([]*vm.Program, len(rules))
	sample := machineEnv(types.MachineResult{})
	for i, r := range rules {
		program, err := expr.Compile(r.Rule, expr.Env(sample), expr.AsBool())
		if err != nil {
			return nil, fmt.Errorf("alert %s: rule compilation failed: %w", r.Name, err)
		}
		programs[i] = program
	}

	var alerts []Alert
	for _, m := range summary.Machines {
		env := machineEnv(m)
		for i, program := range programs {
			out, err := expr.Run(program, env)
			if err != nil {
				return nil, fmt.Errorf("alert %s: rule execution failed: %w", rules[i].Name, err)
			}
			if hit, _ := out.(bool); hit {
				alerts = append(alerts, Alert{Name: rules[i].Name, Rule: rules[i].Rule, MachineID: m.MachineID, PartName: m.PartName})
			}
		}
	}
	return alerts, nil
}
