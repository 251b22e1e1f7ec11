package report

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"gopkg.in/yaml.v3"

	"car-part-factory/internal/fsm"
	"car-part-factory/internal/types"
)

// Document 是 json/yaml 格式输出的结构
type Document struct {
	Summary types.RunSummary `json:"summary" yaml:"summary"`
	Alerts  []Alert          `json:"alerts,omitempty" yaml:"alerts,omitempty"`
}

// Write 按 format (text/json/yaml) 输出报表
func Write(w io.Writer, format string, summary types.RunSummary, alerts []Alert) error {
	switch format {
	case "", "text":
		return writeText(w, summary, alerts)
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(Document{Summary: summary, Alerts: alerts})
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(Document{Summary: summary, Alerts: alerts}); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("report: unknown format %q", format)
	}
}

// writeText 输出每台机器的产量、次品数、剩余库存，以及每个订单是否履约
func writeText(w io.Writer, summary types.RunSummary, alerts []Alert) error {
	heading := lipgloss.NewRenderer(w).NewStyle().Bold(true)

	out := "\t\t\t" + heading.Render("REPORT") + "\n\n"
	out += heading.Render("Parts Produced per Machine") + "\n"
	for _, m := range summary.Machines {
		out += fmt.Sprintf("Machine %d Produced: %s %d\t(%d defective)\t(%d in inventory)\n",
			m.MachineID, m.PartName, m.TotalProduced, m.Defective, m.Inventory)
	}

	out += "\n" + heading.Render("ORDERS") + "\n\n"
	for _, o := range summary.Orders {
		out += OrderLine(o) + "\n"
	}

	if len(alerts) > 0 {
		out += "\n" + heading.Render("ALERTS") + "\n\n"
		for _, a := range alerts {
			out += a.String() + "\n"
		}
	}

	_, err := io.WriteString(w, out)
	return err
}

// OrderLine 返回 "Order {id} - {name}: FULFILLED" 或 "NOT FULFILLED"
func OrderLine(o types.OrderResult) string {
	status := "PENDING"
	switch fsm.State(o.Status) {
	case fsm.StateFulfilled:
		status = "FULFILLED"
	case fsm.StateUnfulfilled:
		status = "NOT FULFILLED"
	}
	return fmt.Sprintf("Order %d - %s: %s", o.OrderID, o.Name, status)
}
