// Package records 读取机器和订单的 CSV 记录
//
// 机器文件: ID,PartName,Weight,WeightError,Period,ChanceOfDefective
// 订单文件: ID,Name,(partID qty)-(partID qty)-...
// 两种文件的第一行都是表头。
package records

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"car-part-factory/internal/types"
)

var validate = validator.New()

// LoadMachines 从文件读取机器记录
func LoadMachines(path string) ([]types.MachineSpec, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("records: open machines: %w", err)
	}
	defer f.Close()
	return ParseMachines(f)
}

// LoadOrders 从文件读取订单记录
func LoadOrders(path string) ([]types.OrderSpec, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("records: open orders: %w", err)
	}
	defer f.Close()
	return ParseOrders(f)
}

// ParseMachines 解析机器 CSV，并校验周期和次品模数
func ParseMachines(r io.Reader) ([]types.MachineSpec, error) {
	rows, err := readRows(r, 6)
	if err != nil {
		return nil, fmt.Errorf("records: machines: %w", err)
	}
	specs := make([]types.MachineSpec, 0, len(rows))
	for _, row := range rows {
		spec, err := parseMachine(row.fields)
		if err != nil {
			return nil, fmt.Errorf("records: machines line %d: %w", row.line, err)
		}
		if err := validate.Struct(spec); err != nil {
			return nil, fmt.Errorf("records: machines line %d: %w", row.line, err)
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

func parseMachine(fields []string) (types.MachineSpec, error) {
	var (
		spec types.MachineSpec
		err  error
	)
	if spec.ID, err = strconv.Atoi(fields[0]); err != nil {
		return spec, fmt.Errorf("id: %w", err)
	}
	spec.PartName = fields[1]
	if spec.Weight, err = strconv.ParseFloat(fields[2], 64); err != nil {
		return spec, fmt.Errorf("weight: %w", err)
	}
	if spec.Tolerance, err = strconv.ParseFloat(fields[3], 64); err != nil {
		return spec, fmt.Errorf("weight error: %w", err)
	}
	if spec.Period, err = strconv.Atoi(fields[4]); err != nil {
		return spec, fmt.Errorf("period: %w", err)
	}
	if spec.DefectModulus, err = strconv.Atoi(fields[5]); err != nil {
		return spec, fmt.Errorf("chance of defective: %w", err)
	}
	return spec, nil
}

// ParseOrders 解析订单 CSV，需求按记录中的顺序保存
func ParseOrders(r io.Reader) ([]types.OrderSpec, error) {
	rows, err := readRows(r, 3)
	if err != nil {
		return nil, fmt.Errorf("records: orders: %w", err)
	}
	specs := make([]types.OrderSpec, 0, len(rows))
	for _, row := range rows {
		id, err := strconv.Atoi(row.fields[0])
		if err != nil {
			return nil, fmt.Errorf("records: orders line %d: id: %w", row.line, err)
		}
		parts, err := ParseRequested(row.fields[2])
		if err != nil {
			return nil, fmt.Errorf("records: orders line %d: %w", row.line, err)
		}
		spec := types.OrderSpec{ID: id, Name: row.fields[1], Parts: parts}
		if err := validate.Struct(spec); err != nil {
			return nil, fmt.Errorf("records: orders line %d: %w", row.line, err)
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

// ParseRequested 解析 "(1 5)-(2 3)" 形式的需求列表
func ParseRequested(s string) ([]types.PartQuantity, error) {
	var parts []types.PartQuantity
	for _, tuple := range strings.Split(s, "-") {
		tuple = strings.TrimSpace(tuple)
		if len(tuple) < 2 || tuple[0] != '(' || tuple[len(tuple)-1] != ')' {
			return nil, fmt.Errorf("malformed requested part %q", tuple)
		}
		fields := strings.Fields(tuple[1 : len(tuple)-1])
		if len(fields) != 2 {
			return nil, fmt.Errorf("malformed requested part %q", tuple)
		}
		partID, err := strconv.Atoi(fields[0])
		if err != nil {
			return nil, fmt.Errorf("requested part id %q: %w", fields[0], err)
		}
		qty, err := strconv.Atoi(fields[1])
		if err != nil {
			return nil, fmt.Errorf("requested quantity %q: %w", fields[1], err)
		}
		parts = append(parts, types.PartQuantity{PartID: partID, Quantity: qty})
	}
	return parts, nil
}

type row struct {
	line   int
	fields []string
}

// readRows 跳过表头和空行，返回去掉首尾空白的字段
func readRows(r io.Reader, width int) ([]row, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var rows []row
	header := true
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		line, _ := cr.FieldPos(0)
		if header {
			header = false
			continue
		}
		if len(record) == 1 && strings.TrimSpace(record[0]) == "" {
			continue
		}
		if len(record) != width {
			return nil, fmt.Errorf("line %d: expected %d fields, got %d", line, width, len(record))
		}
		for i := range record {
			record[i] = strings.TrimSpace(record[i])
		}
		rows = append(rows, row{line: line, fields: record})
	}
	return rows, nil
}
