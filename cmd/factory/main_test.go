package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"car-part-factory/internal/config"
	"car-part-factory/internal/event"
	"car-part-factory/internal/persistence"
	"car-part-factory/internal/report"
	"car-part-factory/internal/store"
	"car-part-factory/internal/types"
	"car-part-factory/internal/util"
	"car-part-factory/internal/web"
)

const testMachines = `ID,PartName,Weight,WeightError,Period,ChanceOfDefective
1,bolt,10.0,0.5,2,3
`

const testOrders = `ID,Name,RequestedParts
1,five bolts,(1 5)
2,two more,(1 2)
`

// writeFixtures 写入 CSV 和配置文件，返回配置文件路径
func writeFixtures(t *testing.T, extra string) string {
	t.Helper()
	dir := t.TempDir()
	machines := filepath.Join(dir, "machines.csv")
	orders := filepath.Join(dir, "orders.csv")
	require.NoError(t, os.WriteFile(machines, []byte(testMachines), 0o644))
	require.NoError(t, os.WriteFile(orders, []byte(testOrders), 0o644))

	cfg := "simulation:\n  days: 1\n  minutes_per_day: 20\n" +
		"inputs:\n  machines_path: " + machines + "\n  orders_path: " + orders + "\n" + extra
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o644))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, logs bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&logs)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRunCommand_JSONReport(t *testing.T) {
	cfgPath := writeFixtures(t, "alerts:\n  - name: high-defects\n    rule: defect_rate > 0.3\n")

	out, err := execute(t, "run", "--config", cfgPath, "--format", "json")
	require.NoError(t, err)

	var doc report.Document
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	summary := doc.Summary
	assert.NotEmpty(t, summary.RunID)
	assert.Equal(t, 1, summary.Days)
	require.Len(t, summary.Machines, 1)
	m := summary.Machines[0]
	assert.Equal(t, 10, m.TotalProduced)
	assert.Equal(t, 4, m.Defective)
	// 6 个合格品，第一个订单取走 5 个
	assert.Equal(t, 1, m.Inventory)

	require.Len(t, summary.Orders, 2)
	assert.Equal(t, "FULFILLED", summary.Orders[0].Status)
	assert.Equal(t, "UNFULFILLED", summary.Orders[1].Status)

	require.Len(t, doc.Alerts, 1)
	assert.Equal(t, "high-defects", doc.Alerts[0].Name)
}

func TestRunCommand_SavesRunAndJournal(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "runs.db")
	journalPath := filepath.Join(t.TempDir(), "runs.journal")
	cfgPath := writeFixtures(t, "journal_path: "+journalPath+"\n"+
		"store:\n  enabled: true\n  type: sqlite\n  path: "+dbPath+"\n")

	out, err := execute(t, "run", "--config", cfgPath, "--format", "json")
	require.NoError(t, err)
	var doc report.Document
	require.NoError(t, json.Unmarshal([]byte(out), &doc))

	db, err := store.Open(config.StoreConfig{Enabled: true, Type: "sqlite", Path: dbPath})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	saved, err := db.LoadRun(context.Background(), doc.Summary.RunID)
	require.NoError(t, err)
	assert.Equal(t, doc.Summary.Machines, saved.Machines)
	require.Len(t, saved.Orders, 2)
	assert.Equal(t, "UNFULFILLED", saved.Orders[1].Status)

	journal, err := persistence.NewJournal(journalPath)
	require.NoError(t, err)
	t.Cleanup(func() { journal.Close() })
	incomplete, err := journal.Incomplete()
	require.NoError(t, err)
	assert.Empty(t, incomplete)
	entries, err := journal.Entries(doc.Summary.RunID)
	require.NoError(t, err)
	// BEGIN, 1 天, 2 个订单, COMPLETE
	assert.Len(t, entries, 5)
}

func TestRunCommand_FlagsOverrideConfig(t *testing.T) {
	cfgPath := writeFixtures(t, "")

	out, err := execute(t, "run", "--config", cfgPath, "--format", "json", "--days", "2", "--minutes", "10", "--workers", "4")
	require.NoError(t, err)

	var doc report.Document
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	assert.Equal(t, 2, doc.Summary.Days)
	assert.Equal(t, 10, doc.Summary.MinutesPerDay)
	// 前 10 分钟都在传送带上，每天结束时清空：每天 5 个
	assert.Equal(t, 10, doc.Summary.Machines[0].TotalProduced)
}

func TestRunCommand_TextReport(t *testing.T) {
	cfgPath := writeFixtures(t, "")

	out, err := execute(t, "run", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Machine 1 Produced: bolt 10")
	assert.Contains(t, out, "Order 1 - five bolts: FULFILLED")
	assert.Contains(t, out, "Order 2 - two more: NOT FULFILLED")
}

func TestRunCommand_Errors(t *testing.T) {
	_, err := execute(t, "run", "--config", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	cfgPath := writeFixtures(t, "")
	_, err = execute(t, "run", "--config", cfgPath, "--format", "xml")
	assert.Error(t, err)

	_, err = execute(t, "run", "--config", cfgPath, "--machines", filepath.Join(t.TempDir(), "none.csv"))
	assert.Error(t, err)
}

func TestNewMux_RunHistory(t *testing.T) {
	db, err := store.Open(config.StoreConfig{Type: "sqlite"})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	cfgPath := writeFixtures(t, "")
	cfg, err := config.LoadConfig(cfgPath)
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx := util.ContextWithRunID(context.Background(), "mux-run")
	_, _, err = simulate(ctx, cfg, event.NewBus(), db, logger)
	require.NoError(t, err)

	hub := web.NewHub(logger)
	go hub.Run()
	t.Cleanup(hub.Stop)
	srv := httptest.NewServer(newMux(hub, web.NewStateTracker(hub), db, logger))
	t.Cleanup(srv.Close)

	resp, err := http.Get(srv.URL + "/api/runs/mux-run")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var saved types.RunSummary
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&saved))
	assert.Equal(t, "mux-run", saved.RunID)
	require.Len(t, saved.Machines, 1)
	assert.Equal(t, 10, saved.Machines[0].TotalProduced)

	resp2, err := http.Get(srv.URL + "/api/runs/nope")
	require.NoError(t, err)
	resp2.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp2.StatusCode)

	resp3, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	resp3.Body.Close()
	assert.Equal(t, http.StatusOK, resp3.StatusCode)
}
