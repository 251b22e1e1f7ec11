package persistence

import (
	"bufio"
	"encoding/json"
	"io"
	"os"
	"sync"

	"car-part-factory/internal/types"
)

// 日志记录类型
const (
	EntryBegin    = "BEGIN"    // 模拟开始
	EntryDay      = "DAY"      // 一天结束时的快照
	EntryOrder    = "ORDER"    // 一个订单的评估结果
	EntryComplete = "COMPLETE" // 模拟完成
)

// LogEntry 代表日志文件中的一条记录
type LogEntry struct {
	Type  string             `json:"type"`
	RunID string             `json:"run_id"`
	Day   *types.DaySnapshot `json:"day,omitempty"`
	Order *types.OrderResult `json:"order,omitempty"`
}

// Journal 是追加写入的运行日志 (每行一条 JSON)
// 每次写入后 fsync，进程中断后可以找出未完成的运行
type Journal struct {
	file *os.File   // 日志文件句柄
	mu   sync.Mutex // 互斥锁，保证文件写入的原子性
}

// NewJournal 创建或打开一个日志文件
func NewJournal(path string) (*Journal, error) {
	// O_APPEND: 追加写入, O_CREATE: 文件不存在则创建, O_RDWR: 读写模式
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, err
	}
	return &Journal{file: file}, nil
}

func (j *Journal) Begin(runID string) error {
	return j.append(LogEntry{Type: EntryBegin, RunID: runID})
}

func (j *Journal) AppendDay(runID string, s types.DaySnapshot) error {
	return j.append(LogEntry{Type: EntryDay, RunID: runID, Day: &s})
}

func (j *Journal) AppendOrder(runID string, r types.OrderResult) error {
	return j.append(LogEntry{Type: EntryOrder, RunID: runID, Order: &r})
}

// Complete 在日志中标记一次运行已完成
func (j *Journal) Complete(runID string) error {
	return j.append(LogEntry{Type: EntryComplete, RunID: runID})
}

func (j *Journal) append(entry LogEntry) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	// 写入数据并在末尾添加换行符
	if _, err := j.file.Write(append(data, '\n')); err != nil {
		return err
	}
	// 确保数据被刷新到磁盘，防止数据丢失
	return j.file.Sync()
}

// Incomplete 返回已开始但没有完成的运行 ID，按开始顺序排列
func (j *Journal) Incomplete() ([]string, error) {
	var begun []string
	completed := make(map[string]bool)
	err := j.scan(func(e LogEntry) {
		switch e.Type {
		case EntryBegin:
			begun = append(begun, e.RunID)
		case EntryComplete:
			completed[e.RunID] = true
		}
	})
	if err != nil {
		return nil, err
	}

	var pending []string
	for _, id := range begun {
		if !completed[id] {
			pending = append(pending, id)
		}
	}
	return pending, nil
}

// Entries 返回某次运行的全部记录
func (j *Journal) Entries(runID string) ([]LogEntry, error) {
	var entries []LogEntry
	err := j.scan(func(e LogEntry) {
		if e.RunID == runID {
			entries = append(entries, e)
		}
	})
	return entries, err
}

func (j *Journal) scan(fn func(LogEntry)) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	// 将文件指针移动到开头以进行读取
	if _, err := j.file.Seek(0, io.SeekStart); err != nil {
		return err
	}

	scanner := bufio.NewScanner(j.file)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		var entry LogEntry
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			// 忽略损坏的行 (通常是中断时写了一半)
			continue
		}
		fn(entry)
	}
	if err := scanner.Err(); err != nil {
		return err
	}

	// 恢复文件指针到末尾，以便后续追加写入
	_, err := j.file.Seek(0, io.SeekEnd)
	return err
}

// Close 关闭日志文件
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.file.Close()
}
