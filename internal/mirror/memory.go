package mirror

import (
	"context"
	"fmt"
	"sync"

	"persacc/internal/core"
)

// Memory keeps appended rows in process. Used in tests and when no
// spreadsheet is configured.
type Memory struct {
	mu   sync.Mutex
	rows [][]any
}

var _ Writer = (*Memory)(nil)

func NewMemory() *Memory { return &Memory{} }

func (m *Memory) AppendSnapshot(_ context.Context, key core.PeriodKey, snap core.ClosingSnapshot) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = append(m.rows, row(key, snap))
	return fmt.Sprintf("memory:%d", len(m.rows)), nil
}

// Rows returns a copy of everything appended so far.
func (m *Memory) Rows() [][]any {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]any, len(m.rows))
	copy(out, m.rows)
	return out
}
