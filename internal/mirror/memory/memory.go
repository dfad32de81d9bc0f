package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	"saldo/internal/core"
	"saldo/internal/mirror"
)

// Mirror keeps the encoded sections in memory, as text, the way a file reader would see them.
type Mirror struct {
	mu       sync.Mutex
	sections map[string][][]string
	exports  int
	// FailExports makes Export return an error.
	FailExports bool
}

var _ mirror.Mirror = (*Mirror)(nil)

var errExportDisabled = errors.New("memory mirror: exports disabled")

func New() *Mirror {
	return &Mirror{}
}

// NewWithData returns a mirror that already holds an export of data.
func NewWithData(data core.AppData) *Mirror {
	m := New()
	_ = m.Export(context.Background(), data)
	m.exports = 0
	return m
}

// NewWithSections seeds the mirror with raw tables, including malformed ones.
func NewWithSections(sections map[string][][]string) *Mirror {
	return &Mirror{sections: sections}
}

func (m *Mirror) Export(_ context.Context, data core.AppData) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailExports {
		return errExportDisabled
	}
	sections, err := mirror.Encode(data, time.Now())
	if err != nil {
		return err
	}
	out := make(map[string][][]string, len(sections))
	for _, s := range sections {
		for _, row := range s.Rows {
			out[s.Name] = append(out[s.Name], mirror.ToStrings(row))
		}
	}
	m.sections = out
	m.exports++
	return nil
}

func (m *Mirror) Import(_ context.Context) (*core.AppData, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sections == nil {
		return nil, nil
	}
	data, err := mirror.Decode(m.sections)
	if err != nil {
		return nil, nil
	}
	return data, nil
}

// Exports returns how many exports succeeded.
func (m *Mirror) Exports() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.exports
}
