// Package xlsx stores the Spreadsheet Mirror as a local workbook with one sheet per section.
package xlsx

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/xuri/excelize/v2"

	"saldo/internal/core"
	"saldo/internal/log"
	"saldo/internal/mirror"
)

// DefaultPath is where the workbook lives when nothing else is configured.
const DefaultPath = "./data/financial_data.xlsx"

type Mirror struct {
	path   string
	logger *slog.Logger
	now    func() time.Time
}

var _ mirror.Mirror = (*Mirror)(nil)

func New(path string, logger *slog.Logger) *Mirror {
	if path == "" {
		path = DefaultPath
	}
	return &Mirror{path: path, logger: log.For(logger, log.ComponentMirror).With(log.FieldMirror, "xlsx"), now: time.Now}
}

// Path returns the workbook location.
func (m *Mirror) Path() string { return m.path }

// Export rewrites the whole workbook. The new file replaces the old one only
// once it has been fully written.
func (m *Mirror) Export(ctx context.Context, data core.AppData) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	sections, err := mirror.Encode(data, m.now())
	if err != nil {
		return err
	}

	f := excelize.NewFile()
	defer f.Close()

	for i, s := range sections {
		if i == 0 {
			if err := f.SetSheetName(f.GetSheetName(0), s.Name); err != nil {
				return fmt.Errorf("rename sheet: %w", err)
			}
		} else if _, err := f.NewSheet(s.Name); err != nil {
			return fmt.Errorf("create sheet %s: %w", s.Name, err)
		}
		for r, row := range s.Rows {
			cell, err := excelize.CoordinatesToCellName(1, r+1)
			if err != nil {
				return err
			}
			if err := f.SetSheetRow(s.Name, cell, &row); err != nil {
				return fmt.Errorf("write %s row %d: %w", s.Name, r+1, err)
			}
		}
	}

	if err := os.MkdirAll(filepath.Dir(m.path), 0o755); err != nil {
		return fmt.Errorf("create mirror dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(m.path), ".mirror-*.xlsx")
	if err != nil {
		return fmt.Errorf("create temp workbook: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := f.Write(tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("write workbook: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close workbook: %w", err)
	}
	if err := os.Rename(tmpName, m.path); err != nil {
		return fmt.Errorf("replace workbook: %w", err)
	}

	m.logger.DebugContext(ctx, "Mirror exported", "path", m.path, "transactions", len(data.Transactions), log.FieldVersion, data.Version)
	return nil
}

// Import reads the workbook back. Absent, unreadable or malformed files yield nil, nil.
func (m *Mirror) Import(ctx context.Context) (*core.AppData, error) {
	data, err := m.read()
	switch {
	case errors.Is(err, fs.ErrNotExist):
		m.logger.DebugContext(ctx, "No mirror file", "path", m.path)
		return nil, nil
	case err != nil:
		m.logger.WarnContext(ctx, "Ignoring unreadable mirror", "path", m.path, "error", err)
		return nil, nil
	}
	return data, nil
}

func (m *Mirror) read() (*core.AppData, error) {
	if _, err := os.Stat(m.path); err != nil {
		return nil, err
	}
	f, err := excelize.OpenFile(m.path)
	if err != nil {
		return nil, fmt.Errorf("%w: open: %w", core.ErrImportMalformed, err)
	}
	defer f.Close()

	sections := make(map[string][][]string, len(mirror.SectionNames))
	for _, name := range mirror.SectionNames {
		if idx, err := f.GetSheetIndex(name); err != nil || idx < 0 {
			continue
		}
		rows, err := f.GetRows(name, excelize.Options{RawCellValue: true})
		if err != nil {
			return nil, fmt.Errorf("%w: read %s: %w", core.ErrImportMalformed, name, err)
		}
		sections[name] = rows
	}
	return mirror.Decode(sections)
}
