package workbook

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

const StatusColumnHeader = "RRF-1 Status"

var (
	ErrEINColumnMissing = errors.New("workbook: Excel file must contain an 'EIN Number' column")
	ErrUnreadable       = errors.New("workbook: unreadable")
	ErrEmpty            = errors.New("workbook: no header row")
)

// Subject is one data row: Row is the 1-based sheet row, Raw the EIN cell as typed.
type Subject struct {
	Row int
	Raw string
}

// Workbook wraps the active sheet of an uploaded spreadsheet.
type Workbook struct {
	file      *excelize.File
	sheet     string
	einCol    int
	statusCol int
	subjects  []Subject
}

func Open(path string) (*Workbook, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadable, err)
	}
	return load(f)
}

func Read(r io.Reader) (*Workbook, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadable, err)
	}
	return load(f)
}

func load(f *excelize.File) (*Workbook, error) {
	sheet := f.GetSheetName(f.GetActiveSheetIndex())
	rows, err := f.GetRows(sheet)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: %v", ErrUnreadable, err)
	}
	if len(rows) == 0 {
		f.Close()
		return nil, ErrEmpty
	}

	headers := rows[0]
	einCol := FindEINColumn(headers)
	if einCol < 0 {
		f.Close()
		return nil, ErrEINColumnMissing
	}

	wb := &Workbook{
		file:      f,
		sheet:     sheet,
		einCol:    einCol,
		statusCol: len(headers),
	}
	for i, row := range rows[1:] {
		if einCol >= len(row) {
			continue
		}
		raw := strings.TrimSpace(row[einCol])
		if raw == "" {
			continue
		}
		wb.subjects = append(wb.subjects, Subject{Row: i + 2, Raw: raw})
	}
	return wb, nil
}

// FindEINColumn returns the 0-based index of the first header containing both
// "ein" and "number", or -1.
func FindEINColumn(headers []string) int {
	for i, h := range headers {
		lower := strings.ToLower(h)
		if strings.Contains(lower, "ein") && strings.Contains(lower, "number") {
			return i
		}
	}
	return -1
}

func (w *Workbook) Subjects() []Subject {
	return w.subjects
}

// SetStatus writes status into the appended status column of row.
func (w *Workbook) SetStatus(row int, status string) error {
	if row <= 1 {
		return fmt.Errorf("workbook: row 1 is the header")
	}
	if err := w.ensureHeader(); err != nil {
		return err
	}
	cell, err := excelize.CoordinatesToCellName(w.statusCol+1, row)
	if err != nil {
		return err
	}
	return w.file.SetCellValue(w.sheet, cell, status)
}

func (w *Workbook) ensureHeader() error {
	cell, err := excelize.CoordinatesToCellName(w.statusCol+1, 1)
	if err != nil {
		return err
	}
	current, err := w.file.GetCellValue(w.sheet, cell)
	if err != nil {
		return err
	}
	if current == StatusColumnHeader {
		return nil
	}
	return w.file.SetCellValue(w.sheet, cell, StatusColumnHeader)
}

// SaveAs writes the annotated copy, creating the parent directory.
func (w *Workbook) SaveAs(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	if err := w.ensureHeader(); err != nil {
		return err
	}
	return w.file.SaveAs(path)
}

func (w *Workbook) Close() error {
	return w.file.Close()
}

// OutputName is the file name of the annotated workbook for a task.
func OutputName(taskID string) string {
	return fmt.Sprintf("clients_updated_%s.xlsx", taskID)
}
