package importer

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

// DefaultMinConfidence is the score below which an import is shown for
// review instead of saved.
const DefaultMinConfidence = 0.5

// ReadWorkbook returns the rows of the first sheet of an .xlsx file.
func ReadWorkbook(r io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%w: workbook has no sheets", ErrUnrecognized)
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheets[0], err)
	}

	return rows, nil
}

// ImportWorkbook is ReadWorkbook followed by Import.
func ImportWorkbook(r io.Reader) (*Result, error) {
	rows, err := ReadWorkbook(r)
	if err != nil {
		return nil, err
	}
	return Import(rows)
}
