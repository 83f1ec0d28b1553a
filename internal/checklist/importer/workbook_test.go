package importer

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func workbook(t *testing.T, rows ...[]any) *bytes.Buffer {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &row))
	}

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf
}

func TestImportWorkbook(t *testing.T) {
	t.Parallel()

	buf := workbook(t,
		[]any{"Phase", "Task"},
		[]any{"Preparation", "Book room"},
		[]any{"", "Print handouts"},
		[]any{"Delivery", "Run session"},
	)

	result, err := ImportWorkbook(buf)
	require.NoError(t, err)

	assert.Equal(t, LayoutTwoColumn, result.Layout)
	require.Len(t, result.Phases, 2)
	assert.Equal(t, []string{"Book room", "Print handouts"}, labels(result.Phases[0]))
	assert.GreaterOrEqual(t, result.Confidence, DefaultMinConfidence)
}

func TestReadWorkbook_RejectsGarbage(t *testing.T) {
	t.Parallel()

	_, err := ReadWorkbook(bytes.NewReader([]byte("phase,item\nPrep,Book room\n")))
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrUnrecognized))
}
