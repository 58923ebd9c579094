package sheet_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/nhle/obligations/internal/normalize"
	"github.com/nhle/obligations/internal/sheet"
)

func TestReadCSV(t *testing.T) {
	in := "\xEF\xBB\xBFRUT, Tarea ,Fecha,\n" +
		"76.086.428-5,Libro de Compras,2025-03-15,ignored\n" +
		",,\n" +
		"11111111-1,\"IVA, F29\",45731\n"

	rows, err := sheet.ReadCSV(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, 2, rows[0].Line)
	assert.Equal(t, map[string]string{
		"RUT":   "76.086.428-5",
		"Tarea": "Libro de Compras",
		"Fecha": "2025-03-15",
	}, rows[0].Cells)
	assert.Equal(t, []string{"RUT", "Tarea", "Fecha"}, rows[0].Headers)

	assert.Equal(t, 4, rows[1].Line, "blank records still count toward line numbers")
	assert.Equal(t, "IVA, F29", rows[1].Cells["Tarea"])
}

func TestReadCSV_MissingHeader(t *testing.T) {
	_, err := sheet.ReadCSV(strings.NewReader(""))
	assert.ErrorIs(t, err, sheet.ErrMissingHeader)

	_, err = sheet.ReadCSV(strings.NewReader(" , \n1,2\n"))
	assert.ErrorIs(t, err, sheet.ErrMissingHeader)
}

func TestReadXLSX(t *testing.T) {
	wb := excelize.NewFile()
	t.Cleanup(func() { _ = wb.Close() })
	const name = "Sheet1"
	require.NoError(t, wb.SetSheetRow(name, "A1", &[]any{"Tax ID", "Template", "Due Date", "Day"}))
	require.NoError(t, wb.SetSheetRow(name, "A2", &[]any{"76086428-5", "VAT Filing", time.Date(2025, time.March, 15, 0, 0, 0, 0, time.UTC), 15}))
	require.NoError(t, wb.SetSheetRow(name, "A4", &[]any{"11111111-1", "Payroll"}))

	buf, err := wb.WriteToBuffer()
	require.NoError(t, err)

	rows, err := sheet.ReadXLSX(buf, "")
	require.NoError(t, err)
	require.Len(t, rows, 2)

	first := rows[0]
	assert.Equal(t, 2, first.Line)
	assert.Equal(t, "76086428-5", first.Cells["Tax ID"])
	assert.Equal(t, "15", first.Cells["Day"])
	due, err := normalize.Date(first.Cells["Due Date"])
	require.NoError(t, err)
	assert.Equal(t, "2025-03-15", due.Format(time.DateOnly))

	assert.Equal(t, 4, rows[1].Line)
	assert.NotContains(t, rows[1].Cells, "Due Date")
}

func TestReadXLSX_UnknownSheet(t *testing.T) {
	wb := excelize.NewFile()
	t.Cleanup(func() { _ = wb.Close() })
	require.NoError(t, wb.SetSheetRow("Sheet1", "A1", &[]any{"RUT"}))
	buf, err := wb.WriteToBuffer()
	require.NoError(t, err)

	_, err = sheet.ReadXLSX(buf, "Clientes")
	assert.ErrorIs(t, err, sheet.ErrNoSheet)
}

func TestReadFile(t *testing.T) {
	dir := t.TempDir()

	csvPath := filepath.Join(dir, "rows.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte("rut,template\n76086428-5,VAT Filing\n"), 0o600))
	rows, err := sheet.ReadFile(csvPath, "")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "VAT Filing", rows[0].Cells["template"])

	other := filepath.Join(dir, "rows.ods")
	require.NoError(t, os.WriteFile(other, []byte("x"), 0o600))
	_, err = sheet.ReadFile(other, "")
	assert.ErrorIs(t, err, sheet.ErrUnsupported)
}
