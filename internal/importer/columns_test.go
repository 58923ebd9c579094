package importer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCells_Synonyms(t *testing.T) {
	got := cells(Row{Cells: map[string]string{
		"Tax_ID":            "", // blank cells do not claim the column
		"RUT Cliente":       " 76.086.428-5 ",
		"Fecha_Vencimiento": "2025-03-12",
		"Día de la semana":  "lunes",
		"Unrelated":         "x",
	}})
	assert.Equal(t, "76.086.428-5", got[colTaxID])
	assert.Equal(t, "2025-03-12", got[colDueDate])
	assert.Equal(t, "lunes", got[colWeekday])
	assert.Len(t, got, 3)
}

func TestCells_LeftmostHeaderWins(t *testing.T) {
	r := Row{
		Cells:   map[string]string{"Tax ID": "11111111-1", "RUT": "76086428-5", "rut cliente": ""},
		Headers: []string{"rut cliente", "RUT", "Tax ID"},
	}
	for range 50 {
		assert.Equal(t, "76086428-5", cells(r)[colTaxID])
	}

	r.Headers = []string{"Tax ID", "RUT"}
	assert.Equal(t, "11111111-1", cells(r)[colTaxID])

	// Without a header order the choice is still stable.
	r.Headers = nil
	for range 50 {
		assert.Equal(t, "76086428-5", cells(r)[colTaxID])
	}
}

func TestParseHelpers(t *testing.T) {
	tests := []struct {
		in   string
		want int
		ok   bool
	}{
		{"15", 15, true},
		{"15.0", 15, true},
		{" 7 ", 7, true},
		{"15.5", 0, false},
		{"quince", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := parseCount(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}

	for in, want := range map[string]int{"Miércoles": 3, "fri": 5, "7": 7, "SUNDAY": 7} {
		got, ok := parseWeekday(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}
	_, ok := parseWeekday("someday")
	assert.False(t, ok)

	for in, want := range map[string]bool{"Sí": true, "x": true, "NO": false, "0": false} {
		got, ok := parseBool(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}
	_, ok = parseBool("maybe")
	assert.False(t, ok)
}

func TestJoinRows(t *testing.T) {
	assert.Equal(t, "2, 3", joinRows([]int{2, 3}, maxSampleRows))
	assert.Equal(t, "1, 2, 3, 4, 5 and 2 more", joinRows([]int{1, 2, 3, 4, 5, 6, 7}, maxSampleRows))
	assert.Equal(t, "1, 2, 3, 4, 5, 6, 7", joinRows([]int{1, 2, 3, 4, 5, 6, 7}, 0))
}
