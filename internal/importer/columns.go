package importer

import (
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/nhle/obligations/internal/normalize"
)

// Row is one spreadsheet data row keyed by its header text.
type Row struct {
	// Line is the 1-based sheet line, counting the header as line 1.
	Line  int
	Cells map[string]string

	// Headers lists the header texts in sheet order. When two headers
	// resolve to the same column the one further left wins; headers not
	// listed here are considered after, in sorted order.
	Headers []string
}

type column int

const (
	colTaxID column = iota
	colClientName
	colPortfolio
	colTemplateIDs
	colTemplateNames
	colDueDate
	colOwnerEmail
	colOwnerID
	colFrequency
	colDayOfMonth
	colWeekday
	colDepartment
	colAudience
	colRequiresFolder
	colDocumentCode
	colDetail
)

// columnSynonyms maps normalized header text to a column. Headers are
// compared after normalize.HeaderKey, so case, accents and separators do
// not matter.
var columnSynonyms = map[string]column{
	"tax id":            colTaxID,
	"taxid":             colTaxID,
	"rut":               colTaxID,
	"rut cliente":       colTaxID,
	"client tax id":     colTaxID,
	"name":              colClientName,
	"client":            colClientName,
	"client name":       colClientName,
	"display name":      colClientName,
	"cliente":           colClientName,
	"razon social":      colClientName,
	"nombre":            colClientName,
	"portfolio":         colPortfolio,
	"cartera":           colPortfolio,
	"template id":       colTemplateIDs,
	"template ids":      colTemplateIDs,
	"task id":           colTemplateIDs,
	"task ids":          colTemplateIDs,
	"id tarea":          colTemplateIDs,
	"ids tareas":        colTemplateIDs,
	"template":          colTemplateNames,
	"templates":         colTemplateNames,
	"template name":     colTemplateNames,
	"template names":    colTemplateNames,
	"task":              colTemplateNames,
	"tasks":             colTemplateNames,
	"task name":         colTemplateNames,
	"tarea":             colTemplateNames,
	"tareas":            colTemplateNames,
	"due":               colDueDate,
	"due date":          colDueDate,
	"deadline":          colDueDate,
	"fecha":             colDueDate,
	"vencimiento":       colDueDate,
	"fecha vencimiento": colDueDate,
	"owner email":       colOwnerEmail,
	"agent email":       colOwnerEmail,
	"email":             colOwnerEmail,
	"correo":            colOwnerEmail,
	"email responsable": colOwnerEmail,
	"owner id":          colOwnerID,
	"agent id":          colOwnerID,
	"responsable id":    colOwnerID,
	"frequency":         colFrequency,
	"frecuencia":        colFrequency,
	"day of month":      colDayOfMonth,
	"day":               colDayOfMonth,
	"dia":               colDayOfMonth,
	"dia mes":           colDayOfMonth,
	"dia del mes":       colDayOfMonth,
	"weekday":           colWeekday,
	"day of week":       colWeekday,
	"dia semana":        colWeekday,
	"dia de la semana":  colWeekday,
	"department":        colDepartment,
	"departamento":      colDepartment,
	"area":              colDepartment,
	"audience":          colAudience,
	"audiencia":         colAudience,
	"visibility":        colAudience,
	"requires folder":   colRequiresFolder,
	"storage required":  colRequiresFolder,
	"folder":            colRequiresFolder,
	"requiere carpeta":  colRequiresFolder,
	"carpeta":           colRequiresFolder,
	"document code":     colDocumentCode,
	"form code":         colDocumentCode,
	"codigo documento":  colDocumentCode,
	"formulario":        colDocumentCode,
	"detail":            colDetail,
	"description":       colDetail,
	"detalle":           colDetail,
	"descripcion":       colDetail,

	// Headers written as identifiers ("templateName", "dueDate").
	"clientname":     colClientName,
	"templateid":     colTemplateIDs,
	"templateids":    colTemplateIDs,
	"templatename":   colTemplateNames,
	"duedate":        colDueDate,
	"owneremail":     colOwnerEmail,
	"ownerid":        colOwnerID,
	"dayofmonth":     colDayOfMonth,
	"requiresfolder": colRequiresFolder,
	"documentcode":   colDocumentCode,
}

// cells resolves a row's headers to columns. When two headers map to the
// same column the first non-empty value in header order wins.
func cells(r Row) map[column]string {
	out := make(map[column]string, len(r.Cells))
	for _, header := range headerOrder(r) {
		col, ok := columnSynonyms[normalize.HeaderKey(header)]
		if !ok {
			continue
		}
		value := strings.TrimSpace(r.Cells[header])
		if value == "" {
			continue
		}
		if _, seen := out[col]; !seen {
			out[col] = value
		}
	}
	return out
}

func headerOrder(r Row) []string {
	order := make([]string, 0, len(r.Cells))
	listed := make(map[string]bool, len(r.Headers))
	for _, h := range r.Headers {
		if _, ok := r.Cells[h]; ok && !listed[h] {
			listed[h] = true
			order = append(order, h)
		}
	}
	for _, h := range slices.Sorted(maps.Keys(r.Cells)) {
		if !listed[h] {
			order = append(order, h)
		}
	}
	return order
}

var weekdayNames = map[string]int{
	"monday": 1, "mon": 1, "lunes": 1, "lun": 1,
	"tuesday": 2, "tue": 2, "martes": 2, "mar": 2,
	"wednesday": 3, "wed": 3, "miercoles": 3, "mie": 3,
	"thursday": 4, "thu": 4, "jueves": 4, "jue": 4,
	"friday": 5, "fri": 5, "viernes": 5, "vie": 5,
	"saturday": 6, "sat": 6, "sabado": 6, "sab": 6,
	"sunday": 7, "sun": 7, "domingo": 7, "dom": 7,
}

// parseCount reads a small integer that may arrive as a spreadsheet
// float such as "15.0".
func parseCount(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		return n, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != float64(int(f)) {
		return 0, false
	}
	return int(f), true
}

func parseWeekday(s string) (int, bool) {
	if n, ok := parseCount(s); ok {
		return n, true
	}
	n, ok := weekdayNames[normalize.NameKey(s)]
	return n, ok
}

func parseBool(s string) (bool, bool) {
	switch normalize.NameKey(s) {
	case "1", "yes", "y", "true", "si", "s", "x":
		return true, true
	case "0", "no", "n", "false":
		return false, true
	}
	return false, false
}
