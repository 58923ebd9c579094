package normalize

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// NameKey reduces a template name to its natural key: diacritics stripped,
// case folded and whitespace collapsed. "  Declaración  MENSUAL " and
// "declaracion mensual" share a key.
func NameKey(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, s)
	if err != nil {
		stripped = s
	}
	return strings.Join(strings.Fields(cases.Fold().String(stripped)), " ")
}

// HeaderKey normalizes a spreadsheet column header so synonyms can be
// matched regardless of case, accents, underscores or dashes.
func HeaderKey(s string) string {
	s = strings.NewReplacer("_", " ", "-", " ", ".", " ").Replace(s)
	return NameKey(s)
}

var (
	nameSeparators = regexp.MustCompile(`[,;/\n\r]+`)
	idSeparators   = regexp.MustCompile(`[,\s]+`)
)

// SplitTemplateNames splits a multi-template cell on commas, semicolons,
// slashes and newlines. Empty fragments are dropped; order is kept.
func SplitTemplateNames(cell string) []string {
	var out []string
	for _, part := range nameSeparators.Split(cell, -1) {
		if p := strings.Join(strings.Fields(part), " "); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// SplitTemplateIDs splits a comma or space separated id cell. Tokens that
// are not positive integers are returned in invalid.
func SplitTemplateIDs(cell string) (ids []int64, invalid []string) {
	seen := make(map[int64]bool)
	for _, tok := range idSeparators.Split(strings.TrimSpace(cell), -1) {
		if tok == "" {
			continue
		}
		// Spreadsheets often render integer cells as "12.0".
		tok = strings.TrimSuffix(tok, ".0")
		id, err := strconv.ParseInt(tok, 10, 64)
		if err != nil || id <= 0 {
			invalid = append(invalid, tok)
			continue
		}
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	return ids, invalid
}
