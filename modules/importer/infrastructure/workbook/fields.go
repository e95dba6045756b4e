package workbook

import (
	"regexp"
	"strings"
)

// Field is a logical column the pipeline understands.
type Field string

const (
	FieldGermination Field = "germination"
	FieldLot         Field = "lot"
	FieldCost        Field = "cost"
	FieldQuantity    Field = "quantity"
	FieldNotes       Field = "notes"
	FieldSource      Field = "source"
	FieldYear        Field = "year"
	FieldVariety     Field = "variety"
)

type headerRule struct {
	field   Field
	pattern *regexp.Regexp
}

// headerRules are ordered more-specific-first; the first rule matching a
// header cell wins. "Germination Rate" must bind to germination before a
// looser pattern can claim it.
var headerRules = []headerRule{
	{FieldGermination, regexp.MustCompile(`(?i)germ`)},
	{FieldLot, regexp.MustCompile(`(?i)lot`)},
	{FieldCost, regexp.MustCompile(`(?i)cost|price`)},
	{FieldQuantity, regexp.MustCompile(`(?i)quantity|qty|amount|packets?`)},
	{FieldNotes, regexp.MustCompile(`(?i)notes?|comments?|remarks?`)},
	{FieldSource, regexp.MustCompile(`(?i)source|supplier|vendor|company`)},
	{FieldYear, regexp.MustCompile(`(?i)year|date|purchased`)},
	{FieldVariety, regexp.MustCompile(`(?i)variety|name|plant`)},
}

// mapHeaders binds each logical field to at most one column. Every
// header cell is tested against the rules in order; the first matching
// rule decides the cell's field, and the first cell bound to a field
// keeps it.
func mapHeaders(headers []string) map[Field]int {
	columns := make(map[Field]int, len(headerRules))
	for i, header := range headers {
		header = strings.TrimSpace(header)
		if header == "" {
			continue
		}
		for _, rule := range headerRules {
			if !rule.pattern.MatchString(header) {
				continue
			}
			if _, bound := columns[rule.field]; !bound {
				columns[rule.field] = i
			}
			break
		}
	}
	return columns
}
