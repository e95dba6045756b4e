package workbook

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	minYear = 1990
	maxYear = 2100
)

var dateLayouts = []string{
	"2006-01-02",
	"01/02/2006",
	"1/2/2006",
	"01-02-2006",
	"1/2/06",
	"01/02/06",
	"Jan 2, 2006",
	"January 2, 2006",
	"2006/01/02",
}

var looseDateLayouts = []string{
	"Jan 2006",
	"January 2006",
	"Jan-06",
	"2006-01",
	"01/2006",
	"1/2006",
}

var yearTokenPattern = regexp.MustCompile(`\b(19|20)\d{2}\b`)

// parseYear coerces a cell into a purchase year. The raw value is kept
// by the caller, so every path may return an absent year plus warnings.
func parseYear(raw string) (*int, []string) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			year := t.Year()
			return &year, nil
		}
	}

	if n, err := strconv.ParseFloat(raw, 64); err == nil {
		year := int(n)
		if float64(year) == n && year >= minYear && year <= maxYear {
			return &year, nil
		}
	}

	if tokens := yearTokenPattern.FindAllString(raw, -1); len(tokens) > 0 {
		year, _ := strconv.Atoi(tokens[0])
		var warnings []string
		if len(tokens) > 1 {
			warnings = append(warnings, fmt.Sprintf("multiple years found in %q, using %d", raw, year))
		}
		return &year, warnings
	}

	for _, layout := range looseDateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			year := t.Year()
			return &year, nil
		}
	}

	return nil, []string{fmt.Sprintf("could not parse year from %q", raw)}
}

var numericTokenPattern = regexp.MustCompile(`\d+(\.\d+)?`)

// parseGermination normalizes a germination cell into a rate in [0,1]
// with 4 decimal places. Values above 1 are read as whole percentages.
func parseGermination(raw string) (*decimal.Decimal, []string) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}

	token := raw
	if _, err := strconv.ParseFloat(token, 64); err != nil {
		token = numericTokenPattern.FindString(raw)
		if token == "" {
			return nil, []string{fmt.Sprintf("could not parse germination rate from %q", raw)}
		}
	}

	rate, err := decimal.NewFromString(token)
	if err != nil {
		return nil, []string{fmt.Sprintf("could not parse germination rate from %q", raw)}
	}

	one := decimal.NewFromInt(1)
	if rate.GreaterThan(one) {
		rate = rate.Div(decimal.NewFromInt(100))
	}
	if rate.LessThan(decimal.Zero) {
		rate = decimal.Zero
	}
	if rate.GreaterThan(one) {
		rate = one
	}
	rate = rate.Round(4)
	return &rate, nil
}

// parseCost strips currency noise and parses a decimal amount.
// Unparseable costs are dropped silently, the raw value stays in
// raw_data.
func parseCost(raw string) *decimal.Decimal {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	cleaned := strings.NewReplacer("$", "", ",", "", " ", "").Replace(raw)
	cost, err := decimal.NewFromString(cleaned)
	if err != nil {
		token := numericTokenPattern.FindString(cleaned)
		if token == "" {
			return nil
		}
		cost, err = decimal.NewFromString(token)
		if err != nil {
			return nil
		}
	}
	cost = cost.Round(2)
	return &cost
}
