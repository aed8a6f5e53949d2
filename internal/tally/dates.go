package tally

import (
	"fmt"
	"time"
)

// Date is a Tally wire date, formatted YYYYMMDD.
type Date string

const wireDateLayout = "20060102"

// DateOf converts a time to a Tally date
func DateOf(t time.Time) Date {
	return Date(t.Format(wireDateLayout))
}

// Today returns the current date in Tally form
func Today() Date {
	return DateOf(time.Now())
}

// FinancialYearStart returns April 1 of the current year, the
// applicable-from date used on GST and HSN details.
func FinancialYearStart() Date {
	return Date(fmt.Sprintf("%d0401", time.Now().Year()))
}

// documentDateLayouts are the date shapes the extraction service produces.
var documentDateLayouts = []string{
	"02/01/2006",
	"02-01-2006",
	"2006-01-02",
}

// ParseDate converts an extracted document date to wire form
func ParseDate(s string) (Date, error) {
	for _, layout := range documentDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return DateOf(t), nil
		}
	}
	return "", fmt.Errorf("unrecognized date: %q", s)
}
