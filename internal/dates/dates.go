// Package dates converts between the date strings the backend sends and the
// one shape it accepts.
//
// Inbound shapes seen on the wire:
//   - "04/08/2025 05:00:28 pm"  (day/month/year, 12-hour time)
//   - "23-10-2025 07:34:00 PM"  (day-month-year, either meridiem case)
//   - ISO 8601 timestamps
//
// Outbound shape (positional, parsed by the backend):
//   - "DD-MM-YYYY HH:MM:SS am|pm"
package dates

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// NotAvailable is rendered for missing or unparseable dates.
const NotAvailable = "N/A"

// maxYear is the last year a calendar date may land in.
const maxYear = 275760

// DisplayLayout renders a long date, e.g. "August 4, 2025".
const DisplayLayout = "January 2, 2006"

// Now returns the current wall-clock time. Tests replace it.
var Now = time.Now

var isoLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseDisplayDate renders input as a long date, ignoring any time of day.
//
// Never panics: any failure yields NotAvailable.
func ParseDisplayDate(input string) (out string) {
	defer func() {
		if recover() != nil {
			out = NotAvailable
		}
	}()

	input = strings.TrimSpace(input)
	if input == "" {
		return NotAvailable
	}

	datePart := input
	if i := strings.IndexByte(input, ' '); i >= 0 {
		datePart = input[:i]
	}

	switch {
	case strings.Contains(input, "/"):
		if t, ok := dayMonthYear(datePart, "/"); ok {
			return t.Format(DisplayLayout)
		}
	case strings.Contains(input, "-"):
		if t, ok := dayMonthYear(datePart, "-"); ok {
			return t.Format(DisplayLayout)
		}
	}

	if t, ok := parseISO(input); ok {
		return t.Format(DisplayLayout)
	}
	return NotAvailable
}

// dayMonthYear builds a calendar date from "D<sep>M<sep>Y". Out-of-range
// day or month values roll over the way calendar arithmetic does
// (31/02/2025 is 3 March 2025). Dates outside years 1 to maxYear are
// rejected, before or after rollover. A leading four-digit field means the string
// is year-first and is left to the ISO parser.
func dayMonthYear(s, sep string) (time.Time, bool) {
	parts := strings.Split(s, sep)
	if len(parts) < 3 {
		return time.Time{}, false
	}
	if len(parts[0]) == 4 {
		return time.Time{}, false
	}

	day, err := strconv.Atoi(parts[0])
	if err != nil {
		return time.Time{}, false
	}
	month, err := strconv.Atoi(parts[1])
	if err != nil {
		return time.Time{}, false
	}
	year, err := strconv.Atoi(parts[2])
	if err != nil || year < 1 || year > maxYear {
		return time.Time{}, false
	}

	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.Local)
	if t.Year() < 1 || t.Year() > maxYear {
		return time.Time{}, false
	}
	return t, true
}

func parseISO(s string) (time.Time, bool) {
	for _, layout := range isoLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// FormatTime renders t as "DD-MM-YYYY HH:MM:SS am|pm" on a 12-hour clock.
func FormatTime(t time.Time) string {
	hour := t.Hour() % 12
	if hour == 0 {
		hour = 12
	}
	meridiem := "am"
	if t.Hour() >= 12 {
		meridiem = "pm"
	}
	return fmt.Sprintf("%02d-%02d-%04d %02d:%02d:%02d %s",
		t.Day(), int(t.Month()), t.Year(), hour, t.Minute(), t.Second(), meridiem)
}

// FormatForSubmission renders input in the backend's submission format.
//
// An empty input uses the current time. Otherwise input must be a
// date-time value: an ISO-like timestamp (as produced by a datetime-local
// field) or a string already in either wire shape.
func FormatForSubmission(input string) (string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return FormatTime(Now()), nil
	}
	if t, ok := parseISO(input); ok {
		return FormatTime(t), nil
	}
	if t, err := ParseWire(input); err == nil {
		return FormatTime(t), nil
	}
	return "", fmt.Errorf("unrecognized date-time %q", input)
}

var wireLayouts = []string{
	"02-01-2006 03:04:05 pm",
	"02/01/2006 03:04:05 pm",
	"2-1-2006 3:04:05 pm",
	"2/1/2006 3:04:05 pm",
	"02-01-2006 15:04:05",
	"02/01/2006 15:04:05",
	"02-01-2006",
	"02/01/2006",
}

// ParseWire parses the backend's day-first timestamp shapes. The meridiem
// marker is accepted in either case.
func ParseWire(s string) (time.Time, error) {
	normalized := strings.ToLower(strings.Join(strings.Fields(s), " "))
	for _, layout := range wireLayouts {
		if t, err := time.ParseInLocation(layout, normalized, time.Local); err == nil {
			return t, nil
		}
	}
	if t, ok := parseISO(strings.TrimSpace(s)); ok {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}
