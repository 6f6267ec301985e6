// Package datetime formats dates the way the app displays them, including
// the Thai locale with Buddhist-era years.
package datetime

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/goodsign/monday"
)

// Layouts shown by the app.
const (
	LayoutDate      = "02 Jan 2006"        // 03 Aug 2023
	LayoutDateTime  = "02 Jan 2006, 15:04" // 03 Aug 2023, 13:30
	LayoutInputDate = "02-01-2006"
	layoutCompact   = "20060102150405"
)

// buddhistEraOffset converts a Gregorian year to the Thai solar calendar.
const buddhistEraOffset = 543

// countryThaiLocale is the marketplace that renders dates in Thai.
const countryThaiLocale = "DD"

// Formatter formats dates for one marketplace.
type Formatter struct {
	Country string
	Now     func() time.Time
}

// New creates a Formatter for country using the wall clock.
func New(country string) *Formatter {
	return &Formatter{Country: country, Now: time.Now}
}

func (f *Formatter) thai() bool {
	return strings.EqualFold(f.Country, countryThaiLocale)
}

func (f *Formatter) now() time.Time {
	if f.Now != nil {
		return f.Now()
	}
	return time.Now()
}

func (f *Formatter) nowIn(timezone string) (time.Time, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return time.Time{}, fmt.Errorf("timezone %q: %w", timezone, err)
	}
	return f.now().In(loc), nil
}

// Format renders t in layout, switching to Thai names and Buddhist years for
// the Thai-locale marketplace.
func (f *Formatter) Format(t time.Time, layout string) string {
	if f.thai() {
		return monday.Format(t.AddDate(buddhistEraOffset, 0, 0), layout, monday.LocaleThTH)
	}
	return t.Format(layout)
}

// DateWithTimeZone returns today plus days in timezone as "02 Jan 2006".
func (f *Formatter) DateWithTimeZone(timezone string, days int) (string, error) {
	return f.DateAfterAddingDays(timezone, days, LayoutDate)
}

// Day returns the weekday name of today plus days in timezone.
func (f *Formatter) Day(timezone string, days int) (string, error) {
	t, err := f.nowIn(timezone)
	if err != nil {
		return "", err
	}
	t = t.AddDate(0, 0, days)
	if f.thai() {
		return monday.Format(t, "Monday", monday.LocaleThTH), nil
	}
	return t.Format("Monday"), nil
}

// CurrentDateWithFormat returns now in timezone rendered with layout.
func (f *Formatter) CurrentDateWithFormat(timezone, layout string) (string, error) {
	return f.DateAfterAddingDays(timezone, 0, layout)
}

// CurrentDateAndTime returns "02 Jan 2006, 15:04 <unit>" for now in timezone.
func (f *Formatter) CurrentDateAndTime(timezone, unit string) (string, error) {
	s, err := f.CurrentDateWithFormat(timezone, LayoutDateTime)
	if err != nil {
		return "", err
	}
	return s + " " + unit, nil
}

// DateAfterAddingDays returns today plus days in timezone rendered with layout.
func (f *Formatter) DateAfterAddingDays(timezone string, days int, layout string) (string, error) {
	t, err := f.nowIn(timezone)
	if err != nil {
		return "", err
	}
	return f.Format(t.AddDate(0, 0, days), layout), nil
}

// DateAfterDeductingDays returns today minus days in timezone rendered with layout.
func (f *Formatter) DateAfterDeductingDays(timezone string, days int, layout string) (string, error) {
	return f.DateAfterAddingDays(timezone, -days, layout)
}

// DateAYearFromToday returns the local date one year from now. The app shows
// this date in English for every marketplace.
func (f *Formatter) DateAYearFromToday(layout string) string {
	if layout == "" {
		layout = LayoutDate
	}
	return f.now().AddDate(1, 0, 0).Format(layout)
}

// AddDaysToDate parses date (in inputLayout, defaulting to 02-01-2006) in
// timezone, adds days and renders it with layout.
func (f *Formatter) AddDaysToDate(date, inputLayout, timezone string, days int, layout string) (string, error) {
	if inputLayout == "" {
		inputLayout = LayoutInputDate
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return "", fmt.Errorf("timezone %q: %w", timezone, err)
	}
	t, err := time.ParseInLocation(inputLayout, date, loc)
	if err != nil {
		return "", fmt.Errorf("parse date %q: %w", date, err)
	}
	return f.Format(t.AddDate(0, 0, days), layout), nil
}

// DateAndTimeAfterAddingDays returns "02 Jan 2006, 15:04 <unit>" for today plus days.
func (f *Formatter) DateAndTimeAfterAddingDays(timezone string, days int, unit string) (string, error) {
	s, err := f.DateAfterAddingDays(timezone, days, LayoutDateTime)
	if err != nil {
		return "", err
	}
	return s + " " + unit, nil
}

// IsTimeDifferenceLessThanThreshold parses two "02 Jan 2006, 15:04 <unit>"
// values in locale ("en" or "th") and reports whether they are less than
// threshold apart.
func IsTimeDifferenceLessThanThreshold(dateTime1, dateTime2, locale, unit string, threshold time.Duration) (bool, error) {
	t1, err := parseDisplayed(dateTime1, locale, unit)
	if err != nil {
		return false, err
	}
	t2, err := parseDisplayed(dateTime2, locale, unit)
	if err != nil {
		return false, err
	}
	diff := time.Duration(math.Abs(float64(t1.Sub(t2))))
	return diff < threshold, nil
}

func parseDisplayed(value, locale, unit string) (time.Time, error) {
	if unit != "" {
		value = strings.Replace(value, unit, "", 1)
	}
	value = strings.TrimSpace(value)

	var (
		t   time.Time
		err error
	)
	if locale == "th" {
		t, err = monday.ParseInLocation(LayoutDateTime, value, time.UTC, monday.LocaleThTH)
	} else {
		t, err = time.ParseInLocation(LayoutDateTime, value, time.UTC)
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("parse %q: %w", value, err)
	}
	return t, nil
}

// CompactTimestamp returns the current UTC time as YYYYMMDDHHmmss.
func (f *Formatter) CompactTimestamp() string {
	return f.now().UTC().Format(layoutCompact)
}

// TimestampEmail returns a unique address based on the current time.
func (f *Formatter) TimestampEmail() string {
	return "Automation_" + f.CompactTimestamp() + "@propertyguru.com"
}
