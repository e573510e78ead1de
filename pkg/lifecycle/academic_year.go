package lifecycle

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// ErrInvalidAcademicYear is returned when a string is not "YYYY-YYYY" with
// consecutive years.
var ErrInvalidAcademicYear = errors.New("academic year must be YYYY-YYYY with consecutive years")

var academicYearPattern = regexp.MustCompile(`^(\d{4})-(\d{4})$`)

// AcademicYear is a parsed "YYYY-YYYY" school year.
type AcademicYear struct {
	Start int
	End   int
}

// String renders the "YYYY-YYYY" form.
func (y AcademicYear) String() string {
	return fmt.Sprintf("%d-%d", y.Start, y.End)
}

// Next returns the following school year.
func (y AcademicYear) Next() AcademicYear {
	return AcademicYear{Start: y.End, End: y.End + 1}
}

// Expiry is the administrative end of the year: March 31, 23:59:59 of the
// second calendar year, in loc.
func (y AcademicYear) Expiry(loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	return time.Date(y.End, time.March, 31, 23, 59, 59, 0, loc)
}

// ParseAcademicYear parses "YYYY-YYYY" and enforces end = start + 1.
func ParseAcademicYear(raw string) (AcademicYear, error) {
	m := academicYearPattern.FindStringSubmatch(raw)
	if m == nil {
		return AcademicYear{}, ErrInvalidAcademicYear
	}
	start, _ := strconv.Atoi(m[1])
	end, _ := strconv.Atoi(m[2])
	if end != start+1 {
		return AcademicYear{}, ErrInvalidAcademicYear
	}
	return AcademicYear{Start: start, End: end}, nil
}

// AcademicYearExpiry returns the expiry instant of the year, or false when
// the string cannot be parsed.
func AcademicYearExpiry(raw string, loc *time.Location) (time.Time, bool) {
	year, err := ParseAcademicYear(raw)
	if err != nil {
		return time.Time{}, false
	}
	return year.Expiry(loc), true
}

// IsEnrollmentExpired reports whether now is past the year's expiry.
// Terminal statuses are never expired; unparseable years never expire.
func IsEnrollmentExpired(raw string, status Status, now time.Time, loc *time.Location) bool {
	if status.Terminal() {
		return false
	}
	expiry, ok := AcademicYearExpiry(raw, loc)
	if !ok {
		return false
	}
	return now.After(expiry)
}

// CurrentAcademicYear computes the school year containing now. The year
// switches in June.
func CurrentAcademicYear(now time.Time) string {
	year := now.Year()
	if now.Month() >= time.June {
		return AcademicYear{Start: year, End: year + 1}.String()
	}
	return AcademicYear{Start: year - 1, End: year}.String()
}

// AdvanceAcademicYear returns the year after raw, falling back to the
// current academic year when raw cannot be parsed.
func AdvanceAcademicYear(raw string, now time.Time) string {
	year, err := ParseAcademicYear(raw)
	if err != nil {
		return CurrentAcademicYear(now)
	}
	return year.Next().String()
}
