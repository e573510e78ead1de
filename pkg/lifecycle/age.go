package lifecycle

import (
	"fmt"
	"time"
)

// School-wide age bounds applied to any birth date regardless of grade.
const (
	MinSchoolAge = 3
	MaxSchoolAge = 18
)

// AgeOn returns the age in whole years on the calendar date of now.
func AgeOn(birth, now time.Time) int {
	by, bm, bd := birth.Date()
	ny, nm, nd := now.Date()
	age := ny - by
	if nm < bm || (nm == bm && nd < bd) {
		age--
	}
	return age
}

// ValidateAgeForGrade checks a birth date against the grade's age bracket.
// Missing input is not a violation.
func ValidateAgeForGrade(birth *time.Time, grade GradeCode, now time.Time) Validation {
	if birth == nil || birth.IsZero() || grade == "" {
		return Valid()
	}
	bracket, ok := AgeRangeFor(grade)
	if !ok {
		return Valid()
	}
	age := AgeOn(*birth, now)
	label := GradeLabel(grade)
	if age < bracket.Min {
		return Invalid(fmt.Sprintf("Student is too young for %s: age %d, minimum is %d.", label, age, bracket.Min))
	}
	if age > bracket.Max {
		return Invalid(fmt.Sprintf("Student is too old for %s: age %d, maximum is %d.", label, age, bracket.Max))
	}
	return Valid()
}

// ValidateBirthDate applies the school-wide birth date rules: the date must
// be in the past and the age within MinSchoolAge..MaxSchoolAge.
func ValidateBirthDate(birth *time.Time, now time.Time) Validation {
	if birth == nil || birth.IsZero() {
		return Valid()
	}
	by, bm, bd := birth.Date()
	ny, nm, nd := now.Date()
	birthDay := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)
	today := time.Date(ny, nm, nd, 0, 0, 0, 0, time.UTC)
	if !birthDay.Before(today) {
		return Invalid("Birth date must be in the past.")
	}
	age := AgeOn(*birth, now)
	if age < MinSchoolAge {
		return Invalid("Student must be at least 3 years old.")
	}
	if age > MaxSchoolAge {
		return Invalid("Student age exceeds allowed school range.")
	}
	return Valid()
}
