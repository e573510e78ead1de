package lifecycle

import "time"

// Evaluation bundles every lifecycle check for one record.
type Evaluation struct {
	AgeForGrade      Validation `json:"age_for_grade"`
	BirthDate        Validation `json:"birth_date"`
	AcademicYear     string     `json:"academic_year"`
	Expiry           *time.Time `json:"expiry,omitempty"`
	Expired          bool       `json:"expired"`
	Gate             Gate       `json:"gate"`
	NextGrade        GradeCode  `json:"next_grade,omitempty"`
	NextAcademicYear string     `json:"next_academic_year"`
	CanPromote       bool       `json:"can_promote"`
}

// Evaluator binds the rules to a clock and the school's time zone.
type Evaluator struct {
	clock Clock
	loc   *time.Location
}

// NewEvaluator constructs an evaluator. Nil arguments default to the system
// clock and time.Local.
func NewEvaluator(clock Clock, loc *time.Location) *Evaluator {
	if clock == nil {
		clock = SystemClock()
	}
	if loc == nil {
		loc = time.Local
	}
	return &Evaluator{clock: clock, loc: loc}
}

// Now returns the evaluator's current instant in its location.
func (e *Evaluator) Now() time.Time {
	return e.clock().In(e.loc)
}

// Location returns the configured school time zone.
func (e *Evaluator) Location() *time.Location {
	return e.loc
}

// ValidateAgeForGrade checks the age bracket as of now.
func (e *Evaluator) ValidateAgeForGrade(birth *time.Time, grade GradeCode) Validation {
	return ValidateAgeForGrade(birth, grade, e.Now())
}

// ValidateBirthDate checks the school-wide birth date rules as of now.
func (e *Evaluator) ValidateBirthDate(birth *time.Time) Validation {
	return ValidateBirthDate(birth, e.Now())
}

// IsExpired reports whether the record's academic year has lapsed.
func (e *Evaluator) IsExpired(academicYear string, status Status) bool {
	return IsEnrollmentExpired(academicYear, status, e.Now(), e.loc)
}

// CurrentAcademicYear returns the school year containing now.
func (e *Evaluator) CurrentAcademicYear() string {
	return CurrentAcademicYear(e.Now())
}

// AdvanceAcademicYear advances raw, falling back to the current year.
func (e *Evaluator) AdvanceAcademicYear(raw string) string {
	return AdvanceAcademicYear(raw, e.Now())
}

// Promote stages the promoted copy of src.
func (e *Evaluator) Promote(src Record) (Record, error) {
	return Promote(src, e.Now())
}

// Gate evaluates edit blocking for a record.
func (e *Evaluator) Gate(r Record, viewOnly bool) Gate {
	return EditGate(r.Status, r.AcademicYear, viewOnly, e.Now(), e.loc)
}

// Evaluate runs every check against r.
func (e *Evaluator) Evaluate(r Record) Evaluation {
	now := e.Now()
	ev := Evaluation{
		AgeForGrade:      ValidateAgeForGrade(r.BirthDate, r.GradeLevel, now),
		BirthDate:        ValidateBirthDate(r.BirthDate, now),
		AcademicYear:     r.AcademicYear,
		Expired:          IsEnrollmentExpired(r.AcademicYear, r.Status, now, e.loc),
		Gate:             EditGate(r.Status, r.AcademicYear, false, now, e.loc),
		NextAcademicYear: AdvanceAcademicYear(r.AcademicYear, now),
	}
	if expiry, ok := AcademicYearExpiry(r.AcademicYear, e.loc); ok {
		ev.Expiry = &expiry
	}
	if next, ok := NextGrade(r.GradeLevel); ok {
		ev.NextGrade = next
		ev.CanPromote = true
	}
	return ev
}

// Warnings lists the soft validation failures for r, suitable for returning
// alongside a saved record.
func (e *Evaluator) Warnings(r Record) []string {
	var out []string
	if v := e.ValidateAgeForGrade(r.BirthDate, r.GradeLevel); !v.OK {
		out = append(out, v.Reason)
	}
	if e.IsExpired(r.AcademicYear, r.Status) {
		out = append(out, "Academic year "+r.AcademicYear+" has expired.")
	}
	return out
}
