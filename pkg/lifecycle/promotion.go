package lifecycle

import (
	"errors"
	"strings"
	"time"
)

// ErrHighestGrade is returned when promoting a student who has no next grade.
var ErrHighestGrade = errors.New("already at highest grade")

// PaymentMode is how tuition is settled for an enrollment.
type PaymentMode string

const (
	PaymentCash        PaymentMode = "cash"
	PaymentInstallment PaymentMode = "installment"
)

// ParentInfo holds the guardian block carried with an enrollment.
type ParentInfo struct {
	FatherName           string `json:"father_name,omitempty"`
	FatherContact        string `json:"father_contact,omitempty"`
	FatherOccupation     string `json:"father_occupation,omitempty"`
	MotherName           string `json:"mother_name,omitempty"`
	MotherContact        string `json:"mother_contact,omitempty"`
	MotherOccupation     string `json:"mother_occupation,omitempty"`
	GuardianName         string `json:"guardian_name,omitempty"`
	GuardianContact      string `json:"guardian_contact,omitempty"`
	GuardianRelationship string `json:"guardian_relationship,omitempty"`
}

// HasNames reports whether any parent or guardian name is filled in.
func (p *ParentInfo) HasNames() bool {
	if p == nil {
		return false
	}
	return strings.TrimSpace(p.FatherName+p.MotherName+p.GuardianName) != ""
}

// HasContact reports whether any parent or guardian contact is filled in.
func (p *ParentInfo) HasContact() bool {
	if p == nil {
		return false
	}
	return strings.TrimSpace(p.FatherContact+p.MotherContact+p.GuardianContact) != ""
}

// Record is the enrollment snapshot the rules operate on.
type Record struct {
	ID              string
	StudentNumber   string
	LRN             string
	FirstName       string
	MiddleName      string
	LastName        string
	BirthDate       *time.Time
	Gender          string
	GradeLevel      GradeCode
	EducationLevel  EducationLevel
	AcademicYear    string
	Status          Status
	StudentType     StudentType
	PaymentMode     *PaymentMode
	Email           string
	Address         string
	Religion        string
	TelephoneNumber string
	MobileNumber    string
	ParentFacebook  string
	ParentUserID    *string
	Parent          *ParentInfo
	Remarks         string
	EnrolledAt      *time.Time
	CompletedAt     *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// StudentName joins first and last name.
func (r Record) StudentName() string {
	return strings.TrimSpace(strings.TrimSpace(r.FirstName) + " " + strings.TrimSpace(r.LastName))
}

// Clone returns a deep copy sharing no pointers with r.
func (r Record) Clone() Record {
	out := r
	if r.BirthDate != nil {
		b := *r.BirthDate
		out.BirthDate = &b
	}
	if r.PaymentMode != nil {
		m := *r.PaymentMode
		out.PaymentMode = &m
	}
	if r.ParentUserID != nil {
		id := *r.ParentUserID
		out.ParentUserID = &id
	}
	if r.Parent != nil {
		p := *r.Parent
		out.Parent = &p
	}
	if r.EnrolledAt != nil {
		t := *r.EnrolledAt
		out.EnrolledAt = &t
	}
	if r.CompletedAt != nil {
		t := *r.CompletedAt
		out.CompletedAt = &t
	}
	return out
}

// Promote stages the record for the next grade and school year. The source is
// left untouched; the result is a new PENDING returning-student record with
// identity, contact and parent data carried over.
func Promote(src Record, now time.Time) (Record, error) {
	next, ok := NextGrade(src.GradeLevel)
	if !ok {
		return Record{}, ErrHighestGrade
	}
	level, _ := EducationLevelFor(next)

	out := src.Clone()
	out.ID = ""
	out.GradeLevel = next
	out.EducationLevel = level
	out.AcademicYear = AdvanceAcademicYear(src.AcademicYear, now)
	out.StudentType = StudentTypeOld
	out.Status = StatusPending
	out.PaymentMode = nil
	out.Remarks = ""
	out.EnrolledAt = nil
	out.CompletedAt = nil
	out.CreatedAt = time.Time{}
	out.UpdatedAt = time.Time{}
	return out, nil
}
