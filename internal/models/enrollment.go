package models

import (
	"time"

	"github.com/noah-isme/ace-school-api/pkg/lifecycle"
)

// Enrollment is a student's application for one grade and academic year.
type Enrollment struct {
	ID              string                   `db:"id" json:"id"`
	StudentNumber   *string                  `db:"student_number" json:"student_number,omitempty"`
	LRN             string                   `db:"lrn" json:"lrn"`
	FirstName       string                   `db:"first_name" json:"first_name"`
	MiddleName      string                   `db:"middle_name" json:"middle_name"`
	LastName        string                   `db:"last_name" json:"last_name"`
	BirthDate       *time.Time               `db:"birth_date" json:"birth_date,omitempty"`
	Gender          string                   `db:"gender" json:"gender"`
	GradeLevel      lifecycle.GradeCode      `db:"grade_level" json:"grade_level"`
	EducationLevel  lifecycle.EducationLevel `db:"education_level" json:"education_level"`
	AcademicYear    string                   `db:"academic_year" json:"academic_year"`
	Status          lifecycle.Status         `db:"status" json:"status"`
	StudentType     lifecycle.StudentType    `db:"student_type" json:"student_type"`
	PaymentMode     *lifecycle.PaymentMode   `db:"payment_mode" json:"payment_mode,omitempty"`
	Email           string                   `db:"email" json:"email"`
	Address         string                   `db:"address" json:"address"`
	Religion        string                   `db:"religion" json:"religion"`
	TelephoneNumber string                   `db:"telephone_number" json:"telephone_number"`
	MobileNumber    string                   `db:"mobile_number" json:"mobile_number"`
	ParentFacebook  string                   `db:"parent_facebook" json:"parent_facebook"`
	ParentUserID    *string                  `db:"parent_user_id" json:"parent_user_id,omitempty"`
	Remarks         string                   `db:"remarks" json:"remarks"`
	EnrolledAt      *time.Time               `db:"enrolled_at" json:"enrolled_at,omitempty"`
	CompletedAt     *time.Time               `db:"completed_at" json:"completed_at,omitempty"`
	CreatedAt       time.Time                `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time                `db:"updated_at" json:"updated_at"`

	ParentInfo *ParentInfo `db:"-" json:"parent_info,omitempty"`
}

// StudentName joins first and last name.
func (e *Enrollment) StudentName() string {
	return e.Record().StudentName()
}

// GradeLabel returns the display label of the grade level.
func (e *Enrollment) GradeLabel() string {
	return lifecycle.GradeLabel(e.GradeLevel)
}

// ParentInfo holds the parent/guardian block of an enrollment.
type ParentInfo struct {
	EnrollmentID         string `db:"enrollment_id" json:"-"`
	FatherName           string `db:"father_name" json:"father_name"`
	FatherContact        string `db:"father_contact" json:"father_contact"`
	FatherOccupation     string `db:"father_occupation" json:"father_occupation"`
	MotherName           string `db:"mother_name" json:"mother_name"`
	MotherContact        string `db:"mother_contact" json:"mother_contact"`
	MotherOccupation     string `db:"mother_occupation" json:"mother_occupation"`
	GuardianName         string `db:"guardian_name" json:"guardian_name"`
	GuardianContact      string `db:"guardian_contact" json:"guardian_contact"`
	GuardianRelationship string `db:"guardian_relationship" json:"guardian_relationship"`
}

// Record converts the row into the lifecycle snapshot.
func (e *Enrollment) Record() lifecycle.Record {
	r := lifecycle.Record{
		ID:              e.ID,
		LRN:             e.LRN,
		FirstName:       e.FirstName,
		MiddleName:      e.MiddleName,
		LastName:        e.LastName,
		BirthDate:       e.BirthDate,
		Gender:          e.Gender,
		GradeLevel:      e.GradeLevel,
		EducationLevel:  e.EducationLevel,
		AcademicYear:    e.AcademicYear,
		Status:          e.Status,
		StudentType:     e.StudentType,
		PaymentMode:     e.PaymentMode,
		Email:           e.Email,
		Address:         e.Address,
		Religion:        e.Religion,
		TelephoneNumber: e.TelephoneNumber,
		MobileNumber:    e.MobileNumber,
		ParentFacebook:  e.ParentFacebook,
		ParentUserID:    e.ParentUserID,
		Remarks:         e.Remarks,
		EnrolledAt:      e.EnrolledAt,
		CompletedAt:     e.CompletedAt,
		CreatedAt:       e.CreatedAt,
		UpdatedAt:       e.UpdatedAt,
	}
	if e.StudentNumber != nil {
		r.StudentNumber = *e.StudentNumber
	}
	if p := e.ParentInfo; p != nil {
		r.Parent = &lifecycle.ParentInfo{
			FatherName:           p.FatherName,
			FatherContact:        p.FatherContact,
			FatherOccupation:     p.FatherOccupation,
			MotherName:           p.MotherName,
			MotherContact:        p.MotherContact,
			MotherOccupation:     p.MotherOccupation,
			GuardianName:         p.GuardianName,
			GuardianContact:      p.GuardianContact,
			GuardianRelationship: p.GuardianRelationship,
		}
	}
	return r
}

// EnrollmentFromRecord builds a row from a lifecycle snapshot. The record
// is cloned so the row shares no pointers with it.
func EnrollmentFromRecord(src lifecycle.Record) *Enrollment {
	r := src.Clone()
	e := &Enrollment{
		ID:              r.ID,
		LRN:             r.LRN,
		FirstName:       r.FirstName,
		MiddleName:      r.MiddleName,
		LastName:        r.LastName,
		BirthDate:       r.BirthDate,
		Gender:          r.Gender,
		GradeLevel:      r.GradeLevel,
		EducationLevel:  r.EducationLevel,
		AcademicYear:    r.AcademicYear,
		Status:          r.Status,
		StudentType:     r.StudentType,
		PaymentMode:     r.PaymentMode,
		Email:           r.Email,
		Address:         r.Address,
		Religion:        r.Religion,
		TelephoneNumber: r.TelephoneNumber,
		MobileNumber:    r.MobileNumber,
		ParentFacebook:  r.ParentFacebook,
		ParentUserID:    r.ParentUserID,
		Remarks:         r.Remarks,
		EnrolledAt:      r.EnrolledAt,
		CompletedAt:     r.CompletedAt,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
	if r.StudentNumber != "" {
		number := r.StudentNumber
		e.StudentNumber = &number
	}
	if p := r.Parent; p != nil {
		e.ParentInfo = &ParentInfo{
			EnrollmentID:         r.ID,
			FatherName:           p.FatherName,
			FatherContact:        p.FatherContact,
			FatherOccupation:     p.FatherOccupation,
			MotherName:           p.MotherName,
			MotherContact:        p.MotherContact,
			MotherOccupation:     p.MotherOccupation,
			GuardianName:         p.GuardianName,
			GuardianContact:      p.GuardianContact,
			GuardianRelationship: p.GuardianRelationship,
		}
	}
	return e
}

// EnrollmentFilter provides filters for listing enrollments.
type EnrollmentFilter struct {
	StudentNumber string
	GradeLevel    lifecycle.GradeCode
	GradeLevels   []lifecycle.GradeCode
	Status        lifecycle.Status
	AcademicYear  string
	ParentUserID  string
	Search        string
	Page          int
	PageSize      int
	SortBy        string
	SortOrder     string
}

// EnrollmentStatistics summarises enrollments for the admin dashboard.
type EnrollmentStatistics struct {
	Total    int            `json:"total"`
	ByStatus map[string]int `json:"by_status"`
	ByGrade  map[string]int `json:"by_grade"`
}

// StatusCount is one row of the status breakdown query.
type StatusCount struct {
	Status lifecycle.Status `db:"status"`
	Count  int              `db:"count"`
}

// GradeCount is one row of the grade breakdown query.
type GradeCount struct {
	GradeLevel lifecycle.GradeCode `db:"grade_level"`
	Count      int                 `db:"count"`
}
