package dto

import (
	"github.com/noah-isme/ace-school-api/internal/models"
	"github.com/noah-isme/ace-school-api/pkg/lifecycle"
)

// ParentInfoRequest is the parent/guardian block of an enrollment form.
type ParentInfoRequest struct {
	FatherName           string `json:"father_name" validate:"omitempty,max=255"`
	FatherContact        string `json:"father_contact" validate:"omitempty,max=32"`
	FatherOccupation     string `json:"father_occupation" validate:"omitempty,max=128"`
	MotherName           string `json:"mother_name" validate:"omitempty,max=255"`
	MotherContact        string `json:"mother_contact" validate:"omitempty,max=32"`
	MotherOccupation     string `json:"mother_occupation" validate:"omitempty,max=128"`
	GuardianName         string `json:"guardian_name" validate:"omitempty,max=255"`
	GuardianContact      string `json:"guardian_contact" validate:"omitempty,max=32"`
	GuardianRelationship string `json:"guardian_relationship" validate:"omitempty,max=64"`
}

// Model converts the payload into the persistence model.
func (p *ParentInfoRequest) Model() *models.ParentInfo {
	if p == nil {
		return nil
	}
	return &models.ParentInfo{
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

// CreateEnrollmentRequest is the public enrollment form.
type CreateEnrollmentRequest struct {
	LRN             string                   `json:"lrn" validate:"omitempty,max=32"`
	FirstName       string                   `json:"first_name" validate:"required,max=100"`
	MiddleName      string                   `json:"middle_name" validate:"omitempty,max=100"`
	LastName        string                   `json:"last_name" validate:"required,max=100"`
	BirthDate       *Date                    `json:"birth_date"`
	Gender          string                   `json:"gender" validate:"omitempty,oneof=male female"`
	EducationLevel  lifecycle.EducationLevel `json:"education_level" validate:"required,oneof=preschool elementary"`
	GradeLevel      lifecycle.GradeCode      `json:"grade_level" validate:"required,oneof=prek kinder grade1 grade2 grade3 grade4 grade5 grade6"`
	AcademicYear    string                   `json:"academic_year" validate:"omitempty"`
	StudentType     lifecycle.StudentType    `json:"student_type" validate:"required,oneof=new old"`
	PaymentMode     lifecycle.PaymentMode    `json:"payment_mode" validate:"required,oneof=cash installment"`
	Email           string                   `json:"email" validate:"omitempty,email"`
	Address         string                   `json:"address" validate:"omitempty,max=500"`
	Religion        string                   `json:"religion" validate:"omitempty,max=64"`
	TelephoneNumber string                   `json:"telephone_number" validate:"omitempty,max=32"`
	MobileNumber    string                   `json:"mobile_number" validate:"omitempty,max=32"`
	ParentFacebook  string                   `json:"parent_facebook" validate:"omitempty,max=255"`
	ParentInfo      *ParentInfoRequest       `json:"parent_info" validate:"omitempty"`
}

// UpdateEnrollmentRequest is a partial admin edit. Override lets the
// operator save over an edit lock after seeing the warning.
type UpdateEnrollmentRequest struct {
	LRN             *string                   `json:"lrn" validate:"omitempty,max=32"`
	FirstName       *string                   `json:"first_name" validate:"omitempty,min=1,max=100"`
	MiddleName      *string                   `json:"middle_name" validate:"omitempty,max=100"`
	LastName        *string                   `json:"last_name" validate:"omitempty,min=1,max=100"`
	BirthDate       *Date                     `json:"birth_date"`
	Gender          *string                   `json:"gender" validate:"omitempty,oneof=male female"`
	EducationLevel  *lifecycle.EducationLevel `json:"education_level" validate:"omitempty,oneof=preschool elementary"`
	GradeLevel      *lifecycle.GradeCode      `json:"grade_level" validate:"omitempty,oneof=prek kinder grade1 grade2 grade3 grade4 grade5 grade6"`
	AcademicYear    *string                   `json:"academic_year"`
	StudentType     *lifecycle.StudentType    `json:"student_type" validate:"omitempty,oneof=new old"`
	PaymentMode     *lifecycle.PaymentMode    `json:"payment_mode" validate:"omitempty,oneof=cash installment"`
	Email           *string                   `json:"email" validate:"omitempty,email"`
	Address         *string                   `json:"address" validate:"omitempty,max=500"`
	Religion        *string                   `json:"religion" validate:"omitempty,max=64"`
	TelephoneNumber *string                   `json:"telephone_number" validate:"omitempty,max=32"`
	MobileNumber    *string                   `json:"mobile_number" validate:"omitempty,max=32"`
	ParentFacebook  *string                   `json:"parent_facebook" validate:"omitempty,max=255"`
	ParentInfo      *ParentInfoRequest        `json:"parent_info" validate:"omitempty"`
	Override        bool                      `json:"override"`
}

// OnlyAcademicYear reports whether the patch touches nothing but the
// academic year.
func (r UpdateEnrollmentRequest) OnlyAcademicYear() bool {
	return r.AcademicYear != nil &&
		r.LRN == nil && r.FirstName == nil && r.MiddleName == nil && r.LastName == nil &&
		r.BirthDate == nil && r.Gender == nil && r.EducationLevel == nil && r.GradeLevel == nil &&
		r.StudentType == nil && r.PaymentMode == nil && r.Email == nil && r.Address == nil &&
		r.Religion == nil && r.TelephoneNumber == nil && r.MobileNumber == nil &&
		r.ParentFacebook == nil && r.ParentInfo == nil
}

// EnrollmentResponse wraps a record with its soft validation warnings.
type EnrollmentResponse struct {
	*models.Enrollment
	StudentName string   `json:"student_name"`
	GradeLabel  string   `json:"grade_label"`
	StatusLabel string   `json:"status_label"`
	Warnings    []string `json:"warnings,omitempty"`
}

// NewEnrollmentResponse builds the response view of e.
func NewEnrollmentResponse(e *models.Enrollment, warnings []string) *EnrollmentResponse {
	return &EnrollmentResponse{
		Enrollment:  e,
		StudentName: e.StudentName(),
		GradeLabel:  e.GradeLabel(),
		StatusLabel: lifecycle.StatusLabel(e.Status),
		Warnings:    warnings,
	}
}

// EnrollmentDetail is the admin detail view with the lifecycle evaluation.
type EnrollmentDetail struct {
	*EnrollmentResponse
	Lifecycle lifecycle.Evaluation `json:"lifecycle"`
}

// ApproveResult reports what approval did besides changing the status.
type ApproveResult struct {
	Enrollment         *EnrollmentResponse `json:"enrollment"`
	ParentUserID       string              `json:"parent_user_id,omitempty"`
	ParentCreated      bool                `json:"parent_created"`
	NotificationQueued bool                `json:"notification_queued"`
}
